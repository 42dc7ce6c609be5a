package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"acakata/internal/app"
	"acakata/internal/config"
	"acakata/internal/infra/memory"
	pginfra "acakata/internal/infra/postgres"
	redisinfra "acakata/internal/infra/redis"
	"acakata/internal/locale"
	"acakata/internal/puzzle"
	transport "acakata/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the word scramble server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadRuntime(opts)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			if opts.port != "" {
				cfg.Server.Port = opts.port
			}
			return runServer(cmd.Context(), cfg, log)
		},
	}
}

func loadRuntime(opts *rootOptions) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return cfg, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, nil, err
	}
	log, err := newLogger(cfg, opts.verbose)
	if err != nil {
		return cfg, nil, fmt.Errorf("log.level: %w", err)
	}
	return cfg, log, nil
}

// application is the wired room plus the resources it borrowed.
type application struct {
	room    *app.Room
	handler http.Handler
	tick    time.Duration
	closers []func()
}

func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func buildApplication(ctx context.Context, cfg config.Config, log *zap.Logger) (*application, error) {
	a := &application{tick: config.Duration(cfg.Room.Tick, time.Second)}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, func() { _ = redisClient.Close() })
		if err := redisClient.Ping(ctx).Err(); err != nil {
			a.close()
			return nil, fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
		}
	}
	redisTTL := config.Duration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg, log); err != nil {
			a.close()
			return nil, err
		}
		var err error
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			a.close()
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
	}

	loader, err := corpusLoader(cfg, pool)
	if err != nil {
		a.close()
		return nil, err
	}
	corpusTTL := config.Duration(cfg.Puzzle.TTL, 10*time.Minute)
	var corpus puzzle.CorpusProvider
	if redisClient != nil {
		corpus = redisinfra.NewCorpusRepository(redisClient, loader, corpusTTL)
	} else {
		corpus = memory.NewCorpusRepository(loader, corpusTTL)
	}
	scoring := puzzle.Scoring{Base: cfg.Puzzle.ScoreBase, Step: cfg.Puzzle.ScoreStep, Floor: cfg.Puzzle.ScoreFloor}
	source := puzzle.NewSource(corpus, scoring, log.Named("puzzle"))

	var store app.LeaderboardStore
	switch cfg.Leaderboard.Backend {
	case config.BackendRedis:
		store = redisinfra.NewLeaderboardStore(redisClient)
	case config.BackendPostgres:
		store = pginfra.NewLeaderboardStore(pool)
	default:
		store = memory.NewLeaderboardStore()
	}
	scores := app.NewScorekeeper(store, cfg.Room.CreditRetries, log.Named("scores"))

	var roomOpts []app.RoomOption
	if redisClient != nil {
		presence := redisinfra.NewPresence(redisClient, redisTTL)
		if err := presence.Reset(ctx); err != nil {
			log.Warn("presence reset failed", zap.Error(err))
		}
		roomOpts = append(roomOpts, app.WithPresence(presence))
	}

	roomCfg := app.RoomConfig{
		TimerLimit:       cfg.Room.TimerLimit,
		ChatLimit:        cfg.Room.ChatLimit,
		DefaultName:      cfg.Room.DefaultName,
		MaxNameLength:    cfg.Room.MaxNameLength,
		MaxMessageLength: cfg.Room.MaxMessageLength,
		CreditTimeout:    config.Duration(cfg.Room.CreditTimeout, 5*time.Second),
	}
	roomLog := log.Named("room")
	a.room = app.NewRoom(ctx, roomCfg, source, scores, locale.New(cfg.Room.Locale), roomLog, roomOpts...)
	if err := a.room.RefreshLeaderboard(ctx); err != nil {
		log.Warn("initial leaderboard load failed; starting empty", zap.Error(err))
	}

	ws := transport.NewWSHandler(a.room, log.Named("ws"))
	a.handler = transport.NewRouter(a.room, ws, cfg.Server.PublicURL, log.Named("http"))
	log.Info("room ready",
		zap.String("leaderboard", cfg.Leaderboard.Backend),
		zap.Bool("redis", redisClient != nil),
		zap.Bool("postgres", pool != nil),
		zap.String("locale", cfg.Room.Locale))
	return a, nil
}

func corpusLoader(cfg config.Config, pool *pgxpool.Pool) (memory.CorpusLoader, error) {
	switch {
	case pool != nil:
		return pginfra.NewCorpusLoader(pool), nil
	case cfg.Puzzle.CorpusFile != "":
		entries, err := puzzle.LoadCorpusFile(cfg.Puzzle.CorpusFile)
		if err != nil {
			return nil, err
		}
		return memory.NewStaticCorpusLoader(entries), nil
	default:
		return memory.NewStaticCorpusLoader(puzzle.DefaultCorpus()), nil
	}
}

func runServer(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApplication(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	timerCtx, stopTimer := context.WithCancel(ctx)
	defer stopTimer()
	go app.RunTimer(timerCtx, a.room, a.tick, log.Named("timer"))

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           a.handler,
		ReadHeaderTimeout: 15 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting acakata", zap.String("addr", server.Addr), zap.String("public_url", cfg.Server.PublicURL))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutting down server...")
	}

	stopTimer()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	a.room.Close()
	if err := a.room.WaitCredits(shutdownCtx); err != nil {
		log.Warn("pending leaderboard credits abandoned", zap.Error(err))
	}
	return nil
}
