package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"acakata/internal/app"
	"acakata/internal/domain"
	"acakata/internal/infra/memory"
	pginfra "acakata/internal/infra/postgres"
	pgmigrations "acakata/internal/infra/postgres/migrations"
	redisinfra "acakata/internal/infra/redis"
	"acakata/internal/locale"
	"acakata/internal/puzzle"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap/zaptest"
)

func TestPostgresBackedRoundEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	migrateDB(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	if n, err := pginfra.SeedCorpus(ctx, pool, []domain.PuzzleEntry{{Word: "JERUK", Hint: "buah"}}); err != nil || n != 1 {
		t.Fatalf("seed corpus: n=%d err=%v", n, err)
	}

	log := zaptest.NewLogger(t)
	corpus := memory.NewCorpusRepository(pginfra.NewCorpusLoader(pool), time.Minute)
	source := puzzle.NewSource(corpus, puzzle.DefaultScoring(), log)
	store := pginfra.NewLeaderboardStore(pool)
	room := app.NewRoom(ctx, app.DefaultRoomConfig(), source, app.NewScorekeeper(store, 2, log), locale.New("id"), log)
	defer room.Close()

	if got := room.Question().Answer; got != "JERUK" {
		t.Fatalf("expected seeded word, got %q", got)
	}
	if !room.SubmitMessage("Alice", "jeruk").Correct {
		t.Fatalf("expected Alice correct")
	}
	if !room.SubmitMessage("Bob", "JERUK").Correct {
		t.Fatalf("expected Bob correct")
	}
	waitCredits(t, room)

	rows, err := store.Select(ctx, app.LeaderboardFilter{})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(rows) != 2 || rows[0] != (domain.LeaderboardEntry{Player: "Alice", Score: 10}) || rows[1].Score != 8 {
		t.Fatalf("unexpected leaderboard %+v", rows)
	}

	// A restarted room sees the persisted totals.
	restarted := app.NewRoom(ctx, app.DefaultRoomConfig(), source, app.NewScorekeeper(store, 2, log), nil, log)
	defer restarted.Close()
	if err := restarted.RefreshLeaderboard(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if board := restarted.Snapshot().Leaderboard; len(board) != 2 || board[0].Player != "Alice" {
		t.Fatalf("expected persisted leaderboard, got %+v", board)
	}
}

func TestConcurrentCreditsAgainstRealStores(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	migrateDB(t, ctx, pgURL)
	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()
	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	stores := map[string]app.LeaderboardStore{
		"postgres": pginfra.NewLeaderboardStore(pool),
		"redis":    redisinfra.NewLeaderboardStore(redisClient),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			keeper := app.NewScorekeeper(store, 2, zaptest.NewLogger(t))
			var wg sync.WaitGroup
			for i := 0; i < 25; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := keeper.Credit(ctx, "Alice", 4); err != nil {
						t.Errorf("credit: %v", err)
					}
				}()
			}
			wg.Wait()

			rows, err := store.Select(ctx, app.LeaderboardFilter{Player: "Alice"})
			if err != nil {
				t.Fatalf("select: %v", err)
			}
			if len(rows) != 1 || rows[0].Score != 100 {
				t.Fatalf("expected 100 points, got %+v", rows)
			}
		})
	}
}

func waitCredits(t *testing.T, room *app.Room) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := room.WaitCredits(ctx); err != nil {
		t.Fatalf("wait credits: %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "acakata", "POSTGRES_PASSWORD": "acakata", "POSTGRES_DB": "acakata"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://acakata:acakata@%s:%s/acakata?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func migrateDB(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
