package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"acakata/internal/domain"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// LeaderboardFilter narrows a Select; the zero value selects every row.
type LeaderboardFilter struct {
	Player string
}

// LeaderboardStore is the persistent leaderboard (memory, Redis, Postgres).
// After Upsert returns, a Select by the same caller must observe the write.
type LeaderboardStore interface {
	Select(ctx context.Context, filter LeaderboardFilter) ([]domain.LeaderboardEntry, error)
	Upsert(ctx context.Context, entry domain.LeaderboardEntry) error
}

// ScoreIncrementer is implemented by stores that can add to a score in one atomic step.
type ScoreIncrementer interface {
	Increment(ctx context.Context, player string, delta int) error
}

// Scorekeeper credits points to the leaderboard store. Credits to the same player never
// interleave: stores with an atomic increment get one call, the rest get a
// read-add-upsert under a per-player lock.
type Scorekeeper struct {
	store      LeaderboardStore
	log        *zap.Logger
	retries    int
	newBackOff func() backoff.BackOff

	locks keyedMutex
}

type ScorekeeperOption func(*Scorekeeper)

// WithBackOff overrides the retry schedule between failed credit attempts.
func WithBackOff(newBackOff func() backoff.BackOff) ScorekeeperOption {
	return func(k *Scorekeeper) { k.newBackOff = newBackOff }
}

func NewScorekeeper(store LeaderboardStore, retries int, log *zap.Logger, opts ...ScorekeeperOption) *Scorekeeper {
	if log == nil {
		log = zap.NewNop()
	}
	if retries < 0 {
		retries = 0
	}
	k := &Scorekeeper{
		store:   store,
		log:     log,
		retries: retries,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 100 * time.Millisecond
			b.MaxInterval = time.Second
			return b
		},
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Credit adds delta to player's cumulative score, retrying transient store failures.
func (k *Scorekeeper) Credit(ctx context.Context, player string, delta int) error {
	attempt := 0
	op := func() error {
		attempt++
		return k.apply(ctx, player, delta)
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(k.newBackOff(), uint64(k.retries)), ctx)
	notify := func(err error, wait time.Duration) {
		k.log.Warn("leaderboard credit failed, retrying",
			zap.String("player", player), zap.Int("delta", delta),
			zap.Int("attempt", attempt), zap.Duration("wait", wait), zap.Error(err))
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return fmt.Errorf("credit %d to %q: %w", delta, player, err)
	}
	return nil
}

func (k *Scorekeeper) apply(ctx context.Context, player string, delta int) error {
	if inc, ok := k.store.(ScoreIncrementer); ok {
		return inc.Increment(ctx, player, delta)
	}

	unlock := k.locks.Lock(player)
	defer unlock()

	rows, err := k.store.Select(ctx, LeaderboardFilter{Player: player})
	if err != nil {
		return err
	}
	score := delta
	if len(rows) > 0 {
		score += rows[0].Score
	}
	return k.store.Upsert(ctx, domain.LeaderboardEntry{Player: player, Score: score})
}

// Load reads the whole leaderboard.
func (k *Scorekeeper) Load(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	return k.store.Select(ctx, LeaderboardFilter{})
}

// keyedMutex hands out one mutex per key and forgets keys nobody holds.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func (m *keyedMutex) Lock(key string) (unlock func()) {
	m.mu.Lock()
	if m.locks == nil {
		m.locks = make(map[string]*keyedLock)
	}
	l, ok := m.locks[key]
	if !ok {
		l = &keyedLock{}
		m.locks[key] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, key)
		}
		m.mu.Unlock()
	}
}
