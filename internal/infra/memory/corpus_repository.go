package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"acakata/internal/domain"
	"acakata/internal/puzzle"
	"golang.org/x/sync/singleflight"
)

// CorpusLoader fetches puzzle words from a backing store (YAML file, Postgres).
type CorpusLoader interface {
	LoadCorpus(ctx context.Context) ([]domain.PuzzleEntry, error)
}

// CorpusRepository caches the corpus with a TTL so round rollovers do not hit the loader.
type CorpusRepository struct {
	loader CorpusLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	entries   []domain.PuzzleEntry
	expiresAt time.Time
}

func NewCorpusRepository(loader CorpusLoader, ttl time.Duration) *CorpusRepository {
	return &CorpusRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Corpus implements puzzle.CorpusProvider. A failed reload keeps serving the stale
// copy when there is one.
func (r *CorpusRepository) Corpus(ctx context.Context) ([]domain.PuzzleEntry, error) {
	if entries, ok := r.cached(); ok {
		return entries, nil
	}

	result, err, _ := r.sf.Do("corpus", func() (interface{}, error) {
		if entries, ok := r.cached(); ok {
			return entries, nil
		}

		entries, err := r.loader.LoadCorpus(ctx)
		if err == nil {
			entries, err = puzzle.Clean(entries)
		}
		if err != nil {
			r.mu.RLock()
			stale := r.entries
			r.mu.RUnlock()
			if len(stale) > 0 {
				return stale, nil
			}
			return nil, err
		}

		r.mu.Lock()
		r.entries = entries
		r.expiresAt = r.clock().Add(r.ttlWithJitter())
		r.mu.Unlock()
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.PuzzleEntry), nil
}

func (r *CorpusRepository) cached() ([]domain.PuzzleEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.entries) > 0 && r.expiresAt.After(r.clock()) {
		return r.entries, true
	}
	return nil, false
}

func (r *CorpusRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticCorpusLoader serves a fixed word list (built-in corpus, YAML file, tests).
type StaticCorpusLoader struct {
	entries []domain.PuzzleEntry
}

func NewStaticCorpusLoader(entries []domain.PuzzleEntry) *StaticCorpusLoader {
	return &StaticCorpusLoader{entries: entries}
}

func (l *StaticCorpusLoader) LoadCorpus(_ context.Context) ([]domain.PuzzleEntry, error) {
	if len(l.entries) == 0 {
		return nil, domain.ErrCorpusEmpty
	}
	return l.entries, nil
}
