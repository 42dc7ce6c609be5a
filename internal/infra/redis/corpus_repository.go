package redis

import (
	"context"
	"math/rand"
	"sort"
	"time"

	"acakata/internal/domain"
	"acakata/internal/infra/memory"
	"acakata/internal/puzzle"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const corpusKey = "acakata:corpus"

// CorpusRepository caches the puzzle corpus in Redis and falls back to a loader on cache miss.
// Entries are stored as: HSET acakata:corpus {word} {hint}
type CorpusRepository struct {
	client *redis.Client
	loader memory.CorpusLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewCorpusRepository(client *redis.Client, loader memory.CorpusLoader, ttl time.Duration) *CorpusRepository {
	return &CorpusRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Corpus implements puzzle.CorpusProvider.
func (r *CorpusRepository) Corpus(ctx context.Context) ([]domain.PuzzleEntry, error) {
	if entries, ok := r.cached(ctx); ok {
		return entries, nil
	}

	result, err, _ := r.sf.Do(corpusKey, func() (interface{}, error) {
		// Another caller may have filled the cache meanwhile.
		if entries, ok := r.cached(ctx); ok {
			return entries, nil
		}

		entries, err := r.loader.LoadCorpus(ctx)
		if err != nil {
			return nil, err
		}
		entries, err = puzzle.Clean(entries)
		if err != nil {
			return nil, err
		}

		pipe := r.client.TxPipeline()
		pipe.Del(ctx, corpusKey)
		for _, e := range entries {
			pipe.HSet(ctx, corpusKey, e.Word, e.Hint)
		}
		if ttl := r.ttlWithJitter(); ttl > 0 {
			pipe.Expire(ctx, corpusKey, ttl)
		}
		// best effort: the loaded corpus is served even if caching fails
		_, _ = pipe.Exec(ctx)

		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.PuzzleEntry), nil
}

func (r *CorpusRepository) cached(ctx context.Context) ([]domain.PuzzleEntry, bool) {
	hints, err := r.client.HGetAll(ctx, corpusKey).Result()
	if err != nil || len(hints) == 0 {
		return nil, false
	}
	entries := make([]domain.PuzzleEntry, 0, len(hints))
	for word, hint := range hints {
		entries = append(entries, domain.PuzzleEntry{Word: word, Hint: hint})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Word < entries[j].Word })
	return entries, true
}

func (r *CorpusRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
