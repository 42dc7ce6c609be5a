package redis

import (
	"context"
	"errors"
	"fmt"

	"acakata/internal/app"
	"acakata/internal/domain"
	"github.com/redis/go-redis/v9"
)

const leaderboardKey = "acakata:leaderboard"

// LeaderboardStore keeps cumulative scores in one sorted set (member = player, score = points).
type LeaderboardStore struct {
	client *redis.Client
}

func NewLeaderboardStore(client *redis.Client) *LeaderboardStore {
	return &LeaderboardStore{client: client}
}

func (s *LeaderboardStore) Select(ctx context.Context, filter app.LeaderboardFilter) ([]domain.LeaderboardEntry, error) {
	if filter.Player != "" {
		score, err := s.client.ZScore(ctx, leaderboardKey, filter.Player).Result()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: zscore: %v", domain.ErrStoreUnavailable, err)
		}
		return []domain.LeaderboardEntry{{Player: filter.Player, Score: int(score)}}, nil
	}

	rows, err := s.client.ZRevRangeWithScores(ctx, leaderboardKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: zrevrange: %v", domain.ErrStoreUnavailable, err)
	}
	entries := make([]domain.LeaderboardEntry, 0, len(rows))
	for _, z := range rows {
		player, _ := z.Member.(string)
		entries = append(entries, domain.LeaderboardEntry{Player: player, Score: int(z.Score)})
	}
	return entries, nil
}

func (s *LeaderboardStore) Upsert(ctx context.Context, entry domain.LeaderboardEntry) error {
	err := s.client.ZAdd(ctx, leaderboardKey, redis.Z{Score: float64(entry.Score), Member: entry.Player}).Err()
	if err != nil {
		return fmt.Errorf("%w: zadd: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Increment implements app.ScoreIncrementer with ZINCRBY.
func (s *LeaderboardStore) Increment(ctx context.Context, player string, delta int) error {
	if err := s.client.ZIncrBy(ctx, leaderboardKey, float64(delta), player).Err(); err != nil {
		return fmt.Errorf("%w: zincrby: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}
