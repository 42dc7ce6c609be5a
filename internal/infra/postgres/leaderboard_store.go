package postgres

import (
	"context"
	"errors"
	"fmt"

	"acakata/internal/app"
	"acakata/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// LeaderboardStore persists cumulative scores in the leaderboard table.
type LeaderboardStore struct {
	pool *pgxpool.Pool
}

func NewLeaderboardStore(pool *pgxpool.Pool) *LeaderboardStore {
	return &LeaderboardStore{pool: pool}
}

func (s *LeaderboardStore) Select(ctx context.Context, filter app.LeaderboardFilter) ([]domain.LeaderboardEntry, error) {
	if filter.Player != "" {
		var entry domain.LeaderboardEntry
		err := s.pool.QueryRow(ctx, `SELECT player, score FROM leaderboard WHERE player=$1`, filter.Player).
			Scan(&entry.Player, &entry.Score)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: select score: %v", domain.ErrStoreUnavailable, err)
		}
		return []domain.LeaderboardEntry{entry}, nil
	}

	rows, err := s.pool.Query(ctx, `SELECT player, score FROM leaderboard ORDER BY score DESC, player`)
	if err != nil {
		return nil, fmt.Errorf("%w: select leaderboard: %v", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var entries []domain.LeaderboardEntry
	for rows.Next() {
		var entry domain.LeaderboardEntry
		if err := rows.Scan(&entry.Player, &entry.Score); err != nil {
			return nil, fmt.Errorf("scan leaderboard: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read leaderboard: %v", domain.ErrStoreUnavailable, err)
	}
	return entries, nil
}

func (s *LeaderboardStore) Upsert(ctx context.Context, entry domain.LeaderboardEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO leaderboard (player, score) VALUES ($1, $2)
		ON CONFLICT (player) DO UPDATE SET score = EXCLUDED.score, updated_at = now()`,
		entry.Player, entry.Score)
	if err != nil {
		return fmt.Errorf("%w: upsert score: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Increment implements app.ScoreIncrementer; the addition happens inside the upsert.
func (s *LeaderboardStore) Increment(ctx context.Context, player string, delta int) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO leaderboard (player, score) VALUES ($1, $2)
		ON CONFLICT (player) DO UPDATE SET score = leaderboard.score + EXCLUDED.score, updated_at = now()`,
		player, delta)
	if err != nil {
		return fmt.Errorf("%w: increment score: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}
