package postgres

import (
	"context"
	"fmt"

	"acakata/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// CorpusLoader loads puzzle words from the puzzles table.
type CorpusLoader struct {
	pool *pgxpool.Pool
}

func NewCorpusLoader(pool *pgxpool.Pool) *CorpusLoader {
	return &CorpusLoader{pool: pool}
}

func (l *CorpusLoader) LoadCorpus(ctx context.Context) ([]domain.PuzzleEntry, error) {
	rows, err := l.pool.Query(ctx, `SELECT word, hint FROM puzzles ORDER BY word`)
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}
	defer rows.Close()

	var entries []domain.PuzzleEntry
	for rows.Next() {
		var e domain.PuzzleEntry
		if err := rows.Scan(&e.Word, &e.Hint); err != nil {
			return nil, fmt.Errorf("scan puzzle: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}
	if len(entries) == 0 {
		return nil, domain.ErrCorpusEmpty
	}
	return entries, nil
}

// SeedCorpus upserts entries into the puzzles table in one batch and returns how many were written.
func SeedCorpus(ctx context.Context, pool *pgxpool.Pool, entries []domain.PuzzleEntry) (int, error) {
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`INSERT INTO puzzles (word, hint) VALUES ($1, $2)
			ON CONFLICT (word) DO UPDATE SET hint = EXCLUDED.hint`, e.Word, e.Hint)
	}
	results := pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := range entries {
		if _, err := results.Exec(); err != nil {
			return i, fmt.Errorf("seed %q: %w", entries[i].Word, err)
		}
	}
	return len(entries), nil
}
