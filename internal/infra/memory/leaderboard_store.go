package memory

import (
	"context"
	"sort"
	"sync"

	"acakata/internal/app"
	"acakata/internal/domain"
)

// LeaderboardStore is an in-memory implementation of app.LeaderboardStore.
// It has no atomic increment; credits take the scorekeeper's per-player
// read-add-upsert path.
type LeaderboardStore struct {
	mu     sync.RWMutex
	scores map[string]int
}

func NewLeaderboardStore() *LeaderboardStore {
	return &LeaderboardStore{scores: make(map[string]int)}
}

func (s *LeaderboardStore) Select(_ context.Context, filter app.LeaderboardFilter) ([]domain.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if filter.Player != "" {
		score, ok := s.scores[filter.Player]
		if !ok {
			return nil, nil
		}
		return []domain.LeaderboardEntry{{Player: filter.Player, Score: score}}, nil
	}

	rows := make([]domain.LeaderboardEntry, 0, len(s.scores))
	for player, score := range s.scores {
		rows = append(rows, domain.LeaderboardEntry{Player: player, Score: score})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Player < rows[j].Player })
	return rows, nil
}

func (s *LeaderboardStore) Upsert(_ context.Context, entry domain.LeaderboardEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores[entry.Player] = entry.Score
	return nil
}
