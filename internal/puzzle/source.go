// Package puzzle draws scrambled-word questions and scores correct answers by rank.
package puzzle

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"acakata/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// CorpusProvider supplies the words questions are drawn from.
type CorpusProvider interface {
	Corpus(ctx context.Context) ([]domain.PuzzleEntry, error)
}

// maxShuffles bounds random retries before the deterministic swap kicks in.
const maxShuffles = 8

// Source draws questions from a corpus provider, falling back to the built-in corpus
// whenever the provider fails or returns nothing.
type Source struct {
	provider CorpusProvider
	fallback []domain.PuzzleEntry
	scoring  Scoring
	log      *zap.Logger

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSource(provider CorpusProvider, scoring Scoring, log *zap.Logger) *Source {
	return NewSourceWithRand(provider, scoring, log, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewSourceWithRand is used by tests that need a reproducible draw sequence.
func NewSourceWithRand(provider CorpusProvider, scoring Scoring, log *zap.Logger, rnd *rand.Rand) *Source {
	if log == nil {
		log = zap.NewNop()
	}
	return &Source{
		provider: provider,
		fallback: DefaultCorpus(),
		scoring:  scoring,
		log:      log,
		rnd:      rnd,
	}
}

// Draw picks a random corpus entry and scrambles its letters.
func (s *Source) Draw(ctx context.Context) domain.Question {
	var entries []domain.PuzzleEntry
	if s.provider != nil {
		loaded, err := s.provider.Corpus(ctx)
		if err != nil {
			s.log.Warn("corpus unavailable, using built-in words", zap.Error(err))
		}
		entries = loaded
	}
	if len(entries) == 0 {
		entries = s.fallback
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entry := entries[s.rnd.Intn(len(entries))]
	word := Normalize(entry.Word)
	return domain.Question{
		Scrambled: scramble(word, s.rnd),
		Hint:      entry.Hint,
		Answer:    word,
	}
}

// ScoreForRank delegates to the configured schedule.
func (s *Source) ScoreForRank(rank int) int {
	return s.scoring.ScoreForRank(rank)
}

// AnsweredBefore reports whether player already has an attempt this round (exact match).
func AnsweredBefore(attempts []domain.AnswerAttempt, player string) bool {
	for _, attempt := range attempts {
		if attempt.Player == player {
			return true
		}
	}
	return false
}

// Normalize trims and upper-cases a word or guess so the two compare directly.
func Normalize(s string) string {
	return cases.Upper(language.Und).String(strings.TrimSpace(s))
}

// scramble returns a permutation of word that differs from word whenever the word
// contains at least two distinct letters.
func scramble(word string, rnd *rand.Rand) string {
	runes := []rune(word)
	pivot := firstDistinct(runes)
	if pivot < 0 {
		return word
	}
	shuffled := make([]rune, len(runes))
	for i := 0; i < maxShuffles; i++ {
		copy(shuffled, runes)
		rnd.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		if out := string(shuffled); out != word {
			return out
		}
	}
	copy(shuffled, runes)
	shuffled[0], shuffled[pivot] = shuffled[pivot], shuffled[0]
	return string(shuffled)
}

// firstDistinct returns the index of the first rune differing from runes[0], or -1.
func firstDistinct(runes []rune) int {
	for i := 1; i < len(runes); i++ {
		if runes[i] != runes[0] {
			return i
		}
	}
	return -1
}
