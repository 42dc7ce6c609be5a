package domain

import "strings"

// PuzzleEntry is one word of the corpus together with its category hint.
type PuzzleEntry struct {
	Word string `json:"word" yaml:"word"`
	Hint string `json:"hint" yaml:"hint"`
}

// Question is the puzzle active for one round. Answer never leaves the server.
type Question struct {
	Scrambled string `json:"scrambled"`
	Hint      string `json:"hint"`
	Answer    string `json:"-"`
}

// AnswerAttempt records a correct answer and its 0-based rank within the round.
type AnswerAttempt struct {
	Player string `json:"player"`
	Rank   int    `json:"rank"`
}

// ChatMessage is one line of the shared chat log.
type ChatMessage struct {
	Player string `json:"player"`
	Text   string `json:"text"`
}

// LeaderboardEntry is a persistent cumulative score row, keyed by exact player name.
type LeaderboardEntry struct {
	Player string `json:"player"`
	Score  int    `json:"score"`
}

// RankedEntry is a leaderboard row as presented to clients.
type RankedEntry struct {
	Player string `json:"player"`
	Score  int    `json:"score"`
	Online bool   `json:"online"`
}

// RoomSnapshot is a consistent copy of everything a client renders.
type RoomSnapshot struct {
	Question    Question      `json:"question"`
	Timer       int           `json:"timer"`
	Remaining   int           `json:"remaining"`
	Leaderboard []RankedEntry `json:"leaderboard"`
	Online      []string      `json:"online"`
	Messages    []ChatMessage `json:"messages"`
}

// Change enumerates the room sub-collections touched by a mutation.
type Change uint8

const (
	ChangeMessages Change = 1 << iota
	ChangeTimer
	ChangeQuestion
	ChangeLeaderboard
	ChangeOnline

	ChangeAll = ChangeMessages | ChangeTimer | ChangeQuestion | ChangeLeaderboard | ChangeOnline
)

// Has reports whether every flag in other is set.
func (c Change) Has(other Change) bool {
	return c&other == other && other != 0
}

func (c Change) String() string {
	if c == 0 {
		return "none"
	}
	names := []string{"messages", "timer", "question", "leaderboard", "online"}
	var parts []string
	for i, name := range names {
		if c&(1<<i) != 0 {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, "|")
}

// Update is what subscribers receive: the flags that changed plus the state right after.
type Update struct {
	Changes  Change
	Snapshot RoomSnapshot
}
