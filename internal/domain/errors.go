package domain

import "errors"

var (
	// ErrEmptyName is returned when a rename carries no visible characters.
	ErrEmptyName = errors.New("display name is empty")
	// ErrNameTooLong is returned when a rename exceeds the configured length.
	ErrNameTooLong = errors.New("display name is too long")
	// ErrSessionNotFound is returned when an action names a session that is not connected.
	ErrSessionNotFound = errors.New("session not found")
	// ErrCorpusEmpty indicates a puzzle corpus source produced no usable entries.
	ErrCorpusEmpty = errors.New("puzzle corpus is empty")
	// ErrStoreUnavailable indicates the leaderboard store could not be reached.
	ErrStoreUnavailable = errors.New("leaderboard store unavailable")
)
