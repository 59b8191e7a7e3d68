package matcherrors

import "errors"

// Matchmaking sentinel errors. Used by both matchmaking and ws packages
// to avoid circular imports.
var (
	ErrAlreadyInMatch  = errors.New("already in a match")
	ErrAlreadyQueued   = errors.New("already in a matchmaking queue")
	ErrInvalidGameType = errors.New("invalid game type")
	ErrInvalidDeck     = errors.New("invalid deck list")
	ErrNotInRoom       = errors.New("not in a game room")
)
