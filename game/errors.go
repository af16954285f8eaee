package game

import "errors"

// Failure categories for game operations. Callers match with errors.Is and
// map them to their own surface (the HTTP layer maps to status codes).
var (
	// ErrNotFound means the game or the named player does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState means the operation is not legal in the game's current
	// state, e.g. scoring a finished game or acting on a stale round.
	ErrInvalidState = errors.New("invalid state")

	// ErrConflict means the operation already happened, e.g. a second score
	// submission for the same round.
	ErrConflict = errors.New("conflict")

	// ErrValidation means the input itself is bad: index out of range,
	// win condition outside its bounds.
	ErrValidation = errors.New("validation failed")
)
