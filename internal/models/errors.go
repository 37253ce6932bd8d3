package models

import "errors"

// Error kinds returned by the dispute core. Callers match them with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrNotAuthorized     = errors.New("not authorized")
	ErrInvalidState      = errors.New("invalid state for this action")
	ErrOpponentNotFound  = errors.New("opponent not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrSelfChallenge     = errors.New("cannot challenge yourself")
	ErrProjectionFailure = errors.New("leaderboard projection failed")

	// Storage-level, never returned past the service layer.
	ErrConflict  = errors.New("concurrent modification")
	ErrDuplicate = errors.New("duplicate key")
)
