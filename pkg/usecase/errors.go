package usecase

import "errors"

// Sentinel errors for use case layer
var (
	// ErrEmptyTurn is returned when the user input is empty after trimming.
	// Nothing is recorded and no collaborator is called.
	ErrEmptyTurn = errors.New("empty user turn")

	// ErrGenerationFailed marks a turn whose reply could not be produced
	ErrGenerationFailed = errors.New("generation failed")

	// ErrIdentityMismatch is returned when a session is reused with another user
	ErrIdentityMismatch = errors.New("session is bound to another user")
)

// Context keys for error values
const (
	UserIDKey    = "user_id"
	SessionIDKey = "session_id"
	TurnCountKey = "turn_count"
)
