package model

import (
	"github.com/m-mizutani/goerr/v2"
)

// Role identifies the author of a conversation turn
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) String() string {
	return string(r)
}

// Validate checks that the role is one of the known roles
func (r Role) Validate() error {
	switch r {
	case RoleUser, RoleAssistant:
		return nil
	default:
		return goerr.New("invalid role", goerr.V("role", string(r)))
	}
}

// Turn is a single utterance in a conversation. A turn is never modified
// after it has been appended to a Transcript.
type Turn struct {
	Role Role
	Text string
}

// NewUserTurn creates a Turn authored by the user
func NewUserTurn(text string) Turn {
	return Turn{Role: RoleUser, Text: text}
}

// NewAssistantTurn creates a Turn authored by the assistant
func NewAssistantTurn(text string) Turn {
	return Turn{Role: RoleAssistant, Text: text}
}

// Transcript is the append-only ordered history of one conversation session.
// It is not safe for concurrent use; the owner serialises access.
type Transcript struct {
	turns []Turn
}

// NewTranscript returns an empty transcript
func NewTranscript() *Transcript {
	return &Transcript{}
}

// Append adds a turn at the end of the transcript
func (t *Transcript) Append(turn Turn) {
	t.turns = append(t.turns, turn)
}

// Len returns the number of turns
func (t *Transcript) Len() int {
	return len(t.turns)
}

// Turns returns a copy of all turns in insertion order
func (t *Transcript) Turns() []Turn {
	copied := make([]Turn, len(t.turns))
	copy(copied, t.turns)
	return copied
}

// Last returns the most recent turn. ok is false for an empty transcript.
func (t *Transcript) Last() (turn Turn, ok bool) {
	if len(t.turns) == 0 {
		return Turn{}, false
	}
	return t.turns[len(t.turns)-1], true
}
