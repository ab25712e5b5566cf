package model

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

const (
	// MemorySearchLimit is the number of facts retrieved per turn
	MemorySearchLimit = 5

	// EmbeddingDimension is the vector size requested from the embedding model
	// and declared on vector indexes.
	EmbeddingDimension = 768

	// DefaultUserID is used when no identity is configured
	DefaultUserID UserID = "default_user"
)

// UserID scopes both memory retrieval and memory write-back
type UserID string

func (id UserID) String() string {
	return string(id)
}

// Validate checks that the user ID is usable as a storage key
func (id UserID) Validate() error {
	if id == "" {
		return goerr.New("user ID is required")
	}
	return nil
}

// MemoryID is a UUID-based identifier for Memory
type MemoryID string

// NewMemoryID generates a new UUID v4 MemoryID
func NewMemoryID() MemoryID {
	return MemoryID(uuid.New().String())
}

// Memory is a stored fact about a user. Score is only populated by
// similarity searches and holds cosine similarity (higher is closer).
type Memory struct {
	ID        MemoryID
	UserID    UserID
	Claim     string
	Embedding []float32
	Score     float64
	CreatedAt time.Time
}

// Fact is a retrieved memory as seen by the conversation loop
type Fact struct {
	Text string
}

// MemoryMessage is the role/content pair accepted by the memory index when
// incorporating a conversation. Role is "user" or "assistant".
type MemoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToMemoryMessages converts transcript turns into the memory message schema,
// preserving order and text.
func ToMemoryMessages(turns []Turn) []MemoryMessage {
	messages := make([]MemoryMessage, len(turns))
	for i, turn := range turns {
		messages[i] = MemoryMessage{
			Role:    turn.Role.String(),
			Content: turn.Text,
		}
	}
	return messages
}

// FromMemoryMessages is the inverse of ToMemoryMessages. Unknown roles are
// rejected.
func FromMemoryMessages(messages []MemoryMessage) ([]Turn, error) {
	turns := make([]Turn, len(messages))
	for i, msg := range messages {
		role := Role(msg.Role)
		if err := role.Validate(); err != nil {
			return nil, goerr.Wrap(err, "invalid memory message", goerr.V("index", i))
		}
		turns[i] = Turn{Role: role, Text: msg.Content}
	}
	return turns, nil
}

// FactTexts extracts the text of each fact
func FactTexts(facts []Fact) []string {
	texts := make([]string, len(facts))
	for i, f := range facts {
		texts[i] = f.Text
	}
	return texts
}

// CosineSimilarity returns the cosine similarity of two vectors, or 0 when
// their lengths differ or either is a zero vector.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}

	return dot / denom
}

// ToFloat32 converts an embedding returned by an LLM client
func ToFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}
