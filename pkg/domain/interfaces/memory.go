package interfaces

import (
	"context"

	"github.com/secmon-lab/recall/pkg/domain/model"
)

// MemoryIndex is the long-term memory capability consumed by the
// conversation loop.
type MemoryIndex interface {
	// Search returns up to limit facts about user, most relevant first.
	// An unknown user yields an empty result, not an error.
	Search(ctx context.Context, query string, user model.UserID, limit int) ([]model.Fact, error)

	// Add incorporates a message sequence into the user's memory. It may
	// extract, deduplicate or drop content at its discretion.
	Add(ctx context.Context, messages []model.MemoryMessage, user model.UserID) error
}

// FactRepository persists embedded facts per user
type FactRepository interface {
	// Create stores a fact. ID and CreatedAt are assigned when empty.
	Create(ctx context.Context, user model.UserID, memory *model.Memory) (*model.Memory, error)

	// FindByEmbedding returns up to limit facts ordered by descending cosine
	// similarity, with Score populated.
	FindByEmbedding(ctx context.Context, user model.UserID, embedding []float32, limit int) ([]*model.Memory, error)

	// List returns all facts of a user, newest first
	List(ctx context.Context, user model.UserID) ([]*model.Memory, error)

	// Delete removes a fact
	Delete(ctx context.Context, user model.UserID, id model.MemoryID) error

	Close() error
}
