package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/recall/pkg/domain/interfaces"
	"github.com/secmon-lab/recall/pkg/domain/model"
)

// Memory is an in-process fact repository for development and tests
type Memory struct {
	mu      sync.RWMutex
	entries map[model.UserID]map[model.MemoryID]*model.Memory
}

var _ interfaces.FactRepository = &Memory{}

func New() *Memory {
	return &Memory{
		entries: make(map[model.UserID]map[model.MemoryID]*model.Memory),
	}
}

func copyMemory(m *model.Memory) *model.Memory {
	copied := *m
	if m.Embedding != nil {
		copied.Embedding = make([]float32, len(m.Embedding))
		copy(copied.Embedding, m.Embedding)
	}
	return &copied
}

func (r *Memory) Create(ctx context.Context, user model.UserID, mem *model.Memory) (*model.Memory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, ok := r.entries[user]
	if !ok {
		bucket = make(map[model.MemoryID]*model.Memory)
		r.entries[user] = bucket
	}

	created := copyMemory(mem)
	if created.ID == "" {
		created.ID = model.NewMemoryID()
	}
	created.UserID = user
	created.Score = 0
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now().UTC()
	}

	bucket[created.ID] = created
	return copyMemory(created), nil
}

func (r *Memory) Delete(ctx context.Context, user model.UserID, id model.MemoryID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[user][id]; !ok {
		return goerr.Wrap(interfaces.ErrNotFound, "memory not found",
			goerr.V("user_id", user),
			goerr.V("memory_id", id),
		)
	}

	delete(r.entries[user], id)
	return nil
}

func (r *Memory) List(ctx context.Context, user model.UserID) ([]*model.Memory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bucket := r.entries[user]
	result := make([]*model.Memory, 0, len(bucket))
	for _, m := range bucket {
		result = append(result, copyMemory(m))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

func (r *Memory) FindByEmbedding(ctx context.Context, user model.UserID, embedding []float32, limit int) ([]*model.Memory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bucket := r.entries[user]
	candidates := make([]*model.Memory, 0, len(bucket))
	for _, m := range bucket {
		if len(m.Embedding) == 0 {
			continue
		}
		c := copyMemory(m)
		c.Score = model.CosineSimilarity(embedding, m.Embedding)
		candidates = append(candidates, c)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	if limit < len(candidates) {
		candidates = candidates[:max(limit, 0)]
	}
	return candidates, nil
}

func (r *Memory) Close() error {
	return nil
}
