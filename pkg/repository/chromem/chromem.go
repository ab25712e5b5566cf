package chromem

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	chromem "github.com/philippgille/chromem-go"
	"github.com/secmon-lab/recall/pkg/domain/interfaces"
	"github.com/secmon-lab/recall/pkg/domain/model"
)

const (
	collectionPrefix = "memories_"

	metaUserID    = "user_id"
	metaCreatedAt = "created_at"
)

// Chromem stores facts in an embedded chromem-go database, one collection
// per user. Embeddings are always supplied by the caller.
type Chromem struct {
	db *chromem.DB
}

var _ interfaces.FactRepository = &Chromem{}

// New creates an in-memory database. When path is not empty the database is
// persisted to that directory.
func New(path string) (*Chromem, error) {
	if path == "" {
		return &Chromem{db: chromem.NewDB()}, nil
	}

	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open chromem database", goerr.V("path", path))
	}
	return &Chromem{db: db}, nil
}

func (c *Chromem) collection(user model.UserID) (*chromem.Collection, error) {
	col, err := c.db.GetOrCreateCollection(collectionPrefix+user.String(), nil, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open collection", goerr.V("user_id", user))
	}
	return col, nil
}

func (c *Chromem) Create(ctx context.Context, user model.UserID, mem *model.Memory) (*model.Memory, error) {
	if len(mem.Embedding) == 0 {
		return nil, goerr.New("embedding is required", goerr.V("user_id", user))
	}

	col, err := c.collection(user)
	if err != nil {
		return nil, err
	}

	created := *mem
	if created.ID == "" {
		created.ID = model.NewMemoryID()
	}
	created.UserID = user
	created.Score = 0
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now().UTC()
	}

	doc := chromem.Document{
		ID:        string(created.ID),
		Content:   created.Claim,
		Embedding: created.Embedding,
		Metadata: map[string]string{
			metaUserID:    user.String(),
			metaCreatedAt: created.CreatedAt.Format(time.RFC3339Nano),
		},
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return nil, goerr.Wrap(err, "failed to add document", goerr.V("user_id", user))
	}

	return &created, nil
}

func (c *Chromem) FindByEmbedding(ctx context.Context, user model.UserID, embedding []float32, limit int) ([]*model.Memory, error) {
	col, err := c.collection(user)
	if err != nil {
		return nil, err
	}

	// chromem rejects nResults larger than the collection
	n := min(limit, col.Count())
	if n <= 0 {
		return []*model.Memory{}, nil
	}

	results, err := col.QueryEmbedding(ctx, embedding, n, nil, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query collection", goerr.V("user_id", user))
	}

	memories := make([]*model.Memory, 0, len(results))
	for _, r := range results {
		m := fromResult(user, r.ID, r.Content, r.Metadata, r.Embedding)
		m.Score = float64(r.Similarity)
		memories = append(memories, m)
	}
	return memories, nil
}

// List is not supported: chromem-go has no document enumeration.
func (c *Chromem) List(ctx context.Context, user model.UserID) ([]*model.Memory, error) {
	return nil, goerr.Wrap(interfaces.ErrNotSupported, "chromem cannot list documents")
}

func (c *Chromem) Delete(ctx context.Context, user model.UserID, id model.MemoryID) error {
	col, err := c.collection(user)
	if err != nil {
		return err
	}

	if _, err := col.GetByID(ctx, string(id)); err != nil {
		return goerr.Wrap(errors.Join(interfaces.ErrNotFound, err), "memory not found", goerr.V("memory_id", id))
	}

	if err := col.Delete(ctx, nil, nil, string(id)); err != nil {
		return goerr.Wrap(err, "failed to delete document", goerr.V("memory_id", id))
	}
	return nil
}

func (c *Chromem) Close() error {
	return nil
}

func fromResult(user model.UserID, id, content string, meta map[string]string, emb []float32) *model.Memory {
	createdAt, _ := time.Parse(time.RFC3339Nano, meta[metaCreatedAt])
	return &model.Memory{
		ID:        model.MemoryID(id),
		UserID:    user,
		Claim:     content,
		Embedding: emb,
		CreatedAt: createdAt,
	}
}
