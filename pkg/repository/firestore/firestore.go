package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/recall/pkg/domain/interfaces"
	"github.com/secmon-lab/recall/pkg/domain/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	usersCollection    = "users"
	memoriesCollection = "memories"
)

// MemoriesCollection is the collection group holding fact documents. Vector
// indexes are declared on it.
const MemoriesCollection = memoriesCollection

// EmbeddingField is the vector field searched by FindNearest
const EmbeddingField = "Embedding"

// memoryDoc is the Firestore document representation of model.Memory.
// Embedding is stored as firestore.Vector32 for FindNearest vector search.
type memoryDoc struct {
	ID        model.MemoryID     `firestore:"ID"`
	UserID    model.UserID       `firestore:"UserID"`
	Claim     string             `firestore:"Claim"`
	Embedding firestore.Vector32 `firestore:"Embedding,omitempty"`
	CreatedAt time.Time          `firestore:"CreatedAt"`
}

func toMemoryDoc(m *model.Memory) *memoryDoc {
	doc := &memoryDoc{
		ID:        m.ID,
		UserID:    m.UserID,
		Claim:     m.Claim,
		CreatedAt: m.CreatedAt,
	}
	if len(m.Embedding) > 0 {
		doc.Embedding = firestore.Vector32(m.Embedding)
	}
	return doc
}

func fromMemoryDoc(d *memoryDoc) *model.Memory {
	m := &model.Memory{
		ID:        d.ID,
		UserID:    d.UserID,
		Claim:     d.Claim,
		CreatedAt: d.CreatedAt,
	}
	if len(d.Embedding) > 0 {
		m.Embedding = []float32(d.Embedding)
	}
	return m
}

// Firestore stores facts under users/{userID}/memories
type Firestore struct {
	client           *firestore.Client
	collectionPrefix string
}

var _ interfaces.FactRepository = &Firestore{}

type Option func(*Firestore)

// WithCollectionPrefix prefixes the top-level collection name
func WithCollectionPrefix(prefix string) Option {
	return func(f *Firestore) {
		f.collectionPrefix = prefix
	}
}

func New(ctx context.Context, projectID, databaseID string, opts ...Option) (*Firestore, error) {
	var (
		client *firestore.Client
		err    error
	)
	if databaseID == "" {
		client, err = firestore.NewClient(ctx, projectID)
	} else {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("projectID", projectID),
			goerr.V("databaseID", databaseID),
		)
	}

	f := &Firestore{client: client}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

func (f *Firestore) Close() error {
	return f.client.Close()
}

func (f *Firestore) memories(user model.UserID) *firestore.CollectionRef {
	return f.client.Collection(f.collectionPrefix + usersCollection).Doc(user.String()).
		Collection(memoriesCollection)
}

func (f *Firestore) Create(ctx context.Context, user model.UserID, mem *model.Memory) (*model.Memory, error) {
	created := *mem
	if created.ID == "" {
		created.ID = model.NewMemoryID()
	}
	created.UserID = user
	created.Score = 0
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now().UTC()
	}

	docRef := f.memories(user).Doc(string(created.ID))
	if _, err := docRef.Set(ctx, toMemoryDoc(&created)); err != nil {
		return nil, goerr.Wrap(err, "failed to create memory", goerr.V("user_id", user))
	}

	return &created, nil
}

func (f *Firestore) Delete(ctx context.Context, user model.UserID, id model.MemoryID) error {
	docRef := f.memories(user).Doc(string(id))

	if _, err := docRef.Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(interfaces.ErrNotFound, "memory not found", goerr.V("memory_id", id))
		}
		return goerr.Wrap(err, "failed to get memory", goerr.V("memory_id", id))
	}

	if _, err := docRef.Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete memory", goerr.V("memory_id", id))
	}
	return nil
}

func (f *Firestore) List(ctx context.Context, user model.UserID) ([]*model.Memory, error) {
	iter := f.memories(user).
		OrderBy("CreatedAt", firestore.Desc).
		Documents(ctx)
	defer iter.Stop()

	memories := make([]*model.Memory, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate memories")
		}

		var d memoryDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal memory")
		}
		memories = append(memories, fromMemoryDoc(&d))
	}

	return memories, nil
}

// FindByEmbedding runs a FindNearest query. Firestore does not return the
// distance by default, so the score is recomputed from the stored vector.
func (f *Firestore) FindByEmbedding(ctx context.Context, user model.UserID, embedding []float32, limit int) ([]*model.Memory, error) {
	if limit <= 0 {
		return []*model.Memory{}, nil
	}

	vq := f.memories(user).
		FindNearest(EmbeddingField, firestore.Vector32(embedding), limit, firestore.DistanceMeasureCosine, nil)

	iter := vq.Documents(ctx)
	defer iter.Stop()

	memories := make([]*model.Memory, 0, limit)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate memory vector search results")
		}

		var d memoryDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal memory from vector search")
		}

		m := fromMemoryDoc(&d)
		m.Score = model.CosineSimilarity(embedding, m.Embedding)
		memories = append(memories, m)
	}

	return memories, nil
}
