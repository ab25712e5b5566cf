package qdrant

import (
	"context"
	"sort"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/qdrant/go-client/qdrant"
	"github.com/secmon-lab/recall/pkg/domain/interfaces"
	"github.com/secmon-lab/recall/pkg/domain/model"
)

const (
	payloadUserID    = "user_id"
	payloadClaim     = "claim"
	payloadCreatedAt = "created_at"

	// upper bound of points returned by List
	listLimit = 10000
)

// Config is the connection setting of a Qdrant server
type Config struct {
	Host       string
	Port       int
	APIKey     string `masq:"secret"`
	UseTLS     bool
	Collection string
	Dimension  int
}

// Qdrant stores all facts in one collection and scopes them by a user_id
// payload filter.
type Qdrant struct {
	client     *qdrant.Client
	collection string
}

var _ interfaces.FactRepository = &Qdrant{}

// New connects to Qdrant and creates the collection when missing
func New(ctx context.Context, cfg Config) (*Qdrant, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create qdrant client", goerr.V("host", cfg.Host))
	}

	q := &Qdrant{client: client, collection: cfg.Collection}
	if err := q.ensureCollection(ctx, cfg.Dimension); err != nil {
		_ = client.Close()
		return nil, err
	}
	return q, nil
}

func (q *Qdrant) ensureCollection(ctx context.Context, dimension int) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return goerr.Wrap(err, "failed to check collection", goerr.V("collection", q.collection))
	}
	if exists {
		return nil
	}

	if err := q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	}); err != nil {
		return goerr.Wrap(err, "failed to create collection", goerr.V("collection", q.collection))
	}

	if _, err := q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: q.collection,
		FieldName:      payloadUserID,
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	}); err != nil {
		return goerr.Wrap(err, "failed to create user_id index", goerr.V("collection", q.collection))
	}
	return nil
}

func (q *Qdrant) Close() error {
	return q.client.Close()
}

func userFilter(user model.UserID) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch(payloadUserID, user.String()),
		},
	}
}

func (q *Qdrant) Create(ctx context.Context, user model.UserID, mem *model.Memory) (*model.Memory, error) {
	created := *mem
	if created.ID == "" {
		created.ID = model.NewMemoryID()
	}
	created.UserID = user
	created.Score = 0
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now().UTC()
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewID(string(created.ID)),
				Vectors: qdrant.NewVectors(created.Embedding...),
				Payload: qdrant.NewValueMap(map[string]any{
					payloadUserID:    user.String(),
					payloadClaim:     created.Claim,
					payloadCreatedAt: created.CreatedAt.Format(time.RFC3339Nano),
				}),
			},
		},
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to upsert point", goerr.V("user_id", user))
	}
	return &created, nil
}

func (q *Qdrant) FindByEmbedding(ctx context.Context, user model.UserID, embedding []float32, limit int) ([]*model.Memory, error) {
	if limit <= 0 {
		return []*model.Memory{}, nil
	}

	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(embedding...),
		Filter:         userFilter(user),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query points", goerr.V("user_id", user))
	}

	memories := make([]*model.Memory, 0, len(points))
	for _, p := range points {
		m := fromPayload(p.GetId(), p.GetPayload(), p.GetVectors())
		m.Score = float64(p.GetScore())
		memories = append(memories, m)
	}
	return memories, nil
}

func (q *Qdrant) List(ctx context.Context, user model.UserID) ([]*model.Memory, error) {
	points, err := q.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: q.collection,
		Filter:         userFilter(user),
		Limit:          qdrant.PtrOf(uint32(listLimit)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to scroll points", goerr.V("user_id", user))
	}

	memories := make([]*model.Memory, 0, len(points))
	for _, p := range points {
		memories = append(memories, fromPayload(p.GetId(), p.GetPayload(), p.GetVectors()))
	}
	sort.Slice(memories, func(i, j int) bool {
		return memories[i].CreatedAt.After(memories[j].CreatedAt)
	})
	return memories, nil
}

func (q *Qdrant) Delete(ctx context.Context, user model.UserID, id model.MemoryID) error {
	points, err := q.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: q.collection,
		Ids:            []*qdrant.PointId{qdrant.NewID(string(id))},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return goerr.Wrap(err, "failed to get point", goerr.V("memory_id", id))
	}
	if len(points) == 0 || points[0].GetPayload()[payloadUserID].GetStringValue() != user.String() {
		return goerr.Wrap(interfaces.ErrNotFound, "memory not found", goerr.V("memory_id", id))
	}

	if _, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelector(qdrant.NewID(string(id))),
	}); err != nil {
		return goerr.Wrap(err, "failed to delete point", goerr.V("memory_id", id))
	}
	return nil
}

func fromPayload(id *qdrant.PointId, payload map[string]*qdrant.Value, vectors *qdrant.VectorsOutput) *model.Memory {
	createdAt, _ := time.Parse(time.RFC3339Nano, payload[payloadCreatedAt].GetStringValue())
	return &model.Memory{
		ID:        model.MemoryID(id.GetUuid()),
		UserID:    model.UserID(payload[payloadUserID].GetStringValue()),
		Claim:     payload[payloadClaim].GetStringValue(),
		Embedding: vectors.GetVector().GetData(),
		CreatedAt: createdAt,
	}
}
