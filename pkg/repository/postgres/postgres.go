package postgres

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/recall/pkg/domain/interfaces"
	"github.com/secmon-lab/recall/pkg/domain/model"
)

// Postgres stores facts in a pgvector-enabled PostgreSQL table
type Postgres struct {
	pool *pgxpool.Pool
}

var _ interfaces.FactRepository = &Postgres{}

// New connects to databaseURL and creates the schema when missing
func New(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to connect postgres")
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &Postgres{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector;`,
		`CREATE TABLE IF NOT EXISTS recall_memories (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			claim TEXT NOT NULL,
			embedding vector NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_recall_memories_user_created ON recall_memories (user_id, created_at DESC);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return goerr.Wrap(err, "failed to initialize schema", goerr.V("stmt", stmt))
		}
	}
	return nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) Create(ctx context.Context, user model.UserID, mem *model.Memory) (*model.Memory, error) {
	created := *mem
	if created.ID == "" {
		created.ID = model.NewMemoryID()
	}
	created.UserID = user
	created.Score = 0
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now().UTC()
	}

	_, err := p.pool.Exec(ctx,
		`INSERT INTO recall_memories (id, user_id, claim, embedding, created_at)
		 VALUES ($1, $2, $3, $4::vector, $5)`,
		string(created.ID),
		user.String(),
		created.Claim,
		encodeVector(created.Embedding),
		created.CreatedAt,
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to insert memory", goerr.V("user_id", user))
	}
	return &created, nil
}

func (p *Postgres) FindByEmbedding(ctx context.Context, user model.UserID, embedding []float32, limit int) ([]*model.Memory, error) {
	if limit <= 0 {
		return []*model.Memory{}, nil
	}

	rows, err := p.pool.Query(ctx,
		`SELECT id, user_id, claim, embedding::text, created_at, 1 - (embedding <=> $2::vector) AS score
		 FROM recall_memories
		 WHERE user_id = $1 AND vector_dims(embedding) = vector_dims($2::vector)
		 ORDER BY embedding <=> $2::vector
		 LIMIT $3`,
		user.String(),
		encodeVector(embedding),
		limit,
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query memories", goerr.V("user_id", user))
	}
	return scanMemories(rows, true)
}

func (p *Postgres) List(ctx context.Context, user model.UserID) ([]*model.Memory, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, user_id, claim, embedding::text, created_at
		 FROM recall_memories WHERE user_id = $1 ORDER BY created_at DESC`,
		user.String(),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list memories", goerr.V("user_id", user))
	}
	return scanMemories(rows, false)
}

func (p *Postgres) Delete(ctx context.Context, user model.UserID, id model.MemoryID) error {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM recall_memories WHERE user_id = $1 AND id = $2`,
		user.String(), string(id),
	)
	if err != nil {
		return goerr.Wrap(err, "failed to delete memory", goerr.V("memory_id", id))
	}
	if tag.RowsAffected() == 0 {
		return goerr.Wrap(interfaces.ErrNotFound, "memory not found", goerr.V("memory_id", id))
	}
	return nil
}

func scanMemories(rows pgx.Rows, withScore bool) ([]*model.Memory, error) {
	defer rows.Close()

	memories := make([]*model.Memory, 0)
	for rows.Next() {
		var (
			m       model.Memory
			id      string
			userID  string
			embText string
			err     error
		)
		if withScore {
			err = rows.Scan(&id, &userID, &m.Claim, &embText, &m.CreatedAt, &m.Score)
		} else {
			err = rows.Scan(&id, &userID, &m.Claim, &embText, &m.CreatedAt)
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan memory row")
		}

		m.ID = model.MemoryID(id)
		m.UserID = model.UserID(userID)
		if m.Embedding, err = decodeVector(embText); err != nil {
			return nil, goerr.Wrap(err, "failed to decode embedding", goerr.V("memory_id", id))
		}
		memories = append(memories, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate memory rows")
	}
	return memories, nil
}

// encodeVector renders v in pgvector text format, e.g. [1,2.5,3]
func encodeVector(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

func decodeVector(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, errors.New("malformed vector literal")
	}
	body := strings.TrimSpace(s[1 : len(s)-1])
	if body == "" {
		return []float32{}, nil
	}

	parts := strings.Split(body, ",")
	out := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, err
		}
		out[i] = float32(f)
	}
	return out, nil
}
