package memindex_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/recall/pkg/domain/model"
	"github.com/secmon-lab/recall/pkg/repository/memory"
	"github.com/secmon-lab/recall/pkg/service/memindex"
)

// mockLLMSession is a mock gollem Session for testing
type mockLLMSession struct {
	generateFn func(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (*gollem.Response, error)
}

func (s *mockLLMSession) Generate(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (*gollem.Response, error) {
	if s.generateFn != nil {
		return s.generateFn(ctx, input, opts...)
	}
	return &gollem.Response{Texts: []string{`{"facts":[]}`}}, nil
}

func (s *mockLLMSession) Stream(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (<-chan *gollem.Response, error) {
	return nil, errors.New("not supported")
}

func (s *mockLLMSession) GenerateContent(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
	return s.Generate(ctx, input)
}

func (s *mockLLMSession) GenerateStream(ctx context.Context, input ...gollem.Input) (<-chan *gollem.Response, error) {
	return s.Stream(ctx, input)
}

func (s *mockLLMSession) History() (*gollem.History, error) {
	return nil, nil
}

func (s *mockLLMSession) AppendHistory(*gollem.History) error {
	return nil
}

func (s *mockLLMSession) CountToken(ctx context.Context, input ...gollem.Input) (int, error) {
	return 0, nil
}

var _ gollem.Session = (*mockLLMSession)(nil)
var _ gollem.LLMClient = (*mockLLMClient)(nil)

// mockLLMClient returns keyword-based embeddings and scripted extractions
type mockLLMClient struct {
	mu         sync.Mutex
	embedCalls int
	prompts    []string

	facts    []string
	embedErr error
}

// keyword axes of the fake embedding space
var axes = []string{"tea", "coffee", "oslo", "tokyo", "dog", "cat"}

func fakeEmbedding(text string) []float64 {
	v := make([]float64, len(axes)+1)
	lower := strings.ToLower(text)
	for i, k := range axes {
		if strings.Contains(lower, k) {
			v[i] = 1
		}
	}
	v[len(axes)] = 0.01
	return v
}

func (c *mockLLMClient) NewSession(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
	return &mockLLMSession{
		generateFn: func(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (*gollem.Response, error) {
			c.mu.Lock()
			for _, in := range input {
				if text, ok := in.(gollem.Text); ok {
					c.prompts = append(c.prompts, string(text))
				}
			}
			c.mu.Unlock()

			raw, err := json.Marshal(map[string]any{"facts": c.facts})
			if err != nil {
				return nil, err
			}
			return &gollem.Response{Texts: []string{string(raw)}}, nil
		},
	}, nil
}

func (c *mockLLMClient) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.embedCalls++
	if c.embedErr != nil {
		return nil, c.embedErr
	}

	out := make([][]float64, len(input))
	for i, text := range input {
		out[i] = fakeEmbedding(text)
	}
	return out, nil
}

func (c *mockLLMClient) EmbedCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.embedCalls
}

func seed(t *testing.T, repo *memory.Memory, user model.UserID, claims ...string) {
	t.Helper()
	for _, claim := range claims {
		_, err := repo.Create(context.Background(), user, &model.Memory{
			Claim:     claim,
			Embedding: model.ToFloat32(fakeEmbedding(claim)),
		})
		gt.NoError(t, err).Required()
	}
}

func TestIndex_Search(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the most similar facts first", func(t *testing.T) {
		repo := memory.New()
		seed(t, repo, "alice", "Likes tea", "Lives in Oslo", "Has a dog")

		idx, err := memindex.New(repo, &mockLLMClient{}, memindex.WithEmbeddingDimension(len(axes)+1))
		gt.NoError(t, err).Required()
		defer idx.Close()

		facts, err := idx.Search(ctx, "what tea should I buy", "alice", 2)
		gt.NoError(t, err).Required()
		gt.Array(t, facts).Length(2).Required()
		gt.Value(t, facts[0].Text).Equal("Likes tea")
	})

	t.Run("unknown user yields empty result", func(t *testing.T) {
		idx, err := memindex.New(memory.New(), &mockLLMClient{})
		gt.NoError(t, err).Required()

		facts, err := idx.Search(ctx, "tea", "nobody", 5)
		gt.NoError(t, err).Required()
		gt.Array(t, facts).Length(0)
	})

	t.Run("users are isolated", func(t *testing.T) {
		repo := memory.New()
		seed(t, repo, "alice", "Likes tea")

		idx, err := memindex.New(repo, &mockLLMClient{})
		gt.NoError(t, err).Required()

		facts, err := idx.Search(ctx, "tea", "bob", 5)
		gt.NoError(t, err).Required()
		gt.Array(t, facts).Length(0)
	})

	t.Run("min score filters weak matches", func(t *testing.T) {
		repo := memory.New()
		seed(t, repo, "alice", "Likes tea", "Has a dog")

		idx, err := memindex.New(repo, &mockLLMClient{}, memindex.WithMinScore(0.5))
		gt.NoError(t, err).Required()

		facts, err := idx.Search(ctx, "tea", "alice", 5)
		gt.NoError(t, err).Required()
		gt.Array(t, facts).Length(1).Required()
		gt.Value(t, facts[0].Text).Equal("Likes tea")
	})

	t.Run("embedding failure is returned", func(t *testing.T) {
		idx, err := memindex.New(memory.New(), &mockLLMClient{embedErr: errors.New("quota")})
		gt.NoError(t, err).Required()

		_, err = idx.Search(ctx, "tea", "alice", 5)
		gt.Error(t, err)
	})

	t.Run("repeated queries hit the embedding cache", func(t *testing.T) {
		client := &mockLLMClient{}
		idx, err := memindex.New(memory.New(), client)
		gt.NoError(t, err).Required()
		defer idx.Close()

		for range 3 {
			_, err := idx.Search(ctx, "tea", "alice", 5)
			gt.NoError(t, err).Required()
		}
		gt.Value(t, client.EmbedCalls()).Equal(1)
	})

	t.Run("cache can be disabled", func(t *testing.T) {
		client := &mockLLMClient{}
		idx, err := memindex.New(memory.New(), client, memindex.WithCacheBytes(0))
		gt.NoError(t, err).Required()

		for range 2 {
			_, err := idx.Search(ctx, "tea", "alice", 5)
			gt.NoError(t, err).Required()
		}
		gt.Value(t, client.EmbedCalls()).Equal(2)
	})
}

func TestIndex_Add(t *testing.T) {
	ctx := context.Background()
	messages := []model.MemoryMessage{
		{Role: "user", Content: "I love green tea and I live in Oslo"},
		{Role: "assistant", Content: "Nice!"},
	}

	t.Run("extracted facts are stored", func(t *testing.T) {
		repo := memory.New()
		client := &mockLLMClient{facts: []string{"Loves green tea", "Lives in Oslo"}}
		idx, err := memindex.New(repo, client)
		gt.NoError(t, err).Required()

		gt.NoError(t, idx.Add(ctx, messages, "alice")).Required()

		stored, err := repo.List(ctx, "alice")
		gt.NoError(t, err).Required()
		gt.Array(t, stored).Length(2)

		gt.Array(t, client.prompts).Length(1).Required()
		gt.String(t, client.prompts[0]).Contains("user: I love green tea and I live in Oslo")
		gt.String(t, client.prompts[0]).Contains("assistant: Nice!")
	})

	t.Run("known facts are not stored twice", func(t *testing.T) {
		repo := memory.New()
		seed(t, repo, "alice", "Drinks tea daily")
		client := &mockLLMClient{facts: []string{"Loves tea", "loves tea", "Has a cat"}}
		idx, err := memindex.New(repo, client)
		gt.NoError(t, err).Required()

		gt.NoError(t, idx.Add(ctx, messages, "alice")).Required()

		stored, err := repo.List(ctx, "alice")
		gt.NoError(t, err).Required()
		gt.Array(t, stored).Length(2)
	})

	t.Run("nothing to remember", func(t *testing.T) {
		repo := memory.New()
		idx, err := memindex.New(repo, &mockLLMClient{})
		gt.NoError(t, err).Required()

		gt.NoError(t, idx.Add(ctx, messages, "alice")).Required()

		stored, err := repo.List(ctx, "alice")
		gt.NoError(t, err).Required()
		gt.Array(t, stored).Length(0)
	})

	t.Run("empty messages are ignored", func(t *testing.T) {
		client := &mockLLMClient{facts: []string{"x"}}
		idx, err := memindex.New(memory.New(), client)
		gt.NoError(t, err).Required()

		gt.NoError(t, idx.Add(ctx, nil, "alice")).Required()
		gt.Array(t, client.prompts).Length(0)
	})

	t.Run("write then search", func(t *testing.T) {
		repo := memory.New()
		idx, err := memindex.New(repo, &mockLLMClient{facts: []string{"Lives in Tokyo"}})
		gt.NoError(t, err).Required()

		gt.NoError(t, idx.Add(ctx, messages, "carol")).Required()

		facts, err := idx.Search(ctx, "Where is Tokyo?", "carol", model.MemorySearchLimit)
		gt.NoError(t, err).Required()
		gt.Array(t, facts).Length(1).Required()
		gt.Value(t, facts[0].Text).Equal("Lives in Tokyo")
	})
}
