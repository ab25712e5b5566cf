package memindex

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"strings"
	"text/template"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/recall/pkg/domain/interfaces"
	"github.com/secmon-lab/recall/pkg/domain/model"
	"github.com/secmon-lab/recall/pkg/utils/logging"
)

//go:embed prompt/extract.md
var extractPromptTmpl string

var extractPrompt = template.Must(template.New("extract").Parse(extractPromptTmpl))

const (
	defaultDedupThreshold = 0.92
	defaultCacheBytes     = 16 << 20
)

// Index is a long-term memory index. Conversations are distilled into short
// facts by an LLM, embedded and stored per user; searches rank stored facts
// by embedding similarity.
type Index struct {
	repo      interfaces.FactRepository
	llmClient gollem.LLMClient
	embedder  *embedder

	dimension      int
	dedupThreshold float64
	minScore       float64
	cacheBytes     int64
}

var _ interfaces.MemoryIndex = (*Index)(nil)

type Option func(*Index)

// WithEmbeddingDimension overrides model.EmbeddingDimension
func WithEmbeddingDimension(dim int) Option {
	return func(x *Index) {
		x.dimension = dim
	}
}

// WithDedupThreshold sets the similarity at or above which a new fact is
// considered already known and skipped.
func WithDedupThreshold(threshold float64) Option {
	return func(x *Index) {
		x.dedupThreshold = threshold
	}
}

// WithMinScore drops search results scoring below score
func WithMinScore(score float64) Option {
	return func(x *Index) {
		x.minScore = score
	}
}

// WithCacheBytes sets the embedding cache budget. Zero disables the cache.
func WithCacheBytes(n int64) Option {
	return func(x *Index) {
		x.cacheBytes = n
	}
}

func New(repo interfaces.FactRepository, llmClient gollem.LLMClient, opts ...Option) (*Index, error) {
	x := &Index{
		repo:           repo,
		llmClient:      llmClient,
		dimension:      model.EmbeddingDimension,
		dedupThreshold: defaultDedupThreshold,
		cacheBytes:     defaultCacheBytes,
	}
	for _, opt := range opts {
		opt(x)
	}

	emb, err := newEmbedder(llmClient, x.dimension, x.cacheBytes)
	if err != nil {
		return nil, err
	}
	x.embedder = emb

	return x, nil
}

// Close releases the embedding cache. The repository is owned by the caller.
func (x *Index) Close() {
	x.embedder.close()
}

func (x *Index) Search(ctx context.Context, query string, user model.UserID, limit int) ([]model.Fact, error) {
	if strings.TrimSpace(query) == "" || limit <= 0 {
		return []model.Fact{}, nil
	}

	emb, err := x.embedder.embed(ctx, query)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed query", goerr.V("user_id", user))
	}

	memories, err := x.repo.FindByEmbedding(ctx, user, emb, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search memories", goerr.V("user_id", user))
	}

	facts := make([]model.Fact, 0, len(memories))
	for _, m := range memories {
		if m.Score < x.minScore {
			continue
		}
		facts = append(facts, model.Fact{Text: m.Claim})
	}
	return facts, nil
}

func (x *Index) Add(ctx context.Context, messages []model.MemoryMessage, user model.UserID) error {
	if len(messages) == 0 {
		return nil
	}
	logger := logging.From(ctx)

	claims, err := x.extract(ctx, messages)
	if err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(claims))
	var created int
	for _, claim := range claims {
		claim = strings.TrimSpace(claim)
		if claim == "" {
			continue
		}
		key := strings.ToLower(claim)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		emb, err := x.embedder.embed(ctx, claim)
		if err != nil {
			return goerr.Wrap(err, "failed to embed fact", goerr.V("claim", claim))
		}

		nearest, err := x.repo.FindByEmbedding(ctx, user, emb, 1)
		if err != nil {
			return goerr.Wrap(err, "failed to look up similar facts", goerr.V("user_id", user))
		}
		if len(nearest) > 0 && nearest[0].Score >= x.dedupThreshold {
			logger.Debug("skip known fact", "claim", claim, "existing", nearest[0].Claim, "score", nearest[0].Score)
			continue
		}

		if _, err := x.repo.Create(ctx, user, &model.Memory{
			UserID:    user,
			Claim:     claim,
			Embedding: emb,
		}); err != nil {
			return goerr.Wrap(err, "failed to store fact", goerr.V("user_id", user))
		}
		created++
	}

	logger.Debug("memory updated", "user_id", user, "extracted", len(claims), "created", created)
	return nil
}

type extraction struct {
	Facts []string `json:"facts"`
}

var extractionSchema = &gollem.Parameter{
	Title:       "MemoryExtraction",
	Description: "Durable facts about the user extracted from a conversation",
	Type:        gollem.TypeObject,
	Properties: map[string]*gollem.Parameter{
		"facts": {
			Type:        gollem.TypeArray,
			Description: "Facts about the user. Empty when nothing is worth remembering.",
			Required:    true,
			Items: &gollem.Parameter{
				Type: gollem.TypeString,
			},
		},
	},
}

func (x *Index) extract(ctx context.Context, messages []model.MemoryMessage) ([]string, error) {
	var buf bytes.Buffer
	if err := extractPrompt.Execute(&buf, struct {
		Messages []model.MemoryMessage
	}{Messages: messages}); err != nil {
		return nil, goerr.Wrap(err, "failed to render extraction prompt")
	}

	session, err := x.llmClient.NewSession(ctx,
		gollem.WithSessionContentType(gollem.ContentTypeJSON),
		gollem.WithSessionResponseSchema(extractionSchema),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create session for fact extraction")
	}

	resp, err := session.Generate(ctx, []gollem.Input{gollem.Text(buf.String())})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to extract facts")
	}
	if len(resp.Texts) == 0 {
		return nil, goerr.New("fact extraction returned empty result")
	}

	var out extraction
	if err := json.Unmarshal([]byte(resp.Texts[0]), &out); err != nil {
		return nil, goerr.Wrap(err, "failed to parse fact extraction JSON",
			goerr.V("response", resp.Texts[0]),
		)
	}
	return out.Facts, nil
}
