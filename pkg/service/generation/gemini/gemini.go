package gemini

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/recall/pkg/domain/interfaces"
	"github.com/secmon-lab/recall/pkg/domain/model"
	"github.com/secmon-lab/recall/pkg/service/generation"
	"google.golang.org/genai"
)

const DefaultModel = "gemini-1.5-flash"

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client generates replies with the Gemini API
type Client struct {
	models      contentGenerator
	model       string
	temperature float32
	maxTokens   int32
}

var _ interfaces.Generator = (*Client)(nil)

type Option func(*Client)

func WithModel(name string) Option {
	return func(c *Client) {
		c.model = name
	}
}

func WithTemperature(t float32) Option {
	return func(c *Client) {
		c.temperature = t
	}
}

func WithMaxTokens(n int32) Option {
	return func(c *Client) {
		c.maxTokens = n
	}
}

// New creates a client for the Gemini Developer API when apiKey is set,
// otherwise for Vertex AI in projectID/location.
func New(ctx context.Context, apiKey, projectID, location string, opts ...Option) (*Client, error) {
	cfg := &genai.ClientConfig{}
	switch {
	case apiKey != "":
		cfg.APIKey = apiKey
		cfg.Backend = genai.BackendGeminiAPI
	case projectID != "":
		cfg.Project = projectID
		cfg.Location = location
		cfg.Backend = genai.BackendVertexAI
	default:
		return nil, goerr.New("gemini requires an API key or a Google Cloud project")
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client")
	}

	return newClient(client.Models, opts...), nil
}

func newClient(models contentGenerator, opts ...Option) *Client {
	c := &Client{
		models:      models,
		model:       DefaultModel,
		temperature: generation.DefaultTemperature,
		maxTokens:   generation.DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Generate(ctx context.Context, req model.GenerationRequest) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.SystemInstruction, genai.RoleUser),
		Temperature:       genai.Ptr(c.temperature),
		MaxOutputTokens:   c.maxTokens,
	}

	resp, err := c.models.GenerateContent(ctx, c.model, toContents(req.Messages), config)
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate content", goerr.V("model", c.model))
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", goerr.Wrap(generation.ErrEmptyResponse, "gemini returned no text", goerr.V("model", c.model))
	}
	return text, nil
}

// toContents maps transcript turns to Gemini contents. The assistant role is
// called "model" by Gemini.
func toContents(turns []model.Turn) []*genai.Content {
	contents := make([]*genai.Content, len(turns))
	for i, turn := range turns {
		role := genai.Role(genai.RoleUser)
		if turn.Role == model.RoleAssistant {
			role = genai.RoleModel
		}
		contents[i] = genai.NewContentFromText(turn.Text, role)
	}
	return contents
}

func fromContents(contents []*genai.Content) ([]model.Turn, error) {
	turns := make([]model.Turn, len(contents))
	for i, content := range contents {
		var role model.Role
		switch genai.Role(content.Role) {
		case genai.RoleUser:
			role = model.RoleUser
		case genai.RoleModel:
			role = model.RoleAssistant
		default:
			return nil, goerr.New("unknown content role", goerr.V("role", content.Role), goerr.V("index", i))
		}

		var b strings.Builder
		for _, part := range content.Parts {
			b.WriteString(part.Text)
		}
		turns[i] = model.Turn{Role: role, Text: b.String()}
	}
	return turns, nil
}
