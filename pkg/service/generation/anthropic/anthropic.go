package anthropic

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/recall/pkg/domain/interfaces"
	"github.com/secmon-lab/recall/pkg/domain/model"
	"github.com/secmon-lab/recall/pkg/service/generation"
)

const DefaultModel = "claude-sonnet-4-5"

type messageCreator interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// Client generates replies with the Claude Messages API
type Client struct {
	messages    messageCreator
	model       string
	temperature float64
	maxTokens   int64
}

var _ interfaces.Generator = (*Client)(nil)

type Option func(*Client)

func WithModel(name string) Option {
	return func(c *Client) {
		c.model = name
	}
}

func WithTemperature(t float64) Option {
	return func(c *Client) {
		c.temperature = t
	}
}

func WithMaxTokens(n int64) Option {
	return func(c *Client) {
		c.maxTokens = n
	}
}

func New(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, goerr.New("anthropic API key is required")
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return newClient(&client.Messages, opts...), nil
}

func newClient(messages messageCreator, opts ...Option) *Client {
	c := &Client{
		messages:    messages,
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
	resp, err := c.messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   c.maxTokens,
		Temperature: anthropic.Float(c.temperature),
		System: []anthropic.TextBlockParam{
			{Text: req.SystemInstruction},
		},
		Messages: toMessages(req.Messages),
	})
	if err != nil {
		return "", goerr.Wrap(err, "failed to create message", goerr.V("model", c.model))
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", goerr.Wrap(generation.ErrEmptyResponse, "claude returned no text", goerr.V("model", c.model))
	}
	return text, nil
}

func toMessages(turns []model.Turn) []anthropic.MessageParam {
	messages := make([]anthropic.MessageParam, len(turns))
	for i, turn := range turns {
		block := anthropic.NewTextBlock(turn.Text)
		if turn.Role == model.RoleAssistant {
			messages[i] = anthropic.NewAssistantMessage(block)
		} else {
			messages[i] = anthropic.NewUserMessage(block)
		}
	}
	return messages
}

func fromMessages(messages []anthropic.MessageParam) ([]model.Turn, error) {
	turns := make([]model.Turn, len(messages))
	for i, msg := range messages {
		var role model.Role
		switch msg.Role {
		case anthropic.MessageParamRoleUser:
			role = model.RoleUser
		case anthropic.MessageParamRoleAssistant:
			role = model.RoleAssistant
		default:
			return nil, goerr.New("unknown message role", goerr.V("role", msg.Role), goerr.V("index", i))
		}

		var b strings.Builder
		for _, block := range msg.Content {
			if block.OfText != nil {
				b.WriteString(block.OfText.Text)
			}
		}
		turns[i] = model.Turn{Role: role, Text: b.String()}
	}
	return turns, nil
}
