package openai

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/sashabaranov/go-openai"
	"github.com/secmon-lab/recall/pkg/domain/interfaces"
	"github.com/secmon-lab/recall/pkg/domain/model"
	"github.com/secmon-lab/recall/pkg/service/generation"
)

const DefaultModel = openai.GPT4oMini

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client generates replies with the OpenAI chat completion API or any
// compatible endpoint.
type Client struct {
	chat        chatCompleter
	model       string
	temperature float32
	maxTokens   int
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

func WithMaxTokens(n int) Option {
	return func(c *Client) {
		c.maxTokens = n
	}
}

// New creates a client. baseURL may point to an OpenAI compatible server;
// empty uses the official endpoint.
func New(apiKey, baseURL string, opts ...Option) (*Client, error) {
	if apiKey == "" && baseURL == "" {
		return nil, goerr.New("openai API key is required")
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return newClient(openai.NewClientWithConfig(cfg), opts...), nil
}

func newClient(chat chatCompleter, opts ...Option) *Client {
	c := &Client{
		chat:        chat,
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
	resp, err := c.chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toMessages(req),
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", goerr.Wrap(err, "failed to create chat completion", goerr.V("model", c.model))
	}

	if len(resp.Choices) == 0 {
		return "", goerr.Wrap(generation.ErrEmptyResponse, "openai returned no choices", goerr.V("model", c.model))
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", goerr.Wrap(generation.ErrEmptyResponse, "openai returned no text", goerr.V("model", c.model))
	}
	return text, nil
}

// toMessages puts the system instruction first, followed by the transcript
func toMessages(req model.GenerationRequest) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: req.SystemInstruction,
	})
	for _, turn := range req.Messages {
		role := openai.ChatMessageRoleUser
		if turn.Role == model.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Text})
	}
	return messages
}

func fromMessages(messages []openai.ChatCompletionMessage) (model.GenerationRequest, error) {
	var req model.GenerationRequest
	for i, msg := range messages {
		switch msg.Role {
		case openai.ChatMessageRoleSystem:
			req.SystemInstruction = msg.Content
		case openai.ChatMessageRoleUser:
			req.Messages = append(req.Messages, model.NewUserTurn(msg.Content))
		case openai.ChatMessageRoleAssistant:
			req.Messages = append(req.Messages, model.NewAssistantTurn(msg.Content))
		default:
			return model.GenerationRequest{}, goerr.New("unknown message role", goerr.V("role", msg.Role), goerr.V("index", i))
		}
	}
	return req, nil
}
