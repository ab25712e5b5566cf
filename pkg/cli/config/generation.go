package config

import (
	"context"
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/recall/pkg/domain/interfaces"
	"github.com/secmon-lab/recall/pkg/service/generation"
	"github.com/secmon-lab/recall/pkg/service/generation/anthropic"
	"github.com/secmon-lab/recall/pkg/service/generation/gemini"
	"github.com/secmon-lab/recall/pkg/service/generation/openai"
	"github.com/urfave/cli/v3"
)

const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

const (
	flagGenerationModel       = "generation-model"
	flagGenerationTemperature = "generation-temperature"
	flagGenerationMaxTokens   = "generation-max-tokens"
)

// Generation holds configuration of the language model answering the user
type Generation struct {
	provider    string
	model       string
	temperature float64
	maxTokens   int
	timeout     time.Duration

	GeminiAPIKey    string `masq:"secret"`
	AnthropicAPIKey string `masq:"secret"`
	OpenAIAPIKey    string `masq:"secret"`
	openAIBaseURL   string
	gcpProject      string
	gcpLocation     string
}

func (g *Generation) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "generation-provider",
			Usage:       "Generation backend (gemini, anthropic, openai)",
			Category:    "Generation",
			Value:       ProviderGemini,
			Sources:     cli.EnvVars("RECALL_GENERATION_PROVIDER"),
			Destination: &g.provider,
		},
		&cli.StringFlag{
			Name:        flagGenerationModel,
			Usage:       "Model name. Empty uses the backend default",
			Category:    "Generation",
			Sources:     cli.EnvVars("RECALL_GENERATION_MODEL"),
			Destination: &g.model,
		},
		&cli.FloatFlag{
			Name:        flagGenerationTemperature,
			Usage:       "Sampling temperature",
			Category:    "Generation",
			Value:       generation.DefaultTemperature,
			Sources:     cli.EnvVars("RECALL_GENERATION_TEMPERATURE"),
			Destination: &g.temperature,
		},
		&cli.IntFlag{
			Name:        flagGenerationMaxTokens,
			Usage:       "Maximum number of tokens in a reply",
			Category:    "Generation",
			Value:       generation.DefaultMaxTokens,
			Sources:     cli.EnvVars("RECALL_GENERATION_MAX_TOKENS"),
			Destination: &g.maxTokens,
		},
		&cli.DurationFlag{
			Name:        "generation-timeout",
			Usage:       "Timeout of one generation call. Zero disables it",
			Category:    "Generation",
			Value:       60 * time.Second,
			Sources:     cli.EnvVars("RECALL_GENERATION_TIMEOUT"),
			Destination: &g.timeout,
		},
		&cli.StringFlag{
			Name:        "gemini-api-key",
			Usage:       "Gemini Developer API key. Vertex AI is used when empty",
			Category:    "Generation",
			Sources:     cli.EnvVars("RECALL_GEMINI_API_KEY"),
			Destination: &g.GeminiAPIKey,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Vertex AI",
			Category:    "Generation",
			Sources:     cli.EnvVars("RECALL_GEMINI_PROJECT"),
			Destination: &g.gcpProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Vertex AI",
			Category:    "Generation",
			Value:       "us-central1",
			Sources:     cli.EnvVars("RECALL_GEMINI_LOCATION"),
			Destination: &g.gcpLocation,
		},
		&cli.StringFlag{
			Name:        "anthropic-api-key",
			Usage:       "Anthropic API key",
			Category:    "Generation",
			Sources:     cli.EnvVars("RECALL_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"),
			Destination: &g.AnthropicAPIKey,
		},
		&cli.StringFlag{
			Name:        "openai-api-key",
			Usage:       "OpenAI API key",
			Category:    "Generation",
			Sources:     cli.EnvVars("RECALL_OPENAI_API_KEY", "OPENAI_API_KEY"),
			Destination: &g.OpenAIAPIKey,
		},
		&cli.StringFlag{
			Name:        "openai-base-url",
			Usage:       "Base URL of an OpenAI compatible server",
			Category:    "Generation",
			Sources:     cli.EnvVars("RECALL_OPENAI_BASE_URL"),
			Destination: &g.openAIBaseURL,
		},
	}
}

func (g *Generation) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("provider", g.provider),
		slog.String("model", g.model),
		slog.Float64("temperature", g.temperature),
		slog.Int("max_tokens", g.maxTokens),
		slog.Duration("timeout", g.timeout),
	}
}

// Timeout is the host-level limit applied to each generation call
func (g *Generation) Timeout() time.Duration {
	return g.timeout
}

// Apply overrides model parameters with values loaded from a persona file.
// Flags in set keep their values.
func (g *Generation) Apply(params *ModelParams, set FlagSet) {
	if params == nil {
		return
	}
	if params.Model != "" && !isSet(set, flagGenerationModel) {
		g.model = params.Model
	}
	if params.Temperature != nil && !isSet(set, flagGenerationTemperature) {
		g.temperature = *params.Temperature
	}
	if params.MaxTokens != nil && !isSet(set, flagGenerationMaxTokens) {
		g.maxTokens = *params.MaxTokens
	}
}

// Configure creates the generator for the selected provider
func (g *Generation) Configure(ctx context.Context) (interfaces.Generator, error) {
	if g.maxTokens <= 0 {
		return nil, goerr.Wrap(ErrInvalidConfig, "max tokens must be positive", goerr.V(MaxTokensKey, g.maxTokens))
	}

	switch g.provider {
	case ProviderGemini:
		opts := []gemini.Option{
			gemini.WithTemperature(float32(g.temperature)),
			gemini.WithMaxTokens(int32(g.maxTokens)),
		}
		if g.model != "" {
			opts = append(opts, gemini.WithModel(g.model))
		}
		client, err := gemini.New(ctx, g.GeminiAPIKey, g.gcpProject, g.gcpLocation, opts...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create gemini generator")
		}
		return client, nil

	case ProviderAnthropic:
		opts := []anthropic.Option{
			anthropic.WithTemperature(g.temperature),
			anthropic.WithMaxTokens(int64(g.maxTokens)),
		}
		if g.model != "" {
			opts = append(opts, anthropic.WithModel(g.model))
		}
		client, err := anthropic.New(g.AnthropicAPIKey, opts...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create anthropic generator")
		}
		return client, nil

	case ProviderOpenAI:
		opts := []openai.Option{
			openai.WithTemperature(float32(g.temperature)),
			openai.WithMaxTokens(g.maxTokens),
		}
		if g.model != "" {
			opts = append(opts, openai.WithModel(g.model))
		}
		client, err := openai.New(g.OpenAIAPIKey, g.openAIBaseURL, opts...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create openai generator")
		}
		return client, nil

	default:
		return nil, goerr.Wrap(ErrUnknownProvider, "invalid generation provider", goerr.V(ProviderKey, g.provider))
	}
}
