package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gollem/llm/gemini"
	"github.com/m-mizutani/gollem/llm/openai"
	"github.com/secmon-lab/recall/pkg/domain/interfaces"
	"github.com/secmon-lab/recall/pkg/service/memindex"
	"github.com/urfave/cli/v3"
)

// Embedding holds configuration of the memory index: the LLM that extracts
// facts and embeds them, and the index tuning knobs.
type Embedding struct {
	provider       string
	projectID      string
	location       string
	APIKey         string `masq:"secret"`
	dedupThreshold float64
	minScore       float64
	cacheBytes     int64
}

func (e *Embedding) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "memory-llm-provider",
			Usage:       "LLM used for fact extraction and embeddings (gemini, openai)",
			Category:    "Memory",
			Value:       ProviderGemini,
			Sources:     cli.EnvVars("RECALL_MEMORY_LLM_PROVIDER"),
			Destination: &e.provider,
		},
		&cli.StringFlag{
			Name:        "memory-gemini-project",
			Usage:       "Google Cloud project ID for the memory LLM",
			Category:    "Memory",
			Sources:     cli.EnvVars("RECALL_MEMORY_GEMINI_PROJECT", "RECALL_GEMINI_PROJECT"),
			Destination: &e.projectID,
		},
		&cli.StringFlag{
			Name:        "memory-gemini-location",
			Usage:       "Google Cloud location for the memory LLM",
			Category:    "Memory",
			Value:       "us-central1",
			Sources:     cli.EnvVars("RECALL_MEMORY_GEMINI_LOCATION", "RECALL_GEMINI_LOCATION"),
			Destination: &e.location,
		},
		&cli.StringFlag{
			Name:        "memory-openai-api-key",
			Usage:       "OpenAI API key for the memory LLM",
			Category:    "Memory",
			Sources:     cli.EnvVars("RECALL_MEMORY_OPENAI_API_KEY", "OPENAI_API_KEY"),
			Destination: &e.APIKey,
		},
		&cli.FloatFlag{
			Name:        "memory-dedup-threshold",
			Usage:       "Similarity at or above which an extracted fact is treated as already known",
			Category:    "Memory",
			Value:       0.92,
			Sources:     cli.EnvVars("RECALL_MEMORY_DEDUP_THRESHOLD"),
			Destination: &e.dedupThreshold,
		},
		&cli.FloatFlag{
			Name:        "memory-min-score",
			Usage:       "Drop retrieved facts scoring below this similarity",
			Category:    "Memory",
			Sources:     cli.EnvVars("RECALL_MEMORY_MIN_SCORE"),
			Destination: &e.minScore,
		},
		&cli.Int64Flag{
			Name:        "memory-cache-bytes",
			Usage:       "Embedding cache size in bytes. Zero disables the cache",
			Category:    "Memory",
			Value:       16 << 20,
			Sources:     cli.EnvVars("RECALL_MEMORY_CACHE_BYTES"),
			Destination: &e.cacheBytes,
		},
	}
}

func (e *Embedding) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("provider", e.provider),
		slog.String("project_id", e.projectID),
		slog.String("location", e.location),
		slog.Float64("dedup_threshold", e.dedupThreshold),
		slog.Float64("min_score", e.minScore),
		slog.Int64("cache_bytes", e.cacheBytes),
	}
}

func (e *Embedding) llmClient(ctx context.Context) (gollem.LLMClient, error) {
	switch e.provider {
	case ProviderGemini:
		if e.projectID == "" {
			return nil, goerr.Wrap(ErrMissingOption, "memory LLM requires a Google Cloud project", goerr.V(OptionKey, "memory-gemini-project"))
		}
		client, err := gemini.New(ctx, e.projectID, e.location)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create Gemini client")
		}
		return client, nil

	case ProviderOpenAI:
		if e.APIKey == "" {
			return nil, goerr.Wrap(ErrMissingOption, "memory LLM requires an OpenAI API key", goerr.V(OptionKey, "memory-openai-api-key"))
		}
		client, err := openai.New(ctx, e.APIKey)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create OpenAI client")
		}
		return client, nil

	default:
		return nil, goerr.Wrap(ErrUnknownProvider, "invalid memory LLM provider", goerr.V(ProviderKey, e.provider))
	}
}

// Configure creates the memory index over repo. The caller closes the index.
func (e *Embedding) Configure(ctx context.Context, repo interfaces.FactRepository) (*memindex.Index, error) {
	if e.dedupThreshold < 0 || e.dedupThreshold > 1 {
		return nil, goerr.Wrap(ErrInvalidConfig, "dedup threshold must be within [0, 1]", goerr.V("dedup_threshold", e.dedupThreshold))
	}

	client, err := e.llmClient(ctx)
	if err != nil {
		return nil, err
	}

	index, err := memindex.New(repo, client,
		memindex.WithDedupThreshold(e.dedupThreshold),
		memindex.WithMinScore(e.minScore),
		memindex.WithCacheBytes(e.cacheBytes),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create memory index")
	}
	return index, nil
}
