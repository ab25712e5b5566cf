package config

import "time"

var (
	ParseLevel  = parseLevel
	ParseFormat = parseFormat
)

// NewGenerationForTest creates a Generation config for testing purposes
func NewGenerationForTest(provider, model string, temperature float64, maxTokens int, timeout time.Duration) *Generation {
	return &Generation{
		provider:    provider,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		timeout:     timeout,
	}
}

// Model returns the resolved model name
func (g *Generation) Model() string {
	return g.model
}

// Temperature returns the resolved temperature
func (g *Generation) Temperature() float64 {
	return g.temperature
}

// MaxTokens returns the resolved token limit
func (g *Generation) MaxTokens() int {
	return g.maxTokens
}

// NewRepositoryForTest creates a Repository config for testing purposes
func NewRepositoryForTest(backend, chromemPath string) *Repository {
	return &Repository{
		backend:     backend,
		chromemPath: chromemPath,
	}
}

// NewEmbeddingForTest creates an Embedding config for testing purposes
func NewEmbeddingForTest(provider, projectID string, dedupThreshold float64) *Embedding {
	return &Embedding{
		provider:       provider,
		projectID:      projectID,
		dedupThreshold: dedupThreshold,
	}
}

// NewPersonaForTest creates a Persona config for testing purposes
func NewPersonaForTest(path, persona, assistantName, userID string) *Persona {
	return &Persona{
		path:          path,
		persona:       persona,
		assistantName: assistantName,
		userID:        userID,
	}
}
