package memindex

import (
	"context"

	"github.com/dgraph-io/ristretto"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/recall/pkg/domain/model"
)

// embedder generates embeddings through the LLM client and caches them by
// input text.
type embedder struct {
	llmClient gollem.LLMClient
	dimension int
	cache     *ristretto.Cache
}

func newEmbedder(llmClient gollem.LLMClient, dimension int, cacheBytes int64) (*embedder, error) {
	e := &embedder{
		llmClient: llmClient,
		dimension: dimension,
	}
	if cacheBytes <= 0 {
		return e, nil
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10 * (cacheBytes/int64(4*dimension+1) + 1),
		MaxCost:     cacheBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create embedding cache")
	}
	e.cache = cache
	return e, nil
}

func (e *embedder) embed(ctx context.Context, text string) ([]float32, error) {
	if e.cache != nil {
		if v, ok := e.cache.Get(text); ok {
			if emb, ok := v.([]float32); ok {
				return emb, nil
			}
		}
	}

	embeddings, err := e.llmClient.GenerateEmbedding(ctx, e.dimension, []string{text})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate embedding")
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, goerr.New("embedding generation returned empty result")
	}

	emb := model.ToFloat32(embeddings[0])
	if e.cache != nil {
		e.cache.Set(text, emb, int64(len(emb)*4))
		e.cache.Wait()
	}
	return emb, nil
}

func (e *embedder) close() {
	if e.cache != nil {
		e.cache.Close()
	}
}
