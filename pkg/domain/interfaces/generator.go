package interfaces

import (
	"context"

	"github.com/secmon-lab/recall/pkg/domain/model"
)

// Generator produces an assistant reply for a composed request
type Generator interface {
	Generate(ctx context.Context, req model.GenerationRequest) (string, error)
}
