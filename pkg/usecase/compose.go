package usecase

import (
	"strings"

	"github.com/secmon-lab/recall/pkg/domain/model"
)

// DefaultPersona is the base system instruction when none is configured
const DefaultPersona = "You are a helpful AI. Answer based on the query and stored memories."

const memoriesHeader = "\n\nUser Memories:\n"

// ComposePrompt builds the generation request for one turn. The memories
// section is always present, empty when there are no facts. The request
// carries the whole transcript.
func ComposePrompt(persona string, facts []string, transcript []model.Turn) model.GenerationRequest {
	lines := make([]string, len(facts))
	for i, f := range facts {
		lines[i] = "- " + f
	}

	messages := make([]model.Turn, len(transcript))
	copy(messages, transcript)

	return model.GenerationRequest{
		SystemInstruction: persona + memoriesHeader + strings.Join(lines, "\n"),
		Messages:          messages,
	}
}
