package model

// GenerationRequest is one composed call to a language model. It is built
// per turn and never stored.
type GenerationRequest struct {
	SystemInstruction string
	Messages          []Turn
}
