package extraction

import "context"

// GenerateRequest is a single prompt sent to a generative model.
type GenerateRequest struct {
	Prompt      string
	Model       string
	Temperature float64
	MaxTokens   int
}

// Generator sends a prompt to a generative model and returns its raw text
// reply. Implementations make exactly one attempt per call.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}
