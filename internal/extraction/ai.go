package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/zombor/invoicer/internal/invoice"
)

// AIExtractor turns raw invoice text into a Result with a generative model.
// It makes a single attempt per call and keeps no state between calls.
type AIExtractor struct {
	generator Generator
	logger    *slog.Logger
}

// NewAIExtractor creates an AI extractor. A nil generator makes every call
// fail as service_unavailable.
func NewAIExtractor(g Generator, logger *slog.Logger) *AIExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &AIExtractor{generator: g, logger: logger}
}

// Extract runs one prompt through the generator and maps the reply onto a
// validated Result. Every error it returns is an *AIError.
func (e *AIExtractor) Extract(ctx context.Context, rawText string, cfg Config) (*invoice.Result, error) {
	if e.generator == nil {
		return nil, &AIError{Kind: KindServiceUnavailable, Err: errors.New("no generator configured")}
	}

	if cfg.AITimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.AITimeout)
		defer cancel()
	}

	reply, err := e.generator.Generate(ctx, GenerateRequest{
		Prompt:      BuildPrompt(rawText),
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	})
	if err != nil {
		if errors.Is(err, ErrEmptyResponse) {
			return nil, &AIError{Kind: KindMalformedResponse, Err: err}
		}
		return nil, &AIError{Kind: KindServiceUnavailable, Err: fmt.Errorf("generating with %s: %w", cfg.Model, err)}
	}
	if strings.TrimSpace(reply) == "" {
		return nil, &AIError{Kind: KindMalformedResponse, Err: ErrEmptyResponse}
	}

	doc, err := decodeObject(reply)
	if err != nil {
		e.logger.Warn("Failed to parse model response", "model", cfg.Model, "error", err, "bytes", len(reply))
		return nil, err
	}

	result := resultFromDocument(doc)
	result.ExtractionMethod = invoice.MethodAI
	result.AIModel = cfg.Model
	result.RawText = rawText
	invoice.Validate(result)
	result.ConfidenceScore = invoice.Score(result)
	result.Confidence = invoice.LevelFor(result.ConfidenceScore)

	e.logger.Debug("AI extraction complete",
		"model", cfg.Model,
		"line_items", len(result.LineItems),
		"confidence", result.Confidence)
	return result, nil
}
