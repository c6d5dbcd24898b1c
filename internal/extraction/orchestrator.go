package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/zombor/invoicer/internal/invoice"
	"github.com/zombor/invoicer/internal/scanning"
)

// WarnEmptyText is attached when acquisition produced no text at all.
const WarnEmptyText = "empty_text"

// TextAcquirer gets raw text out of an uploaded file
type TextAcquirer interface {
	Acquire(ctx context.Context, src scanning.Source) (*scanning.RawText, error)
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Orchestrator runs one file through acquisition, extraction and validation.
// It holds no per-run state and is safe for concurrent use.
type Orchestrator struct {
	acquirer   TextAcquirer
	regex      *RegexExtractor
	ai         *AIExtractor
	timeSource TimeSource
	logger     *slog.Logger
}

// NewOrchestrator creates an Orchestrator. A nil generator disables the AI
// path regardless of configuration.
func NewOrchestrator(acquirer TextAcquirer, generator Generator, logger *slog.Logger) *Orchestrator {
	return NewOrchestratorWithDeps(acquirer, generator, &defaultTimeSource{}, logger)
}

// NewOrchestratorWithDeps creates an Orchestrator with a custom time source for testing
func NewOrchestratorWithDeps(acquirer TextAcquirer, generator Generator, timeSrc TimeSource, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		acquirer:   acquirer,
		regex:      NewRegexExtractor(logger),
		timeSource: timeSrc,
		logger:     logger,
	}
	if generator != nil {
		o.ai = NewAIExtractor(generator, logger)
	}
	return o
}

// AIAvailable reports whether a model client is wired in.
func (o *Orchestrator) AIAvailable() bool { return o.ai != nil }

// Process acquires text from src and extracts a validated Result. The only
// errors it returns are unreadable files and AI failures without fallback.
func (o *Orchestrator) Process(ctx context.Context, src scanning.Source, cfg Config) (*invoice.Result, error) {
	raw, err := o.acquirer.Acquire(ctx, src)
	if err != nil {
		o.logger.Error("Failed to acquire text", "file", src.Name, "error", err)
		return nil, fmt.Errorf("acquiring text from %s: %w", src.Name, err)
	}
	o.logger.Info("Text acquired", "state", "acquired", "file", src.Name, "pages", len(raw.Pages), "chars", len(raw.Text))

	result, err := o.ExtractText(ctx, raw.Text, cfg)
	if err != nil {
		return nil, fmt.Errorf("extracting %s: %w", src.Name, err)
	}
	o.logger.Info("Extraction done",
		"state", "done",
		"file", src.Name,
		"method", result.ExtractionMethod,
		"confidence", result.Confidence,
		"warnings", len(result.Warnings))
	return result, nil
}

// ExtractText runs the extraction state machine on already acquired text.
// AI is tried first when enabled and configured; the regex extractor runs
// when AI is off or failed and fallback is allowed. Results are never merged.
func (o *Orchestrator) ExtractText(ctx context.Context, rawText string, cfg Config) (*invoice.Result, error) {
	var result *invoice.Result

	if cfg.AIConfigured() && o.ai != nil {
		o.logger.Debug("Attempting AI extraction", "state", "ai_attempted", "model", cfg.Model)
		aiResult, err := o.ai.Extract(ctx, rawText, cfg)
		switch {
		case err == nil:
			result = aiResult
		case cfg.FallbackToRegex:
			o.logger.Warn("AI extraction failed, falling back to regex", "state", "regex_attempted", "error", err)
		default:
			o.logger.Error("AI extraction failed and fallback is disabled", "state", "failed", "error", err)
			return nil, &FailedError{Err: err}
		}
	} else {
		o.logger.Debug("AI extraction not configured", "state", "regex_attempted",
			"ai_enabled", cfg.AIEnabled, "credential", cfg.Credential != "")
	}

	if result == nil {
		result = o.regex.Extract(rawText)
	}

	if strings.TrimSpace(rawText) == "" {
		result.AddWarning(invoice.Warning{
			Code:    WarnEmptyText,
			Field:   "raw_text",
			Message: "no text could be recovered from the file",
		})
	}

	switch result.ExtractionMethod {
	case invoice.MethodAI:
		result.AIModel = cfg.Model
	default:
		result.ExtractionMethod = invoice.MethodRegex
		result.AIModel = invoice.NotFound
	}
	result.ProcessedAt = o.timeSource.Now().UTC().Truncate(time.Second)
	result.RawText = rawText
	invoice.Validate(result)
	return result, nil
}
