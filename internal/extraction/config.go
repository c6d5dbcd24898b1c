package extraction

import (
	"errors"
	"fmt"
	"time"
)

// AI providers understood by the command line.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Config is the per-run configuration. It is passed by value and never
// mutated by the pipeline.
type Config struct {
	// AIEnabled gates any attempt at AI extraction.
	AIEnabled bool
	// FallbackToRegex runs the regex extractor when the AI attempt fails.
	FallbackToRegex bool
	Provider        string
	Model           string
	Temperature     float64
	MaxTokens       int
	// Credential must be non-empty for AI to be attempted.
	Credential string
	AITimeout  time.Duration
}

// DefaultConfig returns the defaults used when no flags are given.
func DefaultConfig() Config {
	return Config{
		AIEnabled:       true,
		FallbackToRegex: true,
		Provider:        ProviderGemini,
		Model:           "gemini-2.0-flash",
		Temperature:     0.1,
		MaxTokens:       8192,
		AITimeout:       30 * time.Second,
	}
}

// AIConfigured reports whether both the feature flag and a credential are present.
func (c Config) AIConfigured() bool {
	return c.AIEnabled && c.Credential != ""
}

// Validate reports every out-of-range setting.
func (c Config) Validate() error {
	var errs []error
	if c.Provider != ProviderGemini && c.Provider != ProviderOpenAI {
		errs = append(errs, fmt.Errorf("ai provider must be %q or %q, got %q", ProviderGemini, ProviderOpenAI, c.Provider))
	}
	if c.Model == "" {
		errs = append(errs, errors.New("ai model must not be empty"))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, fmt.Errorf("ai temperature must be between 0 and 2, got %g", c.Temperature))
	}
	if c.MaxTokens < 1 || c.MaxTokens > 32768 {
		errs = append(errs, fmt.Errorf("ai max tokens must be between 1 and 32768, got %d", c.MaxTokens))
	}
	if c.AITimeout < time.Second || c.AITimeout > 300*time.Second {
		errs = append(errs, fmt.Errorf("ai timeout must be between 1s and 300s, got %s", c.AITimeout))
	}
	return errors.Join(errs...)
}
