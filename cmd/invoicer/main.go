package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/invoicer/internal/catalog"
	"github.com/zombor/invoicer/internal/config"
	"github.com/zombor/invoicer/internal/extraction"
	"github.com/zombor/invoicer/internal/invoice"
	"github.com/zombor/invoicer/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	defaults := extraction.DefaultConfig()
	fs := ff.NewFlagSet("invoicer")
	var (
		_             = fs.StringLong("config", "", "YAML config file")
		logLevel      = fs.StringLong("log-level", "info", "Log level: debug, info, warn or error")
		port          = fs.IntLong("port", 8080, "HTTP server port")
		dbPath        = fs.StringLong("db", "invoicer.db", "Database file path")
		storagePath   = fs.StringLong("storage", "./uploads", "Upload storage directory")
		ocrLang       = fs.StringLong("ocr-lang", "eng", "Comma separated Tesseract languages")
		aiEnabled     = fs.BoolDefault(0, "ai-extraction-enabled", defaults.AIEnabled, "Attempt AI extraction before regex")
		fallback      = fs.BoolDefault(0, "fallback-to-regex", defaults.FallbackToRegex, "Use regex extraction when AI fails")
		provider      = fs.StringLong("ai-provider", defaults.Provider, "AI provider: 'gemini' or 'openai'")
		model         = fs.StringLong("ai-model", defaults.Model, "AI model name")
		temperature   = fs.Float64Long("ai-temperature", defaults.Temperature, "Sampling temperature between 0 and 2")
		maxTokens     = fs.IntLong("ai-max-tokens", defaults.MaxTokens, "Maximum output tokens")
		aiTimeout     = fs.DurationLong("ai-timeout", defaults.AITimeout, "Timeout for one AI call")
		geminiKey     = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		openaiKey     = fs.StringLong("openai-key", "", "OpenAI API key (or set OPENAI_API_KEY env var)")
		openaiBaseURL = fs.StringLong("openai-base-url", "", "OpenAI compatible API base URL")
		showVersion   = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("INVOICER"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(config.ParseYAML),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid log level %q\n", *logLevel)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg := extraction.Config{
		AIEnabled:       *aiEnabled,
		FallbackToRegex: *fallback,
		Provider:        *provider,
		Model:           *model,
		Temperature:     *temperature,
		MaxTokens:       *maxTokens,
		AITimeout:       *aiTimeout,
	}
	switch cfg.Provider {
	case extraction.ProviderGemini:
		cfg.Credential = firstNonEmpty(*geminiKey, os.Getenv("GEMINI_API_KEY"))
	case extraction.ProviderOpenAI:
		cfg.Credential = firstNonEmpty(*openaiKey, os.Getenv("OPENAI_API_KEY"))
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var generator extraction.Generator
	if cfg.AIConfigured() {
		switch cfg.Provider {
		case extraction.ProviderGemini:
			slog.Info("Initializing Gemini client...", "model", cfg.Model)
			gemini, err := extraction.NewGemini(ctx, cfg.Credential)
			if err != nil {
				slog.Error("Failed to initialize Gemini", "error", err)
				os.Exit(1)
			}
			defer gemini.Close()
			generator = gemini
		case extraction.ProviderOpenAI:
			slog.Info("Initializing OpenAI client...", "model", cfg.Model, "base_url", *openaiBaseURL)
			generator = extraction.NewOpenAI(cfg.Credential, *openaiBaseURL)
		}
	} else {
		slog.Info("AI extraction not configured, using regex extraction", "provider", cfg.Provider, "enabled", cfg.AIEnabled)
	}

	recognizer := scanning.NewTesseract(splitList(*ocrLang)...)
	orchestrator := extraction.NewOrchestrator(scanning.NewAcquirer(recognizer, logger), generator, logger)

	if files := fs.GetArgs(); len(files) > 0 {
		os.Exit(processFiles(ctx, orchestrator, cfg, files, os.Stdout, logger))
	}

	slog.Info("Initializing database...")
	db, err := catalog.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	slog.Info("Initializing storage...")
	store, err := catalog.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	service := catalog.NewService(db, store, orchestrator, cfg, logger)
	server := catalog.NewServer(service, logger)

	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)
	<-ctx.Done()
	slog.Info("Shutting down...")
}

// filePipeline is the part of the orchestrator the command line needs.
type filePipeline interface {
	Process(ctx context.Context, src scanning.Source, cfg extraction.Config) (*invoice.Result, error)
}

// processFiles runs every path through the pipeline and prints one JSON
// document per file. A failed file is logged and the rest still run; the
// exit status is 1 if any file failed.
func processFiles(ctx context.Context, p filePipeline, cfg extraction.Config, paths []string, stdout io.Writer, logger *slog.Logger) int {
	status := 0
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Error("Failed to read file", "file", path, "error", err)
			status = 1
			continue
		}

		result, err := p.Process(ctx, scanning.Source{Name: filepath.Base(path), Data: data}, cfg)
		if err != nil {
			logger.Error("Failed to process invoice", "file", path, "error", err)
			status = 1
			continue
		}

		if err := enc.Encode(result); err != nil {
			logger.Error("Failed to encode result", "file", path, "error", err)
			status = 1
		}
	}
	return status
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
