package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/invoicer/internal/extraction"
	"github.com/zombor/invoicer/internal/invoice"
	"github.com/zombor/invoicer/internal/scanning"
)

// ErrUnsupportedFile is returned for uploads whose extension cannot be processed.
var ErrUnsupportedFile = errors.New("unsupported file type")

// Pipeline turns an uploaded file into a validated Result.
type Pipeline interface {
	Process(ctx context.Context, src scanning.Source, cfg extraction.Config) (*invoice.Result, error)
	AIAvailable() bool
}

// IDGenerator generates unique IDs for records
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// UploadOptions adjusts a single processing run.
type UploadOptions struct {
	DisableAI bool
}

// Status reports how extraction is configured.
type Status struct {
	AIAvailable       bool    `json:"ai_available"`
	AIConfigured      bool    `json:"ai_configured"`
	AIEnabled         bool    `json:"ai_enabled"`
	FallbackEnabled   bool    `json:"fallback_enabled"`
	CredentialPresent bool    `json:"api_key_present"`
	Provider          string  `json:"provider"`
	Model             string  `json:"model"`
	Temperature       float64 `json:"temperature"`
	MaxTokens         int     `json:"max_tokens"`
	TimeoutSeconds    float64 `json:"timeout_seconds"`
}

// Service stores uploads, runs them through the pipeline and keeps the results.
type Service struct {
	db          DB
	storage     Storage
	pipeline    Pipeline
	cfg         extraction.Config
	idGenerator IDGenerator
	timeSource  TimeSource
	logger      *slog.Logger
}

// NewService creates a new Service with UUID record IDs and the wall clock
func NewService(db DB, storage Storage, pipeline Pipeline, cfg extraction.Config, logger *slog.Logger) *Service {
	return NewServiceWithDeps(db, storage, pipeline, cfg, &uuidGenerator{}, &defaultTimeSource{}, logger)
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, storage Storage, pipeline Pipeline, cfg extraction.Config, idGen IDGenerator, timeSrc TimeSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		db:          db,
		storage:     storage,
		pipeline:    pipeline,
		cfg:         cfg,
		idGenerator: idGen,
		timeSource:  timeSrc,
		logger:      logger,
	}
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	filenameSpaces      = regexp.MustCompile(`\s+`)
)

// sanitizeFilename strips special characters and truncates long scanner or phone names.
func sanitizeFilename(filename string) string {
	filename = filepath.Base(filename)
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filename, filepath.Ext(filename))

	base = unsafeFilenameChars.ReplaceAllString(base, "")
	base = filenameSpaces.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	const maxLen = 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}
	if base == "" {
		base = "invoice"
	}
	return base + ext
}

// ProcessUpload stores the file, extracts it and saves the record. Nothing is
// kept when extraction fails.
func (s *Service) ProcessUpload(ctx context.Context, filename string, data []byte, contentType string, opts UploadOptions) (*Record, error) {
	if !scanning.SupportedExtension(filepath.Ext(filename)) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFile, filepath.Ext(filename))
	}

	id := s.idGenerator.Generate()
	now := s.timeSource.Now().UTC()

	savedName, err := s.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	cfg := s.cfg
	if opts.DisableAI {
		cfg.AIEnabled = false
	}

	result, err := s.pipeline.Process(ctx, scanning.Source{Name: filename, Data: data}, cfg)
	if err != nil {
		s.logger.Error("Failed to process invoice",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		s.removeFile(savedName)
		return nil, fmt.Errorf("processing invoice: %w", err)
	}

	record := &Record{
		ID:               id,
		OriginalFilename: filename,
		Filename:         savedName,
		ContentType:      contentType,
		Result:           result,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.db.SaveInvoice(record); err != nil {
		s.removeFile(savedName)
		return nil, fmt.Errorf("saving invoice to database: %w", err)
	}

	s.logger.Info("Processed invoice",
		"id", id,
		"filename", filename,
		"method", result.ExtractionMethod,
		"confidence", result.Confidence,
		"warnings", len(result.Warnings),
	)
	return record, nil
}

func (s *Service) removeFile(name string) {
	if err := s.storage.Delete(name); err != nil {
		s.logger.Warn("Failed to delete file", "filename", name, "error", err)
	}
}

// GetInvoice retrieves a record by ID
func (s *Service) GetInvoice(id string) (*Record, error) {
	record, err := s.db.GetInvoice(id)
	if err != nil {
		return nil, fmt.Errorf("getting invoice: %w", err)
	}
	return record, nil
}

// ListInvoices returns summaries of all records, newest first
func (s *Service) ListInvoices() ([]Summary, error) {
	records, err := s.db.ListInvoices()
	if err != nil {
		return nil, fmt.Errorf("listing invoices: %w", err)
	}
	summaries := make([]Summary, 0, len(records))
	for _, r := range records {
		summaries = append(summaries, r.Summarize())
	}
	return summaries, nil
}

// UpdateInvoice replaces the extracted fields of a record with an edited
// Result. Provenance is kept from the stored record and the edit is
// validated again.
func (s *Service) UpdateInvoice(id string, edited *invoice.Result) (*Record, error) {
	if edited == nil {
		return nil, errors.New("updating invoice: no result given")
	}
	record, err := s.db.GetInvoice(id)
	if err != nil {
		return nil, fmt.Errorf("getting invoice for update: %w", err)
	}

	if prev := record.Result; prev != nil {
		edited.ExtractionMethod = prev.ExtractionMethod
		edited.AIModel = prev.AIModel
		edited.ProcessedAt = prev.ProcessedAt
		edited.RawText = prev.RawText
		edited.Confidence = prev.Confidence
		edited.ConfidenceScore = prev.ConfidenceScore
	}
	invoice.Validate(edited)

	record.Result = edited
	record.UpdatedAt = s.timeSource.Now().UTC()
	if err := s.db.SaveInvoice(record); err != nil {
		return nil, fmt.Errorf("saving invoice %s: %w", id, err)
	}
	return record, nil
}

// DeleteInvoice removes a record and its file
func (s *Service) DeleteInvoice(id string) error {
	record, err := s.db.GetInvoice(id)
	if err != nil {
		return fmt.Errorf("getting invoice for deletion: %w", err)
	}

	s.removeFile(record.Filename)

	if err := s.db.DeleteInvoice(id); err != nil {
		return fmt.Errorf("deleting invoice from database: %w", err)
	}
	return nil
}

// GetInvoiceFile returns the original upload and its content type
func (s *Service) GetInvoiceFile(id string) ([]byte, string, error) {
	record, err := s.db.GetInvoice(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting invoice: %w", err)
	}

	data, err := s.storage.Get(record.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting invoice file: %w", err)
	}
	return data, record.ContentType, nil
}

// Comparison holds a forced AI-only run next to a regular run of the same file.
type Comparison struct {
	AIExtraction      *invoice.Result `json:"ai_extraction"`
	RegularExtraction *invoice.Result `json:"regular_extraction"`
	AIAvailable       bool            `json:"ai_available"`
	AIConfig          Status          `json:"ai_config"`
}

// CompareExtraction runs a file once with AI forced on and regex fallback off,
// and once with the configured settings. Nothing is stored. AIExtraction is
// nil when AI cannot run or its run failed.
func (s *Service) CompareExtraction(ctx context.Context, filename string, data []byte) (*Comparison, error) {
	if !scanning.SupportedExtension(filepath.Ext(filename)) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFile, filepath.Ext(filename))
	}
	src := scanning.Source{Name: filename, Data: data}
	status := s.Status()
	cmp := &Comparison{AIAvailable: status.AIAvailable, AIConfig: status}

	if status.AIAvailable {
		forced := s.cfg
		forced.AIEnabled = true
		forced.FallbackToRegex = false

		result, err := s.pipeline.Process(ctx, src, forced)
		switch {
		case errors.Is(err, extraction.ErrExtractionFailed):
			s.logger.Warn("Forced AI extraction failed", "filename", filename, "error", err)
		case err != nil:
			return nil, fmt.Errorf("forcing ai extraction: %w", err)
		default:
			cmp.AIExtraction = result
		}
	}

	result, err := s.pipeline.Process(ctx, src, s.cfg)
	if err != nil {
		return nil, fmt.Errorf("processing invoice: %w", err)
	}
	cmp.RegularExtraction = result

	s.logger.Info("Compared extraction",
		"filename", filename,
		"ai_succeeded", cmp.AIExtraction != nil,
		"method", result.ExtractionMethod,
	)
	return cmp, nil
}

// Status describes the extraction configuration in effect.
func (s *Service) Status() Status {
	return Status{
		AIAvailable:       s.pipeline.AIAvailable() && s.cfg.AIConfigured(),
		AIConfigured:      s.cfg.AIConfigured(),
		AIEnabled:         s.cfg.AIEnabled,
		FallbackEnabled:   s.cfg.FallbackToRegex,
		CredentialPresent: s.cfg.Credential != "",
		Provider:          s.cfg.Provider,
		Model:             s.cfg.Model,
		Temperature:       s.cfg.Temperature,
		MaxTokens:         s.cfg.MaxTokens,
		TimeoutSeconds:    s.cfg.AITimeout.Seconds(),
	}
}
