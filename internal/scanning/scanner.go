package scanning

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
)

// Source is an uploaded file together with its declared name.
type Source struct {
	Name string
	// Ext overrides the extension derived from Name, e.g. ".pdf".
	Ext  string
	Data []byte
}

func (s Source) extension() string {
	ext := s.Ext
	if ext == "" {
		ext = filepath.Ext(s.Name)
	}
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// Page methods recorded in RawText.
const (
	MethodEmbedded = "embedded"
	MethodOCR      = "ocr"
)

// Page is the text recovered from one page and how it was recovered.
type Page struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
	Method string `json:"method"`
}

// RawText is the unstructured text recovered from a file.
type RawText struct {
	Text  string `json:"text"`
	Pages []Page `json:"pages"`
}

// Recognizer runs optical character recognition on an encoded image.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// Acquirer turns PDFs and images into raw text. It holds no mutable state and
// is safe for concurrent use.
type Acquirer struct {
	recognizer Recognizer
	logger     *slog.Logger
	dpi        float64
}

// NewAcquirer creates an Acquirer that uses r for image pages.
func NewAcquirer(r Recognizer, logger *slog.Logger) *Acquirer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Acquirer{
		recognizer: r,
		logger:     logger,
		dpi:        300,
	}
}

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
	".heic": true,
	".heif": true,
}

// SupportedExtension reports whether Acquire can handle files with ext.
func SupportedExtension(ext string) bool {
	ext = Source{Ext: ext}.extension()
	return ext == ".pdf" || imageExtensions[ext]
}

// Acquire recovers the text of src. PDFs are read page by page from their
// embedded text, falling back to OCR for pages without any. Images are OCR'd
// directly. Undecodable input fails with *UnreadableFileError.
func (a *Acquirer) Acquire(ctx context.Context, src Source) (*RawText, error) {
	if len(src.Data) == 0 {
		return nil, unreadable(src.Name, "file is empty", nil)
	}

	ext := src.extension()
	switch {
	case ext == ".pdf":
		return a.acquirePDF(ctx, src)
	case imageExtensions[ext]:
		return a.acquireImage(ctx, src, ext)
	default:
		return nil, unreadable(src.Name, fmt.Sprintf("unsupported file type %q", ext), nil)
	}
}

func (a *Acquirer) acquireImage(ctx context.Context, src Source, ext string) (*RawText, error) {
	img, err := decodeImage(src.Data, ext)
	if err != nil {
		return nil, unreadable(src.Name, "decoding image", err)
	}

	text, err := a.recognize(ctx, img, 1)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("Recognized image text", "file", src.Name, "chars", len(text))
	return &RawText{
		Text:  text,
		Pages: []Page{{Number: 1, Text: text, Method: MethodOCR}},
	}, nil
}

func joinPages(pages []Page) string {
	texts := make([]string, 0, len(pages))
	for _, p := range pages {
		if t := strings.TrimSpace(p.Text); t != "" {
			texts = append(texts, t)
		}
	}
	return strings.Join(texts, "\n\n")
}
