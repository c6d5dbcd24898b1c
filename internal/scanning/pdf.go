package scanning

import (
	"context"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// acquirePDF reads embedded text page by page and rasterizes pages that have
// none so they can be OCR'd. Page texts are joined in document order.
func (a *Acquirer) acquirePDF(ctx context.Context, src Source) (*RawText, error) {
	doc, err := fitz.NewFromMemory(src.Data)
	if err != nil {
		return nil, unreadable(src.Name, "opening PDF", err)
	}
	defer doc.Close()

	count := doc.NumPage()
	if count == 0 {
		return nil, unreadable(src.Name, "PDF has no pages", nil)
	}

	pages := make([]Page, 0, count)
	for i := 0; i < count; i++ {
		number := i + 1

		text, err := doc.Text(i)
		if err != nil {
			a.logger.Warn("Failed to read embedded PDF text, falling back to OCR",
				"file", src.Name,
				"page", number,
				"error", err,
			)
			text = ""
		}
		if strings.TrimSpace(text) != "" {
			pages = append(pages, Page{Number: number, Text: text, Method: MethodEmbedded})
			continue
		}

		img, err := doc.ImageDPI(i, a.dpi)
		if err != nil {
			return nil, unreadable(src.Name, "rendering PDF page", err)
		}
		text, err = a.recognize(ctx, img, number)
		if err != nil {
			return nil, err
		}
		pages = append(pages, Page{Number: number, Text: text, Method: MethodOCR})
	}

	a.logger.Debug("Extracted PDF text", "file", src.Name, "pages", count)
	return &RawText{Text: joinPages(pages), Pages: pages}, nil
}
