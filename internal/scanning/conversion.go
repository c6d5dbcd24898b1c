package scanning

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder

	"github.com/disintegration/imaging"
	"github.com/gen2brain/heic"
	_ "golang.org/x/image/bmp"  // Register BMP decoder
	_ "golang.org/x/image/tiff" // Register TIFF decoder
	_ "golang.org/x/image/webp" // Register WebP decoder
)

// maxOCRDimension bounds the longer side of images handed to the recognizer.
const maxOCRDimension = 2500

// decodeImage decodes any supported image format
func decodeImage(data []byte, ext string) (image.Image, error) {
	// HEIC/HEIF (common on iPhones) is not registered with the standard image package
	if isHEICFormat(data) || ext == ".heic" || ext == ".heif" {
		img, err := heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
		return img, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

// isHEICFormat checks if the image data is in HEIC/HEIF format
// HEIC files carry an ftyp box at offset 4 with a HEIC-related brand
func isHEICFormat(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "heif", "mif1", "msf1":
		return true
	}
	return false
}

// preprocess prepares a scan for OCR: bound the size, drop colour, then
// raise contrast and sharpen edges so glyphs separate from the paper.
func preprocess(img image.Image) image.Image {
	b := img.Bounds()
	if b.Dx() > maxOCRDimension || b.Dy() > maxOCRDimension {
		img = imaging.Fit(img, maxOCRDimension, maxOCRDimension, imaging.Lanczos)
	}
	gray := imaging.Grayscale(img)
	gray = imaging.AdjustContrast(gray, 20)
	return imaging.Sharpen(gray, 1.0)
}

// recognize preprocesses img, encodes it as PNG and runs OCR on it.
func (a *Acquirer) recognize(ctx context.Context, img image.Image, page int) (string, error) {
	if a.recognizer == nil {
		return "", fmt.Errorf("%w: page %d: no recognizer configured", ErrRecognition, page)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, preprocess(img), imaging.PNG); err != nil {
		return "", fmt.Errorf("encoding page %d as PNG: %w", page, err)
	}

	text, err := a.recognizer.Recognize(ctx, buf.Bytes())
	if err != nil {
		return "", fmt.Errorf("%w: page %d: %w", ErrRecognition, page, err)
	}
	return text, nil
}
