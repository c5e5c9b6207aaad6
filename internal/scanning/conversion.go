package scanning

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// transcriptionPrompt is shared by the LLM scanners. Models only transcribe;
// fields are extracted from their text like from any other engine's.
const transcriptionPrompt = `You are an OCR engine reading a payment receipt or bank transfer confirmation, usually in Russian. Transcribe every piece of text in the image exactly as printed.

Rules:
- Keep the original line breaks, one printed line per output line
- Keep digits, spaces inside numbers, punctuation and currency signs (₽, руб.) exactly as printed
- Do not translate, summarize, reorder or correct anything
- Do not add text that is not in the image

Then estimate how reliable your transcription is as a number from 0 to 100, where 100 means every character is certain.

Return ONLY valid JSON in this exact format:
{
  "text": "line one\nline two",
  "confidence": 0
}

Do not include any text before or after the JSON and do not use markdown code blocks.`

// pdfToImage converts a PDF to a PNG image
func pdfToImage(pdfData []byte) ([]byte, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	// Receipts are single page
	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}

	return encodePNG(img)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// imageToPNG converts any image format to PNG
func imageToPNG(imageData []byte, mimeType string) ([]byte, error) {
	var img image.Image
	var err error

	// Phone cameras often send HEIC, which image.Decode does not know
	if isHEICFormat(imageData) || isHEICMimeType(mimeType) {
		img, err = heic.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
	} else {
		img, _, err = image.Decode(bytes.NewReader(imageData))
		if errors.Is(err, image.ErrFormat) {
			return nil, fmt.Errorf("unsupported image format, expected JPEG, PNG, GIF, HEIC or PDF: %w", err)
		}
		if err != nil {
			return nil, fmt.Errorf("decoding image: %w", err)
		}
	}

	return encodePNG(img)
}

// isHEICFormat looks for an ftyp box with a HEIC or HEIF brand
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

func isHEICMimeType(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}

// isPDF reports whether the upload is a PDF, by MIME type or magic bytes
func isPDF(data []byte, mimeType string) bool {
	return normalizeMimeType(mimeType) == "application/pdf" || bytes.HasPrefix(data, []byte("%PDF-"))
}

func normalizeMimeType(contentType string) string {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	return mimeType
}

// prepareImageData turns any supported upload into PNG bytes. The boolean
// reports whether a conversion took place.
func prepareImageData(imageData []byte, contentType string) ([]byte, bool, error) {
	mimeType := normalizeMimeType(contentType)
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	switch {
	case isPDF(imageData, mimeType):
		pngData, err := pdfToImage(imageData)
		if err != nil {
			return nil, false, fmt.Errorf("converting PDF to image: %w", err)
		}
		return pngData, true, nil
	case mimeType != "image/png" || isHEICFormat(imageData):
		pngData, err := imageToPNG(imageData, mimeType)
		if err != nil {
			return nil, false, fmt.Errorf("converting image to PNG: %w", err)
		}
		return pngData, true, nil
	}
	return imageData, false, nil
}
