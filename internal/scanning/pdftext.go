package scanning

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// PDFText reads the embedded text layer of PDF receipts, which bank apps
// generate, and hands everything else to the wrapped scanner.
type PDFText struct {
	fallback Scanner
}

// NewPDFText wraps fallback. Images and PDFs without a text layer go to it.
func NewPDFText(fallback Scanner) *PDFText {
	return &PDFText{fallback: fallback}
}

// Recognize returns the PDF text layer with full confidence when there is
// one, and the fallback's result otherwise.
func (p *PDFText) Recognize(data []byte, contentType string) (*Document, error) {
	if !isPDF(data, contentType) {
		return p.fallback.Recognize(data, contentType)
	}

	text, err := pdfText(data)
	if err != nil {
		return nil, err
	}
	if text == "" {
		slog.Debug("PDF has no text layer, running OCR")
		return p.fallback.Recognize(data, contentType)
	}
	return &Document{Text: text, Confidence: 100, Engine: "pdf-text"}, nil
}

func pdfText(data []byte) (string, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return "", fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	var pages []string
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err != nil {
			return "", fmt.Errorf("reading text of page %d: %w", i+1, err)
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}
	return strings.Join(pages, "\n"), nil
}

// Close closes the fallback scanner
func (p *PDFText) Close() error {
	return p.fallback.Close()
}
