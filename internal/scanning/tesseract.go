package scanning

import (
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// DefaultLanguages are the Tesseract models used when none are configured
var DefaultLanguages = []string{"rus", "eng"}

// Tesseract implements the Scanner interface with a local Tesseract install.
// A client is created per call since gosseract clients are not safe for
// concurrent use.
type Tesseract struct {
	languages     []string
	clientFactory func() *gosseract.Client
}

// NewTesseract creates a Tesseract scanner for the given language models
func NewTesseract(languages ...string) *Tesseract {
	if len(languages) == 0 {
		languages = DefaultLanguages
	}
	return &Tesseract{
		languages:     languages,
		clientFactory: gosseract.NewClient,
	}
}

// Recognize runs Tesseract on the receipt. The confidence is the mean of the
// word confidences Tesseract reports.
func (t *Tesseract) Recognize(data []byte, contentType string) (*Document, error) {
	pngData, _, err := prepareImageData(data, contentType)
	if err != nil {
		return nil, err
	}

	c := t.clientFactory()
	defer c.Close()

	if err := c.SetLanguage(t.languages...); err != nil {
		return nil, fmt.Errorf("setting languages: %w", err)
	}
	// Receipts read best as one uniform block of text
	if err := c.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return nil, fmt.Errorf("setting page segmentation mode: %w", err)
	}
	if err := c.SetImageFromBytes(pngData); err != nil {
		return nil, fmt.Errorf("setting image: %w", err)
	}

	text, err := c.Text()
	if err != nil {
		return nil, fmt.Errorf("recognizing text: %w", err)
	}
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("reading word confidences: %w", err)
	}

	return &Document{
		Text:       strings.TrimSpace(text),
		Confidence: meanConfidence(boxes),
		Engine:     "tesseract",
	}, nil
}

// meanConfidence averages word confidences, skipping empty boxes that
// Tesseract reports with zero confidence.
func meanConfidence(boxes []gosseract.BoundingBox) float64 {
	var sum float64
	var n int
	for _, b := range boxes {
		if b.Confidence <= 0 || strings.TrimSpace(b.Word) == "" {
			continue
		}
		sum += b.Confidence
		n++
	}
	if n == 0 {
		return 0
	}
	return min(sum/float64(n), 100)
}

// Close is a no-op, clients are closed after every call
func (t *Tesseract) Close() error {
	return nil
}
