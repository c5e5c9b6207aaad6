package receipt

import (
	"time"

	"github.com/videlboga/ReceiptScan/internal/extract"
	"github.com/videlboga/ReceiptScan/internal/rules"
)

// Sources of the text of a check
const (
	SourceFile = "file"
	SourceText = "text"
)

// Check is one validated receipt together with everything that led to the
// verdict
type Check struct {
	ID            string              `json:"id"`
	Source        string              `json:"source"`
	Filename      string              `json:"filename,omitempty"`
	ContentType   string              `json:"content_type,omitempty"`
	Engine        string              `json:"engine,omitempty"`
	Text          string              `json:"text"`
	OCRConfidence float64             `json:"ocr_confidence"`
	Candidates    []extract.Candidate `json:"candidates"`
	Items         []extract.Item      `json:"items,omitempty"`
	Verdict       rules.Verdict       `json:"verdict"`
	Report        string              `json:"report"`
	CreatedAt     time.Time           `json:"created_at"`
}
