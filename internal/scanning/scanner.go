package scanning

// Document is the text recognized on one receipt file
type Document struct {
	Text string `json:"text"`
	// Confidence is the engine's own estimate, 0 to 100
	Confidence float64 `json:"confidence"`
	// Engine names the scanner that produced the text
	Engine string `json:"engine"`
}

// Scanner defines the interface for text recognition on receipt files
type Scanner interface {
	// Recognize reads the text of a receipt image or PDF
	Recognize(data []byte, contentType string) (*Document, error)
	// Close closes the scanner and releases resources
	Close() error
}
