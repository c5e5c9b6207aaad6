package scanning

import (
	"encoding/json"
	"fmt"
	"strings"
)

type recognitionJSON struct {
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence"`
}

// parseRecognitionJSON parses the JSON answer of an LLM scanner. A missing
// confidence is read as 0 so the document cannot pass a confidence gate on
// the model's word alone.
func parseRecognitionJSON(text string) (*Document, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}
	text = text[startIdx : endIdx+1]

	var data recognitionJSON
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	doc := &Document{Text: strings.TrimSpace(data.Text)}
	if data.Confidence != nil {
		doc.Confidence = min(max(*data.Confidence, 0), 100)
	}
	return doc, nil
}
