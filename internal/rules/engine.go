package rules

import (
	"fmt"
	"strconv"

	"github.com/videlboga/ReceiptScan/internal/extract"
	"github.com/videlboga/ReceiptScan/internal/pattern"
)

// FieldResult is the outcome for one field kind
type FieldResult struct {
	Found bool `json:"found"`
	// Judged is set when the rule set has a validity list for the kind
	Judged bool `json:"judged"`
	// Required fields must be found and valid for the verdict to pass
	Required   bool    `json:"required"`
	Valid      bool    `json:"valid"`
	Value      string  `json:"value,omitempty"`
	Raw        string  `json:"raw,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Verdict is the result of validating one document. It is never modified
// after Validate returns it.
type Verdict struct {
	Valid           bool                         `json:"valid"`
	Confidence      float64                      `json:"confidence"`
	OCRConfidence   float64                      `json:"ocr_confidence"`
	MinConfidence   float64                      `json:"min_confidence"`
	ConfidenceGate  bool                         `json:"confidence_gate"`
	Fields          map[pattern.Kind]FieldResult `json:"fields"`
	Recommendations []string                     `json:"recommendations,omitempty"`
}

// Field returns the result for kind
func (v Verdict) Field(kind pattern.Kind) FieldResult {
	return v.Fields[kind]
}

// Validate checks candidates against the rule set.
//
// The verdict passes when the OCR confidence reaches rs.MinConfidence, phone
// and amount are both found and valid, and no account or card that was found
// is invalid. Date, time and recipient are only reported as found or not.
// rs must be a rule set produced by Parse or Load.
func Validate(candidates []extract.Candidate, ocrConfidence float64, rs *RuleSet) Verdict {
	best := bestByKind(candidates)
	v := Verdict{
		OCRConfidence:  ocrConfidence,
		MinConfidence:  rs.MinConfidence,
		ConfidenceGate: ocrConfidence >= rs.MinConfidence,
		Fields:         make(map[pattern.Kind]FieldResult, len(pattern.Kinds)),
	}

	valid := v.ConfidenceGate
	var confidences []float64
	for _, kind := range pattern.Kinds {
		res := FieldResult{
			Judged:   rs.judged(kind),
			Required: kind == pattern.KindPhone || kind == pattern.KindAmount,
		}
		if c, ok := best[kind]; ok {
			res.Found = true
			res.Value = c.Normalized
			res.Raw = c.Raw
			res.Confidence = c.Confidence
			confidences = append(confidences, c.Confidence)
			if res.Judged {
				res.Valid = rs.valid(c)
			}
		}
		if res.Required && !(res.Found && res.Valid) {
			valid = false
		}
		if res.Judged && res.Found && !res.Valid {
			valid = false
		}
		v.Fields[kind] = res
	}

	v.Valid = valid
	v.Confidence = rs.Confidence.Aggregate(ocrConfidence, confidences)
	v.Recommendations = recommend(v)
	return v
}

// bestByKind picks the most confident candidate of every kind, the first
// one on ties.
func bestByKind(candidates []extract.Candidate) map[pattern.Kind]extract.Candidate {
	best := make(map[pattern.Kind]extract.Candidate)
	for _, c := range candidates {
		if prev, ok := best[c.Kind]; !ok || c.Confidence > prev.Confidence {
			best[c.Kind] = c
		}
	}
	return best
}

func (rs *RuleSet) valid(c extract.Candidate) bool {
	switch c.Kind {
	case pattern.KindPhone:
		return rs.HasPhone(c.Normalized)
	case pattern.KindAmount:
		amount, err := strconv.ParseFloat(c.Normalized, 64)
		if err != nil {
			return false
		}
		_, ok := rs.MatchAmount(amount, c.Currency)
		return ok
	case pattern.KindAccount:
		return rs.HasAccount(c.Normalized)
	case pattern.KindCard:
		return rs.HasCard(c.Normalized)
	}
	return false
}

// recommend lists hints for the user on how to get a passing check
func recommend(v Verdict) []string {
	var out []string
	found := 0
	for _, res := range v.Fields {
		if res.Found {
			found++
		}
	}
	if found == 0 {
		out = append(out, "Проверьте качество изображения чека - текст не удалось разобрать")
	}
	if !v.ConfidenceGate {
		out = append(out, "Низкое качество распознавания - попробуйте сделать более четкое фото")
	}

	phone := v.Fields[pattern.KindPhone]
	switch {
	case !phone.Found:
		out = append(out, "Убедитесь, что номер телефона получателя четко виден на чеке")
	case !phone.Valid:
		out = append(out, fmt.Sprintf("Номер телефона %s не найден в списке валидных", phone.Value))
	}

	amount := v.Fields[pattern.KindAmount]
	switch {
	case !amount.Found:
		out = append(out, "Сумма не распознана - проверьте, что сумма четко видна на чеке")
	case !amount.Valid:
		out = append(out, fmt.Sprintf("Сумма %s не найдена в списке валидных", amount.Value))
	}

	if account := v.Fields[pattern.KindAccount]; account.Judged && account.Found && !account.Valid {
		out = append(out, fmt.Sprintf("Счет %s не найден в списке валидных", account.Value))
	}
	if card := v.Fields[pattern.KindCard]; card.Judged && card.Found && !card.Valid {
		out = append(out, fmt.Sprintf("Карта %s не найдена в списке валидных", card.Value))
	}
	return out
}
