package rules

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// DefaultOCRWeight is the share of OCR confidence in the aggregate score
const DefaultOCRWeight = 0.5

// ConfidencePolicy combines OCR confidence with field confidences into the
// aggregate confidence of a verdict.
//
// Without an expression the aggregate is
//
//	OCRWeight*ocr_confidence + (1-OCRWeight)*field_confidence
//
// where field_confidence is the mean confidence (0-100) of the best
// candidate of every kind found. An expression replaces the formula; it sees
// the variables ocr_confidence, field_confidence and fields_found. Either way
// the result is clamped to [0, min(100, ocr_confidence)].
type ConfidencePolicy struct {
	OCRWeight  float64 `json:"ocr_weight"`
	Expression string  `json:"expression,omitempty"`

	program cel.Program
}

var policyEnv *cel.Env

func init() {
	env, err := cel.NewEnv(
		cel.Variable("ocr_confidence", cel.DoubleType),
		cel.Variable("field_confidence", cel.DoubleType),
		cel.Variable("fields_found", cel.IntType),
	)
	if err != nil {
		panic(fmt.Sprintf("creating CEL environment: %v", err))
	}
	policyEnv = env
}

// NewConfidencePolicy validates the weight and compiles the expression, if any
func NewConfidencePolicy(ocrWeight float64, expression string) (ConfidencePolicy, error) {
	if ocrWeight < 0 || ocrWeight > 1 {
		return ConfidencePolicy{}, fmt.Errorf("ocr_weight must be between 0 and 1, got %v", ocrWeight)
	}
	p := ConfidencePolicy{OCRWeight: ocrWeight, Expression: expression}
	if expression == "" {
		return p, nil
	}

	ast, issues := policyEnv.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return ConfidencePolicy{}, fmt.Errorf("compiling confidence expression: %w", issues.Err())
	}
	if t := ast.OutputType(); t != cel.DoubleType && t != cel.IntType {
		return ConfidencePolicy{}, fmt.Errorf("confidence expression must return double or int, got %s", t)
	}
	program, err := policyEnv.Program(ast)
	if err != nil {
		return ConfidencePolicy{}, fmt.Errorf("creating confidence program: %w", err)
	}
	p.program = program
	return p, nil
}

// Aggregate scores a verdict. fieldConfidences holds the best candidate
// confidence (0-1) of every kind found.
func (p ConfidencePolicy) Aggregate(ocr float64, fieldConfidences []float64) float64 {
	if len(fieldConfidences) == 0 {
		return 0
	}
	var sum float64
	for _, c := range fieldConfidences {
		sum += c * 100
	}
	mean := sum / float64(len(fieldConfidences))

	score := p.OCRWeight*ocr + (1-p.OCRWeight)*mean
	if p.program != nil {
		v, err := p.eval(ocr, mean, len(fieldConfidences))
		if err != nil {
			slog.Warn("Confidence expression failed, using weighted formula", "expression", p.Expression, "error", err)
		} else {
			score = v
		}
	}
	return clamp(score, 0, math.Min(100, ocr))
}

func (p ConfidencePolicy) eval(ocr, field float64, found int) (float64, error) {
	out, _, err := p.program.Eval(map[string]any{
		"ocr_confidence":   ocr,
		"field_confidence": field,
		"fields_found":     int64(found),
	})
	if err != nil {
		return 0, err
	}
	return toScore(out)
}

func toScore(val ref.Val) (float64, error) {
	switch v := val.(type) {
	case types.Double:
		return float64(v), nil
	case types.Int:
		return float64(v), nil
	}
	return 0, fmt.Errorf("unexpected result type %s", val.Type())
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || hi < lo {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
