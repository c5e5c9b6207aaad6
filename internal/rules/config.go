package rules

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/videlboga/ReceiptScan/internal/pattern"
)

// ErrMissingKey is returned when a required configuration key is absent
var ErrMissingKey = errors.New("missing required key")

var requiredKeys = []string{
	"min_confidence",
	"amount_tolerance",
	"valid_phones",
	"valid_amounts",
	"valid_accounts",
	"valid_cards",
}

// Load reads and parses a rule set file
func Load(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}
	rs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing rules file %s: %w", path, err)
	}
	return rs, nil
}

// Parse builds a rule set from a YAML document. Every required key must be
// present; list entries are normalized and invalid entries are rejected.
func Parse(data []byte) (*RuleSet, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshaling yaml: %w", err)
	}
	for _, key := range requiredKeys {
		if _, ok := doc[key]; !ok {
			return nil, fmt.Errorf("%w %q", ErrMissingKey, key)
		}
	}

	rs := &RuleSet{}
	var err error
	if rs.MinConfidence, err = toFloat(doc["min_confidence"]); err != nil {
		return nil, fmt.Errorf("min_confidence: %w", err)
	}
	if rs.MinConfidence < 0 || rs.MinConfidence > 100 {
		return nil, fmt.Errorf("min_confidence must be between 0 and 100, got %v", rs.MinConfidence)
	}
	if rs.AmountTolerance, err = toFloat(doc["amount_tolerance"]); err != nil {
		return nil, fmt.Errorf("amount_tolerance: %w", err)
	}
	if rs.AmountTolerance < 0 {
		return nil, fmt.Errorf("amount_tolerance must not be negative, got %v", rs.AmountTolerance)
	}

	if rs.ValidPhones, err = stringList(doc, "valid_phones", pattern.NormalizePhone); err != nil {
		return nil, err
	}
	if rs.ValidAccounts, err = stringList(doc, "valid_accounts", pattern.NormalizeAccount); err != nil {
		return nil, err
	}
	if rs.ValidCards, err = stringList(doc, "valid_cards", pattern.NormalizeCard); err != nil {
		return nil, err
	}
	if rs.ValidAmounts, err = amountList(doc["valid_amounts"]); err != nil {
		return nil, err
	}

	if rs.Confidence, err = parsePolicy(doc["confidence"]); err != nil {
		return nil, err
	}
	return rs, nil
}

func parsePolicy(v any) (ConfidencePolicy, error) {
	weight := DefaultOCRWeight
	var expression string
	if v != nil {
		m, ok := v.(map[string]any)
		if !ok {
			return ConfidencePolicy{}, fmt.Errorf("confidence: expected a mapping, got %T", v)
		}
		if w, ok := m["ocr_weight"]; ok {
			f, err := toFloat(w)
			if err != nil {
				return ConfidencePolicy{}, fmt.Errorf("confidence.ocr_weight: %w", err)
			}
			weight = f
		}
		if e, ok := m["expression"]; ok && e != nil {
			s, ok := e.(string)
			if !ok {
				return ConfidencePolicy{}, fmt.Errorf("confidence.expression: expected a string, got %T", e)
			}
			expression = strings.TrimSpace(s)
		}
	}
	return NewConfidencePolicy(weight, expression)
}

func list(value any, key string) ([]any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []any:
		return v, nil
	default:
		return nil, fmt.Errorf("%s: expected a list, got %T", key, v)
	}
}

// stringList reads a list of numbers written as strings or integers and
// normalizes every entry.
func stringList(doc map[string]any, key string, normalize func(string) (string, bool)) ([]string, error) {
	items, err := list(doc[key], key)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		var raw string
		switch v := item.(type) {
		case string:
			raw = v
		case int, int64, uint64:
			raw = fmt.Sprint(v)
		default:
			return nil, fmt.Errorf("%s[%d]: expected a quoted string, got %T", key, i, item)
		}
		n, ok := normalize(raw)
		if !ok {
			return nil, fmt.Errorf("%s[%d]: invalid value %q", key, i, raw)
		}
		out = append(out, n)
	}
	return out, nil
}

// amountList accepts numbers, numeric strings and {value, currency} mappings
func amountList(v any) ([]Amount, error) {
	items, err := list(v, "valid_amounts")
	if err != nil {
		return nil, err
	}
	out := make([]Amount, 0, len(items))
	for i, item := range items {
		var a Amount
		if m, ok := item.(map[string]any); ok {
			if a.Value, err = amountValue(m["value"]); err != nil {
				return nil, fmt.Errorf("valid_amounts[%d].value: %w", i, err)
			}
			if c, ok := m["currency"].(string); ok {
				a.Currency = strings.ToUpper(strings.TrimSpace(c))
			}
		} else if a.Value, err = amountValue(item); err != nil {
			return nil, fmt.Errorf("valid_amounts[%d]: %w", i, err)
		}
		out = append(out, a)
	}
	return out, nil
}

func amountValue(v any) (float64, error) {
	if s, ok := v.(string); ok {
		f, ok := pattern.NormalizeAmount(s)
		if !ok {
			return 0, fmt.Errorf("invalid amount %q", s)
		}
		return f, nil
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, err
	}
	if f <= 0 || f >= pattern.MaxAmount {
		return 0, fmt.Errorf("amount %v out of range", f)
	}
	return f, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("parsing number %q: %w", n, err)
		}
		return f, nil
	}
	return 0, fmt.Errorf("expected a number, got %T", v)
}
