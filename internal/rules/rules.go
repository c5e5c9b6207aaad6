// Package rules validates extracted receipt fields against a configured rule
// set and scores the result.
package rules

import (
	"fmt"
	"math"
	"slices"

	"github.com/videlboga/ReceiptScan/internal/pattern"
)

// amountEpsilon absorbs float error when comparing against the tolerance
const amountEpsilon = 1e-9

// Amount is a valid payment amount. An empty Currency matches any currency.
type Amount struct {
	Value    float64 `json:"value"`
	Currency string  `json:"currency,omitempty"`
}

// RuleSet is an immutable set of validation rules. Replace it as a whole
// through a Store rather than modifying it.
type RuleSet struct {
	MinConfidence   float64          `json:"min_confidence"`
	AmountTolerance float64          `json:"amount_tolerance"`
	ValidPhones     []string         `json:"valid_phones"`
	ValidAmounts    []Amount         `json:"valid_amounts"`
	ValidAccounts   []string         `json:"valid_accounts"`
	ValidCards      []string         `json:"valid_cards"`
	Confidence      ConfidencePolicy `json:"confidence"`
}

// HasPhone reports whether the normalized phone is in the valid list
func (rs *RuleSet) HasPhone(phone string) bool {
	return slices.Contains(rs.ValidPhones, phone)
}

// HasAccount reports whether the account number is in the valid list
func (rs *RuleSet) HasAccount(account string) bool {
	return slices.Contains(rs.ValidAccounts, account)
}

// HasCard reports whether the card number is in the valid list
func (rs *RuleSet) HasCard(card string) bool {
	return slices.Contains(rs.ValidCards, card)
}

// MatchAmount returns the configured amount within tolerance of v. Currencies
// must agree when both sides name one.
func (rs *RuleSet) MatchAmount(v float64, currency string) (Amount, bool) {
	for _, a := range rs.ValidAmounts {
		if a.Currency != "" && currency != "" && a.Currency != currency {
			continue
		}
		if math.Abs(v-a.Value) <= rs.AmountTolerance+amountEpsilon {
			return a, true
		}
	}
	return Amount{}, false
}

// judged reports whether the rule set has a validity list for kind
func (rs *RuleSet) judged(kind pattern.Kind) bool {
	switch kind {
	case pattern.KindPhone, pattern.KindAmount:
		return true
	case pattern.KindAccount:
		return len(rs.ValidAccounts) > 0
	case pattern.KindCard:
		return len(rs.ValidCards) > 0
	}
	return false
}

// WithValue returns a copy of the rule set with value added to the valid
// list for kind. Accounts and cards are told apart by length when kind is
// KindAccount, so a 16-digit number lands in the card list.
func (rs *RuleSet) WithValue(kind pattern.Kind, value string) (*RuleSet, error) {
	next := *rs
	switch kind {
	case pattern.KindPhone:
		phone, ok := pattern.NormalizePhone(value)
		if !ok {
			return nil, fmt.Errorf("invalid phone %q", value)
		}
		if !rs.HasPhone(phone) {
			next.ValidPhones = append(slices.Clone(rs.ValidPhones), phone)
		}
	case pattern.KindAmount:
		v, ok := pattern.NormalizeAmount(value)
		if !ok {
			return nil, fmt.Errorf("invalid amount %q", value)
		}
		if !slices.Contains(rs.ValidAmounts, Amount{Value: v}) {
			next.ValidAmounts = append(slices.Clone(rs.ValidAmounts), Amount{Value: v})
		}
	case pattern.KindAccount, pattern.KindCard:
		if account, ok := pattern.NormalizeAccount(value); ok {
			if !rs.HasAccount(account) {
				next.ValidAccounts = append(slices.Clone(rs.ValidAccounts), account)
			}
			break
		}
		if card, ok := pattern.NormalizeCard(value); ok {
			if !rs.HasCard(card) {
				next.ValidCards = append(slices.Clone(rs.ValidCards), card)
			}
			break
		}
		return nil, fmt.Errorf("invalid account or card number %q", value)
	default:
		return nil, fmt.Errorf("field %q has no validity list", kind)
	}
	return &next, nil
}

// Summary describes a rule set for display
type Summary struct {
	MinConfidence        float64 `json:"min_confidence"`
	AmountTolerance      float64 `json:"amount_tolerance"`
	Phones               int     `json:"phones"`
	Amounts              int     `json:"amounts"`
	Accounts             int     `json:"accounts"`
	Cards                int     `json:"cards"`
	OCRWeight            float64 `json:"ocr_weight"`
	ConfidenceExpression string  `json:"confidence_expression,omitempty"`
}

// Summary returns counts and thresholds of the rule set
func (rs *RuleSet) Summary() Summary {
	return Summary{
		MinConfidence:        rs.MinConfidence,
		AmountTolerance:      rs.AmountTolerance,
		Phones:               len(rs.ValidPhones),
		Amounts:              len(rs.ValidAmounts),
		Accounts:             len(rs.ValidAccounts),
		Cards:                len(rs.ValidCards),
		OCRWeight:            rs.Confidence.OCRWeight,
		ConfidenceExpression: rs.Confidence.Expression,
	}
}
