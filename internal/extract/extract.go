// Package extract turns raw OCR text into field candidates.
package extract

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/videlboga/ReceiptScan/internal/pattern"
)

// Candidate is a proposed value for one field kind
type Candidate = pattern.Match

// Extractor runs a fixed set of matchers over text
type Extractor struct {
	matchers []pattern.Matcher
}

// New creates an Extractor with the given matchers
func New(matchers ...pattern.Matcher) *Extractor {
	return &Extractor{matchers: matchers}
}

// NewDefault creates an Extractor with every built-in matcher
func NewDefault() *Extractor {
	return New(
		pattern.Phone(),
		pattern.Amount(),
		pattern.Account(),
		pattern.Date(),
		pattern.Time(),
		pattern.Recipient(),
	)
}

// Extract returns the candidates found in text, ordered by kind and then by
// position. Candidates of one kind with the same normalized value are merged,
// keeping the most confident one (the earliest on ties).
func (e *Extractor) Extract(text string) []Candidate {
	type key struct {
		kind  pattern.Kind
		value string
	}
	best := make(map[key]Candidate)
	for _, m := range e.matchers {
		for _, c := range m.Match(text) {
			k := key{c.Kind, c.Normalized}
			prev, ok := best[k]
			if !ok || c.Confidence > prev.Confidence ||
				(c.Confidence == prev.Confidence && c.Position < prev.Position) {
				best[k] = c
			}
		}
	}

	candidates := make([]Candidate, 0, len(best))
	for _, c := range best {
		candidates = append(candidates, c)
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if oa, ob := pattern.Order(a.Kind), pattern.Order(b.Kind); oa != ob {
			return oa < ob
		}
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		return a.Normalized < b.Normalized
	})
	return candidates
}

// ByKind groups candidates by field kind, keeping their order
func ByKind(candidates []Candidate) map[pattern.Kind][]Candidate {
	grouped := make(map[pattern.Kind][]Candidate)
	for _, c := range candidates {
		grouped[c.Kind] = append(grouped[c.Kind], c)
	}
	return grouped
}

// Item is a purchased line on a receipt
type Item struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

var (
	itemLine     = regexp.MustCompile(`^(.*?\p{L}.*?)[ \t.]+(\d[\d \x{00a0}]*(?:[.,]\d{1,2})?)[ \t]*(?:₽|руб\.?|р\.?)?$`)
	summaryLines = regexp.MustCompile(`(?i)итог|сумм|оплат|всего|сдача|перевод|комисси|ндс|total`)
)

// Items returns lines shaped like "<name> <price>", skipping totals and
// other summary lines.
func (e *Extractor) Items(text string) []Item {
	var items []Item
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		m := itemLine.FindStringSubmatch(line)
		if m == nil || summaryLines.MatchString(m[1]) {
			continue
		}
		price, ok := pattern.NormalizeAmount(m[2])
		if !ok {
			continue
		}
		name := strings.Join(strings.Fields(strings.Trim(m[1], " :-")), " ")
		rs := []rune(name)
		if len(rs) < 2 || !unicode.IsLetter(rs[len(rs)-1]) {
			continue
		}
		items = append(items, Item{Name: name, Price: price})
	}
	return items
}
