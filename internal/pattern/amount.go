package pattern

import (
	"regexp"
	"strconv"
	"strings"
)

// MaxAmount bounds accepted amounts from above, exclusive
const MaxAmount = 10_000_000

// CurrencyRUB is recorded on amounts that carry a ruble marker
const CurrencyRUB = "RUB"

// keywordWindow is how many runes before an amount a keyword may appear
const keywordWindow = 32

var (
	currencyAfter  = regexp.MustCompile(`(?i)^[ \t\x{00a0}]{0,2}(?:₽|руб(?:л[а-я]*)?\.?|rub|р\.?)(?:[^\p{L}]|$)`)
	currencyBefore = regexp.MustCompile(`(?i)(?:₽|rub|руб\.?)[ \t\x{00a0}]{0,2}$`)
)

// NormalizeAmount parses an amount written with a comma or dot decimal
// separator and optional space grouping. Values outside (0, MaxAmount) are
// rejected.
func NormalizeAmount(raw string) (float64, bool) {
	s := FoldDigits(strings.TrimSpace(raw))
	s = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "", ",", ".").Replace(s)
	if s == "" || strings.Count(s, ".") > 1 || strings.Trim(s, "0123456789.") != "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 || v >= MaxAmount {
		return 0, false
	}
	return v, true
}

// FormatAmount renders an amount with two decimals
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

type amountMatcher struct{}

// Amount returns the money amount matcher. A number counts as an amount only
// next to a currency marker or after a keyword such as "Итого".
func Amount() Matcher {
	return amountMatcher{}
}

func (amountMatcher) Name() string { return "amount" }

func isGroupSeparator(r rune) bool {
	return r == ' ' || r == '\u00a0' || r == '\u202f'
}

// numberEnd scans a number starting at i: a digit run, optional three-digit
// groups when the run is short, and an optional one or two digit fraction.
func numberEnd(rs []rune, i int) (end int, grouped bool) {
	j := digitRunEnd(rs, i)
	if j-i <= 3 {
		for j+4 <= len(rs) && isGroupSeparator(rs[j]) &&
			digitRunEnd(rs, j+1) == j+4 {
			j += 4
			grouped = true
		}
	}
	if j+1 < len(rs) && (rs[j] == '.' || rs[j] == ',') && isDigit(rs[j+1]) {
		if k := digitRunEnd(rs, j+1); k-(j+1) <= 2 {
			j = k
		}
	}
	return j, grouped
}

// partOfOtherToken reports whether the number at [start, end) belongs to a
// date, a time, a phone or a longer grouped digit sequence.
func partOfOtherToken(rs []rune, start, end int, grouped bool) bool {
	if start > 0 {
		prev := rs[start-1]
		if prev == '+' {
			return true
		}
		if start > 1 && strings.ContainsRune(".,:/", prev) && isDigit(rs[start-2]) {
			return true
		}
	}
	if end+1 < len(rs) {
		next := rs[end]
		if strings.ContainsRune(".,:/", next) && isDigit(rs[end+1]) {
			return true
		}
		if grouped && (isGroupSeparator(next) || next == '-') && isDigit(rs[end+1]) {
			return true
		}
	}
	return false
}

func (amountMatcher) Match(text string) []Match {
	orig := []rune(text)
	rs := []rune(FoldDigits(text))
	var matches []Match
	for i := 0; i < len(rs); {
		if !isDigit(rs[i]) {
			i++
			continue
		}
		start := i
		end, grouped := numberEnd(rs, start)
		i = end
		if partOfOtherToken(rs, start, end, grouped) {
			continue
		}
		raw := string(orig[start:end])
		value, ok := NormalizeAmount(raw)
		if !ok {
			continue
		}

		after := string(rs[end:min(len(rs), end+12)])
		before := string(rs[lineStart(rs, start):start])
		marker := currencyAfter.MatchString(after) || currencyBefore.MatchString(before)
		keyword := keywordBefore(rs, start, amountKeywords, keywordWindow)

		var conf float64
		switch {
		case keyword && marker:
			conf = confKeywordMarker
		case keyword:
			conf = confKeyword
		case marker:
			conf = confMarker
		default:
			continue
		}
		m := Match{
			Kind:       KindAmount,
			Normalized: FormatAmount(value),
			Raw:        raw,
			Position:   start,
			Confidence: conf,
		}
		if marker {
			m.Currency = CurrencyRUB
		}
		matches = append(matches, m)
	}
	return matches
}
