package pattern

import "strings"

// NormalizePhone reduces a phone number to 11 digits starting with 7.
// Accepted inputs, after dropping everything but digits: 11 digits starting
// with 7 or 8, or 10 digits not starting with 7.
func NormalizePhone(raw string) (string, bool) {
	d := digitsOnly(FoldDigits(raw))
	switch {
	case len(d) == 11 && d[0] == '7':
		return d, true
	case len(d) == 11 && d[0] == '8':
		return "7" + d[1:], true
	case len(d) == 10 && d[0] != '7':
		return "7" + d, true
	}
	return "", false
}

type phoneMatcher struct{}

// Phone returns the phone number matcher. Digit groups separated by spaces,
// dashes or parentheses are joined before normalization.
func Phone() Matcher {
	return phoneMatcher{}
}

func (phoneMatcher) Name() string { return "phone" }

func isPhoneSeparator(r rune) bool {
	return r == ' ' || r == '\t' || r == '\u00a0' || r == '-' || r == '(' || r == ')'
}

// digitRun is a maximal run of digits, in rune offsets
type digitRun struct {
	start, end int
}

func (r digitRun) len() int { return r.end - r.start }

// digitChains groups digit runs joined by short separator gaps. sep decides
// which runes may appear in a gap and maxGap bounds its length.
func digitChains(rs []rune, sep func(rune) bool, maxGap int) [][]digitRun {
	var chains [][]digitRun
	var cur []digitRun
	for i := 0; i < len(rs); {
		if !isDigit(rs[i]) {
			i++
			continue
		}
		run := digitRun{start: i, end: digitRunEnd(rs, i)}
		if len(cur) > 0 && !joinable(rs, cur[len(cur)-1].end, run.start, sep, maxGap) {
			chains = append(chains, cur)
			cur = nil
		}
		cur = append(cur, run)
		i = run.end
	}
	if len(cur) > 0 {
		chains = append(chains, cur)
	}
	return chains
}

func joinable(rs []rune, from, to int, sep func(rune) bool, maxGap int) bool {
	if to-from > maxGap {
		return false
	}
	for _, r := range rs[from:to] {
		if !sep(r) {
			return false
		}
	}
	return true
}

func chainDigits(rs []rune, chain []digitRun) string {
	var b strings.Builder
	for _, run := range chain {
		b.WriteString(string(rs[run.start:run.end]))
	}
	return b.String()
}

func chainLen(chain []digitRun) int {
	n := 0
	for _, run := range chain {
		n += run.len()
	}
	return n
}

func (phoneMatcher) Match(text string) []Match {
	orig := []rune(text)
	rs := []rune(FoldDigits(text))
	var matches []Match
	for _, chain := range digitChains(rs, isPhoneSeparator, 3) {
		// A whole chain of card or account length is never a phone
		if n := chainLen(chain); n == 16 || n == 20 {
			continue
		}
		for s := 0; s < len(chain); {
			best := -1
			total := 0
			for e := s; e < len(chain); e++ {
				total += chain[e].len()
				if total > 11 {
					break
				}
				if total >= 10 {
					if _, ok := NormalizePhone(chainDigits(rs, chain[s:e+1])); ok {
						best = e
					}
				}
			}
			if best < 0 {
				s++
				continue
			}
			matches = append(matches, phoneMatch(orig, rs, chain[s:best+1]))
			s = best + 1
		}
	}
	return matches
}

func phoneMatch(orig, rs []rune, chain []digitRun) Match {
	start := chain[0].start
	end := chain[len(chain)-1].end
	// "(987) 933 55 15"
	if start > 0 && rs[start-1] == '(' && chain[0].end < len(rs) && rs[chain[0].end] == ')' {
		start--
	}
	plus := start > 0 && rs[start-1] == '+'
	if plus {
		start--
	}
	raw := string(orig[start:end])
	normalized, _ := NormalizePhone(raw)

	digits := chainLen(chain)
	conf := confBare
	switch {
	case keywordBefore(rs, start, phoneKeywords, 0):
		conf = confKeywordMarker
	case plus || len(chain) > 1:
		conf = confFormatted
	case digits == 11:
		conf = confMarker
	}
	return Match{
		Kind:       KindPhone,
		Normalized: normalized,
		Raw:        raw,
		Position:   start,
		Confidence: conf,
	}
}
