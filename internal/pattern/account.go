package pattern

const (
	accountDigits = 20
	cardDigits    = 16
)

// NormalizeAccount strips separators from a bank account number and reports
// whether exactly 20 digits remain.
func NormalizeAccount(raw string) (string, bool) {
	d := digitsOnly(FoldDigits(raw))
	return d, len(d) == accountDigits
}

// NormalizeCard strips separators from a card number and reports whether
// exactly 16 digits remain.
func NormalizeCard(raw string) (string, bool) {
	d := digitsOnly(FoldDigits(raw))
	return d, len(d) == cardDigits
}

type accountMatcher struct{}

// Account returns the matcher for 20-digit bank accounts and 16-digit card
// numbers. Digit groups separated by single spaces or dashes are joined.
func Account() Matcher {
	return accountMatcher{}
}

func (accountMatcher) Name() string { return "account" }

func isAccountSeparator(r rune) bool {
	return r == ' ' || r == '\u00a0' || r == '-'
}

func (accountMatcher) Match(text string) []Match {
	orig := []rune(text)
	rs := []rune(FoldDigits(text))
	var matches []Match
	for _, chain := range digitChains(rs, isAccountSeparator, 1) {
		for s := 0; s < len(chain); {
			best, kind := -1, Kind("")
			total := 0
			for e := s; e < len(chain); e++ {
				total += chain[e].len()
				if total > accountDigits {
					break
				}
				switch total {
				case accountDigits:
					best, kind = e, KindAccount
				case cardDigits:
					best, kind = e, KindCard
				}
			}
			if best < 0 {
				s++
				continue
			}
			matches = append(matches, accountMatch(orig, rs, chain[s:best+1], kind))
			s = best + 1
		}
	}
	return matches
}

func accountMatch(orig, rs []rune, chain []digitRun, kind Kind) Match {
	start := chain[0].start
	end := chain[len(chain)-1].end
	raw := string(orig[start:end])

	conf := 0.7
	switch {
	case keywordBefore(rs, start, accountKeywords, 0):
		conf = confKeywordMarker
	case len(chain) == 1:
		conf = confFormatted
	}
	return Match{
		Kind:       kind,
		Normalized: digitsOnly(string(rs[start:end])),
		Raw:        raw,
		Position:   start,
		Confidence: conf,
	}
}
