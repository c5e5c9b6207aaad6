package pattern

import (
	"regexp"
	"strings"
)

var recipientLine = regexp.MustCompile(`(?i)(?:` + fuzzyKeyword("получатель") + `|recipient)[ \t]*:?[ \t]*(\p{L}[\p{L}\- \t.]*)`)

// NormalizeRecipient extracts the name that follows the recipient keyword and
// collapses its whitespace.
func NormalizeRecipient(raw string) (string, bool) {
	m := recipientLine.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	name := strings.Join(strings.Fields(m[1]), " ")
	name = strings.TrimRight(name, " .-")
	if len([]rune(name)) < 2 {
		return "", false
	}
	return name, true
}

type recipientMatcher struct{}

// Recipient returns the matcher for the payee name written after
// "Получатель" on the same line.
func Recipient() Matcher {
	return recipientMatcher{}
}

func (recipientMatcher) Name() string { return "recipient" }

func (recipientMatcher) Match(text string) []Match {
	var matches []Match
	for _, loc := range recipientLine.FindAllStringIndex(text, -1) {
		raw := strings.TrimRight(text[loc[0]:loc[1]], " \t")
		name, ok := NormalizeRecipient(raw)
		if !ok {
			continue
		}
		matches = append(matches, Match{
			Kind:       KindRecipient,
			Normalized: name,
			Raw:        raw,
			Position:   runeOffset(text, loc[0]),
			Confidence: 0.7,
		})
	}
	return matches
}
