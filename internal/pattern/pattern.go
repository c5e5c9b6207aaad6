// Package pattern holds the matchers that find receipt fields in noisy OCR
// text and the normalizers that turn raw matches into canonical values.
package pattern

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Kind is a semantic category of a receipt field
type Kind string

const (
	KindPhone     Kind = "phone"
	KindAmount    Kind = "amount"
	KindAccount   Kind = "account"
	KindCard      Kind = "card"
	KindDate      Kind = "date"
	KindTime      Kind = "time"
	KindRecipient Kind = "recipient"
)

// Kinds lists every field kind in reporting order
var Kinds = []Kind{KindPhone, KindAmount, KindAccount, KindCard, KindDate, KindTime, KindRecipient}

// Order returns the position of k in Kinds, or len(Kinds) for unknown kinds
func Order(k Kind) int {
	for i, kind := range Kinds {
		if kind == k {
			return i
		}
	}
	return len(Kinds)
}

// Match is a single value found in the text
type Match struct {
	Kind       Kind    `json:"kind"`
	Normalized string  `json:"normalized"`
	Raw        string  `json:"raw"`
	Position   int     `json:"position"` // rune offset in the source text
	Confidence float64 `json:"confidence"`
	Currency   string  `json:"currency,omitempty"`
}

// Matcher finds values of one or more field kinds in text.
// Implementations hold no mutable state and are safe for concurrent use.
type Matcher interface {
	// Name identifies the matcher in logs
	Name() string

	// Match returns every value found in text, in order of position
	Match(text string) []Match
}

// Local confidence levels shared by the matchers
const (
	confKeywordMarker = 0.95
	confKeyword       = 0.85
	confFormatted     = 0.8
	confMarker        = 0.75
	confBare          = 0.6
)

// digitLookalikes maps letters OCR engines commonly emit in place of digits
var digitLookalikes = map[rune]rune{
	'O': '0', 'o': '0', 'О': '0', 'о': '0',
	'З': '3', 'з': '3',
	'l': '1', 'I': '1', '|': '1',
	'б': '6',
}

// FoldDigits replaces look-alike letters with digits where they sit inside a
// digit run: at most two in a row, with a digit directly on both sides.
// The replacement is rune-for-rune, so rune offsets are preserved.
func FoldDigits(text string) string {
	rs := []rune(text)
	out := make([]rune, len(rs))
	copy(out, rs)
	changed := false
	for i := 0; i < len(rs); {
		if _, ok := digitLookalikes[rs[i]]; !ok || i == 0 || !isDigit(rs[i-1]) {
			i++
			continue
		}
		j := i
		for j < len(rs) && j-i < 3 {
			if _, ok := digitLookalikes[rs[j]]; !ok {
				break
			}
			j++
		}
		if j-i <= 2 && j < len(rs) && isDigit(rs[j]) {
			for k := i; k < j; k++ {
				out[k] = digitLookalikes[rs[k]]
			}
			changed = true
		}
		i = j
	}
	if !changed {
		return text
	}
	return string(out)
}

// lookalikes lists Latin letters (and zero) that OCR confuses with Cyrillic ones
var lookalikes = map[rune]string{
	'а': "аa",
	'в': "вb",
	'е': "еeё",
	'ё': "ёеe",
	'к': "кk",
	'м': "мm",
	'н': "нh",
	'о': "оo0",
	'р': "рp",
	'с': "сc",
	'т': "тt",
	'у': "уy",
	'х': "хx",
}

// fuzzyKeyword turns a keyword into a regexp fragment that also accepts
// Latin look-alikes of its Cyrillic letters and any run of whitespace
// between words. Combine with (?i).
func fuzzyKeyword(word string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(word) {
		switch {
		case r == ' ':
			b.WriteString(`\s+`)
		case lookalikes[r] != "":
			b.WriteString("[" + lookalikes[r] + "]")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	return b.String()
}

// keywordRegexp compiles a case-insensitive alternation of fuzzy keywords
func keywordRegexp(words ...string) *regexp.Regexp {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = fuzzyKeyword(w)
	}
	return regexp.MustCompile(`(?i)(?:` + strings.Join(parts, "|") + `)`)
}

var (
	phoneKeywords   = keywordRegexp("номер телефона", "телефон", "тел.", "мобильный", "на телефон", "получатель", "контакт", "phone")
	amountKeywords  = keywordRegexp("сумма", "итого", "к оплате", "перевод", "всего", "total")
	accountKeywords = keywordRegexp("счет", "р/с", "карт", "получатель")
)

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func digitRunEnd(rs []rune, i int) int {
	for i < len(rs) && isDigit(rs[i]) {
		i++
	}
	return i
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if isDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// lineStart returns the rune offset of the first rune on the line containing i
func lineStart(rs []rune, i int) int {
	for i > 0 && rs[i-1] != '\n' {
		i--
	}
	return i
}

// keywordBefore reports whether re matches in the text leading up to rune
// offset i on the same line, with no digits between the keyword and i.
// window limits how far back to look; 0 means the whole line.
func keywordBefore(rs []rune, i int, re *regexp.Regexp, window int) bool {
	start := lineStart(rs, i)
	if strings.TrimSpace(string(rs[start:i])) == "" && start > 0 {
		// Value on its own line: look at the line above
		start = lineStart(rs, start-1)
	}
	if window > 0 && i-window > start {
		start = i - window
	}
	prefix := string(rs[start:i])
	locs := re.FindAllStringIndex(prefix, -1)
	if len(locs) == 0 {
		return false
	}
	tail := prefix[locs[len(locs)-1][1]:]
	return strings.IndexFunc(tail, isDigit) < 0
}

// runeOffset converts a byte offset in s to a rune offset
func runeOffset(s string, byteOff int) int {
	return utf8.RuneCountInString(s[:byteOff])
}
