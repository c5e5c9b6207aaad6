package pattern

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	dayFirstDate  = regexp.MustCompile(`(\d{1,2})[./](\d{1,2})[./](\d{4}|\d{2})`)
	yearFirstDate = regexp.MustCompile(`(\d{4})[./-](\d{1,2})[./-](\d{1,2})`)
	monthNameDate = regexp.MustCompile(`(?i)(\d{1,2})\s+(янв|фев|мар|апр|ма[йя]|июн|июл|авг|сен|окт|ноя|дек)[а-я]*\.?\s+(\d{4})`)
	clockTime     = regexp.MustCompile(`(\d{1,2}):(\d{2})(?::(\d{2}))?`)
)

var monthNames = map[string]int{
	"янв": 1, "фев": 2, "мар": 3, "апр": 4, "май": 5, "мая": 5,
	"июн": 6, "июл": 7, "авг": 8, "сен": 9, "окт": 10, "ноя": 11, "дек": 12,
}

// NormalizeDate converts a date in any of the supported layouts to YYYY-MM-DD
func NormalizeDate(raw string) (string, bool) {
	s := FoldDigits(strings.TrimSpace(raw))
	if m := yearFirstDate.FindStringSubmatch(s); m != nil && m[0] == s {
		return formatDate(m[1], m[2], m[3], 0)
	}
	if m := dayFirstDate.FindStringSubmatch(s); m != nil && m[0] == s {
		return formatDate(m[3], m[2], m[1], 0)
	}
	if m := monthNameDate.FindStringSubmatch(s); m != nil && m[0] == s {
		return formatDate(m[3], "", m[1], monthNames[strings.ToLower(m[2])])
	}
	return "", false
}

func formatDate(year, month, day string, monthNum int) (string, bool) {
	y, _ := strconv.Atoi(year)
	if len(year) == 2 {
		y += 2000
	}
	mo := monthNum
	if month != "" {
		mo, _ = strconv.Atoi(month)
	}
	d, _ := strconv.Atoi(day)
	if mo < 1 || mo > 12 || d < 1 || d > 31 {
		return "", false
	}
	return fmt.Sprintf("%04d-%02d-%02d", y, mo, d), true
}

// NormalizeTime converts H:MM or H:MM:SS to HH:MM:SS
func NormalizeTime(raw string) (string, bool) {
	s := FoldDigits(strings.TrimSpace(raw))
	m := clockTime.FindStringSubmatch(s)
	if m == nil || m[0] != s {
		return "", false
	}
	h, _ := strconv.Atoi(m[1])
	mi, _ := strconv.Atoi(m[2])
	sec := 0
	if m[3] != "" {
		sec, _ = strconv.Atoi(m[3])
	}
	if h > 23 || mi > 59 || sec > 59 {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, mi, sec), true
}

// standalone reports whether the byte span [start, end) of s is not glued to
// neighbouring digits or to the given extra runes.
func standalone(s string, start, end int, extra string) bool {
	if start > 0 {
		prev := s[start-1]
		if prev >= '0' && prev <= '9' || strings.IndexByte(extra, prev) >= 0 {
			return false
		}
	}
	if end < len(s) {
		next := s[end]
		if next >= '0' && next <= '9' {
			return false
		}
		if strings.IndexByte(extra, next) >= 0 && end+1 < len(s) && s[end+1] >= '0' && s[end+1] <= '9' {
			return false
		}
	}
	return true
}

// regexpMatches runs re over the folded text and builds matches whose raw
// text comes from the original runes.
func regexpMatches(orig []rune, folded string, re *regexp.Regexp, extra string, build func(raw string) (Match, bool)) []Match {
	var matches []Match
	for _, loc := range re.FindAllStringIndex(folded, -1) {
		if !standalone(folded, loc[0], loc[1], extra) {
			continue
		}
		start := runeOffset(folded, loc[0])
		end := start + runeOffset(folded[loc[0]:], loc[1]-loc[0])
		m, ok := build(string(orig[start:end]))
		if !ok {
			continue
		}
		m.Position = start
		matches = append(matches, m)
	}
	return matches
}

type dateMatcher struct{}

// Date returns the date matcher: DD.MM.YYYY, DD/MM/YYYY, YYYY-MM-DD,
// YYYY.MM.DD and "12 марта 2024".
func Date() Matcher {
	return dateMatcher{}
}

func (dateMatcher) Name() string { return "date" }

func (dateMatcher) Match(text string) []Match {
	orig := []rune(text)
	folded := FoldDigits(text)
	build := func(conf float64) func(string) (Match, bool) {
		return func(raw string) (Match, bool) {
			normalized, ok := NormalizeDate(raw)
			return Match{Kind: KindDate, Normalized: normalized, Raw: raw, Confidence: conf}, ok
		}
	}
	var matches []Match
	matches = append(matches, regexpMatches(orig, folded, dayFirstDate, "./", build(0.9))...)
	matches = append(matches, regexpMatches(orig, folded, yearFirstDate, "./-", build(0.9))...)
	matches = append(matches, regexpMatches(orig, folded, monthNameDate, "", build(confKeyword))...)
	return matches
}

type timeMatcher struct{}

// Time returns the clock time matcher
func Time() Matcher {
	return timeMatcher{}
}

func (timeMatcher) Name() string { return "time" }

func (timeMatcher) Match(text string) []Match {
	return regexpMatches([]rune(text), FoldDigits(text), clockTime, ":", func(raw string) (Match, bool) {
		normalized, ok := NormalizeTime(raw)
		conf := confFormatted
		if strings.Count(raw, ":") == 2 {
			conf = 0.9
		}
		return Match{Kind: KindTime, Normalized: normalized, Raw: raw, Confidence: conf}, ok
	})
}
