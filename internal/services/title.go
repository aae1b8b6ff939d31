package services

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const defaultTitleMaxLen = 60

// Words are letter runs with optional trailing digits ("week2") or digit runs
// with optional trailing letters ("5kg").
var titleWordRE = regexp.MustCompile(`[\p{L}]+[\p{N}]*|[\p{N}]+[\p{L}]*`)

// Minimal English stop-words set for compact titles.
var titleStopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "to": {}, "in": {},
	"is": {}, "are": {}, "for": {}, "on": {}, "with": {}, "by": {}, "from": {},
	"at": {}, "as": {}, "that": {}, "this": {}, "it": {}, "be": {}, "was": {}, "were": {},
	"i": {}, "me": {}, "my": {}, "want": {}, "please": {}, "can": {}, "you": {},
}

// generateTitle derives a concise title of at most eight words from the first
// user message, title-cased for locale and clipped to maxLen runes.
func generateTitle(text string, locale language.Tag, maxLen int) string {
	toks := titleWordRE.FindAllString(strings.ToLower(strings.TrimSpace(text)), -1)
	if len(toks) == 0 {
		return ""
	}
	if locale == language.Und {
		locale = language.English
	}
	caser := cases.Title(locale)

	out := make([]string, 0, 8)
	for _, w := range toks {
		if _, skip := titleStopWords[w]; skip {
			continue
		}
		// Number-led tokens keep their unit as written ("5kg", not "5Kg").
		if r, _ := utf8.DecodeRuneInString(w); unicode.IsLetter(r) {
			w = caser.String(w)
		}
		out = append(out, w)
		if len(out) >= 8 {
			break
		}
	}
	if len(out) == 0 {
		return ""
	}
	return clipRunes(strings.Join(out, " "), maxLen)
}

func clipRunes(s string, max int) string {
	if max <= 0 {
		max = defaultTitleMaxLen
	}
	if utf8.RuneCountInString(s) > max {
		return strings.TrimSpace(string([]rune(s)[:max]))
	}
	return s
}
