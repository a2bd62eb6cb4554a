package service

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// minSentenceChars drops fragments such as stray headings or list markers.
const minSentenceChars = 10

var (
	headingPattern    = regexp.MustCompile(`==+[^=\n]*==+`)
	templatePattern   = regexp.MustCompile(`\{\{[^}]*\}\}`)
	linkMarkupPattern = regexp.MustCompile(`\[\[|\]\]`)
	citationPattern   = regexp.MustCompile(`\[[^\]]+\]`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// abbreviations never end a sentence when followed by a period. Single
// letters (initials, the "a" and "d" of "a. C.") are handled separately.
var abbreviations = map[string]bool{
	"sr": true, "sra": true, "srta": true, "dr": true, "dra": true,
	"etc": true, "ej": true, "núm": true, "aprox": true, "ca": true,
	"vol": true, "pág": true, "cap": true, "gral": true, "cnel": true,
}

// CleanText strips wiki markup remnants and citation markers and collapses whitespace.
func CleanText(text string) string {
	text = headingPattern.ReplaceAllString(text, " ")
	text = templatePattern.ReplaceAllString(text, " ")
	text = linkMarkupPattern.ReplaceAllString(text, "")
	text = citationPattern.ReplaceAllString(text, "")
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// SplitSentences splits cleaned text into sentences, keeping terminal
// punctuation and dropping fragments of minSentenceChars or fewer. A period
// only ends a sentence when whitespace or the end of text follows it, so
// "1.200" stays whole, and never after a known abbreviation or an initial.
func SplitSentences(text string) []string {
	var out []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		if !isTerminator(runes[i]) {
			continue
		}
		end := i + 1
		for end < len(runes) && isTerminator(runes[end]) {
			end++
		}
		boundary := end == len(runes) || unicode.IsSpace(runes[end])
		if boundary && runes[i] == '.' && end-i == 1 {
			boundary = endsSentence(runes[start:i], runes[end:])
		}
		if boundary {
			out = appendSentence(out, string(runes[start:end]))
			start = end
		}
		i = end - 1
	}
	return appendSentence(out, string(runes[start:]))
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// endsSentence reports whether a period between before and after closes a
// sentence.
func endsSentence(before, after []rune) bool {
	fields := strings.Fields(string(before))
	if len(fields) == 0 {
		return true
	}
	word := strings.TrimLeft(fields[len(fields)-1], "(¿¡\"'«")

	// "a. C." and "d. C." close a sentence only when a capital follows.
	if word == "C" && len(fields) > 1 {
		prev := fields[len(fields)-2]
		return (prev == "a." || prev == "d.") && startsUpper(after)
	}
	if r, size := utf8.DecodeRuneInString(word); size == len(word) && unicode.IsLetter(r) {
		return false
	}
	return !abbreviations[strings.ToLower(word)]
}

func startsUpper(text []rune) bool {
	for _, r := range text {
		if !unicode.IsSpace(r) {
			return unicode.IsUpper(r)
		}
	}
	return true
}

func appendSentence(out []string, s string) []string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= minSentenceChars {
		return out
	}
	return append(out, s)
}
