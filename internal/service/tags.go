package service

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const maxCategoryTags = 24

var (
	// Capitalized runs, allowing lowercase joiners inside names ("Guerra de los Mil Días").
	properNounPattern = regexp.MustCompile(`\p{Lu}[\p{L}'’-]+(?:\s+(?:(?:de|del|la|las|los|el|y|of|the)\s+)?\p{Lu}[\p{L}'’-]+)*`)

	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\d{1,2} de \p{Ll}+ de \d{1,4}`),
		regexp.MustCompile(`(?i)siglo [IVXLCDM]+`),
		regexp.MustCompile(`(?i)\d{1,2}(?:st|nd|rd|th) century`),
		regexp.MustCompile(`(?i)años? \d{3,4}(?:-\d{1,4})?`),
		regexp.MustCompile(`\b\d{3,4}\b`),
	}
)

// ExtractTags derives the category tags of a chunk: its title and section,
// dates and periods mentioned in the text, and proper-noun phrases. Single
// capitalized words count only when they recur, which filters sentence-initial words.
func ExtractTags(title, section, content string) []string {
	seen := make(map[string]bool)
	var tags []string
	add := func(tag string) {
		tag = strings.TrimSpace(tag)
		key := strings.ToLower(tag)
		if utf8.RuneCountInString(tag) < 2 || seen[key] || len(tags) >= maxCategoryTags {
			return
		}
		seen[key] = true
		tags = append(tags, tag)
	}

	add(title)
	add(section)

	for _, re := range datePatterns {
		for _, m := range re.FindAllString(content, -1) {
			add(m)
		}
	}

	counts := make(map[string]int)
	var singles []string
	for _, m := range properNounPattern.FindAllString(content, -1) {
		if strings.ContainsAny(m, " \t") {
			add(m)
			continue
		}
		if counts[m] == 0 {
			singles = append(singles, m)
		}
		counts[m]++
	}
	for _, w := range singles {
		if counts[w] > 1 && utf8.RuneCountInString(w) >= 4 {
			add(w)
		}
	}

	return tags
}

// CategoryText renders tags as the text embedded into the category channel.
func CategoryText(tags []string) string {
	return strings.Join(tags, ", ")
}
