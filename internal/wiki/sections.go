package wiki

import (
	"regexp"
	"strings"

	"github.com/cloo-solutions/tutorai/internal/domain"
)

var headingLine = regexp.MustCompile(`^(={2,6})\s*(.*?)\s*={2,6}$`)

// ParseSections splits a plaintext extract on "== Heading ==" lines. Text
// before the first heading goes to the General section; subsections become
// sections of their own. Sections without text are dropped.
func ParseSections(extract string) []domain.Section {
	var sections []domain.Section
	name := domain.GeneralSection
	var body strings.Builder

	flush := func() {
		text := strings.TrimSpace(body.String())
		if text != "" {
			sections = append(sections, domain.Section{Name: name, Text: text})
		}
		body.Reset()
	}

	for _, line := range strings.Split(extract, "\n") {
		trimmed := strings.TrimSpace(line)
		if m := headingLine.FindStringSubmatch(trimmed); m != nil {
			flush()
			name = m[2]
			if name == "" {
				name = domain.GeneralSection
			}
			continue
		}
		body.WriteString(line)
		body.WriteByte('\n')
	}
	flush()

	return sections
}
