package domain

import (
	"strings"
)

// GeneralSection names the lead section of a document, the one without a heading.
const GeneralSection = "General"

// Section is one named span of a document's raw text.
// An empty Name marks the lead section.
type Section struct {
	Name string `json:"name,omitempty"`
	Text string `json:"text"`
}

// DisplayName returns the section name used in chunk ids and tags.
func (s Section) DisplayName() string {
	if strings.TrimSpace(s.Name) == "" {
		return GeneralSection
	}
	return s.Name
}

// Document is a fetched source article split into ordered sections.
type Document struct {
	Title    string    `json:"title"`
	Sections []Section `json:"sections"`
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil || strings.TrimSpace(d.Title) == "" || len(d.Sections) == 0 {
		return ErrInvalidDocument
	}
	return nil
}
