package service

import (
	"regexp"
	"strings"

	"whatsdrip/internal/models"
)

var placeholderPattern = regexp.MustCompile(`\{[a-zA-Z_]+\}`)

var knownPlaceholders = map[string]bool{
	"{first_name}": true,
	"{phone}":      true,
	"{contact_id}": true,
}

// TemplateService handles step message rendering
type TemplateService struct{}

// NewTemplateService creates a new template service
func NewTemplateService() *TemplateService {
	return &TemplateService{}
}

// Render replaces {first_name}, {phone} and {contact_id} with the contact's
// values. A missing first name renders as an empty string; unknown
// placeholders are left as-is.
func (s *TemplateService) Render(template string, contact models.Contact) string {
	if template == "" {
		return ""
	}

	replacer := strings.NewReplacer(
		"{first_name}", contact.FirstName,
		"{phone}", contact.Phone,
		"{contact_id}", contact.ID,
	)
	return replacer.Replace(template)
}

// GetPlaceholders extracts all placeholders from a template
func (s *TemplateService) GetPlaceholders(template string) []string {
	return placeholderPattern.FindAllString(template, -1)
}

// UnknownPlaceholders lists the placeholders Render leaves untouched, once each
func (s *TemplateService) UnknownPlaceholders(template string) []string {
	var unknown []string
	seen := map[string]bool{}
	for _, p := range s.GetPlaceholders(template) {
		if knownPlaceholders[p] || seen[p] {
			continue
		}
		seen[p] = true
		unknown = append(unknown, p)
	}
	return unknown
}
