package models

import (
	"fmt"
	"sort"
	"time"
)

// TemplateStatus represents valid follow-up template statuses
type TemplateStatus string

const (
	TemplateStatusActive   TemplateStatus = "active"
	TemplateStatusInactive TemplateStatus = "inactive"
)

// ContentType is the kind of payload a step sends
type ContentType string

const (
	ContentText     ContentType = "text"
	ContentImage    ContentType = "image"
	ContentDocument ContentType = "document"
	ContentVideo    ContentType = "video"
)

// Template is a reusable drip campaign owned by one company
type Template struct {
	CompanyID string         `json:"company_id" db:"company_id"`
	ID        string         `json:"template_id" db:"template_id"`
	Name      string         `json:"name" db:"name"`
	Status    TemplateStatus `json:"status" db:"status"`
	Steps     []Step         `json:"steps"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" db:"updated_at"`
}

// IsActive reports whether the template may be started
func (t *Template) IsActive() bool {
	return t.Status == TemplateStatusActive
}

// Step is one message of a template.
//
// A step is timed either by a wall-clock time (UseClockTime) or by the raw
// delay_after document, which is parsed by the schedule package at planning time.
type Step struct {
	ID           int         `json:"id" db:"id"`
	CompanyID    string      `json:"company_id" db:"company_id"`
	TemplateID   string      `json:"template_id" db:"template_id"`
	DayNumber    int         `json:"day_number" db:"day_number"`
	Sequence     int         `json:"sequence" db:"sequence"`
	ContentType  ContentType `json:"message_type" db:"message_type"`
	Message      string      `json:"message" db:"message"`
	MediaURL     string      `json:"media_url,omitempty" db:"media_url"`
	FileName     string      `json:"file_name,omitempty" db:"file_name"`
	MimeType     string      `json:"mime_type,omitempty" db:"mime_type"`
	UseClockTime bool        `json:"use_clock_time" db:"use_clock_time"`
	ClockHour    int         `json:"clock_hour" db:"clock_hour"`
	ClockMinute  int         `json:"clock_minute" db:"clock_minute"`
	DelayAfter   string      `json:"delay_after,omitempty" db:"delay_after"`
	AddTags      []string    `json:"add_tags,omitempty" db:"add_tags"`
	RemoveTags   []string    `json:"remove_tags,omitempty" db:"remove_tags"`
	Status       string      `json:"status" db:"status"`
}

// Validate checks the structural fields of a step
func (s *Step) Validate() error {
	if s.DayNumber < 1 {
		return fmt.Errorf("day_number must be >= 1, got %d", s.DayNumber)
	}
	switch s.ContentType {
	case "", ContentText:
		if s.Message == "" {
			return fmt.Errorf("text step requires a message")
		}
	case ContentImage, ContentDocument, ContentVideo:
		if s.MediaURL == "" {
			return fmt.Errorf("%s step requires a media url", s.ContentType)
		}
	default:
		return fmt.Errorf("unknown message type %q", s.ContentType)
	}
	return nil
}

// HasTagEffects reports whether sending this step mutates contact tags
func (s *Step) HasTagEffects() bool {
	return len(s.AddTags) > 0 || len(s.RemoveTags) > 0
}

// SortSteps orders steps by (day_number, sequence). Ties keep retrieval order.
func SortSteps(steps []Step) {
	sort.SliceStable(steps, func(i, j int) bool {
		if steps[i].DayNumber != steps[j].DayNumber {
			return steps[i].DayNumber < steps[j].DayNumber
		}
		return steps[i].Sequence < steps[j].Sequence
	})
}

// StepPlan is a step paired with its resolved send time
type StepPlan struct {
	Index  int       `json:"index"`
	Step   Step      `json:"step"`
	SendAt time.Time `json:"send_at"`
}
