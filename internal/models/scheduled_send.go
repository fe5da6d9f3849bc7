package models

import "time"

// SendStatus represents valid scheduled send statuses
type SendStatus string

const (
	SendStatusScheduled SendStatus = "scheduled"
	SendStatusDelayed   SendStatus = "delayed"
	SendStatusCompleted SendStatus = "completed"
)

// ScheduledTime is the dispatcher's timestamp encoding
type ScheduledTime struct {
	Seconds     int64 `json:"seconds"`
	Nanoseconds int64 `json:"nanoseconds"`
}

// NewScheduledTime keeps millisecond precision only; the nanosecond field is
// the sub-second millisecond remainder times 1e6.
func NewScheduledTime(t time.Time) ScheduledTime {
	ms := t.UnixMilli()
	return ScheduledTime{
		Seconds:     ms / 1000,
		Nanoseconds: (ms % 1000) * int64(time.Millisecond),
	}
}

// Time converts back to a UTC time.Time
func (st ScheduledTime) Time() time.Time {
	return time.Unix(st.Seconds, st.Nanoseconds).UTC()
}

// ScheduledSend is one persisted outbound message owned by the dispatcher
type ScheduledSend struct {
	ID             string        `json:"id,omitempty"`
	ChatIDs        []string      `json:"chatIds"`
	CompanyID      string        `json:"companyId"`
	Message        string        `json:"message"`
	MediaURL       string        `json:"mediaUrl,omitempty"`
	DocumentURL    string        `json:"documentUrl,omitempty"`
	FileName       string        `json:"fileName,omitempty"`
	MimeType       string        `json:"mimeType,omitempty"`
	ScheduledTime  ScheduledTime `json:"scheduledTime"`
	Status         SendStatus    `json:"status"`
	Type           string        `json:"type"`
	TemplateID     string        `json:"template_id"`
	ContactID      string        `json:"contact_id"`
	PhoneIndex     int           `json:"phoneIndex"`
	BatchQuantity  int           `json:"batchQuantity"`
	RepeatInterval int           `json:"repeatInterval"`
	RepeatUnit     string        `json:"repeatUnit"`
	V2             bool          `json:"v2"`
}

// HasRecipient reports whether chatID is among the recipients
func (s *ScheduledSend) HasRecipient(chatID string) bool {
	for _, id := range s.ChatIDs {
		if id == chatID {
			return true
		}
	}
	return false
}

// RemoveRecipient drops chatID from the recipient list. The status is left
// alone while other recipients remain; an emptied send becomes completed.
// It returns false when chatID was not a recipient.
func (s *ScheduledSend) RemoveRecipient(chatID string) bool {
	kept := make([]string, 0, len(s.ChatIDs))
	removed := false
	for _, id := range s.ChatIDs {
		if id == chatID {
			removed = true
			continue
		}
		kept = append(kept, id)
	}
	if !removed {
		return false
	}
	s.ChatIDs = kept
	if len(kept) == 0 {
		s.Status = SendStatusCompleted
	}
	return true
}

// IsActive reports whether the send still waits for dispatch
func (s *ScheduledSend) IsActive() bool {
	return s.Status != SendStatusCompleted
}
