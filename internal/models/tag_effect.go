package models

import "time"

// TagAction is the mutation a tag effect performs
type TagAction string

const (
	TagActionAdd    TagAction = "add"
	TagActionRemove TagAction = "remove"
)

// TagEffectStatus represents valid tag effect statuses
type TagEffectStatus string

const (
	TagEffectPending   TagEffectStatus = "pending"
	TagEffectQueued    TagEffectStatus = "queued"
	TagEffectApplied   TagEffectStatus = "applied"
	TagEffectCancelled TagEffectStatus = "cancelled"
	TagEffectFailed    TagEffectStatus = "failed"
)

// TagEffect is a persisted intent to add or remove contact tags at FireAt
type TagEffect struct {
	ID         string          `json:"id" db:"id"`
	CompanyID  string          `json:"company_id" db:"company_id"`
	ContactID  string          `json:"contact_id" db:"contact_id"`
	TemplateID string          `json:"template_id" db:"template_id"`
	Action     TagAction       `json:"action" db:"action"`
	Tags       []string        `json:"tags" db:"tags"`
	FireAt     time.Time       `json:"fire_at" db:"fire_at"`
	Status     TagEffectStatus `json:"status" db:"status"`
	RetryCount int             `json:"retry_count" db:"retry_count"`
	LastError  *string         `json:"last_error,omitempty" db:"last_error"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
}

// CanRetry checks if a failed application may be attempted again
func (e *TagEffect) CanRetry(maxRetries int) bool {
	return e.RetryCount < maxRetries
}

// IsTerminal reports whether the effect needs no further work
func (e *TagEffect) IsTerminal() bool {
	return e.Status == TagEffectApplied || e.Status == TagEffectCancelled || e.Status == TagEffectFailed
}
