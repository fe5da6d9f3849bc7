package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"whatsdrip/internal/models"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("not found")

// TemplateRepository reads follow-up templates. The engine never writes them.
type TemplateRepository interface {
	GetActive(ctx context.Context, companyID, templateID string) (*models.Template, error)
	ListActiveIDs(ctx context.Context, companyID string) ([]string, error)
}

// TagEffectRepository persists tag effect intents
type TagEffectRepository interface {
	Create(ctx context.Context, effect *models.TagEffect) error
	GetByID(ctx context.Context, id string) (*models.TagEffect, error)
	Claim(ctx context.Context, id string) (bool, error)
	Release(ctx context.Context, id string) error
	ClaimDue(ctx context.Context, now, staleBefore time.Time, limit int) ([]*models.TagEffect, error)
	CancelPending(ctx context.Context, companyID, contactID string) (int64, error)
	MarkApplied(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, lastError string) error
	Reschedule(ctx context.Context, id string, lastError string, fireAt time.Time) error
}

// DB is a wrapper around *sql.DB to allow passing in transaction
type DB interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}
