package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"whatsdrip/internal/models"
)

const tagEffectColumns = `id, company_id, contact_id, template_id, action, tags, fire_at, status, retry_count, last_error, created_at, updated_at`

type tagEffectRepository struct {
	db DB
}

// NewTagEffectRepository creates a new tag effect repository
func NewTagEffectRepository(db DB) TagEffectRepository {
	return &tagEffectRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTagEffect(row rowScanner) (*models.TagEffect, error) {
	effect := &models.TagEffect{}
	err := row.Scan(
		&effect.ID,
		&effect.CompanyID,
		&effect.ContactID,
		&effect.TemplateID,
		&effect.Action,
		pq.Array(&effect.Tags),
		&effect.FireAt,
		&effect.Status,
		&effect.RetryCount,
		&effect.LastError,
		&effect.CreatedAt,
		&effect.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return effect, nil
}

// Create persists a new pending tag effect
func (r *tagEffectRepository) Create(ctx context.Context, effect *models.TagEffect) error {
	query := `
		INSERT INTO tag_effects (id, company_id, contact_id, template_id, action, tags, fire_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		effect.ID,
		effect.CompanyID,
		effect.ContactID,
		effect.TemplateID,
		effect.Action,
		pq.Array(effect.Tags),
		effect.FireAt,
		effect.Status,
	).Scan(&effect.CreatedAt, &effect.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create tag effect: %w", err)
	}

	return nil
}

// GetByID retrieves a tag effect by ID
func (r *tagEffectRepository) GetByID(ctx context.Context, id string) (*models.TagEffect, error) {
	query := `SELECT ` + tagEffectColumns + ` FROM tag_effects WHERE id = $1`

	effect, err := scanTagEffect(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tag effect: %w", err)
	}

	return effect, nil
}

// Claim moves a pending effect to queued. Only one caller can win the claim.
func (r *tagEffectRepository) Claim(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE tag_effects
		SET status = 'queued', updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND status = 'pending'
	`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to claim tag effect: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows == 1, nil
}

// Release puts a queued effect back to pending after a failed publish
func (r *tagEffectRepository) Release(ctx context.Context, id string) error {
	query := `
		UPDATE tag_effects
		SET status = 'pending', updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND status = 'queued'
	`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to release tag effect: %w", err)
	}

	return nil
}

// ClaimDue claims up to limit effects for publishing: pending ones whose fire
// time has passed, and queued ones untouched since staleBefore whose job was
// lost between claim and publish.
func (r *tagEffectRepository) ClaimDue(ctx context.Context, now, staleBefore time.Time, limit int) ([]*models.TagEffect, error) {
	query := `
		UPDATE tag_effects
		SET status = 'queued', updated_at = CURRENT_TIMESTAMP
		WHERE id IN (
			SELECT id FROM tag_effects
			WHERE (status = 'pending' AND fire_at <= $1)
				OR (status = 'queued' AND updated_at < $2)
			ORDER BY fire_at ASC
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + tagEffectColumns

	rows, err := r.db.QueryContext(ctx, query, now, staleBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim due tag effects: %w", err)
	}
	defer rows.Close()

	effects := []*models.TagEffect{}
	for rows.Next() {
		effect, err := scanTagEffect(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tag effect: %w", err)
		}
		effects = append(effects, effect)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate due tag effects: %w", err)
	}

	return effects, nil
}

// CancelPending cancels every not yet applied effect of a contact
func (r *tagEffectRepository) CancelPending(ctx context.Context, companyID, contactID string) (int64, error) {
	query := `
		UPDATE tag_effects
		SET status = 'cancelled', updated_at = CURRENT_TIMESTAMP
		WHERE company_id = $1 AND contact_id = $2 AND status IN ('pending', 'queued')
	`

	result, err := r.db.ExecContext(ctx, query, companyID, contactID)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel tag effects: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}

// MarkApplied records a successful tag mutation
func (r *tagEffectRepository) MarkApplied(ctx context.Context, id string) error {
	query := `
		UPDATE tag_effects
		SET status = 'applied', last_error = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark tag effect applied: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// MarkFailed records the final failed attempt. The effect is not retried.
func (r *tagEffectRepository) MarkFailed(ctx context.Context, id string, lastError string) error {
	query := `
		UPDATE tag_effects
		SET status = 'failed',
			retry_count = retry_count + 1,
			last_error = $1,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $2
	`

	if _, err := r.db.ExecContext(ctx, query, lastError, id); err != nil {
		return fmt.Errorf("failed to mark tag effect failed: %w", err)
	}

	return nil
}

// Reschedule records a failed attempt and puts the effect back to pending at
// fireAt, where the sweeper picks it up again.
func (r *tagEffectRepository) Reschedule(ctx context.Context, id string, lastError string, fireAt time.Time) error {
	query := `
		UPDATE tag_effects
		SET status = 'pending',
			retry_count = retry_count + 1,
			last_error = $1,
			fire_at = $2,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $3 AND status = 'queued'
	`

	if _, err := r.db.ExecContext(ctx, query, lastError, fireAt, id); err != nil {
		return fmt.Errorf("failed to reschedule tag effect: %w", err)
	}

	return nil
}
