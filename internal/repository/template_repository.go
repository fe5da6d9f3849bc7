package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"whatsdrip/internal/models"
)

type templateRepository struct {
	db DB
}

// NewTemplateRepository creates a new template repository
func NewTemplateRepository(db DB) TemplateRepository {
	return &templateRepository{db: db}
}

// GetActive loads an active template with its active steps ordered by
// (day_number, sequence)
func (r *templateRepository) GetActive(ctx context.Context, companyID, templateID string) (*models.Template, error) {
	query := `
		SELECT company_id, template_id, name, status, created_at, updated_at
		FROM followup_templates
		WHERE company_id = $1 AND template_id = $2 AND status = 'active'
	`

	template := &models.Template{}
	err := r.db.QueryRowContext(ctx, query, companyID, templateID).Scan(
		&template.CompanyID,
		&template.ID,
		&template.Name,
		&template.Status,
		&template.CreatedAt,
		&template.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	steps, err := r.listSteps(ctx, companyID, templateID)
	if err != nil {
		return nil, err
	}
	template.Steps = steps

	return template, nil
}

func (r *templateRepository) listSteps(ctx context.Context, companyID, templateID string) ([]models.Step, error) {
	query := `
		SELECT id, company_id, template_id, day_number, sequence, message_type, message,
			COALESCE(media_url, ''), COALESCE(file_name, ''), COALESCE(mime_type, ''),
			use_clock_time, COALESCE(clock_hour, 0), COALESCE(clock_minute, 0),
			COALESCE(delay_after, ''), add_tags, remove_tags, status
		FROM followup_steps
		WHERE company_id = $1 AND template_id = $2 AND status = 'active'
		ORDER BY day_number ASC, sequence ASC
	`

	rows, err := r.db.QueryContext(ctx, query, companyID, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to list template steps: %w", err)
	}
	defer rows.Close()

	steps := []models.Step{}
	for rows.Next() {
		var step models.Step
		err := rows.Scan(
			&step.ID,
			&step.CompanyID,
			&step.TemplateID,
			&step.DayNumber,
			&step.Sequence,
			&step.ContentType,
			&step.Message,
			&step.MediaURL,
			&step.FileName,
			&step.MimeType,
			&step.UseClockTime,
			&step.ClockHour,
			&step.ClockMinute,
			&step.DelayAfter,
			pq.Array(&step.AddTags),
			pq.Array(&step.RemoveTags),
			&step.Status,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template step: %w", err)
		}
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate template steps: %w", err)
	}

	return steps, nil
}

// ListActiveIDs returns the ids of every active template of a company
func (r *templateRepository) ListActiveIDs(ctx context.Context, companyID string) ([]string, error) {
	query := `
		SELECT template_id
		FROM followup_templates
		WHERE company_id = $1 AND status = 'active'
		ORDER BY template_id
	`

	rows, err := r.db.QueryContext(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active templates: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan template id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate active templates: %w", err)
	}

	return ids, nil
}
