package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"whatsdrip/internal/config"
	"whatsdrip/internal/dispatcher"
	"whatsdrip/internal/models"
	"whatsdrip/internal/repository"
)

// Dispatcher persists and cancels scheduled sends
type Dispatcher interface {
	Submit(ctx context.Context, send *models.ScheduledSend) (string, error)
	Cancel(ctx context.Context, companyID, templateID, contactID string) error
}

// TagTimer arms the tag effects of a submitted step and drops the effects
// of a contact whose campaign is cancelled
type TagTimer interface {
	Arm(ctx context.Context, contact models.Contact, templateID string, plan models.StepPlan)
	Cancel(ctx context.Context, companyID, contactID string) error
}

// EnrollmentService keeps every contact in at most one follow-up campaign
type EnrollmentService struct {
	templates      repository.TemplateRepository
	dispatcher     Dispatcher
	tags           TagTimer
	renderer       *TemplateService
	submitInterval time.Duration
	location       *time.Location
	now            func() time.Time
	locks          *contactLocks
	log            zerolog.Logger
}

// NewEnrollmentService creates a new enrollment service
func NewEnrollmentService(
	templates repository.TemplateRepository,
	dispatcher Dispatcher,
	tags TagTimer,
	renderer *TemplateService,
	cfg config.SchedulingConfig,
	log zerolog.Logger,
) *EnrollmentService {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &EnrollmentService{
		templates:      templates,
		dispatcher:     dispatcher,
		tags:           tags,
		renderer:       renderer,
		submitInterval: cfg.SubmitInterval,
		location:       loc,
		now:            time.Now,
		locks:          newContactLocks(),
		log:            log.With().Str("component", "enrollment").Logger(),
	}
}

func (s *EnrollmentService) clock() time.Time {
	return s.now().In(s.location)
}

// StartCampaign enrolls the contact into the template, replacing whatever
// campaign the contact was in before.
//
// The template is loaded and planned before anything is cancelled, so a
// missing template or a malformed step leaves the current campaign alone.
// Steps are submitted one by one in plan order; the first rejected step
// aborts the rest.
func (s *EnrollmentService) StartCampaign(ctx context.Context, req *StartCampaignRequest) (*StartCampaignResult, error) {
	if err := req.Validate(); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}

	contact := models.NewContact(req.CompanyID, req.Phone, req.FirstName, req.PhoneIndex)
	unlock := s.locks.lock(contact.CompanyID, contact.ID)
	defer unlock()

	tmpl, err := s.loadTemplate(ctx, req.CompanyID, req.TemplateID)
	if err != nil {
		return nil, err
	}

	plans, err := Plan(tmpl, s.clock())
	if err != nil {
		return nil, err
	}

	s.cancel(ctx, contact.CompanyID, contact.ID)

	result := &StartCampaignResult{
		CompanyID:  contact.CompanyID,
		ContactID:  contact.ID,
		TemplateID: tmpl.ID,
		Sends:      make([]ScheduledStep, 0, len(plans)),
	}

	limiter := rate.NewLimiter(rate.Every(s.submitInterval), 1)
	for _, plan := range plans {
		if err := limiter.Wait(ctx); err != nil {
			return nil, &DispatchFailureError{StepIndex: plan.Index, Submitted: len(result.Sends), Err: err}
		}

		send := s.buildSend(tmpl, contact, plan)
		id, err := s.dispatcher.Submit(ctx, send)
		if err != nil {
			s.log.Error().
				Err(err).
				Str("contact_id", contact.ID).
				Str("template_id", tmpl.ID).
				Int("step_index", plan.Index).
				Int("submitted", len(result.Sends)).
				Msg("dispatcher rejected step, aborting campaign start")
			return nil, &DispatchFailureError{StepIndex: plan.Index, Submitted: len(result.Sends), Err: err}
		}

		if plan.Step.HasTagEffects() {
			s.tags.Arm(ctx, contact, tmpl.ID, plan)
		}

		result.Sends = append(result.Sends, ScheduledStep{
			Index:     plan.Index,
			StepID:    plan.Step.ID,
			SendID:    id,
			SendAt:    plan.SendAt,
			DayNumber: plan.Step.DayNumber,
			Sequence:  plan.Step.Sequence,
		})
	}
	result.Scheduled = len(result.Sends)

	s.log.Info().
		Str("contact_id", contact.ID).
		Str("template_id", tmpl.ID).
		Int("scheduled", result.Scheduled).
		Msg("campaign started")

	return result, nil
}

// CancelCampaign removes the contact from every active template of the
// company and drops its pending tag effects. Failures are logged; a contact
// with nothing scheduled is a no-op.
func (s *EnrollmentService) CancelCampaign(ctx context.Context, companyID, contactID string) (*CancelCampaignResult, error) {
	if strings.TrimSpace(companyID) == "" {
		return nil, &ValidationError{Message: "company ID is required"}
	}
	if strings.TrimSpace(contactID) == "" {
		return nil, &ValidationError{Message: "contact ID is required"}
	}

	unlock := s.locks.lock(companyID, contactID)
	defer unlock()

	return s.cancel(ctx, companyID, contactID), nil
}

// cancel expects the contact lock to be held
func (s *EnrollmentService) cancel(ctx context.Context, companyID, contactID string) *CancelCampaignResult {
	result := &CancelCampaignResult{
		CompanyID: companyID,
		ContactID: contactID,
		Cancelled: []string{},
	}
	var failures []error

	templateIDs, err := s.templates.ListActiveIDs(ctx, companyID)
	if err != nil {
		failures = append(failures, fmt.Errorf("list active templates: %w", err))
	}

	for _, templateID := range templateIDs {
		err := s.dispatcher.Cancel(ctx, companyID, templateID, contactID)
		if err == nil {
			result.Cancelled = append(result.Cancelled, templateID)
			continue
		}

		var statusErr *dispatcher.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			continue
		}
		failures = append(failures, fmt.Errorf("template %s: %w", templateID, err))
	}

	if err := s.tags.Cancel(ctx, companyID, contactID); err != nil {
		failures = append(failures, fmt.Errorf("tag effects: %w", err))
	}

	if len(failures) > 0 {
		result.Failures = len(failures)
		cleanupErr := &CleanupError{CompanyID: companyID, ContactID: contactID, Failures: failures}
		s.log.Warn().
			Err(cleanupErr).
			Str("contact_id", contactID).
			Int("failures", len(failures)).
			Msg("campaign cleanup incomplete")
	}

	s.log.Debug().
		Str("contact_id", contactID).
		Strs("cancelled_templates", result.Cancelled).
		Msg("campaign cancelled")

	return result
}

// PreviewSchedule plans the template for a contact without submitting or
// cancelling anything
func (s *EnrollmentService) PreviewSchedule(ctx context.Context, req *PreviewScheduleRequest) (*PreviewScheduleResult, error) {
	if err := req.Validate(); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}

	tmpl, err := s.loadTemplate(ctx, req.CompanyID, req.TemplateID)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	plans, err := Plan(tmpl, now)
	if err != nil {
		return nil, err
	}

	contact := models.NewContact(req.CompanyID, req.Phone, req.FirstName, 0)
	result := &PreviewScheduleResult{
		TemplateID:   tmpl.ID,
		TemplateName: tmpl.Name,
		ContactID:    contact.ID,
		ChatID:       contact.ChatID(),
		Now:          now,
		Steps:        make([]PreviewStep, 0, len(plans)),
	}

	unknown := map[string]bool{}
	for _, plan := range plans {
		for _, p := range s.renderer.UnknownPlaceholders(plan.Step.Message) {
			if !unknown[p] {
				unknown[p] = true
				result.UnknownPlaceholders = append(result.UnknownPlaceholders, p)
			}
		}
		result.Steps = append(result.Steps, PreviewStep{
			Index:       plan.Index,
			StepID:      plan.Step.ID,
			DayNumber:   plan.Step.DayNumber,
			Sequence:    plan.Step.Sequence,
			ContentType: plan.Step.ContentType,
			Message:     s.renderer.Render(plan.Step.Message, contact),
			MediaURL:    plan.Step.MediaURL,
			SendAt:      plan.SendAt,
			AddTags:     plan.Step.AddTags,
			RemoveTags:  plan.Step.RemoveTags,
		})
	}

	return result, nil
}

func (s *EnrollmentService) loadTemplate(ctx context.Context, companyID, templateID string) (*models.Template, error) {
	tmpl, err := s.templates.GetActive(ctx, companyID, templateID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &ConfigNotFoundError{CompanyID: companyID, TemplateID: templateID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load template: %w", err)
	}
	return tmpl, nil
}

// buildSend turns one planned step into the dispatcher record
func (s *EnrollmentService) buildSend(tmpl *models.Template, contact models.Contact, plan models.StepPlan) *models.ScheduledSend {
	step := plan.Step
	send := &models.ScheduledSend{
		ChatIDs:        []string{contact.ChatID()},
		CompanyID:      contact.CompanyID,
		Message:        s.renderer.Render(step.Message, contact),
		ScheduledTime:  models.NewScheduledTime(plan.SendAt),
		Status:         models.SendStatusScheduled,
		Type:           tmpl.Name,
		TemplateID:     tmpl.ID,
		ContactID:      contact.ID,
		PhoneIndex:     contact.PhoneIndex,
		BatchQuantity:  1,
		RepeatInterval: 0,
		RepeatUnit:     "days",
		V2:             true,
	}

	switch step.ContentType {
	case models.ContentDocument:
		send.DocumentURL = step.MediaURL
		send.FileName = step.FileName
		if send.FileName == "" {
			send.FileName = path.Base(step.MediaURL)
		}
		send.MimeType = step.MimeType
	case models.ContentImage, models.ContentVideo:
		send.MediaURL = step.MediaURL
		send.MimeType = step.MimeType
	}

	return send
}

// Request/Response types

// StartCampaignRequest carries the contact and template of a campaign start
type StartCampaignRequest struct {
	CompanyID  string `json:"company_id"`
	TemplateID string `json:"template_id"`
	Phone      string `json:"phone"`
	FirstName  string `json:"first_name"`
	PhoneIndex int    `json:"phone_index"`
}

// Validate validates the start campaign request
func (r *StartCampaignRequest) Validate() error {
	if strings.TrimSpace(r.CompanyID) == "" {
		return fmt.Errorf("company ID is required")
	}
	if strings.TrimSpace(r.TemplateID) == "" {
		return fmt.Errorf("templateId is required")
	}
	if models.NormalizePhone(r.Phone) == "" {
		return fmt.Errorf("phone is required")
	}
	if strings.TrimSpace(r.FirstName) == "" {
		return fmt.Errorf("first_name is required")
	}
	if r.PhoneIndex < 0 {
		return fmt.Errorf("phoneIndex cannot be negative")
	}
	return nil
}

// ScheduledStep is one accepted submission
type ScheduledStep struct {
	Index     int       `json:"index"`
	StepID    int       `json:"step_id"`
	SendID    string    `json:"send_id"`
	SendAt    time.Time `json:"send_at"`
	DayNumber int       `json:"day_number"`
	Sequence  int       `json:"sequence"`
}

// StartCampaignResult represents the result of starting a campaign
type StartCampaignResult struct {
	CompanyID  string          `json:"company_id"`
	ContactID  string          `json:"contact_id"`
	TemplateID string          `json:"template_id"`
	Scheduled  int             `json:"scheduled"`
	Sends      []ScheduledStep `json:"sends"`
}

// CancelCampaignResult lists the templates the dispatcher removed the
// contact from
type CancelCampaignResult struct {
	CompanyID string   `json:"company_id"`
	ContactID string   `json:"contact_id"`
	Cancelled []string `json:"cancelled_templates"`
	Failures  int      `json:"failures"`
}

// PreviewScheduleRequest represents a dry-run request
type PreviewScheduleRequest struct {
	CompanyID  string
	TemplateID string
	Phone      string
	FirstName  string
}

// Validate validates the preview request
func (r *PreviewScheduleRequest) Validate() error {
	if strings.TrimSpace(r.CompanyID) == "" {
		return fmt.Errorf("company ID is required")
	}
	if strings.TrimSpace(r.TemplateID) == "" {
		return fmt.Errorf("template ID is required")
	}
	if models.NormalizePhone(r.Phone) == "" {
		return fmt.Errorf("phone is required")
	}
	return nil
}

// PreviewStep is one planned step with its rendered message
type PreviewStep struct {
	Index       int                `json:"index"`
	StepID      int                `json:"step_id"`
	DayNumber   int                `json:"day_number"`
	Sequence    int                `json:"sequence"`
	ContentType models.ContentType `json:"message_type"`
	Message     string             `json:"message"`
	MediaURL    string             `json:"media_url,omitempty"`
	SendAt      time.Time          `json:"send_at"`
	AddTags     []string           `json:"add_tags,omitempty"`
	RemoveTags  []string           `json:"remove_tags,omitempty"`
}

// PreviewScheduleResult represents the planned campaign of a dry run
type PreviewScheduleResult struct {
	TemplateID          string        `json:"template_id"`
	TemplateName        string        `json:"template_name"`
	ContactID           string        `json:"contact_id"`
	ChatID              string        `json:"chat_id"`
	Now                 time.Time     `json:"now"`
	Steps               []PreviewStep `json:"steps"`
	UnknownPlaceholders []string      `json:"unknown_placeholders,omitempty"`
}
