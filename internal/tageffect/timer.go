// Package tageffect applies and removes contact tags shortly before each
// step of a campaign is sent.
//
// Every effect is stored in tag_effects before an in-process timer is armed.
// When the timer fires the effect is claimed and handed to the worker over
// RabbitMQ. Effects whose timer was lost to a restart are picked up by the
// Sweeper.
package tageffect

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"whatsdrip/internal/models"
	"whatsdrip/internal/queue"
	"whatsdrip/internal/repository"
)

const fireTimeout = 10 * time.Second

// Publisher hands a due effect to the worker
type Publisher interface {
	PublishTagEffect(ctx context.Context, job queue.TagEffectJob) error
}

// FireDelay is how long to wait from now so an effect fires lead before
// sendAt. It is never negative.
func FireDelay(sendAt, now time.Time, lead time.Duration) time.Duration {
	d := sendAt.Sub(now) - lead
	if d < 0 {
		return 0
	}
	return d
}

// Timer arms tag effects and keeps their handles per contact
type Timer struct {
	repo      repository.TagEffectRepository
	publisher Publisher
	lead      time.Duration
	now       func() time.Time
	log       zerolog.Logger

	mu     sync.Mutex
	armed  map[string]map[string]*time.Timer
	closed bool
}

// NewTimer creates a tag effect timer
func NewTimer(repo repository.TagEffectRepository, publisher Publisher, lead time.Duration, log zerolog.Logger) *Timer {
	return &Timer{
		repo:      repo,
		publisher: publisher,
		lead:      lead,
		now:       time.Now,
		log:       log.With().Str("component", "tag_timer").Logger(),
		armed:     make(map[string]map[string]*time.Timer),
	}
}

func contactKey(companyID, contactID string) string {
	return companyID + "/" + contactID
}

// Effects returns the add and remove effects of a planned step, in that order
func Effects(contact models.Contact, templateID string, plan models.StepPlan, lead time.Duration) []*models.TagEffect {
	var effects []*models.TagEffect
	fireAt := plan.SendAt.Add(-lead)

	add := func(action models.TagAction, tags []string) {
		if len(tags) == 0 {
			return
		}
		effects = append(effects, &models.TagEffect{
			ID:         uuid.NewString(),
			CompanyID:  contact.CompanyID,
			ContactID:  contact.ID,
			TemplateID: templateID,
			Action:     action,
			Tags:       append([]string(nil), tags...),
			FireAt:     fireAt,
			Status:     models.TagEffectPending,
		})
	}
	add(models.TagActionAdd, plan.Step.AddTags)
	add(models.TagActionRemove, plan.Step.RemoveTags)

	return effects
}

// Arm stores and schedules the tag effects of one planned step. An effect
// that cannot be stored is still armed in memory only.
func (t *Timer) Arm(ctx context.Context, contact models.Contact, templateID string, plan models.StepPlan) {
	delay := FireDelay(plan.SendAt, t.now(), t.lead)
	for _, effect := range Effects(contact, templateID, plan, t.lead) {
		persisted := true
		if err := t.repo.Create(ctx, effect); err != nil {
			persisted = false
			t.log.Warn().
				Err(err).
				Str("contact_id", contact.ID).
				Str("action", string(effect.Action)).
				Msg("tag effect not persisted, armed in memory only")
		}
		t.schedule(effect, persisted, delay)
	}
}

func (t *Timer) schedule(effect *models.TagEffect, persisted bool, delay time.Duration) {
	key := contactKey(effect.CompanyID, effect.ContactID)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}

	handles, ok := t.armed[key]
	if !ok {
		handles = make(map[string]*time.Timer)
		t.armed[key] = handles
	}
	handles[effect.ID] = time.AfterFunc(delay, func() { t.fire(effect, persisted) })

	t.log.Debug().
		Str("effect_id", effect.ID).
		Str("contact_id", effect.ContactID).
		Dur("delay", delay).
		Msg("tag effect armed")
}

// forget drops the handle of a fired effect. It reports false when the
// effect was cancelled in the meantime.
func (t *Timer) forget(key, id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	handles, ok := t.armed[key]
	if !ok {
		return false
	}
	if _, ok := handles[id]; !ok {
		return false
	}
	delete(handles, id)
	if len(handles) == 0 {
		delete(t.armed, key)
	}
	return true
}

func (t *Timer) fire(effect *models.TagEffect, persisted bool) {
	if !t.forget(contactKey(effect.CompanyID, effect.ContactID), effect.ID) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), fireTimeout)
	defer cancel()

	log := t.log.With().Str("effect_id", effect.ID).Str("contact_id", effect.ContactID).Logger()

	if persisted {
		claimed, err := t.repo.Claim(ctx, effect.ID)
		if err != nil {
			log.Error().Err(err).Msg("failed to claim tag effect, leaving it to the sweeper")
			return
		}
		if !claimed {
			log.Debug().Msg("tag effect already claimed or cancelled")
			return
		}
	}

	if err := t.publisher.PublishTagEffect(ctx, queue.NewTagEffectJob(effect, persisted)); err != nil {
		log.Error().Err(err).Msg("failed to publish tag effect")
		if persisted {
			if err := t.repo.Release(ctx, effect.ID); err != nil {
				log.Error().Err(err).Msg("failed to release tag effect")
			}
		}
		return
	}

	log.Debug().Str("action", string(effect.Action)).Msg("tag effect published")
}

// Cancel stops every armed timer of the contact and cancels its stored
// effects that have not been applied yet
func (t *Timer) Cancel(ctx context.Context, companyID, contactID string) error {
	key := contactKey(companyID, contactID)

	t.mu.Lock()
	stopped := 0
	for _, handle := range t.armed[key] {
		handle.Stop()
		stopped++
	}
	delete(t.armed, key)
	t.mu.Unlock()

	rows, err := t.repo.CancelPending(ctx, companyID, contactID)
	if err != nil {
		return err
	}

	if stopped > 0 || rows > 0 {
		t.log.Debug().
			Str("contact_id", contactID).
			Int("timers_stopped", stopped).
			Int64("effects_cancelled", rows).
			Msg("tag effects cancelled")
	}
	return nil
}

// Armed is the number of timers currently armed for a contact
func (t *Timer) Armed(companyID, contactID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.armed[contactKey(companyID, contactID)])
}

// Stop disarms every timer. Stored effects stay pending for the sweeper.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key, handles := range t.armed {
		for _, handle := range handles {
			handle.Stop()
		}
		delete(t.armed, key)
	}
	t.closed = true
}
