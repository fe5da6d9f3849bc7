package tageffect

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"whatsdrip/internal/models"
	"whatsdrip/internal/queue"
	"whatsdrip/internal/repository"
)

// TagClient performs the tag mutation against the contact service
type TagClient interface {
	Apply(ctx context.Context, companyID, contactID string, action models.TagAction, tags []string) error
}

const maxRetryBackoff = time.Hour

// Applier is the worker side: it applies queued effects and records the outcome
type Applier struct {
	repo       repository.TagEffectRepository
	client     TagClient
	maxRetries int
	backoff    time.Duration
	now        func() time.Time
	log        zerolog.Logger
}

// NewApplier creates an applier. An effect is attempted at most maxRetries
// times. A failed attempt is rescheduled backoff later, doubling each time.
func NewApplier(repo repository.TagEffectRepository, client TagClient, maxRetries int, backoff time.Duration, log zerolog.Logger) *Applier {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if backoff <= 0 {
		backoff = 30 * time.Second
	}
	return &Applier{
		repo:       repo,
		client:     client,
		maxRetries: maxRetries,
		backoff:    backoff,
		now:        time.Now,
		log:        log.With().Str("component", "tag_applier").Logger(),
	}
}

// retryDelay is the wait after the given number of failed attempts
func (a *Applier) retryDelay(failures int) time.Duration {
	delay := a.backoff
	for i := 1; i < failures && delay < maxRetryBackoff; i++ {
		delay *= 2
	}
	if delay > maxRetryBackoff {
		delay = maxRetryBackoff
	}
	return delay
}

// Handle processes one job. A returned error asks for redelivery; a failed
// apply is instead rescheduled through the store and picked up by the sweeper.
func (a *Applier) Handle(ctx context.Context, job *queue.TagEffectJob) error {
	log := a.log.With().Str("effect_id", job.EffectID).Str("contact_id", job.ContactID).Logger()

	if !job.Persisted {
		if err := a.client.Apply(ctx, job.CompanyID, job.ContactID, job.Action, job.Tags); err != nil {
			log.Warn().Err(err).Msg("unpersisted tag effect failed and is dropped")
		}
		return nil
	}

	effect, err := a.repo.GetByID(ctx, job.EffectID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Warn().Msg("tag effect no longer exists")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load tag effect: %w", err)
	}

	if effect.Status != models.TagEffectQueued {
		log.Debug().Str("status", string(effect.Status)).Msg("skipping tag effect")
		return nil
	}

	if err := a.client.Apply(ctx, effect.CompanyID, effect.ContactID, effect.Action, effect.Tags); err != nil {
		attempts := effect.RetryCount + 1
		if attempts >= a.maxRetries {
			if markErr := a.repo.MarkFailed(ctx, effect.ID, err.Error()); markErr != nil {
				log.Error().Err(markErr).Msg("failed to record tag effect failure")
			}
			log.Error().Err(err).Int("attempts", attempts).Msg("tag effect exceeded retry limit")
			return nil
		}

		retryAt := a.now().Add(a.retryDelay(attempts))
		if markErr := a.repo.Reschedule(ctx, effect.ID, err.Error(), retryAt); markErr != nil {
			return fmt.Errorf("failed to reschedule tag effect: %w", markErr)
		}
		log.Warn().Err(err).Int("attempts", attempts).Time("retry_at", retryAt).Msg("tag effect failed, rescheduled")
		return nil
	}

	if err := a.repo.MarkApplied(ctx, effect.ID); err != nil {
		return fmt.Errorf("failed to mark tag effect applied: %w", err)
	}

	log.Info().Str("action", string(effect.Action)).Strs("tags", effect.Tags).Msg("tag effect applied")
	return nil
}
