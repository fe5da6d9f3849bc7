package tageffect

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"whatsdrip/internal/queue"
	"whatsdrip/internal/repository"
)

// Sweeper periodically publishes stored effects that are due but were never
// claimed, typically because the process that armed them restarted. Effects
// left queued for longer than staleAfter are published again as well.
type Sweeper struct {
	repo       repository.TagEffectRepository
	publisher  Publisher
	batch      int
	staleAfter time.Duration
	now        func() time.Time
	log        zerolog.Logger
	c          *cron.Cron
}

// NewSweeper creates a sweeper. batch bounds the effects claimed per run.
func NewSweeper(repo repository.TagEffectRepository, publisher Publisher, batch int, staleAfter time.Duration, loc *time.Location, log zerolog.Logger) *Sweeper {
	if batch <= 0 {
		batch = 100
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Sweeper{
		repo:       repo,
		publisher:  publisher,
		batch:      batch,
		staleAfter: staleAfter,
		now:        time.Now,
		log:        log.With().Str("component", "tag_sweeper").Logger(),
		c:          cron.New(cron.WithLocation(loc), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
}

// Start runs Sweep on the given cron spec, e.g. "@every 30s"
func (s *Sweeper) Start(spec string) error {
	_, err := s.c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			s.log.Error().Err(err).Msg("tag effect sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", spec, err)
	}

	s.c.Start()
	s.log.Info().Str("schedule", spec).Msg("tag effect sweeper started")
	return nil
}

// Stop stops the schedule and waits for a running sweep
func (s *Sweeper) Stop() {
	<-s.c.Stop().Done()
}

// Sweep claims due pending effects and stale queued ones and publishes them. It returns how many
// were published; effects that fail to publish are released for the next run.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	now := s.now()
	effects, err := s.repo.ClaimDue(ctx, now, now.Add(-s.staleAfter), s.batch)
	if err != nil {
		return 0, err
	}

	published := 0
	for _, effect := range effects {
		if err := s.publisher.PublishTagEffect(ctx, queue.NewTagEffectJob(effect, true)); err != nil {
			s.log.Error().Err(err).Str("effect_id", effect.ID).Msg("failed to publish recovered tag effect")
			if err := s.repo.Release(ctx, effect.ID); err != nil {
				s.log.Error().Err(err).Str("effect_id", effect.ID).Msg("failed to release tag effect")
			}
			continue
		}
		published++
	}

	if len(effects) > 0 {
		s.log.Info().Int("claimed", len(effects)).Int("published", published).Msg("recovered due tag effects")
	}
	return published, nil
}
