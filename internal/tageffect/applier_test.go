package tageffect

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"whatsdrip/internal/models"
	"whatsdrip/internal/queue"
	"whatsdrip/internal/testutil"
)

func queuedJob(repo *MockTagEffectRepository, retries int) *queue.TagEffectJob {
	seedEffect(repo, "e1", time.Now(), models.TagEffectQueued)
	repo.Effects["e1"].RetryCount = retries
	job := queue.NewTagEffectJob(repo.Effects["e1"], true)
	return &job
}

func TestApplier_Success(t *testing.T) {
	repo := NewMockTagEffectRepository()
	client := NewMockTagClient()
	var gotAction models.TagAction
	client.ApplyFunc = func(ctx context.Context, companyID, contactID string, action models.TagAction, tags []string) error {
		gotAction = action
		return nil
	}
	applier := NewApplier(repo, client, 3, 30*time.Second, zerolog.Nop())

	err := applier.Handle(context.Background(), queuedJob(repo, 0))

	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, gotAction, models.TagActionAdd)
	testutil.AssertEqual(t, repo.Status("e1"), models.TagEffectApplied)
}

func TestApplier_RetriesThenFails(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	repo := NewMockTagEffectRepository()
	client := NewMockTagClient()
	client.ApplyFunc = func(ctx context.Context, companyID, contactID string, action models.TagAction, tags []string) error {
		return errors.New("tag api down")
	}
	applier := NewApplier(repo, client, 3, 30*time.Second, zerolog.Nop())
	applier.now = func() time.Time { return now }
	job := queuedJob(repo, 0)

	// the first two failures go back to pending with a growing delay
	for attempt, wait := range []time.Duration{30 * time.Second, time.Minute} {
		testutil.AssertNoError(t, applier.Handle(context.Background(), job))
		testutil.AssertEqual(t, repo.Status("e1"), models.TagEffectPending)
		testutil.AssertEqual(t, repo.Effects["e1"].RetryCount, attempt+1)
		if !repo.Effects["e1"].FireAt.Equal(now.Add(wait)) {
			t.Errorf("Attempt %d: expected retry at %v, got %v", attempt+1, now.Add(wait), repo.Effects["e1"].FireAt)
		}

		// a redelivery before the sweeper claims it again does nothing
		testutil.AssertNoError(t, applier.Handle(context.Background(), job))
		testutil.AssertEqual(t, client.Calls["Apply"], attempt+1)

		repo.Effects["e1"].Status = models.TagEffectQueued
	}

	// the third is terminal
	testutil.AssertNoError(t, applier.Handle(context.Background(), job))
	testutil.AssertEqual(t, repo.Status("e1"), models.TagEffectFailed)
	testutil.AssertEqual(t, repo.Effects["e1"].RetryCount, 3)
	testutil.AssertEqual(t, client.Calls["Apply"], 3)
	testutil.AssertEqual(t, repo.Count("Reschedule"), 2)
	testutil.AssertEqual(t, repo.Count("MarkFailed"), 1)

	// a redelivery after the terminal failure does nothing
	testutil.AssertNoError(t, applier.Handle(context.Background(), job))
	testutil.AssertEqual(t, client.Calls["Apply"], 3)
}

func TestApplier_RescheduleFailureRequeues(t *testing.T) {
	repo := NewMockTagEffectRepository()
	repo.RescheduleFunc = func(ctx context.Context, id string, lastError string, fireAt time.Time) error {
		return errors.New("connection reset")
	}
	client := NewMockTagClient()
	client.ApplyFunc = func(ctx context.Context, companyID, contactID string, action models.TagAction, tags []string) error {
		return errors.New("tag api down")
	}
	applier := NewApplier(repo, client, 3, 30*time.Second, zerolog.Nop())

	if err := applier.Handle(context.Background(), queuedJob(repo, 0)); err == nil {
		t.Error("Expected error so the job is redelivered")
	}
	testutil.AssertEqual(t, repo.Status("e1"), models.TagEffectQueued)
}

func TestApplier_RetryDelay(t *testing.T) {
	applier := NewApplier(NewMockTagEffectRepository(), NewMockTagClient(), 20, 0, zerolog.Nop())

	tests := []struct {
		failures int
		want     time.Duration
	}{
		{1, 30 * time.Second},
		{2, time.Minute},
		{4, 4 * time.Minute},
		{8, time.Hour},
		{1000, time.Hour},
	}

	for _, tt := range tests {
		testutil.AssertEqual(t, applier.retryDelay(tt.failures), tt.want)
	}
}

func TestApplier_SkipsCancelledEffect(t *testing.T) {
	repo := NewMockTagEffectRepository()
	client := NewMockTagClient()
	applier := NewApplier(repo, client, 3, 30*time.Second, zerolog.Nop())
	job := queuedJob(repo, 0)
	repo.Effects["e1"].Status = models.TagEffectCancelled

	testutil.AssertNoError(t, applier.Handle(context.Background(), job))
	testutil.AssertEqual(t, client.Calls["Apply"], 0)
}

func TestApplier_MissingEffectIsAcknowledged(t *testing.T) {
	applier := NewApplier(NewMockTagEffectRepository(), NewMockTagClient(), 3, 30*time.Second, zerolog.Nop())

	err := applier.Handle(context.Background(), &queue.TagEffectJob{EffectID: "gone", Persisted: true})

	testutil.AssertNoError(t, err)
}

func TestApplier_UnpersistedAppliedOnce(t *testing.T) {
	repo := NewMockTagEffectRepository()
	client := NewMockTagClient()
	client.ApplyFunc = func(ctx context.Context, companyID, contactID string, action models.TagAction, tags []string) error {
		return errors.New("tag api down")
	}
	applier := NewApplier(repo, client, 3, 30*time.Second, zerolog.Nop())

	err := applier.Handle(context.Background(), &queue.TagEffectJob{
		EffectID:  "mem",
		CompanyID: "0123",
		ContactID: "0123-601111",
		Action:    models.TagActionAdd,
		Tags:      []string{"drip"},
	})

	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, client.Calls["Apply"], 1)
	testutil.AssertEqual(t, repo.Count("GetByID"), 0)
}

func TestApplier_MarkAppliedFailureRequeues(t *testing.T) {
	repo := NewMockTagEffectRepository()
	repo.MarkAppliedFunc = func(ctx context.Context, id string) error {
		return errors.New("connection reset")
	}
	applier := NewApplier(repo, NewMockTagClient(), 3, 30*time.Second, zerolog.Nop())

	if err := applier.Handle(context.Background(), queuedJob(repo, 0)); err == nil {
		t.Error("Expected error so the job is redelivered")
	}
}
