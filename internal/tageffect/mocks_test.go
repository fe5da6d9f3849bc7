package tageffect

import (
	"context"
	"sync"
	"time"

	"whatsdrip/internal/models"
	"whatsdrip/internal/queue"
	"whatsdrip/internal/repository"
)

// MockTagEffectRepository mocks repository.TagEffectRepository with an
// in-memory table
type MockTagEffectRepository struct {
	CreateFunc      func(ctx context.Context, effect *models.TagEffect) error
	ClaimFunc       func(ctx context.Context, id string) (bool, error)
	ClaimDueFunc    func(ctx context.Context, now, staleBefore time.Time, limit int) ([]*models.TagEffect, error)
	MarkAppliedFunc func(ctx context.Context, id string) error
	RescheduleFunc  func(ctx context.Context, id string, lastError string, fireAt time.Time) error

	mu      sync.Mutex
	Calls   map[string]int
	Effects map[string]*models.TagEffect
}

func NewMockTagEffectRepository() *MockTagEffectRepository {
	return &MockTagEffectRepository{
		Calls:   make(map[string]int),
		Effects: make(map[string]*models.TagEffect),
	}
}

func (m *MockTagEffectRepository) call(name string) {
	m.mu.Lock()
	m.Calls[name]++
	m.mu.Unlock()
}

// Count returns the calls of one method
func (m *MockTagEffectRepository) Count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls[name]
}

// Status returns the stored status of an effect
func (m *MockTagEffectRepository) Status(id string) models.TagEffectStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.Effects[id]; ok {
		return e.Status
	}
	return ""
}

func (m *MockTagEffectRepository) Create(ctx context.Context, effect *models.TagEffect) error {
	m.call("Create")
	if m.CreateFunc != nil {
		if err := m.CreateFunc(ctx, effect); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *effect
	m.Effects[effect.ID] = &stored
	return nil
}

func (m *MockTagEffectRepository) GetByID(ctx context.Context, id string) (*models.TagEffect, error) {
	m.call("GetByID")
	m.mu.Lock()
	defer m.mu.Unlock()
	effect, ok := m.Effects[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *effect
	return &copied, nil
}

func (m *MockTagEffectRepository) Claim(ctx context.Context, id string) (bool, error) {
	m.call("Claim")
	if m.ClaimFunc != nil {
		return m.ClaimFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	effect, ok := m.Effects[id]
	if !ok || effect.Status != models.TagEffectPending {
		return false, nil
	}
	effect.Status = models.TagEffectQueued
	return true, nil
}

func (m *MockTagEffectRepository) Release(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if effect, ok := m.Effects[id]; ok && effect.Status == models.TagEffectQueued {
		effect.Status = models.TagEffectPending
	}
	m.Calls["Release"]++
	return nil
}

func (m *MockTagEffectRepository) ClaimDue(ctx context.Context, now, staleBefore time.Time, limit int) ([]*models.TagEffect, error) {
	m.call("ClaimDue")
	if m.ClaimDueFunc != nil {
		return m.ClaimDueFunc(ctx, now, staleBefore, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []*models.TagEffect
	for _, effect := range m.Effects {
		if len(due) == limit {
			break
		}
		ready := effect.Status == models.TagEffectPending && !effect.FireAt.After(now)
		stale := effect.Status == models.TagEffectQueued && effect.UpdatedAt.Before(staleBefore)
		if ready || stale {
			effect.Status = models.TagEffectQueued
			effect.UpdatedAt = now
			copied := *effect
			due = append(due, &copied)
		}
	}
	return due, nil
}

func (m *MockTagEffectRepository) CancelPending(ctx context.Context, companyID, contactID string) (int64, error) {
	m.call("CancelPending")
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, effect := range m.Effects {
		if effect.CompanyID == companyID && effect.ContactID == contactID &&
			(effect.Status == models.TagEffectPending || effect.Status == models.TagEffectQueued) {
			effect.Status = models.TagEffectCancelled
			n++
		}
	}
	return n, nil
}

func (m *MockTagEffectRepository) MarkApplied(ctx context.Context, id string) error {
	m.call("MarkApplied")
	if m.MarkAppliedFunc != nil {
		return m.MarkAppliedFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if effect, ok := m.Effects[id]; ok {
		effect.Status = models.TagEffectApplied
		return nil
	}
	return repository.ErrNotFound
}

func (m *MockTagEffectRepository) MarkFailed(ctx context.Context, id string, lastError string) error {
	m.call("MarkFailed")
	m.mu.Lock()
	defer m.mu.Unlock()
	if effect, ok := m.Effects[id]; ok {
		effect.RetryCount++
		effect.LastError = &lastError
		effect.Status = models.TagEffectFailed
	}
	return nil
}

func (m *MockTagEffectRepository) Reschedule(ctx context.Context, id string, lastError string, fireAt time.Time) error {
	m.call("Reschedule")
	if m.RescheduleFunc != nil {
		if err := m.RescheduleFunc(ctx, id, lastError, fireAt); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if effect, ok := m.Effects[id]; ok && effect.Status == models.TagEffectQueued {
		effect.RetryCount++
		effect.LastError = &lastError
		effect.FireAt = fireAt
		effect.Status = models.TagEffectPending
	}
	return nil
}

// MockPublisher records published jobs and signals each one on Published
type MockPublisher struct {
	PublishFunc func(ctx context.Context, job queue.TagEffectJob) error

	mu        sync.Mutex
	Jobs      []queue.TagEffectJob
	Published chan queue.TagEffectJob
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{Published: make(chan queue.TagEffectJob, 16)}
}

func (m *MockPublisher) PublishTagEffect(ctx context.Context, job queue.TagEffectJob) error {
	if m.PublishFunc != nil {
		if err := m.PublishFunc(ctx, job); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.Jobs = append(m.Jobs, job)
	m.mu.Unlock()
	m.Published <- job
	return nil
}

// MockTagClient mocks TagClient
type MockTagClient struct {
	ApplyFunc func(ctx context.Context, companyID, contactID string, action models.TagAction, tags []string) error

	Calls map[string]int
}

func NewMockTagClient() *MockTagClient {
	return &MockTagClient{Calls: make(map[string]int)}
}

func (m *MockTagClient) Apply(ctx context.Context, companyID, contactID string, action models.TagAction, tags []string) error {
	m.Calls["Apply"]++
	if m.ApplyFunc != nil {
		return m.ApplyFunc(ctx, companyID, contactID, action, tags)
	}
	return nil
}
