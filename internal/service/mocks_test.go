package service

import (
	"context"
	"fmt"
	"sync"

	"whatsdrip/internal/models"
	"whatsdrip/internal/testutil"
)

// MockTemplateRepository mocks repository.TemplateRepository
type MockTemplateRepository struct {
	GetActiveFunc     func(ctx context.Context, companyID, templateID string) (*models.Template, error)
	ListActiveIDsFunc func(ctx context.Context, companyID string) ([]string, error)

	mu    sync.Mutex
	Calls map[string]int // Track method calls
}

func NewMockTemplateRepository() *MockTemplateRepository {
	return &MockTemplateRepository{
		Calls: make(map[string]int),
	}
}

func (m *MockTemplateRepository) call(name string) {
	m.mu.Lock()
	m.Calls[name]++
	m.mu.Unlock()
}

func (m *MockTemplateRepository) GetActive(ctx context.Context, companyID, templateID string) (*models.Template, error) {
	m.call("GetActive")
	if m.GetActiveFunc != nil {
		return m.GetActiveFunc(ctx, companyID, templateID)
	}
	return testutil.NewTestTemplate(templateID), nil
}

func (m *MockTemplateRepository) ListActiveIDs(ctx context.Context, companyID string) ([]string, error) {
	m.call("ListActiveIDs")
	if m.ListActiveIDsFunc != nil {
		return m.ListActiveIDsFunc(ctx, companyID)
	}
	return []string{}, nil
}

// MockDispatcher mocks the dispatcher client and keeps every submitted send
type MockDispatcher struct {
	SubmitFunc func(ctx context.Context, send *models.ScheduledSend) (string, error)
	CancelFunc func(ctx context.Context, companyID, templateID, contactID string) error

	mu        sync.Mutex
	Calls     map[string]int
	Submitted []models.ScheduledSend
	Events    *[]string
}

func NewMockDispatcher() *MockDispatcher {
	return &MockDispatcher{
		Calls: make(map[string]int),
	}
}

func (m *MockDispatcher) record(event string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls[event]++
	if m.Events != nil {
		*m.Events = append(*m.Events, event)
	}
}

func (m *MockDispatcher) Submit(ctx context.Context, send *models.ScheduledSend) (string, error) {
	m.record("Submit")
	if m.SubmitFunc != nil {
		id, err := m.SubmitFunc(ctx, send)
		if err != nil {
			return "", err
		}
		m.keep(send, id)
		return id, nil
	}
	m.mu.Lock()
	id := fmt.Sprintf("send-%d", len(m.Submitted)+1)
	m.mu.Unlock()
	m.keep(send, id)
	return id, nil
}

func (m *MockDispatcher) keep(send *models.ScheduledSend, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	send.ID = id
	m.Submitted = append(m.Submitted, *send)
}

func (m *MockDispatcher) Cancel(ctx context.Context, companyID, templateID, contactID string) error {
	m.record("Cancel")
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, companyID, templateID, contactID)
	}
	return nil
}

// MockTagTimer mocks TagTimer
type MockTagTimer struct {
	ArmFunc    func(ctx context.Context, contact models.Contact, templateID string, plan models.StepPlan)
	CancelFunc func(ctx context.Context, companyID, contactID string) error

	mu    sync.Mutex
	Calls map[string]int
	Armed []models.StepPlan
}

func NewMockTagTimer() *MockTagTimer {
	return &MockTagTimer{
		Calls: make(map[string]int),
	}
}

func (m *MockTagTimer) Arm(ctx context.Context, contact models.Contact, templateID string, plan models.StepPlan) {
	m.mu.Lock()
	m.Calls["Arm"]++
	m.Armed = append(m.Armed, plan)
	m.mu.Unlock()
	if m.ArmFunc != nil {
		m.ArmFunc(ctx, contact, templateID, plan)
	}
}

func (m *MockTagTimer) Cancel(ctx context.Context, companyID, contactID string) error {
	m.mu.Lock()
	m.Calls["Cancel"]++
	m.mu.Unlock()
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, companyID, contactID)
	}
	return nil
}
