package handler

import (
	"context"
	"sync"

	"whatsdrip/internal/service"
)

// MockEnrollment is a mock implementation of Enrollment
type MockEnrollment struct {
	StartCampaignFunc   func(ctx context.Context, req *service.StartCampaignRequest) (*service.StartCampaignResult, error)
	CancelCampaignFunc  func(ctx context.Context, companyID, contactID string) (*service.CancelCampaignResult, error)
	PreviewScheduleFunc func(ctx context.Context, req *service.PreviewScheduleRequest) (*service.PreviewScheduleResult, error)

	mu    sync.Mutex
	Calls map[string]int
}

func NewMockEnrollment() *MockEnrollment {
	return &MockEnrollment{Calls: make(map[string]int)}
}

func (m *MockEnrollment) record(name string) {
	m.mu.Lock()
	m.Calls[name]++
	m.mu.Unlock()
}

func (m *MockEnrollment) StartCampaign(ctx context.Context, req *service.StartCampaignRequest) (*service.StartCampaignResult, error) {
	m.record("StartCampaign")
	if m.StartCampaignFunc != nil {
		return m.StartCampaignFunc(ctx, req)
	}
	return &service.StartCampaignResult{CompanyID: req.CompanyID, TemplateID: req.TemplateID}, nil
}

func (m *MockEnrollment) CancelCampaign(ctx context.Context, companyID, contactID string) (*service.CancelCampaignResult, error) {
	m.record("CancelCampaign")
	if m.CancelCampaignFunc != nil {
		return m.CancelCampaignFunc(ctx, companyID, contactID)
	}
	return &service.CancelCampaignResult{CompanyID: companyID, ContactID: contactID}, nil
}

func (m *MockEnrollment) PreviewSchedule(ctx context.Context, req *service.PreviewScheduleRequest) (*service.PreviewScheduleResult, error) {
	m.record("PreviewSchedule")
	if m.PreviewScheduleFunc != nil {
		return m.PreviewScheduleFunc(ctx, req)
	}
	return &service.PreviewScheduleResult{TemplateID: req.TemplateID}, nil
}

// MockHealthChecker returns a fixed status
type MockHealthChecker struct {
	Status *service.HealthStatus
}

func (m *MockHealthChecker) CheckHealth(ctx context.Context) *service.HealthStatus {
	return m.Status
}
