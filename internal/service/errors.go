package service

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigNotFoundError means the company has no active template with that ID
type ConfigNotFoundError struct {
	CompanyID  string
	TemplateID string
}

func (e *ConfigNotFoundError) Error() string {
	return fmt.Sprintf("template %s not found for company %s", e.TemplateID, e.CompanyID)
}

// ValidationError represents a validation error
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s", e.Message)
}

// MalformedDelayRuleError aborts a campaign start because one step's timing
// rule cannot be resolved. Nothing has been cancelled or submitted.
type MalformedDelayRuleError struct {
	StepIndex int
	StepID    int
	Err       error
}

func (e *MalformedDelayRuleError) Error() string {
	return fmt.Sprintf("step %d (id %d): %v", e.StepIndex, e.StepID, e.Err)
}

func (e *MalformedDelayRuleError) Unwrap() error { return e.Err }

// InvalidStepError means a stored step cannot be sent as configured, e.g. a
// media step without a URL. Like a malformed delay rule it is a template
// problem, not a request problem.
type InvalidStepError struct {
	StepIndex int
	StepID    int
	Err       error
}

func (e *InvalidStepError) Error() string {
	return fmt.Sprintf("step %d (id %d): %v", e.StepIndex, e.StepID, e.Err)
}

func (e *InvalidStepError) Unwrap() error { return e.Err }

// DispatchFailureError reports the first step the dispatcher did not accept.
// Submitted steps before StepIndex stay scheduled.
type DispatchFailureError struct {
	StepIndex int
	Submitted int
	Err       error
}

func (e *DispatchFailureError) Error() string {
	return fmt.Sprintf("dispatch failed at step %d after %d submitted: %v", e.StepIndex, e.Submitted, e.Err)
}

func (e *DispatchFailureError) Unwrap() error { return e.Err }

// CleanupError collects the failures of a best-effort cancellation. It is
// logged, never returned to callers.
type CleanupError struct {
	CompanyID string
	ContactID string
	Failures  []error
}

func (e *CleanupError) Error() string {
	msgs := make([]string, 0, len(e.Failures))
	for _, err := range e.Failures {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("cleanup for contact %s failed: %s", e.ContactID, strings.Join(msgs, "; "))
}

func (e *CleanupError) Unwrap() []error { return e.Failures }

// IsClientError reports whether err is caused by the request rather than by
// a collaborator
func IsClientError(err error) bool {
	var validation *ValidationError
	var notFound *ConfigNotFoundError
	var malformed *MalformedDelayRuleError
	var invalidStep *InvalidStepError
	return errors.As(err, &validation) || errors.As(err, &notFound) ||
		errors.As(err, &malformed) || errors.As(err, &invalidStep)
}
