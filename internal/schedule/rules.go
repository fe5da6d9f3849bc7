// Package schedule resolves step timing rules into absolute send times.
//
// Every rule variant implements Rule, so the planner can chain steps without
// knowing which kind of rule a step carries.
package schedule

import (
	"fmt"
	"time"

	"whatsdrip/internal/models"
)

const (
	// InstantDelay is the spacing used for {"isInstantaneous": true}.
	InstantDelay = time.Minute
	// FirstStepSpacing applies to a first step without any delay rule.
	FirstStepSpacing = time.Minute
	// FollowingStepSpacing applies to later steps without any delay rule.
	FollowingStepSpacing = 5 * time.Minute
)

// Rule resolves a step's absolute time from the previous step's resolved
// time and "now". For the first step previous equals now.
type Rule interface {
	Resolve(previous, now time.Time) time.Time
}

// ClockTime anchors a step to a wall-clock time on campaign day DayNumber.
type ClockTime struct {
	Hour      int
	Minute    int
	DayNumber int
}

// Resolve ignores previous. Campaign day DayNumber is today plus
// DayNumber-1 days; hh:mm on that day is used unless it is not strictly
// after now, in which case it moves one day later.
func (r ClockTime) Resolve(_ time.Time, now time.Time) time.Time {
	offset := 0
	if r.DayNumber > 1 {
		offset = r.DayNumber - 1
	}
	day := now.AddDate(0, 0, offset)
	candidate := time.Date(day.Year(), day.Month(), day.Day(), r.Hour, r.Minute, 0, 0, now.Location())
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

// Validate checks the hour and minute ranges
func (r ClockTime) Validate() error {
	if r.Hour < 0 || r.Hour > 23 {
		return &MalformedRuleError{Reason: fmt.Sprintf("clock hour %d out of range 0-23", r.Hour)}
	}
	if r.Minute < 0 || r.Minute > 59 {
		return &MalformedRuleError{Reason: fmt.Sprintf("clock minute %d out of range 0-59", r.Minute)}
	}
	return nil
}

// RelativeDelay offsets a step from the previous step's resolved time.
type RelativeDelay struct {
	Delay time.Duration
}

// Resolve adds the delay to previous; now is unused.
func (r RelativeDelay) Resolve(previous, _ time.Time) time.Time {
	return previous.Add(r.Delay)
}

// DefaultSpacing is the rule for a step that declares no timing at all.
func DefaultSpacing(first bool) RelativeDelay {
	if first {
		return RelativeDelay{Delay: FirstStepSpacing}
	}
	return RelativeDelay{Delay: FollowingStepSpacing}
}

// RuleForStep picks the timing rule of a step. first marks the first step of
// the sorted template.
func RuleForStep(step models.Step, first bool) (Rule, error) {
	if step.UseClockTime {
		rule := ClockTime{Hour: step.ClockHour, Minute: step.ClockMinute, DayNumber: step.DayNumber}
		if err := rule.Validate(); err != nil {
			return nil, err
		}
		return rule, nil
	}

	delay, ok, err := ParseDelayAfter(step.DelayAfter)
	if err != nil {
		return nil, err
	}
	if !ok {
		return DefaultSpacing(first), nil
	}
	return delay, nil
}
