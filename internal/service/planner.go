package service

import (
	"time"

	"whatsdrip/internal/models"
	"whatsdrip/internal/schedule"
)

// Plan resolves every step of tmpl to an absolute send time.
//
// Steps are planned in (day_number, sequence) order. A relative step chains
// from the time computed for the step before it, so irregular delays
// compound. A clock-time step that would land before its predecessor moves
// forward by whole days, which keeps plan times non-decreasing.
//
// The template's own step slice is not reordered.
func Plan(tmpl *models.Template, now time.Time) ([]models.StepPlan, error) {
	steps := make([]models.Step, len(tmpl.Steps))
	copy(steps, tmpl.Steps)
	models.SortSteps(steps)

	plans := make([]models.StepPlan, 0, len(steps))
	previous := now
	for i, step := range steps {
		if err := step.Validate(); err != nil {
			return nil, &InvalidStepError{StepIndex: i, StepID: step.ID, Err: err}
		}

		rule, err := schedule.RuleForStep(step, i == 0)
		if err != nil {
			return nil, &MalformedDelayRuleError{StepIndex: i, StepID: step.ID, Err: err}
		}

		sendAt := rule.Resolve(previous, now)
		if _, clock := rule.(schedule.ClockTime); clock {
			for sendAt.Before(previous) {
				sendAt = sendAt.AddDate(0, 0, 1)
			}
		}

		plans = append(plans, models.StepPlan{Index: i, Step: step, SendAt: sendAt})
		previous = sendAt
	}

	return plans, nil
}
