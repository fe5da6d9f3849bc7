package schedule

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedDelay matches every MalformedRuleError via errors.Is.
var ErrMalformedDelay = errors.New("malformed delay rule")

// MalformedRuleError describes a timing rule that cannot be resolved
type MalformedRuleError struct {
	Raw    string
	Reason string
}

func (e *MalformedRuleError) Error() string {
	if e.Raw == "" {
		return fmt.Sprintf("malformed delay rule: %s", e.Reason)
	}
	return fmt.Sprintf("malformed delay rule %q: %s", e.Raw, e.Reason)
}

func (e *MalformedRuleError) Unwrap() error { return ErrMalformedDelay }

type delayDocument struct {
	Value           json.RawMessage `json:"value"`
	Unit            *string         `json:"unit"`
	IsInstantaneous bool            `json:"isInstantaneous"`
}

var unitDurations = map[string]time.Duration{
	"second":  time.Second,
	"seconds": time.Second,
	"sec":     time.Second,
	"secs":    time.Second,
	"minute":  time.Minute,
	"minutes": time.Minute,
	"min":     time.Minute,
	"mins":    time.Minute,
	"hour":    time.Hour,
	"hours":   time.Hour,
	"day":     24 * time.Hour,
	"days":    24 * time.Hour,
	"week":    7 * 24 * time.Hour,
	"weeks":   7 * 24 * time.Hour,
}

// ParseDelayAfter decodes a stored delay_after document.
//
// ok is false when the step declares no delay (empty, null or {}). Anything
// else that does not decode into a usable delay is a *MalformedRuleError.
func ParseDelayAfter(raw string) (rule RelativeDelay, ok bool, err error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "null" {
		return RelativeDelay{}, false, nil
	}

	dec := json.NewDecoder(strings.NewReader(trimmed))
	var doc delayDocument
	if err := dec.Decode(&doc); err != nil {
		return RelativeDelay{}, false, &MalformedRuleError{Raw: raw, Reason: err.Error()}
	}
	if dec.More() {
		return RelativeDelay{}, false, &MalformedRuleError{Raw: raw, Reason: "trailing data"}
	}

	if doc.IsInstantaneous {
		return RelativeDelay{Delay: InstantDelay}, true, nil
	}

	hasValue := len(doc.Value) > 0 && !bytes.Equal(doc.Value, []byte("null"))
	if !hasValue && doc.Unit == nil {
		return RelativeDelay{}, false, nil
	}
	if !hasValue {
		return RelativeDelay{}, false, &MalformedRuleError{Raw: raw, Reason: "missing value"}
	}
	if doc.Unit == nil {
		return RelativeDelay{}, false, &MalformedRuleError{Raw: raw, Reason: "missing unit"}
	}

	value, err := parseValue(doc.Value)
	if err != nil {
		return RelativeDelay{}, false, &MalformedRuleError{Raw: raw, Reason: err.Error()}
	}
	unit, known := unitDurations[strings.ToLower(strings.TrimSpace(*doc.Unit))]
	if !known {
		return RelativeDelay{}, false, &MalformedRuleError{Raw: raw, Reason: fmt.Sprintf("unknown unit %q", *doc.Unit)}
	}

	nanos := value * float64(unit)
	if nanos >= math.MaxInt64 {
		return RelativeDelay{}, false, &MalformedRuleError{Raw: raw, Reason: "delay is out of range"}
	}

	return RelativeDelay{Delay: time.Duration(nanos)}, true, nil
}

// parseValue accepts a JSON number or a numeric string
func parseValue(raw json.RawMessage) (float64, error) {
	var number float64
	if err := json.Unmarshal(raw, &number); err != nil {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, fmt.Errorf("value must be a number")
		}
		number, err = strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return 0, fmt.Errorf("value %q is not numeric", text)
		}
	}
	if math.IsNaN(number) || math.IsInf(number, 0) {
		return 0, fmt.Errorf("value must be finite")
	}
	if number < 0 {
		return 0, fmt.Errorf("value must not be negative")
	}
	return number, nil
}
