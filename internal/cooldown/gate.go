// Package cooldown decides whether a new regular event may be recorded,
// given the time of the last one and a minimum spacing.
package cooldown

import (
	"errors"
	"time"
)

var ErrCoolingDown = errors.New("cooldown in effect")

type State string

const (
	StateEligible   State = "eligible"
	StateCooldown   State = "cooldown"
	StateOverridden State = "overridden"
)

type Status struct {
	Eligible  bool          `json:"eligible"`
	HasLast   bool          `json:"hasLast"`
	Elapsed   time.Duration `json:"elapsed"`
	Remaining time.Duration `json:"remaining"`
	Threshold time.Duration `json:"threshold"`
	State     State         `json:"state"`
}

// AvailableAt is when the cooldown ends, relative to now.
func (s Status) AvailableAt(now time.Time) time.Time {
	return now.Add(s.Remaining)
}

// Evaluate is pure: a zero last means there is no prior event, and a
// non-positive threshold means the category has no cooldown. A last event
// in the future is treated as just recorded.
func Evaluate(now, last time.Time, threshold time.Duration) Status {
	if threshold < 0 {
		threshold = 0
	}
	status := Status{Threshold: threshold, HasLast: !last.IsZero()}
	if !status.HasLast {
		status.Eligible = true
		status.State = StateEligible
		return status
	}

	elapsed := now.Sub(last)
	if elapsed < 0 {
		status.Elapsed = 0
		status.Eligible = threshold == 0
		if !status.Eligible {
			status.Remaining = threshold
		}
	} else {
		status.Elapsed = elapsed
		status.Eligible = elapsed >= threshold
		if !status.Eligible {
			status.Remaining = threshold - elapsed
		}
	}

	status.State = StateEligible
	if !status.Eligible {
		status.State = StateCooldown
	}
	return status
}

// Authorize gates the write path. force bypasses the cooldown and yields
// StateOverridden; it never alters the status used for display.
func Authorize(status Status, force bool) (State, error) {
	if status.Eligible {
		return StateEligible, nil
	}
	if force {
		return StateOverridden, nil
	}
	return StateCooldown, ErrCoolingDown
}
