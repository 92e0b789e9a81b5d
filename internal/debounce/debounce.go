// Package debounce turns a per-tick motion signal into a rate-limited alert.
//
// An alert fires only after motion has been seen continuously for the dwell
// time. Any motion-free tick cancels the pending deadline; elapsed dwell is
// never carried across gaps. After firing the state returns to idle, so a
// long burst of motion yields one alert, not a periodic resend.
package debounce

import (
	"fmt"
	"time"
)

// State is the debounce state carried between ticks. The zero value is idle.
type State struct {
	pending  bool
	deadline time.Time
}

// Idle returns the idle state.
func Idle() State {
	return State{}
}

// Pending returns a pending state expiring at deadline.
func Pending(deadline time.Time) State {
	return State{pending: true, deadline: deadline}
}

// IsPending reports whether a deadline is armed.
func (s State) IsPending() bool {
	return s.pending
}

// Deadline returns the armed deadline, if any.
func (s State) Deadline() (time.Time, bool) {
	return s.deadline, s.pending
}

func (s State) String() string {
	if !s.pending {
		return "idle"
	}
	return fmt.Sprintf("pending(%s)", s.deadline.Format(time.RFC3339Nano))
}

// Timer holds the static dwell configuration.
type Timer struct {
	Dwell    time.Duration
	Disabled bool
}

// NewTimer builds a Timer from a dwell in seconds. A negative dwell disables alerting.
func NewTimer(dwellSeconds float64) Timer {
	if dwellSeconds < 0 {
		return Timer{Disabled: true}
	}
	return Timer{Dwell: time.Duration(dwellSeconds * float64(time.Second))}
}

// Next applies one tick. It returns the next state and whether an alert fires.
func (t Timer) Next(s State, motion bool, now time.Time) (State, bool) {
	if t.Disabled || !motion {
		return Idle(), false
	}
	if !s.pending {
		return Pending(now.Add(t.Dwell)), false
	}
	if now.After(s.deadline) {
		return Idle(), true
	}
	return s, false
}
