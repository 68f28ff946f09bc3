package pomodoro

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownPhase is returned when a phase name cannot be parsed.
var ErrUnknownPhase = errors.New("unknown phase")

// Phase is one timer segment.
type Phase string

const (
	PhaseWork       Phase = "work"
	PhaseShortBreak Phase = "shortBreak"
	PhaseLongBreak  Phase = "longBreak"
)

// Valid reports whether p is one of the three known phases.
func (p Phase) Valid() bool {
	switch p {
	case PhaseWork, PhaseShortBreak, PhaseLongBreak:
		return true
	}
	return false
}

// IsBreak reports whether p is a short or long break.
func (p Phase) IsBreak() bool {
	return p == PhaseShortBreak || p == PhaseLongBreak
}

// ParsePhase accepts the canonical names plus the short aliases used on the
// command line ("focus", "short", "long").
func ParsePhase(s string) (Phase, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "work", "focus", "pomodoro":
		return PhaseWork, nil
	case "shortbreak", "short_break", "short":
		return PhaseShortBreak, nil
	case "longbreak", "long_break", "long":
		return PhaseLongBreak, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPhase, s)
}
