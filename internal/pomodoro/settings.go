package pomodoro

import (
	"errors"
	"fmt"
)

// ErrInvalidSettings is returned when a settings update would break the
// duration or interval invariants.
var ErrInvalidSettings = errors.New("invalid pomodoro settings")

// Settings holds phase durations in minutes and the auto-start flags.
type Settings struct {
	WorkDuration       int  `json:"workDuration" yaml:"work_duration"`
	ShortBreakDuration int  `json:"shortBreakDuration" yaml:"short_break_duration"`
	LongBreakDuration  int  `json:"longBreakDuration" yaml:"long_break_duration"`
	LongBreakInterval  int  `json:"longBreakInterval" yaml:"long_break_interval"`
	AutoStartBreaks    bool `json:"autoStartBreaks" yaml:"auto_start_breaks"`
	AutoStartPomodoros bool `json:"autoStartPomodoros" yaml:"auto_start_pomodoros"`
}

// DefaultSettings returns the classic 25/5/15 cycle with a long break every
// fourth pomodoro and auto-start disabled.
func DefaultSettings() Settings {
	return Settings{
		WorkDuration:       25,
		ShortBreakDuration: 5,
		LongBreakDuration:  15,
		LongBreakInterval:  4,
	}
}

// Validate checks that all durations are positive and the long-break
// interval is at least one.
func (s Settings) Validate() error {
	switch {
	case s.WorkDuration <= 0:
		return fmt.Errorf("%w: workDuration must be positive, got %d", ErrInvalidSettings, s.WorkDuration)
	case s.ShortBreakDuration <= 0:
		return fmt.Errorf("%w: shortBreakDuration must be positive, got %d", ErrInvalidSettings, s.ShortBreakDuration)
	case s.LongBreakDuration <= 0:
		return fmt.Errorf("%w: longBreakDuration must be positive, got %d", ErrInvalidSettings, s.LongBreakDuration)
	case s.LongBreakInterval < 1:
		return fmt.Errorf("%w: longBreakInterval must be at least 1, got %d", ErrInvalidSettings, s.LongBreakInterval)
	}
	return nil
}

// Seconds returns the configured length of phase p in seconds.
func (s Settings) Seconds(p Phase) int {
	switch p {
	case PhaseShortBreak:
		return s.ShortBreakDuration * 60
	case PhaseLongBreak:
		return s.LongBreakDuration * 60
	default:
		return s.WorkDuration * 60
	}
}

// AutoStarts reports whether entering phase p should start the timer on its own.
func (s Settings) AutoStarts(p Phase) bool {
	if p.IsBreak() {
		return s.AutoStartBreaks
	}
	return s.AutoStartPomodoros
}

// SettingsPatch is a partial settings update; nil fields are left unchanged.
type SettingsPatch struct {
	WorkDuration       *int  `json:"workDuration,omitempty"`
	ShortBreakDuration *int  `json:"shortBreakDuration,omitempty"`
	LongBreakDuration  *int  `json:"longBreakDuration,omitempty"`
	LongBreakInterval  *int  `json:"longBreakInterval,omitempty"`
	AutoStartBreaks    *bool `json:"autoStartBreaks,omitempty"`
	AutoStartPomodoros *bool `json:"autoStartPomodoros,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p SettingsPatch) Empty() bool {
	return p.WorkDuration == nil && p.ShortBreakDuration == nil && p.LongBreakDuration == nil &&
		p.LongBreakInterval == nil && p.AutoStartBreaks == nil && p.AutoStartPomodoros == nil
}

// Apply merges p into s. The merge is all or nothing: if the result is
// invalid, s is returned unchanged together with the validation error.
func (s Settings) Apply(p SettingsPatch) (Settings, error) {
	merged := s
	if p.WorkDuration != nil {
		merged.WorkDuration = *p.WorkDuration
	}
	if p.ShortBreakDuration != nil {
		merged.ShortBreakDuration = *p.ShortBreakDuration
	}
	if p.LongBreakDuration != nil {
		merged.LongBreakDuration = *p.LongBreakDuration
	}
	if p.LongBreakInterval != nil {
		merged.LongBreakInterval = *p.LongBreakInterval
	}
	if p.AutoStartBreaks != nil {
		merged.AutoStartBreaks = *p.AutoStartBreaks
	}
	if p.AutoStartPomodoros != nil {
		merged.AutoStartPomodoros = *p.AutoStartPomodoros
	}
	if err := merged.Validate(); err != nil {
		return s, err
	}
	return merged, nil
}
