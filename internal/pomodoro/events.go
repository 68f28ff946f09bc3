package pomodoro

import "time"

// EventType identifies what an engine Event reports.
type EventType string

const (
	EventStateChange     EventType = "state-change"
	EventWorkCompleted   EventType = "work-phase-completed"
	EventBreakCompleted  EventType = "break-phase-completed"
	EventSettingsUpdated EventType = "settings-updated"
)

// Event is published to subscribers after every state mutation. For the
// completion kinds, Phase is the phase just entered and Previous the one
// that finished.
type Event struct {
	Type      EventType `json:"type"`
	Phase     Phase     `json:"phase"`
	Previous  Phase     `json:"previous,omitempty"`
	Remaining int       `json:"remainingSeconds"`
	Running   bool      `json:"running"`
	Completed int       `json:"completedPomodoros"`
	Count     int       `json:"pomodoroCount"`
	Skipped   bool      `json:"skipped,omitempty"`
	At        time.Time `json:"at"`
}

// Snapshot is the published timer state.
type Snapshot struct {
	Phase     Phase      `json:"phase"`
	Remaining int        `json:"remainingSeconds"`
	Duration  int        `json:"durationSeconds"`
	Running   bool       `json:"running"`
	EndsAt    *time.Time `json:"endsAt,omitempty"`
	Completed int        `json:"completedPomodoros"`
	Count     int        `json:"pomodoroCount"`
	Settings  Settings   `json:"settings"`
}

// Progress returns the elapsed fraction of the current phase in [0, 1].
func (s Snapshot) Progress() float64 {
	if s.Duration <= 0 {
		return 1
	}
	progress := float64(s.Duration-s.Remaining) / float64(s.Duration)
	if progress < 0 {
		return 0
	}
	if progress > 1 {
		return 1
	}
	return progress
}
