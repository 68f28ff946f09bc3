package event

import "time"

type EventType string

const (
	EventTypePhaseStart    EventType = "phase_start"
	EventTypePhaseComplete EventType = "phase_complete"
	EventTypePhaseSkip     EventType = "phase_skip"
	EventTypeSettings      EventType = "settings_update"
	EventTypeAppStart      EventType = "app_start"
	EventTypeAppStop       EventType = "app_stop"
)

// Event structure to store in DB
type Event struct {
	ID        int64     `db:"id" json:"id"`
	Timestamp time.Time `db:"timestamp" json:"timestamp"`
	Type      EventType `db:"type" json:"type"`
	Session   string    `db:"session" json:"session,omitempty"` // Daemon run that produced the event
	Tag       string    `db:"tag" json:"tag,omitempty"`         // Phase the event refers to
	Value     float64   `db:"value" json:"value,omitempty"`     // Phase length in minutes
	Notes     string    `db:"notes" json:"notes,omitempty"`
}

// Notification kinds surfaced to the user.
const (
	KindWorkCompleted   = "work-phase-completed"
	KindBreakCompleted  = "break-phase-completed"
	KindSettingsUpdated = "settings-updated"
)

type Notification struct {
	Kind      string
	Title     string
	Message   string
	NextPhase string
}
