package notify

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"

	"tomato/internal/event"
	"tomato/internal/pomodoro"
)

const deliverTimeout = 3 * time.Second

// Notifier delivers a notification to the user.
type Notifier interface {
	Name() string
	Enabled() bool
	SetEnabled(enabled bool)
	Notify(ctx context.Context, n event.Notification) error
}

// FromEngineEvent maps an engine event to the notification it should raise.
// State changes raise nothing.
func FromEngineEvent(ev pomodoro.Event) (event.Notification, bool) {
	switch ev.Type {
	case pomodoro.EventWorkCompleted:
		return event.Notification{
			Kind:      event.KindWorkCompleted,
			Title:     "Pomodoro completed! Take a break",
			Message:   fmt.Sprintf("Pomodoro completed! Time for a %s", phaseLabel(ev.Phase)),
			NextPhase: string(ev.Phase),
		}, true
	case pomodoro.EventBreakCompleted:
		return event.Notification{
			Kind:      event.KindBreakCompleted,
			Title:     "Break is over! Time to work",
			Message:   "Break completed! Time to focus",
			NextPhase: string(ev.Phase),
		}, true
	case pomodoro.EventSettingsUpdated:
		return event.Notification{
			Kind:    event.KindSettingsUpdated,
			Title:   "Settings updated",
			Message: "Settings updated",
		}, true
	}
	return event.Notification{}, false
}

func phaseLabel(p pomodoro.Phase) string {
	switch p {
	case pomodoro.PhaseLongBreak:
		return "long break"
	case pomodoro.PhaseShortBreak:
		return "break"
	}
	return string(p)
}

// Toast writes notifications to the daemon log.
type Toast struct {
	enabled atomic.Bool
}

func NewToast(enabled bool) *Toast {
	t := &Toast{}
	t.enabled.Store(enabled)
	return t
}

func (t *Toast) Name() string            { return "toast" }
func (t *Toast) Enabled() bool           { return t.enabled.Load() }
func (t *Toast) SetEnabled(enabled bool) { t.enabled.Store(enabled) }

func (t *Toast) Notify(ctx context.Context, n event.Notification) error {
	log.Printf("Notification: [%s] %s", n.Kind, n.Message)
	return nil
}

// Dispatcher fans notifications out to every enabled notifier.
type Dispatcher struct {
	notifiers []Notifier
}

func NewDispatcher(notifiers ...Notifier) *Dispatcher {
	return &Dispatcher{notifiers: notifiers}
}

// Dispatch delivers n to each enabled notifier. One failing notifier does
// not stop the others.
func (d *Dispatcher) Dispatch(ctx context.Context, n event.Notification) error {
	var errs error
	for _, notifier := range d.notifiers {
		if !notifier.Enabled() {
			continue
		}
		deliverCtx, cancel := context.WithTimeout(ctx, deliverTimeout)
		if err := notifier.Notify(deliverCtx, n); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s notifier: %w", notifier.Name(), err))
		}
		cancel()
	}
	return errs
}

// Run consumes engine events until ctx is done or events is closed.
func (d *Dispatcher) Run(ctx context.Context, events <-chan pomodoro.Event) {
	defer log.Println("Notification dispatcher stopped.")
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			n, ok := FromEngineEvent(ev)
			if !ok {
				continue
			}
			if err := d.Dispatch(ctx, n); err != nil {
				log.Printf("Warning: Failed to deliver notification %s: %v", n.Kind, err)
			}
		}
	}
}
