package pomodoro

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"go.uber.org/multierr"
)

const (
	DefaultTickInterval   = 200 * time.Millisecond
	DefaultAutoStartDelay = 500 * time.Millisecond

	persistTimeout = 2 * time.Second
)

// Options tunes an Engine. Zero values select the defaults.
type Options struct {
	// TickInterval is how often a running timer re-reads the clock. It only
	// affects responsiveness; remaining time is always derived from the anchor.
	TickInterval time.Duration
	// AutoStartDelay is the debounce before an auto-started phase begins.
	AutoStartDelay time.Duration
	Clock          Clock
	Scheduler      Scheduler
}

// Engine is the Pomodoro state machine. All commands, wake-ups and queries
// are serialized by one mutex, so each transition is atomic.
//
// Commands block until Load has run.
type Engine struct {
	mu       sync.Mutex
	ready    chan struct{}
	loadOnce sync.Once

	settingsStore *SettingsStore
	progressStore *ProgressStore
	options       Options

	settings  Settings
	phase     Phase
	remaining int
	running   bool
	anchor    time.Time
	completed int
	count     int

	// generation is bumped whenever the timer stops so that callbacks
	// already in flight can tell they are stale.
	generation uint64
	cancelTick Cancel
	cancelAuto Cancel

	subscribers []chan Event
}

func New(settingsStore *SettingsStore, progressStore *ProgressStore, options Options) *Engine {
	if options.TickInterval <= 0 {
		options.TickInterval = DefaultTickInterval
	}
	if options.AutoStartDelay < 0 {
		options.AutoStartDelay = 0
	} else if options.AutoStartDelay == 0 {
		options.AutoStartDelay = DefaultAutoStartDelay
	}
	if options.Clock == nil {
		options.Clock = SystemClock
	}
	if options.Scheduler == nil {
		options.Scheduler = TimerScheduler
	}

	defaults := settingsStore.Defaults()
	return &Engine{
		ready:         make(chan struct{}),
		settingsStore: settingsStore,
		progressStore: progressStore,
		options:       options,
		settings:      defaults,
		phase:         PhaseWork,
		remaining:     defaults.Seconds(PhaseWork),
	}
}

// Load reads the durable settings and count, then releases any blocked
// commands. Unreadable records are replaced by defaults; the returned error
// only describes what was substituted. Calls after the first are no-ops.
func (e *Engine) Load(ctx context.Context) error {
	var err error
	e.loadOnce.Do(func() {
		settings, settingsErr := e.settingsStore.Load(ctx)
		if settingsErr != nil {
			log.Printf("Warning: %v. Using defaults for unreadable fields.", settingsErr)
		}
		count, countErr := e.progressStore.Load(ctx)
		if countErr != nil {
			log.Printf("Warning: %v. Starting pomodoro count at 0.", countErr)
		}

		e.mu.Lock()
		e.settings = settings
		e.count = count
		e.phase = PhaseWork
		e.remaining = settings.Seconds(PhaseWork)
		e.mu.Unlock()

		log.Printf("Engine loaded: settings=%+v count=%d", settings, count)
		close(e.ready)
		err = multierr.Combine(settingsErr, countErr)
	})
	return err
}

func (e *Engine) awaitReady() {
	<-e.ready
}

// Subscribe registers an observer. Events are dropped for a subscriber whose
// buffer is full.
func (e *Engine) Subscribe(buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Event, buffer)
	e.mu.Lock()
	e.subscribers = append(e.subscribers, ch)
	e.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a channel returned by Subscribe.
func (e *Engine) Unsubscribe(sub <-chan Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, ch := range e.subscribers {
		if ch == sub {
			e.subscribers = append(e.subscribers[:i], e.subscribers[i+1:]...)
			close(ch)
			return
		}
	}
}

// Close stops the timer and closes every subscription.
func (e *Engine) Close() {
	e.mu.Lock()
	e.stopLocked()
	subscribers := e.subscribers
	e.subscribers = nil
	e.mu.Unlock()

	for _, ch := range subscribers {
		close(ch)
	}
}

// State recomputes the remaining time from the anchor and returns the
// current state. A zero crossing found here completes the phase before the
// snapshot is taken.
func (e *Engine) State() Snapshot {
	e.awaitReady()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.refreshLocked(e.options.Clock.Now())
	return e.snapshotLocked()
}

// Settings returns the cached settings.
func (e *Engine) Settings() Settings {
	e.awaitReady()
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings
}

// Start runs the countdown from the current remaining time. No-op if
// already running.
func (e *Engine) Start() {
	e.awaitReady()
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		e.refreshLocked(e.options.Clock.Now())
		return
	}
	e.startLocked()
}

// Pause freezes the countdown at its last recomputed value. No-op if not
// running.
func (e *Engine) Pause() {
	e.awaitReady()
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.options.Clock.Now()
	e.refreshLocked(now)
	if !e.running {
		return
	}
	e.stopLocked()
	log.Printf("Engine: paused %s with %s left", e.phase, formatSeconds(e.remaining))
	e.emitLocked(e.eventLocked(EventStateChange, now))
}

// Reset stops the timer and restores the full duration of the current phase.
func (e *Engine) Reset() {
	e.awaitReady()
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.options.Clock.Now()
	e.refreshLocked(now)
	e.stopLocked()
	e.remaining = e.settings.Seconds(e.phase)
	log.Printf("Engine: reset %s to %s", e.phase, formatSeconds(e.remaining))
	e.emitLocked(e.eventLocked(EventStateChange, now))
}

// Skip stops the timer and moves to the phase that would follow, without
// counting the current phase as completed. From work the next break is
// long when completed mod interval == interval-1, treating the skipped
// phase as the one that would have finished.
func (e *Engine) Skip() {
	e.awaitReady()
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.options.Clock.Now()
	e.refreshLocked(now)
	e.stopLocked()

	previous := e.phase
	next := PhaseWork
	if previous == PhaseWork {
		next = PhaseShortBreak
		interval := e.settings.LongBreakInterval
		if e.completed%interval == interval-1 {
			next = PhaseLongBreak
		}
	}
	e.phase = next
	e.remaining = e.settings.Seconds(next)
	log.Printf("Engine: skipped %s, now %s", previous, next)

	ev := e.eventLocked(EventStateChange, now)
	ev.Previous = previous
	ev.Skipped = true
	e.emitLocked(ev)
}

// ChangeType stops the timer and switches to phase directly.
func (e *Engine) ChangeType(phase Phase) error {
	if !phase.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownPhase, phase)
	}
	e.awaitReady()
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.options.Clock.Now()
	e.refreshLocked(now)
	e.stopLocked()

	previous := e.phase
	e.phase = phase
	e.remaining = e.settings.Seconds(phase)
	log.Printf("Engine: changed %s -> %s", previous, phase)

	ev := e.eventLocked(EventStateChange, now)
	ev.Previous = previous
	e.emitLocked(ev)
	return nil
}

// UpdateSettings merges patch into the settings, persists them, stops the
// timer and re-initializes the current phase with its new duration. An
// invalid result is rejected as a whole and nothing changes.
func (e *Engine) UpdateSettings(patch SettingsPatch) error {
	e.awaitReady()
	e.mu.Lock()
	defer e.mu.Unlock()

	merged, err := e.settings.Apply(patch)
	if err != nil {
		log.Printf("Engine: rejected settings update: %v", err)
		return err
	}

	now := e.options.Clock.Now()
	e.refreshLocked(now)

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := e.settingsStore.Save(ctx, merged); err != nil {
		log.Printf("Warning: %v. Keeping new settings in memory only.", err)
	}

	e.settings = merged
	e.stopLocked()
	e.remaining = merged.Seconds(e.phase)
	log.Printf("Engine: settings updated: %+v", merged)
	e.emitLocked(e.eventLocked(EventSettingsUpdated, now))
	return nil
}

func (e *Engine) startLocked() {
	if e.running {
		return
	}
	e.cancelAutoStartLocked()

	now := e.options.Clock.Now()
	e.anchor = now.Add(time.Duration(e.remaining) * time.Second)
	e.running = true
	e.generation++
	generation := e.generation
	e.cancelTick = e.options.Scheduler.Every(e.options.TickInterval, func() {
		e.wake(generation)
	})

	log.Printf("Engine: started %s, %s left, ends at %s", e.phase, formatSeconds(e.remaining), e.anchor.Format(time.Kitchen))
	e.emitLocked(e.eventLocked(EventStateChange, now))
}

func (e *Engine) wake(generation uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if generation != e.generation || !e.running {
		return
	}
	e.refreshLocked(e.options.Clock.Now())
}

func (e *Engine) autoStart(generation uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if generation != e.generation {
		return
	}
	e.cancelAuto = nil
	log.Printf("Engine: auto-starting %s", e.phase)
	e.startLocked()
}

// refreshLocked derives remaining from the anchor and completes the phase
// on the zero crossing. It is idempotent for a given instant.
func (e *Engine) refreshLocked(now time.Time) {
	if !e.running || e.anchor.IsZero() {
		return
	}
	e.remaining = secondsUntil(e.anchor, now)
	if e.remaining == 0 {
		e.completeLocked(now)
	}
}

func (e *Engine) completeLocked(now time.Time) {
	previous := e.phase
	e.stopLocked()

	var kind EventType
	if previous == PhaseWork {
		e.completed++
		e.count++
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		if err := e.progressStore.Save(ctx, e.count); err != nil {
			log.Printf("Warning: %v", err)
		}
		cancel()

		e.phase = PhaseShortBreak
		if e.completed%e.settings.LongBreakInterval == 0 {
			e.phase = PhaseLongBreak
		}
		kind = EventWorkCompleted
	} else {
		e.phase = PhaseWork
		kind = EventBreakCompleted
	}
	e.remaining = e.settings.Seconds(e.phase)
	log.Printf("Engine: %s completed (completed=%d, count=%d), next %s", previous, e.completed, e.count, e.phase)

	ev := e.eventLocked(kind, now)
	ev.Previous = previous
	e.emitLocked(ev)

	if e.settings.AutoStarts(e.phase) {
		generation := e.generation
		e.cancelAuto = e.options.Scheduler.After(e.options.AutoStartDelay, func() {
			e.autoStart(generation)
		})
	}
}

// stopLocked cancels pending callbacks before clearing the anchor.
func (e *Engine) stopLocked() {
	if e.cancelTick != nil {
		e.cancelTick()
		e.cancelTick = nil
	}
	e.cancelAutoStartLocked()
	e.running = false
	e.anchor = time.Time{}
	e.generation++
}

func (e *Engine) cancelAutoStartLocked() {
	if e.cancelAuto != nil {
		e.cancelAuto()
		e.cancelAuto = nil
	}
}

func (e *Engine) snapshotLocked() Snapshot {
	snapshot := Snapshot{
		Phase:     e.phase,
		Remaining: e.remaining,
		Duration:  e.settings.Seconds(e.phase),
		Running:   e.running,
		Completed: e.completed,
		Count:     e.count,
		Settings:  e.settings,
	}
	if e.running {
		endsAt := e.anchor
		snapshot.EndsAt = &endsAt
	}
	return snapshot
}

func (e *Engine) eventLocked(kind EventType, now time.Time) Event {
	return Event{
		Type:      kind,
		Phase:     e.phase,
		Remaining: e.remaining,
		Running:   e.running,
		Completed: e.completed,
		Count:     e.count,
		At:        now,
	}
}

func (e *Engine) emitLocked(ev Event) {
	for _, ch := range e.subscribers {
		select {
		case ch <- ev:
		default:
			log.Printf("Warning: subscriber buffer full, dropped %s event", ev.Type)
		}
	}
}

// secondsUntil rounds the time left to the nearest second, halves up,
// floored at zero.
func secondsUntil(anchor, now time.Time) int {
	left := anchor.Sub(now)
	if left <= 0 {
		return 0
	}
	return int((left + time.Second/2) / time.Second)
}

func formatSeconds(seconds int) string {
	return (time.Duration(seconds) * time.Second).String()
}
