package pomodoro

import (
	"sync"
	"time"
)

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

// Cancel stops a scheduled callback. It never waits for a callback that is
// already running and is safe to call more than once.
type Cancel func()

// Scheduler runs callbacks later. Delivery may be late by any amount; the
// engine only uses it to decide when to look at the clock again.
type Scheduler interface {
	// Every calls fn repeatedly, roughly every d, until cancelled.
	Every(d time.Duration, fn func()) Cancel
	// After calls fn once after d unless cancelled first.
	After(d time.Duration, fn func()) Cancel
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

type timerScheduler struct{}

// TimerScheduler is a Scheduler backed by time.Ticker and time.AfterFunc.
var TimerScheduler Scheduler = timerScheduler{}

func (timerScheduler) Every(d time.Duration, fn func()) Cancel {
	ticker := time.NewTicker(d)
	stop := make(chan struct{})
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() { close(stop) })
	}
}

func (timerScheduler) After(d time.Duration, fn func()) Cancel {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}
