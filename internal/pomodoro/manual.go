package pomodoro

import (
	"sync"
	"time"
)

// ManualClock is a Clock and Scheduler whose time only moves when told to.
// It lets tests and simulations drive the engine without real timers.
type ManualClock struct {
	mu    sync.Mutex
	now   time.Time
	seq   int
	tasks map[int]*manualTask
}

type manualTask struct {
	seq   int
	due   time.Time
	every time.Duration
	fn    func()
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start, tasks: make(map[int]*manualTask)}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Every(d time.Duration, fn func()) Cancel {
	if d <= 0 {
		d = time.Millisecond
	}
	return c.add(d, d, fn)
}

func (c *ManualClock) After(d time.Duration, fn func()) Cancel {
	return c.add(d, 0, fn)
}

func (c *ManualClock) add(delay, every time.Duration, fn func()) Cancel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	id := c.seq
	c.tasks[id] = &manualTask{seq: id, due: c.now.Add(delay), every: every, fn: fn}
	return func() {
		c.mu.Lock()
		delete(c.tasks, id)
		c.mu.Unlock()
	}
}

// Pending returns the number of scheduled callbacks.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tasks)
}

// Jump moves time forward without running anything, the way a suspended or
// throttled host loses its timers.
func (c *ManualClock) Jump(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Advance moves time forward by d and runs every callback falling due on
// the way, in due order. Callbacks run without the clock's lock held.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		next := c.nextDueLocked(target)
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		if next.due.After(c.now) {
			c.now = next.due
		}
		if next.every > 0 {
			next.due = c.now.Add(next.every)
		} else {
			delete(c.tasks, next.seq)
		}
		fn := next.fn
		c.mu.Unlock()

		fn()
	}
}

func (c *ManualClock) nextDueLocked(limit time.Time) *manualTask {
	var next *manualTask
	for _, task := range c.tasks {
		if task.due.After(limit) {
			continue
		}
		if next == nil || task.due.Before(next.due) || (task.due.Equal(next.due) && task.seq < next.seq) {
			next = task
		}
	}
	return next
}
