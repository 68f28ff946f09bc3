package notify

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tomato/internal/event"
	"tomato/internal/pomodoro"
)

type fakeBus struct {
	mu       sync.Mutex
	owner    bool
	ownerErr error
	sendErr  error
	sent     []string
	closed   int
}

func (f *fakeBus) HasOwner(ctx context.Context, name string) (bool, error) {
	return f.owner, f.ownerErr
}

func (f *fakeBus) Notify(ctx context.Context, appName, summary, body string) (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return 0, f.sendErr
	}
	f.sent = append(f.sent, appName+"|"+summary+"|"+body)
	return uint32(len(f.sent)), nil
}

func (f *fakeBus) Close() error {
	f.closed++
	return nil
}

func newTestDesktop(b *fakeBus) (*Desktop, *int) {
	dials := 0
	d := NewDesktop("tomato", true)
	d.dial = func() (bus, error) {
		dials++
		return b, nil
	}
	return d, &dials
}

type recordingNotifier struct {
	name    string
	enabled bool
	err     error
	got     []event.Notification
}

func (r *recordingNotifier) Name() string            { return r.name }
func (r *recordingNotifier) Enabled() bool           { return r.enabled }
func (r *recordingNotifier) SetEnabled(enabled bool) { r.enabled = enabled }

func (r *recordingNotifier) Notify(ctx context.Context, n event.Notification) error {
	r.got = append(r.got, n)
	return r.err
}

func TestFromEngineEvent(t *testing.T) {
	n, ok := FromEngineEvent(pomodoro.Event{Type: pomodoro.EventWorkCompleted, Phase: pomodoro.PhaseLongBreak})
	require.True(t, ok)
	assert.Equal(t, event.KindWorkCompleted, n.Kind)
	assert.Equal(t, "Pomodoro completed! Take a break", n.Title)
	assert.Equal(t, "Pomodoro completed! Time for a long break", n.Message)
	assert.Equal(t, "longBreak", n.NextPhase)

	n, ok = FromEngineEvent(pomodoro.Event{Type: pomodoro.EventBreakCompleted, Phase: pomodoro.PhaseWork})
	require.True(t, ok)
	assert.Equal(t, event.KindBreakCompleted, n.Kind)
	assert.Equal(t, "Break is over! Time to work", n.Title)
	assert.Equal(t, "work", n.NextPhase)

	n, ok = FromEngineEvent(pomodoro.Event{Type: pomodoro.EventSettingsUpdated})
	require.True(t, ok)
	assert.Equal(t, "Settings updated", n.Message)

	_, ok = FromEngineEvent(pomodoro.Event{Type: pomodoro.EventStateChange})
	assert.False(t, ok)
}

func TestToastLogs(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	toast := NewToast(true)
	require.NoError(t, toast.Notify(context.Background(), event.Notification{Kind: event.KindBreakCompleted, Message: "Break completed! Time to focus"}))
	assert.Contains(t, buf.String(), "Notification: [break-phase-completed] Break completed! Time to focus")

	toast.SetEnabled(false)
	assert.False(t, toast.Enabled())
}

func TestDesktopNotify(t *testing.T) {
	b := &fakeBus{owner: true}
	d, dials := newTestDesktop(b)

	err := d.Notify(context.Background(), event.Notification{Title: "Break is over! Time to work", Message: "Break completed! Time to focus"})
	require.NoError(t, err)
	err = d.Notify(context.Background(), event.Notification{Title: "Settings updated", Message: "Settings updated"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"tomato|Break is over! Time to work|Break completed! Time to focus",
		"tomato|Settings updated|",
	}, b.sent)
	assert.Equal(t, 1, *dials)
}

func TestDesktopRequiresNotificationService(t *testing.T) {
	b := &fakeBus{owner: false}
	d, _ := newTestDesktop(b)

	permitted, err := d.Permitted(context.Background())
	require.NoError(t, err)
	assert.False(t, permitted)

	err = d.Notify(context.Background(), event.Notification{Title: "x"})
	assert.ErrorIs(t, err, ErrNotPermitted)
	assert.Empty(t, b.sent)
}

func TestDesktopRedialsAfterSendFailure(t *testing.T) {
	b := &fakeBus{owner: true, sendErr: errors.New("connection reset")}
	d, dials := newTestDesktop(b)

	require.Error(t, d.Notify(context.Background(), event.Notification{Title: "x"}))
	assert.Equal(t, 1, b.closed)

	b.sendErr = nil
	require.NoError(t, d.Notify(context.Background(), event.Notification{Title: "x"}))
	assert.Equal(t, 2, *dials)
	require.NoError(t, d.Close())
}

func TestDispatchSkipsDisabledAndCollectsErrors(t *testing.T) {
	ok := &recordingNotifier{name: "ok", enabled: true}
	off := &recordingNotifier{name: "off", enabled: false}
	broken := &recordingNotifier{name: "broken", enabled: true, err: errors.New("boom")}

	d := NewDispatcher(broken, off, ok)
	err := d.Dispatch(context.Background(), event.Notification{Kind: event.KindWorkCompleted})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken notifier: boom")
	assert.Len(t, ok.got, 1)
	assert.Empty(t, off.got)
	assert.Len(t, broken.got, 1)
}

func TestDispatcherRun(t *testing.T) {
	rec := &recordingNotifier{name: "rec", enabled: true}
	d := NewDispatcher(rec)

	events := make(chan pomodoro.Event, 3)
	events <- pomodoro.Event{Type: pomodoro.EventStateChange}
	events <- pomodoro.Event{Type: pomodoro.EventWorkCompleted, Phase: pomodoro.PhaseShortBreak}
	events <- pomodoro.Event{Type: pomodoro.EventBreakCompleted, Phase: pomodoro.PhaseWork}
	close(events)

	done := make(chan struct{})
	go func() {
		d.Run(context.Background(), events)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after the channel closed")
	}

	require.Len(t, rec.got, 2)
	assert.Equal(t, event.KindWorkCompleted, rec.got[0].Kind)
	assert.Equal(t, event.KindBreakCompleted, rec.got[1].Kind)
}
