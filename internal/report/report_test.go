package report

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tomato/internal/event"
	sqlitestore "tomato/internal/storage/sqlite"
)

var day1 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func testEvents() []event.Event {
	return []event.Event{
		{Timestamp: day1.Add(25 * time.Minute), Type: event.EventTypePhaseComplete, Tag: "work", Value: 25},
		{Timestamp: day1.Add(30 * time.Minute), Type: event.EventTypePhaseComplete, Tag: "shortBreak", Value: 5},
		{Timestamp: day1.Add(31 * time.Minute), Type: event.EventTypePhaseStart, Tag: "work", Value: 25},
		{Timestamp: day1.Add(40 * time.Minute), Type: event.EventTypePhaseSkip, Tag: "work"},
		{Timestamp: day1.Add(24*time.Hour + 50*time.Minute), Type: event.EventTypePhaseComplete, Tag: "work", Value: 50},
		{Timestamp: day1.Add(24*time.Hour + 65*time.Minute), Type: event.EventTypePhaseComplete, Tag: "longBreak", Value: 15},
	}
}

func TestSummarize(t *testing.T) {
	summary := Summarize(testEvents(), time.UTC)

	require.Len(t, summary.Days, 2)
	assert.Equal(t, Day{Date: "2026-03-02", Pomodoros: 1, FocusMinutes: 25, Breaks: 1, BreakMinutes: 5, Skipped: 1}, summary.Days[0])
	assert.Equal(t, Day{Date: "2026-03-03", Pomodoros: 1, FocusMinutes: 50, Breaks: 1, BreakMinutes: 15}, summary.Days[1])
	assert.Equal(t, 2, summary.Pomodoros)
	assert.Equal(t, 75.0, summary.FocusMinutes)
	assert.Equal(t, 20.0, summary.BreakMinutes)
	assert.InDelta(t, 78.9, summary.Efficiency, 0.1)
}

func TestSummarizeUsesLocation(t *testing.T) {
	tz := time.FixedZone("UTC-10", -10*3600)
	events := []event.Event{
		{Timestamp: day1.Add(-time.Hour), Type: event.EventTypePhaseComplete, Tag: "work", Value: 25},
	}
	summary := Summarize(events, tz)
	require.Len(t, summary.Days, 1)
	assert.Equal(t, "2026-03-01", summary.Days[0].Date)
}

func TestSummarizeEmpty(t *testing.T) {
	summary := Summarize(nil, time.UTC)
	assert.Empty(t, summary.Days)
	assert.Zero(t, summary.Efficiency)
}

func TestBuildFromStore(t *testing.T) {
	store := sqlitestore.NewSQLiteStore(filepath.Join(t.TempDir(), "report.db"))
	ctx := context.Background()
	require.NoError(t, store.Init(ctx))
	defer store.Close()

	for _, e := range testEvents() {
		_, err := store.SaveEvent(ctx, e)
		require.NoError(t, err)
	}

	summary, err := Build(ctx, store, day1, day1.Add(24*time.Hour), time.UTC)
	require.NoError(t, err)
	require.Len(t, summary.Days, 1)
	assert.Equal(t, 1, summary.Days[0].Pomodoros)
	assert.Equal(t, 1, summary.Days[0].Skipped)
	assert.Equal(t, day1, summary.Start)
}

func TestFormatMinutes(t *testing.T) {
	assert.Equal(t, "25m", FormatMinutes(25))
	assert.Equal(t, "1h 5m", FormatMinutes(65))
	assert.Equal(t, "0m", FormatMinutes(0))
}
