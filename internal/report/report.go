package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"tomato/internal/event"
	"tomato/internal/pomodoro"
	"tomato/internal/storage"
)

// Day holds the totals for one calendar day.
type Day struct {
	Date         string  `json:"date"` // YYYY-MM-DD in the report's location
	Pomodoros    int     `json:"pomodoros"`
	FocusMinutes float64 `json:"focusMinutes"`
	Breaks       int     `json:"breaks"`
	BreakMinutes float64 `json:"breakMinutes"`
	Skipped      int     `json:"skipped"`
}

// Summary holds the per-day history of a period, oldest day first.
type Summary struct {
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Days         []Day     `json:"days"`
	Pomodoros    int       `json:"pomodoros"`
	FocusMinutes float64   `json:"focusMinutes"`
	BreakMinutes float64   `json:"breakMinutes"`
	Efficiency   float64   `json:"efficiency"` // Focus / (Focus + Break) * 100
}

// Build reads the completion and skip history between start and end and
// summarizes it.
func Build(ctx context.Context, store storage.Storage, start, end time.Time, loc *time.Location) (Summary, error) {
	events, err := store.GetEvents(ctx, start, end, event.EventTypePhaseComplete, event.EventTypePhaseSkip)
	if err != nil {
		return Summary{}, fmt.Errorf("load history: %w", err)
	}
	summary := Summarize(events, loc)
	summary.Start, summary.End = start, end
	return summary, nil
}

// Summarize groups phase_complete and phase_skip events by day. Other
// event types are ignored. Completed phases contribute their recorded
// length in minutes.
func Summarize(events []event.Event, loc *time.Location) Summary {
	if loc == nil {
		loc = time.Local
	}
	days := make(map[string]*Day)
	day := func(ts time.Time) *Day {
		key := ts.In(loc).Format("2006-01-02")
		d, ok := days[key]
		if !ok {
			d = &Day{Date: key}
			days[key] = d
		}
		return d
	}

	var summary Summary
	for _, e := range events {
		switch e.Type {
		case event.EventTypePhaseComplete:
			d := day(e.Timestamp)
			if pomodoro.Phase(e.Tag).IsBreak() {
				d.Breaks++
				d.BreakMinutes += e.Value
				summary.BreakMinutes += e.Value
				continue
			}
			d.Pomodoros++
			d.FocusMinutes += e.Value
			summary.Pomodoros++
			summary.FocusMinutes += e.Value
		case event.EventTypePhaseSkip:
			day(e.Timestamp).Skipped++
		}
	}

	summary.Days = make([]Day, 0, len(days))
	for _, d := range days {
		summary.Days = append(summary.Days, *d)
	}
	sort.Slice(summary.Days, func(i, j int) bool {
		return summary.Days[i].Date < summary.Days[j].Date
	})

	if total := summary.FocusMinutes + summary.BreakMinutes; total > 0 {
		summary.Efficiency = summary.FocusMinutes / total * 100
	}
	return summary
}

// FormatMinutes renders a minute count as "1h 5m" or "25m".
func FormatMinutes(minutes float64) string {
	d := (time.Duration(minutes * float64(time.Minute))).Round(time.Minute)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute

	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
