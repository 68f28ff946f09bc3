package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"tomato/internal/pomodoro"
	"tomato/internal/report"
)

const (
	okColor   = color.FgGreen
	warnColor = color.FgYellow
	barWidth  = 30
)

// printStatus prints a status line with color
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}

func phaseColor(p pomodoro.Phase) color.Attribute {
	switch p {
	case pomodoro.PhaseShortBreak:
		return color.FgGreen
	case pomodoro.PhaseLongBreak:
		return color.FgBlue
	}
	return color.FgRed
}

func phaseTitle(p pomodoro.Phase) string {
	switch p {
	case pomodoro.PhaseShortBreak:
		return "Short break"
	case pomodoro.PhaseLongBreak:
		return "Long break"
	}
	return "Focus"
}

// formatClock renders seconds as MM:SS, or H:MM:SS from an hour up.
func formatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h, m, s := seconds/3600, seconds/60%60, seconds%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

func progressBar(progress float64, width int) string {
	filled := int(progress*float64(width) + 0.5)
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func renderStatus(s pomodoro.Snapshot) string {
	state := "paused"
	if s.Running {
		state = "running"
	}
	title := color.New(phaseColor(s.Phase), color.Bold).Sprint(phaseTitle(s.Phase))

	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s  (%s)\n", title, formatClock(s.Remaining), state)
	fmt.Fprintf(&b, "%s %3.0f%%\n", progressBar(s.Progress(), barWidth), s.Progress()*100)
	fmt.Fprintf(&b, "Completed this session: %d   Total pomodoros: %d", s.Completed, s.Count)
	if s.EndsAt != nil {
		fmt.Fprintf(&b, "\nEnds at %s", s.EndsAt.Local().Format("15:04:05"))
	}
	return b.String()
}

func renderSettings(s pomodoro.Settings) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Work:                %d min\n", s.WorkDuration)
	fmt.Fprintf(&b, "Short break:         %d min\n", s.ShortBreakDuration)
	fmt.Fprintf(&b, "Long break:          %d min\n", s.LongBreakDuration)
	fmt.Fprintf(&b, "Long break every:    %d pomodoros\n", s.LongBreakInterval)
	fmt.Fprintf(&b, "Auto-start breaks:   %t\n", s.AutoStartBreaks)
	fmt.Fprintf(&b, "Auto-start pomodoro: %t", s.AutoStartPomodoros)
	return b.String()
}

func renderReport(s report.Summary) string {
	if len(s.Days) == 0 {
		return "No completed phases in this period."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-10s  %9s  %8s  %6s  %7s\n", "Date", "Pomodoros", "Focus", "Breaks", "Skipped")
	for _, d := range s.Days {
		fmt.Fprintf(&b, "%-10s  %9d  %8s  %6d  %7d\n", d.Date, d.Pomodoros, report.FormatMinutes(d.FocusMinutes), d.Breaks, d.Skipped)
	}
	fmt.Fprintf(&b, "Total: %d pomodoros, %s focus, %s break (%.0f%% focus)",
		s.Pomodoros, report.FormatMinutes(s.FocusMinutes), report.FormatMinutes(s.BreakMinutes), s.Efficiency)
	return b.String()
}

// formatValue renders v as json or yaml, or through text for "text".
func formatValue(format string, v interface{}, text func() string) (string, error) {
	switch format {
	case "", "text":
		return text(), nil
	case "json":
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return "", err
		}
		return string(out), nil
	case "yaml":
		out, err := yaml.Marshal(v)
		if err != nil {
			return "", err
		}
		return strings.TrimRight(string(out), "\n"), nil
	}
	return "", fmt.Errorf("unknown output format %q (use text, json or yaml)", format)
}
