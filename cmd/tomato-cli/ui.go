package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/spf13/cobra"

	"tomato/internal/ipc"
	"tomato/internal/pomodoro"
)

const (
	uiRefresh = 200 * time.Millisecond
	uiHelp    = "[yellow]s[-] start  [yellow]p[-] pause  [yellow]r[-] reset  [yellow]k[-] skip  [yellow]1/2/3[-] work/short/long  [yellow]q[-] quit"
)

func newUICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ui",
		Short: "Live countdown in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUI()
		},
	}
}

// uiKeys maps key runes to the daemon commands they send.
var uiKeys = map[rune]ipc.Command{
	's': {Name: ipc.CmdStart},
	'p': {Name: ipc.CmdPause},
	'r': {Name: ipc.CmdReset},
	'k': {Name: ipc.CmdSkip},
	'1': {Name: ipc.CmdChangeType, Args: ipc.ChangeTypeArgs{Phase: string(pomodoro.PhaseWork)}},
	'2': {Name: ipc.CmdChangeType, Args: ipc.ChangeTypeArgs{Phase: string(pomodoro.PhaseShortBreak)}},
	'3': {Name: ipc.CmdChangeType, Args: ipc.ChangeTypeArgs{Phase: string(pomodoro.PhaseLongBreak)}},
}

func runUI() error {
	if _, err := ipc.Send(socketPath, ipc.Command{Name: ipc.CmdPing}); err != nil {
		return fmt.Errorf("%w (is the Tomato daemon running?)", err)
	}

	app := tview.NewApplication()
	timer := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	timer.SetBorder(true).SetTitle(" Tomato ")
	footer := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter).
		SetText(uiHelp)

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(timer, 0, 1, false).
		AddItem(footer, 1, 0, false)

	setMessage := func(msg string) {
		footer.SetText(msg + "   " + uiHelp)
	}

	refresh := func() {
		resp, err := ipc.Send(socketPath, ipc.Command{Name: ipc.CmdGetStatus})
		app.QueueUpdateDraw(func() {
			if err != nil {
				timer.SetText("\n[red]daemon unreachable[-]\n" + tview.Escape(err.Error()))
				return
			}
			var status ipc.StatusData
			if err := resp.Decode(&status); err != nil {
				timer.SetText("\n[red]bad status response[-]")
				return
			}
			timer.SetText(renderUI(status))
		})
	}

	app.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC || ev.Rune() == 'q' {
			app.Stop()
			return nil
		}
		cmd, ok := uiKeys[ev.Rune()]
		if !ok {
			return ev
		}
		go func() {
			resp, err := ipc.Send(socketPath, cmd)
			app.QueueUpdateDraw(func() {
				switch {
				case err != nil:
					setMessage("[red]" + tview.Escape(err.Error()) + "[-]")
				case !resp.Success:
					setMessage("[red]" + tview.Escape(resp.Message) + "[-]")
				default:
					setMessage("[green]" + tview.Escape(resp.Message) + "[-]")
				}
			})
			refresh()
		}()
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(uiRefresh)
		defer ticker.Stop()
		refresh()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				refresh()
			}
		}
	}()

	return app.SetRoot(layout, true).Run()
}

func uiPhaseColor(p pomodoro.Phase) string {
	switch p {
	case pomodoro.PhaseShortBreak:
		return "green"
	case pomodoro.PhaseLongBreak:
		return "blue"
	}
	return "red"
}

// renderUI draws the timer panel using tview color tags.
func renderUI(s pomodoro.Snapshot) string {
	state := "[yellow]paused[-]"
	if s.Running {
		state = "[green]running[-]"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "\n[%s::b]%s[-:-:-]\n\n", uiPhaseColor(s.Phase), phaseTitle(s.Phase))
	fmt.Fprintf(&b, "[::b]%s[::-]  %s\n\n", formatClock(s.Remaining), state)
	fmt.Fprintf(&b, "%s\n\n", progressBar(s.Progress(), barWidth))
	fmt.Fprintf(&b, "session %d · total %d · long break every %d", s.Completed, s.Count, s.Settings.LongBreakInterval)
	return b.String()
}
