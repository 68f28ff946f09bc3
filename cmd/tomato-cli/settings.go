package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"tomato/internal/ipc"
	"tomato/internal/pomodoro"
)

func newSettingsCmd() *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the timer settings",
	}

	var format string
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the current settings",
		Run: func(cmd *cobra.Command, args []string) {
			settings := fetchSettings()
			out, err := formatValue(format, settings, func() string { return renderSettings(settings) })
			if err != nil {
				log.Fatalf("Error: %v", err)
			}
			fmt.Println(out)
		},
	}
	showCmd.Flags().StringVarP(&format, "output", "o", "text", "Output format: text, json or yaml")

	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Change settings; only the flags given are updated",
		Example: `  tomato-cli settings set --work 50 --short 10
  tomato-cli settings set --interval 3 --auto-breaks`,
		Run: func(cmd *cobra.Command, args []string) {
			patch, err := patchFromFlags(cmd)
			if err != nil {
				log.Fatalf("Error: %v", err)
			}
			if patch.Empty() {
				printStatus("⚠", "Nothing to update, pass at least one flag", warnColor)
				return
			}
			resp := call(ipc.Command{Name: ipc.CmdUpdateSettings, Args: patch})
			var settings pomodoro.Settings
			if err := resp.Decode(&settings); err != nil {
				log.Fatalf("Error: unexpected response: %v", err)
			}
			printStatus("✓", resp.Message, okColor)
			fmt.Println(renderSettings(settings))
		},
	}
	setCmd.Flags().Int("work", 0, "Work phase length in minutes")
	setCmd.Flags().Int("short", 0, "Short break length in minutes")
	setCmd.Flags().Int("long", 0, "Long break length in minutes")
	setCmd.Flags().Int("interval", 0, "Completed pomodoros per long break")
	setCmd.Flags().Bool("auto-breaks", false, "Start breaks automatically")
	setCmd.Flags().Bool("auto-pomodoros", false, "Start work phases automatically")

	settingsCmd.AddCommand(showCmd, setCmd)
	return settingsCmd
}

func fetchSettings() pomodoro.Settings {
	resp := call(ipc.Command{Name: ipc.CmdGetSettings})
	var settings pomodoro.Settings
	if err := resp.Decode(&settings); err != nil {
		log.Fatalf("Error: unexpected response: %v", err)
	}
	return settings
}

// patchFromFlags builds a patch holding only the flags set on the command line.
func patchFromFlags(cmd *cobra.Command) (pomodoro.SettingsPatch, error) {
	var patch pomodoro.SettingsPatch
	flags := cmd.Flags()

	ints := []struct {
		name string
		dst  **int
	}{
		{"work", &patch.WorkDuration},
		{"short", &patch.ShortBreakDuration},
		{"long", &patch.LongBreakDuration},
		{"interval", &patch.LongBreakInterval},
	}
	for _, f := range ints {
		if !flags.Changed(f.name) {
			continue
		}
		v, err := flags.GetInt(f.name)
		if err != nil {
			return patch, err
		}
		*f.dst = &v
	}

	bools := []struct {
		name string
		dst  **bool
	}{
		{"auto-breaks", &patch.AutoStartBreaks},
		{"auto-pomodoros", &patch.AutoStartPomodoros},
	}
	for _, f := range bools {
		if !flags.Changed(f.name) {
			continue
		}
		v, err := flags.GetBool(f.name)
		if err != nil {
			return patch, err
		}
		*f.dst = &v
	}
	return patch, nil
}
