package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"tomato/internal/ipc"
	"tomato/internal/pomodoro"
)

var (
	socketPath   string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "tomato-cli",
	Short: "CLI tool to control the Tomato pomodoro daemon",
	Long:  `A command-line interface to drive the Tomato timer (start, pause, skip, settings, history) through the daemon's Unix socket.`,
}

// call sends cmd and exits on transport errors or a failed response.
func call(cmd ipc.Command) ipc.Response {
	resp, err := ipc.Send(socketPath, cmd)
	if err != nil {
		log.Fatalf("Error: %v\nIs the Tomato daemon running?", err)
	}
	if !resp.Success {
		fmt.Fprintf(os.Stderr, "Error: %s\n", resp.Message)
		os.Exit(1)
	}
	return resp
}

// timerCommand sends a command answered with the timer status and prints it.
func timerCommand(name string, args interface{}) {
	resp := call(ipc.Command{Name: name, Args: args})
	var status ipc.StatusData
	if err := resp.Decode(&status); err != nil {
		log.Fatalf("Error: unexpected response: %v", err)
	}
	if resp.Message != "" {
		printStatus("✓", resp.Message, okColor)
	}
	fmt.Println(renderStatus(status))
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check if the Tomato daemon is running",
	Run: func(cmd *cobra.Command, args []string) {
		resp := call(ipc.Command{Name: ipc.CmdPing})
		printStatus("✓", resp.Message, okColor)
	},
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start or resume the countdown",
	Run: func(cmd *cobra.Command, args []string) {
		timerCommand(ipc.CmdStart, nil)
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause the countdown",
	Run: func(cmd *cobra.Command, args []string) {
		timerCommand(ipc.CmdPause, nil)
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Stop and restore the full duration of the current phase",
	Run: func(cmd *cobra.Command, args []string) {
		timerCommand(ipc.CmdReset, nil)
	},
}

var skipCmd = &cobra.Command{
	Use:   "skip",
	Short: "Move to the next phase without completing the current one",
	Run: func(cmd *cobra.Command, args []string) {
		timerCommand(ipc.CmdSkip, nil)
	},
}

var typeCmd = &cobra.Command{
	Use:   "type <work|short|long>",
	Short: "Switch directly to a phase",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		phase, err := pomodoro.ParsePhase(args[0])
		if err != nil {
			log.Fatalf("Error: %v. Use 'work', 'short' or 'long'", err)
		}
		timerCommand(ipc.CmdChangeType, ipc.ChangeTypeArgs{Phase: string(phase)})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current timer state",
	Run: func(cmd *cobra.Command, args []string) {
		resp := call(ipc.Command{Name: ipc.CmdGetStatus})
		var status ipc.StatusData
		if err := resp.Decode(&status); err != nil {
			log.Fatalf("Error: unexpected response: %v", err)
		}
		out, err := formatValue(outputFormat, status, func() string { return renderStatus(status) })
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
		fmt.Println(out)
	},
}

func main() {
	log.SetFlags(0)

	defaultSocket := ipc.DefaultSocketPath
	if env := os.Getenv("TOMATO_SOCKET_PATH"); env != "" {
		defaultSocket = env
	}
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", defaultSocket, "Path to the daemon socket (env TOMATO_SOCKET_PATH)")

	statusCmd.Flags().StringVarP(&outputFormat, "output", "o", "text", "Output format: text, json or yaml")

	rootCmd.AddCommand(pingCmd, startCmd, pauseCmd, resetCmd, skipCmd, typeCmd, statusCmd)
	rootCmd.AddCommand(newSettingsCmd())
	rootCmd.AddCommand(newReportCmd())
	rootCmd.AddCommand(newUICmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}
