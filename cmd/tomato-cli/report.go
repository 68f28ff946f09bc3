package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"tomato/internal/ipc"
	"tomato/internal/report"
)

func newReportCmd() *cobra.Command {
	var (
		days   int
		format string
	)
	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize completed pomodoros per day",
		Run: func(cmd *cobra.Command, args []string) {
			resp := call(ipc.Command{Name: ipc.CmdReport, Args: ipc.ReportArgs{Days: days}})
			var summary report.Summary
			if err := resp.Decode(&summary); err != nil {
				log.Fatalf("Error: unexpected response: %v", err)
			}
			out, err := formatValue(format, summary, func() string { return renderReport(summary) })
			if err != nil {
				log.Fatalf("Error: %v", err)
			}
			fmt.Println(out)
		},
	}
	reportCmd.Flags().IntVarP(&days, "days", "d", 7, "Number of days to include, today included")
	reportCmd.Flags().StringVarP(&format, "output", "o", "text", "Output format: text, json or yaml")
	return reportCmd
}
