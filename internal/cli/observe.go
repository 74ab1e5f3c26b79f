package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var observeLogLimit int

var observeCmd = &cobra.Command{
	Use:   "observe",
	Short: "Review recent executions",
}

var observeAnalyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Ask the model to review recent executions",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()
		if last, err := rt.observer.LastAnalysis(); err == nil && !last.IsZero() {
			fmt.Fprintf(cmd.OutOrStdout(), "Previous analysis: %s\n", last.Local().Format("2006-01-02 15:04:05"))
		}
		report, err := rt.observer.AnalyzePerformance(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), report)
		return nil
	},
}

var observeProposalsCmd = &cobra.Command{
	Use:   "proposals",
	Short: "Ask the model for improvement proposals based on recent failures",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()
		proposals, err := rt.observer.OptimizationProposals(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(proposals) == 0 {
			fmt.Fprintln(out, "No proposals.")
			return nil
		}
		for i, p := range proposals {
			fmt.Fprintf(out, "%d. %s\n", i+1, p)
		}
		return nil
	},
}

var observeLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Show recent executions",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()
		logs, err := rt.observer.Logs(observeLogLimit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		printHeader(out, fmt.Sprintf("Executions (%d)", len(logs)))
		for _, l := range logs {
			status := color.GreenString("ok")
			if !l.Success {
				status = color.RedString("failed")
			}
			fmt.Fprintf(out, "%s  %-6s %-6s %6dms  %s\n",
				l.Timestamp.Local().Format("2006-01-02 15:04:05"), l.ActionType, status, l.Duration.Milliseconds(), l.Input)
		}
		total, failed, err := rt.timeline.CountExecutions()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\nTotal: %d executions, %d failed\n", total, failed)
		return nil
	},
}

var observeTraceCmd = &cobra.Command{
	Use:   "trace <trace-id>",
	Short: "Show the model and tool spans of one execution",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()
		spans, err := rt.timeline.ListSpans(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(spans) == 0 {
			fmt.Fprintf(out, "No spans for trace %s.\n", args[0])
			return nil
		}
		printHeader(out, "Trace "+args[0])
		for _, sp := range spans {
			fmt.Fprintf(out, "%-5s %6dms  %s\n", sp.SpanType, sp.DurationMs, sp.Title)
		}
		return nil
	},
}

func init() {
	observeLogCmd.Flags().IntVarP(&observeLogLimit, "limit", "n", 20, "Number of executions to show")
	observeCmd.AddCommand(observeAnalyzeCmd)
	observeCmd.AddCommand(observeProposalsCmd)
	observeCmd.AddCommand(observeLogCmd)
	observeCmd.AddCommand(observeTraceCmd)
}
