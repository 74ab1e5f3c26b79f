package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kortex/kortex/internal/tools"
)

var memoryRecallLimit int

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Store and search long-term memories",
}

var memoryRememberCmd = &cobra.Command{
	Use:   "remember <text>",
	Short: "Store a memory",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()
		rt.retriever.Remember(cmd.Context(), strings.Join(args, " "), map[string]any{"source": "cli"})
		fmt.Fprintln(cmd.OutOrStdout(), "Memory submitted.")
		return nil
	},
}

var memoryRecallCmd = &cobra.Command{
	Use:   "recall <query>",
	Short: "Search memories",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()
		records := rt.retriever.Recall(cmd.Context(), strings.Join(args, " "), memoryRecallLimit)
		if len(records) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No memories found.")
			return nil
		}
		fmt.Fprint(cmd.OutOrStdout(), tools.FormatRecords(records))
		return nil
	},
}

func init() {
	memoryRecallCmd.Flags().IntVarP(&memoryRecallLimit, "limit", "n", 5, "Maximum number of memories")
	memoryCmd.AddCommand(memoryRememberCmd)
	memoryCmd.AddCommand(memoryRecallCmd)
}
