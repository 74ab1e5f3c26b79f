package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/kortex/kortex/internal/cli.version=1.2.3"
	version = "0.3.0"
	logo    = "\n" +
		"  _  _____  ____ _____ _______  __\n" +
		" | |/ / _ \\|  _ \\_   _| ____\\ \\/ /\n" +
		" | ' / | | | |_) || | |  _|  \\  /\n" +
		" | . \\ |_| |  _ < | | | |___ /  \\\n" +
		" |_|\\_\\___/|_| \\_\\|_| |_____/_/\\_\\\n"
)

var rootCmd = &cobra.Command{
	Use:           "kortex",
	Short:         "Kortex - agentic orchestration engine",
	Long:          color.CyanString(logo) + "\nClassifies requests, routes them to skills, memory or a tool-using reasoning loop.",
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(skillsCmd)
	rootCmd.AddCommand(memoryCmd)
	rootCmd.AddCommand(observeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader(cmd.OutOrStdout(), "Kortex Version")
		fmt.Fprintf(cmd.OutOrStdout(), "Version: %s\n", version)
	},
}

func printHeader(w io.Writer, title string) {
	fmt.Fprintln(w, color.New(color.FgCyan, color.Bold).Sprint(title))
}
