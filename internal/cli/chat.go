package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kortex/kortex/internal/agent"
)

var (
	chatMessage string
	chatJSON    bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Send one message through the classifier",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMessage(cmd, false)
	},
}

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run one task through the reasoning loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMessage(cmd, true)
	},
}

func init() {
	for _, c := range []*cobra.Command{chatCmd, agentCmd} {
		c.Flags().StringVarP(&chatMessage, "message", "m", "", "Message to send")
		c.Flags().BoolVar(&chatJSON, "json", false, "Print the result as JSON")
	}
}

func runMessage(cmd *cobra.Command, forceAgent bool) error {
	if chatMessage == "" {
		return fmt.Errorf("--message is required")
	}
	rt, err := newRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	var res agent.MessageResult
	if forceAgent {
		res = rt.orchestrator.RunAgent(cmd.Context(), chatMessage)
	} else {
		res = rt.orchestrator.ProcessMessage(cmd.Context(), chatMessage)
	}
	return printMessageResult(cmd.OutOrStdout(), res, chatJSON)
}

func printMessageResult(w io.Writer, res agent.MessageResult, asJSON bool) error {
	if asJSON {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))
		return nil
	}
	if res.Action != nil {
		fmt.Fprintln(w, color.New(color.Faint).Sprintf("[%s] %s", res.Action.Type, res.Action.Reasoning))
	}
	if !res.Success {
		fmt.Fprintln(w, color.RedString("Error: %s", res.Error))
		return nil
	}
	fmt.Fprintln(w, res.Response)
	return nil
}
