package cli

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kortex/kortex/internal/mcpserver"
	"github.com/kortex/kortex/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rt, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-hup:
					if err := rt.catalog.Reload(ctx); err != nil {
						slog.Warn("Skill index reload failed", "error", err)
					}
				}
			}
		}()

		addr := fmt.Sprintf("%s:%d", rt.cfg.Server.Host, rt.cfg.Server.Port)
		fmt.Fprintf(cmd.OutOrStdout(), "API server listening on http://%s\n", addr)
		return server.New(rt.orchestrator, server.Options{
			Addr:      addr,
			AuthToken: rt.cfg.Server.AuthToken,
			Version:   version,
		}).ListenAndServe(ctx)
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the tools over MCP on stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()
		return mcpserver.New("kortex", version, rt.mcpTools, rt.catalog).ServeStdio()
	},
}
