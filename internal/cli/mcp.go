package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harun/ikigai/internal/daemon"
	"github.com/harun/ikigai/pkg/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the session tools over MCP on stdio",
	Long: `Serve the tool gateway catalogue (session data, résumés, skill
inference, job search) as MCP tools over stdin/stdout. Logs go to stderr.`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadRuntime()
	if err != nil {
		return err
	}
	defer log.Close()

	core, err := daemon.NewCore(cfg, log.GetZerolog())
	if err != nil {
		return fmt.Errorf("failed to initialize core modules: %w", err)
	}
	defer core.Close()

	srv, err := mcpserver.NewServer(mcpserver.Config{
		Name:    "ikigai",
		Version: daemon.Version,
		Logger:  log.GetZerolog(),
	}, core.Executor)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx)
}
