package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nakamura-shuta/mcp-bookmark/internal/contentfetch"
	"github.com/nakamura-shuta/mcp-bookmark/internal/logging"
	"github.com/nakamura-shuta/mcp-bookmark/internal/rpc"
)

// newServeCmd creates the "serve" command: the ingestion-side JSON-RPC
// loop the browser extension's native-messaging host drives.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the length-prefixed JSON-RPC ingestion server over stdio",
		Long: `serve reads length-prefixed JSON-RPC requests from stdin and writes
length-prefixed responses to stdout, the framing the browser extension's
native-messaging host speaks. Nothing but that framed stream may touch
stdout once this command starts.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cleanup, err := logging.SetupMCPModeWithLevel(cfg.Server.LogLevel)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer cleanup()

	service, err := rpc.NewService(cfg.Data.Dir)
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}
	if cfg.Search.ContentFetchTimeout > 0 {
		service.SetContentFetcher(contentfetch.New(cfg.Search.ContentFetchTimeout))
	}
	defer func() {
		if err := service.Close(); err != nil {
			slog.Error("service_close_failed", slog.String("error", err.Error()))
		}
	}()

	slog.Info("serve started", slog.String("data_dir", cfg.Data.Dir))
	server := rpc.NewServer(os.Stdin, os.Stdout, service)
	if err := server.Serve(cmd.Context()); err != nil {
		slog.Error("serve stopped with error", slog.String("error", err.Error()))
		return err
	}
	slog.Info("serve stopped")
	return nil
}
