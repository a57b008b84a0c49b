package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nakamura-shuta/mcp-bookmark/internal/logging"
	"github.com/nakamura-shuta/mcp-bookmark/internal/mcpadapter"
	"github.com/nakamura-shuta/mcp-bookmark/internal/multiindex"
)

// newMCPCmd creates the "mcp" command: the peripheral tool-adapter surface
// an agent (Claude Code, Cursor, etc.) talks to over the MCP stdio
// transport, independent of the ingestion protocol "serve" speaks.
func newMCPCmd() *cobra.Command {
	var indexNames string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP search tool adapter over stdio",
		Long: `mcp exposes search/search_advanced/get_content_by_url/list_folders as
MCP tools backed by the bookmark index, for an agent to call directly.
Like "serve", it owns stdout exclusively for its protocol.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMCP(cmd, indexNames)
		},
	}
	cmd.Flags().StringVar(&indexNames, "index", "", "comma-separated index names to search by default (defaults to the configured default index)")
	return cmd
}

func runMCP(cmd *cobra.Command, indexNamesFlag string) error {
	cleanup, err := logging.SetupMCPModeWithLevel(cfg.Server.LogLevel)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer cleanup()

	names := []string{cfg.Data.DefaultIndexName}
	if indexNamesFlag != "" {
		names = strings.Split(indexNamesFlag, ",")
	}

	indices, err := multiindex.New(cfg.Data.Dir)
	if err != nil {
		return fmt.Errorf("create index manager: %w", err)
	}
	defer func() {
		if err := indices.Close(); err != nil {
			slog.Error("index_manager_close_failed", slog.String("error", err.Error()))
		}
	}()

	server, err := mcpadapter.New(indices, names)
	if err != nil {
		return fmt.Errorf("create mcp adapter: %w", err)
	}
	return server.Serve(cmd.Context())
}
