// Package cmd provides the CLI commands for mcp-bookmark.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nakamura-shuta/mcp-bookmark/internal/config"
	"github.com/nakamura-shuta/mcp-bookmark/internal/logging"
	"github.com/nakamura-shuta/mcp-bookmark/pkg/version"
)

var (
	dataDirFlag string
	debugMode   bool
	cfg         *config.Config
)

// NewRootCmd creates the root command for the mcp-bookmark CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mcp-bookmark",
		Short: "Full-text search over indexed browser bookmarks",
		Long: `mcp-bookmark indexes browser bookmarks and their page content for
full-text search, and serves that index two ways: a length-prefixed
JSON-RPC stream for the browser extension's ingestion protocol ("serve"),
and an MCP tool surface for AI coding agents ("mcp").`,
		Version:           version.Version,
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
	}
	root.SetVersionTemplate("mcp-bookmark version {{.Version}}\n")

	root.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "index root directory (overrides config and MCP_BOOKMARK_DATA_DIR)")
	root.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging to "+logging.DefaultLogDir())

	root.AddCommand(newServeCmd())
	root.AddCommand(newMCPCmd())
	root.AddCommand(newIndexCmd())
	root.AddCommand(newSearchCmd())
	root.AddCommand(newVersionCmd())

	return root
}

// loadConfig builds the effective configuration once per invocation,
// applying --data-dir on top of the usual file/env layering, and sets up
// file+stderr logging. "serve" and "mcp" replace this with SetupMCPMode
// before they start their stdio loops, since those two own stdout (and,
// to be safe, stderr) exclusively for their wire protocols.
func loadConfig(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if dataDirFlag != "" {
		loaded.Data.Dir = dataDirFlag
	}
	cfg = loaded

	logCfg := logging.DefaultConfig()
	if debugMode {
		logCfg = logging.DebugConfig()
	} else if cfg.Server.LogLevel != "" {
		logCfg.Level = cfg.Server.LogLevel
	}

	logger, _, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	slog.SetDefault(logger)

	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
