package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nakamura-shuta/mcp-bookmark/internal/multiindex"
	"github.com/nakamura-shuta/mcp-bookmark/internal/query"
)

// newSearchCmd creates the "search" debug command: a read-only way to
// exercise the search path without going through either wire protocol.
func newSearchCmd() *cobra.Command {
	var (
		indexNames string
		folder     string
		domain     string
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a search against one or more indices and print the results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			names := []string{cfg.Data.DefaultIndexName}
			if indexNames != "" {
				names = strings.Split(indexNames, ",")
			}
			filters := query.Filters{FolderPath: folder, Domain: domain}
			return runSearch(cmd, names, args[0], filters, limit, jsonOutput)
		},
	}
	cmd.Flags().StringVar(&indexNames, "index", "", "comma-separated index names (defaults to the configured default index)")
	cmd.Flags().StringVar(&folder, "folder", "", "restrict to this folder path")
	cmd.Flags().StringVar(&domain, "domain", "", "restrict to this domain")
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum results")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func runSearch(cmd *cobra.Command, names []string, q string, filters query.Filters, limit int, jsonOutput bool) error {
	// requestID correlates this invocation's log lines the same way a
	// real RPC/MCP call would; this command has no caller-supplied id of
	// its own to reuse.
	requestID := uuid.NewString()

	indices, err := multiindex.New(cfg.Data.Dir)
	if err != nil {
		return fmt.Errorf("create index manager: %w", err)
	}
	defer indices.Close()

	results, err := indices.Search(cmd.Context(), names, q, filters, limit)
	if err != nil {
		return fmt.Errorf("search (request %s): %w", requestID, err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	for i, r := range results {
		fmt.Fprintf(out, "%d. %s\n   %s\n   score=%.3f %s\n", i+1, r.Title, r.URL, r.Score, r.Snippet)
	}
	if len(results) == 0 {
		fmt.Fprintln(out, "no results")
	}
	return nil
}
