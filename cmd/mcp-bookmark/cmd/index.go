package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/nakamura-shuta/mcp-bookmark/internal/multiindex"
)

// newIndexCmd creates the "index" command group.
func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Inspect indices on disk",
	}
	cmd.AddCommand(newIndexInfoCmd())
	return cmd
}

func newIndexInfoCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "info [name]",
		Short: "Show size and document count for one or every index",
		Long: `info lists every index under the configured data directory, or just the
named one, with its on-disk size and document count.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var name string
			if len(args) > 0 {
				name = args[0]
			}
			return runIndexInfo(cmd, name, jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

type indexSummary struct {
	Name     string  `json:"name"`
	SizeMB   float64 `json:"size_mb"`
	DocCount uint64  `json:"doc_count"`
}

func runIndexInfo(cmd *cobra.Command, name string, jsonOutput bool) error {
	indices, err := multiindex.New(cfg.Data.Dir)
	if err != nil {
		return fmt.Errorf("create index manager: %w", err)
	}
	defer indices.Close()

	names := []string{name}
	if name == "" {
		names, err = indices.ListIndexes()
		if err != nil {
			return fmt.Errorf("list indexes: %w", err)
		}
	}

	summaries := make([]indexSummary, 0, len(names))
	for _, n := range names {
		size, docCount, err := indices.Stat(n)
		if err != nil {
			return fmt.Errorf("stat index %q: %w", n, err)
		}
		summaries = append(summaries, indexSummary{Name: n, SizeMB: float64(size) / (1024 * 1024), DocCount: docCount})
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	}

	plain := !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd())
	for _, s := range summaries {
		if plain {
			fmt.Fprintf(out, "%s\t%.2fMB\t%d docs\n", s.Name, s.SizeMB, s.DocCount)
			continue
		}
		fmt.Fprintf(out, "%-20s %8.2f MB  %8d docs\n", s.Name, s.SizeMB, s.DocCount)
	}
	if len(summaries) == 0 {
		fmt.Fprintln(out, "no indexes found")
	}
	return nil
}
