// Package print provides the "print" command: dump one or more catalog
// tables without running a scan (§6).
package print

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yyrliu/dedupler-go/internal/catalog"

	"github.com/yyrliu/dedupler-go/cmd"
)

var filterPattern string

// printCmd represents the print command: dump named tables (or all of them)
// from an existing catalog to stdout.
var printCmd = &cobra.Command{
	Use:   "print [tables...]",
	Short: "Dump catalog tables",
	Long: `print dumps one or more catalog tables to stdout. With no arguments, or with
"all", it dumps dirs, files, duplicates, and photos in that order.`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, err := cmd.Flags().GetString("db")
		if err != nil {
			return fmt.Errorf("failed to read --db flag: %w", err)
		}

		tables := args
		if len(tables) == 0 || (len(tables) == 1 && tables[0] == "all") {
			tables = catalog.AllTables
		}

		store, err := catalog.Open(dbPath, false)
		if err != nil {
			return fmt.Errorf("failed to open catalog %q: %w", dbPath, err)
		}
		defer store.Close()

		ctx := context.Background()
		for _, table := range tables {
			if err := store.DumpTableFiltered(ctx, cmd.OutOrStdout(), table, filterPattern); err != nil {
				return fmt.Errorf("failed to print table %q: %w", table, err)
			}
		}
		return nil
	},
}

func init() {
	printCmd.Flags().StringVar(&filterPattern, "filter", "", "Only dump rows whose path matches this doublestar glob pattern (e.g. '**/*.jpg')")

	cmd.Register(printCmd)
}
