// Package scan provides the "scan" command: the primary entry point that
// drives a full scan-and-hash pass over one or more directory trees into the
// catalog store (§2, §4.E, §6).
package scan

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yyrliu/dedupler-go/internal/catalog"
	"github.com/yyrliu/dedupler-go/internal/duplicate"
	"github.com/yyrliu/dedupler-go/internal/ignore"
	"github.com/yyrliu/dedupler-go/internal/logger"
	"github.com/yyrliu/dedupler-go/internal/scan"

	"github.com/yyrliu/dedupler-go/cmd"
)

var (
	force            bool
	printTables      []string
	browse           bool
	excludePatterns  []string
	customIgnoreFile string
)

// scanCmd represents the scan command: walk one or more root paths, insert
// shell rows for every directory and file discovered, and fingerprint them
// inline as they are discovered.
var scanCmd = &cobra.Command{
	Use:   "scan <path> [paths...]",
	Short: "Scan one or more directory trees into the catalog, fingerprinting files as it goes",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, err := cmd.Flags().GetString("db")
		if err != nil {
			return fmt.Errorf("failed to read --db flag: %w", err)
		}

		runID := uuid.New()
		log := logger.With("command", "scan", "run_id", runID.String(), "db", dbPath)

		store, err := catalog.Open(dbPath, force)
		if err != nil {
			return fmt.Errorf("failed to open catalog %q: %w", dbPath, err)
		}
		defer store.Close()

		matcher, err := ignore.NewMatcher(excludePatterns, args[0], true, customIgnoreFile)
		if err != nil {
			return fmt.Errorf("failed to build exclusion matcher: %w", err)
		}

		ix := scan.New(store, duplicate.New(store), matcher, log)
		ctx := context.Background()

		for _, root := range args {
			log.Info("scanning", "path", root)
			if err := ix.Scan(ctx, root); err != nil {
				log.Error("scan failed", "path", root, "error", err)
				return err
			}
		}
		log.Info("scan completed", "roots", len(args))

		for _, table := range printTables {
			if err := store.DumpTable(ctx, cmd.OutOrStdout(), table); err != nil {
				return fmt.Errorf("failed to print table %q: %w", table, err)
			}
		}

		if browse {
			browseStore(log, cmd, dbPath)
		}

		return nil
	},
}

// browseStore shells out to the sqlite3 CLI, if present on PATH, to let the
// operator poke at the catalog interactively. Its absence is a warning, not
// a scan failure — the scan already succeeded and committed.
func browseStore(log interface{ Warn(string, ...any) }, cmd *cobra.Command, dbPath string) {
	sqlite3, err := exec.LookPath("sqlite3")
	if err != nil {
		log.Warn("sqlite3 not found on PATH; skipping --browse", "error", err)
		return
	}
	c := exec.Command(sqlite3, dbPath)
	c.Stdin = os.Stdin
	c.Stdout = cmd.OutOrStdout()
	c.Stderr = cmd.ErrOrStderr()
	if err := c.Run(); err != nil {
		log.Warn("sqlite3 browser exited with an error", "error", err)
	}
}

func init() {
	scanCmd.Flags().BoolVarP(&force, "force", "f", false, "Drop and recreate the catalog before scanning")
	scanCmd.Flags().StringArrayVarP(&printTables, "print", "p", nil, "Dump the named table(s) after the scan completes. Can be specified multiple times.")
	scanCmd.Flags().BoolVarP(&browse, "browse", "b", false, "Launch the sqlite3 CLI against the catalog after the scan completes")
	scanCmd.Flags().StringArrayVarP(&excludePatterns, "exclude", "e", nil, "Exclude patterns (e.g., 'node_modules', '.git'). Can be specified multiple times.")
	scanCmd.Flags().StringVarP(&customIgnoreFile, "ignore-file", "i", "", "Path to a custom ignore file, combined with the --exclude patterns. .mtcignore and .gitignore are always loaded automatically from the working directory and its parent directories.")

	cmd.Register(scanCmd)
}
