// Package hash provides the "hash" command: the standalone hash phase over
// an already-scanned catalog (§2, §4.E, §9 Open Question #3).
package hash

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yyrliu/dedupler-go/internal/catalog"
	"github.com/yyrliu/dedupler-go/internal/duplicate"
	"github.com/yyrliu/dedupler-go/internal/logger"
	"github.com/yyrliu/dedupler-go/internal/scan"

	"github.com/yyrliu/dedupler-go/cmd"
)

var (
	recursive    bool
	forceReindex bool
)

// hashCmd represents the standalone hash command: it does not walk the
// filesystem at all, it only reads Dir/File rows already inserted by a
// prior "scan" run and fingerprints whatever hasn't been fingerprinted yet.
var hashCmd = &cobra.Command{
	Use:   "hash",
	Short: "Run the hash phase standalone over an already-scanned catalog",
	Long: `hash iterates every root Dir already recorded in the catalog and fingerprints any
File that has not been fingerprinted yet, folding the resulting hashes bottom-up into
each directory's hash. It is the second of the two permitted scan/hash orderings
(scan-then-hash): run "dedup scan" to populate the catalog, then "dedup hash"
separately, or re-run it with --force-reindex to refresh every fingerprint after the
underlying files changed on disk.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, err := cmd.Flags().GetString("db")
		if err != nil {
			return fmt.Errorf("failed to read --db flag: %w", err)
		}

		log := logger.With("command", "hash", "db", dbPath)
		log.Info("opening catalog")

		store, err := catalog.Open(dbPath, false)
		if err != nil {
			return fmt.Errorf("failed to open catalog %q: %w", dbPath, err)
		}
		defer store.Close()

		ctx := context.Background()
		var roots []catalog.Dir
		err = store.WithTx(ctx, func(tx *catalog.Tx) error {
			var err error
			roots, err = tx.GetAllRootDirs()
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to list root dirs: %w", err)
		}
		if len(roots) == 0 {
			return &scan.NoRootDirError{}
		}

		ix := scan.New(store, duplicate.New(store), nil, log)
		for _, root := range roots {
			log.Info("hashing root", "path", root.Path, "recursive", recursive, "force_reindex", forceReindex)
			if err := ix.HashDir(ctx, root, recursive, forceReindex); err != nil {
				log.Error("hash phase failed", "path", root.Path, "error", err)
				return err
			}
		}

		log.Info("hash phase completed", "roots", len(roots))
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "hashed %d root(s) from %s\n", len(roots), dbPath); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	},
}

func init() {
	hashCmd.Flags().BoolVarP(&recursive, "recursive", "r", true, "Hash every file in each root's subtree, not just its immediate children")
	hashCmd.Flags().BoolVar(&forceReindex, "force-reindex", false, "Recompute fingerprints even for files that already have a partial hash")

	cmd.Register(hashCmd)
}
