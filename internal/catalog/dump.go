package catalog

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dustin/go-humanize"
)

// pathFilter reports whether a row with the given path should be included in
// a table dump. A nil pathFilter includes everything.
type pathFilter func(path string) bool

// globFilter compiles a doublestar `**`-aware glob pattern into a pathFilter.
// An empty pattern matches everything. A pattern that doublestar.Match
// rejects yields no filter and that error.
func globFilter(pattern string) (pathFilter, error) {
	if pattern == "" {
		return nil, nil
	}
	if _, err := doublestar.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid filter pattern %q: %w", pattern, err)
	}
	return func(path string) bool {
		ok, _ := doublestar.Match(pattern, path)
		return ok
	}, nil
}

// DumpTable writes a human-readable listing of one table to w, for the
// print command. size columns are rendered with humanize so a listing reads
// in KB/MB rather than raw byte counts.
func (s *Store) DumpTable(ctx context.Context, w io.Writer, table string) error {
	return s.DumpTableFiltered(ctx, w, table, "")
}

// DumpTableFiltered is DumpTable restricted to rows whose path matches the
// given doublestar glob pattern ("" matches everything). Duplicates and
// photos are filtered by their members'/owning file's path.
func (s *Store) DumpTableFiltered(ctx context.Context, w io.Writer, table, pattern string) error {
	filter, err := globFilter(pattern)
	if err != nil {
		return err
	}
	switch table {
	case TableDirs:
		return s.dumpDirs(ctx, w, filter)
	case TableFiles:
		return s.dumpFiles(ctx, w, filter)
	case TableDuplicates:
		return s.dumpDuplicates(ctx, w, filter)
	case TablePhotos:
		return s.dumpPhotos(ctx, w, filter)
	default:
		return fmt.Errorf("unknown table %q", table)
	}
}

func (s *Store) dumpDirs(ctx context.Context, w io.Writer, filter pathFilter) error {
	var dirs []Dir
	err := s.WithTx(ctx, func(tx *Tx) error {
		rows, err := tx.tx.Query(`SELECT * FROM dirs ORDER BY path`)
		if err != nil {
			return fmt.Errorf("failed to query dirs: %w", err)
		}
		dirs, err = scanAll[Dir](rows)
		return err
	})
	if err != nil {
		return err
	}
	shown := 0
	for _, d := range dirs {
		if filter != nil && !filter(d.Path) {
			continue
		}
		shown++
	}
	fmt.Fprintf(w, "dirs (%d)\n", shown)
	for _, d := range dirs {
		if filter != nil && !filter(d.Path) {
			continue
		}
		fmt.Fprintf(w, "  [%d] %s\tdepth=%d\thash=%s\tduplicate_id=%s\n",
			d.ID, d.Path, d.Depth, derefOr(d.Hash, "-"), derefInt64Or(d.DuplicateID, "-"))
	}
	return nil
}

func (s *Store) dumpFiles(ctx context.Context, w io.Writer, filter pathFilter) error {
	var files []File
	err := s.WithTx(ctx, func(tx *Tx) error {
		rows, err := tx.tx.Query(`SELECT * FROM files ORDER BY path`)
		if err != nil {
			return fmt.Errorf("failed to query files: %w", err)
		}
		files, err = scanAll[File](rows)
		return err
	})
	if err != nil {
		return err
	}
	shown := 0
	for _, f := range files {
		if filter != nil && !filter(f.Path) {
			continue
		}
		shown++
	}
	fmt.Fprintf(w, "files (%d)\n", shown)
	for _, f := range files {
		if filter != nil && !filter(f.Path) {
			continue
		}
		fmt.Fprintf(w, "  [%d] %s\t%s\tpartial=%s\tcomplete=%s\tduplicate_id=%s\n",
			f.ID, f.Path, humanize.Bytes(uint64(f.Size)),
			derefOr(f.PartialHash, "-"), derefOr(f.CompleteHash, "-"), derefInt64Or(f.DuplicateID, "-"))
	}
	return nil
}

func (s *Store) dumpDuplicates(ctx context.Context, w io.Writer, filter pathFilter) error {
	var dups []Duplicate
	err := s.WithTx(ctx, func(tx *Tx) error {
		rows, err := tx.tx.Query(`SELECT * FROM duplicates ORDER BY id`)
		if err != nil {
			return fmt.Errorf("failed to query duplicates: %w", err)
		}
		dups, err = scanAll[Duplicate](rows)
		return err
	})
	if err != nil {
		return err
	}

	type row struct {
		d       Duplicate
		members []string
	}
	var rows []row
	for _, d := range dups {
		members, err := s.dumpDuplicateMembers(ctx, d)
		if err != nil {
			return err
		}
		if filter != nil {
			kept := members[:0]
			for _, m := range members {
				if filter(m) {
					kept = append(kept, m)
				}
			}
			if len(kept) == 0 {
				continue
			}
			members = kept
		}
		rows = append(rows, row{d: d, members: members})
	}

	fmt.Fprintf(w, "duplicates (%d)\n", len(rows))
	for _, r := range rows {
		fmt.Fprintf(w, "  [%d] type=%s members=%s\n", r.d.ID, r.d.Type, strings.Join(r.members, ", "))
	}
	return nil
}

func (s *Store) dumpDuplicateMembers(ctx context.Context, d Duplicate) ([]string, error) {
	var members []string
	err := s.WithTx(ctx, func(tx *Tx) error {
		switch d.Type {
		case DuplicateTypeDir:
			dirs, err := tx.DirsByDuplicateID(d.ID)
			if err != nil {
				return err
			}
			for _, dd := range dirs {
				members = append(members, dd.Path)
			}
		case DuplicateTypeFile:
			files, err := tx.FilesByDuplicateID(d.ID)
			if err != nil {
				return err
			}
			for _, f := range files {
				members = append(members, f.Path)
			}
		}
		return nil
	})
	return members, err
}

func (s *Store) dumpPhotos(ctx context.Context, w io.Writer, filter pathFilter) error {
	type row struct {
		p    Photo
		path string
	}
	var rows []row
	err := s.WithTx(ctx, func(tx *Tx) error {
		result, err := tx.tx.Query(`SELECT * FROM photos ORDER BY file_id`)
		if err != nil {
			return fmt.Errorf("failed to query photos: %w", err)
		}
		photos, err := scanAll[Photo](result)
		if err != nil {
			return err
		}
		for _, p := range photos {
			f, found, err := tx.GetFileByID(p.FileID)
			if err != nil {
				return err
			}
			path := ""
			if found {
				path = f.Path
			}
			if filter != nil && !filter(path) {
				continue
			}
			rows = append(rows, row{p: p, path: path})
		}
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "photos (%d)\n", len(rows))
	for _, r := range rows {
		fmt.Fprintf(w, "  [%d] file_id=%d path=%s image_hash=%s\n", r.p.ID, r.p.FileID, r.path, derefOr(r.p.ImageHash, "-"))
	}
	return nil
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}

func derefInt64Or(v *int64, fallback string) string {
	if v == nil {
		return fallback
	}
	return fmt.Sprintf("%d", *v)
}
