package catalog

// Dir is a directory node. ParentDir is nil for a root of one tree. Hash is
// nil until computed. DuplicateID is nil unless this dir belongs to a
// duplicate-dir group.
type Dir struct {
	ID          int64   `db:"id"`
	Path        string  `db:"path"`
	ParentDir   *int64  `db:"parent_dir"`
	Depth       int     `db:"depth"`
	Hash        *string `db:"hash"`
	DuplicateID *int64  `db:"duplicate_id"`
}

// File is a regular file. ParentDir is always set. CompleteHash may be nil
// only for files of size >= 1024 whose partial hash has not collided.
type File struct {
	ID           int64   `db:"id"`
	Path         string  `db:"path"`
	Size         int64   `db:"size"`
	ParentDir    int64   `db:"parent_dir"`
	PartialHash  *string `db:"partial_hash"`
	CompleteHash *string `db:"complete_hash"`
	DuplicateID  *int64  `db:"duplicate_id"`
}

// DuplicateTypeFile and DuplicateTypeDir are the two Duplicate.Type values.
const (
	DuplicateTypeFile = "file"
	DuplicateTypeDir  = "dir"
)

// Duplicate is an equivalence class of either Files or Dirs, never both.
type Duplicate struct {
	ID   int64  `db:"id"`
	Type string `db:"type"`
}

// Photo is a perceptual-hash sidecar record for an image File.
type Photo struct {
	ID        int64          `db:"id"`
	FileID    int64          `db:"file_id"`
	ImageHash *string        `db:"image_hash"`
	DataJSON  map[string]any `db:"data_json"`
}

// TableDirs, TableFiles, TableDuplicates and TablePhotos are the catalog's
// four table names, used both by the schema and by print/dump commands.
const (
	TableDirs       = "dirs"
	TableFiles      = "files"
	TableDuplicates = "duplicates"
	TablePhotos     = "photos"
)

// AllTables lists every table name, in a stable order, for "print all".
var AllTables = []string{TableDirs, TableFiles, TableDuplicates, TablePhotos}
