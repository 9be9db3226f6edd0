package catalog

// schemaStatements is executed, one statement at a time, outside any user
// transaction — DDL auto-commits in sqlite, and §4.C requires initialization
// to happen before the store begins serving transactional operations.
var schemaStatements = []string{
	`DROP TABLE IF EXISTS photos`,
	`DROP TABLE IF EXISTS files`,
	`DROP TABLE IF EXISTS dirs`,
	`DROP TABLE IF EXISTS duplicates`,

	`CREATE TABLE duplicates (
		id   INTEGER PRIMARY KEY AUTOINCREMENT,
		type TEXT NOT NULL CHECK (type IN ('file', 'dir'))
	)`,

	`CREATE TABLE dirs (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		path         TEXT NOT NULL UNIQUE,
		parent_dir   INTEGER REFERENCES dirs(id),
		depth        INTEGER NOT NULL CHECK (depth >= 0),
		hash         TEXT,
		duplicate_id INTEGER REFERENCES duplicates(id)
	)`,

	`CREATE TABLE files (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		path          TEXT NOT NULL UNIQUE,
		size          INTEGER NOT NULL CHECK (size >= 0),
		parent_dir    INTEGER NOT NULL REFERENCES dirs(id),
		partial_hash  TEXT,
		complete_hash TEXT,
		duplicate_id  INTEGER REFERENCES duplicates(id)
	)`,

	`CREATE TABLE photos (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		file_id    INTEGER NOT NULL REFERENCES files(id),
		image_hash TEXT,
		data_json  TEXT
	)`,

	`CREATE INDEX idx_files_parent_dir   ON files (parent_dir)`,
	`CREATE INDEX idx_files_partial_hash ON files (partial_hash)`,
	`CREATE INDEX idx_files_complete_hash ON files (complete_hash)`,
	`CREATE INDEX idx_files_duplicate_id ON files (duplicate_id)`,
	`CREATE INDEX idx_dirs_hash          ON dirs (hash)`,
	`CREATE INDEX idx_dirs_duplicate_id  ON dirs (duplicate_id)`,
	`CREATE INDEX idx_photos_file_id     ON photos (file_id)`,
	`CREATE INDEX idx_photos_image_hash  ON photos (image_hash)`,
}
