package database

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"
)

// Schema filename convention: YYYYMMDD_HHMMSS_description.sql
const schemaFilenameParts = 3

// SchemaFile is one versioned DDL script.
type SchemaFile struct {
	// Version is the YYYYMMDD_HHMMSS prefix of the filename.
	Version string
	Name    string
	SQL     string
}

// AppliedSchema is a row in schema_migrations.
type AppliedSchema struct {
	Version   string
	AppliedAt time.Time
}

// EnsureSchema applies every not-yet-applied *.sql file found at the root of
// fsys, oldest version first, each in its own transaction.
//
// Scripts are expected to be written with CREATE ... IF NOT EXISTS so a
// store provisioned by hand is accepted as-is. There is no down path: the
// telemetry tables are created if absent and never evolved in place.
func (db *DB) EnsureSchema(ctx context.Context, fsys fs.FS) error {
	if err := db.createSchemaTable(ctx); err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	files, err := LoadSchemaFiles(fsys)
	if err != nil {
		return fmt.Errorf("loading schema files: %w", err)
	}

	applied, err := db.AppliedSchemas(ctx)
	if err != nil {
		return err
	}
	done := make(map[string]bool, len(applied))
	for _, a := range applied {
		done[a.Version] = true
	}

	for _, f := range files {
		if done[f.Version] {
			continue
		}
		if err := db.applySchema(ctx, f); err != nil {
			return fmt.Errorf("applying schema %s (%s): %w", f.Version, f.Name, err)
		}
	}
	return nil
}

// AppliedSchemas lists recorded schema versions, oldest first.
func (db *DB) AppliedSchemas(ctx context.Context) ([]AppliedSchema, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT version, applied_at FROM schema_migrations ORDER BY version",
	)
	if err != nil {
		return nil, fmt.Errorf("querying schema_migrations: %w", err)
	}
	defer rows.Close()

	var out []AppliedSchema
	for rows.Next() {
		var a AppliedSchema
		var appliedAt string
		if err := rows.Scan(&a.Version, &appliedAt); err != nil {
			return nil, fmt.Errorf("scanning schema row: %w", err)
		}
		a.AppliedAt, _ = time.Parse(time.RFC3339, appliedAt) //nolint:errcheck // Format is controlled
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating schema rows: %w", err)
	}
	return out, nil
}

func (db *DB) createSchemaTable(ctx context.Context) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`)
	return err
}

func (db *DB) applySchema(ctx context.Context, f SchemaFile) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if _, err := tx.ExecContext(ctx, f.SQL); err != nil {
		return fmt.Errorf("executing SQL: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
		f.Version,
		time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("recording schema version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing schema: %w", err)
	}
	return nil
}

// LoadSchemaFiles reads the versioned *.sql files at the root of fsys.
// Files not following the naming convention are skipped.
func LoadSchemaFiles(fsys fs.FS) ([]SchemaFile, error) {
	if fsys == nil {
		return nil, nil
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("reading schema directory: %w", err)
	}

	var files []SchemaFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version, name, ok := parseSchemaFilename(entry.Name())
		if !ok {
			continue
		}
		data, err := fs.ReadFile(fsys, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}
		files = append(files, SchemaFile{Version: version, Name: name, SQL: string(data)})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Version < files[j].Version
	})
	return files, nil
}

// parseSchemaFilename splits "20260601_120000_initial_schema.sql" into
// version "20260601_120000" and name "initial_schema".
func parseSchemaFilename(filename string) (version, name string, ok bool) {
	if !strings.HasSuffix(filename, ".sql") {
		return "", "", false
	}
	base := strings.TrimSuffix(filename, ".sql")

	parts := strings.SplitN(base, "_", schemaFilenameParts)
	if len(parts) != schemaFilenameParts || len(parts[0]) != 8 || len(parts[1]) != 6 || parts[2] == "" {
		return "", "", false
	}
	return parts[0] + "_" + parts[1], parts[2], true
}
