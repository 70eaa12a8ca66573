package diff

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mizuchilabs/sqlite-ddl/pkg/parser"
)

// ApplyOptions configures how changes are applied
type ApplyOptions struct {
	DryRun          bool
	SkipDestructive bool
	Backup          bool // Copy the database to <path>.backup first
	ShowChanges     bool // Print the changes before applying them
}

// ErrForeignKeyViolation is returned when a migration leaves rows that
// reference missing parents
var ErrForeignKeyViolation = errors.New("migration would create foreign key violations")

// Apply brings the database at dbPath in line with the schema directory
func Apply(dbPath, schemaDir string, opts ApplyOptions) error {
	changes, err := Compare(dbPath, schemaDir)
	if err != nil {
		return err
	}

	// Filter out destructive if requested
	if opts.SkipDestructive {
		skipped := len(changes)
		changes = FilterDestructive(changes)
		if skipped -= len(changes); skipped > 0 {
			slog.Warn("skipping destructive changes", "count", skipped)
		}
	}

	if opts.ShowChanges {
		ShowChanges(changes)
	}
	if opts.DryRun || len(changes) == 0 {
		return nil
	}

	db, err := parser.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if opts.Backup {
		if err := backup(db, dbPath+".backup"); err != nil {
			return err
		}
	}

	return ApplyChanges(db, changes)
}

// backup writes a consistent copy of the database to path
func backup(db *sql.DB, path string) error {
	_ = os.Remove(path)                             // Ignore error if doesn't exist
	safePath := strings.ReplaceAll(path, "'", "''") // Escape single quotes for SQL
	if _, err := db.Exec(fmt.Sprintf("VACUUM INTO '%s'", safePath)); err != nil {
		return fmt.Errorf("create backup: %w", err)
	}

	var size string
	if info, err := os.Stat(path); err == nil {
		size = humanize.Bytes(uint64(info.Size()))
	}
	slog.Info("database backed up", "path", path, "size", size)
	return nil
}

// ApplyChanges executes changes in a single transaction with foreign keys
// disabled, and rolls back if the result violates a foreign key
func ApplyChanges(db *sql.DB, changes []Change) error {
	ctx := context.Background()

	// PRAGMA foreign_keys is a no-op inside a transaction, so it is set on
	// the connection that runs it
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer func() {
		_ = conn.Close()
	}()

	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return fmt.Errorf("disable foreign keys: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(ctx, "PRAGMA foreign_keys = ON")
	}()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, change := range changes {
		slog.Debug("applying change", "type", change.Type, "object", change.Object)
		for _, stmt := range change.SQL {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" || strings.HasPrefix(stmt, "--") {
				continue
			}
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("%s: %w\nSQL: %s", change.Description, err, stmt)
			}
		}
	}

	// Check for FK violations before committing
	rows, err := tx.QueryContext(ctx, "PRAGMA foreign_key_check")
	if err != nil {
		return fmt.Errorf("foreign key check: %w", err)
	}
	hasViolations := rows.Next()
	_ = rows.Close()
	if hasViolations {
		return ErrForeignKeyViolation
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.Info("schema changes applied", "count", len(changes))
	return nil
}
