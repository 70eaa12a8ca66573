// Package parser loads SQLite schemas from databases and .sql files and
// recovers each table's structure from its CREATE TABLE statement
package parser

import (
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/mizuchilabs/sqlite-ddl/pkg/ddl"
	"github.com/mizuchilabs/sqlite-ddl/pkg/schema"
	"github.com/mizuchilabs/sqlite-ddl/pkg/types"
)

var (
	baseFS   fs.FS
	resolver ddl.TypeResolver = types.NewSQLite()
)

// SetBaseFS sets the base filesystem for reading schema files.
// Use an embed.FS to read from embedded files.
// Pass nil to revert to the OS filesystem.
func SetBaseFS(fsys fs.FS) {
	baseFS = fsys
}

func BaseFS() fs.FS {
	return baseFS
}

// SetTypeResolver sets the resolver used to map declared column types.
// Pass nil to revert to the default SQLite resolver.
func SetTypeResolver(r ddl.TypeResolver) {
	if r == nil {
		r = types.NewSQLite()
	}
	resolver = r
}

// TypeResolver returns the resolver used to map declared column types
func TypeResolver() ddl.TypeResolver {
	return resolver
}

// Open opens a SQLite database with the driver selected at build time
func Open(dataSourceName string) (*sql.DB, error) {
	return sql.Open(driverName, dataSourceName)
}

// DriverType returns "purego" for modernc.org/sqlite or "cgo" for mattn/go-sqlite3
func DriverType() string {
	return driverType
}

// FromDB extracts the schema from an open database connection
func FromDB(db *sql.DB) (*schema.Database, error) {
	return extractSchema(db)
}

// FromDatabase extracts the schema from an existing database file
func FromDatabase(path string) (*schema.Database, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db, err := Open(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()

	return extractSchema(db)
}

// FromSQL parses SQL by executing it against an in-memory SQLite database
func FromSQL(sqlContent string) (*schema.Database, error) {
	db, err := openMemory()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = db.Close()
	}()

	if _, err := db.Exec(sqlContent); err != nil {
		return nil, fmt.Errorf("execute schema SQL: %w", err)
	}

	return extractSchema(db)
}

// FromDirectory executes every .sql file below dir, in lexical path order,
// against an in-memory database and extracts the resulting schema
func FromDirectory(dir string) (*schema.Database, error) {
	var err error
	var files []string
	if baseFS != nil {
		files, err = fromFS(baseFS, dir)
	} else {
		files, err = fromDir(dir)
	}
	if err != nil {
		return nil, err
	}

	// Create the in-memory database once
	db, err := openMemory()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = db.Close()
	}()

	// Execute each file individually
	for _, path := range files {
		content, err := readFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			return nil, fmt.Errorf("execute %s: %w", filepath.Base(path), err)
		}
	}
	return extractSchema(db)
}

// openMemory opens a private in-memory database. Every pooled connection
// would see its own empty database, so the pool is held to one.
func openMemory() (*sql.DB, error) {
	db, err := Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("create in-memory database: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

func readFile(path string) ([]byte, error) {
	if baseFS != nil {
		return fs.ReadFile(baseFS, path)
	}
	return os.ReadFile(filepath.Clean(path))
}

// fromDir loads all .sql files from a directory
func fromDir(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(strings.ToLower(path), ".sql") {
			return err
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.Sort(files)
	return files, nil
}

// fromFS loads all .sql files from an fs.FS
func fromFS(fsys fs.FS, dir string) ([]string, error) {
	var files []string
	err := fs.WalkDir(fsys, dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(strings.ToLower(path), ".sql") {
			return err
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.Sort(files)
	return files, nil
}

// extractSchema extracts the complete schema from a database connection
func extractSchema(db *sql.DB) (*schema.Database, error) {
	s := schema.NewDatabase()

	if err := extractTables(db, s); err != nil {
		return nil, err
	}
	if err := extractIndexes(db, s); err != nil {
		return nil, err
	}
	if err := extractViews(db, s); err != nil {
		return nil, err
	}
	if err := extractTriggers(db, s); err != nil {
		return nil, err
	}

	return s, nil
}

func extractTables(db *sql.DB, s *schema.Database) error {
	// First pass: collect all table names and SQL
	// We must close this query before running nested queries (driver limitation)
	rows, err := db.Query(`
		SELECT name, sql FROM sqlite_master
		WHERE type='table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`)
	if err != nil {
		return err
	}

	type tableInfo struct {
		name string
		sql  string
	}
	var tables []tableInfo

	for rows.Next() {
		var ti tableInfo
		var sqlText sql.NullString
		if err := rows.Scan(&ti.name, &sqlText); err != nil {
			_ = rows.Close()
			return err
		}
		ti.sql = sqlText.String
		tables = append(tables, ti)
	}
	_ = rows.Close()

	if err := rows.Err(); err != nil {
		return err
	}

	// Second pass: parse each definition and cross-check it against the catalog
	for _, ti := range tables {
		catalog, err := tableInfoColumns(db, ti.name)
		if err != nil {
			return err
		}

		table := ddl.ParseCreateTable(ti.sql, resolver)
		if table == nil {
			slog.Warn("table definition not parsed, using catalog columns", "table", ti.name)
			table = &schema.Table{Name: ti.name, SQL: ti.sql, Columns: catalog}
		} else if missing := mergeCatalogColumns(table, catalog); len(missing) > 0 {
			slog.Warn("parsed columns differ from catalog, catalog columns merged",
				"table", ti.name,
				"missing", missing,
			)
		} else {
			slog.Debug("table parsed", "table", ti.name, "columns", len(table.Columns))
		}

		s.Tables[ti.name] = table
	}

	return nil
}

// mergeCatalogColumns adds the catalog columns the parsed definition lacks,
// each after the columns preceding it in the catalog, and returns their
// names. Parsed columns the catalog does not list, such as generated ones,
// are kept.
func mergeCatalogColumns(t *schema.Table, catalog []schema.Column) []string {
	var missing []string
	merged := make([]schema.Column, 0, len(t.Columns)+len(catalog))
	next := 0
	for _, cat := range catalog {
		idx := slices.IndexFunc(t.Columns, func(c schema.Column) bool {
			return strings.EqualFold(c.Name, cat.Name)
		})
		switch {
		case idx < 0:
			missing = append(missing, cat.Name)
			merged = append(merged, cat)
		case idx >= next:
			merged = append(merged, t.Columns[next:idx+1]...)
			next = idx + 1
		}
	}
	if len(missing) == 0 {
		return nil
	}
	t.Columns = append(merged, t.Columns[next:]...)
	return missing
}

// tableInfoColumns reads the columns SQLite reports for a table
func tableInfoColumns(db *sql.DB, table string) ([]schema.Column, error) {
	colRows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", ddl.QuoteIdent(table)))
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = colRows.Close()
	}()

	var cols []schema.Column
	for colRows.Next() {
		var cid int
		var cname, ctype string
		var notnull, pk int
		var dflt sql.NullString

		if err := colRows.Scan(&cid, &cname, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, err
		}

		dt, _ := resolver.ResolveType(ctype)
		col := schema.NewColumn(cname, ctype, dt)
		col.NotNull = notnull == 1
		col.PrimaryKey = pk > 0
		if dflt.Valid {
			col.Default = &dflt.String
		}
		cols = append(cols, col)
	}

	return cols, colRows.Err()
}

func extractIndexes(db *sql.DB, s *schema.Database) error {
	rows, err := db.Query(`
		SELECT name, tbl_name, sql FROM sqlite_master
		WHERE type='index' AND sql IS NOT NULL AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`)
	if err != nil {
		return err
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var name, table string
		var sqlText sql.NullString
		if err := rows.Scan(&name, &table, &sqlText); err != nil {
			return err
		}
		if !sqlText.Valid {
			continue
		}
		s.Indexes[name] = &schema.Index{Name: name, Table: table, SQL: sqlText.String}
	}

	return rows.Err()
}

func extractViews(db *sql.DB, s *schema.Database) error {
	rows, err := db.Query(`
		SELECT name, sql FROM sqlite_master WHERE type='view' ORDER BY name
	`)
	if err != nil {
		return err
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var name, sqlText string
		if err := rows.Scan(&name, &sqlText); err != nil {
			return err
		}
		s.Views[name] = &schema.View{Name: name, SQL: sqlText}
	}

	return rows.Err()
}

func extractTriggers(db *sql.DB, s *schema.Database) error {
	rows, err := db.Query(`
		SELECT name, tbl_name, sql FROM sqlite_master WHERE type='trigger' ORDER BY name
	`)
	if err != nil {
		return err
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var name, table, sqlText string
		if err := rows.Scan(&name, &table, &sqlText); err != nil {
			return err
		}
		s.Triggers[name] = &schema.Trigger{Name: name, Table: table, SQL: sqlText}
	}

	return rows.Err()
}
