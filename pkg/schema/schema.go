// Package schema provides types for representing SQLite database schemas
package schema

import "strings"

// Database represents a complete SQLite database schema
type Database struct {
	Tables   map[string]*Table
	Indexes  map[string]*Index
	Views    map[string]*View
	Triggers map[string]*Trigger
}

// NewDatabase creates a new empty database schema
func NewDatabase() *Database {
	return &Database{
		Tables:   make(map[string]*Table),
		Indexes:  make(map[string]*Index),
		Views:    make(map[string]*View),
		Triggers: make(map[string]*Trigger),
	}
}

// Table represents a table recovered from its CREATE TABLE statement.
// Constraints refer to columns by name; the table owns every column and
// constraint value.
type Table struct {
	Name    string
	Columns []Column
	SQL     string // Original CREATE TABLE statement

	PrimaryKey  *PrimaryKeyConstraint
	Uniques     []UniqueConstraint
	Checks      []CheckConstraint
	Defaults    []DefaultConstraint
	ForeignKeys []ForeignKeyConstraint

	WithoutRowID bool
	Strict       bool
}

// NewTable creates an empty table with the given name
func NewTable(name string) *Table {
	return &Table{Name: name}
}

// Column represents a table column
type Column struct {
	Name string
	Type DataType
	// RawType is the type name as declared, e.g. "VARCHAR" or "UNSIGNED BIG INT".
	RawType string

	// Length is -1 for text types declared without an explicit length.
	Length    int
	Precision int
	Scale     int

	NotNull       bool
	PrimaryKey    bool
	Unique        bool
	AutoIncrement bool
	ForeignKey    bool

	Default   *string
	Check     string
	Collation string

	Generated       string
	GeneratedStored bool

	References *Reference
}

// NewColumn creates a nullable column with the given name and types
func NewColumn(name, rawType string, dt DataType) Column {
	return Column{Name: name, RawType: rawType, Type: dt}
}

// Reference is the denormalized foreign-key target of a single column
type Reference struct {
	Table    string
	Column   string
	OnDelete ReferentialAction
	OnUpdate ReferentialAction
}

// Index represents a SQLite index
type Index struct {
	Name  string
	Table string
	SQL   string
}

// View represents a SQLite view
type View struct {
	Name string
	SQL  string
}

// Trigger represents a SQLite trigger
type Trigger struct {
	Name  string
	Table string
	SQL   string
}

// ColumnNames returns the column names for a table
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// HasColumn checks if a table has a column by name.
// SQLite identifiers are case-insensitive, so is the lookup.
func (t *Table) HasColumn(name string) bool {
	return t.GetColumn(name) != nil
}

// GetColumn returns a column by name, or nil if not found
func (t *Table) GetColumn(name string) *Column {
	if name == "" {
		return nil
	}
	for i := range t.Columns {
		if strings.EqualFold(t.Columns[i].Name, name) {
			return &t.Columns[i]
		}
	}
	return nil
}

// AddColumn appends a column and returns a pointer to the stored copy
func (t *Table) AddColumn(c Column) *Column {
	t.Columns = append(t.Columns, c)
	return &t.Columns[len(t.Columns)-1]
}

// PrimaryKeyColumns returns the primary key column names in key order.
// Without a key constraint the flagged columns are used in table order.
func (t *Table) PrimaryKeyColumns() []string {
	if t.PrimaryKey != nil {
		return t.PrimaryKey.ColumnNames()
	}
	var names []string
	for _, c := range t.Columns {
		if c.PrimaryKey {
			names = append(names, c.Name)
		}
	}
	return names
}
