package schema

import "strings"

// ReferentialAction is the action taken on a referencing row when the
// referenced row is deleted or updated
type ReferentialAction string

const (
	NoAction   ReferentialAction = "NO ACTION"
	Restrict   ReferentialAction = "RESTRICT"
	SetNull    ReferentialAction = "SET NULL"
	SetDefault ReferentialAction = "SET DEFAULT"
	Cascade    ReferentialAction = "CASCADE"
)

// ParseReferentialAction maps the SQL spelling of an action to its constant.
// The match is case-insensitive and tolerates repeated whitespace.
func ParseReferentialAction(s string) (ReferentialAction, bool) {
	switch strings.ToUpper(strings.Join(strings.Fields(s), " ")) {
	case "NO ACTION":
		return NoAction, true
	case "RESTRICT":
		return Restrict, true
	case "SET NULL":
		return SetNull, true
	case "SET DEFAULT":
		return SetDefault, true
	case "CASCADE":
		return Cascade, true
	}
	return "", false
}

// IndexedColumn is a column reference inside a key constraint
type IndexedColumn struct {
	Name       string
	Descending bool
}

// PrimaryKeyConstraint is the single primary key of a table
type PrimaryKeyConstraint struct {
	Name    string
	Columns []IndexedColumn
}

// ColumnNames returns the key's column names in key order
func (c *PrimaryKeyConstraint) ColumnNames() []string {
	return indexedNames(c.Columns)
}

// UniqueConstraint is a UNIQUE constraint over one or more columns
type UniqueConstraint struct {
	Name    string
	Columns []IndexedColumn
}

// ColumnNames returns the constraint's column names in order
func (c *UniqueConstraint) ColumnNames() []string {
	return indexedNames(c.Columns)
}

// CheckConstraint holds a CHECK expression. Column is empty for
// table-level checks.
type CheckConstraint struct {
	Name       string
	Column     string
	Expression string
}

// DefaultConstraint holds the default expression of one column
type DefaultConstraint struct {
	Name       string
	Column     string
	Expression string
}

// ForeignKeyConstraint links local columns to columns of another table.
// An empty ReferencedColumns list targets the referenced table's primary key.
type ForeignKeyConstraint struct {
	Name              string
	Columns           []string
	ReferencedTable   string
	ReferencedColumns []string
	OnDelete          ReferentialAction
	OnUpdate          ReferentialAction
}

func indexedNames(cols []IndexedColumn) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}
