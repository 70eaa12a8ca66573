package ddl

import (
	"fmt"
	"strings"

	"github.com/mizuchilabs/sqlite-ddl/pkg/schema"
)

// QuoteIdent quotes a SQLite identifier with double quotes
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// RenderColumn renders a standalone column definition, including the
// column's own CHECK and REFERENCES clauses. It suits ALTER TABLE ADD COLUMN.
func RenderColumn(c schema.Column) string {
	var sb strings.Builder
	sb.WriteString(renderColumn(c))
	if c.PrimaryKey && c.AutoIncrement {
		sb.WriteString(" PRIMARY KEY AUTOINCREMENT")
	}
	if c.Default != nil {
		fmt.Fprintf(&sb, " DEFAULT %s", *c.Default)
	}
	if c.Check != "" {
		fmt.Fprintf(&sb, " CHECK (%s)", c.Check)
	}
	if ref := c.References; ref != nil {
		fmt.Fprintf(&sb, " REFERENCES %s", QuoteIdent(ref.Table))
		if ref.Column != "" {
			fmt.Fprintf(&sb, " (%s)", QuoteIdent(ref.Column))
		}
		sb.WriteString(renderActions(ref.OnDelete, ref.OnUpdate))
	}
	return sb.String()
}

// renderColumn renders the name, type and the unnamed column attributes
func renderColumn(c schema.Column) string {
	var sb strings.Builder
	sb.WriteString(QuoteIdent(c.Name))

	if typ := columnType(c); typ != "" {
		sb.WriteByte(' ')
		sb.WriteString(typ)
	}
	if c.NotNull {
		sb.WriteString(" NOT NULL")
	}
	if c.Collation != "" {
		fmt.Fprintf(&sb, " COLLATE %s", c.Collation)
	}
	if c.Generated != "" {
		fmt.Fprintf(&sb, " GENERATED ALWAYS AS (%s)", c.Generated)
		if c.GeneratedStored {
			sb.WriteString(" STORED")
		}
	}
	return sb.String()
}

func columnType(c schema.Column) string {
	typ := c.RawType
	if typ == "" {
		typ = c.Type.Name
	}
	if typ == "" {
		return ""
	}
	switch {
	case c.Precision > 0:
		return fmt.Sprintf("%s(%d, %d)", typ, c.Precision, c.Scale)
	case c.Length > 0:
		return fmt.Sprintf("%s(%d)", typ, c.Length)
	}
	return typ
}

func renderActions(onDelete, onUpdate schema.ReferentialAction) string {
	var sb strings.Builder
	if onDelete != "" && onDelete != schema.NoAction {
		fmt.Fprintf(&sb, " ON DELETE %s", onDelete)
	}
	if onUpdate != "" && onUpdate != schema.NoAction {
		fmt.Fprintf(&sb, " ON UPDATE %s", onUpdate)
	}
	return sb.String()
}

func renderIndexed(cols []schema.IndexedColumn) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = QuoteIdent(c.Name)
		if c.Descending {
			parts[i] += " DESC"
		}
	}
	return strings.Join(parts, ", ")
}

func renderNames(names []string) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = QuoteIdent(n)
	}
	return strings.Join(parts, ", ")
}

// RenderCreateTable renders a table as a SQLite CREATE TABLE statement
// without a trailing semicolon. Every constraint is emitted under its
// recorded name: defaults and single-column checks on their column, an
// AUTOINCREMENT key inline and the remaining keys at table level.
func RenderCreateTable(t *schema.Table) string {
	defs := make([]string, 0, len(t.Columns)+len(t.Uniques)+len(t.Checks)+len(t.ForeignKeys)+1)

	inlinePK := false
	inlineChecks := make(map[int]bool)
	for _, c := range t.Columns {
		var sb strings.Builder
		sb.WriteString(renderColumn(c))

		if c.PrimaryKey && c.AutoIncrement && t.PrimaryKey != nil && len(t.PrimaryKey.Columns) == 1 {
			inlinePK = true
			fmt.Fprintf(&sb, " CONSTRAINT %s PRIMARY KEY AUTOINCREMENT", QuoteIdent(t.PrimaryKey.Name))
		}
		if d := columnDefault(t, c.Name); d != nil {
			fmt.Fprintf(&sb, " CONSTRAINT %s DEFAULT %s", QuoteIdent(d.Name), d.Expression)
		} else if c.Default != nil {
			fmt.Fprintf(&sb, " DEFAULT %s", *c.Default)
		}
		checked := false
		for i, ck := range t.Checks {
			if strings.EqualFold(ck.Column, c.Name) {
				inlineChecks[i], checked = true, true
				fmt.Fprintf(&sb, " CONSTRAINT %s CHECK (%s)", QuoteIdent(ck.Name), ck.Expression)
			}
		}

		// Column flags not backed by a table constraint are rendered inline.
		if c.Unique && !uniqueOn(t, c.Name) {
			sb.WriteString(" UNIQUE")
		}
		if c.Check != "" && !checked {
			fmt.Fprintf(&sb, " CHECK (%s)", c.Check)
		}
		if ref := c.References; ref != nil && !foreignKeyOn(t, c.Name) {
			fmt.Fprintf(&sb, " REFERENCES %s", QuoteIdent(ref.Table))
			if ref.Column != "" {
				fmt.Fprintf(&sb, " (%s)", QuoteIdent(ref.Column))
			}
			sb.WriteString(renderActions(ref.OnDelete, ref.OnUpdate))
		}
		defs = append(defs, sb.String())
	}

	switch pk := t.PrimaryKey; {
	case pk != nil && !inlinePK:
		defs = append(defs, fmt.Sprintf("CONSTRAINT %s PRIMARY KEY (%s)", QuoteIdent(pk.Name), renderIndexed(pk.Columns)))
	case pk == nil:
		// Columns loaded from the catalog carry only their key flags.
		if names := t.PrimaryKeyColumns(); len(names) > 0 {
			defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", renderNames(names)))
		}
	}
	for _, u := range t.Uniques {
		defs = append(defs, fmt.Sprintf("CONSTRAINT %s UNIQUE (%s)", QuoteIdent(u.Name), renderIndexed(u.Columns)))
	}
	for i, c := range t.Checks {
		if inlineChecks[i] {
			continue
		}
		defs = append(defs, fmt.Sprintf("CONSTRAINT %s CHECK (%s)", QuoteIdent(c.Name), c.Expression))
	}
	for _, fk := range t.ForeignKeys {
		var sb strings.Builder
		fmt.Fprintf(&sb, "CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s",
			QuoteIdent(fk.Name), renderNames(fk.Columns), QuoteIdent(fk.ReferencedTable))
		if len(fk.ReferencedColumns) > 0 {
			fmt.Fprintf(&sb, " (%s)", renderNames(fk.ReferencedColumns))
		}
		sb.WriteString(renderActions(fk.OnDelete, fk.OnUpdate))
		defs = append(defs, sb.String())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "CREATE TABLE %s (\n  %s\n)", QuoteIdent(t.Name), strings.Join(defs, ",\n  "))

	var opts []string
	if t.WithoutRowID {
		opts = append(opts, "WITHOUT ROWID")
	}
	if t.Strict {
		opts = append(opts, "STRICT")
	}
	if len(opts) > 0 {
		sb.WriteByte(' ')
		sb.WriteString(strings.Join(opts, ", "))
	}
	return sb.String()
}

func columnDefault(t *schema.Table, column string) *schema.DefaultConstraint {
	for i := range t.Defaults {
		if strings.EqualFold(t.Defaults[i].Column, column) {
			return &t.Defaults[i]
		}
	}
	return nil
}

func uniqueOn(t *schema.Table, column string) bool {
	for _, u := range t.Uniques {
		if len(u.Columns) == 1 && strings.EqualFold(u.Columns[0].Name, column) {
			return true
		}
	}
	return false
}

func foreignKeyOn(t *schema.Table, column string) bool {
	for _, fk := range t.ForeignKeys {
		if len(fk.Columns) == 1 && strings.EqualFold(fk.Columns[0], column) {
			return true
		}
	}
	return false
}
