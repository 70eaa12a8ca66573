// Package diff provides schema comparison and migration generation
package diff

import (
	"cmp"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/mizuchilabs/sqlite-ddl/pkg/ddl"
	"github.com/mizuchilabs/sqlite-ddl/pkg/schema"
)

// ChangeType represents the type of schema change
type ChangeType string

const (
	CreateTable   ChangeType = "CREATE_TABLE"
	DropTable     ChangeType = "DROP_TABLE"
	AddColumn     ChangeType = "ADD_COLUMN"
	RecreateTable ChangeType = "RECREATE_TABLE"
	CreateIndex   ChangeType = "CREATE_INDEX"
	DropIndex     ChangeType = "DROP_INDEX"
	CreateView    ChangeType = "CREATE_VIEW"
	DropView      ChangeType = "DROP_VIEW"
	CreateTrigger ChangeType = "CREATE_TRIGGER"
	DropTrigger   ChangeType = "DROP_TRIGGER"
)

// Change represents a single schema change
type Change struct {
	Type        ChangeType
	Object      string   // Name of the object being changed
	Description string   // Human-readable description
	SQL         []string // SQL statements to apply
	Destructive bool     // Whether this change may lose data
}

// Diff compares two schemas and returns the changes needed to go from 'from' to 'to'
func Diff(from, to *schema.Database) []Change {
	var changes []Change

	// Track tables being recreated - their indexes will be dropped implicitly
	// and need to be recreated as part of the table recreation
	recreatedTables := make(map[string]bool)

	changes = append(changes, diffTables(from, to, recreatedTables)...)
	changes = append(changes, diffIndexes(from, to, recreatedTables)...)
	changes = append(changes, diffViews(from, to)...)
	changes = append(changes, diffTriggers(from, to, recreatedTables)...)

	sortChanges(changes)
	return changes
}

func diffTables(from, to *schema.Database, recreatedTables map[string]bool) []Change {
	var changes []Change

	// Dropped tables
	for name := range from.Tables {
		if _, exists := to.Tables[name]; !exists {
			changes = append(changes, Change{
				Type:        DropTable,
				Object:      name,
				Description: fmt.Sprintf("Drop table %q", name),
				SQL:         []string{fmt.Sprintf("DROP TABLE %s;", ddl.QuoteIdent(name))},
				Destructive: true,
			})
		}
	}

	// New tables
	for name, table := range to.Tables {
		if _, exists := from.Tables[name]; !exists {
			changes = append(changes, Change{
				Type:        CreateTable,
				Object:      name,
				Description: fmt.Sprintf("Create table %q", name),
				SQL:         []string{ensureSemicolon(tableSQL(table))},
				Destructive: false,
			})
		}
	}

	// Modified tables
	for name, toTable := range to.Tables {
		fromTable, exists := from.Tables[name]
		if !exists {
			continue
		}

		tableChanges := diffTableColumns(fromTable, toTable)
		for _, c := range tableChanges {
			if c.Type == RecreateTable {
				recreatedTables[name] = true
			}
		}
		changes = append(changes, tableChanges...)
	}

	return changes
}

func diffTableColumns(from, to *schema.Table) []Change {
	// Check for dropped columns (requires table recreation)
	for _, col := range from.Columns {
		if !to.HasColumn(col.Name) {
			return []Change{recreateTableChange(from.Name, from, to)}
		}
	}

	// Check for new columns (can use ALTER TABLE ADD COLUMN)
	var newCols []schema.Column
	added := make(map[string]bool)
	for _, col := range to.Columns {
		if !from.HasColumn(col.Name) {
			newCols = append(newCols, col)
			added[strings.ToLower(col.Name)] = true
		}
	}

	for _, toCol := range to.Columns {
		fromCol := from.GetColumn(toCol.Name)
		if fromCol == nil {
			if !canAddColumn(toCol) {
				return []Change{recreateTableChange(from.Name, from, to)}
			}
			continue
		}

		if columnChanged(*fromCol, toCol) {
			return []Change{recreateTableChange(from.Name, from, to)}
		}
	}

	// Keys, checks and foreign keys can only change by rebuilding the table
	if constraintsChanged(from, to, added) {
		return []Change{recreateTableChange(from.Name, from, to)}
	}

	changes := make([]Change, 0, len(newCols))
	for _, col := range newCols {
		changes = append(changes, Change{
			Type:        AddColumn,
			Object:      from.Name,
			Description: fmt.Sprintf("Add column %q to table %q", col.Name, from.Name),
			SQL:         []string{generateAddColumnSQL(from.Name, col)},
			Destructive: false,
		})
	}

	return changes
}

func columnChanged(from, to schema.Column) bool {
	// Compare declared type (case-insensitive) and its size
	if !strings.EqualFold(normalizeType(from.RawType), normalizeType(to.RawType)) {
		return true
	}
	if sizeOf(from) != sizeOf(to) {
		return true
	}

	if from.NotNull != to.NotNull || from.PrimaryKey != to.PrimaryKey {
		return true
	}
	if from.AutoIncrement != to.AutoIncrement {
		return true
	}

	if !strings.EqualFold(from.Collation, to.Collation) {
		return true
	}

	if normalizeSQL(from.Generated, true) != normalizeSQL(to.Generated, true) ||
		from.GeneratedStored != to.GeneratedStored {
		return true
	}

	return normalizeDefault(from.Default) != normalizeDefault(to.Default)
}

// sizeOf treats the unbounded text length marker as no length
func sizeOf(c schema.Column) [3]int {
	return [3]int{max(c.Length, 0), c.Precision, c.Scale}
}

func normalizeType(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func normalizeDefault(s *string) string {
	if s == nil {
		return ""
	}
	return normalizeSQL(*s, false)
}

// canAddColumn reports whether ALTER TABLE ADD COLUMN accepts the column
func canAddColumn(col schema.Column) bool {
	if col.PrimaryKey || col.Unique || col.GeneratedStored {
		return false
	}
	if col.Default == nil {
		return true
	}
	// Only constant defaults are allowed when adding a column
	d := strings.ToUpper(strings.TrimSpace(*col.Default))
	return !strings.HasPrefix(d, "(") && !strings.HasPrefix(d, "CURRENT_")
}

// constraintsChanged compares the table-level structure of two tables.
// Checks and single-column foreign keys declared on added columns travel
// with ADD COLUMN and are not counted.
func constraintsChanged(from, to *schema.Table, added map[string]bool) bool {
	if from.WithoutRowID != to.WithoutRowID || from.Strict != to.Strict {
		return true
	}
	if !slices.Equal(primaryKeyOf(from), primaryKeyOf(to)) {
		return true
	}
	if !sameSet(uniqueKeys(from), uniqueKeys(to)) {
		return true
	}
	if !sameSet(checkKeys(from, nil), checkKeys(to, added)) {
		return true
	}
	return !sameSet(foreignKeyKeys(from, nil), foreignKeyKeys(to, added))
}

func primaryKeyOf(t *schema.Table) []string {
	if t.PrimaryKey == nil {
		return lowerAll(t.PrimaryKeyColumns())
	}
	return indexedKey(t.PrimaryKey.Columns)
}

func uniqueKeys(t *schema.Table) []string {
	keys := make([]string, 0, len(t.Uniques))
	for _, u := range t.Uniques {
		keys = append(keys, strings.Join(indexedKey(u.Columns), ","))
	}
	return keys
}

func checkKeys(t *schema.Table, skip map[string]bool) []string {
	keys := make([]string, 0, len(t.Checks))
	for _, c := range t.Checks {
		if c.Column != "" && skip[strings.ToLower(c.Column)] {
			continue
		}
		keys = append(keys, normalizeSQL(c.Expression, true))
	}
	return keys
}

func foreignKeyKeys(t *schema.Table, skip map[string]bool) []string {
	keys := make([]string, 0, len(t.ForeignKeys))
	for _, fk := range t.ForeignKeys {
		if len(fk.Columns) == 1 && skip[strings.ToLower(fk.Columns[0])] {
			continue
		}
		keys = append(keys, fmt.Sprintf("%s->%s(%s) %s %s",
			strings.Join(lowerAll(fk.Columns), ","),
			strings.ToLower(fk.ReferencedTable),
			strings.Join(lowerAll(fk.ReferencedColumns), ","),
			actionOrDefault(fk.OnDelete),
			actionOrDefault(fk.OnUpdate),
		))
	}
	return keys
}

func actionOrDefault(a schema.ReferentialAction) schema.ReferentialAction {
	if a == "" {
		return schema.NoAction
	}
	return a
}

func indexedKey(cols []schema.IndexedColumn) []string {
	key := make([]string, len(cols))
	for i, c := range cols {
		key[i] = strings.ToLower(c.Name)
		if c.Descending {
			key[i] += " desc"
		}
	}
	return key
}

func lowerAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = strings.ToLower(n)
	}
	return out
}

func sameSet(a, b []string) bool {
	a, b = slices.Clone(a), slices.Clone(b)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(a, b)
}

func generateAddColumnSQL(tableName string, col schema.Column) string {
	if col.NotNull && col.Default == nil {
		// SQLite requires DEFAULT for NOT NULL in ADD COLUMN
		empty := "''"
		col.NotNull = false
		col.Default = &empty
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", ddl.QuoteIdent(tableName), ddl.RenderColumn(col))
}

func recreateTableChange(name string, from, to *schema.Table) Change {
	return Change{
		Type:        RecreateTable,
		Object:      name,
		Description: fmt.Sprintf("Recreate table %q (schema changed)", name),
		SQL:         generateRecreateSQL(name, from, to),
		Destructive: true,
	}
}

func generateRecreateSQL(name string, from, to *schema.Table) []string {
	tempName := name + "__new"

	// Find common columns for data migration
	common := commonColumns(from, to)
	quoted := make([]string, len(common))
	for i, c := range common {
		quoted[i] = ddl.QuoteIdent(c)
	}
	cols := strings.Join(quoted, ", ")

	stmts := []string{
		ensureSemicolon(createAs(to, tempName)),
	}

	if len(common) > 0 {
		stmts = append(stmts, fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s;",
			ddl.QuoteIdent(tempName), cols, cols, ddl.QuoteIdent(name)))
	}

	stmts = append(stmts,
		fmt.Sprintf("DROP TABLE %s;", ddl.QuoteIdent(name)),
		fmt.Sprintf("ALTER TABLE %s RENAME TO %s;", ddl.QuoteIdent(tempName), ddl.QuoteIdent(name)),
	)

	return stmts
}

// commonColumns lists the target's columns that also exist in the source,
// skipping generated columns which cannot be written
func commonColumns(from, to *schema.Table) []string {
	var common []string
	for _, c := range to.Columns {
		if c.Generated != "" {
			continue
		}
		if fc := from.GetColumn(c.Name); fc != nil {
			common = append(common, c.Name)
		}
	}
	return common
}

// tableSQL returns the original definition, or a rendered one for tables
// built in code
func tableSQL(t *schema.Table) string {
	if strings.TrimSpace(t.SQL) != "" {
		return t.SQL
	}
	return ddl.RenderCreateTable(t)
}

var tableNameRe = regexp.MustCompile(
	`(?i)^(\s*CREATE\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?)("(?:[^"]|"")+"|\[[^\]]+\]|` +
		"`[^`]+`" + `|[\w.]+)`,
)

// createAs returns the table definition under a different name
func createAs(t *schema.Table, newName string) string {
	sql := tableSQL(t)
	if loc := tableNameRe.FindStringSubmatchIndex(sql); loc != nil {
		return sql[:loc[4]] + ddl.QuoteIdent(newName) + sql[loc[5]:]
	}
	renamed := *t
	renamed.Name = newName
	return ddl.RenderCreateTable(&renamed)
}

func diffIndexes(from, to *schema.Database, recreatedTables map[string]bool) []Change {
	var changes []Change

	// Dropped indexes (skip if table is being recreated - index is dropped implicitly)
	for name, idx := range from.Indexes {
		if recreatedTables[idx.Table] {
			continue
		}
		if _, exists := to.Indexes[name]; !exists {
			changes = append(changes, dropChange(DropIndex, "index", name, ""))
		}
	}

	// New or modified indexes
	for name, toIdx := range to.Indexes {
		fromIdx, exists := from.Indexes[name]

		// The index went away with the old table and has to be created again
		if recreatedTables[toIdx.Table] {
			changes = append(changes, createChange(CreateIndex, "index", name, toIdx.SQL))
			continue
		}

		if !exists {
			changes = append(changes, createChange(CreateIndex, "index", name, toIdx.SQL))
		} else if normalizeSQL(fromIdx.SQL, true) != normalizeSQL(toIdx.SQL, true) {
			changes = append(changes,
				dropChange(DropIndex, "index", name, " (will recreate)"),
				createChange(CreateIndex, "index", name, toIdx.SQL),
			)
		}
	}

	return changes
}

func diffViews(from, to *schema.Database) []Change {
	var changes []Change

	for name := range from.Views {
		if _, exists := to.Views[name]; !exists {
			changes = append(changes, dropChange(DropView, "view", name, ""))
		}
	}

	for name, toView := range to.Views {
		fromView, exists := from.Views[name]
		if !exists {
			changes = append(changes, createChange(CreateView, "view", name, toView.SQL))
		} else if normalizeSQL(fromView.SQL, true) != normalizeSQL(toView.SQL, true) {
			changes = append(changes,
				dropChange(DropView, "view", name, " (will recreate)"),
				createChange(CreateView, "view", name, toView.SQL),
			)
		}
	}

	return changes
}

func diffTriggers(from, to *schema.Database, recreatedTables map[string]bool) []Change {
	var changes []Change

	// Dropped triggers (skip if table is being recreated - trigger is dropped implicitly)
	for name, trig := range from.Triggers {
		if recreatedTables[trig.Table] {
			continue
		}
		if _, exists := to.Triggers[name]; !exists {
			changes = append(changes, dropChange(DropTrigger, "trigger", name, ""))
		}
	}

	for name, toTrig := range to.Triggers {
		fromTrig, exists := from.Triggers[name]

		if recreatedTables[toTrig.Table] {
			changes = append(changes, createChange(CreateTrigger, "trigger", name, toTrig.SQL))
			continue
		}

		if !exists {
			changes = append(changes, createChange(CreateTrigger, "trigger", name, toTrig.SQL))
		} else if normalizeSQL(fromTrig.SQL, true) != normalizeSQL(toTrig.SQL, true) {
			changes = append(changes,
				dropChange(DropTrigger, "trigger", name, " (will recreate)"),
				createChange(CreateTrigger, "trigger", name, toTrig.SQL),
			)
		}
	}

	return changes
}

func dropChange(t ChangeType, kind, name, note string) Change {
	return Change{
		Type:        t,
		Object:      name,
		Description: fmt.Sprintf("Drop %s %q%s", kind, name, note),
		SQL:         []string{fmt.Sprintf("DROP %s IF EXISTS %s;", strings.ToUpper(kind), ddl.QuoteIdent(name))},
		Destructive: false,
	}
}

func createChange(t ChangeType, kind, name, sql string) Change {
	return Change{
		Type:        t,
		Object:      name,
		Description: fmt.Sprintf("Create %s %q", kind, name),
		SQL:         []string{ensureSemicolon(sql)},
		Destructive: false,
	}
}

func ensureSemicolon(sql string) string {
	sql = strings.TrimSpace(sql)
	if !strings.HasSuffix(sql, ";") {
		sql += ";"
	}
	return sql
}

// sortChanges orders changes for safe execution
func sortChanges(changes []Change) {
	priority := map[ChangeType]int{
		DropTrigger:   1,
		DropView:      2,
		DropIndex:     3,
		DropTable:     4,
		RecreateTable: 5,
		CreateTable:   6,
		AddColumn:     7,
		CreateIndex:   8,
		CreateView:    9,
		CreateTrigger: 10,
	}

	slices.SortStableFunc(changes, func(a, b Change) int {
		pa, pb := priority[a.Type], priority[b.Type]
		if pa != pb {
			return cmp.Compare(pa, pb)
		}
		return cmp.Compare(a.Object, b.Object)
	})
}

// HasDestructive returns true if any changes are destructive
func HasDestructive(changes []Change) bool {
	return slices.ContainsFunc(changes, func(c Change) bool { return c.Destructive })
}

// FilterDestructive returns the changes that cannot lose data
func FilterDestructive(changes []Change) []Change {
	var filtered []Change
	for _, c := range changes {
		if !c.Destructive {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

// GenerateSQL generates a complete migration script
func GenerateSQL(changes []Change) string {
	if len(changes) == 0 {
		return ""
	}

	var sb strings.Builder

	sb.WriteString("-- Generated by sqlite-ddl\n")
	sb.WriteString("PRAGMA foreign_keys = OFF;\n")
	sb.WriteString("BEGIN TRANSACTION;\n\n")

	for _, c := range changes {
		fmt.Fprintf(&sb, "-- %s: %s\n", c.Type, c.Description)

		for _, stmt := range c.SQL {
			sb.WriteString(stmt)
			sb.WriteString("\n")
		}

		sb.WriteString("\n")
	}

	sb.WriteString("COMMIT;\n")
	sb.WriteString("PRAGMA foreign_keys = ON;\n")

	return sb.String()
}

// SortedKeys returns sorted keys from a map
func SortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	return slices.Sorted(maps.Keys(m))
}
