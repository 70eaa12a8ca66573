package ddl

import (
	"strconv"
	"strings"

	"github.com/mizuchilabs/sqlite-ddl/pkg/schema"
)

// TypeResolver maps a declared SQL type name to a DataType. Returning false
// means the type is unknown; columns of unknown types are left out.
type TypeResolver interface {
	ResolveType(name string) (schema.DataType, bool)
}

// ParseCreateTable parses a single CREATE TABLE statement. It returns nil
// when sql is not a CREATE TABLE statement or names no table.
func ParseCreateTable(sql string, r TypeResolver) *schema.Table {
	root := ParseStatement(sql)
	if root == nil {
		return nil
	}
	t := Extract(root, r)
	if t != nil {
		t.SQL = strings.TrimSuffix(strings.TrimSpace(sql), ";")
	}
	return t
}

// ParseScript parses every CREATE TABLE statement in a script, in order.
// Other statements are ignored.
func ParseScript(sql string, r TypeResolver) []*schema.Table {
	var tables []*schema.Table
	for _, tokens := range Tokenize(sql) {
		root := Reduce(Build(tokens)).(*Group)
		if t := Extract(root, r); t != nil {
			t.SQL = root.Inner()
			tables = append(tables, t)
		}
	}
	return tables
}

// textTypes get the unbounded length sentinel when declared without a length
var textTypes = map[string]bool{
	"TEXT":     true,
	"VARCHAR":  true,
	"NVARCHAR": true,
}

// tableConstraintKeywords open a table constraint instead of a column
var tableConstraintKeywords = map[string]bool{
	"CONSTRAINT":  true,
	"PRIMARY KEY": true,
	"FOREIGN KEY": true,
	"UNIQUE":      true,
	"CHECK":       true,
	"DEFAULT":     true,
}

// columnKeywords end the type name of a column definition
var columnKeywords = map[string]bool{
	"CONSTRAINT":    true,
	"PRIMARY KEY":   true,
	"NOT NULL":      true,
	"NULL":          true,
	"NOT":           true,
	"UNIQUE":        true,
	"CHECK":         true,
	"DEFAULT":       true,
	"COLLATE":       true,
	"REFERENCES":    true,
	"GENERATED":     true,
	"AS":            true,
	"AUTOINCREMENT": true,
	"ON":            true,
}

// Extract builds a table from the reduced clause tree of one statement
func Extract(root *Group, r TypeResolver) *schema.Table {
	parts := root.Children
	if keywordAt(parts, 0) != "CREATE" || keywordAt(parts, 1) != "TABLE" {
		return nil
	}

	i := 2
	if keywordAt(parts, 2) == "IF" && keywordAt(parts, 3) == "NOT" && keywordAt(parts, 4) == "EXISTS" {
		i = 5
	}
	nameWord, ok := wordAt(parts, i)
	if !ok {
		return nil
	}
	name := lastIdentifier(nameWord.String())
	if strings.TrimSpace(name) == "" {
		return nil
	}

	x := &extractor{table: schema.NewTable(name), resolver: r}
	if keywordAt(parts, i+1) == "AS" {
		return x.table
	}

	var guts *Group
	rest := parts[i+1:]
	for j, c := range rest {
		if g, ok := c.(*Group); ok && g.Paren && len(g.Children) > 0 {
			guts = g
			x.tableOptions(rest[j+1:])
			break
		}
	}
	if guts == nil {
		return x.table
	}

	for _, item := range guts.Children {
		parts := itemParts(item)
		if len(parts) == 0 {
			continue
		}
		if tableConstraintKeywords[keywordAt(parts, 0)] {
			x.tableConstraint(parts)
		} else {
			x.column(parts)
		}
	}

	return x.table
}

type extractor struct {
	table    *schema.Table
	resolver TypeResolver
}

func (x *extractor) tableOptions(parts []Clause) {
	for i := range parts {
		switch keywordAt(parts, i) {
		case "ROWID":
			if keywordAt(parts, i-1) == "WITHOUT" {
				x.table.WithoutRowID = true
			}
		case "STRICT":
			x.table.Strict = true
		}
	}
}

// column parses "name [type] [(length[, scale])] constraint..."
func (x *extractor) column(parts []Clause) {
	nameWord, ok := parts[0].(*Word)
	if !ok || nameWord.Text == "" {
		return
	}

	i := 1
	var typeWords []string
	for ; i < len(parts); i++ {
		w, ok := parts[i].(*Word)
		if !ok || columnKeywords[w.Keyword()] {
			break
		}
		typeWords = append(typeWords, w.Text)
	}
	rawType := strings.Join(typeWords, " ")

	var size []int
	if len(typeWords) > 0 {
		if g, ok := groupAt(parts, i); ok && g.Paren {
			size = typeSize(g)
			i++
		}
	}

	dt, ok := x.resolver.ResolveType(rawType)
	if !ok {
		return
	}

	col := schema.NewColumn(nameWord.Text, rawType, dt)
	switch len(size) {
	case 1:
		col.Length = size[0]
	case 2:
		col.Precision, col.Scale = size[0], size[1]
	default:
		if textTypes[strings.ToUpper(rawType)] {
			col.Length = -1
		}
	}

	x.columnConstraints(x.table.AddColumn(col), parts[i:])
}

// typeSize reads the numbers of a type argument list such as (10) or (10, 2).
// Anything else yields nil.
func typeSize(g *Group) []int {
	if len(g.Children) < 1 || len(g.Children) > 2 {
		return nil
	}
	size := make([]int, 0, len(g.Children))
	for _, c := range g.Children {
		w, ok := c.(*Word)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(w.Text)
		if err != nil {
			return nil
		}
		size = append(size, n)
	}
	return size
}

func (x *extractor) columnConstraints(col *schema.Column, parts []Clause) {
	t := x.table
	var name string

	for i := 0; i < len(parts); i++ {
		w, ok := parts[i].(*Word)
		if !ok {
			continue
		}

		switch w.Keyword() {
		case "CONSTRAINT":
			if n, ok := wordAt(parts, i+1); ok {
				name = n.Text
				i++
			}
			continue

		case "NOT NULL":
			col.NotNull = true
			i += conflictClause(parts, i+1)

		case "NULL":
			col.NotNull = false

		case "AUTOINCREMENT":
			col.AutoIncrement = true

		case "DEFAULT":
			if i+1 >= len(parts) {
				break
			}
			i++
			expr := parts[i].String()
			col.Default = &expr
			t.Defaults = append(t.Defaults, schema.DefaultConstraint{
				Name:       nameOr(name, defaultName(t.Name, col.Name)),
				Column:     col.Name,
				Expression: expr,
			})

		case "UNIQUE":
			col.Unique = true
			t.Uniques = append(t.Uniques, schema.UniqueConstraint{
				Name:    nameOr(name, uniqueName(t.Name, []string{col.Name})),
				Columns: []schema.IndexedColumn{{Name: col.Name}},
			})
			i += conflictClause(parts, i+1)

		case "CHECK":
			g, ok := groupAt(parts, i+1)
			if !ok {
				break
			}
			i++
			expr := g.Inner()
			// Column.Check keeps the first; every check stays in t.Checks.
			n := columnChecks(t, col.Name)
			if n == 0 {
				col.Check = expr
			}
			t.Checks = append(t.Checks, schema.CheckConstraint{
				Name:       nameOr(name, checkName(t.Name, col.Name, n+1)),
				Column:     col.Name,
				Expression: expr,
			})

		case "PRIMARY KEY":
			var desc bool
			if k := keywordAt(parts, i+1); k == "ASC" || k == "DESC" {
				desc = k == "DESC"
				i++
			}
			i += conflictClause(parts, i+1)
			col.PrimaryKey = true
			t.PrimaryKey = &schema.PrimaryKeyConstraint{
				Name:    nameOr(name, primaryKeyName(t.Name)),
				Columns: []schema.IndexedColumn{{Name: col.Name, Descending: desc}},
			}

		case "REFERENCES":
			ref, n := parseReference(parts[i+1:])
			if ref.table == "" {
				break
			}
			i += n
			var refCol string
			if len(ref.columns) > 0 {
				refCol = ref.columns[0]
			}
			col.ForeignKey = true
			col.References = &schema.Reference{
				Table:    ref.table,
				Column:   refCol,
				OnDelete: ref.onDelete,
				OnUpdate: ref.onUpdate,
			}
			t.ForeignKeys = append(t.ForeignKeys, schema.ForeignKeyConstraint{
				Name:              nameOr(name, foreignKeyName(t.Name, []string{col.Name}, ref.table)),
				Columns:           []string{col.Name},
				ReferencedTable:   ref.table,
				ReferencedColumns: ref.columns,
				OnDelete:          ref.onDelete,
				OnUpdate:          ref.onUpdate,
			})

		case "COLLATE":
			if c, ok := wordAt(parts, i+1); ok {
				col.Collation = c.Text
				i++
			}

		case "AS":
			// GENERATED ALWAYS is optional before AS.
			g, ok := groupAt(parts, i+1)
			if !ok {
				break
			}
			i++
			col.Generated = g.Inner()
			if k := keywordAt(parts, i+1); k == "STORED" || k == "VIRTUAL" {
				col.GeneratedStored = k == "STORED"
				i++
			}

		default:
			continue
		}

		name = ""
	}
}

// tableConstraint parses one table-level constraint item
func (x *extractor) tableConstraint(parts []Clause) {
	t := x.table
	var name string
	i := 0
	if keywordAt(parts, 0) == "CONSTRAINT" {
		if w, ok := wordAt(parts, 1); ok {
			name = w.Text
		}
		i = 2
	}

	switch keywordAt(parts, i) {
	case "PRIMARY KEY":
		cols := indexedColumns(parts, i+1)
		if len(cols) == 0 {
			return
		}
		t.PrimaryKey = &schema.PrimaryKeyConstraint{
			Name:    nameOr(name, primaryKeyName(t.Name)),
			Columns: cols,
		}
		if len(cols) == 1 {
			if c := t.GetColumn(cols[0].Name); c != nil {
				c.PrimaryKey = true
			}
		}

	case "UNIQUE":
		cols := indexedColumns(parts, i+1)
		if len(cols) == 0 {
			return
		}
		u := schema.UniqueConstraint{Name: name, Columns: cols}
		if u.Name == "" {
			u.Name = uniqueName(t.Name, u.ColumnNames())
		}
		t.Uniques = append(t.Uniques, u)
		if len(cols) == 1 {
			if c := t.GetColumn(cols[0].Name); c != nil {
				c.Unique = true
			}
		}

	case "CHECK":
		g, ok := groupAt(parts, i+1)
		if !ok {
			return
		}
		t.Checks = append(t.Checks, schema.CheckConstraint{
			Name:       nameOr(name, checkName(t.Name, "", len(t.Checks)+1)),
			Expression: g.Inner(),
		})

	case "FOREIGN KEY":
		cols := indexedColumns(parts, i+1)
		if len(cols) == 0 || keywordAt(parts, i+2) != "REFERENCES" {
			return
		}
		ref, _ := parseReference(parts[i+3:])
		if ref.table == "" {
			return
		}
		local := make([]string, len(cols))
		for j, c := range cols {
			local[j] = c.Name
		}
		t.ForeignKeys = append(t.ForeignKeys, schema.ForeignKeyConstraint{
			Name:              nameOr(name, foreignKeyName(t.Name, local, ref.table)),
			Columns:           local,
			ReferencedTable:   ref.table,
			ReferencedColumns: ref.columns,
			OnDelete:          ref.onDelete,
			OnUpdate:          ref.onUpdate,
		})
		if len(local) == 1 {
			if c := t.GetColumn(local[0]); c != nil {
				var refCol string
				if len(ref.columns) > 0 {
					refCol = ref.columns[0]
				}
				c.ForeignKey = true
				c.References = &schema.Reference{
					Table:    ref.table,
					Column:   refCol,
					OnDelete: ref.onDelete,
					OnUpdate: ref.onUpdate,
				}
			}
		}

	case "DEFAULT":
		// DEFAULT <expr> FOR <column>
		if i+1 >= len(parts) || keywordAt(parts, i+2) != "FOR" {
			return
		}
		target, ok := wordAt(parts, i+3)
		if !ok {
			return
		}
		expr := parts[i+1].String()
		t.Defaults = append(t.Defaults, schema.DefaultConstraint{
			Name:       nameOr(name, defaultName(t.Name, target.Text)),
			Column:     target.Text,
			Expression: expr,
		})
		if c := t.GetColumn(target.Text); c != nil {
			c.Default = &expr
		}
	}
}

type reference struct {
	table    string
	columns  []string
	onDelete schema.ReferentialAction
	onUpdate schema.ReferentialAction
}

// parseReference reads "table [(col, ...)] [ON DELETE a] [ON UPDATE a]
// [MATCH name] [[NOT] DEFERRABLE [INITIALLY DEFERRED|IMMEDIATE]]" and returns
// the number of clauses consumed.
func parseReference(parts []Clause) (reference, int) {
	ref := reference{onDelete: schema.NoAction, onUpdate: schema.NoAction}
	w, ok := wordAt(parts, 0)
	if !ok || w.Keyword() == "ON" {
		return ref, 0
	}
	ref.table = w.Text
	i := 1

	if g, ok := groupAt(parts, i); ok {
		for _, c := range g.Children {
			if cw, ok := c.(*Word); ok {
				ref.columns = append(ref.columns, cw.Text)
			}
		}
		i++
	}

	for i < len(parts) {
		switch keywordAt(parts, i) {
		case "ON DELETE", "ON UPDATE":
			action, ok := wordAt(parts, i+1)
			if !ok {
				return ref, i
			}
			if a, ok := schema.ParseReferentialAction(action.Text); ok {
				if keywordAt(parts, i) == "ON DELETE" {
					ref.onDelete = a
				} else {
					ref.onUpdate = a
				}
			}
			i += 2
		case "MATCH":
			i += 2
		case "NOT":
			if keywordAt(parts, i+1) != "DEFERRABLE" {
				return ref, i
			}
			i++
		case "DEFERRABLE":
			i++
			if keywordAt(parts, i) == "INITIALLY" {
				i += 2
			}
		default:
			return ref, min(i, len(parts))
		}
	}
	return ref, min(i, len(parts))
}

// indexedColumns reads the column list in the parenthesized group at
// parts[i]. Each item must be a name or "name ASC|DESC"; any other shape
// makes the whole list invalid and nil is returned.
func indexedColumns(parts []Clause, i int) []schema.IndexedColumn {
	g, ok := groupAt(parts, i)
	if !ok {
		return nil
	}
	cols := make([]schema.IndexedColumn, 0, len(g.Children))
	for _, c := range g.Children {
		switch c := c.(type) {
		case *Word:
			cols = append(cols, schema.IndexedColumn{Name: c.Text})
		case *Group:
			if c.Paren || len(c.Children) != 2 {
				return nil
			}
			name, ok1 := c.Children[0].(*Word)
			order, ok2 := c.Children[1].(*Word)
			if !ok1 || !ok2 {
				return nil
			}
			switch order.Keyword() {
			case "ASC":
				cols = append(cols, schema.IndexedColumn{Name: name.Text})
			case "DESC":
				cols = append(cols, schema.IndexedColumn{Name: name.Text, Descending: true})
			default:
				return nil
			}
		}
	}
	return cols
}

// conflictClause returns how many clauses an "ON CONFLICT <algorithm>"
// clause starting at parts[i] spans, or 0 when there is none.
func conflictClause(parts []Clause, i int) int {
	if keywordAt(parts, i) == "ON" && keywordAt(parts, i+1) == "CONFLICT" {
		if _, ok := wordAt(parts, i+2); ok {
			return 3
		}
	}
	return 0
}

// itemParts returns the clauses of one comma-separated item of a table body
func itemParts(c Clause) []Clause {
	switch c := c.(type) {
	case *Word:
		return []Clause{c}
	case *Group:
		if c.Paren {
			return nil
		}
		return c.Children
	}
	return nil
}

func wordAt(parts []Clause, i int) (*Word, bool) {
	if i < 0 || i >= len(parts) {
		return nil, false
	}
	w, ok := parts[i].(*Word)
	return w, ok
}

// groupAt returns parts[i] when it is a parenthesized group
func groupAt(parts []Clause, i int) (*Group, bool) {
	if i < 0 || i >= len(parts) {
		return nil, false
	}
	g, ok := parts[i].(*Group)
	if !ok || !g.Paren {
		return nil, false
	}
	return g, true
}

// keywordAt returns the keyword at parts[i], or "" for anything else
func keywordAt(parts []Clause, i int) string {
	w, ok := wordAt(parts, i)
	if !ok {
		return ""
	}
	return w.Keyword()
}

func columnChecks(t *schema.Table, column string) int {
	n := 0
	for _, c := range t.Checks {
		if strings.EqualFold(c.Column, column) {
			n++
		}
	}
	return n
}
