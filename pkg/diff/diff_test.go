package diff

import (
	"slices"
	"strings"
	"testing"

	"github.com/mizuchilabs/sqlite-ddl/pkg/ddl"
	"github.com/mizuchilabs/sqlite-ddl/pkg/schema"
	"github.com/mizuchilabs/sqlite-ddl/pkg/types"
)

// tables parses CREATE TABLE statements into a database
func tables(t *testing.T, stmts ...string) *schema.Database {
	t.Helper()
	db := schema.NewDatabase()
	for _, stmt := range stmts {
		table := ddl.ParseCreateTable(stmt, types.NewSQLite())
		if table == nil {
			t.Fatalf("not a table: %q", stmt)
		}
		db.Tables[table.Name] = table
	}
	return db
}

func changeTypes(changes []Change) []ChangeType {
	var out []ChangeType
	for _, c := range changes {
		out = append(out, c.Type)
	}
	return out
}

func TestDiff_Tables(t *testing.T) {
	tests := []struct {
		name            string
		from            []string
		to              []string
		wantChangeTypes []ChangeType
		wantDestructive bool
	}{
		{
			name: "empty to empty",
		},
		{
			name:            "create table",
			to:              []string{"CREATE TABLE users (id INTEGER PRIMARY KEY)"},
			wantChangeTypes: []ChangeType{CreateTable},
		},
		{
			name:            "drop table",
			from:            []string{"CREATE TABLE users (id INTEGER PRIMARY KEY)"},
			wantChangeTypes: []ChangeType{DropTable},
			wantDestructive: true,
		},
		{
			name:            "add column",
			from:            []string{"CREATE TABLE users (id INTEGER PRIMARY KEY)"},
			to:              []string{"CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)"},
			wantChangeTypes: []ChangeType{AddColumn},
		},
		{
			name:            "add two columns",
			from:            []string{"CREATE TABLE users (id INTEGER PRIMARY KEY)"},
			to:              []string{"CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT, age INTEGER DEFAULT 0)"},
			wantChangeTypes: []ChangeType{AddColumn, AddColumn},
		},
		{
			name: "add column with reference and check",
			from: []string{"CREATE TABLE posts (id INTEGER PRIMARY KEY)"},
			to: []string{
				"CREATE TABLE posts (id INTEGER PRIMARY KEY, author_id INTEGER REFERENCES users(id) CHECK (author_id > 0))",
			},
			wantChangeTypes: []ChangeType{AddColumn},
		},
		{
			name:            "add unique column recreates",
			from:            []string{"CREATE TABLE users (id INTEGER PRIMARY KEY)"},
			to:              []string{"CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT UNIQUE)"},
			wantChangeTypes: []ChangeType{RecreateTable},
			wantDestructive: true,
		},
		{
			name:            "add column with non-constant default recreates",
			from:            []string{"CREATE TABLE users (id INTEGER PRIMARY KEY)"},
			to:              []string{"CREATE TABLE users (id INTEGER PRIMARY KEY, created TEXT DEFAULT CURRENT_TIMESTAMP)"},
			wantChangeTypes: []ChangeType{RecreateTable},
			wantDestructive: true,
		},
		{
			name:            "drop column recreates",
			from:            []string{"CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)"},
			to:              []string{"CREATE TABLE users (id INTEGER PRIMARY KEY)"},
			wantChangeTypes: []ChangeType{RecreateTable},
			wantDestructive: true,
		},
		{
			name:            "column type change recreates",
			from:            []string{"CREATE TABLE users (id INTEGER PRIMARY KEY, age TEXT)"},
			to:              []string{"CREATE TABLE users (id INTEGER PRIMARY KEY, age INTEGER)"},
			wantChangeTypes: []ChangeType{RecreateTable},
			wantDestructive: true,
		},
		{
			name:            "type size change recreates",
			from:            []string{"CREATE TABLE users (id INTEGER PRIMARY KEY, name VARCHAR(50))"},
			to:              []string{"CREATE TABLE users (id INTEGER PRIMARY KEY, name VARCHAR(100))"},
			wantChangeTypes: []ChangeType{RecreateTable},
			wantDestructive: true,
		},
		{
			name:            "default change recreates",
			from:            []string{"CREATE TABLE users (id INTEGER PRIMARY KEY, active INTEGER DEFAULT 1)"},
			to:              []string{"CREATE TABLE users (id INTEGER PRIMARY KEY, active INTEGER DEFAULT 0)"},
			wantChangeTypes: []ChangeType{RecreateTable},
			wantDestructive: true,
		},
		{
			name:            "table check added recreates",
			from:            []string{"CREATE TABLE users (id INTEGER PRIMARY KEY, age INTEGER)"},
			to:              []string{"CREATE TABLE users (id INTEGER PRIMARY KEY, age INTEGER, CHECK (age >= 0))"},
			wantChangeTypes: []ChangeType{RecreateTable},
			wantDestructive: true,
		},
		{
			name: "foreign key action change recreates",
			from: []string{"CREATE TABLE posts (id INTEGER PRIMARY KEY, user_id INTEGER REFERENCES users(id))"},
			to: []string{
				"CREATE TABLE posts (id INTEGER PRIMARY KEY, user_id INTEGER REFERENCES users(id) ON DELETE CASCADE)",
			},
			wantChangeTypes: []ChangeType{RecreateTable},
			wantDestructive: true,
		},
		{
			name:            "strict option recreates",
			from:            []string{"CREATE TABLE kv (k TEXT PRIMARY KEY, v TEXT)"},
			to:              []string{"CREATE TABLE kv (k TEXT PRIMARY KEY, v TEXT) STRICT"},
			wantChangeTypes: []ChangeType{RecreateTable},
			wantDestructive: true,
		},
		{
			name: "layout and quoting only",
			from: []string{"CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL)"},
			to: []string{`create table "users" (
				"id"   integer primary key, -- key
				"name" text not null
			)`},
		},
		{
			name: "explicit no action matches default",
			from: []string{"CREATE TABLE posts (id INTEGER PRIMARY KEY, user_id INTEGER REFERENCES users(id))"},
			to: []string{
				"CREATE TABLE posts (id INTEGER PRIMARY KEY, user_id INTEGER REFERENCES users(id) ON DELETE NO ACTION)",
			},
		},
		{
			name: "column key moved to table level",
			from: []string{"CREATE TABLE tags (name TEXT PRIMARY KEY, color TEXT)"},
			to:   []string{"CREATE TABLE tags (name TEXT, color TEXT, PRIMARY KEY (name))"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changes := Diff(tables(t, tt.from...), tables(t, tt.to...))

			if got := changeTypes(changes); !slices.Equal(got, tt.wantChangeTypes) {
				t.Fatalf("change types = %v, want %v", got, tt.wantChangeTypes)
			}
			if got := HasDestructive(changes); got != tt.wantDestructive {
				t.Errorf("HasDestructive() = %v, want %v", got, tt.wantDestructive)
			}
		})
	}
}

func TestDiff_Objects(t *testing.T) {
	const (
		idxName    = "CREATE INDEX idx_users_name ON users(name)"
		idxNameKey = "CREATE INDEX idx_users_name ON users(name, email)"
		view       = "CREATE VIEW active_users AS SELECT * FROM users WHERE active = 1"
		viewCols   = "CREATE VIEW active_users AS SELECT id, name FROM users WHERE active = 1"
		trigger    = "CREATE TRIGGER trg_users AFTER UPDATE ON users BEGIN SELECT 1; END"
		trigger2   = "CREATE TRIGGER trg_users AFTER UPDATE ON users BEGIN SELECT 2; END"
	)

	index := func(sql string) *schema.Database {
		db := schema.NewDatabase()
		db.Indexes["idx_users_name"] = &schema.Index{Name: "idx_users_name", Table: "users", SQL: sql}
		return db
	}
	viewDB := func(sql string) *schema.Database {
		db := schema.NewDatabase()
		db.Views["active_users"] = &schema.View{Name: "active_users", SQL: sql}
		return db
	}
	triggerDB := func(sql string) *schema.Database {
		db := schema.NewDatabase()
		db.Triggers["trg_users"] = &schema.Trigger{Name: "trg_users", Table: "users", SQL: sql}
		return db
	}

	tests := []struct {
		name            string
		from, to        *schema.Database
		wantChangeTypes []ChangeType
	}{
		{"create index", schema.NewDatabase(), index(idxName), []ChangeType{CreateIndex}},
		{"drop index", index(idxName), schema.NewDatabase(), []ChangeType{DropIndex}},
		{"modify index", index(idxName), index(idxNameKey), []ChangeType{DropIndex, CreateIndex}},
		{"index layout only", index(idxName), index("create index idx_users_name on users ( name );"), nil},
		{"create view", schema.NewDatabase(), viewDB(view), []ChangeType{CreateView}},
		{"drop view", viewDB(view), schema.NewDatabase(), []ChangeType{DropView}},
		{"modify view", viewDB(view), viewDB(viewCols), []ChangeType{DropView, CreateView}},
		{"unchanged view", viewDB(view), viewDB(view), nil},
		{"create trigger", schema.NewDatabase(), triggerDB(trigger), []ChangeType{CreateTrigger}},
		{"drop trigger", triggerDB(trigger), schema.NewDatabase(), []ChangeType{DropTrigger}},
		{"modify trigger", triggerDB(trigger), triggerDB(trigger2), []ChangeType{DropTrigger, CreateTrigger}},
		{"unchanged trigger", triggerDB(trigger), triggerDB(trigger), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changes := Diff(tt.from, tt.to)
			if got := changeTypes(changes); !slices.Equal(got, tt.wantChangeTypes) {
				t.Errorf("change types = %v, want %v", got, tt.wantChangeTypes)
			}
			if HasDestructive(changes) {
				t.Error("index, view and trigger changes should not be destructive")
			}
		})
	}
}

func TestRecreatedTableCascades(t *testing.T) {
	// Dropping the old table takes its indexes and triggers with it, so they
	// are created again instead of dropped explicitly
	withDeps := func(t *testing.T, table string, index, trigger bool) *schema.Database {
		db := tables(t, table)
		if index {
			db.Indexes["idx_posts_title"] = &schema.Index{
				Name: "idx_posts_title", Table: "posts", SQL: "CREATE INDEX idx_posts_title ON posts(title)",
			}
		}
		if trigger {
			db.Triggers["trg_posts"] = &schema.Trigger{
				Name: "trg_posts", Table: "posts", SQL: "CREATE TRIGGER trg_posts AFTER INSERT ON posts BEGIN SELECT 1; END",
			}
		}
		return db
	}

	const (
		before = "CREATE TABLE posts (id INTEGER PRIMARY KEY, title TEXT, body TEXT)"
		after  = "CREATE TABLE posts (id INTEGER PRIMARY KEY, title TEXT)"
	)

	tests := []struct {
		name                   string
		fromIndex, fromTrigger bool
		toIndex, toTrigger     bool
		wantChangeTypes        []ChangeType
		wantObjects            []string
	}{
		{
			name:      "recreates index",
			fromIndex: true, toIndex: true,
			wantChangeTypes: []ChangeType{RecreateTable, CreateIndex},
			wantObjects:     []string{"posts", "idx_posts_title"},
		},
		{
			name:        "recreates trigger",
			fromTrigger: true, toTrigger: true,
			wantChangeTypes: []ChangeType{RecreateTable, CreateTrigger},
			wantObjects:     []string{"posts", "trg_posts"},
		},
		{
			name:            "skips explicit trigger drop",
			fromTrigger:     true,
			wantChangeTypes: []ChangeType{RecreateTable},
			wantObjects:     []string{"posts"},
		},
		{
			name:      "both index and trigger",
			fromIndex: true, fromTrigger: true, toIndex: true, toTrigger: true,
			wantChangeTypes: []ChangeType{RecreateTable, CreateIndex, CreateTrigger},
			wantObjects:     []string{"posts", "idx_posts_title", "trg_posts"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from := withDeps(t, before, tt.fromIndex, tt.fromTrigger)
			to := withDeps(t, after, tt.toIndex, tt.toTrigger)

			changes := Diff(from, to)
			if got := changeTypes(changes); !slices.Equal(got, tt.wantChangeTypes) {
				for i, c := range changes {
					t.Logf("  change[%d]: %v %s", i, c.Type, c.Object)
				}
				t.Fatalf("change types = %v, want %v", got, tt.wantChangeTypes)
			}
			for i, c := range changes {
				if c.Object != tt.wantObjects[i] {
					t.Errorf("change[%d].Object = %q, want %q", i, c.Object, tt.wantObjects[i])
				}
			}
		})
	}
}

func TestColumnChanged(t *testing.T) {
	base := schema.Column{Name: "name", RawType: "VARCHAR", Length: 50}
	def := func(s string) *string { return &s }

	tests := []struct {
		name string
		edit func(c *schema.Column)
		want bool
	}{
		{"identical", func(c *schema.Column) {}, false},
		{"type case", func(c *schema.Column) { c.RawType = "varchar" }, false},
		{"type", func(c *schema.Column) { c.RawType = "TEXT" }, true},
		{"length", func(c *schema.Column) { c.Length = 60 }, true},
		{"not null", func(c *schema.Column) { c.NotNull = true }, true},
		{"collation", func(c *schema.Column) { c.Collation = "NOCASE" }, true},
		{"generated", func(c *schema.Column) { c.Generated = "upper(name)" }, true},
		{"default", func(c *schema.Column) { c.Default = def("'x'") }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			to := base
			tt.edit(&to)
			if got := columnChanged(base, to); got != tt.want {
				t.Errorf("columnChanged() = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("default layout", func(t *testing.T) {
		a, b := base, base
		a.Default, b.Default = def("( 1 + 2 )"), def("(1 + 2)")
		if columnChanged(a, b) {
			t.Error("defaults differing only in layout should compare equal")
		}
	})
	t.Run("unbounded text length", func(t *testing.T) {
		a := schema.Column{Name: "t", RawType: "TEXT", Length: -1}
		b := schema.Column{Name: "t", RawType: "TEXT"}
		if columnChanged(a, b) {
			t.Error("unbounded length should equal no length")
		}
	})
}

func TestCanAddColumn(t *testing.T) {
	def := func(s string) *string { return &s }
	tests := []struct {
		col  schema.Column
		want bool
	}{
		{schema.Column{Name: "a"}, true},
		{schema.Column{Name: "a", Default: def("0")}, true},
		{schema.Column{Name: "a", Default: def("'x'")}, true},
		{schema.Column{Name: "a", Default: def("(random())")}, false},
		{schema.Column{Name: "a", Default: def("current_date")}, false},
		{schema.Column{Name: "a", PrimaryKey: true}, false},
		{schema.Column{Name: "a", Unique: true}, false},
		{schema.Column{Name: "a", Generated: "b * 2"}, true},
		{schema.Column{Name: "a", Generated: "b * 2", GeneratedStored: true}, false},
	}

	for _, tt := range tests {
		if got := canAddColumn(tt.col); got != tt.want {
			t.Errorf("canAddColumn(%+v) = %v, want %v", tt.col, got, tt.want)
		}
	}
}

func TestGenerateAddColumnSQL(t *testing.T) {
	tests := []struct {
		name    string
		col     schema.Column
		wantSQL string
	}{
		{
			name:    "simple column",
			col:     schema.Column{Name: "email", RawType: "TEXT"},
			wantSQL: `ALTER TABLE "users" ADD COLUMN "email" TEXT;`,
		},
		{
			name:    "not null with default",
			col:     schema.Column{Name: "active", RawType: "INTEGER", NotNull: true, Default: ptr("1")},
			wantSQL: `ALTER TABLE "users" ADD COLUMN "active" INTEGER NOT NULL DEFAULT 1;`,
		},
		{
			name:    "not null without default gets empty string",
			col:     schema.Column{Name: "status", RawType: "TEXT", NotNull: true},
			wantSQL: `ALTER TABLE "users" ADD COLUMN "status" TEXT DEFAULT '';`,
		},
		{
			name: "reference with action",
			col: schema.Column{
				Name:       "team_id",
				RawType:    "INTEGER",
				References: &schema.Reference{Table: "teams", Column: "id", OnDelete: schema.SetNull},
			},
			wantSQL: `ALTER TABLE "users" ADD COLUMN "team_id" INTEGER REFERENCES "teams" ("id") ON DELETE SET NULL;`,
		},
		{
			name:    "sized type",
			col:     schema.Column{Name: "code", RawType: "VARCHAR", Length: 8},
			wantSQL: `ALTER TABLE "users" ADD COLUMN "code" VARCHAR(8);`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := generateAddColumnSQL("users", tt.col); got != tt.wantSQL {
				t.Errorf("generateAddColumnSQL() = %q, want %q", got, tt.wantSQL)
			}
		})
	}
}

func TestGenerateRecreateSQL(t *testing.T) {
	db := tables(t,
		"CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT, email TEXT)",
	)
	target := tables(t,
		"CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL, upper_name TEXT GENERATED ALWAYS AS (upper(name)))",
	)

	got := generateRecreateSQL("users", db.Tables["users"], target.Tables["users"])
	want := []string{
		`CREATE TABLE "users__new" (id INTEGER PRIMARY KEY, name TEXT NOT NULL, upper_name TEXT GENERATED ALWAYS AS (upper(name)));`,
		`INSERT INTO "users__new" ("id", "name") SELECT "id", "name" FROM "users";`,
		`DROP TABLE "users";`,
		`ALTER TABLE "users__new" RENAME TO "users";`,
	}
	if !slices.Equal(got, want) {
		t.Errorf("generateRecreateSQL()\n got  %q\n want %q", got, want)
	}
}

func TestGenerateRecreateSQL_LiteralInCheck(t *testing.T) {
	db := tables(t, "CREATE TABLE t (a TEXT CHECK(a<>';'), b INTEGER)")
	target := tables(t, "CREATE TABLE t (a VARCHAR(10) CHECK(a<>';'), b INTEGER)")

	changes := Diff(db, target)
	if got := changeTypes(changes); !slices.Equal(got, []ChangeType{RecreateTable}) {
		t.Fatalf("changes = %v", got)
	}

	want := `INSERT INTO "t__new" ("a", "b") SELECT "a", "b" FROM "t";`
	if !slices.Contains(changes[0].SQL, want) {
		t.Errorf("copy statement missing, got %q", changes[0].SQL)
	}
}

func TestCreateAs(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want string
	}{
		{"plain", "CREATE TABLE t (a)", `CREATE TABLE "t__new" (a)`},
		{"if not exists", "create table if not exists t (a)", `create table if not exists "t__new" (a)`},
		{"quoted", `CREATE TABLE "my ""t""" (a)`, `CREATE TABLE "t__new" (a)`},
		{"bracketed", "CREATE TABLE [t] (a)", `CREATE TABLE "t__new" (a)`},
		{"qualified", "CREATE TABLE main.t (a)", `CREATE TABLE "t__new" (a)`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := createAs(&schema.Table{Name: "t", SQL: tt.sql}, "t__new"); got != tt.want {
				t.Errorf("createAs() = %q, want %q", got, tt.want)
			}
		})
	}

	t.Run("rendered without source", func(t *testing.T) {
		table := schema.NewTable("t")
		table.AddColumn(schema.Column{Name: "a", RawType: "INTEGER", PrimaryKey: true})
		got := createAs(table, "t__new")
		if !strings.HasPrefix(got, `CREATE TABLE "t__new" (`) || !strings.Contains(got, `PRIMARY KEY ("a")`) {
			t.Errorf("createAs() = %q", got)
		}
	})
}

func TestConstraintsChanged_AddedColumns(t *testing.T) {
	from := tables(t, "CREATE TABLE t (id INTEGER PRIMARY KEY)").Tables["t"]
	to := tables(t, "CREATE TABLE t (id INTEGER PRIMARY KEY, n INTEGER CHECK (n > 0) REFERENCES other(id))").Tables["t"]

	if !constraintsChanged(from, to, nil) {
		t.Error("new check and reference should count without the added set")
	}
	if constraintsChanged(from, to, map[string]bool{"n": true}) {
		t.Error("check and reference of an added column should not count")
	}
}

func TestSortChanges(t *testing.T) {
	changes := []Change{
		{Type: CreateTable, Object: "users"},
		{Type: DropIndex, Object: "idx_b"},
		{Type: DropTrigger, Object: "trg_a"},
		{Type: CreateIndex, Object: "idx_b"},
		{Type: DropIndex, Object: "idx_a"},
		{Type: AddColumn, Object: "posts"},
	}

	sortChanges(changes)

	want := []string{"trg_a", "idx_a", "idx_b", "users", "posts", "idx_b"}
	for i, obj := range want {
		if changes[i].Object != obj {
			t.Errorf("after sort: changes[%d] = %v %s, want %s", i, changes[i].Type, changes[i].Object, obj)
		}
	}
}

func TestFilterDestructive(t *testing.T) {
	changes := []Change{
		{Type: DropTable, Object: "a", Destructive: true},
		{Type: CreateTable, Object: "b"},
		{Type: RecreateTable, Object: "c", Destructive: true},
	}

	filtered := FilterDestructive(changes)
	if len(filtered) != 1 || filtered[0].Object != "b" {
		t.Errorf("FilterDestructive() = %v", filtered)
	}
	if HasDestructive(filtered) {
		t.Error("filtered changes should not be destructive")
	}
	if !HasDestructive(changes) {
		t.Error("HasDestructive() = false, want true")
	}
}

func TestGenerateSQL(t *testing.T) {
	changes := []Change{
		{
			Type:        CreateTable,
			Object:      "users",
			Description: `Create table "users"`,
			SQL:         []string{"CREATE TABLE users (id INTEGER);"},
		},
	}

	sql := GenerateSQL(changes)

	for _, part := range []string{
		"PRAGMA foreign_keys = OFF",
		"BEGIN TRANSACTION",
		`-- CREATE_TABLE: Create table "users"`,
		"CREATE TABLE users (id INTEGER);",
		"COMMIT",
		"PRAGMA foreign_keys = ON",
	} {
		if !strings.Contains(sql, part) {
			t.Errorf("GenerateSQL() missing %q", part)
		}
	}
	if strings.Index(sql, "BEGIN") > strings.Index(sql, "CREATE TABLE") {
		t.Error("statements should follow BEGIN TRANSACTION")
	}
}

func TestGenerateSQLEmpty(t *testing.T) {
	if got := GenerateSQL(nil); got != "" {
		t.Errorf("GenerateSQL(nil) = %q, want empty", got)
	}
}

func TestSortedKeys(t *testing.T) {
	got := SortedKeys(map[string]int{"b": 1, "c": 2, "a": 3})
	if !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Errorf("SortedKeys() = %v", got)
	}
}

func ptr(s string) *string {
	return &s
}
