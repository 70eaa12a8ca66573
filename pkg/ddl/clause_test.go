package ddl

import (
	"strings"
	"testing"
)

// dump renders the shape of a clause tree: s[...] statement, p[...] paren
// group, g[...] plain group and w:text words.
func dump(c Clause) string {
	switch c := c.(type) {
	case *Word:
		return "w:" + c.String()
	case *Group:
		parts := make([]string, len(c.Children))
		for i, child := range c.Children {
			parts[i] = dump(child)
		}
		kind := "g"
		switch {
		case c.Statement:
			kind = "s"
		case c.Paren:
			kind = "p"
		}
		return kind + "[" + strings.Join(parts, " ") + "]"
	}
	return "?"
}

func TestBuildAndReduce(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want string
	}{
		{
			name: "two columns",
			sql:  "CREATE TABLE t (id INTEGER, name TEXT)",
			want: "s[w:CREATE w:TABLE w:t p[g[w:id w:INTEGER] g[w:name w:TEXT]]]",
		},
		{
			name: "one column keeps its item group",
			sql:  "CREATE TABLE t (id INTEGER)",
			want: "s[w:CREATE w:TABLE w:t p[g[w:id w:INTEGER]]]",
		},
		{
			name: "single word items collapse",
			sql:  "CREATE TABLE t (id)",
			want: "s[w:CREATE w:TABLE w:t p[w:id]]",
		},
		{
			name: "type arguments",
			sql:  "CREATE TABLE t (price DECIMAL(10, 2))",
			want: "s[w:CREATE w:TABLE w:t p[g[w:price w:DECIMAL p[w:10 w:2]]]]",
		},
		{
			name: "nested parentheses",
			sql:  "CREATE TABLE t (n INTEGER DEFAULT ((1)))",
			want: "s[w:CREATE w:TABLE w:t p[g[w:n w:INTEGER w:DEFAULT p[p[w:1]]]]]",
		},
		{
			name: "root level comma",
			sql:  "CREATE TABLE t (id) STRICT, WITHOUT ROWID",
			want: "s[w:CREATE w:TABLE w:t p[w:id] w:STRICT w:, w:WITHOUT w:ROWID]",
		},
		{
			name: "unbalanced closer is ignored",
			sql:  "CREATE TABLE t (id))",
			want: "s[w:CREATE w:TABLE w:t p[w:id]]",
		},
		{
			name: "unterminated group",
			sql:  "CREATE TABLE t (id INTEGER",
			want: "s[w:CREATE w:TABLE w:t p[g[w:id w:INTEGER]]]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := dump(ParseStatement(tt.sql))
			if got != tt.want {
				t.Errorf("tree mismatch\n got  %s\n want %s", got, tt.want)
			}
		})
	}
}

func TestReduce_Idempotent(t *testing.T) {
	statements := []string{
		"CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT NOT NULL)",
		"CREATE TABLE t (a INTEGER, b INTEGER, CONSTRAINT pk_t PRIMARY KEY (a, b))",
		"CREATE TABLE t (n INTEGER DEFAULT ((1)) CHECK (length(n) > 0))",
		"CREATE TABLE t (id)",
		"CREATE TABLE t (x DEFAULT (datetime('now')), PRIMARY KEY (x DESC)) WITHOUT ROWID",
	}

	for _, sql := range statements {
		t.Run(sql, func(t *testing.T) {
			tree := Reduce(Build(TokenizeStatement(sql)))
			first := dump(tree)

			again := Reduce(tree)
			if got := dump(again); got != first {
				t.Errorf("second reduction changed the tree\n first  %s\n second %s", first, got)
			}
		})
	}
}

func TestReduce_ParentLinks(t *testing.T) {
	root := ParseStatement("CREATE TABLE t (a INTEGER, b TEXT)")

	paren, ok := root.Children[3].(*Group)
	if !ok {
		t.Fatalf("expected paren group, got %T", root.Children[3])
	}
	if paren.parent != root {
		t.Error("paren group should point at the root")
	}
	for i, c := range paren.Children {
		if g, ok := c.(*Group); ok && g.parent != paren {
			t.Errorf("item %d should point at the paren group", i)
		}
	}
}

func TestGroupString(t *testing.T) {
	tests := []struct {
		sql  string
		want string
	}{
		{
			sql:  "CREATE TABLE t (a VARCHAR(10), b DECIMAL(10,2))",
			want: "CREATE TABLE t(a VARCHAR(10), b DECIMAL(10, 2));",
		},
		{
			sql:  `CREATE TABLE "t" (x DEFAULT 'a b' CHECK (length(x) > 0))`,
			want: `CREATE TABLE "t"(x DEFAULT 'a b' CHECK(length(x) > 0));`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			if got := ParseStatement(tt.sql).String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGroupInner(t *testing.T) {
	root := ParseStatement("CHECK (a > 0 AND b < 10)")

	g, ok := root.Children[1].(*Group)
	if !ok {
		t.Fatalf("expected group, got %T", root.Children[1])
	}
	if got := g.Inner(); got != "a > 0 AND b < 10" {
		t.Errorf("Inner() = %q", got)
	}
	if got := root.Inner(); got != "CHECK(a > 0 AND b < 10)" {
		t.Errorf("root Inner() = %q", got)
	}
}

func TestNewWord(t *testing.T) {
	tests := []struct {
		in          string
		text        string
		open, close string
	}{
		{"users", "users", "", ""},
		{`"my table"`, "my table", `"`, `"`},
		{"[order]", "order", "[", "]"},
		{"`group`", "group", "`", "`"},
		{"'txt'", "txt", "'", "'"},
		{`"`, `"`, "", ""},
		{`"open`, `"open`, "", ""},
		{"'it''s'", "it''s", "'", "'"},
		{"'a'||'b'", "'a'||'b'", "", ""},
		{`"main"."users"`, `"main"."users"`, "", ""},
		{"a='x'", "a='x'", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			w := NewWord(tt.in)
			if w.Text != tt.text || w.Open != tt.open || w.Close != tt.close {
				t.Errorf("NewWord(%q) = %+v", tt.in, *w)
			}
			if w.String() != tt.in {
				t.Errorf("String() = %q, want %q", w.String(), tt.in)
			}
		})
	}
}

func TestWordKeyword(t *testing.T) {
	if got := NewWord("primary key").Keyword(); got != "PRIMARY KEY" {
		t.Errorf("Keyword() = %q", got)
	}
	if got := NewWord(`"check"`).Keyword(); got != "" {
		t.Errorf("quoted word Keyword() = %q, want empty", got)
	}
}
