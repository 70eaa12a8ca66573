package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/mizuchilabs/sqlite-ddl/pkg/diff"
	"github.com/mizuchilabs/sqlite-ddl/pkg/schema"
	"github.com/mizuchilabs/sqlite-ddl/pkg/types"
	"gopkg.in/yaml.v3"
)

// tableSource is a parsed table and the file it came from, if any
type tableSource struct {
	Table *schema.Table
	File  string
}

// selectTables returns the named tables in name order, or all of them when
// names is empty
func selectTables(tables map[string]*schema.Table, names []string) ([]*tableSource, error) {
	if len(names) == 0 {
		names = diff.SortedKeys(tables)
	}

	out := make([]*tableSource, 0, len(names))
	for _, name := range names {
		t, ok := tables[name]
		if !ok {
			return nil, fmt.Errorf("table %q not found", name)
		}
		out = append(out, &tableSource{Table: t})
	}
	return out, nil
}

type tableView struct {
	Name         string           `json:"name" yaml:"name"`
	File         string           `json:"file,omitempty" yaml:"file,omitempty"`
	Columns      []columnView     `json:"columns" yaml:"columns"`
	PrimaryKey   *keyView         `json:"primary_key,omitempty" yaml:"primary_key,omitempty"`
	Uniques      []keyView        `json:"uniques,omitempty" yaml:"uniques,omitempty"`
	Checks       []checkView      `json:"checks,omitempty" yaml:"checks,omitempty"`
	Defaults     []checkView      `json:"defaults,omitempty" yaml:"defaults,omitempty"`
	ForeignKeys  []foreignKeyView `json:"foreign_keys,omitempty" yaml:"foreign_keys,omitempty"`
	WithoutRowID bool             `json:"without_rowid,omitempty" yaml:"without_rowid,omitempty"`
	Strict       bool             `json:"strict,omitempty" yaml:"strict,omitempty"`
}

type columnView struct {
	Name          string  `json:"name" yaml:"name"`
	Type          string  `json:"type,omitempty" yaml:"type,omitempty"`
	GoType        string  `json:"go_type,omitempty" yaml:"go_type,omitempty"`
	Affinity      string  `json:"affinity,omitempty" yaml:"affinity,omitempty"`
	Length        int     `json:"length,omitempty" yaml:"length,omitempty"`
	Precision     int     `json:"precision,omitempty" yaml:"precision,omitempty"`
	Scale         int     `json:"scale,omitempty" yaml:"scale,omitempty"`
	NotNull       bool    `json:"not_null,omitempty" yaml:"not_null,omitempty"`
	PrimaryKey    bool    `json:"primary_key,omitempty" yaml:"primary_key,omitempty"`
	Unique        bool    `json:"unique,omitempty" yaml:"unique,omitempty"`
	AutoIncrement bool    `json:"autoincrement,omitempty" yaml:"autoincrement,omitempty"`
	Default       *string `json:"default,omitempty" yaml:"default,omitempty"`
	Collation     string  `json:"collation,omitempty" yaml:"collation,omitempty"`
	Generated     string  `json:"generated,omitempty" yaml:"generated,omitempty"`
	Stored        bool    `json:"stored,omitempty" yaml:"stored,omitempty"`
}

type keyView struct {
	Name    string   `json:"name" yaml:"name"`
	Columns []string `json:"columns" yaml:"columns"`
}

type checkView struct {
	Name       string `json:"name" yaml:"name"`
	Column     string `json:"column,omitempty" yaml:"column,omitempty"`
	Expression string `json:"expression" yaml:"expression"`
}

type foreignKeyView struct {
	Name              string   `json:"name" yaml:"name"`
	Columns           []string `json:"columns" yaml:"columns"`
	ReferencedTable   string   `json:"referenced_table" yaml:"referenced_table"`
	ReferencedColumns []string `json:"referenced_columns,omitempty" yaml:"referenced_columns,omitempty"`
	OnDelete          string   `json:"on_delete" yaml:"on_delete"`
	OnUpdate          string   `json:"on_update" yaml:"on_update"`
}

func newTableView(src *tableSource) tableView {
	t := src.Table
	v := tableView{
		Name:         t.Name,
		File:         src.File,
		Columns:      make([]columnView, 0, len(t.Columns)),
		WithoutRowID: t.WithoutRowID,
		Strict:       t.Strict,
	}

	for _, c := range t.Columns {
		v.Columns = append(v.Columns, columnView{
			Name:          c.Name,
			Type:          c.RawType,
			GoType:        types.GoTypeName(c.Type.GoType),
			Affinity:      string(c.Type.Affinity),
			Length:        c.Length,
			Precision:     c.Precision,
			Scale:         c.Scale,
			NotNull:       c.NotNull,
			PrimaryKey:    c.PrimaryKey,
			Unique:        c.Unique,
			AutoIncrement: c.AutoIncrement,
			Default:       c.Default,
			Collation:     c.Collation,
			Generated:     c.Generated,
			Stored:        c.GeneratedStored,
		})
	}

	if pk := t.PrimaryKey; pk != nil {
		v.PrimaryKey = &keyView{Name: pk.Name, Columns: keyColumns(pk.Columns)}
	}
	for _, u := range t.Uniques {
		v.Uniques = append(v.Uniques, keyView{Name: u.Name, Columns: keyColumns(u.Columns)})
	}
	for _, c := range t.Checks {
		v.Checks = append(v.Checks, checkView{Name: c.Name, Column: c.Column, Expression: c.Expression})
	}
	for _, d := range t.Defaults {
		v.Defaults = append(v.Defaults, checkView{Name: d.Name, Column: d.Column, Expression: d.Expression})
	}
	for _, fk := range t.ForeignKeys {
		v.ForeignKeys = append(v.ForeignKeys, foreignKeyView{
			Name:              fk.Name,
			Columns:           fk.Columns,
			ReferencedTable:   fk.ReferencedTable,
			ReferencedColumns: fk.ReferencedColumns,
			OnDelete:          string(fk.OnDelete),
			OnUpdate:          string(fk.OnUpdate),
		})
	}
	return v
}

func keyColumns(cols []schema.IndexedColumn) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
		if c.Descending {
			out[i] += " DESC"
		}
	}
	return out
}

// printTables writes the tables as text, json or yaml
func printTables(w io.Writer, tables []*tableSource, format string) error {
	views := make([]tableView, len(tables))
	for i, t := range tables {
		views[i] = newTableView(t)
	}

	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(views); err != nil {
			return err
		}
		return enc.Close()
	case "", "text":
		return printText(w, views)
	}
	return fmt.Errorf("unknown output format %q", format)
}

func printText(w io.Writer, views []tableView) error {
	for i, v := range views {
		if i > 0 {
			fmt.Fprintln(w)
		}
		header := "TABLE " + v.Name
		if v.File != "" {
			header += " (" + v.File + ")"
		}
		fmt.Fprintln(w, header)

		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, c := range v.Columns {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", c.Name, columnTypeText(c), c.GoType, columnFlags(c))
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		if v.PrimaryKey != nil {
			fmt.Fprintf(w, "  PRIMARY KEY %s (%s)\n", v.PrimaryKey.Name, strings.Join(v.PrimaryKey.Columns, ", "))
		}
		for _, u := range v.Uniques {
			fmt.Fprintf(w, "  UNIQUE %s (%s)\n", u.Name, strings.Join(u.Columns, ", "))
		}
		for _, c := range v.Checks {
			fmt.Fprintf(w, "  CHECK %s (%s)\n", c.Name, c.Expression)
		}
		for _, fk := range v.ForeignKeys {
			fmt.Fprintf(w, "  FOREIGN KEY %s (%s) -> %s (%s) ON DELETE %s ON UPDATE %s\n",
				fk.Name, strings.Join(fk.Columns, ", "), fk.ReferencedTable,
				strings.Join(fk.ReferencedColumns, ", "), fk.OnDelete, fk.OnUpdate)
		}
		var opts []string
		if v.WithoutRowID {
			opts = append(opts, "WITHOUT ROWID")
		}
		if v.Strict {
			opts = append(opts, "STRICT")
		}
		if len(opts) > 0 {
			fmt.Fprintf(w, "  OPTIONS %s\n", strings.Join(opts, ", "))
		}
	}
	return nil
}

func columnTypeText(c columnView) string {
	switch {
	case c.Precision > 0:
		return fmt.Sprintf("%s(%d,%d)", c.Type, c.Precision, c.Scale)
	case c.Length > 0:
		return fmt.Sprintf("%s(%d)", c.Type, c.Length)
	case c.Type == "":
		return "-"
	}
	return c.Type
}

func columnFlags(c columnView) string {
	var flags []string
	if c.PrimaryKey {
		flags = append(flags, "pk")
	}
	if c.AutoIncrement {
		flags = append(flags, "autoincrement")
	}
	if c.NotNull {
		flags = append(flags, "not null")
	}
	if c.Unique {
		flags = append(flags, "unique")
	}
	if c.Default != nil {
		flags = append(flags, "default "+*c.Default)
	}
	if c.Collation != "" {
		flags = append(flags, "collate "+c.Collation)
	}
	if c.Generated != "" {
		kind := "virtual"
		if c.Stored {
			kind = "stored"
		}
		flags = append(flags, fmt.Sprintf("generated %s (%s)", kind, c.Generated))
	}
	return strings.Join(flags, ", ")
}
