package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mizuchilabs/sqlite-ddl/pkg/ddl"
	"github.com/mizuchilabs/sqlite-ddl/pkg/diff"
	"github.com/mizuchilabs/sqlite-ddl/pkg/parser"
	"github.com/urfave/cli/v3"
)

var commands = []*cli.Command{diffCMD, applyCMD, dumpCMD, inspectCMD, parseCMD}

var databaseFlag = &cli.StringFlag{
	Name:     "database",
	Aliases:  []string{"db"},
	Usage:    "Path to SQLite database file",
	Required: true,
	Sources:  cli.EnvVars("SQLITE_DDL_DATABASE"),
}

var schemaFlag = &cli.StringFlag{
	Name:    "schema",
	Aliases: []string{"s"},
	Value:   "schema",
	Usage:   "Path to schema directory containing .sql files",
	Sources: cli.EnvVars("SQLITE_DDL_SCHEMA"),
}

var formatFlag = &cli.StringFlag{
	Name:    "format",
	Aliases: []string{"F"},
	Value:   "text",
	Usage:   "Output format (text, json, yaml)",
}

var diffCMD = &cli.Command{
	Name:  "diff",
	Usage: "Show schema differences between database and schema files",
	Flags: []cli.Flag{
		databaseFlag,
		schemaFlag,
		&cli.StringFlag{
			Name:  "target",
			Usage: "Compare against another database instead of the schema directory",
		},
		&cli.BoolFlag{
			Name:  "sql",
			Usage: "Output migration SQL instead of human-readable diff",
		},
	},
	Action: func(ctx context.Context, cmd *cli.Command) error {
		dbPath := cmd.String("database")

		var changes []diff.Change
		var err error
		if target := cmd.String("target"); target != "" {
			changes, err = diff.CompareDatabases(dbPath, target)
		} else {
			changes, err = diff.Compare(dbPath, cmd.String("schema"))
		}
		if err != nil {
			return err
		}

		if len(changes) == 0 {
			fmt.Println("No schema changes detected.")
			return nil
		}

		if cmd.Bool("sql") {
			fmt.Println(diff.GenerateSQL(changes))
		} else {
			diff.ShowChanges(changes)
		}
		return nil
	},
}

var applyCMD = &cli.Command{
	Name:  "apply",
	Usage: "Apply schema changes to database",
	Flags: []cli.Flag{
		databaseFlag,
		schemaFlag,
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Show what would be applied without making changes",
		},
		&cli.BoolFlag{
			Name:  "skip-destructive",
			Usage: "Skip destructive changes (drops, table recreations)",
		},
		&cli.BoolFlag{
			Name:  "backup",
			Usage: "Create backup before applying changes",
			Value: true,
		},
		&cli.BoolFlag{
			Name:    "force",
			Aliases: []string{"f"},
			Usage:   "Skip confirmation prompt for destructive changes",
		},
		&cli.BoolFlag{
			Name:  "show-changes",
			Usage: "Show changes that will be applied",
			Value: true,
		},
	},
	Action: func(ctx context.Context, cmd *cli.Command) error {
		dbPath := cmd.String("database")
		schemaDir := cmd.String("schema")
		dryRun := cmd.Bool("dry-run")
		skipDestructive := cmd.Bool("skip-destructive")

		changes, err := diff.Compare(dbPath, schemaDir)
		if err != nil {
			return err
		}
		if skipDestructive {
			changes = diff.FilterDestructive(changes)
		}

		if len(changes) == 0 {
			fmt.Println("No schema changes detected.")
			return nil
		}

		if cmd.Bool("show-changes") || dryRun {
			fmt.Println("Schema changes to be applied:")
			diff.ShowChanges(changes)
		}

		if dryRun {
			fmt.Println("\nDry run - no changes applied.")
			return nil
		}

		// Confirm destructive changes
		if diff.HasDestructive(changes) && !cmd.Bool("force") {
			fmt.Print("\nWARNING: Destructive changes detected. Continue? (yes/no): ")
			var response string
			if _, err := fmt.Scanln(&response); err != nil {
				return fmt.Errorf("read confirmation: %w", err)
			}
			if response != "yes" && response != "y" {
				fmt.Println("Aborted.")
				return nil
			}
		}

		opts := diff.ApplyOptions{
			SkipDestructive: skipDestructive,
			Backup:          cmd.Bool("backup"),
		}
		if err := diff.Apply(dbPath, schemaDir, opts); err != nil {
			return fmt.Errorf("apply changes: %w", err)
		}

		fmt.Println("\nSchema changes applied successfully!")
		return nil
	},
}

var dumpCMD = &cli.Command{
	Name:  "dump",
	Usage: "Dump database schema to files",
	Flags: []cli.Flag{
		databaseFlag,
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Value:   "out",
			Usage:   "Output directory for schema files",
		},
	},
	Action: func(ctx context.Context, cmd *cli.Command) error {
		return dumpSchema(cmd.String("database"), cmd.String("output"))
	},
}

var inspectCMD = &cli.Command{
	Name:  "inspect",
	Usage: "Show the tables recovered from a database's CREATE TABLE statements",
	Flags: []cli.Flag{
		databaseFlag,
		&cli.StringSliceFlag{
			Name:    "table",
			Aliases: []string{"t"},
			Usage:   "Only show these tables (repeatable)",
		},
		formatFlag,
	},
	Action: func(ctx context.Context, cmd *cli.Command) error {
		s, err := parser.FromDatabase(cmd.String("database"))
		if err != nil {
			return fmt.Errorf("extract schema: %w", err)
		}

		tables, err := selectTables(s.Tables, cmd.StringSlice("table"))
		if err != nil {
			return err
		}
		return printTables(os.Stdout, tables, cmd.String("format"))
	},
}

var parseCMD = &cli.Command{
	Name:      "parse",
	Usage:     "Parse CREATE TABLE statements from .sql files without a database",
	ArgsUsage: "<file.sql>...",
	Flags: []cli.Flag{
		formatFlag,
		&cli.BoolFlag{
			Name:  "render",
			Usage: "Print the parsed tables as normalized CREATE TABLE statements",
		},
	},
	Action: func(ctx context.Context, cmd *cli.Command) error {
		files := cmd.Args().Slice()
		if len(files) == 0 {
			return fmt.Errorf("parse: at least one .sql file is required")
		}

		resolver := parser.TypeResolver()
		var tables []*tableSource
		for _, path := range files {
			content, err := os.ReadFile(filepath.Clean(path))
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			parsed := ddl.ParseScript(string(content), resolver)
			slog.Debug("parsed file", "file", path, "tables", len(parsed))
			for _, t := range parsed {
				tables = append(tables, &tableSource{Table: t, File: path})
			}
		}

		if cmd.Bool("render") {
			for _, t := range tables {
				fmt.Printf("%s;\n\n", ddl.RenderCreateTable(t.Table))
			}
			return nil
		}
		return printTables(os.Stdout, tables, cmd.String("format"))
	},
}

func dumpSchema(dbPath, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0o750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	s, err := parser.FromDatabase(dbPath)
	if err != nil {
		return fmt.Errorf("extract schema: %w", err)
	}

	tables := make(map[string]string, len(s.Tables))
	for name, t := range s.Tables {
		tables[name] = t.SQL
		if strings.TrimSpace(t.SQL) == "" {
			tables[name] = ddl.RenderCreateTable(t)
		}
	}
	indexes := make(map[string]string, len(s.Indexes))
	for name, idx := range s.Indexes {
		indexes[name] = idx.SQL
	}
	views := make(map[string]string, len(s.Views))
	for name, v := range s.Views {
		views[name] = v.SQL
	}
	triggers := make(map[string]string, len(s.Triggers))
	for name, trg := range s.Triggers {
		triggers[name] = trg.SQL
	}

	for _, f := range []struct {
		file string
		sql  map[string]string
	}{
		{"tables.sql", tables},
		{"indexes.sql", indexes},
		{"views.sql", views},
		{"triggers.sql", triggers},
	} {
		if err := writeStatements(filepath.Join(outputDir, f.file), f.sql); err != nil {
			return err
		}
	}

	fmt.Printf("Schema dumped to %s/\n", outputDir)
	fmt.Printf("  Tables: %d\n", len(s.Tables))
	fmt.Printf("  Indexes: %d\n", len(s.Indexes))
	fmt.Printf("  Views: %d\n", len(s.Views))
	fmt.Printf("  Triggers: %d\n", len(s.Triggers))
	return nil
}

// writeStatements writes the statements ordered by object name. Nothing is
// written for an empty set.
func writeStatements(path string, stmts map[string]string) error {
	if len(stmts) == 0 {
		return nil
	}

	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()

	for _, name := range diff.SortedKeys(stmts) {
		if _, err := fmt.Fprintf(f, "%s;\n\n", strings.TrimSuffix(strings.TrimSpace(stmts[name]), ";")); err != nil {
			return fmt.Errorf("write %s: %w", filepath.Base(path), err)
		}
	}
	return f.Close()
}
