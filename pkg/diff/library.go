package diff

import (
	"fmt"
	"strings"

	"github.com/mizuchilabs/sqlite-ddl/pkg/parser"
	"github.com/mizuchilabs/sqlite-ddl/pkg/schema"
	"golang.org/x/sync/errgroup"
)

// Compare compares a database against a schema directory and returns changes
func Compare(dbPath, schemaDir string) ([]Change, error) {
	return compareLoaded(
		func() (*schema.Database, error) { return parser.FromDatabase(dbPath) },
		func() (*schema.Database, error) { return parser.FromDirectory(schemaDir) },
	)
}

// CompareDatabases compares two databases
func CompareDatabases(fromDB, toDB string) ([]Change, error) {
	return compareLoaded(
		func() (*schema.Database, error) { return parser.FromDatabase(fromDB) },
		func() (*schema.Database, error) { return parser.FromDatabase(toDB) },
	)
}

// compareLoaded loads both schemas concurrently and diffs them
func compareLoaded(loadFrom, loadTo func() (*schema.Database, error)) ([]Change, error) {
	var from, to *schema.Database

	var g errgroup.Group
	g.Go(func() (err error) {
		from, err = loadFrom()
		return err
	})
	g.Go(func() (err error) {
		to, err = loadTo()
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return Diff(from, to), nil
}

// ShowChanges prints a human-readable summary of changes to stdout.
// Destructive changes are marked with "-", all others with "+".
func ShowChanges(changes []Change) {
	destructive := 0
	for _, c := range changes {
		symbol := "+"
		if c.Destructive {
			symbol = "-"
			destructive++
		}
		fmt.Printf("  [%s] %s: %s\n", symbol, strings.ToLower(string(c.Type)), c.Description)
	}
	fmt.Printf("\nTotal changes: %d (%d destructive)\n", len(changes), destructive)
}
