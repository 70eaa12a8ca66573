// Package types resolves declared SQL column types to Go types
package types

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// TypeName is a parsed SQLite type name such as "UNSIGNED BIG INT" or
// "DECIMAL(10, 2)"
type TypeName struct {
	Words []string
	Args  []int
}

// Name returns the upper-cased words joined by single spaces
func (t TypeName) Name() string {
	return strings.ToUpper(strings.Join(t.Words, " "))
}

//nolint:govet // participle grammar tags are not standard struct tags
type typeNameGrammar struct {
	Words []string `@Ident+`
	Args  []int    `( "(" @Number ( "," @Number )? ")" )?`
}

var typeLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Number", Pattern: `[-+]?[0-9]+`},
	{Name: "Punct", Pattern: `[(),]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var typeParser = participle.MustBuild[typeNameGrammar](
	participle.Lexer(typeLexer),
	participle.Elide("Whitespace"),
)

// Parse parses a type name with optional size arguments
func Parse(s string) (TypeName, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return TypeName{}, fmt.Errorf("empty type name")
	}

	parsed, err := typeParser.ParseString("", s)
	if err != nil {
		return TypeName{}, fmt.Errorf("invalid type name %q: %w", s, err)
	}
	return TypeName{Words: parsed.Words, Args: parsed.Args}, nil
}
