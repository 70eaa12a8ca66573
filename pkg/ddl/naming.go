package ddl

import (
	"strconv"
	"strings"
)

// Generated names for constraints declared without CONSTRAINT <name>.

func primaryKeyName(table string) string {
	return "PK_" + table
}

func uniqueName(table string, columns []string) string {
	return "UQ_" + table + "_" + strings.Join(columns, "_")
}

// checkName numbers table checks by position in the table and second or
// later checks of one column by position on that column.
func checkName(table, column string, ordinal int) string {
	switch {
	case column == "":
		return "CK_" + table + "_" + strconv.Itoa(ordinal)
	case ordinal > 1:
		return "CK_" + table + "_" + column + "_" + strconv.Itoa(ordinal)
	}
	return "CK_" + table + "_" + column
}

func defaultName(table, column string) string {
	return "DF_" + table + "_" + column
}

func foreignKeyName(table string, columns []string, refTable string) string {
	return "FK_" + table + "_" + strings.Join(columns, "_") + "_" + refTable
}

func nameOr(explicit, generated string) string {
	if explicit != "" {
		return explicit
	}
	return generated
}

// lastIdentifier returns the unquoted final segment of a possibly
// schema-qualified name such as main.users or "main"."users".
func lastIdentifier(raw string) string {
	start := 0
	var quote byte
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '.':
			start = i + 1
		default:
			if q, ok := closingQuote(c); ok {
				quote = q
			}
		}
	}
	return NewWord(raw[start:]).Text
}
