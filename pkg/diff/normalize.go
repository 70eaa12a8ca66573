package diff

import (
	"strings"

	"github.com/mizuchilabs/sqlite-ddl/pkg/ddl"
)

// normalizeSQL canonicalizes SQL text for comparison. Comments and layout
// are dropped and everything outside string literals is lower-cased. With
// stripQuotes, identifier quotes are removed too (SQLite accepts both
// quoted and unquoted identifiers).
func normalizeSQL(sql string, stripQuotes bool) string {
	var sb strings.Builder

	for i, stmt := range ddl.Tokenize(sql) {
		if i > 0 {
			sb.WriteString("; ")
		}
		for j, tok := range stmt {
			if j > 0 && spaceBetween(stmt[j-1], tok) {
				sb.WriteByte(' ')
			}
			sb.WriteString(normalizeToken(tok, stripQuotes))
		}
	}

	return sb.String()
}

func normalizeToken(tok ddl.Token, stripQuotes bool) string {
	if tok.Kind != ddl.TokenWord {
		return tok.Text
	}

	// A word may mix bare text and quoted runs, as in a='x' or "t"."c".
	var sb strings.Builder
	text := tok.Text
	for len(text) > 0 {
		n := quotedRunLen(text)
		switch {
		case n == 0:
			sb.WriteString(strings.ToLower(text[:1]))
			n = 1
		case text[0] == '\'':
			// String literals are compared as written
			sb.WriteString(text[:n])
		case stripQuotes && n >= 2:
			sb.WriteString(strings.ToLower(text[1 : n-1]))
		default:
			sb.WriteString(strings.ToLower(text[:n]))
		}
		text = text[n:]
	}
	return sb.String()
}

// quotedRunLen returns the length of the quoted run opening text, including
// both delimiters, or 0 when text does not start with a quote. An
// unterminated run spans the rest of text.
func quotedRunLen(text string) int {
	var q byte
	switch text[0] {
	case '"', '\'', '`':
		q = text[0]
	case '[':
		q = ']'
	default:
		return 0
	}
	for i := 1; i < len(text); i++ {
		if text[i] != q {
			continue
		}
		if q != ']' && i+1 < len(text) && text[i+1] == q {
			i++
			continue
		}
		return i + 1
	}
	return len(text)
}

// spaceBetween decides the separator of two adjacent tokens: none around
// parentheses and "=", and a single space after commas and between words
func spaceBetween(prev, next ddl.Token) bool {
	switch {
	case prev.Kind == ddl.TokenOpenParen,
		next.Kind == ddl.TokenOpenParen,
		next.Kind == ddl.TokenCloseParen,
		next.Kind == ddl.TokenComma:
		return false
	case prev.Text == "=" || next.Text == "=":
		return false
	}
	return true
}
