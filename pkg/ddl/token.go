// Package ddl recovers structured table definitions from SQLite CREATE TABLE
// statements without a full SQL grammar.
//
// Parsing runs in three passes: Tokenize splits raw text into words and
// punctuation, Build nests the tokens into a clause tree by parentheses and
// commas, and ParseCreateTable walks the reduced tree to fill a schema.Table.
// Malformed or unrecognized pieces are skipped rather than reported.
package ddl

import "strings"

// TokenKind distinguishes words from structural punctuation
type TokenKind int

const (
	TokenWord TokenKind = iota
	TokenOpenParen
	TokenCloseParen
	TokenComma
)

// Token is a single lexical unit of a statement
type Token struct {
	Kind TokenKind
	Text string
}

func (t Token) String() string {
	return t.Text
}

// keywordPhrases are multi-word keywords merged into one token
var keywordPhrases = [][]string{
	{"UNSIGNED", "BIG", "INT"},
	{"PRIMARY", "KEY"},
	{"FOREIGN", "KEY"},
	{"ON", "DELETE"},
	{"ON", "UPDATE"},
	{"SET", "NULL"},
	{"SET", "DEFAULT"},
	{"NO", "ACTION"},
	{"NOT", "NULL"},
	{"VARYING", "CHARACTER"},
	{"NATIVE", "CHARACTER"},
	{"DOUBLE", "PRECISION"},
}

// closingQuote returns the delimiter closing a quoted run opened by c
func closingQuote(c byte) (byte, bool) {
	switch c {
	case '"', '\'', '`':
		return c, true
	case '[':
		return ']', true
	}
	return 0, false
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}

// Tokenize splits SQL text into statements of tokens. Comments are removed,
// quoted runs stay whole and semicolons outside quotes separate statements.
// Statements without tokens are dropped.
func Tokenize(sql string) [][]Token {
	var (
		statements [][]Token
		current    []Token
		buf        strings.Builder
		closeQuote byte
		inQuote    bool
	)

	flush := func() {
		if buf.Len() == 0 {
			return
		}
		current = append(current, Token{Kind: TokenWord, Text: buf.String()})
		buf.Reset()
	}
	emit := func(kind TokenKind, text string) {
		flush()
		current = append(current, Token{Kind: kind, Text: text})
	}
	endStatement := func() {
		flush()
		if len(current) > 0 {
			statements = append(statements, joinPhrases(current))
		}
		current = nil
	}

	for i := 0; i < len(sql); i++ {
		c := sql[i]
		if inQuote {
			buf.WriteByte(c)
			if c != closeQuote {
				continue
			}
			// A doubled quote character is an escaped quote, not the end.
			if c != ']' && i+1 < len(sql) && sql[i+1] == c {
				buf.WriteByte(c)
				i++
				continue
			}
			inQuote = false
			// A qualified name such as "main"."users" stays one token.
			if i+1 < len(sql) && sql[i+1] == '.' {
				continue
			}
			flush()
			continue
		}

		switch {
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			flush()
			for i < len(sql) && sql[i] != '\n' {
				i++
			}
			continue
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			flush()
			end := strings.Index(sql[i+2:], "*/")
			if end < 0 {
				i = len(sql)
				continue
			}
			i += end + 3
			continue
		}

		if q, ok := closingQuote(c); ok && (c != '[' || buf.Len() == 0 || strings.HasSuffix(buf.String(), ".")) {
			inQuote, closeQuote = true, q
			buf.WriteByte(c)
			continue
		}

		switch {
		case c == '(':
			emit(TokenOpenParen, "(")
		case c == ')':
			emit(TokenCloseParen, ")")
		case c == ',':
			emit(TokenComma, ",")
		case c == ';':
			endStatement()
		case isSpace(c):
			flush()
		default:
			buf.WriteByte(c)
		}
	}
	endStatement()

	return statements
}

// joinPhrases merges runs of unquoted words spelling a keyword phrase into
// a single token, keeping their case and joining them with one space
func joinPhrases(tokens []Token) []Token {
	out := tokens[:0]
	for i := 0; i < len(tokens); i++ {
		n := phraseAt(tokens[i:])
		if n < 2 {
			out = append(out, tokens[i])
			continue
		}
		words := make([]string, n)
		for j := range n {
			words[j] = tokens[i+j].Text
		}
		out = append(out, Token{Kind: TokenWord, Text: strings.Join(words, " ")})
		i += n - 1
	}
	return out
}

// phraseAt returns the number of tokens of the keyword phrase starting
// tokens, or 0
func phraseAt(tokens []Token) int {
	for _, phrase := range keywordPhrases {
		if len(phrase) > len(tokens) {
			continue
		}
		match := true
		for j, word := range phrase {
			if tokens[j].Kind != TokenWord || !strings.EqualFold(tokens[j].Text, word) {
				match = false
				break
			}
		}
		if match {
			return len(phrase)
		}
	}
	return 0
}

// TokenizeStatement tokenizes text holding a single statement. Tokens after
// a first semicolon are ignored.
func TokenizeStatement(sql string) []Token {
	statements := Tokenize(sql)
	if len(statements) == 0 {
		return nil
	}
	return statements[0]
}
