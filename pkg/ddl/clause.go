package ddl

import "strings"

// Clause is a node of the clause tree: either a *Word or a *Group.
type Clause interface {
	// String renders the clause back to SQL text.
	String() string
	clause()
}

// Word is a single token. Open and Close hold the quote characters the
// token was written with, if any; Text is the unquoted content.
type Word struct {
	Text  string
	Open  string
	Close string
}

// Group is an ordered list of child clauses. Paren groups were delimited by
// parentheses and hold one child per comma-separated item. A statement
// group renders with a trailing semicolon.
type Group struct {
	Children  []Clause
	Paren     bool
	Statement bool

	parent *Group
}

func (*Word) clause()  {}
func (*Group) clause() {}

// NewWord wraps token text, splitting off a surrounding quote pair
func NewWord(text string) *Word {
	if len(text) >= 2 {
		open, last := text[0], text[len(text)-1]
		if q, ok := closingQuote(open); ok && last == q && closesAtEnd(text, q) {
			return &Word{Text: text[1 : len(text)-1], Open: string(open), Close: string(q)}
		}
	}
	return &Word{Text: text}
}

// closesAtEnd reports whether the quoted run opened at text[0] ends at the
// last byte, so 'a'||'b' is not mistaken for one quoted word
func closesAtEnd(text string, q byte) bool {
	for i := 1; i < len(text)-1; i++ {
		if text[i] != q {
			continue
		}
		if q == ']' || text[i+1] != q {
			return false
		}
		i++
	}
	return true
}

// Quoted reports whether the word was written inside quotes
func (w *Word) Quoted() bool {
	return w.Open != ""
}

// Keyword returns the upper-cased text of an unquoted word and "" for a
// quoted one, so quoted identifiers never match keywords.
func (w *Word) Keyword() string {
	if w.Quoted() {
		return ""
	}
	return strings.ToUpper(w.Text)
}

func (w *Word) String() string {
	return w.Open + w.Text + w.Close
}

func (g *Group) add(c Clause) {
	if child, ok := c.(*Group); ok {
		child.parent = g
	}
	g.Children = append(g.Children, c)
}

func (g *Group) String() string {
	var sb strings.Builder
	if g.Paren {
		sb.WriteByte('(')
		for i, c := range g.Children {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(c.String())
		}
		sb.WriteByte(')')
	} else {
		for i, c := range g.Children {
			// Parenthesized arguments stick to the word before them: VARCHAR(10).
			if i > 0 && !(isParen(c) && isWord(g.Children[i-1])) {
				sb.WriteByte(' ')
			}
			sb.WriteString(c.String())
		}
	}
	if g.Statement {
		sb.WriteByte(';')
	}
	return sb.String()
}

// Inner renders the children of a group without its own parentheses
func (g *Group) Inner() string {
	inner := *g
	inner.Paren, inner.Statement = false, false
	if !g.Paren {
		return inner.String()
	}
	parts := make([]string, len(g.Children))
	for i, c := range g.Children {
		parts[i] = c.String()
	}
	return strings.Join(parts, ", ")
}

func isParen(c Clause) bool {
	g, ok := c.(*Group)
	return ok && g.Paren
}

func isWord(c Clause) bool {
	_, ok := c.(*Word)
	return ok
}

// Build nests a statement's tokens into a clause tree. The tree is not yet
// reduced; every parenthesized group wraps one plain group per item.
func Build(tokens []Token) *Group {
	root := &Group{Statement: true}
	active := root

	for _, tok := range tokens {
		switch tok.Kind {
		case TokenOpenParen:
			paren := &Group{Paren: true}
			active.add(paren)
			item := &Group{}
			paren.add(item)
			active = item
		case TokenCloseParen:
			// Unbalanced closers leave the active group where it is.
			if active.parent != nil && active.parent.parent != nil {
				active = active.parent.parent
			}
		case TokenComma:
			if active.parent == nil {
				active.add(&Word{Text: ","})
				continue
			}
			item := &Group{}
			active.parent.add(item)
			active = item
		default:
			active.add(NewWord(tok.Text))
		}
	}

	return root
}

// Reduce removes the wrapper layers left by Build: single-child chains of
// plain groups are spliced out and plain groups holding one word become
// that word. Reducing an already reduced tree changes nothing.
func Reduce(c Clause) Clause {
	g, ok := c.(*Group)
	if !ok {
		return c
	}

	for i, child := range g.Children {
		reduced := Reduce(child)
		if rg, ok := reduced.(*Group); ok {
			rg.parent = g
		}
		g.Children[i] = reduced
	}

	for len(g.Children) == 1 {
		inner, ok := g.Children[0].(*Group)
		if !ok || inner.Paren || inner.Statement || len(inner.Children) != 1 {
			break
		}
		grandchild := inner.Children[0]
		if gg, ok := grandchild.(*Group); ok {
			gg.parent = g
		}
		g.Children[0] = grandchild
	}

	if !g.Paren && !g.Statement && len(g.Children) == 1 {
		if w, ok := g.Children[0].(*Word); ok {
			return w
		}
	}
	return g
}

// ParseStatement tokenizes and builds the reduced clause tree of the first
// statement in sql. It returns nil when sql holds no tokens.
func ParseStatement(sql string) *Group {
	tokens := TokenizeStatement(sql)
	if len(tokens) == 0 {
		return nil
	}
	return Reduce(Build(tokens)).(*Group)
}
