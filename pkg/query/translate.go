package query

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/txn2/mcp-sapbo/pkg/client"
)

// unsupportedKeywords maps recognizable SQL constructs to the construct
// name used in the rejection message. Rejecting by name beats a generic
// syntax error: the caller learns which part of its query is out of scope.
var unsupportedKeywords = map[string]string{
	"WHERE":    "WHERE clause",
	"JOIN":     "JOIN",
	"INNER":    "JOIN",
	"LEFT":     "JOIN",
	"RIGHT":    "JOIN",
	"FULL":     "JOIN",
	"CROSS":    "JOIN",
	"GROUP":    "GROUP BY",
	"ORDER":    "ORDER BY",
	"HAVING":   "HAVING clause",
	"LIMIT":    "LIMIT clause",
	"OFFSET":   "OFFSET clause",
	"UNION":    "UNION",
	"DISTINCT": "DISTINCT",
}

// Translator parses query text and validates every name against the
// catalog.
type Translator struct {
	resolver Resolver
}

// NewTranslator creates a translator over the given resolver.
func NewTranslator(resolver Resolver) *Translator {
	return &Translator{resolver: resolver}
}

// Translate parses `SELECT col, col FROM table` and resolves the table
// and each column against the catalog. Validation order: syntax first,
// then the table, then each column in written order, failing on the first
// unresolved name. Nothing is fetched before the syntax is accepted.
func (t *Translator) Translate(ctx context.Context, queryText string) (*Request, error) {
	stmt, err := parse(queryText)
	if err != nil {
		return nil, err
	}

	ds, err := t.resolver.ResolveDataSource(ctx, stmt.table)
	if err != nil {
		return nil, err
	}

	req := &Request{DataSource: ds}
	for _, name := range stmt.columns {
		col, err := t.resolver.ResolveColumn(ctx, ds, name)
		if err != nil {
			return nil, err
		}
		req.Columns = append(req.Columns, col)
	}
	return req, nil
}

// statement is the parsed shape of an accepted query.
type statement struct {
	columns []string
	table   string
}

type token struct {
	text      string
	pos       int
	bracketed bool
	comma     bool
	eof       bool
}

// lexer produces identifier, bracketed-identifier, and comma tokens.
type lexer struct {
	input string
	pos   int
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.input) {
		r, size := utf8.DecodeRuneInString(l.input[l.pos:])
		if !unicode.IsSpace(r) {
			break
		}
		l.pos += size
	}
	if l.pos >= len(l.input) {
		return token{pos: l.pos, eof: true}, nil
	}

	start := l.pos
	switch c := l.input[l.pos]; {
	case c == ',':
		l.pos++
		return token{text: ",", pos: start, comma: true}, nil
	case c == '[':
		end := strings.IndexByte(l.input[l.pos:], ']')
		if end < 0 {
			return token{}, client.SyntaxAt(start, "unterminated bracket")
		}
		text := l.input[l.pos+1 : l.pos+end]
		l.pos += end + 1
		if strings.TrimSpace(text) == "" {
			return token{}, client.SyntaxAt(start, "empty bracketed name")
		}
		return token{text: text, pos: start, bracketed: true}, nil
	default:
		for l.pos < len(l.input) {
			if c := l.input[l.pos]; c == ',' || c == '[' {
				break
			}
			r, size := utf8.DecodeRuneInString(l.input[l.pos:])
			if unicode.IsSpace(r) {
				break
			}
			l.pos += size
		}
		return token{text: l.input[start:l.pos], pos: start}, nil
	}
}

// keyword reports whether an unbracketed token equals a keyword,
// case-insensitive. Bracketed names are never keywords, so a column or
// table may be named [From].
func (t token) keyword(word string) bool {
	return !t.bracketed && !t.comma && !t.eof && strings.EqualFold(t.text, word)
}

func parse(input string) (*statement, error) {
	l := &lexer{input: input}

	tok, err := l.next()
	if err != nil {
		return nil, err
	}
	if tok.eof {
		return nil, client.SyntaxAt(tok.pos, "empty query")
	}
	if !tok.keyword("SELECT") {
		return nil, client.SyntaxAt(tok.pos, "expected SELECT")
	}

	stmt := &statement{}
	for {
		tok, err = l.next()
		if err != nil {
			return nil, err
		}
		name, err := columnName(tok)
		if err != nil {
			return nil, err
		}
		stmt.columns = append(stmt.columns, name)

		tok, err = l.next()
		if err != nil {
			return nil, err
		}
		if tok.comma {
			continue
		}
		if tok.keyword("FROM") {
			break
		}
		if tok.eof {
			return nil, client.SyntaxAt(tok.pos, "expected FROM")
		}
		return nil, client.SyntaxAt(tok.pos, "expected ',' or FROM, got %q", tok.text)
	}

	tok, err = l.next()
	if err != nil {
		return nil, err
	}
	if tok.eof {
		return nil, client.SyntaxAt(tok.pos, "expected table name")
	}
	if tok.comma {
		return nil, client.SyntaxAt(tok.pos, "expected table name, got ','")
	}
	if !tok.bracketed {
		if construct, ok := unsupportedKeywords[strings.ToUpper(tok.text)]; ok {
			return nil, client.Unsupported(construct)
		}
		if strings.ContainsAny(tok.text, "()") {
			return nil, client.Unsupported("subquery")
		}
	}
	stmt.table = tok.text

	tok, err = l.next()
	if err != nil {
		return nil, err
	}
	switch {
	case tok.eof:
		return stmt, nil
	case tok.comma:
		return nil, client.Unsupported("multiple tables")
	case !tok.bracketed:
		if construct, ok := unsupportedKeywords[strings.ToUpper(tok.text)]; ok {
			return nil, client.Unsupported(construct)
		}
	}
	return nil, client.SyntaxAt(tok.pos, "unexpected input after table name: %q", tok.text)
}

// columnName validates one token of the column list.
func columnName(tok token) (string, error) {
	switch {
	case tok.eof:
		return "", client.SyntaxAt(tok.pos, "expected column name")
	case tok.comma:
		return "", client.SyntaxAt(tok.pos, "expected column name, got ','")
	case tok.bracketed:
		return tok.text, nil
	case tok.text == "*":
		return "", client.Unsupported("wildcard *")
	case tok.keyword("FROM") || tok.keyword("SELECT"):
		return "", client.SyntaxAt(tok.pos, "expected column name, got %q", tok.text)
	}
	if construct, ok := unsupportedKeywords[strings.ToUpper(tok.text)]; ok {
		return "", client.Unsupported(construct)
	}
	if strings.ContainsAny(tok.text, "()") {
		return "", client.Unsupported("function call")
	}
	return tok.text, nil
}
