package tokenizer

import (
	"strconv"
	"strings"
)

// Kind represents the classification of a scanned token.
type Kind int

const (
	// KindInvalid represents an unrecognized or placeholder token.
	KindInvalid Kind = iota
	// KindIdentifier represents bare identifiers, including #temp names.
	KindIdentifier
	// KindQuotedIdentifier represents "double-quoted" or [bracketed] identifiers.
	KindQuotedIdentifier
	// KindKeyword represents reserved words recognized by IsKeyword.
	KindKeyword
	// KindNumber represents numeric literals.
	KindNumber
	// KindString represents single-quoted string literals, with or without an N prefix.
	KindString
	// KindVariable represents @local and @@system variables.
	KindVariable
	// KindSymbol represents punctuation or operator symbols.
	KindSymbol
	// KindComment represents -- line comments and /* block */ comments.
	KindComment
	// KindEOF marks the logical end of the input.
	KindEOF
)

// Token is a unit emitted by the scanner. Offset and End are byte offsets into
// the scanned source so callers can slice the original text.
type Token struct {
	Kind   Kind
	Text   string
	Offset int
	End    int
	Line   int
	Column int
	// Unterminated is set on strings, quoted identifiers and block comments
	// that run to the end of the input without a closing delimiter.
	Unterminated bool
}

// IsLiteral reports whether the token's text must be treated as opaque by
// rewriting code: strings, quoted identifiers and comments.
func (t Token) IsLiteral() bool {
	switch t.Kind {
	case KindString, KindQuotedIdentifier, KindComment:
		return true
	}
	return false
}

// IsSymbol reports whether the token is the given symbol.
func (t Token) IsSymbol(sym string) bool {
	return t.Kind == KindSymbol && t.Text == sym
}

// IsKeyword reports whether the provided string matches a known T-SQL keyword.
func IsKeyword(s string) bool {
	if s == "" {
		return false
	}
	_, ok := keywords[strings.ToUpper(s)]
	return ok
}

var keywords = map[string]struct{}{
	"ALTER":     {},
	"AND":       {},
	"AS":        {},
	"ASC":       {},
	"BEGIN":     {},
	"BETWEEN":   {},
	"BY":        {},
	"CASE":      {},
	"CREATE":    {},
	"CROSS":     {},
	"DECLARE":   {},
	"DELETE":    {},
	"DESC":      {},
	"DISTINCT":  {},
	"DROP":      {},
	"ELSE":      {},
	"END":       {},
	"EXEC":      {},
	"EXISTS":    {},
	"FROM":      {},
	"FULL":      {},
	"GO":        {},
	"GOTO":      {},
	"GROUP":     {},
	"HAVING":    {},
	"IF":        {},
	"IN":        {},
	"INNER":     {},
	"INSERT":    {},
	"INTO":      {},
	"IS":        {},
	"JOIN":      {},
	"LEFT":      {},
	"LIKE":      {},
	"LIMIT":     {},
	"NOT":       {},
	"NULL":      {},
	"ON":        {},
	"OR":        {},
	"ORDER":     {},
	"OUTER":     {},
	"PERCENT":   {},
	"PROCEDURE": {},
	"RIGHT":     {},
	"SELECT":    {},
	"SET":       {},
	"TABLE":     {},
	"THEN":      {},
	"TIES":      {},
	"TOP":       {},
	"UNION":     {},
	"UPDATE":    {},
	"VALUES":    {},
	"VIEW":      {},
	"WHEN":      {},
	"WHERE":     {},
	"WHILE":     {},
	"WITH":      {},
}

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "Invalid"
	case KindIdentifier:
		return "Identifier"
	case KindQuotedIdentifier:
		return "QuotedIdentifier"
	case KindKeyword:
		return "Keyword"
	case KindNumber:
		return "Number"
	case KindString:
		return "String"
	case KindVariable:
		return "Variable"
	case KindSymbol:
		return "Symbol"
	case KindComment:
		return "Comment"
	case KindEOF:
		return "EOF"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}
