// Package lint reports T-SQL constructs left in converted SQL.
//
// The checker lexes its input with a participle stateful lexer that mirrors
// Snowflake's view of the text: strings, quoted identifiers and comments are
// opaque, everything else is matched against a table of T-SQL-only constructs.
// Lexing never fails; bytes no rule recognizes become single-character tokens.
package lint

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

// Construct identifies a class of residual T-SQL.
type Construct string

const (
	BracketIdentifier Construct = "bracket-identifier"
	TopClause         Construct = "top"
	LockHint          Construct = "lock-hint"
	TSQLFunction      Construct = "function"
	TSQLType          Construct = "type"
	SystemVariable    Construct = "system-variable"
	SetOption         Construct = "set-option"
	IdentityColumn    Construct = "identity"
)

// Finding is one residual construct.
type Finding struct {
	Line      int
	Column    int
	Construct Construct
	Message   string
}

func (f Finding) String() string {
	return fmt.Sprintf("%d:%d: %s", f.Line, f.Column, f.Message)
}

// Lexer tokenizes converted SQL. Rules that start with a lower-case letter are
// elided from the token stream.
var Lexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{Name: "whitespace", Pattern: `\s+`, Action: nil},
		{Name: "comment", Pattern: `--[^\n]*|/\*[\s\S]*?\*/`, Action: nil},
		{Name: "String", Pattern: `[Nn]?'(?:[^']|'')*'`, Action: nil},
		{Name: "QuotedIdent", Pattern: `"(?:[^"]|"")*"`, Action: nil},
		{Name: "Bracket", Pattern: `\[(?:[^\]]|\]\])*\]`, Action: nil},
		{Name: "unterminated", Pattern: `[Nn]?'[\s\S]*|"[\s\S]*|\[[\s\S]*|/\*[\s\S]*`, Action: nil},
		{Name: "SysVar", Pattern: `@@[A-Za-z_][A-Za-z0-9_]*`, Action: nil},
		{Name: "Variable", Pattern: `@[A-Za-z0-9_#$@]*`, Action: nil},
		{Name: "Ident", Pattern: `[A-Za-z_#][A-Za-z0-9_#$]*`, Action: nil},
		{Name: "Number", Pattern: `[0-9]+(?:\.[0-9]*)?(?:[eE][+-]?[0-9]+)?`, Action: nil},
		{Name: "Punct", Pattern: `[(),;.]`, Action: nil},
		{Name: "Char", Pattern: `[\s\S]`, Action: nil},
	},
})

var (
	symbols     = Lexer.Symbols()
	bracketType = symbols["Bracket"]
	sysVarType  = symbols["SysVar"]
	identType   = symbols["Ident"]
	punctType   = symbols["Punct"]
	elided      = map[lexer.TokenType]bool{
		symbols["whitespace"]:   true,
		symbols["comment"]:      true,
		symbols["unterminated"]: true,
		lexer.EOF:               true,
	}
	tsqlFunctions = map[string]string{
		"GETDATE":        "CURRENT_TIMESTAMP()",
		"ISNULL":         "COALESCE",
		"LEN":            "LENGTH",
		"CHARINDEX":      "POSITION",
		"CONVERT":        "CAST",
		"TRY_CONVERT":    "TRY_CAST",
		"NEWID":          "UUID_STRING",
		"DATEPART":       "DATE_PART",
		"SCOPE_IDENTITY": "a sequence",
	}
	tsqlTypes = map[string]string{
		"NVARCHAR":         "VARCHAR",
		"NCHAR":            "CHAR",
		"DATETIME":         "TIMESTAMP",
		"DATETIME2":        "TIMESTAMP",
		"SMALLDATETIME":    "TIMESTAMP",
		"UNIQUEIDENTIFIER": "VARCHAR(36)",
	}
	lockHints = map[string]struct{}{
		"NOLOCK": {}, "READPAST": {}, "ROWLOCK": {}, "UPDLOCK": {}, "TABLOCK": {},
		"TABLOCKX": {}, "HOLDLOCK": {}, "XLOCK": {}, "PAGLOCK": {}, "READUNCOMMITTED": {},
	}
)

// Check lexes sql and returns the residual T-SQL constructs it contains, in
// source order.
func Check(sql string) []Finding {
	lex, err := Lexer.LexString("", sql)
	if err != nil {
		return nil
	}
	all, err := lexer.ConsumeAll(lex)
	if err != nil {
		// unreachable: the Char rule matches any input
		return nil
	}
	tokens := all[:0]
	for _, tok := range all {
		if !elided[tok.Type] {
			tokens = append(tokens, tok)
		}
	}

	var findings []Finding
	report := func(tok lexer.Token, c Construct, format string, args ...any) {
		findings = append(findings, Finding{
			Line:      tok.Pos.Line,
			Column:    tok.Pos.Column,
			Construct: c,
			Message:   fmt.Sprintf(format, args...),
		})
	}

	for i, tok := range tokens {
		switch tok.Type {
		case bracketType:
			report(tok, BracketIdentifier, "bracket identifier %s should be double-quoted", tok.Value)
		case sysVarType:
			report(tok, SystemVariable, "system variable %s has no Snowflake equivalent", tok.Value)
		case identType:
			word := strings.ToUpper(tok.Value)
			next := peekValue(tokens, i+1)
			switch {
			case word == "TOP":
				report(tok, TopClause, "TOP was not rewritten; use LIMIT")
			case isLockHint(word):
				report(tok, LockHint, "table hint %s has no Snowflake equivalent", tok.Value)
			case word == "IDENTITY" && next == "(":
				report(tok, IdentityColumn, "IDENTITY column; use AUTOINCREMENT or a sequence")
			case word == "SET" && isIdent(tokens, i+1):
				opt := strings.ToUpper(tokens[i+1].Value)
				if opt == "NOCOUNT" || opt == "ANSI_NULLS" || opt == "QUOTED_IDENTIFIER" || opt == "XACT_ABORT" {
					report(tok, SetOption, "SET %s is a T-SQL session option", opt)
				}
			case next == "(" && tsqlFunctions[word] != "":
				report(tok, TSQLFunction, "%s is T-SQL; use %s", word, tsqlFunctions[word])
			case tsqlTypes[word] != "" && !isQualified(tokens, i):
				report(tok, TSQLType, "type %s; use %s", word, tsqlTypes[word])
			}
		}
	}
	return findings
}

func isLockHint(word string) bool {
	_, ok := lockHints[word]
	return ok
}

func peekValue(tokens []lexer.Token, i int) string {
	if i < len(tokens) && tokens[i].Type == punctType {
		return tokens[i].Value
	}
	return ""
}

func isIdent(tokens []lexer.Token, i int) bool {
	return i < len(tokens) && tokens[i].Type == identType
}

// isQualified reports whether the identifier at i is preceded by '.', in which
// case it names a column or table rather than a type.
func isQualified(tokens []lexer.Token, i int) bool {
	return i > 0 && tokens[i-1].Type == punctType && tokens[i-1].Value == "."
}
