package rewrite

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/electwix/tsql2snow/internal/tokenizer"
)

// Literals holds the text masked out of a statement before rules run:
// string literals, comments and quoted identifiers.
type Literals struct {
	texts []string
	// bracketed[i] is set when texts[i] is a closed [name] identifier.
	bracketed []bool
}

var placeholderPattern = regexp.MustCompile(`\x00([0-9]+)\x00`)

func placeholder(i int) string {
	return "\x00" + strconv.Itoa(i) + "\x00"
}

func (l Literals) index(ph string) (int, bool) {
	m := placeholderPattern.FindStringSubmatch(ph)
	if m == nil || m[0] != ph {
		return 0, false
	}
	idx, err := strconv.Atoi(m[1])
	if err != nil || idx < 0 || idx >= len(l.texts) {
		return 0, false
	}
	return idx, true
}

// Lookup resolves a placeholder produced by masking back to its source text.
func (l Literals) Lookup(ph string) (string, bool) {
	idx, ok := l.index(ph)
	if !ok {
		return "", false
	}
	return l.texts[idx], true
}

// Len returns the number of masked literals.
func (l Literals) Len() int { return len(l.texts) }

func (l *Literals) add(text string, bracketed bool) string {
	l.texts = append(l.texts, text)
	l.bracketed = append(l.bracketed, bracketed)
	return placeholder(len(l.texts) - 1)
}

func (l Literals) restore(code string) string {
	if len(l.texts) == 0 {
		return code
	}
	return placeholderPattern.ReplaceAllStringFunc(code, func(ph string) string {
		if text, ok := l.Lookup(ph); ok {
			return text
		}
		return ph
	})
}

// mask replaces string literals, comments and quoted identifiers in stmt
// with placeholders. Line comments are masked together with their
// terminating newline so text appended after a placeholder never lands
// inside the comment. Any other token holding a NUL byte is masked too, so
// the only NULs left in the code are placeholder delimiters.
func mask(stmt string) (string, Literals) {
	var lits Literals
	var b strings.Builder
	cursor := 0
	for tok := range tokenizer.ScanSeq(stmt) {
		switch {
		case tok.Kind == tokenizer.KindString, tok.Kind == tokenizer.KindComment,
			tok.Kind == tokenizer.KindQuotedIdentifier:
		case tok.Kind != tokenizer.KindEOF && strings.IndexByte(tok.Text, 0) >= 0:
		default:
			continue
		}
		end := tok.End
		if tok.Kind == tokenizer.KindComment && strings.HasPrefix(tok.Text, "--") && end < len(stmt) && stmt[end] == '\n' {
			end++
		}
		bracketed := tok.Kind == tokenizer.KindQuotedIdentifier && !tok.Unterminated && strings.HasPrefix(tok.Text, "[")
		b.WriteString(stmt[cursor:tok.Offset])
		b.WriteString(lits.add(stmt[tok.Offset:end], bracketed))
		cursor = end
	}
	if len(lits.texts) == 0 {
		return stmt, lits
	}
	b.WriteString(stmt[cursor:])
	return b.String(), lits
}
