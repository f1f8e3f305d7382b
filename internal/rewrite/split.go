package rewrite

import (
	"regexp"
	"sort"
	"strings"

	"github.com/electwix/tsql2snow/internal/tokenizer"
)

// Statement is one semicolon-delimited piece of a batch.
type Statement struct {
	// Text is the verbatim statement, including leading whitespace and
	// comments and, when Terminated, the trailing semicolon.
	Text string
	// Terminated reports whether Text ends with a statement terminator.
	Terminated bool
	// Code reports whether Text holds anything besides comments and the
	// terminator.
	Code bool
}

// Counts reports whether the piece counts as a statement. Comment-only text
// after the last terminator is carried through but not counted.
func (s Statement) Counts() bool {
	return s.Terminated || s.Code
}

var batchSeparator = regexp.MustCompile(`(?i)^[ \t]*GO[ \t]*(?:;[ \t]*)?\r?$`)

func normalizeNewlines(src string) string {
	return strings.ReplaceAll(src, "\r\n", "\n")
}

// SplitBatches splits src on lines consisting solely of GO, optionally
// followed by a semicolon. A GO line that starts inside a multi-line string,
// quoted identifier or comment is not a separator. Batches are trimmed and
// empty batches are dropped.
func SplitBatches(src string) []string {
	src = normalizeNewlines(src)
	spans := literalSpans(src)

	var batches []string
	start := 0
	lineStart := 0
	for {
		lineEnd := len(src)
		if idx := strings.IndexByte(src[lineStart:], '\n'); idx >= 0 {
			lineEnd = lineStart + idx
		}
		if batchSeparator.MatchString(src[lineStart:lineEnd]) && !spans.covers(lineStart) {
			batches = appendBatch(batches, src[start:lineStart])
			start = min(lineEnd+1, len(src))
		}
		if lineEnd >= len(src) {
			break
		}
		lineStart = lineEnd + 1
	}
	return appendBatch(batches, src[start:])
}

func appendBatch(batches []string, text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return batches
	}
	return append(batches, text)
}

type span struct{ start, end int }

type spanList []span

func literalSpans(src string) spanList {
	var spans spanList
	for tok := range tokenizer.ScanSeq(src) {
		if tok.IsLiteral() && strings.IndexByte(tok.Text, '\n') >= 0 {
			spans = append(spans, span{tok.Offset, tok.End})
		}
	}
	return spans
}

// covers reports whether off falls strictly inside one of the spans. Spans
// come from the scanner and are sorted and disjoint.
func (l spanList) covers(off int) bool {
	i := sort.Search(len(l), func(i int) bool { return l[i].end > off })
	return i < len(l) && l[i].start < off
}

// SplitStatements splits a batch at semicolons that are outside string
// literals, quoted identifiers and comments.
func SplitStatements(batch string) []Statement {
	var stmts []Statement
	start := 0
	code := false
	for tok := range tokenizer.ScanSeq(batch) {
		switch {
		case tok.Kind == tokenizer.KindEOF:
		case tok.IsSymbol(";"):
			stmts = append(stmts, Statement{Text: batch[start:tok.End], Terminated: true, Code: code})
			start = tok.End
			code = false
		case tok.Kind != tokenizer.KindComment:
			code = true
		}
	}
	if rest := batch[start:]; strings.TrimSpace(rest) != "" {
		stmts = append(stmts, Statement{Text: rest, Code: code})
	}
	return stmts
}
