package rewrite

import (
	"strings"

	"github.com/electwix/tsql2snow/internal/tokenizer"
)

// Result describes one conversion.
type Result struct {
	SQL        string
	Batches    int
	Statements int
	// Applied counts, per rule name, the statements the rule changed.
	Applied map[string]int
}

// Converter applies an ordered rule list to T-SQL input.
type Converter struct {
	rules     []Rule
	terminate bool
}

// New builds a Converter for opts.
func New(opts Options) *Converter {
	return &Converter{rules: buildRules(opts), terminate: opts.TerminateTrailing}
}

// NewWithRules builds a Converter that applies rules in order.
func NewWithRules(rules []Rule, terminateTrailing bool) *Converter {
	return &Converter{rules: append([]Rule(nil), rules...), terminate: terminateTrailing}
}

// Rules returns the converter's rules in application order.
func (c *Converter) Rules() []Rule {
	return append([]Rule(nil), c.rules...)
}

var defaultConverter = New(DefaultOptions())

// Convert rewrites T-SQL src into Snowflake SQL using the default rules.
// It never fails: constructs that are not recognized pass through unchanged.
func Convert(src string) string {
	return defaultConverter.Convert(src)
}

// Convert rewrites src and returns the Snowflake SQL.
func (c *Converter) Convert(src string) string {
	return c.ConvertDetailed(src).SQL
}

// ConvertDetailed rewrites src and reports what was done.
func (c *Converter) ConvertDetailed(src string) Result {
	res := Result{Applied: make(map[string]int)}
	batches := SplitBatches(src)
	out := make([]string, 0, len(batches))
	for _, batch := range batches {
		stmts := SplitStatements(batch)
		for i := range stmts {
			stmts[i].Text = c.rewriteStatement(stmts[i].Text, res.Applied)
			if stmts[i].Counts() {
				res.Statements++
			}
		}
		if text := assembleBatch(stmts, c.terminate); text != "" {
			out = append(out, text)
		}
	}
	res.Batches = len(out)
	res.SQL = strings.Join(out, "\n\n")
	return res
}

func (c *Converter) rewriteStatement(stmt string, applied map[string]int) string {
	code, lits := mask(stmt)
	for _, rule := range c.rules {
		next := rule.Rewrite(code, &lits)
		if next != code {
			applied[rule.Name]++
			code = next
		}
	}
	return lits.restore(code)
}

// assembleBatch joins a batch's statements and, when terminate is set, ends
// an unterminated final statement with ';'. The terminator goes after the
// last code token so it never lands inside a trailing comment. A statement
// ending in an unterminated literal is left alone.
func assembleBatch(stmts []Statement, terminate bool) string {
	if len(stmts) == 0 {
		return ""
	}
	last := &stmts[len(stmts)-1]
	if terminate && last.Code && !last.Terminated {
		last.Text = terminateAfterCode(last.Text)
		last.Terminated = true
	}
	var b strings.Builder
	for _, s := range stmts {
		b.WriteString(s.Text)
	}
	return strings.TrimSpace(b.String())
}

func terminateAfterCode(text string) string {
	end := -1
	open := false
	for tok := range tokenizer.ScanSeq(text) {
		if tok.Kind != tokenizer.KindEOF && tok.Kind != tokenizer.KindComment {
			end = tok.End
			open = tok.Unterminated
		}
	}
	if end < 0 || open {
		return text
	}
	return text[:end] + ";" + text[end:]
}
