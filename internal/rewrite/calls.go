package rewrite

import (
	"regexp"
	"strings"
)

// callRewrite restructures one function call given its trimmed arguments.
// It returns false when the argument shape is not one it handles.
type callRewrite func(args []string) (string, bool)

type callRule struct {
	open    *regexp.Regexp
	rewrite callRewrite
}

var callRules = []callRule{
	{regexp.MustCompile(`(?i)\bLEFT\s*\(`), func(args []string) (string, bool) {
		if len(args) != 2 {
			return "", false
		}
		return "SUBSTR(" + args[0] + ", 1, " + args[1] + ")", true
	}},
	{regexp.MustCompile(`(?i)\bCHARINDEX\s*\(`), func(args []string) (string, bool) {
		if len(args) != 2 {
			return "", false
		}
		return "POSITION(" + args[0] + " IN " + args[1] + ")", true
	}},
	{regexp.MustCompile(`(?i)\bTRY_CONVERT\s*\(`), func(args []string) (string, bool) {
		if len(args) != 2 {
			return "", false
		}
		return "TRY_CAST(" + args[1] + " AS " + args[0] + ")", true
	}},
	// The optional third CONVERT argument is a style code with no CAST
	// equivalent and is dropped.
	{regexp.MustCompile(`(?i)\bCONVERT\s*\(`), func(args []string) (string, bool) {
		if len(args) != 2 && len(args) != 3 {
			return "", false
		}
		return "CAST(" + args[1] + " AS " + args[0] + ")", true
	}},
}

func restructureCalls(code string, _ *Literals) string {
	for _, rule := range callRules {
		code = rewriteCalls(code, rule)
	}
	return code
}

// maxCallDepth bounds how deeply calls to one function are restructured
// inside each other. Calls nested deeper are left as written.
const maxCallDepth = 32

// rewriteCalls rewrites every call matched by rule.open. Arguments are located
// by balanced parentheses, so nested calls are handled innermost first. A call
// whose parentheses never balance ends the scan and the rest of the code is
// left as is.
func rewriteCalls(code string, rule callRule) string {
	if !rule.open.MatchString(code) {
		return code
	}
	w := callWriter{code: code, rule: rule, closing: matchParens(code)}
	return w.render(0, len(code), 0)
}

type callWriter struct {
	code string
	rule callRule
	// closing maps the index of each balanced '(' to its ')'.
	closing map[int]int
}

func (w *callWriter) render(from, to, depth int) string {
	var b strings.Builder
	cursor := from
	for cursor < to {
		loc := w.rule.open.FindStringIndex(w.code[cursor:to])
		if loc == nil {
			break
		}
		start, open := cursor+loc[0], cursor+loc[1]
		closing, ok := w.closing[open-1]
		if !ok || closing >= to {
			break
		}

		inner := w.code[open:closing]
		if depth < maxCallDepth {
			inner = w.render(open, closing, depth+1)
		}
		args := splitArgs(inner)
		b.WriteString(w.code[cursor:start])
		if out, ok := w.rule.rewrite(args); ok && !hasEmpty(args) {
			b.WriteString(out)
		} else {
			b.WriteString(w.code[start:open])
			b.WriteString(inner)
			b.WriteByte(')')
		}
		cursor = closing + 1
	}
	b.WriteString(w.code[cursor:to])
	return b.String()
}

func hasEmpty(args []string) bool {
	for _, a := range args {
		if a == "" {
			return true
		}
	}
	return false
}

// matchParens pairs parentheses in one pass. Quoted identifiers are skipped
// and unbalanced parentheses are left out of the result.
func matchParens(code string) map[int]int {
	pairs := make(map[int]int)
	var open []int
	for i := 0; i < len(code); i++ {
		switch code[i] {
		case '"', '[':
			i = skipQuoted(code, i)
		case '(':
			open = append(open, i)
		case ')':
			if n := len(open); n > 0 {
				pairs[open[n-1]] = i
				open = open[:n-1]
			}
		}
	}
	return pairs
}

// splitArgs splits an argument list at top-level commas and trims each
// argument.
func splitArgs(list string) []string {
	var args []string
	depth := 0
	start := 0
	for i := 0; i < len(list); i++ {
		switch list[i] {
		case '"', '[':
			i = skipQuoted(list, i)
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				args = append(args, strings.TrimSpace(list[start:i]))
				start = i + 1
			}
		}
	}
	return append(args, strings.TrimSpace(list[start:]))
}

// skipQuoted returns the index of the delimiter closing the quoted identifier
// starting at i, or the last index when it is unterminated.
func skipQuoted(s string, i int) int {
	closing := byte('"')
	if s[i] == '[' {
		closing = ']'
	}
	for j := i + 1; j < len(s); j++ {
		if s[j] != closing {
			continue
		}
		if j+1 < len(s) && s[j+1] == closing {
			j++
			continue
		}
		return j
	}
	return len(s) - 1
}
