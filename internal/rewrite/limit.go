package rewrite

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	limitKeyword = regexp.MustCompile(`(?i)\bLIMIT\b`)
	// Leading SELECT [DISTINCT] TOP n or TOP (n). Comment placeholders may
	// precede SELECT.
	selectTop = regexp.MustCompile(`(?i)^((?:\s|\x00[0-9]+\x00)*SELECT\s+)(DISTINCT\s+)?TOP(?:\s*\(\s*([0-9]+)\s*\)|\s+([0-9]+)\b)\s*`)
	topSuffix = regexp.MustCompile(`(?i)^(?:PERCENT\b|WITH\s+TIES\b)`)
)

// topToLimit moves a leading TOP clause to a trailing LIMIT. Statements that
// already carry LIMIT, use TOP ... PERCENT or WITH TIES, or place TOP
// anywhere but the leading SELECT are left unchanged.
func topToLimit(code string, lits *Literals) string {
	if limitKeyword.MatchString(code) {
		return code
	}
	m := selectTop.FindStringSubmatchIndex(code)
	if m == nil {
		return code
	}
	rest := code[m[1]:]
	if topSuffix.MatchString(rest) {
		return code
	}

	prefix := code[m[2]:m[3]]
	distinct := ""
	if m[4] >= 0 {
		distinct = code[m[4]:m[5]]
	}
	n := ""
	if m[6] >= 0 {
		n = code[m[6]:m[7]]
	} else {
		n = code[m[8]:m[9]]
	}

	body := strings.TrimRightFunc(rest, unicode.IsSpace)
	terminator := ""
	if strings.HasSuffix(body, ";") {
		terminator = ";"
		body = strings.TrimRightFunc(strings.TrimSuffix(body, ";"), unicode.IsSpace)
	}
	if endsInLineComment(body, lits) {
		body += "\n"
	} else {
		body += " "
	}
	return prefix + distinct + body + "LIMIT " + n + terminator
}

var trailingPlaceholder = regexp.MustCompile(`\x00[0-9]+\x00$`)

func endsInLineComment(code string, lits *Literals) bool {
	ph := trailingPlaceholder.FindString(code)
	if ph == "" {
		return false
	}
	text, ok := lits.Lookup(ph)
	return ok && strings.HasPrefix(text, "--") && !strings.HasSuffix(text, "\n")
}
