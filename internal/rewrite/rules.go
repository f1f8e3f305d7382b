package rewrite

import (
	"regexp"
	"slices"
	"strings"
)

// Rule is one rewriting pass over a masked statement. Rewrite must return
// code unchanged when its pattern does not match cleanly. A rule that
// introduces quoted text registers it with lits and writes the placeholder.
type Rule struct {
	Name    string
	Rewrite func(code string, lits *Literals) string
}

// Rule names, in application order.
const (
	RuleIdentifiers = "identifiers"
	RuleTableHints  = "table-hints"
	RuleRenames     = "renames"
	RuleRestructure = "restructure"
	RuleTypeAliases = "type-aliases"
	RuleDateParts   = "date-parts"
	RuleRowLimit    = "row-limit"
	RuleTidy        = "tidy"
)

// Options controls which rules a Converter applies.
type Options struct {
	// Tidy removes horizontal whitespace before ',' and ')' and after '('.
	Tidy bool
	// TerminateTrailing appends ';' to a final statement that lacks one.
	TerminateTrailing bool
	// Renames maps additional function names to their replacements. Calls
	// keep their argument lists.
	Renames map[string]string
}

// DefaultOptions returns the options used by Convert.
func DefaultOptions() Options {
	return Options{Tidy: true, TerminateTrailing: true}
}

// DefaultRules returns the rule list used by Convert.
func DefaultRules() []Rule {
	return buildRules(DefaultOptions())
}

func buildRules(opts Options) []Rule {
	rules := []Rule{
		{Name: RuleIdentifiers, Rewrite: rewriteIdentifiers},
		{Name: RuleTableHints, Rewrite: stripTableHints},
		{Name: RuleRenames, Rewrite: renameRule(opts.Renames)},
		{Name: RuleRestructure, Rewrite: restructureCalls},
		{Name: RuleTypeAliases, Rewrite: rewriteTypeAliases},
		{Name: RuleDateParts, Rewrite: canonicalizeDateParts},
		{Name: RuleRowLimit, Rewrite: topToLimit},
	}
	if opts.Tidy {
		rules = append(rules, Rule{Name: RuleTidy, Rewrite: tidy})
	}
	return rules
}

type replacement struct {
	pattern *regexp.Regexp
	with    string
}

func applyAll(code string, reps []replacement) string {
	for _, r := range reps {
		code = r.pattern.ReplaceAllString(code, r.with)
	}
	return code
}

// rewriteIdentifiers turns masked [name] identifiers into "name".
func rewriteIdentifiers(code string, lits *Literals) string {
	if lits.Len() == 0 {
		return code
	}
	return placeholderPattern.ReplaceAllStringFunc(code, func(ph string) string {
		idx, ok := lits.index(ph)
		if !ok || !lits.bracketed[idx] {
			return ph
		}
		quoted, ok := quoteIdentifier(lits.texts[idx])
		if !ok {
			return ph
		}
		return lits.add(quoted, false)
	})
}

// quoteIdentifier converts a closed bracket identifier to a double-quoted
// one: "]]" becomes "]" and embedded '"' is doubled.
func quoteIdentifier(bracketed string) (string, bool) {
	if len(bracketed) < 3 || bracketed[0] != '[' || bracketed[len(bracketed)-1] != ']' {
		return "", false
	}
	name := strings.ReplaceAll(bracketed[1:len(bracketed)-1], "]]", "]")
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`, true
}

// Hints that only affect locking and have no Snowflake counterpart.
var lockHints = []string{
	"HOLDLOCK", "NOLOCK", "NOWAIT", "PAGLOCK", "READCOMMITTED",
	"READCOMMITTEDLOCK", "READPAST", "READUNCOMMITTED", "REPEATABLEREAD",
	"ROWLOCK", "SERIALIZABLE", "TABLOCK", "TABLOCKX", "UPDLOCK", "XLOCK",
}

var tableHint = func() *regexp.Regexp {
	hint := `(?:` + strings.Join(lockHints, "|") + `)\b`
	return regexp.MustCompile(`(?i)\s*\bWITH\s*\(\s*` + hint + `(?:\s*,\s*` + hint + `)*\s*\)`)
}()

// stripTableHints removes lock hints with the whitespace before them. A
// hint directly followed by a word keeps one space in its place.
func stripTableHints(code string, _ *Literals) string {
	locs := tableHint.FindAllStringIndex(code, -1)
	if locs == nil {
		return code
	}
	var b strings.Builder
	cursor := 0
	for _, loc := range locs {
		b.WriteString(code[cursor:loc[0]])
		if loc[1] < len(code) && joinsWord(code[loc[1]]) {
			b.WriteByte(' ')
		}
		cursor = loc[1]
	}
	b.WriteString(code[cursor:])
	return b.String()
}

// joinsWord reports whether c would fuse with a preceding identifier.
// Placeholders start with NUL and may stand for a quoted identifier.
func joinsWord(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '_', c == '@', c == '#', c == '$', c == 0, c >= 0x80:
		return true
	}
	return false
}

var builtinRenames = []replacement{
	{regexp.MustCompile(`(?i)\bISNULL\s*\(`), "COALESCE("},
	{regexp.MustCompile(`(?i)\bGETDATE\s*\(\s*\)`), "CURRENT_TIMESTAMP()"},
	{regexp.MustCompile(`(?i)\bLEN\s*\(`), "LENGTH("},
}

func renameRule(extra map[string]string) func(string, *Literals) string {
	reps := slices.Clone(builtinRenames)
	names := make([]string, 0, len(extra))
	for name := range extra {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		target := strings.TrimSpace(extra[name])
		if strings.TrimSpace(name) == "" || target == "" {
			continue
		}
		reps = append(reps, replacement{
			pattern: regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(strings.TrimSpace(name)) + `\s*\(`),
			with:    strings.ReplaceAll(target, "$", "$$") + "(",
		})
	}
	return func(code string, _ *Literals) string {
		return applyAll(code, reps)
	}
}

var typeAliases = []replacement{
	{regexp.MustCompile(`(?i)\bN?VARCHAR\s*\(\s*MAX\s*\)`), "VARCHAR"},
	{regexp.MustCompile(`(?i)\bNVARCHAR\b`), "VARCHAR"},
	{regexp.MustCompile(`(?i)\bDATETIME2?\b`), "TIMESTAMP"},
}

func rewriteTypeAliases(code string, _ *Literals) string {
	return applyAll(code, typeAliases)
}

var (
	tidyBeforeClose = regexp.MustCompile(`[ \t]+([,)])`)
	tidyAfterOpen   = regexp.MustCompile(`\([ \t]+`)
)

func tidy(code string, _ *Literals) string {
	code = tidyBeforeClose.ReplaceAllString(code, "$1")
	return tidyAfterOpen.ReplaceAllString(code, "(")
}
