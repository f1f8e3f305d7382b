package rewrite

import (
	"maps"
	"regexp"
	"strings"
)

var datePartTable = map[string]string{
	"yy": "year", "yyyy": "year", "year": "year", "yr": "year",
	"qq": "quarter", "q": "quarter", "quarter": "quarter",
	"mm": "month", "m": "month", "month": "month",
	"wk": "week", "ww": "week", "week": "week",
	"dd": "day", "d": "day", "day": "day",
	"hh": "hour", "hour": "hour",
	"mi": "minute", "n": "minute", "minute": "minute",
	"ss": "second", "s": "second", "second": "second",
	"ms": "millisecond", "millisecond": "millisecond",
	"mcs": "microsecond", "us": "microsecond", "microsecond": "microsecond",
	"ns": "nanosecond", "nanosecond": "nanosecond",
}

// DatePartTable returns a copy of the date part abbreviation table, keyed by
// lower-case abbreviation.
func DatePartTable() map[string]string {
	return maps.Clone(datePartTable)
}

// CanonicalDatePart maps a T-SQL date part abbreviation to its canonical
// name. Lookup is case-insensitive.
func CanonicalDatePart(part string) (string, bool) {
	canonical, ok := datePartTable[strings.ToLower(part)]
	return canonical, ok
}

var (
	dateFunc         = regexp.MustCompile(`(?i)\b(DATEADD|DATEDIFF)(\s*\(\s*)([A-Za-z]+|\x00[0-9]+\x00)(\s*,)`)
	quotedDatePartRe = regexp.MustCompile(`^'([A-Za-z]+)'$`)
)

func canonicalizeDateParts(code string, lits *Literals) string {
	return dateFunc.ReplaceAllStringFunc(code, func(match string) string {
		m := dateFunc.FindStringSubmatch(match)
		part := m[3]
		if text, ok := lits.Lookup(part); ok {
			if q := quotedDatePartRe.FindStringSubmatch(text); q != nil {
				part = q[1]
			}
		}
		canonical, ok := CanonicalDatePart(part)
		if !ok {
			return match
		}
		return strings.ToUpper(m[1]) + m[2] + canonical + m[4]
	})
}
