// Package chat answers SQL questions from a small built-in knowledge base.
package chat

import (
	"regexp"
	"strings"
)

// Source values reported in Reply.Using.
const (
	UsingKB    = "kb"
	UsingGuard = "guard"
)

// Reply is the answer to one message.
type Reply struct {
	Text  string `json:"reply"`
	Using string `json:"using"`
}

type entry struct {
	pattern *regexp.Regexp
	answer  string
}

// knowledge is matched in order; the first pattern found in the message wins.
var knowledge = []entry{
	{
		regexp.MustCompile(`(?i)\b(hello|hi|hey)\b`),
		"Hello! How can I help with SQL or Snowflake today?",
	},
	{
		regexp.MustCompile(`(?i)\bjoins?\b.*\bsql\b`),
		"Common joins:\n" +
			"• INNER: only matching rows\n" +
			"• LEFT: all rows on the left + matches\n" +
			"• RIGHT: all rows on the right + matches\n" +
			"• FULL: all rows from both sides\n" +
			"Tip: use ON for join condition; filter AFTER joins in WHERE.",
	},
	{
		regexp.MustCompile(`(?i)\bsnowflake\b.*\bqualify\b`),
		"In Snowflake you can filter window functions with QUALIFY, e.g.:\n" +
			"SELECT *, ROW_NUMBER() OVER(PARTITION BY user_id ORDER BY created_at DESC) AS rn\n" +
			"FROM events\n" +
			"QUALIFY rn = 1;",
	},
	{
		regexp.MustCompile(`(?i)\bconvert\b.*\b(tsql|t-sql)\b.*\bsnowflake\b`),
		"Use the converter tab to translate T-SQL into Snowflake. " +
			"It maps TOP→LIMIT, ISNULL→COALESCE, GETDATE→CURRENT_TIMESTAMP, " +
			"removes NOLOCK, normalizes DATEADD/CONVERT/CAST, etc.",
	},
	{
		regexp.MustCompile(`(?i)\b(best|speed|performance)\b.*\bsnowflake\b`),
		"Performance tips: cache small dimensions in RESULT CACHE, " +
			"use clustering for large tables that are filtered by a column, " +
			"avoid SELECT *, and size warehouses appropriately.",
	},
	{
		regexp.MustCompile(`(?i)\bstring\b.*\bconcat|concatenate\b`),
		"In Snowflake, concatenate with || (double pipe). Example: first_name || ' ' || last_name.",
	},
	{
		regexp.MustCompile(`(?i)\bdatetime\b|\bdate\b.*\badd\b|\bdateadd\b`),
		"Snowflake DATEADD: DATEADD(MONTH, -3, CURRENT_TIMESTAMP()). " +
			"Also: DATEDIFF(day, start, end), LAST_DAY(date), etc.",
	},
	{
		regexp.MustCompile(`(?i)\bpivot\b|\bunpivot\b`),
		"Snowflake supports PIVOT/UNPIVOT. Example:\n" +
			"SELECT * FROM src PIVOT(avg(amount) FOR month IN ('Jan','Feb','Mar')) p;",
	},
}

// keyword helpers consulted after the knowledge base
var helpers = []struct {
	words  []string
	answer string
}{
	{[]string{"top", "limit"}, "Snowflake uses LIMIT at the end of the query; T-SQL TOP (n) becomes LIMIT n."},
	{[]string{"nolock"}, "Snowflake doesn't support NOLOCK; remove it. It uses MVCC and safe reads."},
	{[]string{"getdate"}, "Replace GETDATE() with CURRENT_TIMESTAMP() in Snowflake."},
	{[]string{"isnull"}, "Replace ISNULL(x,y) with COALESCE(x,y) in Snowflake."},
}

const (
	guardReply   = "Say something about SQL or Snowflake 😊"
	defaultReply = "I can help with Snowflake SQL, window functions, joins, and T-SQL conversion. " +
		"Try asking about QUALIFY, DATEADD, PIVOT, or performance tips."
)

// Answer replies to message. Blank messages get the guard reply.
func Answer(message string) Reply {
	msg := strings.TrimSpace(message)
	if msg == "" {
		return Reply{Text: guardReply, Using: UsingGuard}
	}

	for _, e := range knowledge {
		if e.pattern.MatchString(msg) {
			return Reply{Text: e.answer, Using: UsingKB}
		}
	}

	lower := strings.ToLower(msg)
	for _, h := range helpers {
		if containsAll(lower, h.words) {
			return Reply{Text: h.answer, Using: UsingKB}
		}
	}

	return Reply{Text: defaultReply, Using: UsingKB}
}

func containsAll(s string, words []string) bool {
	for _, w := range words {
		if !strings.Contains(s, w) {
			return false
		}
	}
	return true
}
