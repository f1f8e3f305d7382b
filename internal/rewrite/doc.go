// Package rewrite converts T-SQL text into Snowflake SQL.
//
// The conversion is a best-effort textual transducer, not a compiler. Input is
// split into batches on GO lines and into statements on semicolons that sit
// outside string literals, quoted identifiers and comments. Every statement
// then flows through an ordered list of rules:
//
//	identifiers   [Name] -> "Name"
//	table-hints   WITH (NOLOCK) and other lock hints removed
//	renames       ISNULL, GETDATE, LEN and configured renames
//	restructure   LEFT, CHARINDEX, TRY_CONVERT, CONVERT
//	type-aliases  NVARCHAR, VARCHAR(MAX), DATETIME, DATETIME2
//	date-parts    DATEADD/DATEDIFF date part abbreviations
//	row-limit     SELECT TOP n -> trailing LIMIT n
//	tidy          horizontal whitespace before ',' and ')' and after '('
//
// Rules see the statement with string literals and comments replaced by
// placeholders, so text inside literals is never rewritten. A rule that does
// not match cleanly leaves its input unchanged.
//
// Usage:
//
//	out := rewrite.Convert("SELECT TOP 5 * FROM [Sales] WITH (NOLOCK);")
//	// SELECT * FROM "Sales" LIMIT 5;
//
// All package state is immutable after initialization; Convert and
// (*Converter).Convert are safe for concurrent use.
package rewrite
