package mysql

import "strings"

// QuoteIdentifier safely quotes a SQL identifier (table, column name) using
// MySQL's backtick syntax. Embedded backticks are doubled per the dialect.
func QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// QuoteIdentifiers quotes every identifier in a slice.
func QuoteIdentifiers(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = QuoteIdentifier(n)
	}
	return out
}
