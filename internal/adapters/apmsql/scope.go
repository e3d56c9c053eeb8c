package apmsql

import (
	"regexp"
)

// A regular expression to find numbers in SQL queries.
// This is a simple approach and might not cover all SQL dialects perfectly.
var sqlNumberRegex = regexp.MustCompile(`\b\d+\b`)

// normalizeQuery replaces numeric literals in a SQL query with a placeholder,
// so that queries differing only by an id share one scope.
// e.g., "SELECT ... WHERE id = 1" and "SELECT ... WHERE id = 2" become "SELECT ... WHERE id = ?".
func normalizeQuery(query string) string {
	return sqlNumberRegex.ReplaceAllString(query, "?")
}

// ScopeName returns the scope a statement is executed in.
func ScopeName(query string) string {
	return "sql " + normalizeQuery(query)
}
