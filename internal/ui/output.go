package ui

import "fmt"

// Unicode symbols for status indicators
const (
	SymbolSuccess = "✓"
	SymbolError   = "✗"
	SymbolWarning = "⚠"
)

// Success returns a message prefixed with a checkmark.
func Success(msg string) string {
	return SymbolSuccess + " " + msg
}

// Successf formats a success message.
func Successf(format string, args ...interface{}) string {
	return Success(fmt.Sprintf(format, args...))
}

// Error returns a message prefixed with an X.
func Error(msg string) string {
	return SymbolError + " " + msg
}

// Warning returns a message prefixed with a warning sign.
func Warning(msg string) string {
	return SymbolWarning + " " + msg
}

// Header returns a styled section header.
func Header(msg string) string {
	return Bold.Render(msg)
}

// Name returns an accent-styled resource or field name.
func Name(name string) string {
	return Accent.Render(name)
}

// Hint returns muted hint text.
func Hint(msg string) string {
	return Muted.Render(msg)
}

// Count returns a count badge such as "(3 rows)".
func Count(n int, singular, plural string) string {
	if n == 1 {
		return fmt.Sprintf("(%d %s)", n, singular)
	}
	return fmt.Sprintf("(%d %s)", n, plural)
}

// PageSummary describes where a page sits in a paginated result.
func PageSummary(page, totalPages, shown, count int) string {
	noun := "rows"
	if count == 1 {
		noun = "row"
	}
	return fmt.Sprintf("page %d of %d, %d of %d %s", page, totalPages, shown, count, noun)
}
