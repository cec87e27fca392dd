package domain

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// maxIdentifierLength is the MySQL identifier limit in characters.
const maxIdentifierLength = 64

// NormalizeColumnName folds full-width characters, applies NFKC and collapses
// runs of whitespace to a single underscore. Other characters, including CJK,
// are kept: identifiers are always quoted when rendered.
func NormalizeColumnName(s string) string {
	s = width.Fold.String(s)
	s = norm.NFKC.String(s)
	s = strings.TrimSpace(s)

	var b strings.Builder
	prevSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !prevSpace {
				b.WriteByte('_')
			}
			prevSpace = true
			continue
		}
		if unicode.IsControl(r) || r == '`' || r == '"' {
			continue
		}
		prevSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

// UniqueColumnNames normalizes a header row. Names are cut to the identifier
// limit, empty names become column_<n> and repeated names get a _<n> suffix so
// every column is addressable. Repeats are matched case-insensitively, as MySQL
// and SQLite compare column names.
func UniqueColumnNames(header []string) []string {
	out := make([]string, len(header))
	taken := make(map[string]bool, len(header))
	lastSuffix := make(map[string]int, len(header))
	for i, h := range header {
		name := truncateRunes(NormalizeColumnName(h), maxIdentifierLength)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		key := strings.ToLower(name)
		candidate := name
		for n := max(lastSuffix[key], 1) + 1; taken[strings.ToLower(candidate)]; n++ {
			candidate = withSuffix(name, n)
			lastSuffix[key] = n
		}
		taken[strings.ToLower(candidate)] = true
		out[i] = candidate
	}
	return out
}

// withSuffix appends _<n>, shortening name so the result fits the identifier limit.
func withSuffix(name string, n int) string {
	suffix := fmt.Sprintf("_%d", n)
	return truncateRunes(name, maxIdentifierLength-len(suffix)) + suffix
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// ValidateIdentifier rejects names that cannot be safely quoted as a table or column.
func ValidateIdentifier(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty identifier", ErrInvalidQuery)
	}
	if utf8.RuneCountInString(name) > maxIdentifierLength {
		return fmt.Errorf("%w: identifier %q too long", ErrInvalidQuery, name)
	}
	for _, r := range name {
		if unicode.IsControl(r) || r == '`' || r == '"' || r == 0 {
			return fmt.Errorf("%w: identifier %q contains a forbidden character", ErrInvalidQuery, name)
		}
	}
	return nil
}
