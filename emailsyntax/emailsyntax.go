// Package emailsyntax checks whether a value is a syntactically acceptable
// email address under a deliberately simplified grammar.
//
// The grammar is narrower than RFC 5322. The local part may contain only
// ASCII letters, digits, '.', '-' and '_'; the domain may contain ASCII
// letters, digits, '.' and '-' and must end in an alphabetic TLD of at least
// two characters. Plus tags, quoted local parts, IP-literal domains and
// internationalized domains are rejected. RFC 5321 length ceilings apply.
//
// No DNS or mailbox checks are performed.
//
//	emailsyntax.IsValidEmail("user@example.com")  // true
//	emailsyntax.IsValidEmail("user+tag@example.com") // false
//	emailsyntax.IsValidEmail(123)                 // false
package emailsyntax

import (
	"reflect"
	"regexp"
	"strings"
)

// RFC 5321 length ceilings and the minimum TLD length.
const (
	MaxLength       = 254
	MaxLocalLength  = 64
	MaxDomainLength = 253
	MinTLDLength    = 2
)

// A single trailing newline is tolerated by the pattern only; the length and
// label checks below still see it.
var addrPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\n?$`)

// IsValidEmail reports whether candidate is a string holding a syntactically
// valid address. Any non-string value (including nil and []byte) is invalid.
// It never panics and is safe for concurrent use.
func IsValidEmail(candidate any) bool {
	return Check(candidate) == OK
}

// Valid is IsValidEmail for callers that already hold a string.
func Valid(s string) bool {
	return check(s) == OK
}

// Check runs the same checks as IsValidEmail and returns the first one that
// failed, or OK.
func Check(candidate any) Reason {
	s, ok := asText(candidate)
	if !ok {
		return NotText
	}
	return check(s)
}

// asText accepts string and named string types.
func asText(candidate any) (string, bool) {
	if s, ok := candidate.(string); ok {
		return s, true
	}
	if candidate == nil {
		return "", false
	}
	v := reflect.ValueOf(candidate)
	if v.Kind() != reflect.String {
		return "", false
	}
	return v.String(), true
}

// check applies the ordered rules to s. Byte length is used throughout; the
// pattern only admits ASCII, so it equals character length for anything that
// gets past step 3.
func check(s string) Reason {
	if s == "" {
		return Empty
	}
	if len(s) > MaxLength {
		return TooLong
	}
	if !addrPattern.MatchString(s) {
		return Pattern
	}

	local, domain, _ := strings.Cut(s, "@")

	switch {
	case len(local) > MaxLocalLength:
		return LocalTooLong
	case strings.HasPrefix(local, ".") || strings.HasSuffix(local, "."):
		return LocalDotEdge
	case strings.Contains(local, ".."):
		return LocalConsecutiveDots
	}

	switch {
	case len(domain) > MaxDomainLength:
		return DomainTooLong
	case strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, "."):
		return DomainDotEdge
	case strings.Contains(domain, ".."):
		return DomainConsecutiveDots
	}

	labels := strings.Split(domain, ".")
	if len(labels) < 2 || len(labels[len(labels)-1]) < MinTLDLength {
		return TLD
	}
	return OK
}
