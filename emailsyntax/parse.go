package emailsyntax

import (
	"errors"
	"strings"
)

// ErrInvalid matches every error returned by Parse via errors.Is.
var ErrInvalid = errors.New("invalid email address")

// Error describes why Parse rejected an input.
type Error struct {
	Input  string
	Reason Reason
}

func (e *Error) Error() string {
	return "emailsyntax: " + e.Reason.Description()
}

// Is lets errors.Is(err, ErrInvalid) succeed for any *Error.
func (e *Error) Is(target error) bool {
	return target == ErrInvalid
}

// Address is a syntactically valid address split at its '@'.
type Address struct {
	Local  string
	Domain string
}

// String reassembles the address.
func (a Address) String() string {
	return a.Local + "@" + a.Domain
}

// TLD returns the last label of the domain.
func (a Address) TLD() string {
	if i := strings.LastIndexByte(a.Domain, '.'); i >= 0 {
		return a.Domain[i+1:]
	}
	return a.Domain
}

// Parse validates s and returns its parts. On failure the error is an *Error.
func Parse(s string) (Address, error) {
	if r := check(s); r != OK {
		return Address{}, &Error{Input: s, Reason: r}
	}
	local, domain, _ := strings.Cut(s, "@")
	return Address{Local: local, Domain: domain}, nil
}
