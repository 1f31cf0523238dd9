package emailsyntax

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidEmail_Valid(t *testing.T) {
	tests := []string{
		"user@example.com",
		"test.user@domain.com",
		"user123@example.co.uk",
		"first.last@company.org",
		"user_name@example-domain.com",
		"a@b.co",
		"user@subdomain.example.com",
		"user_name-123@test-domain.co.uk",
		"simple@example.io",
		"test123@test-domain.co",
		"test.user@domain.co.uk",
		"user.name@example.com",
		"user-name@example.com",
		"user@sub.domain.example.com",
		"user@a.b.c.d.example.com",
		"123@456.com",
		"123user@example.com",
		"user@example.co",
	}

	for _, email := range tests {
		t.Run(email, func(t *testing.T) {
			assert.True(t, IsValidEmail(email))
		})
	}
}

func TestIsValidEmail_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  Reason
	}{
		// Basic shape
		{"no at sign", "invalid.email", Pattern},
		{"empty local", "@example.com", Pattern},
		{"empty domain", "user@", Pattern},
		{"domain is only TLD after dot", "user@.com", Pattern},
		{"no dot in domain", "user@com", Pattern},
		{"trailing dot", "user@example.", Pattern},
		{"one letter TLD", "user@example.c", Pattern},
		{"no TLD", "user@example", Pattern},
		{"numeric TLD", "123@456.789", Pattern},
		{"two at signs", "a@b@example.com", Pattern},
		{"two trailing newlines", "user@example.com\n\n", Pattern},
		{"newline before domain", "user\n@example.com", Pattern},
		{"embedded space", "us er@example.com", Pattern},
		{"non-ascii", "usér@example.com", Pattern},

		// Disallowed characters
		{"plus tag", "user+tag@example.com", Pattern},
		{"hash", "user#tag@example.com", Pattern},
		{"dollar", "user$tag@example.com", Pattern},

		// Empty
		{"empty string", "", Empty},

		// Dot placement
		{"local double dot", "user..name@example.com", LocalConsecutiveDots},
		{"local leading dot", ".user@example.com", LocalDotEdge},
		{"local trailing dot", "user.@example.com", LocalDotEdge},
		{"domain leading dot", "user@.example.com", DomainDotEdge},
		{"domain double dot", "user@example..com", DomainConsecutiveDots},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, IsValidEmail(tt.email))
			assert.Equal(t, tt.want, Check(tt.email), "Check(%q)", tt.email)
		})
	}
}

func TestIsValidEmail_NonString(t *testing.T) {
	tests := []struct {
		name  string
		input any
	}{
		{"int", 123},
		{"nil", nil},
		{"empty slice", []any{}},
		{"empty map", map[string]any{}},
		{"true", true},
		{"false", false},
		{"float", 3.14},
		{"bytes", []byte("user@example.com")},
		{"string pointer", ptr("user@example.com")},
		{"string slice", []string{"user@example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, IsValidEmail(tt.input))
			assert.Equal(t, NotText, Check(tt.input))
		})
	}
}

type mailbox string

func TestIsValidEmail_NamedStringType(t *testing.T) {
	assert.True(t, IsValidEmail(mailbox("user@example.com")))
	assert.False(t, IsValidEmail(mailbox("user@example")))
}

func TestIsValidEmail_LengthLimits(t *testing.T) {
	t.Run("local part at limit", func(t *testing.T) {
		assert.True(t, IsValidEmail(strings.Repeat("a", 64)+"@example.com"))
	})

	t.Run("local part over limit", func(t *testing.T) {
		email := strings.Repeat("a", 65) + "@example.com"
		assert.False(t, IsValidEmail(email))
		assert.Equal(t, LocalTooLong, Check(email))
	})

	t.Run("long but under total limit", func(t *testing.T) {
		email := strings.Repeat("a", 60) + "@" + strings.Repeat("b", 60) + ".com"
		assert.Less(t, len(email), MaxLength)
		assert.True(t, IsValidEmail(email))
	})

	t.Run("total length 253", func(t *testing.T) {
		email := boundaryAddress(253)
		assert.Len(t, email, 253)
		assert.True(t, IsValidEmail(email))
	})

	t.Run("total length 254", func(t *testing.T) {
		email := boundaryAddress(254)
		assert.Len(t, email, 254)
		assert.True(t, IsValidEmail(email))
	})

	t.Run("total length 255", func(t *testing.T) {
		email := boundaryAddress(255)
		assert.Len(t, email, 255)
		assert.False(t, IsValidEmail(email))
		assert.Equal(t, TooLong, Check(email))
	})

	t.Run("very long", func(t *testing.T) {
		email := strings.Repeat("a", 250) + "@example.com"
		assert.False(t, IsValidEmail(email))
		assert.Equal(t, TooLong, Check(email))
	})

	t.Run("domain over limit", func(t *testing.T) {
		email := "user@" + strings.Repeat("a", 254) + ".com"
		assert.False(t, IsValidEmail(email))
	})

	t.Run("longest domain that fits the total", func(t *testing.T) {
		// 1 + 1 + 252 = 254 total.
		email := "a@" + strings.Repeat("b", 248) + ".com"
		assert.Len(t, email, 254)
		assert.True(t, IsValidEmail(email))
	})
}

func TestIsValidEmail_TrailingNewline(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  Reason
	}{
		{"plain", "user@example.com\n", OK},
		{"local part at limit", strings.Repeat("a", 64) + "@example.com\n", OK},
		{"local part over limit", strings.Repeat("a", 65) + "@example.com\n", LocalTooLong},
		{"newline counts toward total", boundaryAddress(254) + "\n", TooLong},
		{"carriage return", "user@example.com\r\n", Pattern},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Check(tt.email))
			assert.Equal(t, tt.want == OK, IsValidEmail(tt.email))
		})
	}
}

func TestIsValidEmail_TLD(t *testing.T) {
	assert.True(t, IsValidEmail("user@example.com"))
	assert.True(t, IsValidEmail("user@example.org"))
	assert.True(t, IsValidEmail("user@example.co.uk"))

	assert.False(t, IsValidEmail("user@example.c"))
	assert.False(t, IsValidEmail("user@example."))
	assert.False(t, IsValidEmail("user@example"))
}

func TestIsValidEmail_Idempotent(t *testing.T) {
	inputs := []any{"user@example.com", "user..name@example.com", 42, nil, ""}
	for _, in := range inputs {
		first := IsValidEmail(in)
		for i := 0; i < 5; i++ {
			assert.Equal(t, first, IsValidEmail(in))
		}
	}
}

func TestIsValidEmail_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if !IsValidEmail("user@example.com") || IsValidEmail("user@example") {
					t.Error("unexpected result under concurrency")
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestCheckAgreesWithIsValidEmail(t *testing.T) {
	inputs := []any{
		"user@example.com", "a@b.co", "", ".a@b.co", "a@b..co", 7, nil,
		strings.Repeat("x", 65) + "@example.com",
	}
	for _, in := range inputs {
		assert.Equal(t, IsValidEmail(in), Check(in) == OK, "input %v", in)
	}
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("user@example.com"))
	assert.False(t, Valid("user@example"))
}

func TestReasonString(t *testing.T) {
	assert.Equal(t, "ok", OK.String())
	assert.Equal(t, "not_text", NotText.String())
	assert.Equal(t, "domain_consecutive_dots", DomainConsecutiveDots.String())
	assert.Equal(t, "tld", TLD.String())
	assert.Equal(t, "unknown", Reason(99).String())
	assert.Equal(t, "unknown reason", Reason(-1).Description())

	b, err := LocalDotEdge.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, "local_dot_edge", string(b))
}

// boundaryAddress builds a valid address of exactly n bytes with a local
// part of 64 and a domain made of 63-char labels.
func boundaryAddress(n int) string {
	local := strings.Repeat("a", 64)
	domainLen := n - len(local) - 1
	// ".com" closes the domain; fill the rest with labels joined by dots.
	body := domainLen - len(".com")
	var labels []string
	for body > 0 {
		size := 63
		if body < size {
			size = body
		}
		labels = append(labels, strings.Repeat("b", size))
		body -= size + 1 // +1 for the joining dot
	}
	return local + "@" + strings.Join(labels, ".") + ".com"
}

func ptr(s string) *string { return &s }
