package emailsyntax

// Reason identifies which check rejected a candidate. OK means none did.
type Reason int

const (
	OK Reason = iota
	NotText
	Empty
	TooLong
	Pattern
	LocalTooLong
	LocalDotEdge
	LocalConsecutiveDots
	DomainTooLong
	DomainDotEdge
	DomainConsecutiveDots
	TLD
)

var reasonCodes = [...]string{
	OK:                    "ok",
	NotText:               "not_text",
	Empty:                 "empty",
	TooLong:               "too_long",
	Pattern:               "pattern",
	LocalTooLong:          "local_too_long",
	LocalDotEdge:          "local_dot_edge",
	LocalConsecutiveDots:  "local_consecutive_dots",
	DomainTooLong:         "domain_too_long",
	DomainDotEdge:         "domain_dot_edge",
	DomainConsecutiveDots: "domain_consecutive_dots",
	TLD:                   "tld",
}

var reasonText = [...]string{
	OK:                    "valid",
	NotText:               "value is not a string",
	Empty:                 "address is empty",
	TooLong:               "address exceeds 254 characters",
	Pattern:               "address does not match local@domain.tld",
	LocalTooLong:          "local part exceeds 64 characters",
	LocalDotEdge:          "local part starts or ends with a dot",
	LocalConsecutiveDots:  "local part contains consecutive dots",
	DomainTooLong:         "domain exceeds 253 characters",
	DomainDotEdge:         "domain starts or ends with a dot",
	DomainConsecutiveDots: "domain contains consecutive dots",
	TLD:                   "top-level domain is missing or shorter than 2 characters",
}

// String returns the stable snake_case code for r, e.g. "local_too_long".
func (r Reason) String() string {
	if r < 0 || int(r) >= len(reasonCodes) {
		return "unknown"
	}
	return reasonCodes[r]
}

// Description returns a short human-readable explanation.
func (r Reason) Description() string {
	if r < 0 || int(r) >= len(reasonText) {
		return "unknown reason"
	}
	return reasonText[r]
}

// MarshalText encodes r as its code so it reads well in JSON and YAML.
func (r Reason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}
