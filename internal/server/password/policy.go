// Package password holds the password strength policy and the bcrypt
// credential hasher.
package password

import "strings"

// MinLength is the minimum accepted password length in bytes.
const MinLength = 8

// SpecialChars lists the characters that satisfy the special-character rule.
const SpecialChars = `!@#$%^&*()_+-=[]{};':"\|,.<>/?`

// Violation is a single failed policy rule.
type Violation string

const (
	ViolationLength  Violation = "Password must be at least 8 characters long"
	ViolationLetter  Violation = "Password must contain at least one letter"
	ViolationDigit   Violation = "Password must contain at least one number"
	ViolationSpecial Violation = "Password must contain at least one special character"
)

// Result is the outcome of Validate. Violations are in rule order.
type Result struct {
	Valid      bool
	Violations []Violation
}

// Messages returns the violations as plain strings.
func (r Result) Messages() []string {
	out := make([]string, 0, len(r.Violations))
	for _, v := range r.Violations {
		out = append(out, string(v))
	}
	return out
}

// Validate checks pw against every rule and reports all that fail.
func Validate(pw string) Result {
	var hasLetter, hasDigit, hasSpecial bool
	for i := 0; i < len(pw); i++ {
		c := pw[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
			hasLetter = true
		case c >= '0' && c <= '9':
			hasDigit = true
		case strings.IndexByte(SpecialChars, c) >= 0:
			hasSpecial = true
		}
	}

	var res Result
	if len(pw) < MinLength {
		res.Violations = append(res.Violations, ViolationLength)
	}
	if !hasLetter {
		res.Violations = append(res.Violations, ViolationLetter)
	}
	if !hasDigit {
		res.Violations = append(res.Violations, ViolationDigit)
	}
	if !hasSpecial {
		res.Violations = append(res.Violations, ViolationSpecial)
	}
	res.Valid = len(res.Violations) == 0
	return res
}
