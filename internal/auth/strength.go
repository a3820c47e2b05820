package auth

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	PasswordMinLength = 8
	PasswordMaxLength = 128
)

// weakPasswordFragments are rejected anywhere inside a password, ignoring case.
var weakPasswordFragments = []string{
	"password",
	"123456",
	"qwerty",
	"abc123",
	"letmein",
	"welcome",
	"admin",
	"monkey",
	"dragon",
	"iloveyou",
}

type StrengthResult struct {
	Valid  bool     `json:"isValid"`
	Errors []string `json:"errors"`
}

// ValidatePasswordStrength evaluates every rule and reports all violations
// in a fixed order.
func ValidatePasswordStrength(plain string) StrengthResult {
	errs := make([]string, 0, 6)

	length := utf8.RuneCountInString(plain)
	if length < PasswordMinLength {
		errs = append(errs, "Password must be at least 8 characters long")
	}
	if length > PasswordMaxLength {
		errs = append(errs, "Password must be at most 128 characters long")
	}

	var hasLower, hasUpper, hasDigit bool
	for _, r := range plain {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLower {
		errs = append(errs, "Password must contain at least one lowercase letter")
	}
	if !hasUpper {
		errs = append(errs, "Password must contain at least one uppercase letter")
	}
	if !hasDigit {
		errs = append(errs, "Password must contain at least one number")
	}

	lowered := strings.ToLower(plain)
	for _, fragment := range weakPasswordFragments {
		if strings.Contains(lowered, fragment) {
			errs = append(errs, "Password contains a common weak pattern")
			break
		}
	}

	return StrengthResult{Valid: len(errs) == 0, Errors: errs}
}
