package auth

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation"
)

// Password policy limits.
const (
	PasswordMinLength = 12
	PasswordMaxLength = 128
)

// emailPattern is a conservative local@domain.tld check. The server
// remains the authority; this only catches obviously malformed input
// before it leaves the client.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// commonPasswords is the deny list of passwords rejected outright,
// compared case-insensitively.
var commonPasswords = []string{
	"password",
	"password123",
	"123456789012",
	"qwerty123456",
	"letmein12345",
	"welcome12345",
	"admin1234567",
	"iloveyou1234",
	"sunshine1234",
	"monkey123456",
	"dragon123456",
	"football1234",
	"baseball1234",
	"trustno12345",
	"changeme1234",
}

// keyboardPatterns are adjacency runs users type when asked for a
// "random" password.
var keyboardPatterns = []string{
	"qwerty", "asdfgh", "zxcvbn", "qazwsx", "1qaz2wsx", "qwertz", "azerty",
}

// ValidationResult reports every violated password rule, in rule order.
// Callers decide how many violations to surface.
type ValidationResult struct {
	IsValid bool
	Errors  []string
}

// ValidateEmail checks the address against a conservative pattern.
func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidatePassword applies the full password policy and collects every
// violation rather than stopping at the first.
func ValidatePassword(password string) ValidationResult {
	var violations []string

	if password == "" {
		return ValidationResult{IsValid: false, Errors: []string{"password is required"}}
	}

	length := utf8.RuneCountInString(password)
	if length < PasswordMinLength {
		violations = append(violations, "password must be at least 12 characters long")
	}
	if length > PasswordMaxLength {
		violations = append(violations, "password must be at most 128 characters long")
	}
	if hasRepeatedRun(password, 3) {
		violations = append(violations, "password must not contain 3 or more repeated characters")
	}
	if hasSequentialRun(password, 3) {
		violations = append(violations, "password must not contain sequential characters")
	}
	if isCommonPassword(password) {
		violations = append(violations, "password is too common")
	}
	if hasKeyboardPattern(password) {
		violations = append(violations, "password must not contain keyboard patterns")
	}

	var hasLower, hasUpper, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSpecial = true
		}
	}
	if !hasLower {
		violations = append(violations, "password must contain a lowercase letter")
	}
	if !hasUpper {
		violations = append(violations, "password must contain an uppercase letter")
	}
	if !hasDigit {
		violations = append(violations, "password must contain a number")
	}
	if !hasSpecial {
		violations = append(violations, "password must contain a special character")
	}

	return ValidationResult{IsValid: len(violations) == 0, Errors: violations}
}

// hasRepeatedRun reports n or more identical consecutive characters.
func hasRepeatedRun(s string, n int) bool {
	runes := []rune(s)
	count := 1
	for i := 1; i < len(runes); i++ {
		if runes[i] == runes[i-1] {
			count++
			if count >= n {
				return true
			}
		} else {
			count = 1
		}
	}
	return false
}

// hasSequentialRun reports an ascending alphabetic or numeric run of
// length n, e.g. "abc" or "345". Comparison is case-insensitive.
func hasSequentialRun(s string, n int) bool {
	runes := []rune(strings.ToLower(s))
	count := 1
	for i := 1; i < len(runes); i++ {
		prev, cur := runes[i-1], runes[i]
		alpha := prev >= 'a' && prev <= 'z' && cur >= 'a' && cur <= 'z'
		digit := prev >= '0' && prev <= '9' && cur >= '0' && cur <= '9'
		if (alpha || digit) && cur == prev+1 {
			count++
			if count >= n {
				return true
			}
		} else {
			count = 1
		}
	}
	return false
}

func isCommonPassword(password string) bool {
	lower := strings.ToLower(password)
	for _, common := range commonPasswords {
		if lower == common {
			return true
		}
	}
	return false
}

func hasKeyboardPattern(password string) bool {
	lower := strings.ToLower(password)
	for _, pattern := range keyboardPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// validatePasswordRule adapts ValidatePassword to an ozzo rule so the
// payload structs report the first policy violation inline.
func validatePasswordRule(value any) error {
	password, _ := value.(string)
	if result := ValidatePassword(password); !result.IsValid {
		return errors.New(result.Errors[0])
	}
	return nil
}

// ValidateStringEquals builds a rule asserting the value matches str.
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}

// notWhitespaceOnly rejects values that are blank once trimmed but not
// empty, matching the server's profile update rules.
func notWhitespaceOnly(value any) error {
	s, _ := value.(string)
	if s != "" && strings.TrimSpace(s) == "" {
		return errors.New("must not be whitespace only")
	}
	return nil
}

// FormatValidationErrorToMap converts an ozzo validation error into a
// field to message map for the 422 error shape.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		for field, fieldErr := range fieldErrs {
			if fieldErr != nil {
				out[field] = fieldErr.Error()
			}
		}
		return out
	}
	if err != nil {
		out["form"] = err.Error()
	}
	return out
}
