package account

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/user/cesto-ofertas-go/internal/apperr"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^\(\d{2}\)\s\d{4,5}-\d{4}$`)
)

const (
	// MinPasswordLength is the shortest accepted password
	MinPasswordLength = 6
	// MaxPasswordLength is the longest password bcrypt can hash, in bytes
	MaxPasswordLength = 72
)

// validPassword checks the password length bounds for field
func validPassword(field, password string) error {
	if len(password) < MinPasswordLength {
		return apperr.Invalid(field, fmt.Sprintf("password must have at least %d characters", MinPasswordLength))
	}
	if len(password) > MaxPasswordLength {
		return apperr.Invalid(field, fmt.Sprintf("password must have at most %d bytes", MaxPasswordLength))
	}
	return nil
}

// ValidEmail reports whether s looks like an email address
func ValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// ValidPhone reports whether s is a formatted Brazilian phone, (dd) dddd-dddd or (dd) ddddd-dddd
func ValidPhone(s string) bool {
	return phonePattern.MatchString(s)
}

// FormatPhone applies the (dd) ddddd-dddd mask progressively to the digits of s.
// Extra digits beyond eleven are dropped.
func FormatPhone(s string) string {
	var digits []rune
	for _, r := range s {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			digits = append(digits, r)
		}
	}
	if len(digits) > 11 {
		digits = digits[:11]
	}
	n := len(digits)
	switch {
	case n == 0:
		return ""
	case n <= 2:
		return "(" + string(digits)
	case n <= 6:
		return "(" + string(digits[:2]) + ") " + string(digits[2:])
	case n <= 10:
		return "(" + string(digits[:2]) + ") " + string(digits[2:6]) + "-" + string(digits[6:])
	default:
		return "(" + string(digits[:2]) + ") " + string(digits[2:7]) + "-" + string(digits[7:])
	}
}

// nameFromEmail derives a display name from the local part of an address
func nameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
