// Package contacts turns raw CSV rows into validated, ready-to-send
// contacts with their message templates rendered.
package contacts

import (
	"fmt"
	"strings"
	"unicode"
)

// Contact is a validated recipient. Construction goes through the Reader
// (or NormalizePhone directly); a Contact always carries a normalized phone
// and a fully rendered message.
type Contact struct {
	Name    string
	Phone   string
	Message string
}

const (
	phoneMinDigits = 8
	phoneMaxDigits = 15
)

// NormalizePhone strips whitespace and validates an E.164-like number:
// a leading "+" followed by 8 to 15 digits.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	s := b.String()
	if s == "" {
		return "", fmt.Errorf("phone is empty")
	}
	if !strings.HasPrefix(s, "+") {
		return "", fmt.Errorf("phone %q must start with +", raw)
	}
	digits := s[1:]
	if len(digits) < phoneMinDigits || len(digits) > phoneMaxDigits {
		return "", fmt.Errorf("phone %q must have %d-%d digits after +, got %d",
			raw, phoneMinDigits, phoneMaxDigits, len(digits))
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("phone %q contains non-digit %q", raw, r)
		}
	}
	return s, nil
}
