package otp

import (
	"regexp"
	"strings"
)

var e164 = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)

// NormalizePhone keeps a leading '+' and strips every other non-digit, then
// checks the result against the E.164 shape. Domestic numbers without a
// country code (e.g. 010-1234-5678 → 01012345678) are rejected because E.164
// forbids a leading zero.
func NormalizePhone(raw string) (string, error) {
	raw = strings.TrimSpace(raw)

	var b strings.Builder
	b.Grow(len(raw))
	if strings.HasPrefix(raw, "+") {
		b.WriteByte('+')
		raw = raw[1:]
	}
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	phone := b.String()
	if !e164.MatchString(phone) {
		return "", ErrInvalidPhone
	}
	return phone, nil
}
