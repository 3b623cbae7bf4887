package common

import (
	"regexp"
	"strings"
)

const (
	// PinLength is a product policy value, not a cryptographic one.
	PinLength = 4

	MaxMemoLength = 200
)

var (
	htmlTagRe   = regexp.MustCompile(`<[^>]*>`)
	memoCharsRe = regexp.MustCompile(`[<>'"]`)
)

// ValidatePin checks the PIN format policy: exactly PinLength ASCII digits.
func ValidatePin(pin []byte) error {
	if len(pin) != PinLength {
		return ErrInvalidPin
	}
	for _, b := range pin {
		if b < '0' || b > '9' {
			return ErrInvalidPin
		}
	}
	return nil
}

// SanitizeMemo strips markup from a user supplied transfer note and caps its length.
func SanitizeMemo(memo string) string {
	if memo == "" {
		return ""
	}
	memo = htmlTagRe.ReplaceAllString(memo, "")
	memo = memoCharsRe.ReplaceAllString(memo, "")
	memo = strings.TrimSpace(memo)

	runes := []rune(memo)
	if len(runes) > MaxMemoLength {
		runes = runes[:MaxMemoLength]
	}
	return string(runes)
}
