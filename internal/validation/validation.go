// Package validation checks externally supplied identifiers before they
// are stored or sent to the gateway.
package validation

import (
	"fmt"
	"strings"
	"unicode"

	"warelay/internal/errors"
)

const (
	minPhoneDigits = 7
	maxPhoneDigits = 15
)

// ValidatePhoneNumber checks an E.164 style phone number.
func ValidatePhoneNumber(phone string) error {
	if phone == "" {
		return errors.New(errors.ErrCodeInvalidInput, "phone number cannot be empty")
	}

	digits := strings.TrimPrefix(phone, "+")
	if len(digits) < minPhoneDigits {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("phone number must be at least %d digits", minPhoneDigits))
	}
	if len(digits) > maxPhoneDigits {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("phone number must be at most %d digits", maxPhoneDigits))
	}
	for _, r := range digits {
		if !unicode.IsDigit(r) {
			return errors.New(errors.ErrCodeInvalidInput, "phone number must contain only digits")
		}
	}
	return nil
}

// ValidateGroupUUID checks a gateway group identifier.
func ValidateGroupUUID(groupUUID string) error {
	if groupUUID == "" {
		return errors.New(errors.ErrCodeInvalidInput, "group uuid cannot be empty")
	}
	for _, r := range groupUUID {
		if !unicode.IsLower(r) && !unicode.IsDigit(r) && r != '-' {
			return errors.New(errors.ErrCodeInvalidInput, "group uuid contains invalid characters")
		}
	}
	return nil
}
