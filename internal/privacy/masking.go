// Package privacy masks contact identifiers before they reach logs.
package privacy

import "strings"

// MaskPhoneNumber hides all but the last four digits of a phone number.
// "+27820001111" becomes "+********1111".
func MaskPhoneNumber(phone string) string {
	if phone == "" {
		return ""
	}

	prefix := ""
	digits := phone
	if strings.HasPrefix(phone, "+") {
		prefix = "+"
		digits = phone[1:]
	}

	if len(digits) <= 4 {
		return prefix + strings.Repeat("*", len(digits))
	}
	return prefix + strings.Repeat("*", len(digits)-4) + digits[len(digits)-4:]
}

// MaskURN masks the address part of a URN, keeping the scheme readable.
// "tel:+27820001111" becomes "tel:+********1111".
func MaskURN(urn string) string {
	scheme, address, found := strings.Cut(urn, ":")
	if !found {
		return MaskPhoneNumber(urn)
	}
	return scheme + ":" + MaskPhoneNumber(address)
}
