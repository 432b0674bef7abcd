package validation

import (
	"regexp"
	"strings"
)

var (
	ibanRegex   = regexp.MustCompile(`^UA\d{25,30}$`)
	edrpouRegex = regexp.MustCompile(`^(\d{8}|\d{10})$`)
)

// IsIbanFormat checks only the structural UA pattern, without the checksum.
func IsIbanFormat(iban string) bool {
	return ibanRegex.MatchString(iban)
}

// IsValidIban checks the UA IBAN pattern and the ISO 13616 mod-97 checksum.
func IsValidIban(iban string) bool {
	if !ibanRegex.MatchString(iban) {
		return false
	}
	rearranged := iban[4:] + iban[:4]

	// Letters expand to two digits, so the remainder is folded digit by digit.
	remainder := 0
	for _, r := range rearranged {
		switch {
		case r >= '0' && r <= '9':
			remainder = (remainder*10 + int(r-'0')) % 97
		case r >= 'A' && r <= 'Z':
			n := int(r-'A') + 10
			remainder = (remainder*100 + n) % 97
		default:
			return false
		}
	}
	return remainder == 1
}

// IsValidEdrpo accepts an 8-digit company code or a 10-digit individual taxpayer number.
func IsValidEdrpo(code string) bool {
	return edrpouRegex.MatchString(code)
}

// NormalizeIban strips spaces and upper-cases the country code as users tend to paste it grouped.
func NormalizeIban(iban string) string {
	return strings.ToUpper(strings.Join(strings.Fields(iban), ""))
}
