// Package qr builds the national bank-transfer QR record and its base64url payload.
package qr

import (
	"encoding/base64"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"

	"paylink/internal/validation"
)

const unmappable = '?'

var quoteStripper = strings.NewReplacer(
	"\"", "",
	"«", "",
	"»", "",
	"“", "",
	"”", "",
	"„", "",
	"‟", "",
	"‹", "",
	"›", "",
)

// Sanitize drops double quotes of any style and collapses whitespace runs to a single space.
func Sanitize(s string) string {
	return strings.Join(strings.Fields(quoteStripper.Replace(s)), " ")
}

// FormatAmount prints whole amounts without decimals and anything else with exactly two.
func FormatAmount(amount float64) string {
	d := decimal.NewFromFloat(amount)
	if d.IsInteger() {
		return d.String()
	}
	return d.StringFixed(2)
}

func validate(p PaymentData) error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return ErrNameRequired
	case p.IBAN == "":
		return ErrIBANRequired
	case !validation.IsIbanFormat(p.IBAN):
		return ErrIBANFormat
	case p.EDRPOU == "":
		return ErrEDRPOURequired
	case math.IsNaN(p.Amount) || math.IsInf(p.Amount, 0):
		return ErrAmountNotFinite
	}
	return nil
}

// BuildRecord returns the 12-line record joined by "\n".
func BuildRecord(p PaymentData) (string, error) {
	if err := validate(p); err != nil {
		return "", err
	}
	lines := []string{
		ServiceTag,
		FormatVersion,
		CharsetCP1251,
		Identification,
		"", // BIC
		Sanitize(p.Name),
		Sanitize(p.IBAN),
		Currency + FormatAmount(p.Amount),
		Sanitize(p.EDRPOU),
		"",
		"",
		Sanitize(p.Purpose),
	}
	return strings.Join(lines, "\n"), nil
}

// EncodeText maps text to Windows-1251. Runes outside the code page become '?'; it never fails.
func EncodeText(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r < 0x80 {
			out = append(out, byte(r))
			continue
		}
		if b, ok := charmap.Windows1251.EncodeRune(r); ok {
			out = append(out, b)
			continue
		}
		out = append(out, unmappable)
	}
	return out
}

// DecodeText is the inverse of EncodeText for bytes it produced.
func DecodeText(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		sb.WriteRune(charmap.Windows1251.DecodeByte(c))
	}
	return sb.String()
}

// Encode builds the record and returns the unpadded base64url payload embedded in QR codes and links.
func Encode(p PaymentData) (string, error) {
	record, err := BuildRecord(p)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(EncodeText(record)), nil
}

// DecodePayload turns a payload back into the record text.
func DecodePayload(payload string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return "", ErrInvalidPayload.Wrap(err)
	}
	return DecodeText(raw), nil
}
