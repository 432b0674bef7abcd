package qr

import (
	"github.com/skip2/go-qrcode"

	apperrors "paylink/internal/errors"
)

const DefaultImageSize = 320

// PNG renders content (normally the bank link carrying the payload) as a QR image.
func PNG(content string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultImageSize
	}
	png, err := qrcode.Encode(content, qrcode.Medium, size)
	if err != nil {
		return nil, apperrors.ErrInternal.Wrap(err)
	}
	return png, nil
}

// Link joins the configured bank QR base with a payload.
func Link(base, payload string) string {
	return base + payload
}
