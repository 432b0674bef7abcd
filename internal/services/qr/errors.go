package qr

import apperrors "paylink/internal/errors"

// Precondition errors returned before anything is encoded.
var (
	ErrNameRequired    = apperrors.ErrValidation.WithMessage("recipient name is required")
	ErrIBANRequired    = apperrors.ErrValidation.WithMessage("recipient IBAN is required")
	ErrIBANFormat      = apperrors.ErrIBANInvalid.WithMessage("recipient IBAN has an invalid format")
	ErrEDRPOURequired  = apperrors.ErrValidation.WithMessage("recipient EDRPOU is required")
	ErrAmountNotFinite = apperrors.ErrValidation.WithMessage("amount must be a finite number")
	ErrInvalidPayload  = apperrors.ErrValidation.WithMessage("payload is not valid base64url")
)
