package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	apperrors "paylink/internal/errors"
	"paylink/internal/models"
	"paylink/internal/services/payment"
	"paylink/internal/utils"
	"paylink/internal/utils/response"
	"paylink/internal/validation"
)

const (
	defaultQRSize = 256
	maxQRSize     = 1024
)

type PaymentHandler struct {
	payments payment.Service
	log      *logrus.Logger
}

func NewPaymentHandler(payments payment.Service, log *logrus.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, log: log}
}

// Generate issues a link for the merchant resolved by the bearer token.
func (h *PaymentHandler) Generate(c *fiber.Ctx) error {
	merchant, err := utils.GetMerchant(c)
	if err != nil {
		return response.FromError(c, apperrors.ErrInvalidToken)
	}

	return generate(c, h.payments, merchant, models.SourceAPI)
}

// Resolve returns the payment intent of a live link. Missing and expired links get the
// same 200 so a caller cannot tell which identifiers exist.
func (h *PaymentHandler) Resolve(c *fiber.Ctx) error {
	resolved, err := h.payments.Resolve(c.UserContext(), c.Params("linkId"))
	if err != nil {
		if errors.Is(err, apperrors.ErrPaymentNotFound) {
			return c.JSON(fiber.Map{
				"found":   false,
				"message": "No payment available for this link",
			})
		}
		return response.FromError(c, err)
	}
	return c.JSON(fiber.Map{
		"found":   true,
		"payment": resolved,
	})
}

func (h *PaymentHandler) QRImage(c *fiber.Ctx) error {
	size := c.QueryInt("size", defaultQRSize)
	if size <= 0 || size > maxQRSize {
		size = defaultQRSize
	}
	png, err := h.payments.QRImage(c.UserContext(), c.Params("linkId"), size)
	if err != nil {
		return response.FromError(c, err)
	}
	c.Set(fiber.HeaderContentType, "image/png")
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(png)
}

func (h *PaymentHandler) Scan(c *fiber.Ctx) error {
	if err := h.payments.RecordScan(c.UserContext(), c.Params("linkId"), meta(c, "")); err != nil {
		return response.FromError(c, err)
	}
	return response.OK(c)
}

// Bank records which banking app the payer chose. The body is optional.
func (h *PaymentHandler) Bank(c *fiber.Ctx) error {
	var handoff payment.BankHandoff
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&handoff); err != nil {
			return response.FromError(c, apperrors.ErrValidation.WithMessage("Invalid request format"))
		}
	}
	if err := h.payments.RecordBankHandoff(c.UserContext(), c.Params("linkId"), handoff, meta(c, "")); err != nil {
		return response.FromError(c, err)
	}
	return response.OK(c)
}

// generate parses the issuance body and runs it through the service. A malformed body
// still leaves a failed row in the ledger.
func generate(c *fiber.Ctx, payments payment.Service, merchant *models.Merchant, source string) error {
	md := meta(c, source)
	var input validation.PaymentInput
	if err := c.BodyParser(&input); err != nil {
		cause := apperrors.ErrValidation.WithMessage("Invalid request format")
		payments.RejectRequest(c.UserContext(), merchant, md, cause)
		return response.FromError(c, cause)
	}
	issued, err := payments.Generate(c.UserContext(), merchant, input, md)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Created(c, issuedBody(issued))
}

func meta(c *fiber.Ctx, source string) payment.Meta {
	return payment.Meta{
		Source:    source,
		ClientIP:  c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	}
}

func issuedBody(issued *payment.Issued) fiber.Map {
	link := issued.Link
	return fiber.Map{
		"message": "Payment link generated",
		"payment": fiber.Map{
			"originalAmount":    link.Amount,
			"commissionPercent": link.CommissionPercentAmount,
			"commissionFixed":   link.CommissionFixedAmount,
			"finalAmount":       link.FinalAmount,
			"linkId":            link.LinkID,
			"qr_link":           issued.PageURL,
			"qrlink":            issued.QRLink,
			"nbu_link":          issued.QRLink,
			"expiresAt":         link.ExpiresAt,
		},
	}
}
