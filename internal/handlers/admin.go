package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	apperrors "paylink/internal/errors"
	"paylink/internal/models"
	"paylink/internal/services/merchant"
	"paylink/internal/services/payment"
	"paylink/internal/utils"
	"paylink/internal/utils/pagination"
	"paylink/internal/utils/response"
	"paylink/internal/validation"
)

const defaultStatsWindow = 24 * time.Hour

// AdminHandler serves the back-office merchant endpoints. Callers are admin JWT sessions.
type AdminHandler struct {
	merchants *merchant.Service
	payments  payment.Service
	log       *logrus.Logger
	now       func() time.Time
}

func NewAdminHandler(merchants *merchant.Service, payments payment.Service, log *logrus.Logger, now func() time.Time) *AdminHandler {
	if now == nil {
		now = time.Now
	}
	return &AdminHandler{merchants: merchants, payments: payments, log: log, now: now}
}

func (h *AdminHandler) ListMerchants(c *fiber.Ctx) error {
	p := pagination.ParseFromRequest(c)

	merchants, total, err := h.merchants.List(c.UserContext(), p.Limit, p.Offset)
	if err != nil {
		h.log.WithError(err).Error("failed to list merchants")
		return response.FromError(c, err)
	}

	p.Total = total
	return c.JSON(pagination.Response(p, merchants))
}

func (h *AdminHandler) GetMerchant(c *fiber.Ctx) error {
	id, err := merchantID(c)
	if err != nil {
		return response.FromError(c, err)
	}
	m, err := h.merchants.Get(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Merchant retrieved", m)
}

func (h *AdminHandler) CreateMerchant(c *fiber.Ctx) error {
	var input validation.MerchantInput
	if err := c.BodyParser(&input); err != nil {
		return response.FromError(c, apperrors.ErrValidation.WithMessage("Invalid request format"))
	}
	registered, err := h.merchants.Register(c.UserContext(), input)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Created(c, fiber.Map{
		"message": "Merchant created",
		"data":    registered,
	})
}

func (h *AdminHandler) UpdateMerchant(c *fiber.Ctx) error {
	id, err := merchantID(c)
	if err != nil {
		return response.FromError(c, err)
	}
	var input validation.MerchantInput
	if err := c.BodyParser(&input); err != nil {
		return response.FromError(c, apperrors.ErrValidation.WithMessage("Invalid request format"))
	}
	updated, err := h.merchants.Update(c.UserContext(), id, input)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Merchant updated", updated)
}

func (h *AdminHandler) RotateToken(c *fiber.Ctx) error {
	id, err := merchantID(c)
	if err != nil {
		return response.FromError(c, err)
	}
	res, err := h.merchants.RotateToken(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Token rotated", res)
}

func (h *AdminHandler) TokenPreview(c *fiber.Ctx) error {
	id, err := merchantID(c)
	if err != nil {
		return response.FromError(c, err)
	}
	preview, err := h.merchants.Preview(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Token preview", fiber.Map{"preview": preview})
}

func (h *AdminHandler) RevealToken(c *fiber.Ctx) error {
	id, err := merchantID(c)
	if err != nil {
		return response.FromError(c, err)
	}
	claims, _ := utils.GetAdminClaims(c)
	token, err := h.merchants.Reveal(c.UserContext(), id, claims)
	if err != nil {
		return response.FromError(c, err)
	}
	c.Set(fiber.HeaderCacheControl, "no-store")
	return response.Success(c, "Token revealed", fiber.Map{"token": token})
}

// GeneratePayment issues a link on behalf of a merchant. The token and IP checks do not
// apply; status, quota and commission do.
func (h *AdminHandler) GeneratePayment(c *fiber.Ctx) error {
	id, err := merchantID(c)
	if err != nil {
		return response.FromError(c, err)
	}
	m, err := h.merchants.Get(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return generate(c, h.payments, m, models.SourceAdmin)
}

// GenerationStats reports total, unique and duplicate issuance attempts in [from, to).
// Both bounds accept RFC 3339 or YYYY-MM-DD; the default window is the last 24 hours.
func (h *AdminHandler) GenerationStats(c *fiber.Ctx) error {
	id, err := merchantID(c)
	if err != nil {
		return response.FromError(c, err)
	}
	to := h.now()
	if raw := c.Query("to"); raw != "" {
		if to, err = parseTime(raw); err != nil {
			return response.FromError(c, apperrors.ErrValidation.WithMessage("to must be RFC 3339 or YYYY-MM-DD"))
		}
	}
	from := to.Add(-defaultStatsWindow)
	if raw := c.Query("from"); raw != "" {
		if from, err = parseTime(raw); err != nil {
			return response.FromError(c, apperrors.ErrValidation.WithMessage("from must be RFC 3339 or YYYY-MM-DD"))
		}
	}
	if !from.Before(to) {
		return response.FromError(c, apperrors.ErrValidation.WithMessage("from must be before to"))
	}

	stats, err := h.merchants.GenerationStats(c.UserContext(), id, from, to)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Generation stats", fiber.Map{
		"from":  from.UTC(),
		"to":    to.UTC(),
		"stats": stats,
	})
}

func merchantID(c *fiber.Ctx) (uint, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, apperrors.ErrValidation.WithMessage("Invalid merchant ID")
	}
	return uint(id), nil
}

func parseTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}
