package handlers

import (
	"github.com/giftlink/backend/internal/http/dto"
	"github.com/giftlink/backend/internal/middleware"
	"github.com/giftlink/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type CreditHandler struct {
	creditService *services.CreditService
	log           *zap.Logger
}

func NewCreditHandler(creditService *services.CreditService, log *zap.Logger) *CreditHandler {
	return &CreditHandler{creditService: creditService, log: log}
}

// GetActive returns the caller's live credit allowance.
// GET /api/v1/me/credit
func (h *CreditHandler) GetActive(c *fiber.Ctx) error {
	identity := middleware.GetIdentity(c)

	entry, err := h.creditService.GetActive(c.Context(), identity)
	if err != nil {
		h.log.Error("failed to load credit", zap.String("identity", identity), zap.Error(err))
		return respondError(c, err)
	}
	if entry == nil {
		return c.JSON(dto.SuccessResponse{OK: true, Data: dto.CreditResponse{IsActive: false}})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.CreditResponse{
		IsActive:            true,
		BalanceCents:        entry.BalanceCents,
		FreeSendsRemaining:  entry.FreeSendsRemaining(),
		FeeWaiversRemaining: entry.FeeWaiversRemaining(),
	}})
}

// Issue grants the funding-linked credit package. Idempotent per
// funding_tx_ref.
// POST /api/v1/me/credit/issue
func (h *CreditHandler) Issue(c *fiber.Ctx) error {
	var req dto.IssueCreditRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	if req.FundingTxRef == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "funding_tx_ref is required"})
	}

	identity := middleware.GetIdentity(c)
	entry, err := h.creditService.Issue(c.Context(), identity, req.FundingTxRef)
	if err != nil {
		h.log.Warn("credit issuance failed", zap.String("identity", identity), zap.Error(err))
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: entry})
}
