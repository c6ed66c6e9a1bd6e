package handlers

import (
	"github.com/giftlink/backend/internal/http/dto"
	"github.com/giftlink/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type FeeHandler struct {
	feeService *services.FeeService
	log        *zap.Logger
}

func NewFeeHandler(feeService *services.FeeService, log *zap.Logger) *FeeHandler {
	return &FeeHandler{feeService: feeService, log: log}
}

// Quote prices a prospective send without creating anything.
// POST /api/v1/fees/quote
func (h *FeeHandler) Quote(c *fiber.Ctx) error {
	var req dto.FeeQuoteRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	svcReq := services.FeeRequest{
		AmountNano:     req.AmountNano,
		IncludeAddOn:   req.IncludeAddOn,
		PaymentChannel: req.PaymentChannel,
	}
	if req.AssetID != nil {
		id, err := uuid.Parse(*req.AssetID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid asset_id"})
		}
		svcReq.AssetID = &id
	}
	if req.BundleID != nil {
		id, err := uuid.Parse(*req.BundleID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid bundle_id"})
		}
		svcReq.BundleID = &id
	}

	quote, err := h.feeService.CalculateFees(c.Context(), svcReq)
	if err != nil {
		h.log.Debug("fee quote failed", zap.Error(err))
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: quote})
}
