package handlers

import (
	"github.com/giftlink/backend/internal/errs"
	"github.com/giftlink/backend/internal/http/dto"
	"github.com/giftlink/backend/internal/middleware"
	"github.com/giftlink/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type GiftHandler struct {
	giftService *services.GiftService
	log         *zap.Logger
}

func NewGiftHandler(giftService *services.GiftService, log *zap.Logger) *GiftHandler {
	return &GiftHandler{giftService: giftService, log: log}
}

// statusForCode maps the core's stable error codes onto HTTP statuses.
func statusForCode(code string) int {
	switch code {
	case errs.CodeNotFound:
		return fiber.StatusNotFound
	case errs.CodeIdempotencyConflict:
		return fiber.StatusConflict
	case errs.CodeInsufficientFunds:
		return fiber.StatusPaymentRequired
	case errs.CodePriceUnavailable, errs.CodeExternalService:
		return fiber.StatusBadGateway
	case errs.CodeDecryption, errs.CodeConfiguration:
		return fiber.StatusInternalServerError
	default:
		return fiber.StatusBadRequest
	}
}

func respondError(c *fiber.Ctx, err error) error {
	code := errs.CodeOf(err)
	status := statusForCode(code)
	msg := err.Error()
	if status == fiber.StatusInternalServerError {
		msg = "internal error"
	}
	reqID, _ := c.Locals(middleware.CtxRequestID).(string)
	return c.Status(status).JSON(dto.ErrorResponse{Error: msg, Code: code, RequestID: reqID})
}

// CreateSend opens a new gift in pending_payment.
// POST /api/v1/gifts
func (h *GiftHandler) CreateSend(c *fiber.Ctx) error {
	var req dto.CreateSendRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	if req.SenderAddress == "" || req.RecipientContact == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "sender_address and recipient_contact are required"})
	}
	if req.PaymentChannel == "" {
		req.PaymentChannel = services.PaymentChannelWallet
	}

	svcReq := services.CreateSendRequest{
		SenderIdentity:   middleware.GetIdentity(c),
		SenderContact:    middleware.GetContact(c),
		SenderAddress:    req.SenderAddress,
		RecipientContact: req.RecipientContact,
		AmountNano:       req.AmountNano,
		Message:          req.Message,
		PaymentChannel:   req.PaymentChannel,
		IncludeAddOn:     req.IncludeAddOn,
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

	result, err := h.giftService.CreateSend(c.Context(), svcReq)
	if err != nil {
		h.log.Warn("create send failed", zap.Error(err))
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: result})
}

// CompleteSend verifies escrow funding and promotes the gift to SENT.
// POST /api/v1/gifts/:id/complete
func (h *GiftHandler) CompleteSend(c *fiber.Ctx) error {
	giftID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid gift id"})
	}

	result, err := h.giftService.CompleteSend(c.Context(), giftID)
	if err != nil {
		h.log.Warn("complete send failed", zap.String("gift_id", giftID.String()), zap.Error(err))
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: result})
}

// PollStatus reports the gift/onramp/swap status triple.
// GET /api/v1/gifts/:id/status
func (h *GiftHandler) PollStatus(c *fiber.Ctx) error {
	giftID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid gift id"})
	}

	status, err := h.giftService.PollStatus(c.Context(), giftID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: status})
}

// ConfirmSwapSigned records a signed, submitted swap transaction.
// POST /api/v1/gifts/:id/swaps/:swapId/confirm
func (h *GiftHandler) ConfirmSwapSigned(c *fiber.Ctx) error {
	giftID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid gift id"})
	}
	swapID, err := uuid.Parse(c.Params("swapId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid swap id"})
	}

	var req dto.ConfirmSwapRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	if req.Signature == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "signature is required"})
	}

	op, err := h.giftService.ConfirmSwapSigned(c.Context(), giftID, swapID, req.Signature)
	if err != nil {
		h.log.Warn("swap confirmation failed",
			zap.String("gift_id", giftID.String()),
			zap.String("swap_id", swapID.String()),
			zap.Error(err))
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: op})
}

// Claim releases the escrowed value to a proven recipient wallet.
// POST /api/v1/gifts/:id/claim
func (h *GiftHandler) Claim(c *fiber.Ctx) error {
	giftID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid gift id"})
	}

	var req dto.ClaimRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	if req.RecipientAddress == "" || req.PublicKey == "" || req.Proof.Signature == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "recipient_address, public_key and proof.signature are required"})
	}

	gift, err := h.giftService.Claim(c.Context(), services.ClaimRequest{
		GiftID:           giftID,
		RecipientAddress: req.RecipientAddress,
		PublicKey:        req.PublicKey,
		Proof:            req.Proof,
	})
	if err != nil {
		h.log.Warn("claim failed", zap.String("gift_id", giftID.String()), zap.Error(err))
		return respondError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: gift})
}
