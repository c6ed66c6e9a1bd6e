package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/giftlink/backend/internal/clients"
	"github.com/giftlink/backend/internal/config"
	"github.com/giftlink/backend/internal/custody"
	"github.com/giftlink/backend/internal/errs"
	"github.com/giftlink/backend/internal/events"
	"github.com/giftlink/backend/internal/models"
	"github.com/giftlink/backend/internal/repositories"
	"github.com/giftlink/backend/internal/ton"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// claimMarkerTTL bounds the redis fast-path guard against claim replays.
// The conditional status update in the store is the real guarantee.
const claimMarkerTTL = 48 * time.Hour

type GiftService struct {
	cfg       *config.Config
	vault     *custody.Vault
	chain     *ton.Client
	gifts     *repositories.GiftRepo
	assets    *repositories.AssetRepo
	bundles   *repositories.BundleRepo
	escrows   *repositories.EscrowRepo
	swapOps   *repositories.SwapRepo
	audit     *repositories.AuditRepo
	swaps     *SwapService
	credits   *CreditService
	prices    *clients.PriceClient
	notify    *clients.NotifyClient
	rdb       *redis.Client
	publisher events.Publisher
	log       *zap.Logger
}

func NewGiftService(
	cfg *config.Config,
	vault *custody.Vault,
	chain *ton.Client,
	gifts *repositories.GiftRepo,
	assets *repositories.AssetRepo,
	bundles *repositories.BundleRepo,
	escrows *repositories.EscrowRepo,
	swapOps *repositories.SwapRepo,
	audit *repositories.AuditRepo,
	swaps *SwapService,
	credits *CreditService,
	prices *clients.PriceClient,
	notify *clients.NotifyClient,
	rdb *redis.Client,
	publisher events.Publisher,
	log *zap.Logger,
) *GiftService {
	return &GiftService{
		cfg: cfg, vault: vault, chain: chain,
		gifts: gifts, assets: assets, bundles: bundles, escrows: escrows,
		swapOps: swapOps, audit: audit, swaps: swaps, credits: credits,
		prices: prices, notify: notify, rdb: rdb, publisher: publisher, log: log,
	}
}

type CreateSendRequest struct {
	SenderIdentity   string
	SenderContact    string
	SenderAddress    string
	RecipientContact string
	AssetID          *uuid.UUID
	AmountNano       *string
	BundleID         *uuid.UUID
	Message          *string
	PaymentChannel   string
	IncludeAddOn     bool
}

// CreateSendResult carries everything the sender's wallet collaborator
// needs to fund the gift: escrow deposit addresses for single-asset sends,
// unsigned swap transactions awaiting signature for bundles.
type CreateSendResult struct {
	Gift         *models.Gift           `json:"gift"`
	Escrows      []models.EscrowAccount `json:"escrows,omitempty"`
	SwapOps      []models.SwapOperation `json:"swap_operations,omitempty"`
	FundingNano  string                 `json:"funding_nano,omitempty"`
	FreeSendUsed bool                   `json:"free_send_used"`
	FeeWaived    bool                   `json:"fee_waived"`
}

// CreateSend records the gift in pending_payment and prepares whatever the
// funding side needs. Nothing moves on-chain here; CompleteSend later
// verifies the escrows actually got funded.
func (s *GiftService) CreateSend(ctx context.Context, req CreateSendRequest) (*CreateSendResult, error) {
	if (req.AssetID == nil) == (req.BundleID == nil) {
		return nil, errs.New(errs.CodeNotFound, "request must name exactly one of asset or bundle")
	}

	nativePriceCents, err := s.prices.CurrentPriceCents(ctx, clients.NativeMint)
	if err != nil {
		return nil, err
	}

	gift := &models.Gift{
		SenderIdentity:   req.SenderIdentity,
		SenderContact:    req.SenderContact,
		SenderAddress:    req.SenderAddress,
		RecipientContact: req.RecipientContact,
		AssetID:          req.AssetID,
		BundleID:         req.BundleID,
		Message:          req.Message,
		Status:           models.GiftStatusPendingPayment,
		OnrampStatus:     models.OnrampStatusNotRequired,
		SwapStatus:       models.GiftSwapStatusNone,
		PaymentChannel:   req.PaymentChannel,
		IncludeAddOn:     req.IncludeAddOn,
		ExpiresAt:        time.Now().Add(s.cfg.GiftExpiry),
	}
	if req.PaymentChannel == PaymentChannelCard {
		gift.OnrampStatus = models.OnrampStatusPending
	}

	result := &CreateSendResult{Gift: gift}

	if req.BundleID != nil {
		bundle, err := s.loadBundle(ctx, *req.BundleID)
		if err != nil {
			return nil, err
		}
		funding, err := s.swaps.CalculateFundingAmount(bundle, req.IncludeAddOn, nativePriceCents)
		if err != nil {
			return nil, err
		}
		fundingStr := funding.String()
		gift.AmountNano = &fundingStr
		gift.ValueUSDCents = bundle.FaceValueUSDCents
		if req.IncludeAddOn {
			gift.ValueUSDCents += s.cfg.AddOnPriceCents
		}
		result.FundingNano = fundingStr

		if err := s.gifts.Create(ctx, gift); err != nil {
			return nil, err
		}

		ops, err := s.swaps.ExecuteSwaps(ctx, gift, bundle, req.SenderAddress, funding)
		if err != nil {
			// swap preparation failure is already recorded on the
			// operation; the gift stays pending_payment for a retry
			return nil, err
		}
		result.SwapOps = ops
	} else {
		asset, err := s.loadAsset(ctx, *req.AssetID)
		if err != nil {
			return nil, err
		}
		if req.AmountNano == nil {
			return nil, errs.New(errs.CodeNotFound, "single-asset send missing amount")
		}
		nano, ok := new(big.Int).SetString(*req.AmountNano, 10)
		if !ok || nano.Sign() <= 0 {
			return nil, errs.Newf(errs.CodeNotFound, "amount %q is not a positive integer", *req.AmountNano)
		}

		priceCents := nativePriceCents
		if !asset.IsNative() {
			priceCents, err = s.prices.CurrentPriceCents(ctx, asset.Symbol)
			if err != nil {
				return nil, err
			}
		}
		gift.AmountNano = req.AmountNano
		gift.ValueUSDCents = nanoValueCents(nano, asset.Decimals, priceCents)

		if err := s.gifts.Create(ctx, gift); err != nil {
			return nil, err
		}

		kp, err := s.vault.Create()
		if err != nil {
			return nil, err
		}
		escrow := models.EscrowAccount{
			GiftID:          gift.ID,
			AssetID:         asset.ID,
			PublicKey:       kp.PublicKey,
			Address:         kp.Address,
			EncryptedSecret: kp.EncryptedSecret,
			AmountNano:      nano.String(),
		}
		if err := s.escrows.Create(ctx, &escrow); err != nil {
			return nil, err
		}
		result.Escrows = []models.EscrowAccount{escrow}
	}

	free, err := s.credits.ConsumeSendWaiver(ctx, req.SenderIdentity)
	if err != nil {
		s.log.Warn("send waiver check failed", zap.String("gift_id", gift.ID.String()), zap.Error(err))
	}
	result.FreeSendUsed = free

	// card sends carry a payment fee, which an unspent waiver covers
	if req.PaymentChannel == PaymentChannelCard {
		waived, err := s.credits.ConsumeFeeWaiver(ctx, req.SenderIdentity)
		if err != nil {
			s.log.Warn("fee waiver check failed", zap.String("gift_id", gift.ID.String()), zap.Error(err))
		}
		result.FeeWaived = waived
	}

	s.auditRecord(ctx, req.SenderIdentity, models.ActorUser, "gift.create", gift.ID, map[string]any{
		"status":     gift.Status,
		"value":      gift.ValueUSDCents,
		"channel":    gift.PaymentChannel,
		"is_free":    free,
		"fee_waived": result.FeeWaived,
	})
	return result, nil
}

// CompleteSendResult reports how far funding verification got.
type CompleteSendResult struct {
	Funded  bool                   `json:"funded"`
	Status  string                 `json:"status"`
	Escrows []models.EscrowAccount `json:"escrows"`
}

// CompleteSend verifies every required escrow leg holds its funds and, once
// all do, moves the gift to SENT and notifies the recipient. For bundles it
// first materialises the escrow accounts from the reserved and swapped leg
// amounts, which must wait until every swap has left the signing pipeline:
// a leg whose output is still unknown cannot be sized, and omitting it
// would strand its value. Idempotent: safe to call again while funds or
// signatures are still in flight.
func (s *GiftService) CompleteSend(ctx context.Context, giftID uuid.UUID) (*CompleteSendResult, error) {
	gift, err := s.Get(ctx, giftID)
	if err != nil {
		return nil, err
	}
	if gift.Status != models.GiftStatusPendingPayment {
		return &CompleteSendResult{Funded: gift.Status == models.GiftStatusSent, Status: gift.Status}, nil
	}

	accounts, err := s.escrows.ListByGift(ctx, giftID)
	if err != nil {
		return nil, err
	}

	if gift.IsBundle() {
		ops, err := s.swapOps.ListByGift(ctx, giftID)
		if err != nil {
			return nil, err
		}
		if !swapsSettled(ops) {
			return &CompleteSendResult{Funded: false, Status: gift.Status, Escrows: accounts}, nil
		}
		if len(accounts) == 0 {
			accounts, err = s.materialiseBundleEscrows(ctx, gift, ops)
			if err != nil {
				return nil, err
			}
		}
	}
	if len(accounts) == 0 {
		return nil, errs.New(errs.CodeInsufficientFunds, "no escrow leg resolved to a fundable amount")
	}

	allFunded := true
	for i := range accounts {
		account := &accounts[i]
		if account.IsFunded() {
			continue
		}
		funded, err := s.verifyEscrowFunded(ctx, account)
		if err != nil {
			return nil, err
		}
		if !funded {
			allFunded = false
		}
	}

	if !allFunded {
		return &CompleteSendResult{Funded: false, Status: gift.Status, Escrows: accounts}, nil
	}

	ok, err := s.gifts.UpdateStatus(ctx, giftID, models.GiftStatusPendingPayment, models.GiftStatusSent)
	if err != nil {
		return nil, err
	}
	if ok {
		gift.Status = models.GiftStatusSent
		if gift.OnrampStatus == models.OnrampStatusPending {
			if err := s.gifts.UpdateOnrampStatus(ctx, giftID, models.OnrampStatusCompleted); err != nil {
				s.log.Warn("failed to complete onramp status", zap.String("gift_id", giftID.String()), zap.Error(err))
			}
		}
		s.publish(ctx, events.EventGiftStatusChanged, map[string]any{
			"gift_id": giftID.String(),
			"status":  models.GiftStatusSent,
		})
		s.auditRecord(ctx, gift.SenderIdentity, models.ActorUser, "gift.sent", giftID, nil)

		claimURL := fmt.Sprintf("/claim/%s", giftID)
		if err := s.notify.GiftSent(ctx, gift.RecipientContact, giftID.String(), claimURL); err != nil {
			s.log.Warn("gift sent notification failed", zap.String("gift_id", giftID.String()), zap.Error(err))
		}
	}
	return &CompleteSendResult{Funded: true, Status: models.GiftStatusSent, Escrows: accounts}, nil
}

// StatusResult is the poll surface for senders watching a gift settle.
type StatusResult struct {
	GiftStatus   string `json:"gift_status"`
	OnrampStatus string `json:"onramp_status"`
	SwapStatus   string `json:"swap_status"`
}

func (s *GiftService) PollStatus(ctx context.Context, giftID uuid.UUID) (*StatusResult, error) {
	gift, err := s.Get(ctx, giftID)
	if err != nil {
		return nil, err
	}
	return &StatusResult{
		GiftStatus:   gift.Status,
		OnrampStatus: gift.OnrampStatus,
		SwapStatus:   gift.SwapStatus,
	}, nil
}

// ConfirmSwapSigned closes the loop on a prepared swap: the sender's wallet
// collaborator signed and submitted the transaction and hands back its
// hash. The transaction must be visible on-chain before the operation is
// marked completed.
func (s *GiftService) ConfirmSwapSigned(ctx context.Context, giftID, swapID uuid.UUID, signature string) (*models.SwapOperation, error) {
	gift, err := s.Get(ctx, giftID)
	if err != nil {
		return nil, err
	}
	op, err := s.swapOps.GetByID(ctx, swapID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.NotFound("swap operation")
		}
		return nil, err
	}
	if op.GiftID != giftID {
		return nil, errs.NotFound("swap operation")
	}

	seen, err := s.chain.TransactionExists(ctx, gift.SenderAddress, signature, 3)
	if err != nil {
		return nil, errs.External("verify swap transaction", err)
	}
	if !seen {
		return nil, errs.Newf(errs.CodeExternalService, "transaction %s not found on-chain yet", signature)
	}

	ok, err := s.swapOps.MarkCompleted(ctx, swapID, signature)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.Newf(errs.CodeIdempotencyConflict, "swap %s is not awaiting a signature", swapID)
	}
	op.Status = models.SwapStatusCompleted
	op.Signature = &signature

	if done, err := s.allSwapsCompleted(ctx, giftID); err == nil && done {
		if ok, err := s.gifts.UpdateSwapStatus(ctx, giftID, gift.SwapStatus, models.GiftSwapStatusCompleted); err != nil || !ok {
			s.log.Warn("failed to advance gift swap status to completed", zap.String("gift_id", giftID.String()), zap.Error(err))
		}
	}

	s.publish(ctx, events.EventSwapStatusChanged, map[string]any{
		"gift_id": giftID.String(),
		"swap_id": swapID.String(),
		"status":  models.SwapStatusCompleted,
	})
	return op, nil
}

type ClaimRequest struct {
	GiftID           uuid.UUID
	RecipientAddress string // raw form, workchain:hex
	PublicKey        string // hex, recipient wallet key
	Proof            ton.Proof
}

// Claim releases the escrowed funds to the recipient. The recipient proves
// control of the destination wallet with a signed connect proof; the gift
// then transitions SENT -> CLAIMED exactly once and every escrow leg is
// transferred out. A replayed claim is answered from the terminal state
// without touching the chain.
func (s *GiftService) Claim(ctx context.Context, req ClaimRequest) (*models.Gift, error) {
	gift, err := s.Get(ctx, req.GiftID)
	if err != nil {
		return nil, err
	}
	if gift.Status != models.GiftStatusSent {
		return nil, errs.Newf(errs.CodeIdempotencyConflict, "gift is %s, not claimable", gift.Status)
	}

	workchain, addrHash, err := ton.ParseRawAddress(req.RecipientAddress)
	if err != nil {
		return nil, errs.Wrap(errs.CodeNotFound, "recipient address", err)
	}
	if err := ton.VerifyProof(req.PublicKey, addrHash, workchain, req.Proof, s.cfg.ProofAllowedDomains, s.cfg.ClaimProofMaxAge); err != nil {
		return nil, err
	}

	// fast-path replay guard; the conditional update below is authoritative
	if s.rdb != nil {
		set, err := s.rdb.SetNX(ctx, "claim:"+req.GiftID.String(), "1", claimMarkerTTL).Result()
		if err == nil && !set {
			return nil, errs.New(errs.CodeIdempotencyConflict, "claim already in progress")
		}
	}

	ok, err := s.gifts.MarkClaimed(ctx, req.GiftID, req.RecipientAddress, req.Proof.Signature)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.New(errs.CodeIdempotencyConflict, "gift already settled")
	}

	accounts, err := s.escrows.ListByGift(ctx, req.GiftID)
	if err != nil {
		return nil, err
	}
	for i := range accounts {
		if err := s.releaseEscrow(ctx, &accounts[i], req.RecipientAddress); err != nil {
			// claim already recorded; funds stay custodied for manual release
			s.log.Error("escrow release failed after claim",
				zap.String("gift_id", req.GiftID.String()),
				zap.String("escrow_id", accounts[i].ID.String()),
				zap.Error(err))
		}
	}

	s.publish(ctx, events.EventGiftStatusChanged, map[string]any{
		"gift_id": req.GiftID.String(),
		"status":  models.GiftStatusClaimed,
	})
	s.auditRecord(ctx, req.RecipientAddress, models.ActorUser, "gift.claim", req.GiftID, map[string]any{
		"recipient": req.RecipientAddress,
	})

	return s.Get(ctx, req.GiftID)
}

func (s *GiftService) Get(ctx context.Context, giftID uuid.UUID) (*models.Gift, error) {
	gift, err := s.gifts.GetByID(ctx, giftID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.NotFound("gift")
		}
		return nil, err
	}
	return gift, nil
}

// swapsSettled reports whether every swap operation has reached a terminal
// state. Escrow legs must not be materialised while any swap is still
// prepared or awaiting its signature, because that leg's output amount is
// not yet known.
func swapsSettled(ops []models.SwapOperation) bool {
	for _, op := range ops {
		switch op.Status {
		case models.SwapStatusPrepared, models.SwapStatusPendingSignature:
			return false
		}
	}
	return true
}

// materialiseBundleEscrows rebuilds the leg allocations from the recorded
// funding amount and creates escrow accounts for every leg that resolved to
// a nonzero amount, swapped legs valued at their completed swap output.
// Callers must only pass ops that have settled.
func (s *GiftService) materialiseBundleEscrows(ctx context.Context, gift *models.Gift, ops []models.SwapOperation) ([]models.EscrowAccount, error) {
	bundle, err := s.loadBundle(ctx, *gift.BundleID)
	if err != nil {
		return nil, err
	}
	if gift.AmountNano == nil {
		return nil, errs.New(errs.CodeConfiguration, "bundle gift has no recorded funding amount")
	}
	funding, ok := new(big.Int).SetString(*gift.AmountNano, 10)
	if !ok {
		return nil, errs.Newf(errs.CodeConfiguration, "recorded funding amount %q is not an integer", *gift.AmountNano)
	}

	allocations := AllocateBundleLegs(bundle.Legs, funding)
	return s.swaps.CreateBundleEscrowAccounts(ctx, gift, bundle, allocations, ops)
}

// verifyEscrowFunded polls the chain for the escrow's balance arrival,
// bounded by the configured attempt ceiling, and records the funded amount
// when it lands.
func (s *GiftService) verifyEscrowFunded(ctx context.Context, account *models.EscrowAccount) (bool, error) {
	asset, err := s.loadAsset(ctx, account.AssetID)
	if err != nil {
		return false, err
	}

	expected, ok := new(big.Int).SetString(account.AmountNano, 10)
	if !ok {
		return false, errs.Newf(errs.CodeConfiguration, "escrow %s recorded amount %q is not an integer", account.ID, account.AmountNano)
	}

	arrived, err := s.chain.WaitForBalance(ctx, account.Address, asset.MasterAddress, expected,
		s.cfg.BalancePollInterval, s.cfg.BalancePollMaxAttempts)
	if err != nil {
		return false, errs.External("poll escrow balance", err)
	}
	if !arrived {
		return false, nil
	}

	if err := s.escrows.MarkFunded(ctx, account.ID, expected.String()); err != nil {
		return false, err
	}
	now := time.Now()
	fundedStr := expected.String()
	account.FundedNano = &fundedStr
	account.FundedAt = &now

	s.publish(ctx, events.EventEscrowFunded, map[string]any{
		"gift_id":   account.GiftID.String(),
		"escrow_id": account.ID.String(),
		"amount":    expected.String(),
	})
	return true, nil
}

// releaseEscrow transfers an escrow's holdings to the recipient. Native
// escrows keep back the fixed fee reserve; jetton escrows move the full
// recorded amount with a small native attachment for gas.
func (s *GiftService) releaseEscrow(ctx context.Context, account *models.EscrowAccount, recipient string) error {
	asset, err := s.loadAsset(ctx, account.AssetID)
	if err != nil {
		return err
	}
	priv, err := s.vault.Decrypt(account.EncryptedSecret)
	if err != nil {
		return err
	}

	var sig string
	if asset.IsNative() {
		balance, err := s.chain.NativeBalance(ctx, account.Address)
		if err != nil {
			return errs.External("escrow balance", err)
		}
		reserve, err := ton.ToNano(s.cfg.FeeReserveTON, nativeDecimals)
		if err != nil {
			return errs.Wrap(errs.CodeConfiguration, "bad FEE_RESERVE_TON", err)
		}
		transferable := new(big.Int).Sub(balance, reserve)
		if transferable.Sign() <= 0 {
			return errs.New(errs.CodeInsufficientFunds, "escrow balance below fee reserve")
		}
		sig, err = s.chain.TransferNative(ctx, priv, recipient, transferable, "gift claim")
		if err != nil {
			return errs.External("claim transfer", err)
		}
	} else {
		balance, err := s.chain.JettonBalance(ctx, *asset.MasterAddress, account.Address)
		if err != nil {
			return errs.External("escrow jetton balance", err)
		}
		recorded, _ := new(big.Int).SetString(account.AmountNano, 10)
		amount := balance
		if recorded != nil && recorded.Cmp(balance) < 0 {
			amount = recorded
		}
		if amount.Sign() <= 0 {
			return errs.New(errs.CodeInsufficientFunds, "escrow jetton balance is zero")
		}
		sig, err = s.chain.TransferJetton(ctx, priv, *asset.MasterAddress, recipient, amount, asset.Decimals, s.cfg.FeeReserveTON, "gift claim")
		if err != nil {
			return errs.External("claim transfer", err)
		}
	}

	if _, err := s.escrows.MarkClaimed(ctx, account.ID); err != nil {
		s.log.Warn("failed to flag escrow claimed", zap.String("escrow_id", account.ID.String()), zap.Error(err))
	}
	s.log.Info("escrow released",
		zap.String("escrow_id", account.ID.String()),
		zap.String("signature", sig))
	return nil
}

func (s *GiftService) allSwapsCompleted(ctx context.Context, giftID uuid.UUID) (bool, error) {
	ops, err := s.swapOps.ListByGift(ctx, giftID)
	if err != nil {
		return false, err
	}
	if len(ops) == 0 {
		return false, nil
	}
	for _, op := range ops {
		if op.Status != models.SwapStatusCompleted {
			return false, nil
		}
	}
	return true, nil
}

func (s *GiftService) loadBundle(ctx context.Context, id uuid.UUID) (*models.BundleTemplate, error) {
	bundle, err := s.bundles.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.NotFound("bundle")
		}
		return nil, err
	}
	if err := bundle.Validate(); err != nil {
		return nil, errs.Wrap(errs.CodeConfiguration, "bundle template invalid", err)
	}
	return bundle, nil
}

func (s *GiftService) loadAsset(ctx context.Context, id uuid.UUID) (*models.Asset, error) {
	asset, err := s.assets.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.NotFound("asset")
		}
		return nil, err
	}
	return asset, nil
}

func (s *GiftService) publish(ctx context.Context, eventType string, payload map[string]any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events.StreamGifts, events.Event{Type: eventType, Payload: payload}); err != nil {
		s.log.Warn("failed to publish event", zap.String("type", eventType), zap.Error(err))
	}
}

func (s *GiftService) auditRecord(ctx context.Context, identity, actorType, action string, entityID uuid.UUID, meta map[string]any) {
	entry := &models.AuditLog{
		ActorIdentity: &identity,
		ActorType:     actorType,
		Action:        action,
		EntityType:    "gift",
		EntityID:      &entityID,
		Meta:          meta,
	}
	if err := s.audit.Insert(ctx, entry); err != nil {
		s.log.Warn("audit insert failed", zap.String("action", action), zap.Error(err))
	}
}
