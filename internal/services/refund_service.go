package services

import (
	"context"
	"crypto/ed25519"
	"math/big"
	"time"

	"github.com/giftlink/backend/internal/config"
	"github.com/giftlink/backend/internal/errs"
	"github.com/giftlink/backend/internal/events"
	"github.com/giftlink/backend/internal/models"
	"github.com/giftlink/backend/internal/retry"
	"github.com/giftlink/backend/internal/ton"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// refundOutcome classifies one escrow leg at refund time.
type refundOutcome int

const (
	refundEmpty refundOutcome = iota
	refundLowBalance
	refundTransfer
	refundCorrupt
)

// classifyRefund decides what to do with an escrow leg holding balance.
// Native legs keep back the fixed fee reserve for the transfer itself;
// non-native legs refund at most what was originally recorded, so a
// short balance produces a partial refund rather than a failure.
func classifyRefund(balance, recorded, feeReserve *big.Int, native bool) (refundOutcome, *big.Int) {
	if balance == nil || balance.Sign() == 0 {
		return refundEmpty, nil
	}

	var transferable *big.Int
	if native {
		transferable = new(big.Int).Sub(balance, feeReserve)
	} else {
		transferable = new(big.Int).Set(balance)
		if recorded != nil && recorded.Cmp(transferable) < 0 {
			transferable.Set(recorded)
		}
	}
	if transferable.Sign() <= 0 {
		return refundLowBalance, nil
	}
	return refundTransfer, transferable
}

// giftRefundStatus aggregates per-leg outcomes into the gift's terminal
// status: any successful transfer wins, then a corrupt leg, then low
// balance, then empty.
func giftRefundStatus(outcomes []refundOutcome) string {
	status := models.GiftStatusExpiredEmpty
	for _, o := range outcomes {
		switch o {
		case refundTransfer:
			return models.GiftStatusRefunded
		case refundCorrupt:
			status = models.GiftStatusExpired
		case refundLowBalance:
			if status != models.GiftStatusExpired {
				status = models.GiftStatusExpiredLowBalance
			}
		}
	}
	return status
}

// Narrow views of the stores and collaborators the sweep touches.

type refundGiftStore interface {
	FindExpired(ctx context.Context, maxAttempts, limit int) ([]models.Gift, error)
	MarkRefundAttempt(ctx context.Context, id uuid.UUID) (int, error)
	MarkRefunded(ctx context.Context, id uuid.UUID, signature string) (bool, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error)
}

type refundEscrowStore interface {
	ListByGift(ctx context.Context, giftID uuid.UUID) ([]models.EscrowAccount, error)
}

type refundAssetStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Asset, error)
}

type refundChain interface {
	NativeBalance(ctx context.Context, addrStr string) (*big.Int, error)
	JettonBalance(ctx context.Context, masterAddr, ownerAddr string) (*big.Int, error)
	TransferNative(ctx context.Context, priv ed25519.PrivateKey, toAddr string, amountNano *big.Int, comment string) (string, error)
	TransferJetton(ctx context.Context, priv ed25519.PrivateKey, masterAddr, toAddr string, amountNano *big.Int, decimals int, attachTON, comment string) (string, error)
}

type secretVault interface {
	Decrypt(record string) (ed25519.PrivateKey, error)
}

type refundNotifier interface {
	GiftRefunded(ctx context.Context, senderContact, giftID, amount, symbol string) error
}

type refundAuditStore interface {
	Insert(ctx context.Context, entry *models.AuditLog) error
}

// SweepResult aggregates one scheduler pass.
type SweepResult struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
	Total   int `json:"total"`
}

// RefundService drives expired gifts through refund with bounded retries.
// It runs from the worker on a fixed interval; multiple instances are safe
// because every state change is a conditional update.
type RefundService struct {
	cfg       *config.Config
	vault     secretVault
	chain     refundChain
	gifts     refundGiftStore
	assets    refundAssetStore
	escrows   refundEscrowStore
	audit     refundAuditStore
	notify    refundNotifier
	publisher events.Publisher
	policy    retry.Policy
	log       *zap.Logger
}

func NewRefundService(
	cfg *config.Config,
	vault secretVault,
	chain refundChain,
	gifts refundGiftStore,
	assets refundAssetStore,
	escrows refundEscrowStore,
	audit refundAuditStore,
	notify refundNotifier,
	publisher events.Publisher,
	log *zap.Logger,
) *RefundService {
	return &RefundService{
		cfg: cfg, vault: vault, chain: chain,
		gifts: gifts, assets: assets, escrows: escrows, audit: audit,
		notify: notify, publisher: publisher,
		policy: retry.Policy{MaxAttempts: cfg.RefundMaxAttempts},
		log:    log,
	}
}

// RunExpirySweep processes one bounded batch of expired gifts, strictly
// sequentially with a fixed delay between items so external rate limits
// are respected. One gift failing never blocks the rest.
func (s *RefundService) RunExpirySweep(ctx context.Context) (SweepResult, error) {
	gifts, err := s.gifts.FindExpired(ctx, s.cfg.RefundMaxAttempts, s.cfg.RefundBatchSize)
	if err != nil {
		return SweepResult{}, err
	}

	result := SweepResult{Total: len(gifts)}
	for i := range gifts {
		gift := &gifts[i]
		if err := s.refundGift(ctx, gift); err != nil {
			result.Failed++
			s.log.Error("refund failed",
				zap.String("gift_id", gift.ID.String()),
				zap.Int("attempt", gift.RefundAttempts),
				zap.Error(err))
		} else {
			result.Success++
		}

		if i < len(gifts)-1 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(s.cfg.RefundItemDelay):
			}
		}
	}

	if result.Total > 0 {
		s.log.Info("expiry sweep finished",
			zap.Int("total", result.Total),
			zap.Int("success", result.Success),
			zap.Int("failed", result.Failed))
	}
	return result, nil
}

// refundGift settles one expired gift. The attempt counter is incremented
// before any chain work so a crash mid-refund still counts against the
// ceiling. Every leg is attempted even when one fails: a corrupt secret is
// fatal for that escrow only, and a retryable leg failure leaves the gift
// for the next sweep without undoing transfers that already landed.
func (s *RefundService) refundGift(ctx context.Context, gift *models.Gift) error {
	attempts, err := s.gifts.MarkRefundAttempt(ctx, gift.ID)
	if err != nil {
		return err
	}
	gift.RefundAttempts = attempts

	accounts, err := s.escrows.ListByGift(ctx, gift.ID)
	if err != nil {
		return s.attemptFailed(ctx, gift, err, "")
	}
	if len(accounts) == 0 {
		return s.finalize(ctx, gift, models.GiftStatusExpiredEmpty, "")
	}

	outcomes := make([]refundOutcome, 0, len(accounts))
	var lastSig string
	var refundedAmount string
	var refundedSymbol string
	var legErr error

	for i := range accounts {
		outcome, sig, amount, symbol, err := s.refundEscrow(ctx, gift, &accounts[i])
		if err != nil {
			if errs.IsCode(err, errs.CodeDecryption) {
				s.log.Error("escrow secret unrecoverable",
					zap.String("gift_id", gift.ID.String()),
					zap.String("escrow_id", accounts[i].ID.String()),
					zap.Error(err))
				outcomes = append(outcomes, refundCorrupt)
				continue
			}
			s.log.Warn("escrow refund leg failed",
				zap.String("gift_id", gift.ID.String()),
				zap.String("escrow_id", accounts[i].ID.String()),
				zap.Error(err))
			legErr = err
			continue
		}
		outcomes = append(outcomes, outcome)
		if outcome == refundTransfer {
			lastSig = sig
			refundedAmount = amount
			refundedSymbol = symbol
		}
	}

	if legErr != nil {
		return s.attemptFailed(ctx, gift, legErr, lastSig)
	}

	status := giftRefundStatus(outcomes)
	if err := s.finalize(ctx, gift, status, lastSig); err != nil {
		return err
	}

	if status == models.GiftStatusRefunded {
		if err := s.notify.GiftRefunded(ctx, gift.SenderContact, gift.ID.String(), refundedAmount, refundedSymbol); err != nil {
			// the transfer already happened; notification is best-effort
			s.log.Warn("refund notification failed", zap.String("gift_id", gift.ID.String()), zap.Error(err))
		}
	}
	return nil
}

// refundEscrow classifies one escrow leg and, when transferable, moves the
// funds back to the sender.
func (s *RefundService) refundEscrow(ctx context.Context, gift *models.Gift, account *models.EscrowAccount) (refundOutcome, string, string, string, error) {
	asset, err := s.assets.GetByID(ctx, account.AssetID)
	if err != nil {
		return refundEmpty, "", "", "", err
	}

	var balance *big.Int
	if asset.IsNative() {
		balance, err = s.chain.NativeBalance(ctx, account.Address)
	} else {
		balance, err = s.chain.JettonBalance(ctx, *asset.MasterAddress, account.Address)
	}
	if err != nil {
		return refundEmpty, "", "", "", errs.External("escrow balance", err)
	}

	reserve, err := ton.ToNano(s.cfg.FeeReserveTON, nativeDecimals)
	if err != nil {
		return refundEmpty, "", "", "", errs.Wrap(errs.CodeConfiguration, "bad FEE_RESERVE_TON", err)
	}
	recorded, _ := new(big.Int).SetString(account.AmountNano, 10)

	outcome, transferable := classifyRefund(balance, recorded, reserve, asset.IsNative())
	if outcome != refundTransfer {
		return outcome, "", "", "", nil
	}

	priv, err := s.vault.Decrypt(account.EncryptedSecret)
	if err != nil {
		return refundEmpty, "", "", "", err
	}

	var sig string
	if asset.IsNative() {
		sig, err = s.chain.TransferNative(ctx, priv, gift.SenderAddress, transferable, "gift refund")
	} else {
		sig, err = s.chain.TransferJetton(ctx, priv, *asset.MasterAddress, gift.SenderAddress, transferable, asset.Decimals, s.cfg.FeeReserveTON, "gift refund")
	}
	if err != nil {
		return refundEmpty, "", "", "", errs.External("refund transfer", err)
	}

	amount := ton.FromNano(transferable, asset.Decimals)
	s.log.Info("escrow refunded",
		zap.String("gift_id", gift.ID.String()),
		zap.String("escrow_id", account.ID.String()),
		zap.String("amount", amount),
		zap.String("symbol", asset.Symbol),
		zap.String("signature", sig))
	return refundTransfer, sig, amount, asset.Symbol, nil
}

// finalize writes the gift's terminal status, scoped to SENT so a claim
// that raced in wins and the refund result is discarded.
func (s *RefundService) finalize(ctx context.Context, gift *models.Gift, status, signature string) error {
	var ok bool
	var err error
	if status == models.GiftStatusRefunded {
		ok, err = s.gifts.MarkRefunded(ctx, gift.ID, signature)
	} else {
		ok, err = s.gifts.UpdateStatus(ctx, gift.ID, models.GiftStatusSent, status)
	}
	if err != nil {
		return err
	}
	if !ok {
		s.log.Warn("gift settled concurrently, refund outcome discarded",
			zap.String("gift_id", gift.ID.String()),
			zap.String("outcome", status))
		return nil
	}
	gift.Status = status

	s.publish(ctx, events.EventRefundProcessed, map[string]any{
		"gift_id": gift.ID.String(),
		"status":  status,
		"attempt": gift.RefundAttempts,
	})
	entry := &models.AuditLog{
		ActorType:  models.ActorScheduler,
		Action:     "gift.refund." + status,
		EntityType: "gift",
		EntityID:   &gift.ID,
	}
	if err := s.audit.Insert(ctx, entry); err != nil {
		s.log.Warn("audit insert failed", zap.String("gift_id", gift.ID.String()), zap.Error(err))
	}
	return nil
}

// attemptFailed handles a retryable failure: the attempt is already
// counted, so when the ceiling is reached the gift ends terminal. When
// part of the refund already moved funds the gift ends REFUNDED with the
// transfer's signature; otherwise it ends EXPIRED.
func (s *RefundService) attemptFailed(ctx context.Context, gift *models.Gift, cause error, lastSig string) error {
	if s.policy.Exhausted(gift.RefundAttempts) {
		status := models.GiftStatusExpired
		if lastSig != "" {
			status = models.GiftStatusRefunded
		}
		if err := s.finalize(ctx, gift, status, lastSig); err != nil {
			s.log.Error("failed to settle gift after final attempt",
				zap.String("gift_id", gift.ID.String()), zap.Error(err))
		}
	}
	return cause
}

func (s *RefundService) publish(ctx context.Context, eventType string, payload map[string]any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events.StreamGifts, events.Event{Type: eventType, Payload: payload}); err != nil {
		s.log.Warn("failed to publish event", zap.String("type", eventType), zap.Error(err))
	}
}
