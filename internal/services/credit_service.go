package services

import (
	"context"
	"errors"
	"time"

	"github.com/giftlink/backend/internal/config"
	"github.com/giftlink/backend/internal/errs"
	"github.com/giftlink/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// creditStore is the slice of the credit repository the service needs.
// Implementations must record every issued funding ref durably, so
// ExistsByFundingTx still detects a ref after later top-ups.
type creditStore interface {
	GetActive(ctx context.Context, identity string) (*models.CreditEntry, error)
	ExistsByFundingTx(ctx context.Context, txRef string) (bool, error)
	Insert(ctx context.Context, c *models.CreditEntry) error
	TopUp(ctx context.Context, id uuid.UUID, txRef string, amountCents int64, sends, waivers int, expiresAt time.Time) error
	ConsumeSendWaiver(ctx context.Context, identity string) (bool, error)
	ConsumeFeeWaiver(ctx context.Context, identity string) (bool, error)
	ExpireSweep(ctx context.Context) (int64, error)
}

// CreditService manages funding-linked allowances of free sends and fee
// waivers. All mutations are conditional updates against the store, so
// concurrent API and worker instances stay correct without locks.
type CreditService struct {
	cfg     *config.Config
	credits creditStore
	log     *zap.Logger
}

func NewCreditService(cfg *config.Config, credits creditStore, log *zap.Logger) *CreditService {
	return &CreditService{cfg: cfg, credits: credits, log: log}
}

// GetActive returns the identity's active, non-expired entry, or nil.
func (s *CreditService) GetActive(ctx context.Context, identity string) (*models.CreditEntry, error) {
	entry, err := s.credits.GetActive(ctx, identity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if !entry.IsUsable(time.Now()) {
		return nil, nil
	}
	return entry, nil
}

// Issue grants the standard credit package against a funding transaction.
// A reference already issued is a no-op success; an existing active entry
// is topped up instead of duplicated. The unique constraint on
// funding_tx_ref backstops any race between the check and the insert.
func (s *CreditService) Issue(ctx context.Context, identity, fundingTxRef string) (*models.CreditEntry, error) {
	issued, err := s.credits.ExistsByFundingTx(ctx, fundingTxRef)
	if err != nil {
		return nil, err
	}
	if issued {
		s.log.Info("credit already issued for funding tx",
			zap.String("identity", identity), zap.String("funding_tx_ref", fundingTxRef))
		return s.GetActive(ctx, identity)
	}

	expiresAt := time.Now().Add(s.cfg.CreditTTL)

	existing, err := s.GetActive(ctx, identity)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		err := s.credits.TopUp(ctx, existing.ID, fundingTxRef,
			s.cfg.CreditAmountCents, s.cfg.CreditFreeSends, s.cfg.CreditFeeWaivers, expiresAt)
		if err != nil {
			return nil, errs.Wrap(errs.CodeIdempotencyConflict, "credit top-up", err)
		}
		return s.GetActive(ctx, identity)
	}

	entry := &models.CreditEntry{
		Identity:          identity,
		TotalIssuedCents:  s.cfg.CreditAmountCents,
		BalanceCents:      s.cfg.CreditAmountCents,
		FreeSendsAllowed:  s.cfg.CreditFreeSends,
		FeeWaiversAllowed: s.cfg.CreditFeeWaivers,
		FundingTxRef:      fundingTxRef,
		ExpiresAt:         expiresAt,
		IsActive:          true,
	}
	if err := s.credits.Insert(ctx, entry); err != nil {
		return nil, errs.Wrap(errs.CodeIdempotencyConflict, "credit issuance", err)
	}
	return entry, nil
}

// ConsumeSendWaiver burns one free send if any remain. Returns whether the
// send is free; a depleted or absent allowance reports paid with no
// mutation.
func (s *CreditService) ConsumeSendWaiver(ctx context.Context, identity string) (bool, error) {
	return s.credits.ConsumeSendWaiver(ctx, identity)
}

// ConsumeFeeWaiver burns one fee waiver if any remain.
func (s *CreditService) ConsumeFeeWaiver(ctx context.Context, identity string) (bool, error) {
	return s.credits.ConsumeFeeWaiver(ctx, identity)
}

// ExpireSweep deactivates entries past their expiry. Safe to run from any
// number of workers; already-swept entries are untouched.
func (s *CreditService) ExpireSweep(ctx context.Context) (int64, error) {
	swept, err := s.credits.ExpireSweep(ctx)
	if err != nil {
		return 0, err
	}
	if swept > 0 {
		s.log.Info("deactivated expired credit entries", zap.Int64("count", swept))
	}
	return swept, nil
}
