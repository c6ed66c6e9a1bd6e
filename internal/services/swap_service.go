package services

import (
	"context"
	"math/big"

	"github.com/giftlink/backend/internal/clients"
	"github.com/giftlink/backend/internal/config"
	"github.com/giftlink/backend/internal/custody"
	"github.com/giftlink/backend/internal/errs"
	"github.com/giftlink/backend/internal/events"
	"github.com/giftlink/backend/internal/models"
	"github.com/giftlink/backend/internal/repositories"
	"github.com/giftlink/backend/internal/ton"
	"go.uber.org/zap"
)

// LegAllocation is the slice of the sender's native balance assigned to one
// bundle leg. Native legs are reserved as-is; non-native legs are swapped.
type LegAllocation struct {
	Leg        models.BundleLeg
	AmountNano *big.Int
	Native     bool
}

type SwapService struct {
	cfg       *config.Config
	vault     *custody.Vault
	chain     *ton.Client
	assets    *repositories.AssetRepo
	escrows   *repositories.EscrowRepo
	swaps     *repositories.SwapRepo
	gifts     *repositories.GiftRepo
	agg       *clients.AggregatorClient
	publisher events.Publisher
	log       *zap.Logger
}

func NewSwapService(
	cfg *config.Config,
	vault *custody.Vault,
	chain *ton.Client,
	assets *repositories.AssetRepo,
	escrows *repositories.EscrowRepo,
	swaps *repositories.SwapRepo,
	gifts *repositories.GiftRepo,
	agg *clients.AggregatorClient,
	publisher events.Publisher,
	log *zap.Logger,
) *SwapService {
	return &SwapService{
		cfg: cfg, vault: vault, chain: chain,
		assets: assets, escrows: escrows, swaps: swaps, gifts: gifts,
		agg: agg, publisher: publisher, log: log,
	}
}

// CalculateFundingAmount returns how much native asset the sender must
// provide to cover a bundle: the face value plus jetton-wallet deploy
// reserves for every account the swaps will touch plus a slippage buffer
// on the swapped portion. Always at least the base value.
func (s *SwapService) CalculateFundingAmount(bundle *models.BundleTemplate, includeAddOn bool, nativePriceCents int64) (*big.Int, error) {
	if nativePriceCents <= 0 {
		return nil, errs.New(errs.CodePriceUnavailable, "native price is not positive")
	}

	valueCents := bundle.FaceValueUSDCents
	if includeAddOn {
		valueCents += s.cfg.AddOnPriceCents
	}
	base := centsToNano(valueCents, nativePriceCents)

	reserve, err := ton.ToNano(s.cfg.AccountReserveTON, nativeDecimals)
	if err != nil {
		return nil, errs.Wrap(errs.CodeConfiguration, "bad ACCOUNT_RESERVE_TON", err)
	}

	var swappedCents int64
	newAccounts := 0
	for _, leg := range bundle.Legs {
		if leg.Symbol == clients.NativeMint {
			continue
		}
		swappedCents += bundle.LegValueCents(leg)
		newAccounts += 3 // sender, escrow, recipient jetton wallets
	}

	total := new(big.Int).Set(base)
	total.Add(total, new(big.Int).Mul(reserve, big.NewInt(int64(newAccounts))))
	total.Add(total, ton.MulBPS(centsToNano(swappedCents, nativePriceCents), s.cfg.SlippageBPS))
	return total, nil
}

// AllocateBundleLegs splits an available native balance across the bundle's
// legs. Native legs reserve their percentage share directly; the remainder
// is divided among non-native legs in proportion to their target USD share.
// Allocations may come out zero when the balance is short.
func AllocateBundleLegs(legs []models.BundleLeg, available *big.Int) []LegAllocation {
	out := make([]LegAllocation, 0, len(legs))

	nativePct := 0
	nonNativePct := 0
	for _, leg := range legs {
		if leg.Symbol == clients.NativeMint {
			nativePct += leg.Percent
		} else {
			nonNativePct += leg.Percent
		}
	}

	remaining := new(big.Int).Set(available)
	for _, leg := range legs {
		if leg.Symbol != clients.NativeMint {
			continue
		}
		amount := new(big.Int).Mul(available, big.NewInt(int64(leg.Percent)))
		amount.Quo(amount, big.NewInt(100))
		remaining.Sub(remaining, amount)
		out = append(out, LegAllocation{Leg: leg, AmountNano: amount, Native: true})
	}

	if remaining.Sign() < 0 {
		remaining.SetInt64(0)
	}
	for _, leg := range legs {
		if leg.Symbol == clients.NativeMint {
			continue
		}
		amount := new(big.Int)
		if nonNativePct > 0 {
			amount.Mul(remaining, big.NewInt(int64(leg.Percent)))
			amount.Quo(amount, big.NewInt(int64(nonNativePct)))
		}
		out = append(out, LegAllocation{Leg: leg, AmountNano: amount, Native: false})
	}
	return out
}

// ExecuteSwaps prepares one swap operation per non-native leg: quote from
// the aggregator, unsigned transaction, swap record in pending_signature.
// The sender's wallet collaborator signs and submits; ConfirmSwapSigned on
// the gift service closes the loop. Zero-allocation legs are skipped with
// a warning so partially funded bundles still proceed. The first
// preparation failure is recorded on its operation and returned; completed
// preparations keep their state.
func (s *SwapService) ExecuteSwaps(ctx context.Context, gift *models.Gift, bundle *models.BundleTemplate, senderAccount string, availableNative *big.Int) ([]models.SwapOperation, error) {
	nativeAsset, err := s.assets.GetBySymbol(ctx, clients.NativeMint)
	if err != nil {
		return nil, errs.Wrap(errs.CodeConfiguration, "native asset missing from registry", err)
	}

	allocations := AllocateBundleLegs(bundle.Legs, availableNative)

	var ops []models.SwapOperation
	for _, alloc := range allocations {
		if alloc.Native {
			continue
		}
		if alloc.AmountNano.Sign() == 0 {
			s.log.Warn("skipping zero-allocation bundle leg",
				zap.String("gift_id", gift.ID.String()),
				zap.String("symbol", alloc.Leg.Symbol))
			continue
		}

		asset, err := s.assets.GetByID(ctx, alloc.Leg.AssetID)
		if err != nil {
			return ops, errs.Wrap(errs.CodeNotFound, "bundle leg asset", err)
		}
		if asset.MasterAddress == nil {
			return ops, errs.Newf(errs.CodeConfiguration, "asset %s has no master address", asset.Symbol)
		}

		op := models.SwapOperation{
			GiftID:          gift.ID,
			InputAssetID:    nativeAsset.ID,
			OutputAssetID:   asset.ID,
			InputAmountNano: alloc.AmountNano.String(),
			Status:          models.SwapStatusPrepared,
		}
		if err := s.swaps.Create(ctx, &op); err != nil {
			return ops, err
		}
		s.advanceGiftSwapStatus(ctx, gift, models.GiftSwapStatusPrepared)

		quote, err := s.agg.Quote(ctx, clients.NativeMint, *asset.MasterAddress, alloc.AmountNano)
		if err != nil {
			return ops, s.failOp(ctx, &op, err)
		}
		tx, err := s.agg.BuildSwapTransaction(ctx, quote, senderAccount)
		if err != nil {
			return ops, s.failOp(ctx, &op, err)
		}

		op.OutAmountNano = &quote.OutAmountNano
		op.UnsignedTxBOC = &tx.BOC
		if _, err := s.swaps.MarkPendingSignature(ctx, op.ID, quote.OutAmountNano, tx.BOC); err != nil {
			return ops, err
		}
		op.Status = models.SwapStatusPendingSignature
		s.advanceGiftSwapStatus(ctx, gift, models.GiftSwapStatusPendingSignature)

		s.publish(ctx, events.EventSwapStatusChanged, map[string]any{
			"gift_id": gift.ID.String(),
			"swap_id": op.ID.String(),
			"status":  op.Status,
		})
		ops = append(ops, op)
	}
	return ops, nil
}

// CreateBundleEscrowAccounts materialises one custodied escrow per leg that
// resolved to a nonzero amount: native legs hold their reserved native
// allocation, swapped legs hold the completed swap's output. Zero legs are
// omitted.
func (s *SwapService) CreateBundleEscrowAccounts(ctx context.Context, gift *models.Gift, bundle *models.BundleTemplate, allocations []LegAllocation, completed []models.SwapOperation) ([]models.EscrowAccount, error) {
	outByAsset := make(map[string]*big.Int, len(completed))
	for _, op := range completed {
		if op.Status != models.SwapStatusCompleted || op.OutAmountNano == nil {
			continue
		}
		if out, ok := new(big.Int).SetString(*op.OutAmountNano, 10); ok {
			outByAsset[op.OutputAssetID.String()] = out
		}
	}

	var accounts []models.EscrowAccount
	for _, alloc := range allocations {
		amount := alloc.AmountNano
		if !alloc.Native {
			amount = outByAsset[alloc.Leg.AssetID.String()]
		}
		if amount == nil || amount.Sign() == 0 {
			s.log.Warn("omitting escrow for unfunded leg",
				zap.String("gift_id", gift.ID.String()),
				zap.String("symbol", alloc.Leg.Symbol))
			continue
		}

		kp, err := s.vault.Create()
		if err != nil {
			return accounts, err
		}
		account := models.EscrowAccount{
			GiftID:          gift.ID,
			AssetID:         alloc.Leg.AssetID,
			PublicKey:       kp.PublicKey,
			Address:         kp.Address,
			EncryptedSecret: kp.EncryptedSecret,
			AmountNano:      amount.String(),
		}
		if err := s.escrows.Create(ctx, &account); err != nil {
			return accounts, err
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

// failOp records the failure on the swap operation before re-raising, so a
// crash right after still leaves auditable state. The gift-level swap
// status is left where it was.
func (s *SwapService) failOp(ctx context.Context, op *models.SwapOperation, cause error) error {
	if err := s.swaps.MarkFailed(ctx, op.ID, cause.Error()); err != nil {
		s.log.Error("failed to record swap failure", zap.String("swap_id", op.ID.String()), zap.Error(err))
	}
	return cause
}

// advanceGiftSwapStatus moves the gift-level swap status forward only.
func (s *SwapService) advanceGiftSwapStatus(ctx context.Context, gift *models.Gift, to string) {
	if !models.SwapStatusAdvances(gift.SwapStatus, to) {
		return
	}
	ok, err := s.gifts.UpdateSwapStatus(ctx, gift.ID, gift.SwapStatus, to)
	if err != nil {
		s.log.Error("failed to advance gift swap status", zap.String("gift_id", gift.ID.String()), zap.Error(err))
		return
	}
	if ok {
		gift.SwapStatus = to
	}
}

func (s *SwapService) publish(ctx context.Context, eventType string, payload map[string]any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events.StreamGifts, events.Event{Type: eventType, Payload: payload}); err != nil {
		s.log.Warn("failed to publish event", zap.String("type", eventType), zap.Error(err))
	}
}

// centsToNano converts a USD cent value into native nano at the given
// price: cents × 10^9 / priceCents.
func centsToNano(cents, priceCents int64) *big.Int {
	if priceCents <= 0 {
		return new(big.Int)
	}
	v := new(big.Int).Mul(big.NewInt(cents), big.NewInt(1_000_000_000))
	v.Quo(v, big.NewInt(priceCents))
	return v
}
