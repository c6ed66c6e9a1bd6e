package services

import (
	"context"
	"errors"
	"math/big"

	"github.com/giftlink/backend/internal/clients"
	"github.com/giftlink/backend/internal/config"
	"github.com/giftlink/backend/internal/errs"
	"github.com/giftlink/backend/internal/models"
	"github.com/giftlink/backend/internal/repositories"
	"github.com/giftlink/backend/internal/ton"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Payment channels accepted on a send.
const (
	PaymentChannelWallet = "wallet"
	PaymentChannelCard   = "card"
)

const nativeDecimals = 9

// FeeRequest describes what the sender wants to fund: exactly one of
// AssetID (with AmountNano) or BundleID.
type FeeRequest struct {
	AssetID        *uuid.UUID
	AmountNano     *string
	BundleID       *uuid.UUID
	IncludeAddOn   bool
	PaymentChannel string
}

// FeeQuote is the full cost breakdown, everything in integer USD cents.
type FeeQuote struct {
	BaseValueCents  int64     `json:"base_value_cents"`
	NetworkFeeCents int64     `json:"network_fee_cents"`
	PaymentFeeCents int64     `json:"payment_processing_fee_cents"`
	TotalCostCents  int64     `json:"total_cost_cents"`
	OverheadPercent float64   `json:"overhead_percent"`
	Detail          FeeDetail `json:"detail"`
}

type FeeDetail struct {
	AccountCreationCents int64 `json:"account_creation_cents"`
	SwapFeeCents         int64 `json:"swap_fee_cents"`
	PriorityFeeCents     int64 `json:"priority_fee_cents"`
	EscrowIssuanceCents  int64 `json:"escrow_issuance_cents"`
	NewAccounts          int   `json:"new_accounts"`
	TxCount              int   `json:"tx_count"`
	EscrowCount          int   `json:"escrow_count"`
}

// feeInputs is everything the pure fee math needs, resolved upfront so the
// computation itself stays deterministic and testable.
type feeInputs struct {
	baseValueCents         int64
	nonNativeValueCents    int64
	newAccounts            int
	txCount                int
	escrowCount            int
	accountReserveCents    int64 // USD cost of one jetton-wallet deploy reserve
	swapFeeBPS             int
	priorityFeeCents       int64
	escrowIssuanceFeeCents int64
	onrampFeeBPS           int
	fiatChannel            bool
}

type FeeService struct {
	cfg     *config.Config
	assets  *repositories.AssetRepo
	bundles *repositories.BundleRepo
	prices  *clients.PriceClient
	log     *zap.Logger
}

func NewFeeService(cfg *config.Config, assets *repositories.AssetRepo, bundles *repositories.BundleRepo, prices *clients.PriceClient, log *zap.Logger) *FeeService {
	return &FeeService{cfg: cfg, assets: assets, bundles: bundles, prices: prices, log: log}
}

// CalculateFees quotes the total cost of a send. It never mutates state.
func (s *FeeService) CalculateFees(ctx context.Context, req FeeRequest) (*FeeQuote, error) {
	nativePriceCents, err := s.prices.CurrentPriceCents(ctx, clients.NativeMint)
	if err != nil {
		return nil, err
	}

	in := feeInputs{
		swapFeeBPS:             s.cfg.SwapFeeBPS,
		priorityFeeCents:       s.cfg.PriorityFeeCents,
		escrowIssuanceFeeCents: s.cfg.EscrowIssuanceFeeCents,
		onrampFeeBPS:           s.cfg.OnrampFeeBPS,
		fiatChannel:            req.PaymentChannel == PaymentChannelCard,
		accountReserveCents:    tonAmountCents(s.cfg.AccountReserveTON, nativePriceCents),
	}

	switch {
	case req.BundleID != nil:
		bundle, err := s.bundles.GetByID(ctx, *req.BundleID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, errs.NotFound("bundle")
			}
			return nil, err
		}
		s.bundleInputs(bundle, &in)

	case req.AssetID != nil:
		asset, err := s.assets.GetByID(ctx, *req.AssetID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, errs.NotFound("asset")
			}
			return nil, err
		}
		if err := s.singleAssetInputs(ctx, asset, req.AmountNano, nativePriceCents, &in); err != nil {
			return nil, err
		}

	default:
		return nil, errs.New(errs.CodeNotFound, "request names neither asset nor bundle")
	}

	if req.IncludeAddOn {
		in.baseValueCents += s.cfg.AddOnPriceCents
	}

	quote := computeFees(in)
	return &quote, nil
}

// bundleInputs sizes the quote for a multi-asset bundle. Every leg gets an
// escrow; each non-native leg needs a swap transaction and fresh jetton
// wallets for sender, escrow and recipient.
func (s *FeeService) bundleInputs(bundle *models.BundleTemplate, in *feeInputs) {
	in.baseValueCents = bundle.FaceValueUSDCents
	in.escrowCount = len(bundle.Legs)
	in.txCount = len(bundle.Legs) // one funding transfer per escrow

	for _, leg := range bundle.Legs {
		if leg.Symbol == clients.NativeMint {
			continue
		}
		in.nonNativeValueCents += bundle.LegValueCents(leg)
		in.newAccounts += 3 // sender, escrow, recipient jetton wallets
		in.txCount++        // the swap itself
	}
}

// singleAssetInputs sizes the quote for a single-asset gift, valuing the
// amount through the oracle.
func (s *FeeService) singleAssetInputs(ctx context.Context, asset *models.Asset, amountNano *string, nativePriceCents int64, in *feeInputs) error {
	if amountNano == nil {
		return errs.New(errs.CodeNotFound, "single-asset request missing amount")
	}

	in.escrowCount = 1
	in.txCount = 1

	var priceCents int64
	if asset.IsNative() {
		priceCents = nativePriceCents
	} else {
		var err error
		priceCents, err = s.prices.CurrentPriceCents(ctx, asset.Symbol)
		if err != nil {
			return err
		}
		in.newAccounts = 3
		in.txCount++
	}

	nano, ok := new(big.Int).SetString(*amountNano, 10)
	if !ok {
		return errs.Newf(errs.CodeNotFound, "amount %q is not an integer", *amountNano)
	}
	valueCents := nanoValueCents(nano, asset.Decimals, priceCents)
	in.baseValueCents = valueCents
	if !asset.IsNative() {
		in.nonNativeValueCents = valueCents
	}
	return nil
}

// computeFees is the deterministic fee math. Inputs are already resolved;
// outputs are integer cents.
func computeFees(in feeInputs) FeeQuote {
	detail := FeeDetail{
		AccountCreationCents: in.accountReserveCents * int64(in.newAccounts),
		SwapFeeCents:         in.nonNativeValueCents * int64(in.swapFeeBPS) / 10000,
		PriorityFeeCents:     in.priorityFeeCents * int64(in.txCount),
		EscrowIssuanceCents:  in.escrowIssuanceFeeCents * int64(in.escrowCount),
		NewAccounts:          in.newAccounts,
		TxCount:              in.txCount,
		EscrowCount:          in.escrowCount,
	}

	networkFee := detail.AccountCreationCents + detail.SwapFeeCents + detail.PriorityFeeCents + detail.EscrowIssuanceCents

	var paymentFee int64
	if in.fiatChannel {
		paymentFee = in.baseValueCents * int64(in.onrampFeeBPS) / 10000
	}

	total := in.baseValueCents + networkFee + paymentFee

	var overhead float64
	if in.baseValueCents > 0 {
		overhead = float64(total-in.baseValueCents) / float64(in.baseValueCents) * 100
	}

	return FeeQuote{
		BaseValueCents:  in.baseValueCents,
		NetworkFeeCents: networkFee,
		PaymentFeeCents: paymentFee,
		TotalCostCents:  total,
		OverheadPercent: overhead,
		Detail:          detail,
	}
}

// tonAmountCents converts a decimal TON amount string into USD cents at the
// given price. Bad config values degrade to 0 rather than failing a quote.
func tonAmountCents(tonAmount string, priceCents int64) int64 {
	nano, err := ton.ToNano(tonAmount, nativeDecimals)
	if err != nil {
		return 0
	}
	return nanoValueCents(nano, nativeDecimals, priceCents)
}

// nanoValueCents values an on-chain amount in USD cents: nano × price / 10^decimals.
func nanoValueCents(nano *big.Int, decimals int, priceCents int64) int64 {
	v := new(big.Int).Mul(nano, big.NewInt(priceCents))
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	v.Quo(v, scale)
	return v.Int64()
}
