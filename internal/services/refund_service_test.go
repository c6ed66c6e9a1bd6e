package services

import (
	"context"
	"crypto/ed25519"
	"errors"
	"math/big"
	"testing"

	"github.com/giftlink/backend/internal/config"
	"github.com/giftlink/backend/internal/errs"
	"github.com/giftlink/backend/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func TestClassifyRefund(t *testing.T) {
	reserve := big.NewInt(10_000_000) // 0.01 TON

	tests := []struct {
		name        string
		balance     *big.Int
		recorded    *big.Int
		native      bool
		wantOutcome refundOutcome
		wantAmount  *big.Int
	}{
		{
			name:        "nil balance is empty",
			balance:     nil,
			native:      true,
			wantOutcome: refundEmpty,
		},
		{
			name:        "zero balance is empty",
			balance:     big.NewInt(0),
			native:      true,
			wantOutcome: refundEmpty,
		},
		{
			name:        "native below reserve is low balance",
			balance:     big.NewInt(5_000_000),
			native:      true,
			wantOutcome: refundLowBalance,
		},
		{
			name:        "native exactly reserve is low balance",
			balance:     big.NewInt(10_000_000),
			native:      true,
			wantOutcome: refundLowBalance,
		},
		{
			name:        "native above reserve transfers the difference",
			balance:     big.NewInt(1_010_000_000),
			native:      true,
			wantOutcome: refundTransfer,
			wantAmount:  big.NewInt(1_000_000_000),
		},
		{
			name:        "jetton refunds full balance when under recorded",
			balance:     big.NewInt(700),
			recorded:    big.NewInt(1000),
			native:      false,
			wantOutcome: refundTransfer,
			wantAmount:  big.NewInt(700),
		},
		{
			name:        "jetton capped at recorded amount",
			balance:     big.NewInt(1500),
			recorded:    big.NewInt(1000),
			native:      false,
			wantOutcome: refundTransfer,
			wantAmount:  big.NewInt(1000),
		},
		{
			name:        "jetton without recorded amount refunds balance",
			balance:     big.NewInt(1500),
			recorded:    nil,
			native:      false,
			wantOutcome: refundTransfer,
			wantAmount:  big.NewInt(1500),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, amount := classifyRefund(tt.balance, tt.recorded, reserve, tt.native)
			if outcome != tt.wantOutcome {
				t.Fatalf("outcome = %d, want %d", outcome, tt.wantOutcome)
			}
			if tt.wantAmount == nil {
				if amount != nil {
					t.Errorf("amount = %s, want nil", amount)
				}
				return
			}
			if amount == nil || amount.Cmp(tt.wantAmount) != 0 {
				t.Errorf("amount = %v, want %s", amount, tt.wantAmount)
			}
		})
	}
}

func TestGiftRefundStatus(t *testing.T) {
	tests := []struct {
		name     string
		outcomes []refundOutcome
		want     string
	}{
		{"no legs", nil, models.GiftStatusExpiredEmpty},
		{"all empty", []refundOutcome{refundEmpty, refundEmpty}, models.GiftStatusExpiredEmpty},
		{"empty and low", []refundOutcome{refundEmpty, refundLowBalance}, models.GiftStatusExpiredLowBalance},
		{"any transfer wins", []refundOutcome{refundEmpty, refundLowBalance, refundTransfer}, models.GiftStatusRefunded},
		{"single transfer", []refundOutcome{refundTransfer}, models.GiftStatusRefunded},
		{"corrupt leg alone is expired", []refundOutcome{refundCorrupt}, models.GiftStatusExpired},
		{"corrupt outranks low balance", []refundOutcome{refundLowBalance, refundCorrupt}, models.GiftStatusExpired},
		{"transfer outranks corrupt", []refundOutcome{refundCorrupt, refundTransfer}, models.GiftStatusRefunded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := giftRefundStatus(tt.outcomes); got != tt.want {
				t.Errorf("giftRefundStatus = %s, want %s", got, tt.want)
			}
		})
	}
}

// Fakes over the sweep's narrow store views.

type fakeRefundGiftStore struct {
	attempts    int
	calls       []string
	refundedSig string
	finalStatus string
}

func (f *fakeRefundGiftStore) FindExpired(ctx context.Context, maxAttempts, limit int) ([]models.Gift, error) {
	return nil, nil
}

func (f *fakeRefundGiftStore) MarkRefundAttempt(ctx context.Context, id uuid.UUID) (int, error) {
	f.attempts++
	f.calls = append(f.calls, "attempt")
	return f.attempts, nil
}

func (f *fakeRefundGiftStore) MarkRefunded(ctx context.Context, id uuid.UUID, signature string) (bool, error) {
	f.calls = append(f.calls, "refunded")
	f.refundedSig = signature
	f.finalStatus = models.GiftStatusRefunded
	return true, nil
}

func (f *fakeRefundGiftStore) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error) {
	f.calls = append(f.calls, "status:"+to)
	f.finalStatus = to
	return true, nil
}

type fakeRefundEscrowStore struct {
	accounts []models.EscrowAccount
	err      error
	listed   bool
}

func (f *fakeRefundEscrowStore) ListByGift(ctx context.Context, giftID uuid.UUID) ([]models.EscrowAccount, error) {
	f.listed = true
	return f.accounts, f.err
}

type fakeRefundAssetStore struct {
	assets map[uuid.UUID]*models.Asset
}

func (f *fakeRefundAssetStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Asset, error) {
	if a, ok := f.assets[id]; ok {
		return a, nil
	}
	return nil, errors.New("asset not found")
}

type fakeRefundChain struct {
	balances    map[string]*big.Int
	balanceErrs map[string]error
	transfers   int
}

func (f *fakeRefundChain) NativeBalance(ctx context.Context, addrStr string) (*big.Int, error) {
	if err := f.balanceErrs[addrStr]; err != nil {
		return nil, err
	}
	if b, ok := f.balances[addrStr]; ok {
		return b, nil
	}
	return big.NewInt(0), nil
}

func (f *fakeRefundChain) JettonBalance(ctx context.Context, masterAddr, ownerAddr string) (*big.Int, error) {
	return f.NativeBalance(ctx, ownerAddr)
}

func (f *fakeRefundChain) TransferNative(ctx context.Context, priv ed25519.PrivateKey, toAddr string, amountNano *big.Int, comment string) (string, error) {
	f.transfers++
	return "refund-sig", nil
}

func (f *fakeRefundChain) TransferJetton(ctx context.Context, priv ed25519.PrivateKey, masterAddr, toAddr string, amountNano *big.Int, decimals int, attachTON, comment string) (string, error) {
	f.transfers++
	return "refund-sig", nil
}

type fakeSecretVault struct{}

func (fakeSecretVault) Decrypt(record string) (ed25519.PrivateKey, error) {
	if record == "corrupt" {
		return nil, errs.New(errs.CodeDecryption, "escrow secret does not decrypt under the server key")
	}
	return ed25519.NewKeyFromSeed(make([]byte, ed25519.SeedSize)), nil
}

type fakeRefundNotifier struct{ refunded int }

func (f *fakeRefundNotifier) GiftRefunded(ctx context.Context, senderContact, giftID, amount, symbol string) error {
	f.refunded++
	return nil
}

type fakeAuditStore struct{ entries []*models.AuditLog }

func (f *fakeAuditStore) Insert(ctx context.Context, entry *models.AuditLog) error {
	f.entries = append(f.entries, entry)
	return nil
}

type refundFixture struct {
	svc     *RefundService
	gifts   *fakeRefundGiftStore
	escrows *fakeRefundEscrowStore
	assets  *fakeRefundAssetStore
	chain   *fakeRefundChain
	notify  *fakeRefundNotifier
}

func newRefundFixture() *refundFixture {
	cfg := &config.Config{
		FeeReserveTON:     "0.01",
		RefundMaxAttempts: 3,
		RefundBatchSize:   25,
	}
	f := &refundFixture{
		gifts:   &fakeRefundGiftStore{},
		escrows: &fakeRefundEscrowStore{},
		assets:  &fakeRefundAssetStore{assets: make(map[uuid.UUID]*models.Asset)},
		chain:   &fakeRefundChain{balances: make(map[string]*big.Int), balanceErrs: make(map[string]error)},
		notify:  &fakeRefundNotifier{},
	}
	f.svc = NewRefundService(cfg, fakeSecretVault{}, f.chain,
		f.gifts, f.assets, f.escrows, &fakeAuditStore{}, f.notify, nil, zap.NewNop())
	return f
}

func (f *refundFixture) nativeAsset() *models.Asset {
	asset := &models.Asset{ID: uuid.New(), Symbol: "TON", Decimals: 9}
	f.assets.assets[asset.ID] = asset
	return asset
}

func sentGift() *models.Gift {
	return &models.Gift{
		ID:            uuid.New(),
		Status:        models.GiftStatusSent,
		SenderContact: "sender",
		SenderAddress: "EQsender",
	}
}

func TestRefundGiftNoEscrowsEndsExpiredEmpty(t *testing.T) {
	f := newRefundFixture()
	gift := sentGift()

	if err := f.svc.refundGift(context.Background(), gift); err != nil {
		t.Fatalf("refundGift: %v", err)
	}
	if f.gifts.finalStatus != models.GiftStatusExpiredEmpty {
		t.Errorf("final status = %s, want %s", f.gifts.finalStatus, models.GiftStatusExpiredEmpty)
	}
	if len(f.gifts.calls) == 0 || f.gifts.calls[0] != "attempt" {
		t.Errorf("attempt not counted before settlement: calls = %v", f.gifts.calls)
	}
}

func TestRefundGiftCountsAttemptBeforeWork(t *testing.T) {
	f := newRefundFixture()
	f.escrows.err = errors.New("store unavailable")
	gift := sentGift()

	err := f.svc.refundGift(context.Background(), gift)
	if err == nil {
		t.Fatal("expected the leg failure to propagate")
	}
	if gift.RefundAttempts != 1 {
		t.Errorf("attempts = %d, want 1", gift.RefundAttempts)
	}
	// below the ceiling the gift must stay SENT for the next sweep
	if f.gifts.finalStatus != "" {
		t.Errorf("gift settled early as %s", f.gifts.finalStatus)
	}
}

func TestRefundGiftCeilingExhaustionEndsExpired(t *testing.T) {
	f := newRefundFixture()
	f.gifts.attempts = 2 // next attempt is the third and last
	f.escrows.err = errors.New("store unavailable")
	gift := sentGift()

	err := f.svc.refundGift(context.Background(), gift)
	if err == nil {
		t.Fatal("expected the failure to propagate")
	}
	if gift.RefundAttempts != 3 {
		t.Errorf("attempts = %d, want 3", gift.RefundAttempts)
	}
	if f.gifts.finalStatus != models.GiftStatusExpired {
		t.Errorf("final status = %s, want %s", f.gifts.finalStatus, models.GiftStatusExpired)
	}
}

func TestRefundGiftCorruptLegDoesNotAbortSiblings(t *testing.T) {
	f := newRefundFixture()
	asset := f.nativeAsset()
	gift := sentGift()

	f.escrows.accounts = []models.EscrowAccount{
		{ID: uuid.New(), GiftID: gift.ID, AssetID: asset.ID, Address: "EQcorrupt", EncryptedSecret: "corrupt", AmountNano: "1000000000"},
		{ID: uuid.New(), GiftID: gift.ID, AssetID: asset.ID, Address: "EQhealthy", EncryptedSecret: "good", AmountNano: "1000000000"},
	}
	f.chain.balances["EQcorrupt"] = big.NewInt(1_010_000_000)
	f.chain.balances["EQhealthy"] = big.NewInt(1_010_000_000)

	if err := f.svc.refundGift(context.Background(), gift); err != nil {
		t.Fatalf("refundGift: %v", err)
	}
	if f.chain.transfers != 1 {
		t.Errorf("transfers = %d, want 1 (healthy leg only)", f.chain.transfers)
	}
	if f.gifts.finalStatus != models.GiftStatusRefunded {
		t.Errorf("final status = %s, want %s", f.gifts.finalStatus, models.GiftStatusRefunded)
	}
	if f.gifts.refundedSig != "refund-sig" {
		t.Errorf("refund signature = %q, want the transfer's", f.gifts.refundedSig)
	}
	if f.notify.refunded != 1 {
		t.Errorf("refund notifications = %d, want 1", f.notify.refunded)
	}
}

func TestRefundGiftOnlyCorruptLegEndsExpired(t *testing.T) {
	f := newRefundFixture()
	asset := f.nativeAsset()
	gift := sentGift()

	f.escrows.accounts = []models.EscrowAccount{
		{ID: uuid.New(), GiftID: gift.ID, AssetID: asset.ID, Address: "EQcorrupt", EncryptedSecret: "corrupt", AmountNano: "1000000000"},
	}
	f.chain.balances["EQcorrupt"] = big.NewInt(1_010_000_000)

	if err := f.svc.refundGift(context.Background(), gift); err != nil {
		t.Fatalf("refundGift: %v", err)
	}
	if f.chain.transfers != 0 {
		t.Errorf("transfers = %d, want 0", f.chain.transfers)
	}
	if f.gifts.finalStatus != models.GiftStatusExpired {
		t.Errorf("final status = %s, want %s", f.gifts.finalStatus, models.GiftStatusExpired)
	}
}

func TestRefundGiftPartialTransferThenExhaustion(t *testing.T) {
	f := newRefundFixture()
	asset := f.nativeAsset()
	gift := sentGift()
	f.gifts.attempts = 2 // this attempt exhausts the ceiling

	f.escrows.accounts = []models.EscrowAccount{
		{ID: uuid.New(), GiftID: gift.ID, AssetID: asset.ID, Address: "EQhealthy", EncryptedSecret: "good", AmountNano: "1000000000"},
		{ID: uuid.New(), GiftID: gift.ID, AssetID: asset.ID, Address: "EQstuck", EncryptedSecret: "good", AmountNano: "1000000000"},
	}
	f.chain.balances["EQhealthy"] = big.NewInt(1_010_000_000)
	f.chain.balanceErrs["EQstuck"] = errors.New("lite server timeout")

	err := f.svc.refundGift(context.Background(), gift)
	if err == nil {
		t.Fatal("expected the stuck leg's failure to propagate")
	}
	// the transfer that landed must be recorded, not erased by EXPIRED
	if f.gifts.finalStatus != models.GiftStatusRefunded {
		t.Errorf("final status = %s, want %s", f.gifts.finalStatus, models.GiftStatusRefunded)
	}
	if f.gifts.refundedSig != "refund-sig" {
		t.Errorf("refund signature = %q, want the transfer's", f.gifts.refundedSig)
	}
}
