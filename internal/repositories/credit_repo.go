package repositories

import (
	"context"
	"time"

	"github.com/giftlink/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CreditRepo struct {
	pool *pgxpool.Pool
}

func NewCreditRepo(pool *pgxpool.Pool) *CreditRepo {
	return &CreditRepo{pool: pool}
}

const creditColumns = `
	id, identity, total_issued_cents, balance_cents,
	free_sends_used, free_sends_allowed, fee_waivers_used, fee_waivers_allowed,
	funding_tx_ref, expires_at, is_active, created_at, updated_at`

// GetActive returns the live credit entry for an identity, or nil when
// none exists.
func (r *CreditRepo) GetActive(ctx context.Context, identity string) (*models.CreditEntry, error) {
	var c models.CreditEntry
	err := r.pool.QueryRow(ctx, `
		SELECT `+creditColumns+` FROM credit_entries
		WHERE identity = $1 AND is_active = true
		ORDER BY created_at DESC LIMIT 1
	`, identity).Scan(
		&c.ID, &c.Identity, &c.TotalIssuedCents, &c.BalanceCents,
		&c.FreeSendsUsed, &c.FreeSendsAllowed, &c.FeeWaiversUsed, &c.FeeWaiversAllowed,
		&c.FundingTxRef, &c.ExpiresAt, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ExistsByFundingTx reports whether a funding transaction has already been
// credited. Every issued ref is recorded durably in credit_issuances, so a
// replay is detected no matter how many top-ups happened since. The primary
// key on funding_tx_ref is the real guard; this lets the service answer
// replays without tripping it.
func (r *CreditRepo) ExistsByFundingTx(ctx context.Context, txRef string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM credit_issuances WHERE funding_tx_ref = $1)
	`, txRef).Scan(&exists)
	return exists, err
}

// Insert creates the entry and records its funding ref as spent, in one
// transaction.
func (r *CreditRepo) Insert(ctx context.Context, c *models.CreditEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO credit_entries (
			identity, total_issued_cents, balance_cents,
			free_sends_allowed, fee_waivers_allowed, funding_tx_ref, expires_at, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, true)
		RETURNING id, created_at, updated_at
	`, c.Identity, c.TotalIssuedCents, c.BalanceCents,
		c.FreeSendsAllowed, c.FeeWaiversAllowed, c.FundingTxRef, c.ExpiresAt,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO credit_issuances (funding_tx_ref, entry_id) VALUES ($1, $2)
	`, c.FundingTxRef, c.ID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// TopUp adds value and allowances to an existing active entry and pushes
// its expiry out. The funding ref that paid for the top-up is appended to
// credit_issuances in the same transaction; the entry's own funding_tx_ref
// stays the originating one so no issued ref is ever forgotten.
func (r *CreditRepo) TopUp(ctx context.Context, id uuid.UUID, txRef string, amountCents int64, sends, waivers int, expiresAt time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE credit_entries SET
			total_issued_cents = total_issued_cents + $1,
			balance_cents = balance_cents + $1,
			free_sends_allowed = free_sends_allowed + $2,
			fee_waivers_allowed = fee_waivers_allowed + $3,
			expires_at = $4,
			updated_at = now()
		WHERE id = $5 AND is_active = true
	`, amountCents, sends, waivers, expiresAt, id); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO credit_issuances (funding_tx_ref, entry_id) VALUES ($1, $2)
	`, txRef, id); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ConsumeSendWaiver burns one free send. The used < allowed predicate in
// the WHERE clause makes concurrent consumers race safely: only one wins
// the last slot.
func (r *CreditRepo) ConsumeSendWaiver(ctx context.Context, identity string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE credit_entries SET free_sends_used = free_sends_used + 1, updated_at = now()
		WHERE identity = $1 AND is_active = true
		  AND expires_at > now()
		  AND free_sends_used < free_sends_allowed
	`, identity)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *CreditRepo) ConsumeFeeWaiver(ctx context.Context, identity string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE credit_entries SET fee_waivers_used = fee_waivers_used + 1, updated_at = now()
		WHERE identity = $1 AND is_active = true
		  AND expires_at > now()
		  AND fee_waivers_used < fee_waivers_allowed
	`, identity)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ExpireSweep deactivates every entry past its expiry and returns how many
// were swept.
func (r *CreditRepo) ExpireSweep(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE credit_entries SET is_active = false, updated_at = now()
		WHERE is_active = true AND expires_at <= now()
	`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
