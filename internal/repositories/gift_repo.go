package repositories

import (
	"context"

	"github.com/giftlink/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type GiftRepo struct {
	pool *pgxpool.Pool
}

func NewGiftRepo(pool *pgxpool.Pool) *GiftRepo {
	return &GiftRepo{pool: pool}
}

const giftColumns = `
	id, sender_identity, sender_contact, sender_address, recipient_contact,
	asset_id, bundle_id, amount_nano, value_usd_cents, message,
	status, onramp_status, swap_status, payment_channel, include_add_on,
	refund_attempts, last_refund_at, expires_at,
	claimed_at, claimed_by, claim_signature,
	refunded_at, refund_signature,
	created_at, updated_at`

func (r *GiftRepo) Create(ctx context.Context, g *models.Gift) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO gifts (
			sender_identity, sender_contact, sender_address, recipient_contact,
			asset_id, bundle_id, amount_nano, value_usd_cents, message,
			status, onramp_status, swap_status, payment_channel, include_add_on, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at, updated_at
	`, g.SenderIdentity, g.SenderContact, g.SenderAddress, g.RecipientContact,
		g.AssetID, g.BundleID, g.AmountNano, g.ValueUSDCents, g.Message,
		g.Status, g.OnrampStatus, g.SwapStatus, g.PaymentChannel, g.IncludeAddOn, g.ExpiresAt,
	).Scan(&g.ID, &g.CreatedAt, &g.UpdatedAt)
}

func (r *GiftRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Gift, error) {
	var g models.Gift
	err := r.pool.QueryRow(ctx, `SELECT `+giftColumns+` FROM gifts WHERE id = $1`, id).Scan(
		&g.ID, &g.SenderIdentity, &g.SenderContact, &g.SenderAddress, &g.RecipientContact,
		&g.AssetID, &g.BundleID, &g.AmountNano, &g.ValueUSDCents, &g.Message,
		&g.Status, &g.OnrampStatus, &g.SwapStatus, &g.PaymentChannel, &g.IncludeAddOn,
		&g.RefundAttempts, &g.LastRefundAt, &g.ExpiresAt,
		&g.ClaimedAt, &g.ClaimedBy, &g.ClaimSignature,
		&g.RefundedAt, &g.RefundSignature,
		&g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// UpdateStatus advances a gift from one status to another. The update is
// scoped to the current status, so a concurrent transition or an already
// terminal gift leaves the row untouched and returns false.
func (r *GiftRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE gifts SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3
	`, to, id, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateSwapStatus moves the gift-level swap status forward. Guarded the
// same way as UpdateStatus so a failed preparation can never regress it.
func (r *GiftRepo) UpdateSwapStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE gifts SET swap_status = $1, updated_at = now()
		WHERE id = $2 AND swap_status = $3
	`, to, id, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *GiftRepo) UpdateOnrampStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE gifts SET onramp_status = $1, updated_at = now() WHERE id = $2
	`, status, id)
	return err
}

// MarkClaimed records the terminal claim. Scoped to SENT so a refund that
// already landed can never be overwritten.
func (r *GiftRepo) MarkClaimed(ctx context.Context, id uuid.UUID, claimedBy, signature string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE gifts SET status = $1, claimed_at = now(), claimed_by = $2, claim_signature = $3, updated_at = now()
		WHERE id = $4 AND status = $5
	`, models.GiftStatusClaimed, claimedBy, signature, id, models.GiftStatusSent)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkRefunded records the terminal refund with its transfer signature.
func (r *GiftRepo) MarkRefunded(ctx context.Context, id uuid.UUID, signature string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE gifts SET status = $1, refunded_at = now(), refund_signature = $2, updated_at = now()
		WHERE id = $3 AND status = $4
	`, models.GiftStatusRefunded, signature, id, models.GiftStatusSent)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// FindExpired selects SENT gifts past expiry with attempts below the retry
// ceiling, oldest first, bounded batch.
func (r *GiftRepo) FindExpired(ctx context.Context, maxAttempts, limit int) ([]models.Gift, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+giftColumns+` FROM gifts
		WHERE status = $1 AND expires_at < now() AND refund_attempts < $2
		ORDER BY expires_at ASC
		LIMIT $3
	`, models.GiftStatusSent, maxAttempts, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var gifts []models.Gift
	for rows.Next() {
		var g models.Gift
		if err := rows.Scan(
			&g.ID, &g.SenderIdentity, &g.SenderContact, &g.SenderAddress, &g.RecipientContact,
			&g.AssetID, &g.BundleID, &g.AmountNano, &g.ValueUSDCents, &g.Message,
			&g.Status, &g.OnrampStatus, &g.SwapStatus, &g.PaymentChannel, &g.IncludeAddOn,
			&g.RefundAttempts, &g.LastRefundAt, &g.ExpiresAt,
			&g.ClaimedAt, &g.ClaimedBy, &g.ClaimSignature,
			&g.RefundedAt, &g.RefundSignature,
			&g.CreatedAt, &g.UpdatedAt,
		); err != nil {
			return nil, err
		}
		gifts = append(gifts, g)
	}
	return gifts, rows.Err()
}

// MarkRefundAttempt increments the attempt counter before any refund work
// happens, so a crash mid-refund still counts against the retry ceiling.
func (r *GiftRepo) MarkRefundAttempt(ctx context.Context, id uuid.UUID) (int, error) {
	var attempts int
	err := r.pool.QueryRow(ctx, `
		UPDATE gifts SET refund_attempts = refund_attempts + 1, last_refund_at = now(), updated_at = now()
		WHERE id = $1
		RETURNING refund_attempts
	`, id).Scan(&attempts)
	return attempts, err
}

func (r *GiftRepo) ListBySender(ctx context.Context, identity string, limit int) ([]models.Gift, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+giftColumns+` FROM gifts
		WHERE sender_identity = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, identity, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var gifts []models.Gift
	for rows.Next() {
		var g models.Gift
		if err := rows.Scan(
			&g.ID, &g.SenderIdentity, &g.SenderContact, &g.SenderAddress, &g.RecipientContact,
			&g.AssetID, &g.BundleID, &g.AmountNano, &g.ValueUSDCents, &g.Message,
			&g.Status, &g.OnrampStatus, &g.SwapStatus, &g.PaymentChannel, &g.IncludeAddOn,
			&g.RefundAttempts, &g.LastRefundAt, &g.ExpiresAt,
			&g.ClaimedAt, &g.ClaimedBy, &g.ClaimSignature,
			&g.RefundedAt, &g.RefundSignature,
			&g.CreatedAt, &g.UpdatedAt,
		); err != nil {
			return nil, err
		}
		gifts = append(gifts, g)
	}
	return gifts, rows.Err()
}
