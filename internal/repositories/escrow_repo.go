package repositories

import (
	"context"

	"github.com/giftlink/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EscrowRepo struct {
	pool *pgxpool.Pool
}

func NewEscrowRepo(pool *pgxpool.Pool) *EscrowRepo {
	return &EscrowRepo{pool: pool}
}

const escrowColumns = `
	id, gift_id, asset_id, public_key, address, encrypted_secret,
	amount_nano, funded_nano, funded_at, claimed, claimed_at, created_at`

func (r *EscrowRepo) Create(ctx context.Context, e *models.EscrowAccount) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO escrow_accounts (gift_id, asset_id, public_key, address, encrypted_secret, amount_nano)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, e.GiftID, e.AssetID, e.PublicKey, e.Address, e.EncryptedSecret, e.AmountNano,
	).Scan(&e.ID, &e.CreatedAt)
}

func (r *EscrowRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.EscrowAccount, error) {
	var e models.EscrowAccount
	err := r.pool.QueryRow(ctx, `SELECT `+escrowColumns+` FROM escrow_accounts WHERE id = $1`, id).Scan(
		&e.ID, &e.GiftID, &e.AssetID, &e.PublicKey, &e.Address, &e.EncryptedSecret,
		&e.AmountNano, &e.FundedNano, &e.FundedAt, &e.Claimed, &e.ClaimedAt, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListByGift returns every escrow account for a gift. A single-asset gift
// has one row, a bundle has one per leg.
func (r *EscrowRepo) ListByGift(ctx context.Context, giftID uuid.UUID) ([]models.EscrowAccount, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+escrowColumns+` FROM escrow_accounts
		WHERE gift_id = $1 ORDER BY created_at ASC
	`, giftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []models.EscrowAccount
	for rows.Next() {
		var e models.EscrowAccount
		if err := rows.Scan(
			&e.ID, &e.GiftID, &e.AssetID, &e.PublicKey, &e.Address, &e.EncryptedSecret,
			&e.AmountNano, &e.FundedNano, &e.FundedAt, &e.Claimed, &e.ClaimedAt, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		accounts = append(accounts, e)
	}
	return accounts, rows.Err()
}

func (r *EscrowRepo) MarkFunded(ctx context.Context, id uuid.UUID, fundedNano string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE escrow_accounts SET funded_nano = $1, funded_at = now() WHERE id = $2
	`, fundedNano, id)
	return err
}

// MarkClaimed flips the claimed flag once. Returns false when the account
// was already claimed, which the caller treats as a replay.
func (r *EscrowRepo) MarkClaimed(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE escrow_accounts SET claimed = true, claimed_at = now()
		WHERE id = $1 AND claimed = false
	`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
