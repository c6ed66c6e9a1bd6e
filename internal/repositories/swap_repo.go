package repositories

import (
	"context"

	"github.com/giftlink/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SwapRepo struct {
	pool *pgxpool.Pool
}

func NewSwapRepo(pool *pgxpool.Pool) *SwapRepo {
	return &SwapRepo{pool: pool}
}

const swapColumns = `
	id, gift_id, input_asset_id, output_asset_id, input_amount_nano,
	out_amount_nano, status, unsigned_tx_boc, signature, error_message,
	created_at, updated_at`

func (r *SwapRepo) Create(ctx context.Context, s *models.SwapOperation) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO swap_operations (
			gift_id, input_asset_id, output_asset_id, input_amount_nano,
			out_amount_nano, status, unsigned_tx_boc
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`, s.GiftID, s.InputAssetID, s.OutputAssetID, s.InputAmountNano,
		s.OutAmountNano, s.Status, s.UnsignedTxBOC,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

func (r *SwapRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.SwapOperation, error) {
	var s models.SwapOperation
	err := r.pool.QueryRow(ctx, `SELECT `+swapColumns+` FROM swap_operations WHERE id = $1`, id).Scan(
		&s.ID, &s.GiftID, &s.InputAssetID, &s.OutputAssetID, &s.InputAmountNano,
		&s.OutAmountNano, &s.Status, &s.UnsignedTxBOC, &s.Signature, &s.ErrorMessage,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SwapRepo) ListByGift(ctx context.Context, giftID uuid.UUID) ([]models.SwapOperation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+swapColumns+` FROM swap_operations
		WHERE gift_id = $1 ORDER BY created_at ASC
	`, giftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ops []models.SwapOperation
	for rows.Next() {
		var s models.SwapOperation
		if err := rows.Scan(
			&s.ID, &s.GiftID, &s.InputAssetID, &s.OutputAssetID, &s.InputAmountNano,
			&s.OutAmountNano, &s.Status, &s.UnsignedTxBOC, &s.Signature, &s.ErrorMessage,
			&s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, err
		}
		ops = append(ops, s)
	}
	return ops, rows.Err()
}

// MarkPendingSignature records the quote output and unsigned transaction
// and hands the operation to the signer. Guarded on the prepared status so
// a duplicate hand-off is a no-op.
func (r *SwapRepo) MarkPendingSignature(ctx context.Context, id uuid.UUID, outAmountNano, unsignedTxBOC string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE swap_operations SET status = $1, out_amount_nano = $2, unsigned_tx_boc = $3, updated_at = now()
		WHERE id = $4 AND status = $5
	`, models.SwapStatusPendingSignature, outAmountNano, unsignedTxBOC, id, models.SwapStatusPrepared)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkCompleted records the signed transaction. Returns false when the
// operation was not awaiting a signature, which the caller surfaces as an
// idempotency conflict.
func (r *SwapRepo) MarkCompleted(ctx context.Context, id uuid.UUID, signature string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE swap_operations SET status = $1, signature = $2, updated_at = now()
		WHERE id = $3 AND status = $4
	`, models.SwapStatusCompleted, signature, id, models.SwapStatusPendingSignature)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *SwapRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE swap_operations SET status = $1, error_message = $2, updated_at = now()
		WHERE id = $3
	`, models.SwapStatusFailed, reason, id)
	return err
}
