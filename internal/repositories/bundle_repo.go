package repositories

import (
	"context"

	"github.com/giftlink/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BundleRepo struct {
	pool *pgxpool.Pool
}

func NewBundleRepo(pool *pgxpool.Pool) *BundleRepo {
	return &BundleRepo{pool: pool}
}

// GetByID loads a bundle template together with its legs, ordered by
// their configured position.
func (r *BundleRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.BundleTemplate, error) {
	var b models.BundleTemplate
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, face_value_usd_cents, badge_name, badge_image_url, created_at
		FROM bundle_templates WHERE id = $1
	`, id).Scan(&b.ID, &b.Name, &b.FaceValueUSDCents, &b.BadgeName, &b.BadgeImageURL, &b.CreatedAt)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT l.id, l.bundle_id, l.asset_id, a.symbol, l.percent, l.position
		FROM bundle_legs l
		JOIN assets a ON a.id = l.asset_id
		WHERE l.bundle_id = $1
		ORDER BY l.position ASC
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var leg models.BundleLeg
		if err := rows.Scan(&leg.ID, &leg.BundleID, &leg.AssetID, &leg.Symbol, &leg.Percent, &leg.Position); err != nil {
			return nil, err
		}
		b.Legs = append(b.Legs, leg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BundleRepo) List(ctx context.Context) ([]models.BundleTemplate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, face_value_usd_cents, badge_name, badge_image_url, created_at
		FROM bundle_templates ORDER BY face_value_usd_cents ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bundles []models.BundleTemplate
	for rows.Next() {
		var b models.BundleTemplate
		if err := rows.Scan(&b.ID, &b.Name, &b.FaceValueUSDCents, &b.BadgeName, &b.BadgeImageURL, &b.CreatedAt); err != nil {
			return nil, err
		}
		bundles = append(bundles, b)
	}
	return bundles, rows.Err()
}
