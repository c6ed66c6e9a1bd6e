package repositories

import (
	"context"

	"github.com/giftlink/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AssetRepo struct {
	pool *pgxpool.Pool
}

func NewAssetRepo(pool *pgxpool.Pool) *AssetRepo {
	return &AssetRepo{pool: pool}
}

func (r *AssetRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Asset, error) {
	var a models.Asset
	err := r.pool.QueryRow(ctx, `
		SELECT id, symbol, name, master_address, decimals, created_at
		FROM assets WHERE id = $1
	`, id).Scan(&a.ID, &a.Symbol, &a.Name, &a.MasterAddress, &a.Decimals, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AssetRepo) GetBySymbol(ctx context.Context, symbol string) (*models.Asset, error) {
	var a models.Asset
	err := r.pool.QueryRow(ctx, `
		SELECT id, symbol, name, master_address, decimals, created_at
		FROM assets WHERE symbol = $1
	`, symbol).Scan(&a.ID, &a.Symbol, &a.Name, &a.MasterAddress, &a.Decimals, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AssetRepo) List(ctx context.Context) ([]models.Asset, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, symbol, name, master_address, decimals, created_at
		FROM assets ORDER BY symbol ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []models.Asset
	for rows.Next() {
		var a models.Asset
		if err := rows.Scan(&a.ID, &a.Symbol, &a.Name, &a.MasterAddress, &a.Decimals, &a.CreatedAt); err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}
