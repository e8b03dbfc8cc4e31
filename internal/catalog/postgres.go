package catalog

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresSource reads the asset catalog from catalog.assets.
type PostgresSource struct {
	db *sql.DB
}

func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

// Load returns every enabled asset that has an upstream mapping.
func (ps *PostgresSource) Load(ctx context.Context) (Assets, error) {
	rows, err := ps.db.QueryContext(ctx, `
		SELECT asset_id, external_asset_id, symbol, accuracy
		FROM catalog.assets
		WHERE external_asset_id IS NOT NULL AND NOT is_disabled
		ORDER BY asset_id
	`)
	if err != nil {
		return nil, fmt.Errorf("query assets: %w", err)
	}
	defer rows.Close()

	var assets Assets
	for rows.Next() {
		var a Asset
		if err := rows.Scan(&a.ID, &a.ExternalID, &a.Symbol, &a.Accuracy); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		assets = append(assets, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if assets == nil {
		assets = Assets{}
	}
	return assets, nil
}
