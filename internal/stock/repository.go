package stock

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a Postgres-backed lot source.
func NewRepository(pool *pgxpool.Pool) LotSource {
	return &repository{pool: pool}
}

// AvailableLots aggregates active inventory rows per (batch, expiry). Price
// and minimum price come from the latest purchase into the lot.
func (r *repository) AvailableLots(ctx context.Context, productID int64) ([]Lot, error) {
	const query = `
		SELECT product_id, batch_number, expiry,
		       SUM(quantity) AS quantity,
		       MAX(sale_price) AS price,
		       MAX(minimum_price) AS minimum_price
		FROM inventory_lots
		WHERE product_id = $1 AND is_active AND quantity > 0
		GROUP BY product_id, batch_number, expiry
		ORDER BY expiry
	`
	rows, err := r.pool.Query(ctx, query, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lots []Lot
	for rows.Next() {
		var lot Lot
		if err := rows.Scan(
			&lot.ProductID, &lot.BatchNumber, &lot.Expiry,
			&lot.Quantity, &lot.Price, &lot.MinimumPrice,
		); err != nil {
			return nil, err
		}
		lots = append(lots, lot)
	}
	return lots, rows.Err()
}
