// Package sequence provides atomic keyed counters for document numbering.
package sequence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Counter keys owned by this service. Party counters are scoped per city,
// document counters use a single global key each.
const (
	KeyInvoice  = "invoice"
	KeyManifest = "manifest"
)

// CustomerKey scopes the customer counter to a city.
func CustomerKey(cityCode string) string {
	return "customer:" + cityCode
}

// EmployeeKey scopes the employee counter to a city.
func EmployeeKey(cityCode string) string {
	return "employee:" + cityCode
}

// Allocator hands out monotonically increasing values per key.
type Allocator interface {
	Next(ctx context.Context, key string) (int64, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a Postgres-backed allocator.
func NewRepository(pool *pgxpool.Pool) Allocator {
	return &repository{pool: pool}
}

// Next atomically increments and returns the counter for key. The upsert is a
// single statement, so concurrent callers for the same key never observe the
// same value.
func (r *repository) Next(ctx context.Context, key string) (int64, error) {
	const query = `
		INSERT INTO sequence_counters (key, value)
		VALUES ($1, 1)
		ON CONFLICT (key) DO UPDATE SET value = sequence_counters.value + 1
		RETURNING value
	`
	var value int64
	if err := r.pool.QueryRow(ctx, query, key).Scan(&value); err != nil {
		return 0, fmt.Errorf("sequence: next %q: %w", key, err)
	}
	return value, nil
}
