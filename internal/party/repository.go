package party

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the requested party record was not found.
var ErrNotFound = errors.New("party: not found")

// Repository defines lookups consumed by the invoicing pipeline.
type Repository interface {
	GetCustomer(ctx context.Context, id int64) (*Customer, error)
	GetEmployee(ctx context.Context, id int64) (*Employee, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) GetCustomer(ctx context.Context, id int64) (*Customer, error) {
	const query = `
		SELECT id, code, name, area, city_code, license_number, is_active
		FROM customers
		WHERE id = $1 AND is_active
	`
	var c Customer
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.Code, &c.Name, &c.Area, &c.CityCode, &c.LicenseNumber, &c.IsActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *repository) GetEmployee(ctx context.Context, id int64) (*Employee, error) {
	const query = `
		SELECT id, code, name, area, role, is_active
		FROM employees
		WHERE id = $1 AND is_active
	`
	var e Employee
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&e.ID, &e.Code, &e.Name, &e.Area, &e.Role, &e.IsActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}
