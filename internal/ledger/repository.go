package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CreateReceivableTx inserts a receivable entry inside the caller's
// transaction so the posting commits or rolls back with the invoice.
func CreateReceivableTx(ctx context.Context, tx pgx.Tx, input ReceivableInput) (int64, error) {
	const query = `
		INSERT INTO ledger_entries (
			account_id, entry_date, cash_amount, credit_amount,
			remarks, source_ref, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		RETURNING id
	`
	var id int64
	err := tx.QueryRow(ctx, query,
		input.AccountID, input.Date, input.Cash, input.Credit,
		input.Remarks, input.SourceRef,
	).Scan(&id)
	return id, err
}

// UpdateEntryTx rewrites the cash/credit split of an existing entry.
func UpdateEntryTx(ctx context.Context, tx pgx.Tx, id int64, cash, credit float64, remarks string) error {
	const query = `
		UPDATE ledger_entries
		SET cash_amount = $1, credit_amount = $2, remarks = $3, updated_at = $4
		WHERE id = $5 AND is_active
	`
	tag, err := tx.Exec(ctx, query, cash, credit, remarks, time.Now(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeactivateEntryTx voids an entry. Entries are never physically deleted.
func DeactivateEntryTx(ctx context.Context, tx pgx.Tx, id int64) error {
	const query = `
		UPDATE ledger_entries
		SET is_active = FALSE, updated_at = $1
		WHERE id = $2 AND is_active
	`
	tag, err := tx.Exec(ctx, query, time.Now(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Repository provides pool-backed reads over ledger entries.
type Repository interface {
	GetEntry(ctx context.Context, id int64) (*Entry, error)
	ListByAccount(ctx context.Context, accountID int64) ([]Entry, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) GetEntry(ctx context.Context, id int64) (*Entry, error) {
	const query = `
		SELECT id, account_id, entry_date, cash_amount, credit_amount,
		       remarks, source_ref, is_active, created_at, updated_at
		FROM ledger_entries
		WHERE id = $1
	`
	var e Entry
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&e.ID, &e.AccountID, &e.EntryDate, &e.CashAmount, &e.CreditAmount,
		&e.Remarks, &e.SourceRef, &e.IsActive, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (r *repository) ListByAccount(ctx context.Context, accountID int64) ([]Entry, error) {
	const query = `
		SELECT id, account_id, entry_date, cash_amount, credit_amount,
		       remarks, source_ref, is_active, created_at, updated_at
		FROM ledger_entries
		WHERE account_id = $1 AND is_active
		ORDER BY entry_date, id
	`
	rows, err := r.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.ID, &e.AccountID, &e.EntryDate, &e.CashAmount, &e.CreditAmount,
			&e.Remarks, &e.SourceRef, &e.IsActive, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
