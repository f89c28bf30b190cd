package manifest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines the interface for manifest persistence.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Manifest, error)
	GetByNumber(ctx context.Context, number string) (*Manifest, error)
	List(ctx context.Context, req ListRequest) ([]Manifest, int, error)
	ListSummaries(ctx context.Context, manifestID int64) ([]InvoiceSummary, error)
	DayStats(ctx context.Context, date time.Time) (*DayStatsResult, error)
	ActiveManifestNumberFor(ctx context.Context, invoiceID int64) (string, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the transactional mutations. The active manifest row
// is locked for the duration of the transaction so summary inserts and the
// aggregate refold observe a stable sequence.
type TxRepository interface {
	FindActiveForUpdate(ctx context.Context, driverID int64, day time.Time) (*Manifest, error)
	InsertManifest(ctx context.Context, m Manifest) (*Manifest, error)
	FindSummaryByInvoice(ctx context.Context, invoiceID int64) (*InvoiceSummary, error)
	InsertSummary(ctx context.Context, s InvoiceSummary) (int64, error)
	UpdateSummary(ctx context.Context, s InvoiceSummary) error
	DeleteSummary(ctx context.Context, id int64) error
	ListSummaries(ctx context.Context, manifestID int64) ([]InvoiceSummary, error)
	UpdateTotals(ctx context.Context, manifestID int64, totals Totals) error
	Deactivate(ctx context.Context, manifestID int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("manifest: begin tx: %w", err)
	}
	if err := fn(ctx, &txRepository{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

const manifestColumns = `id, manifest_number, driver_id, manifest_date,
	total_invoices, total_amount, total_cash_received, total_credit_amount,
	total_product_count, total_quantity, is_active, created_at, updated_at`

func scanManifest(row pgx.Row) (*Manifest, error) {
	var m Manifest
	err := row.Scan(&m.ID, &m.ManifestNumber, &m.DriverID, &m.ManifestDate,
		&m.TotalInvoices, &m.TotalAmount, &m.TotalCashReceived, &m.TotalCreditAmount,
		&m.TotalProductCount, &m.TotalQuantity, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *repository) GetByID(ctx context.Context, id int64) (*Manifest, error) {
	query := `SELECT ` + manifestColumns + ` FROM delivery_manifests WHERE id = $1`
	return scanManifest(r.pool.QueryRow(ctx, query, id))
}

func (r *repository) GetByNumber(ctx context.Context, number string) (*Manifest, error) {
	query := `SELECT ` + manifestColumns + ` FROM delivery_manifests WHERE manifest_number = $1`
	return scanManifest(r.pool.QueryRow(ctx, query, number))
}

// ListRequest filters the manifest listing.
type ListRequest struct {
	DriverID *int64
	Date     *time.Time
	Active   *bool
	Limit    int
	Offset   int
}

func (r *repository) List(ctx context.Context, req ListRequest) ([]Manifest, int, error) {
	where := "WHERE 1=1"
	var args []interface{}
	argPos := 1

	if req.DriverID != nil {
		where += fmt.Sprintf(" AND driver_id = $%d", argPos)
		args = append(args, *req.DriverID)
		argPos++
	}
	if req.Date != nil {
		where += fmt.Sprintf(" AND manifest_date = $%d", argPos)
		args = append(args, DayOf(*req.Date))
		argPos++
	}
	if req.Active != nil {
		where += fmt.Sprintf(" AND is_active = $%d", argPos)
		args = append(args, *req.Active)
		argPos++
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM delivery_manifests ` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("manifest: count: %w", err)
	}

	query := fmt.Sprintf(`SELECT `+manifestColumns+` FROM delivery_manifests %s
		ORDER BY manifest_date DESC, manifest_number DESC LIMIT $%d OFFSET $%d`,
		where, argPos, argPos+1)
	args = append(args, req.Limit, req.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("manifest: list: %w", err)
	}
	defer rows.Close()

	var out []Manifest
	for rows.Next() {
		var m Manifest
		if err := rows.Scan(&m.ID, &m.ManifestNumber, &m.DriverID, &m.ManifestDate,
			&m.TotalInvoices, &m.TotalAmount, &m.TotalCashReceived, &m.TotalCreditAmount,
			&m.TotalProductCount, &m.TotalQuantity, &m.IsActive, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, m)
	}
	return out, total, rows.Err()
}

const summaryColumns = `id, manifest_id, invoice_id, invoice_number, customer_name,
	customer_area, license_number, grand_total, cash_received, credit_amount,
	payment_status, product_count, total_quantity`

func (r *repository) ListSummaries(ctx context.Context, manifestID int64) ([]InvoiceSummary, error) {
	return listSummaries(ctx, r.pool, manifestID)
}

func (t *txRepository) ListSummaries(ctx context.Context, manifestID int64) ([]InvoiceSummary, error) {
	return listSummaries(ctx, t.tx, manifestID)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

func listSummaries(ctx context.Context, q querier, manifestID int64) ([]InvoiceSummary, error) {
	query := `SELECT ` + summaryColumns + ` FROM manifest_invoices WHERE manifest_id = $1 ORDER BY id`
	rows, err := q.Query(ctx, query, manifestID)
	if err != nil {
		return nil, fmt.Errorf("manifest: list summaries: %w", err)
	}
	defer rows.Close()

	var out []InvoiceSummary
	for rows.Next() {
		var s InvoiceSummary
		if err := rows.Scan(&s.ID, &s.ManifestID, &s.InvoiceID, &s.InvoiceNumber,
			&s.CustomerName, &s.CustomerArea, &s.LicenseNumber, &s.GrandTotal,
			&s.CashReceived, &s.CreditAmount, &s.PaymentStatus, &s.ProductCount,
			&s.TotalQuantity); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DayStatsResult aggregates all active manifests of one calendar day.
type DayStatsResult struct {
	Date           time.Time `json:"date"`
	ManifestCount  int       `json:"manifest_count"`
	InvoiceCount   int       `json:"invoice_count"`
	TotalAmount    float64   `json:"total_amount"`
	TotalCash      float64   `json:"total_cash"`
	TotalCredit    float64   `json:"total_credit"`
	TotalQuantity  float64   `json:"total_quantity"`
	DriversAssigned int       `json:"drivers_assigned"`
}

func (r *repository) DayStats(ctx context.Context, date time.Time) (*DayStatsResult, error) {
	query := `SELECT COUNT(*), COALESCE(SUM(total_invoices), 0), COALESCE(SUM(total_amount), 0),
		COALESCE(SUM(total_cash_received), 0), COALESCE(SUM(total_credit_amount), 0),
		COALESCE(SUM(total_quantity), 0), COUNT(DISTINCT driver_id)
		FROM delivery_manifests WHERE manifest_date = $1 AND is_active`

	stats := DayStatsResult{Date: DayOf(date)}
	err := r.pool.QueryRow(ctx, query, stats.Date).Scan(&stats.ManifestCount, &stats.InvoiceCount,
		&stats.TotalAmount, &stats.TotalCash, &stats.TotalCredit, &stats.TotalQuantity,
		&stats.DriversAssigned)
	if err != nil {
		return nil, fmt.Errorf("manifest: day stats: %w", err)
	}
	return &stats, nil
}

// ActiveManifestNumberFor returns the number of the active manifest that
// currently lists the invoice, or ErrNotFound when no active manifest does.
func (r *repository) ActiveManifestNumberFor(ctx context.Context, invoiceID int64) (string, error) {
	query := `SELECT m.manifest_number FROM manifest_invoices s
		JOIN delivery_manifests m ON m.id = s.manifest_id
		WHERE s.invoice_id = $1 AND m.is_active`

	var number string
	if err := r.pool.QueryRow(ctx, query, invoiceID).Scan(&number); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("manifest: active number for invoice: %w", err)
	}
	return number, nil
}

// FindActiveForUpdate locks the active manifest row for the (driver, day)
// key so concurrent summary mutations serialize on it.
func (t *txRepository) FindActiveForUpdate(ctx context.Context, driverID int64, day time.Time) (*Manifest, error) {
	query := `SELECT ` + manifestColumns + ` FROM delivery_manifests
		WHERE driver_id = $1 AND manifest_date = $2 AND is_active FOR UPDATE`
	return scanManifest(t.tx.QueryRow(ctx, query, driverID, DayOf(day)))
}

// InsertManifest creates a new manifest. A partial unique index on
// (driver_id, manifest_date) WHERE is_active turns a concurrent duplicate
// into ErrDuplicateActive, which the caller retries as an append.
func (t *txRepository) InsertManifest(ctx context.Context, m Manifest) (*Manifest, error) {
	query := `INSERT INTO delivery_manifests (manifest_number, driver_id, manifest_date,
		total_invoices, total_amount, total_cash_received, total_credit_amount,
		total_product_count, total_quantity, is_active)
		VALUES ($1, $2, $3, 0, 0, 0, 0, 0, 0, TRUE)
		RETURNING ` + manifestColumns

	out, err := scanManifest(t.tx.QueryRow(ctx, query, m.ManifestNumber, m.DriverID, DayOf(m.ManifestDate)))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateActive
		}
		return nil, fmt.Errorf("manifest: insert: %w", err)
	}
	return out, nil
}

func (t *txRepository) FindSummaryByInvoice(ctx context.Context, invoiceID int64) (*InvoiceSummary, error) {
	query := `SELECT s.id, s.manifest_id, s.invoice_id, s.invoice_number, s.customer_name,
		s.customer_area, s.license_number, s.grand_total, s.cash_received, s.credit_amount,
		s.payment_status, s.product_count, s.total_quantity
		FROM manifest_invoices s
		JOIN delivery_manifests m ON m.id = s.manifest_id
		WHERE s.invoice_id = $1 AND m.is_active
		FOR UPDATE OF m`

	var s InvoiceSummary
	err := t.tx.QueryRow(ctx, query, invoiceID).Scan(&s.ID, &s.ManifestID, &s.InvoiceID,
		&s.InvoiceNumber, &s.CustomerName, &s.CustomerArea, &s.LicenseNumber, &s.GrandTotal,
		&s.CashReceived, &s.CreditAmount, &s.PaymentStatus, &s.ProductCount, &s.TotalQuantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("manifest: find summary: %w", err)
	}
	return &s, nil
}

func (t *txRepository) InsertSummary(ctx context.Context, s InvoiceSummary) (int64, error) {
	query := `INSERT INTO manifest_invoices (manifest_id, invoice_id, invoice_number,
		customer_name, customer_area, license_number, grand_total, cash_received,
		credit_amount, payment_status, product_count, total_quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`

	var id int64
	err := t.tx.QueryRow(ctx, query, s.ManifestID, s.InvoiceID, s.InvoiceNumber,
		s.CustomerName, s.CustomerArea, s.LicenseNumber, s.GrandTotal, s.CashReceived,
		s.CreditAmount, s.PaymentStatus, s.ProductCount, s.TotalQuantity).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("manifest: insert summary: %w", err)
	}
	return id, nil
}

func (t *txRepository) UpdateSummary(ctx context.Context, s InvoiceSummary) error {
	query := `UPDATE manifest_invoices SET grand_total = $2, cash_received = $3,
		credit_amount = $4, payment_status = $5, product_count = $6, total_quantity = $7
		WHERE id = $1`

	tag, err := t.tx.Exec(ctx, query, s.ID, s.GrandTotal, s.CashReceived,
		s.CreditAmount, s.PaymentStatus, s.ProductCount, s.TotalQuantity)
	if err != nil {
		return fmt.Errorf("manifest: update summary: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepository) DeleteSummary(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM manifest_invoices WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("manifest: delete summary: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepository) UpdateTotals(ctx context.Context, manifestID int64, totals Totals) error {
	query := `UPDATE delivery_manifests SET total_invoices = $2, total_amount = $3,
		total_cash_received = $4, total_credit_amount = $5, total_product_count = $6,
		total_quantity = $7, updated_at = NOW()
		WHERE id = $1`

	tag, err := t.tx.Exec(ctx, query, manifestID, totals.TotalInvoices, totals.TotalAmount,
		totals.TotalCashReceived, totals.TotalCreditAmount, totals.TotalProductCount,
		totals.TotalQuantity)
	if err != nil {
		return fmt.Errorf("manifest: update totals: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepository) Deactivate(ctx context.Context, manifestID int64) error {
	query := `UPDATE delivery_manifests SET is_active = FALSE, updated_at = NOW() WHERE id = $1 AND is_active`
	tag, err := t.tx.Exec(ctx, query, manifestID)
	if err != nil {
		return fmt.Errorf("manifest: deactivate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
