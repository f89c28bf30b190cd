package invoice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-dms/meridian-dms/internal/ledger"
)

// Repository defines the interface for invoice persistence.
type Repository interface {
	// Read operations
	GetByID(ctx context.Context, id int64) (*Invoice, error)
	GetByNumber(ctx context.Context, number string) (*Invoice, error)
	GetWithDetails(ctx context.Context, id int64) (*WithDetails, error)
	List(ctx context.Context, req ListRequest) ([]WithDetails, int, error)

	// ListActiveRefs streams the lightweight projection reconciliation
	// iterates over.
	ListActiveRefs(ctx context.Context) ([]ActiveRef, error)

	// SetManifestNumber records which manifest an invoice landed on. It is
	// written outside the financial transaction, by manifest bookkeeping.
	SetManifestNumber(ctx context.Context, id int64, number string) error

	// Write operations (transactional)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes transactional write operations. Ledger postings ride
// the same transaction as the invoice rows.
type TxRepository interface {
	InsertInvoice(ctx context.Context, inv Invoice) (int64, error)
	InsertLine(ctx context.Context, line LineItem) (int64, error)
	UpdatePayment(ctx context.Context, id int64, cash, credit float64, status PaymentStatus) error
	Deactivate(ctx context.Context, id int64) error
	PostReceivable(ctx context.Context, input ledger.ReceivableInput) (int64, error)
	UpdateReceivable(ctx context.Context, entryID int64, cash, credit float64, remarks string) error
	VoidReceivable(ctx context.Context, entryID int64) error
}

// repository implements Repository using pgxpool.
type repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

// txRepository implements TxRepository.
type txRepository struct {
	tx pgx.Tx
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepository{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

const invoiceColumns = `id, invoice_number, invoice_date, customer_id, driver_id, salesman_id,
	       delivery_area, sub_total, total_discount, grand_total, cash_received,
	       credit_amount, payment_status, ledger_entry_id, manifest_number,
	       is_active, created_at, updated_at`

func scanInvoice(row pgx.Row, inv *Invoice) error {
	return row.Scan(
		&inv.ID, &inv.InvoiceNumber, &inv.InvoiceDate, &inv.CustomerID,
		&inv.DriverID, &inv.SalesmanID, &inv.DeliveryArea, &inv.SubTotal,
		&inv.TotalDiscount, &inv.GrandTotal, &inv.CashReceived,
		&inv.CreditAmount, &inv.PaymentStatus, &inv.LedgerEntryID,
		&inv.ManifestNumber, &inv.IsActive, &inv.CreatedAt, &inv.UpdatedAt,
	)
}

// GetByID retrieves an invoice by ID with lines.
func (r *repository) GetByID(ctx context.Context, id int64) (*Invoice, error) {
	query := fmt.Sprintf(`SELECT %s FROM invoices WHERE id = $1`, invoiceColumns)
	var inv Invoice
	if err := scanInvoice(r.pool.QueryRow(ctx, query, id), &inv); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	lines, err := r.getLines(ctx, id)
	if err != nil {
		return nil, err
	}
	inv.Lines = lines

	return &inv, nil
}

// GetByNumber retrieves an invoice by its external number.
func (r *repository) GetByNumber(ctx context.Context, number string) (*Invoice, error) {
	query := fmt.Sprintf(`SELECT %s FROM invoices WHERE invoice_number = $1`, invoiceColumns)
	var inv Invoice
	if err := scanInvoice(r.pool.QueryRow(ctx, query, number), &inv); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	lines, err := r.getLines(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	inv.Lines = lines

	return &inv, nil
}

// ActiveRef is the minimal invoice projection reconciliation works with.
type ActiveRef struct {
	ID             int64     `json:"id" db:"id"`
	InvoiceNumber  string    `json:"invoice_number" db:"invoice_number"`
	InvoiceDate    time.Time `json:"invoice_date" db:"invoice_date"`
	DriverID       int64     `json:"driver_id" db:"driver_id"`
	ManifestNumber string    `json:"manifest_number" db:"manifest_number"`
}

// ListActiveRefs returns all active invoices in issue order.
func (r *repository) ListActiveRefs(ctx context.Context) ([]ActiveRef, error) {
	const query = `SELECT id, invoice_number, invoice_date, COALESCE(driver_id, 0), COALESCE(manifest_number, '')
		FROM invoices WHERE is_active ORDER BY id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active refs: %w", err)
	}
	defer rows.Close()

	var out []ActiveRef
	for rows.Next() {
		var ref ActiveRef
		if err := rows.Scan(&ref.ID, &ref.InvoiceNumber, &ref.InvoiceDate, &ref.DriverID, &ref.ManifestNumber); err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

// SetManifestNumber stamps the manifest number on an invoice.
func (r *repository) SetManifestNumber(ctx context.Context, id int64, number string) error {
	query := `UPDATE invoices SET manifest_number = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, number)
	if err != nil {
		return fmt.Errorf("set manifest number: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) getLines(ctx context.Context, invoiceID int64) ([]LineItem, error) {
	const query = `
		SELECT id, invoice_id, product_id, batch_number, expiry, quantity, bonus,
		       total_quantity, price, minimum_price, percentage_discount,
		       flat_discount, total_amount, effective_cost_per_piece,
		       available_stock, line_order
		FROM invoice_lines
		WHERE invoice_id = $1
		ORDER BY line_order, id
	`
	rows, err := r.pool.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []LineItem
	for rows.Next() {
		var l LineItem
		if err := rows.Scan(
			&l.ID, &l.InvoiceID, &l.ProductID, &l.BatchNumber, &l.Expiry,
			&l.Quantity, &l.Bonus, &l.TotalQuantity, &l.Price, &l.MinimumPrice,
			&l.PercentageDiscount, &l.FlatDiscount, &l.TotalAmount,
			&l.EffectiveCostPerPiece, &l.AvailableStock, &l.LineOrder,
		); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// GetWithDetails retrieves an invoice with joined display data.
func (r *repository) GetWithDetails(ctx context.Context, id int64) (*WithDetails, error) {
	const query = `
		SELECT i.id, i.invoice_number, i.invoice_date, i.customer_id, i.driver_id,
		       i.salesman_id, i.delivery_area, i.sub_total, i.total_discount,
		       i.grand_total, i.cash_received, i.credit_amount, i.payment_status,
		       i.ledger_entry_id, i.manifest_number, i.is_active, i.created_at,
		       i.updated_at,
		       c.name AS customer_name, c.area AS customer_area,
		       d.name AS driver_name, s.name AS salesman_name
		FROM invoices i
		INNER JOIN customers c ON c.id = i.customer_id
		INNER JOIN employees d ON d.id = i.driver_id
		INNER JOIN employees s ON s.id = i.salesman_id
		WHERE i.id = $1
	`
	var w WithDetails
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&w.ID, &w.InvoiceNumber, &w.InvoiceDate, &w.CustomerID, &w.DriverID,
		&w.SalesmanID, &w.DeliveryArea, &w.SubTotal, &w.TotalDiscount,
		&w.GrandTotal, &w.CashReceived, &w.CreditAmount, &w.PaymentStatus,
		&w.LedgerEntryID, &w.ManifestNumber, &w.IsActive, &w.CreatedAt,
		&w.UpdatedAt,
		&w.CustomerName, &w.CustomerArea, &w.DriverName, &w.SalesmanName,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	lines, err := r.getLines(ctx, id)
	if err != nil {
		return nil, err
	}
	w.Lines = lines

	return &w, nil
}

// List returns invoices matching the filters plus the total count.
func (r *repository) List(ctx context.Context, req ListRequest) ([]WithDetails, int, error) {
	var where []string
	var args []interface{}
	argPos := 1

	where = append(where, "i.is_active")
	if req.CustomerID != nil {
		where = append(where, fmt.Sprintf("i.customer_id = $%d", argPos))
		args = append(args, *req.CustomerID)
		argPos++
	}
	if req.DriverID != nil {
		where = append(where, fmt.Sprintf("i.driver_id = $%d", argPos))
		args = append(args, *req.DriverID)
		argPos++
	}
	if req.Status != nil {
		where = append(where, fmt.Sprintf("i.payment_status = $%d", argPos))
		args = append(args, *req.Status)
		argPos++
	}
	if req.DateFrom != nil {
		where = append(where, fmt.Sprintf("i.invoice_date >= $%d", argPos))
		args = append(args, *req.DateFrom)
		argPos++
	}
	if req.DateTo != nil {
		where = append(where, fmt.Sprintf("i.invoice_date <= $%d", argPos))
		args = append(args, *req.DateTo)
		argPos++
	}
	whereClause := strings.Join(where, " AND ")

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM invoices i WHERE %s`, whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 20
	}
	query := fmt.Sprintf(`
		SELECT i.id, i.invoice_number, i.invoice_date, i.customer_id, i.driver_id,
		       i.salesman_id, i.delivery_area, i.sub_total, i.total_discount,
		       i.grand_total, i.cash_received, i.credit_amount, i.payment_status,
		       i.ledger_entry_id, i.manifest_number, i.is_active, i.created_at,
		       i.updated_at,
		       c.name AS customer_name, c.area AS customer_area,
		       d.name AS driver_name, s.name AS salesman_name
		FROM invoices i
		INNER JOIN customers c ON c.id = i.customer_id
		INNER JOIN employees d ON d.id = i.driver_id
		INNER JOIN employees s ON s.id = i.salesman_id
		WHERE %s
		ORDER BY i.invoice_date DESC, i.id DESC
		LIMIT $%d OFFSET $%d
	`, whereClause, argPos, argPos+1)
	args = append(args, limit, req.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []WithDetails
	for rows.Next() {
		var w WithDetails
		if err := rows.Scan(
			&w.ID, &w.InvoiceNumber, &w.InvoiceDate, &w.CustomerID, &w.DriverID,
			&w.SalesmanID, &w.DeliveryArea, &w.SubTotal, &w.TotalDiscount,
			&w.GrandTotal, &w.CashReceived, &w.CreditAmount, &w.PaymentStatus,
			&w.LedgerEntryID, &w.ManifestNumber, &w.IsActive, &w.CreatedAt,
			&w.UpdatedAt,
			&w.CustomerName, &w.CustomerArea, &w.DriverName, &w.SalesmanName,
		); err != nil {
			return nil, 0, err
		}
		result = append(result, w)
	}
	return result, total, rows.Err()
}
