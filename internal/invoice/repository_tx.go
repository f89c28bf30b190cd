package invoice

import (
	"context"
	"time"

	"github.com/meridian-dms/meridian-dms/internal/ledger"
)

// InsertInvoice creates a new invoice header row.
func (t *txRepository) InsertInvoice(ctx context.Context, inv Invoice) (int64, error) {
	const query = `
		INSERT INTO invoices (
			invoice_number, invoice_date, customer_id, driver_id, salesman_id,
			delivery_area, sub_total, total_discount, grand_total, cash_received,
			credit_amount, payment_status, ledger_entry_id, manifest_number, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, TRUE)
		RETURNING id
	`
	var id int64
	err := t.tx.QueryRow(ctx, query,
		inv.InvoiceNumber, inv.InvoiceDate, inv.CustomerID, inv.DriverID,
		inv.SalesmanID, inv.DeliveryArea, inv.SubTotal, inv.TotalDiscount,
		inv.GrandTotal, inv.CashReceived, inv.CreditAmount, inv.PaymentStatus,
		inv.LedgerEntryID, inv.ManifestNumber,
	).Scan(&id)
	return id, err
}

// InsertLine inserts an invoice line.
func (t *txRepository) InsertLine(ctx context.Context, line LineItem) (int64, error) {
	const query = `
		INSERT INTO invoice_lines (
			invoice_id, product_id, batch_number, expiry, quantity, bonus,
			total_quantity, price, minimum_price, percentage_discount,
			flat_discount, total_amount, effective_cost_per_piece,
			available_stock, line_order
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id
	`
	var id int64
	err := t.tx.QueryRow(ctx, query,
		line.InvoiceID, line.ProductID, line.BatchNumber, line.Expiry,
		line.Quantity, line.Bonus, line.TotalQuantity, line.Price,
		line.MinimumPrice, line.PercentageDiscount, line.FlatDiscount,
		line.TotalAmount, line.EffectiveCostPerPiece, line.AvailableStock,
		line.LineOrder,
	).Scan(&id)
	return id, err
}

// UpdatePayment rewrites the payment fields of an invoice.
func (t *txRepository) UpdatePayment(ctx context.Context, id int64, cash, credit float64, status PaymentStatus) error {
	const query = `
		UPDATE invoices
		SET cash_received = $1, credit_amount = $2, payment_status = $3, updated_at = $4
		WHERE id = $5 AND is_active
	`
	tag, err := t.tx.Exec(ctx, query, cash, credit, status, time.Now(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Deactivate soft-deletes an invoice; the number is never reused.
func (t *txRepository) Deactivate(ctx context.Context, id int64) error {
	const query = `
		UPDATE invoices
		SET is_active = FALSE, updated_at = $1
		WHERE id = $2 AND is_active
	`
	tag, err := t.tx.Exec(ctx, query, time.Now(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PostReceivable posts the ledger entry inside the invoice transaction.
func (t *txRepository) PostReceivable(ctx context.Context, input ledger.ReceivableInput) (int64, error) {
	return ledger.CreateReceivableTx(ctx, t.tx, input)
}

// UpdateReceivable updates the linked ledger entry inside the transaction.
func (t *txRepository) UpdateReceivable(ctx context.Context, entryID int64, cash, credit float64, remarks string) error {
	return ledger.UpdateEntryTx(ctx, t.tx, entryID, cash, credit, remarks)
}

// VoidReceivable deactivates the linked ledger entry.
func (t *txRepository) VoidReceivable(ctx context.Context, entryID int64) error {
	return ledger.DeactivateEntryTx(ctx, t.tx, entryID)
}
