// Package invoice issues sales invoices and keeps them consistent with the
// receivables ledger and per-driver delivery manifests.
package invoice

import (
	"time"
)

// PaymentStatus is derived from cash received versus the grand total.
type PaymentStatus string

const (
	PaymentStatusUnpaid        PaymentStatus = "unpaid"
	PaymentStatusPartiallyPaid PaymentStatus = "partially_paid"
	PaymentStatusFullyPaid     PaymentStatus = "fully_paid"
)

// IsValid checks if the status is valid.
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusUnpaid, PaymentStatusPartiallyPaid, PaymentStatusFullyPaid:
		return true
	default:
		return false
	}
}

// Invoice is the financial record of one sale, fanned out to a driver's
// delivery manifest after commit.
type Invoice struct {
	ID             int64      `json:"id" db:"id"`
	InvoiceNumber  string     `json:"invoice_number" db:"invoice_number"`
	InvoiceDate    time.Time  `json:"invoice_date" db:"invoice_date"`
	CustomerID     int64      `json:"customer_id" db:"customer_id"`
	DriverID       int64      `json:"driver_id" db:"driver_id"`
	SalesmanID     int64      `json:"salesman_id" db:"salesman_id"`
	DeliveryArea   string     `json:"delivery_area" db:"delivery_area"`
	SubTotal       float64    `json:"sub_total" db:"sub_total"`
	TotalDiscount  float64    `json:"total_discount" db:"total_discount"`
	GrandTotal     float64    `json:"grand_total" db:"grand_total"`
	CashReceived   float64    `json:"cash_received" db:"cash_received"`
	CreditAmount   float64    `json:"credit_amount" db:"credit_amount"`
	PaymentStatus  PaymentStatus `json:"payment_status" db:"payment_status"`
	LedgerEntryID  int64      `json:"ledger_entry_id" db:"ledger_entry_id"`
	ManifestNumber string     `json:"manifest_number,omitempty" db:"manifest_number"`
	IsActive       bool       `json:"is_active" db:"is_active"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
	Lines          []LineItem `json:"lines,omitempty" db:"-"`
}

// LineItem is one product position on an invoice. Batch, expiry and
// available stock are snapshots taken at allocation time.
type LineItem struct {
	ID                    int64     `json:"id" db:"id"`
	InvoiceID             int64     `json:"invoice_id" db:"invoice_id"`
	ProductID             int64     `json:"product_id" db:"product_id"`
	BatchNumber           string    `json:"batch_number" db:"batch_number"`
	Expiry                time.Time `json:"expiry" db:"expiry"`
	Quantity              float64   `json:"quantity" db:"quantity"`
	Bonus                 float64   `json:"bonus" db:"bonus"`
	TotalQuantity         float64   `json:"total_quantity" db:"total_quantity"`
	Price                 float64   `json:"price" db:"price"`
	MinimumPrice          float64   `json:"minimum_price" db:"minimum_price"`
	PercentageDiscount    float64   `json:"percentage_discount" db:"percentage_discount"`
	FlatDiscount          float64   `json:"flat_discount" db:"flat_discount"`
	TotalAmount           float64   `json:"total_amount" db:"total_amount"`
	EffectiveCostPerPiece float64   `json:"effective_cost_per_piece" db:"effective_cost_per_piece"`
	AvailableStock        float64   `json:"available_stock" db:"available_stock"`
	LineOrder             int       `json:"line_order" db:"line_order"`
}

// WithDetails includes joined display data.
type WithDetails struct {
	Invoice
	CustomerName string `json:"customer_name" db:"customer_name"`
	CustomerArea string `json:"customer_area" db:"customer_area"`
	DriverName   string `json:"driver_name" db:"driver_name"`
	SalesmanName string `json:"salesman_name" db:"salesman_name"`
}
