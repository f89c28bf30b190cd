// Package manifest maintains the per-driver, per-day delivery manifests.
// Each active manifest owns an ordered list of invoice summaries; every
// aggregate figure on the manifest is recomputed as a fold over that list
// after each mutation, never patched incrementally.
package manifest

import (
	"context"
	"time"
)

// Manifest is the delivery log for one driver on one calendar day.
type Manifest struct {
	ID             int64     `json:"id" db:"id"`
	ManifestNumber string    `json:"manifest_number" db:"manifest_number"`
	DriverID       int64     `json:"driver_id" db:"driver_id"`
	ManifestDate   time.Time `json:"manifest_date" db:"manifest_date"`
	Totals
	IsActive  bool             `json:"is_active" db:"is_active"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt time.Time        `json:"updated_at" db:"updated_at"`
	Invoices  []InvoiceSummary `json:"invoices,omitempty" db:"-"`
}

// InvoiceSummary is a denormalized snapshot of one invoice on a manifest.
// It is kept in sync by explicit update calls and may transiently diverge
// from its source invoice until the next refresh or reconciliation pass.
type InvoiceSummary struct {
	ID            int64   `json:"id" db:"id"`
	ManifestID    int64   `json:"manifest_id" db:"manifest_id"`
	InvoiceID     int64   `json:"invoice_id" db:"invoice_id"`
	InvoiceNumber string  `json:"invoice_number" db:"invoice_number"`
	CustomerName  string  `json:"customer_name" db:"customer_name"`
	CustomerArea  string  `json:"customer_area" db:"customer_area"`
	LicenseNumber string  `json:"license_number" db:"license_number"`
	GrandTotal    float64 `json:"grand_total" db:"grand_total"`
	CashReceived  float64 `json:"cash_received" db:"cash_received"`
	CreditAmount  float64 `json:"credit_amount" db:"credit_amount"`
	PaymentStatus string  `json:"payment_status" db:"payment_status"`
	ProductCount  int     `json:"product_count" db:"product_count"`
	TotalQuantity float64 `json:"total_quantity" db:"total_quantity"`
}

// Totals holds the fold-derived aggregates of a manifest.
type Totals struct {
	TotalInvoices     int     `json:"total_invoices" db:"total_invoices"`
	TotalAmount       float64 `json:"total_amount" db:"total_amount"`
	TotalCashReceived float64 `json:"total_cash_received" db:"total_cash_received"`
	TotalCreditAmount float64 `json:"total_credit_amount" db:"total_credit_amount"`
	TotalProductCount int     `json:"total_product_count" db:"total_product_count"`
	TotalQuantity     float64 `json:"total_quantity" db:"total_quantity"`
}

// Recompute folds the summaries into fresh aggregates.
func Recompute(summaries []InvoiceSummary) Totals {
	var t Totals
	for _, s := range summaries {
		t.TotalInvoices++
		t.TotalAmount += s.GrandTotal
		t.TotalCashReceived += s.CashReceived
		t.TotalCreditAmount += s.CreditAmount
		t.TotalProductCount += s.ProductCount
		t.TotalQuantity += s.TotalQuantity
	}
	return t
}

// DayOf truncates a timestamp to its calendar day in UTC.
func DayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// InvoiceInfo is the projection of an invoice the aggregator needs. The
// invoice side supplies it so this package never depends on invoice types.
type InvoiceInfo struct {
	InvoiceID      int64
	InvoiceNumber  string
	InvoiceDate    time.Time
	DriverID       int64
	CustomerName   string
	CustomerArea   string
	LicenseNumber  string
	GrandTotal     float64
	CashReceived   float64
	CreditAmount   float64
	PaymentStatus  string
	ProductCount   int
	TotalQuantity  float64
	ManifestNumber string
	IsActive       bool
}

// InvoiceSource reads and annotates invoices on behalf of the aggregator.
type InvoiceSource interface {
	InvoiceForManifest(ctx context.Context, invoiceID int64) (*InvoiceInfo, error)
	SetManifestNumber(ctx context.Context, invoiceID int64, number string) error
}

func summaryFrom(manifestID int64, info *InvoiceInfo) InvoiceSummary {
	return InvoiceSummary{
		ManifestID:    manifestID,
		InvoiceID:     info.InvoiceID,
		InvoiceNumber: info.InvoiceNumber,
		CustomerName:  info.CustomerName,
		CustomerArea:  info.CustomerArea,
		LicenseNumber: info.LicenseNumber,
		GrandTotal:    info.GrandTotal,
		CashReceived:  info.CashReceived,
		CreditAmount:  info.CreditAmount,
		PaymentStatus: info.PaymentStatus,
		ProductCount:  info.ProductCount,
		TotalQuantity: info.TotalQuantity,
	}
}
