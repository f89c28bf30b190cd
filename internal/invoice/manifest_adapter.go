package invoice

import (
	"context"
	"fmt"

	"github.com/meridian-dms/meridian-dms/internal/manifest"
)

// ManifestAdapter projects invoices into the shape manifest bookkeeping
// consumes. It lives on the invoice side so the manifest package stays free
// of invoice types.
type ManifestAdapter struct {
	repo    Repository
	parties PartyDirectory
}

// NewManifestAdapter creates a new adapter.
func NewManifestAdapter(repo Repository, parties PartyDirectory) *ManifestAdapter {
	return &ManifestAdapter{repo: repo, parties: parties}
}

// InvoiceForManifest loads the invoice and denormalizes the fields a
// manifest summary carries.
func (a *ManifestAdapter) InvoiceForManifest(ctx context.Context, invoiceID int64) (*manifest.InvoiceInfo, error) {
	inv, err := a.repo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	customer, err := a.parties.GetCustomer(ctx, inv.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("customer %d for invoice %d: %w", inv.CustomerID, invoiceID, err)
	}

	var totalQuantity float64
	for _, line := range inv.Lines {
		totalQuantity += line.TotalQuantity
	}

	return &manifest.InvoiceInfo{
		InvoiceID:      inv.ID,
		InvoiceNumber:  inv.InvoiceNumber,
		InvoiceDate:    inv.InvoiceDate,
		DriverID:       inv.DriverID,
		CustomerName:   customer.Name,
		CustomerArea:   customer.Area,
		LicenseNumber:  customer.LicenseNumber,
		GrandTotal:     inv.GrandTotal,
		CashReceived:   inv.CashReceived,
		CreditAmount:   inv.CreditAmount,
		PaymentStatus:  string(inv.PaymentStatus),
		ProductCount:   len(inv.Lines),
		TotalQuantity:  totalQuantity,
		ManifestNumber: inv.ManifestNumber,
		IsActive:       inv.IsActive,
	}, nil
}

// SetManifestNumber writes the assigned manifest number back to the invoice.
func (a *ManifestAdapter) SetManifestNumber(ctx context.Context, invoiceID int64, number string) error {
	return a.repo.SetManifestNumber(ctx, invoiceID, number)
}
