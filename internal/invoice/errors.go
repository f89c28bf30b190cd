package invoice

import (
	"errors"

	"github.com/meridian-dms/meridian-dms/internal/stock"
)

// Domain errors for invoices.
var (
	// ErrNotFound indicates the requested invoice was not found.
	ErrNotFound = errors.New("invoice not found")

	// Validation errors.
	ErrEmptyLines       = errors.New("at least one line is required")
	ErrInvalidQuantity  = errors.New("quantity must be greater than zero")
	ErrInvalidPrice     = errors.New("price must be greater than zero")
	ErrCustomerNotFound = errors.New("customer not found")
	ErrDriverNotFound   = errors.New("driver not found")
	ErrSalesmanNotFound = errors.New("salesman not found")
	ErrNotADriver       = errors.New("employee does not hold the driver role")
	ErrNotASalesman     = errors.New("employee does not hold the salesman role")

	// Business rule errors.
	ErrPriceBelowMinimum = errors.New("price below minimum for allocated batch")
	ErrInvoiceInactive   = errors.New("invoice is deactivated")
)

func isStockErr(err error) bool {
	return errors.Is(err, stock.ErrNoStock) || errors.Is(err, stock.ErrInsufficientStock)
}
