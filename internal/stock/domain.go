// Package stock selects inventory lots for invoice lines. It reads stock
// figures but never mutates them; movements belong to the warehouse side.
package stock

import (
	"errors"
	"time"
)

// Lot is an aggregated inventory position for one (batch, expiry) pair.
type Lot struct {
	ProductID    int64     `json:"product_id" db:"product_id"`
	BatchNumber  string    `json:"batch_number" db:"batch_number"`
	Expiry       time.Time `json:"expiry" db:"expiry"`
	Quantity     float64   `json:"quantity" db:"quantity"`
	Price        float64   `json:"price" db:"price"`
	MinimumPrice float64   `json:"minimum_price" db:"minimum_price"`
}

// Allocation is the point-in-time snapshot captured on an invoice line.
type Allocation struct {
	BatchNumber    string
	Expiry         time.Time
	AvailableStock float64
	Price          float64
	MinimumPrice   float64
}

var (
	// ErrNoStock indicates the product has no active lots at all.
	ErrNoStock = errors.New("stock: no lot available")
	// ErrInsufficientStock indicates the earliest-expiring lot cannot cover
	// the requested quantity. A request is never split across lots.
	ErrInsufficientStock = errors.New("stock: insufficient quantity in earliest lot")
)
