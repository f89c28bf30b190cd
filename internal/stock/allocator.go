package stock

import (
	"context"
	"fmt"
	"sort"
)

// LotSource supplies active lots per product, already aggregated by
// (batch number, expiry).
type LotSource interface {
	AvailableLots(ctx context.Context, productID int64) ([]Lot, error)
}

// Allocator picks the lot an invoice line draws from.
type Allocator struct {
	lots LotSource
}

// NewAllocator builds an Allocator.
func NewAllocator(lots LotSource) *Allocator {
	return &Allocator{lots: lots}
}

// Allocate selects the earliest-expiring lot for the product and validates
// that it can cover the requested quantity. The decision is a snapshot; the
// lot is not reserved or decremented here.
func (a *Allocator) Allocate(ctx context.Context, productID int64, requested float64) (Allocation, error) {
	lots, err := a.lots.AvailableLots(ctx, productID)
	if err != nil {
		return Allocation{}, fmt.Errorf("stock: load lots for product %d: %w", productID, err)
	}
	if len(lots) == 0 {
		return Allocation{}, fmt.Errorf("product %d: %w", productID, ErrNoStock)
	}

	sort.SliceStable(lots, func(i, j int) bool {
		return lots[i].Expiry.Before(lots[j].Expiry)
	})
	earliest := lots[0]

	if requested > earliest.Quantity {
		return Allocation{}, fmt.Errorf("product %d batch %s has %.2f, requested %.2f: %w",
			productID, earliest.BatchNumber, earliest.Quantity, requested, ErrInsufficientStock)
	}

	return Allocation{
		BatchNumber:    earliest.BatchNumber,
		Expiry:         earliest.Expiry,
		AvailableStock: earliest.Quantity,
		Price:          earliest.Price,
		MinimumPrice:   earliest.MinimumPrice,
	}, nil
}
