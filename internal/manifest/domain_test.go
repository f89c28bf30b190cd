package manifest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecompute(t *testing.T) {
	summaries := []InvoiceSummary{
		{GrandTotal: 900, CashReceived: 300, CreditAmount: 600, ProductCount: 2, TotalQuantity: 16},
		{GrandTotal: 180, CashReceived: 180, CreditAmount: 0, ProductCount: 1, TotalQuantity: 4},
	}

	totals := Recompute(summaries)

	assert.Equal(t, 2, totals.TotalInvoices)
	assert.Equal(t, float64(1080), totals.TotalAmount)
	assert.Equal(t, float64(480), totals.TotalCashReceived)
	assert.Equal(t, float64(600), totals.TotalCreditAmount)
	assert.Equal(t, 3, totals.TotalProductCount)
	assert.Equal(t, float64(20), totals.TotalQuantity)
}

func TestRecomputeEmpty(t *testing.T) {
	assert.Equal(t, Totals{}, Recompute(nil))
}

func TestDayOf(t *testing.T) {
	ts := time.Date(2026, 8, 29, 17, 45, 12, 999, time.FixedZone("WIB", 7*3600))
	day := DayOf(ts)

	assert.Equal(t, time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC), day)
	assert.Equal(t, day, DayOf(day))
}
