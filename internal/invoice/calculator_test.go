package invoice

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeLinePercentageWins(t *testing.T) {
	// 10 units at 100 with 2 bonus and a 10% discount. A stale flat figure is
	// supplied alongside; the percentage must take priority and rederive it.
	out := ComputeLine(LineInput{
		Quantity:           10,
		Bonus:              2,
		Price:              100,
		PercentageDiscount: 10,
		FlatDiscount:       55,
	})

	assert.Equal(t, float64(12), out.TotalQuantity)
	assert.Equal(t, float64(10), out.PercentageDiscount)
	assert.Equal(t, float64(100), out.FlatDiscount)
	assert.Equal(t, float64(900), out.TotalAmount)
	assert.Equal(t, float64(75), out.EffectiveCostPerPiece)
}

func TestComputeLineFlatOnly(t *testing.T) {
	out := ComputeLine(LineInput{
		Quantity:     4,
		Price:        50,
		FlatDiscount: 20,
	})

	assert.Equal(t, float64(20), out.FlatDiscount)
	assert.Equal(t, float64(10), out.PercentageDiscount)
	assert.Equal(t, float64(180), out.TotalAmount)
	assert.Equal(t, float64(45), out.EffectiveCostPerPiece)
}

func TestComputeLineNoDiscount(t *testing.T) {
	out := ComputeLine(LineInput{Quantity: 3, Price: 10})

	assert.Zero(t, out.PercentageDiscount)
	assert.Zero(t, out.FlatDiscount)
	assert.Equal(t, float64(30), out.TotalAmount)
	assert.Equal(t, float64(10), out.EffectiveCostPerPiece)
}

func TestComputeLineBonusNeverCharged(t *testing.T) {
	paid := ComputeLine(LineInput{Quantity: 5, Price: 20})
	withBonus := ComputeLine(LineInput{Quantity: 5, Bonus: 3, Price: 20})

	assert.Equal(t, paid.TotalAmount, withBonus.TotalAmount)
	assert.Equal(t, float64(8), withBonus.TotalQuantity)
	assert.Less(t, withBonus.EffectiveCostPerPiece, paid.EffectiveCostPerPiece)
}

func TestComputeLineZeroQuantityGuard(t *testing.T) {
	out := ComputeLine(LineInput{Quantity: 0, Price: 100})
	assert.Zero(t, out.EffectiveCostPerPiece)
	assert.Zero(t, out.TotalAmount)
}

func TestComputeTotals(t *testing.T) {
	sub, grand := ComputeTotals([]float64{900, 180, 30}, 60)
	assert.Equal(t, float64(1110), sub)
	assert.Equal(t, float64(1050), grand)
}

func TestComputeTotalsEmpty(t *testing.T) {
	sub, grand := ComputeTotals(nil, 0)
	assert.Zero(t, sub)
	assert.Zero(t, grand)
}

func TestDerivePaymentStatus(t *testing.T) {
	tests := []struct {
		name  string
		cash  float64
		grand float64
		want  PaymentStatus
	}{
		{"nothing paid", 0, 1000, PaymentStatusUnpaid},
		{"partial", 400, 1000, PaymentStatusPartiallyPaid},
		{"exact", 1000, 1000, PaymentStatusFullyPaid},
		{"overpaid", 1200, 1000, PaymentStatusFullyPaid},
		{"zero total", 0, 0, PaymentStatusFullyPaid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DerivePaymentStatus(tt.cash, tt.grand))
		})
	}
}

func TestDeriveCredit(t *testing.T) {
	zero := float64(0)
	explicit := float64(250)

	t.Run("derived from remainder", func(t *testing.T) {
		assert.Equal(t, float64(600), DeriveCredit(1000, 400, nil))
	})
	t.Run("derived never negative", func(t *testing.T) {
		assert.Zero(t, DeriveCredit(1000, 1200, nil))
	})
	t.Run("explicit value wins", func(t *testing.T) {
		assert.Equal(t, float64(250), DeriveCredit(1000, 400, &explicit))
	})
	t.Run("explicit zero is authoritative", func(t *testing.T) {
		assert.Zero(t, DeriveCredit(1000, 400, &zero))
	})
}
