package invoice

// LineInput carries the caller-supplied figures for one line.
type LineInput struct {
	Quantity           float64
	Bonus              float64
	Price              float64
	PercentageDiscount float64
	FlatDiscount       float64
}

// LineResult holds the derived financial figures for one line.
type LineResult struct {
	TotalQuantity         float64
	PercentageDiscount    float64
	FlatDiscount          float64
	TotalAmount           float64
	EffectiveCostPerPiece float64
}

// ComputeLine derives line figures. Bonus units are never charged. When both
// discounts are supplied the percentage wins and the flat value is rederived
// from it; the reverse derivation applies when only the flat value is given.
func ComputeLine(in LineInput) LineResult {
	out := LineResult{
		TotalQuantity:      in.Quantity + in.Bonus,
		PercentageDiscount: in.PercentageDiscount,
		FlatDiscount:       in.FlatDiscount,
	}

	amount := in.Quantity * in.Price
	switch {
	case in.PercentageDiscount > 0:
		out.FlatDiscount = amount * in.PercentageDiscount / 100
		amount -= out.FlatDiscount
	case in.FlatDiscount > 0:
		if amount != 0 {
			out.PercentageDiscount = in.FlatDiscount / amount * 100
		}
		amount -= in.FlatDiscount
	}
	out.TotalAmount = amount

	if out.TotalQuantity > 0 {
		out.EffectiveCostPerPiece = out.TotalAmount / out.TotalQuantity
	}
	return out
}

// ComputeTotals folds line totals into the invoice header figures.
func ComputeTotals(lineTotals []float64, headerDiscount float64) (subTotal, grandTotal float64) {
	for _, t := range lineTotals {
		subTotal += t
	}
	grandTotal = subTotal - headerDiscount
	return subTotal, grandTotal
}

// DerivePaymentStatus maps cash received against the grand total.
func DerivePaymentStatus(cashReceived, grandTotal float64) PaymentStatus {
	switch {
	case cashReceived >= grandTotal:
		return PaymentStatusFullyPaid
	case cashReceived > 0:
		return PaymentStatusPartiallyPaid
	default:
		return PaymentStatusUnpaid
	}
}

// DeriveCredit resolves the credit amount. A nil explicit value means
// "not specified": credit is derived from the uncovered remainder. A non-nil
// value, including zero, is taken as authoritative.
func DeriveCredit(grandTotal, cashReceived float64, explicit *float64) float64 {
	if explicit != nil {
		return *explicit
	}
	credit := grandTotal - cashReceived
	if credit < 0 {
		return 0
	}
	return credit
}
