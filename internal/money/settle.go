package money

import "github.com/shopspring/decimal"

// Settlement is the payment-derived part of an invoice.
type Settlement struct {
	TotalPaid decimal.Decimal
	// Balance never goes below zero; any surplus lands in Overpayment.
	Balance     decimal.Decimal
	Overpayment decimal.Decimal
	Paid        bool
}

// Settle sums payments (already in the primary currency) against total.
func Settle(total decimal.Decimal, payments []decimal.Decimal) Settlement {
	paid := decimal.Sum(decimal.Zero, payments...)

	balance := total.Sub(paid)
	over := decimal.Zero
	if balance.IsNegative() {
		over = balance.Neg()
		balance = decimal.Zero
	}

	return Settlement{
		TotalPaid:   paid,
		Balance:     balance,
		Overpayment: over,
		Paid:        balance.LessThan(PaidTolerance) || paid.GreaterThanOrEqual(total),
	}
}
