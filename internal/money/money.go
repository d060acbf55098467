// Package money holds the dual-currency arithmetic shared by invoices and
// quotations. Every function is pure: the same inputs always produce the same
// totals, which is what makes stored documents repairable.
package money

import (
	"github.com/shopspring/decimal"
)

// DiscountType tells Compute how to read Discount.Value.
type DiscountType string

const (
	// DiscountPercentage: Value is a percentage of the primary subtotal.
	DiscountPercentage DiscountType = "percentage"
	// DiscountCurrency: Value is an amount in the secondary currency.
	DiscountCurrency DiscountType = "currency"
)

// Valid reports whether t is one of the known discount types.
func (t DiscountType) Valid() bool {
	return t == DiscountPercentage || t == DiscountCurrency
}

var (
	hundred = decimal.NewFromInt(100)

	// PaidTolerance is the balance under which a document counts as settled.
	PaidTolerance = decimal.New(1, -2)
)

// Line is the arithmetic view of a document line.
type Line struct {
	Qty       int
	UnitPrice decimal.Decimal
}

type Discount struct {
	Value decimal.Decimal
	Type  DiscountType
}

// Totals are the derived amounts of a document. The *Secondary fields are the
// primary amounts times the document's rate snapshot.
type Totals struct {
	Subtotal          decimal.Decimal `gorm:"type:numeric(20,6);not null;default:0" json:"subtotal"`
	SubtotalSecondary decimal.Decimal `gorm:"type:numeric(20,6);not null;default:0" json:"subtotal_secondary"`
	Discount          decimal.Decimal `gorm:"type:numeric(20,6);not null;default:0" json:"discount"`
	DiscountSecondary decimal.Decimal `gorm:"type:numeric(20,6);not null;default:0" json:"discount_secondary"`
	Tax               decimal.Decimal `gorm:"type:numeric(20,6);not null;default:0" json:"tax"`
	TaxSecondary      decimal.Decimal `gorm:"type:numeric(20,6);not null;default:0" json:"tax_secondary"`
	Total             decimal.Decimal `gorm:"type:numeric(20,6);not null;default:0" json:"total"`
	TotalSecondary    decimal.Decimal `gorm:"type:numeric(20,6);not null;default:0" json:"total_secondary"`
}

// Compute derives all totals from the primitive inputs, in this order:
//
//	subtotal          = Σ qty × unitPrice
//	subtotalSecondary = subtotal × rate
//	discount          = subtotal × value / 100      (percentage)
//	                  = value / rate                (currency)
//	tax               = (subtotal − discount) × taxPct / 100
//	total             = subtotal − discount + tax
//	totalSecondary    = total × rate
//
// A non-positive rate makes a currency discount zero; callers validate the
// rate before persisting anything.
func Compute(lines []Line, discount Discount, taxPct, rate decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Qty))))
	}

	disc := decimal.Zero
	switch discount.Type {
	case DiscountPercentage:
		disc = subtotal.Mul(discount.Value).Div(hundred)
	default:
		if rate.IsPositive() {
			disc = discount.Value.Div(rate)
		}
	}

	tax := subtotal.Sub(disc).Mul(taxPct).Div(hundred)
	total := subtotal.Sub(disc).Add(tax)

	return Totals{
		Subtotal:          subtotal,
		SubtotalSecondary: subtotal.Mul(rate),
		Discount:          disc,
		DiscountSecondary: disc.Mul(rate),
		Tax:               tax,
		TaxSecondary:      tax.Mul(rate),
		Total:             total,
		TotalSecondary:    total.Mul(rate),
	}
}

// ToPrimary converts a secondary-currency amount with the given rate.
func ToPrimary(amount, rate decimal.Decimal) decimal.Decimal {
	if !rate.IsPositive() {
		return decimal.Zero
	}
	return amount.Div(rate)
}

// ToSecondary converts a primary-currency amount with the given rate.
func ToSecondary(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate)
}

// Column scales. Inputs are rounded to them before anything is derived, so
// the stored totals always follow from the stored inputs.
const (
	StoragePlaces int32 = 6 // derived amounts, payment amounts, discount value
	PriceScale    int32 = 2 // unit prices
	PercentScale  int32 = 2 // tax percentage
	RateScale     int32 = 6 // exchange rates
)

// Stored rounds the primary amounts to StoragePlaces and derives each
// secondary amount from the rounded primary one, so that a stored
// totalSecondary is exactly round(total × rate).
func (t Totals) Stored(rate decimal.Decimal) Totals {
	sub := t.Subtotal.Round(StoragePlaces)
	disc := t.Discount.Round(StoragePlaces)
	tax := t.Tax.Round(StoragePlaces)
	total := t.Total.Round(StoragePlaces)
	return Totals{
		Subtotal:          sub,
		SubtotalSecondary: sub.Mul(rate).Round(StoragePlaces),
		Discount:          disc,
		DiscountSecondary: disc.Mul(rate).Round(StoragePlaces),
		Tax:               tax,
		TaxSecondary:      tax.Mul(rate).Round(StoragePlaces),
		Total:             total,
		TotalSecondary:    total.Mul(rate).Round(StoragePlaces),
	}
}

// Equal reports whether every field of t equals the one in o.
func (t Totals) Equal(o Totals) bool {
	return t.Subtotal.Equal(o.Subtotal) &&
		t.SubtotalSecondary.Equal(o.SubtotalSecondary) &&
		t.Discount.Equal(o.Discount) &&
		t.DiscountSecondary.Equal(o.DiscountSecondary) &&
		t.Tax.Equal(o.Tax) &&
		t.TaxSecondary.Equal(o.TaxSecondary) &&
		t.Total.Equal(o.Total) &&
		t.TotalSecondary.Equal(o.TotalSecondary)
}
