package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bodega/internal/dto"
	"bodega/internal/model"
	"bodega/internal/money"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Invoices and quotations share their commercial terms and line pricing.

var hundred = decimal.NewFromInt(100)

type terms struct {
	discount   money.Discount
	taxPct     decimal.Decimal
	condition  model.PaymentCondition
	creditDays int
}

func parseTerms(op string, d dto.DiscountRequest, taxPct decimal.Decimal, condition string, creditDays *int, defaultCreditDays int) (terms, error) {
	t := terms{
		discount: money.Discount{Value: d.Value, Type: money.DiscountType(d.Type)},
		taxPct:   taxPct,
	}
	if t.discount.Type == "" {
		t.discount.Type = money.DiscountPercentage
	}
	if !t.discount.Type.Valid() {
		return t, validationErr(op, fmt.Sprintf("unknown discount type %q", d.Type))
	}
	if t.discount.Value.IsNegative() {
		return t, validationErr(op, "discount must not be negative")
	}
	if t.discount.Type == money.DiscountPercentage && t.discount.Value.GreaterThan(hundred) {
		return t, validationErr(op, "percentage discount above 100")
	}
	if taxPct.IsNegative() || taxPct.GreaterThan(hundred) {
		return t, validationErr(op, "tax percentage must be between 0 and 100")
	}

	switch model.PaymentCondition(condition) {
	case "", model.ConditionCash:
		t.condition = model.ConditionCash
	case model.ConditionCredit:
		t.condition = model.ConditionCredit
		t.creditDays = defaultCreditDays
		if creditDays != nil {
			t.creditDays = *creditDays
		}
		if t.creditDays < 0 {
			return t, validationErr(op, "credit days must not be negative")
		}
	default:
		return t, validationErr(op, fmt.Sprintf("unknown payment condition %q", condition))
	}
	return t, nil
}

// dueDate is nil for cash documents.
func (t terms) dueDate(issuedAt time.Time) *time.Time {
	if t.condition != model.ConditionCredit {
		return nil
	}
	due := issuedAt.AddDate(0, 0, t.creditDays)
	return &due
}

// validateLines trims each line's product id in place.
func validateLines(op string, lines []dto.LineRequest) error {
	if len(lines) == 0 {
		return validationErr(op, "at least one line is required")
	}
	for i := range lines {
		lines[i].ProductID = strings.TrimSpace(lines[i].ProductID)
		l := lines[i]
		if l.ProductID == "" {
			return validationErr(op, fmt.Sprintf("line %d: product is required", i+1))
		}
		if l.Qty < 1 {
			return newErr(op, ErrValidation, l.ProductID, fmt.Sprintf("line %d: quantity must be at least 1", i+1))
		}
		if l.UnitPrice != nil && l.UnitPrice.IsNegative() {
			return newErr(op, ErrValidation, l.ProductID, fmt.Sprintf("line %d: unit price must not be negative", i+1))
		}
	}
	return nil
}

// unitPrice picks the price a new line snapshots: the explicit one, else the
// distributor price when asked for and set, else the detail price.
func unitPrice(p *model.Product, l dto.LineRequest) decimal.Decimal {
	if l.UnitPrice != nil {
		return *l.UnitPrice
	}
	if l.PriceTier == "distributor" && p.DistributorPrice != nil && p.DistributorPrice.IsPositive() {
		return *p.DistributorPrice
	}
	return p.Price
}

// resolveRate returns the requested rate when positive. Zero asks for the
// current rate; when even the cache is empty the configured fallback is used
// so a sale is never blocked by the rate source.
func resolveRate(ctx context.Context, op string, rates ExchangeRateService, fallback, requested decimal.Decimal, log zerolog.Logger) (decimal.Decimal, error) {
	if requested.IsNegative() {
		return decimal.Zero, validationErr(op, "rate must be positive")
	}
	if requested.IsPositive() {
		requested = requested.Round(money.RateScale)
		if !requested.IsPositive() {
			return decimal.Zero, validationErr(op, "rate rounds to zero")
		}
		return requested, nil
	}
	if rates != nil {
		rate, stale, err := rates.CurrentRate(ctx)
		if err == nil {
			if stale {
				log.Warn().Str("rate", rate.String()).Msg("document uses a stale exchange rate")
			}
			return rate, nil
		}
		log.Warn().Err(err).Msg("no exchange rate available")
	}
	if !fallback.IsPositive() {
		return decimal.Zero, &LedgerError{Op: op, Kind: ErrExternalService, Details: "no exchange rate available and no fallback configured"}
	}
	log.Warn().Str("rate", fallback.String()).Msg("using configured fallback exchange rate")
	return fallback, nil
}

func settledState(st money.Settlement) model.InvoiceState {
	if st.Paid {
		return model.StatePaid
	}
	return model.StatePending
}

// rederive recomputes every derived field of inv from its lines, terms, rate
// and payments. Inputs are first rounded to their column scales. It reports
// whether anything changed.
func rederive(inv *model.Invoice) bool {
	inv.RoundInputs()
	totals := money.Compute(
		inv.MoneyLines(),
		money.Discount{Value: inv.DiscountValue, Type: inv.DiscountType},
		inv.TaxPct,
		inv.Rate,
	).Stored(inv.Rate)
	st := money.Settle(totals.Total, inv.PaymentAmounts())
	paid := st.TotalPaid.Round(money.StoragePlaces)
	balance := st.Balance.Round(money.StoragePlaces)
	over := st.Overpayment.Round(money.StoragePlaces)
	state := settledState(st)

	changed := !inv.Totals.Equal(totals) ||
		!inv.TotalPaid.Equal(paid) ||
		!inv.Balance.Equal(balance) ||
		!inv.Overpayment.Equal(over) ||
		inv.State != state

	inv.Totals = totals
	inv.TotalPaid = paid
	inv.Balance = balance
	inv.Overpayment = over
	inv.State = state
	return changed
}
