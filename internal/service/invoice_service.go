package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"bodega/internal/dto"
	"bodega/internal/logger"
	"bodega/internal/model"
	"bodega/internal/money"
	"bodega/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InvoiceOptions are the business defaults the invoice ledger applies.
type InvoiceOptions struct {
	DefaultCreditDays int
	// FallbackRate is used when the caller gives no rate and neither the live
	// source nor the cache has one.
	FallbackRate decimal.Decimal
	Now          func() time.Time
}

// RepairReport summarizes a RepairInvoiceTotals run.
type RepairReport struct {
	Scanned int
	Changed int
}

// InvoiceService is the invoice ledger. Every write that touches stock runs
// under the ledger lock and inside one transaction with the stock changes.
type InvoiceService interface {
	Create(ctx context.Context, user string, req dto.InvoiceRequest) (*model.Invoice, error)
	Edit(ctx context.Context, user string, id uuid.UUID, req dto.InvoiceRequest) (*model.Invoice, error)
	// Delete removes the invoice and puts its quantities back in stock.
	Delete(ctx context.Context, user string, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
	List(ctx context.Context, filter repository.InvoiceFilter) ([]model.Invoice, int64, error)
	// ComputeTotals prices the lines and runs the money rules without
	// persisting anything.
	ComputeTotals(ctx context.Context, req dto.TotalsRequest) (money.Totals, error)
	// RepairInvoiceTotals rebuilds every derived field from the stored
	// primitives. A second run reports zero changes.
	RepairInvoiceTotals(ctx context.Context) (RepairReport, error)
}

type invoiceService struct {
	invoices  repository.InvoiceRepository
	products  repository.ProductRepository
	customers repository.CustomerRepository
	stock     StockService
	rates     ExchangeRateService
	locks     *Locks
	opts      InvoiceOptions
	log       zerolog.Logger
}

func NewInvoiceService(
	invoices repository.InvoiceRepository,
	products repository.ProductRepository,
	customers repository.CustomerRepository,
	stock StockService,
	rates ExchangeRateService,
	locks *Locks,
	opts InvoiceOptions,
) InvoiceService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &invoiceService{
		invoices:  invoices,
		products:  products,
		customers: customers,
		stock:     stock,
		rates:     rates,
		locks:     locks,
		opts:      opts,
		log:       logger.WithComponent("invoice"),
	}
}

// ── Create ───────────────────────────────────────────────────────────────────
//   1. Validate terms and lines, resolve the rate (outside the locks)
//   2. Lock products, snapshot prices
//   3. Draw the number, apply the stock exits
//   4. Derive totals and state, persist

func (s *invoiceService) Create(ctx context.Context, user string, req dto.InvoiceRequest) (*model.Invoice, error) {
	const op = "CreateInvoice"

	if err := validateLines(op, req.Lines); err != nil {
		return nil, err
	}
	t, err := parseTerms(op, req.Discount, req.TaxPct, req.Condition, req.CreditDays, s.opts.DefaultCreditDays)
	if err != nil {
		return nil, err
	}
	if req.PaidInFull && t.condition != model.ConditionCash {
		return nil, validationErr(op, "paid in full is only allowed on cash invoices")
	}
	rate, err := resolveRate(ctx, op, s.rates, s.opts.FallbackRate, req.Rate, s.log)
	if err != nil {
		return nil, err
	}

	issuedAt := s.opts.Now().UTC()
	if req.IssuedAt != nil {
		issuedAt = req.IssuedAt.UTC()
	}

	unlock := s.locks.Ledger()
	defer unlock()

	customer, err := s.customers.FindByID(ctx, req.CustomerID)
	if err != nil {
		return nil, classify(op, req.CustomerID, err)
	}

	inv := &model.Invoice{
		ID:            uuid.New(),
		IssuedAt:      issuedAt,
		CustomerID:    customer.ID,
		Condition:     t.condition,
		CreditDays:    t.creditDays,
		DueDate:       t.dueDate(issuedAt),
		Rate:          rate,
		DiscountValue: t.discount.Value,
		DiscountType:  t.discount.Type,
		TaxPct:        t.taxPct,
		CreatedBy:     user,
	}

	err = runTx(ctx, op, s.invoices.DB(), func(tx *gorm.DB, comp *compensator) error {
		products, err := s.products.LockTx(ctx, tx, lineProductIDs(req.Lines))
		if err != nil {
			return classify(op, "", err)
		}
		for i, l := range req.Lines {
			p, ok := products[l.ProductID]
			if !ok {
				return notFound(op, l.ProductID)
			}
			inv.Lines = append(inv.Lines, model.InvoiceLine{
				ID:        uuid.New(),
				InvoiceID: inv.ID,
				ProductID: l.ProductID,
				Qty:       l.Qty,
				UnitPrice: unitPrice(p, l),
				Position:  i,
			})
		}

		number, err := s.invoices.NextNumber(ctx, tx)
		if err != nil {
			return classify(op, "", err)
		}
		inv.Number = number

		if _, err := s.stock.ApplyTx(ctx, tx, comp, s.stockChanges(inv, inv.QtyByProduct(), -1, "sale", user), false); err != nil {
			return err
		}

		rederive(inv)
		if req.PaidInFull {
			method := req.PaymentMethod
			if method == "" {
				method = "cash"
			}
			inv.Payments = append(inv.Payments, model.Payment{
				ID:            uuid.New(),
				InvoiceID:     inv.ID,
				Amount:        inv.Total,
				Currency:      model.CurrencyPrimary,
				EnteredAmount: inv.Total,
				Rate:          inv.Rate,
				Method:        method,
				PaidAt:        issuedAt,
			})
			rederive(inv)
		}

		if err := s.invoices.Create(ctx, tx, inv); err != nil {
			return classify(op, inv.ID.String(), err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	inv.Customer = customer
	s.log.Info().
		Int("number", inv.Number).
		Str("customer", inv.CustomerID).
		Str("total", inv.Total.String()).
		Str("state", string(inv.State)).
		Msg("invoice created")
	return inv, nil
}

// ── Edit ─────────────────────────────────────────────────────────────────────
// Stock moves by old − new per product. Payments are facts and stay as they
// are; balance and state are re-derived against the new total.

func (s *invoiceService) Edit(ctx context.Context, user string, id uuid.UUID, req dto.InvoiceRequest) (*model.Invoice, error) {
	const op = "EditInvoice"

	if err := validateLines(op, req.Lines); err != nil {
		return nil, err
	}
	t, err := parseTerms(op, req.Discount, req.TaxPct, req.Condition, req.CreditDays, s.opts.DefaultCreditDays)
	if err != nil {
		return nil, err
	}
	if req.Rate.IsNegative() {
		return nil, validationErr(op, "rate must be positive")
	}

	unlock := s.locks.Ledger()
	defer unlock()

	customer, err := s.customers.FindByID(ctx, req.CustomerID)
	if err != nil {
		return nil, classify(op, req.CustomerID, err)
	}

	var inv *model.Invoice
	err = runTx(ctx, op, s.invoices.DB(), func(tx *gorm.DB, comp *compensator) error {
		var err error
		inv, err = s.invoices.LockTx(ctx, tx, id)
		if err != nil {
			return classify(op, id.String(), err)
		}
		prev := *inv
		prev.Lines = append([]model.InvoiceLine(nil), inv.Lines...)

		oldQty := inv.QtyByProduct()
		oldPrice := make(map[string]decimal.Decimal, len(inv.Lines))
		for _, l := range inv.Lines {
			if _, ok := oldPrice[l.ProductID]; !ok {
				oldPrice[l.ProductID] = l.UnitPrice
			}
		}

		ids := lineProductIDs(req.Lines)
		for pid := range oldQty {
			ids = append(ids, pid)
		}
		products, err := s.products.LockTx(ctx, tx, uniqueSorted(ids))
		if err != nil {
			return classify(op, "", err)
		}

		lines := make([]model.InvoiceLine, 0, len(req.Lines))
		for i, l := range req.Lines {
			p, ok := products[l.ProductID]
			if !ok {
				return notFound(op, l.ProductID)
			}
			price, kept := oldPrice[l.ProductID]
			if l.UnitPrice != nil || !kept {
				price = unitPrice(p, l)
			}
			lines = append(lines, model.InvoiceLine{
				InvoiceID: inv.ID,
				ProductID: l.ProductID,
				Qty:       l.Qty,
				UnitPrice: price,
				Position:  i,
			})
		}

		newQty := make(map[string]int, len(lines))
		for _, l := range lines {
			newQty[l.ProductID] += l.Qty
		}
		deltas := make(map[string]int)
		for pid, q := range oldQty {
			deltas[pid] += q
		}
		for pid, q := range newQty {
			deltas[pid] -= q
		}
		for pid, d := range deltas {
			if _, ok := products[pid]; !ok && d > 0 {
				s.log.Warn().Str("product", pid).Int("number", inv.Number).Msg("product no longer exists; stock not restored")
				delete(deltas, pid)
			}
		}
		reason := fmt.Sprintf("invoice edit #%d", inv.Number)
		if _, err := s.stock.ApplyTx(ctx, tx, comp, s.stockChanges(inv, deltas, 1, reason, user), false); err != nil {
			return err
		}

		inv.Lines = lines
		inv.RoundInputs()
		if err := s.invoices.ReplaceLinesTx(ctx, tx, inv); err != nil {
			return classify(op, id.String(), err)
		}
		comp.push(func() error { return s.invoices.ReplaceLinesTx(ctx, nil, &prev) })

		if req.IssuedAt != nil {
			inv.IssuedAt = req.IssuedAt.UTC()
		}
		inv.CustomerID = customer.ID
		inv.Condition = t.condition
		inv.CreditDays = t.creditDays
		inv.DueDate = t.dueDate(inv.IssuedAt)
		inv.DiscountValue = t.discount.Value
		inv.DiscountType = t.discount.Type
		inv.TaxPct = t.taxPct
		if req.Rate.Round(money.RateScale).IsPositive() {
			inv.Rate = req.Rate
		}
		rederive(inv)

		if err := s.invoices.UpdateTx(ctx, tx, inv); err != nil {
			return classify(op, id.String(), err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	inv.Customer = customer
	s.log.Info().Int("number", inv.Number).Str("total", inv.Total.String()).Str("user", user).Msg("invoice edited")
	return inv, nil
}

// ── Delete ───────────────────────────────────────────────────────────────────

func (s *invoiceService) Delete(ctx context.Context, user string, id uuid.UUID) error {
	const op = "DeleteInvoice"

	unlock := s.locks.Ledger()
	defer unlock()

	return runTx(ctx, op, s.invoices.DB(), func(tx *gorm.DB, comp *compensator) error {
		inv, err := s.invoices.LockTx(ctx, tx, id)
		if err != nil {
			return classify(op, id.String(), err)
		}

		qty := inv.QtyByProduct()
		ids := make([]string, 0, len(qty))
		for pid := range qty {
			ids = append(ids, pid)
		}
		products, err := s.products.LockTx(ctx, tx, uniqueSorted(ids))
		if err != nil {
			return classify(op, "", err)
		}
		for pid := range qty {
			if _, ok := products[pid]; !ok {
				s.log.Warn().Str("product", pid).Int("number", inv.Number).Msg("product no longer exists; stock not restored")
				delete(qty, pid)
			}
		}

		reason := fmt.Sprintf("invoice #%d deleted", inv.Number)
		if _, err := s.stock.ApplyTx(ctx, tx, comp, s.stockChanges(inv, qty, 1, reason, user), false); err != nil {
			return err
		}
		if err := s.invoices.DeleteTx(ctx, tx, id); err != nil {
			return classify(op, id.String(), err)
		}
		s.log.Info().Int("number", inv.Number).Str("user", user).Msg("invoice deleted, stock restored")
		return nil
	})
}

// ── Queries ──────────────────────────────────────────────────────────────────

func (s *invoiceService) Get(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	inv, err := s.invoices.FindByID(ctx, id)
	if err != nil {
		return nil, classify("GetInvoice", id.String(), err)
	}
	return inv, nil
}

func (s *invoiceService) List(ctx context.Context, filter repository.InvoiceFilter) ([]model.Invoice, int64, error) {
	invoices, total, err := s.invoices.List(ctx, filter)
	if err != nil {
		return nil, 0, classify("ListInvoices", "", err)
	}
	return invoices, total, nil
}

func (s *invoiceService) ComputeTotals(ctx context.Context, req dto.TotalsRequest) (money.Totals, error) {
	const op = "ComputeTotals"
	if !req.Rate.IsPositive() {
		return money.Totals{}, validationErr(op, "rate must be positive")
	}
	t, err := parseTerms(op, req.Discount, req.TaxPct, "", nil, 0)
	if err != nil {
		return money.Totals{}, err
	}

	lines := make([]money.Line, 0, len(req.Lines))
	for _, l := range req.Lines {
		if l.Qty < 1 {
			return money.Totals{}, newErr(op, ErrValidation, l.ProductID, "quantity must be at least 1")
		}
		price := decimal.Zero
		if l.UnitPrice != nil {
			price = *l.UnitPrice
		} else {
			p, err := s.products.FindByID(ctx, l.ProductID)
			if err != nil {
				return money.Totals{}, classify(op, l.ProductID, err)
			}
			price = unitPrice(p, l)
		}
		lines = append(lines, money.Line{Qty: l.Qty, UnitPrice: price})
	}
	return money.Compute(lines, t.discount, t.taxPct, req.Rate), nil
}

// ── Repair ───────────────────────────────────────────────────────────────────

func (s *invoiceService) RepairInvoiceTotals(ctx context.Context) (RepairReport, error) {
	const op = "RepairInvoiceTotals"
	var report RepairReport

	ids, err := s.invoices.ListIDs(ctx)
	if err != nil {
		return report, classify(op, "", err)
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		changed, err := s.repairOne(ctx, id)
		if err != nil {
			return report, err
		}
		report.Scanned++
		if changed {
			report.Changed++
		}
	}
	s.log.Info().Int("scanned", report.Scanned).Int("changed", report.Changed).Msg("invoice totals repaired")
	return report, nil
}

func (s *invoiceService) repairOne(ctx context.Context, id uuid.UUID) (bool, error) {
	const op = "RepairInvoiceTotals"

	unlock := s.locks.Invoices()
	defer unlock()

	var changed bool
	err := runTx(ctx, op, s.invoices.DB(), func(tx *gorm.DB, _ *compensator) error {
		inv, err := s.invoices.LockTx(ctx, tx, id)
		if err != nil {
			return classify(op, id.String(), err)
		}
		if changed = rederive(inv); !changed {
			return nil
		}
		s.log.Debug().Int("number", inv.Number).Msg("derived fields differed")
		return classify(op, id.String(), s.invoices.UpdateTx(ctx, tx, inv))
	})
	return changed, err
}

// stockChanges turns per-product quantities into stock changes; sign is −1
// for quantities leaving the shelf and +1 for signed deltas as given.
func (s *invoiceService) stockChanges(inv *model.Invoice, qty map[string]int, sign int, reason, user string) []StockChange {
	ids := make([]string, 0, len(qty))
	for pid, q := range qty {
		if q != 0 {
			ids = append(ids, pid)
		}
	}
	sort.Strings(ids)

	ref := inv.ID
	changes := make([]StockChange, 0, len(ids))
	for _, pid := range ids {
		changes = append(changes, StockChange{
			ProductID:   pid,
			Delta:       sign * qty[pid],
			Reason:      reason,
			User:        user,
			Note:        fmt.Sprintf("Invoice #%d", inv.Number),
			ReferenceID: &ref,
		})
	}
	return changes
}

func lineProductIDs(lines []dto.LineRequest) []string {
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	return uniqueSorted(ids)
}
