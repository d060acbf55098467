package service

import (
	"context"
	"fmt"
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

type QuotationOptions struct {
	DefaultCreditDays   int
	DefaultValidityDays int
	FallbackRate        decimal.Decimal
	Now                 func() time.Time
}

// InvoiceDraft is an unsaved invoice built from a quotation. Invoice.Number
// is zero; the caller assigns one when it persists the draft.
type InvoiceDraft struct {
	SourceQuotation string
	Expired         bool
	Invoice         model.Invoice
}

// QuotationService stores quotations. Quotations never move stock.
type QuotationService interface {
	Create(ctx context.Context, user string, req dto.QuotationRequest) (*model.Quotation, error)
	Get(ctx context.Context, number string) (*model.Quotation, error)
	List(ctx context.Context, customerID string, page repository.Page) ([]model.Quotation, int64, error)
	Delete(ctx context.Context, number string) error
	// Convert loads the quotation and returns it as a draft invoice.
	Convert(ctx context.Context, number string) (*InvoiceDraft, error)
}

type quotationService struct {
	quotations repository.QuotationRepository
	products   repository.ProductRepository
	customers  repository.CustomerRepository
	rates      ExchangeRateService
	opts       QuotationOptions
	log        zerolog.Logger
}

func NewQuotationService(
	quotations repository.QuotationRepository,
	products repository.ProductRepository,
	customers repository.CustomerRepository,
	rates ExchangeRateService,
	opts QuotationOptions,
) QuotationService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.DefaultValidityDays <= 0 {
		opts.DefaultValidityDays = 3
	}
	return &quotationService{
		quotations: quotations,
		products:   products,
		customers:  customers,
		rates:      rates,
		opts:       opts,
		log:        logger.WithComponent("quotation"),
	}
}

// FormatQuotationNumber zero-pads the counter to four digits; larger values
// simply grow wider.
func FormatQuotationNumber(n int64) string {
	return fmt.Sprintf("%04d", n)
}

func (s *quotationService) Create(ctx context.Context, user string, req dto.QuotationRequest) (*model.Quotation, error) {
	const op = "CreateQuotation"

	if err := validateLines(op, req.Lines); err != nil {
		return nil, err
	}
	t, err := parseTerms(op, req.Discount, req.TaxPct, req.Condition, req.CreditDays, s.opts.DefaultCreditDays)
	if err != nil {
		return nil, err
	}
	validity := s.opts.DefaultValidityDays
	if req.ValidityDays != nil {
		validity = *req.ValidityDays
	}
	if validity < 1 {
		return nil, validationErr(op, "validity must be at least one day")
	}
	rate, err := resolveRate(ctx, op, s.rates, s.opts.FallbackRate, req.Rate, s.log)
	if err != nil {
		return nil, err
	}

	customer, err := s.customers.FindByID(ctx, req.CustomerID)
	if err != nil {
		return nil, classify(op, req.CustomerID, err)
	}

	issuedAt := s.opts.Now().UTC()
	q := &model.Quotation{
		IssuedAt:      issuedAt,
		CustomerID:    customer.ID,
		Condition:     t.condition,
		CreditDays:    t.creditDays,
		Rate:          rate,
		DiscountValue: t.discount.Value,
		DiscountType:  t.discount.Type,
		TaxPct:        t.taxPct,
		ValidityDays:  validity,
		ExpiresAt:     issuedAt.AddDate(0, 0, validity),
		Notes:         req.Notes,
		CreatedBy:     user,
	}
	for i, l := range req.Lines {
		p, err := s.products.FindByID(ctx, l.ProductID)
		if err != nil {
			return nil, classify(op, l.ProductID, err)
		}
		q.Lines = append(q.Lines, model.QuotationLine{
			ID:        uuid.New(),
			ProductID: l.ProductID,
			Qty:       l.Qty,
			UnitPrice: unitPrice(p, l),
			Position:  i,
		})
	}
	q.RoundInputs()
	q.Totals = money.Compute(
		q.MoneyLines(),
		money.Discount{Value: q.DiscountValue, Type: q.DiscountType},
		q.TaxPct,
		q.Rate,
	).Stored(q.Rate)

	err = runTx(ctx, op, s.quotations.DB(), func(tx *gorm.DB, _ *compensator) error {
		n, err := s.quotations.NextNumber(ctx, tx)
		if err != nil {
			return classify(op, "", err)
		}
		q.Number = FormatQuotationNumber(n)
		for i := range q.Lines {
			q.Lines[i].QuotationNumber = q.Number
		}
		return classify(op, q.Number, s.quotations.Create(ctx, tx, q))
	})
	if err != nil {
		return nil, err
	}

	q.Customer = customer
	s.log.Info().Str("number", q.Number).Str("customer", q.CustomerID).Str("total", q.Total.String()).Msg("quotation created")
	return q, nil
}

func (s *quotationService) Get(ctx context.Context, number string) (*model.Quotation, error) {
	q, err := s.quotations.FindByNumber(ctx, number)
	if err != nil {
		return nil, classify("GetQuotation", number, err)
	}
	return q, nil
}

func (s *quotationService) List(ctx context.Context, customerID string, page repository.Page) ([]model.Quotation, int64, error) {
	out, total, err := s.quotations.List(ctx, customerID, page)
	if err != nil {
		return nil, 0, classify("ListQuotations", customerID, err)
	}
	return out, total, nil
}

func (s *quotationService) Delete(ctx context.Context, number string) error {
	return classify("DeleteQuotation", number, s.quotations.Delete(ctx, number))
}

func (s *quotationService) Convert(ctx context.Context, number string) (*InvoiceDraft, error) {
	q, err := s.Get(ctx, number)
	if err != nil {
		return nil, err
	}
	draft := ToDraftInvoice(q, s.opts.Now())
	if draft.Expired {
		s.log.Warn().Str("number", number).Time("expired_at", q.ExpiresAt).Msg("converting an expired quotation")
	}
	return &draft, nil
}

// ToDraftInvoice copies the quotation's customer, lines, terms and rate
// snapshot into an unsaved pending invoice with no payments. It has no side
// effects.
func ToDraftInvoice(q *model.Quotation, now time.Time) InvoiceDraft {
	inv := model.Invoice{
		IssuedAt:      now.UTC(),
		CustomerID:    q.CustomerID,
		Condition:     q.Condition,
		CreditDays:    q.CreditDays,
		Rate:          q.Rate,
		DiscountValue: q.DiscountValue,
		DiscountType:  q.DiscountType,
		TaxPct:        q.TaxPct,
		Customer:      q.Customer,
		Lines:         make([]model.InvoiceLine, 0, len(q.Lines)),
		Payments:      []model.Payment{},
	}
	if q.Condition == model.ConditionCredit {
		due := inv.IssuedAt.AddDate(0, 0, q.CreditDays)
		inv.DueDate = &due
	}
	for _, l := range q.Lines {
		inv.Lines = append(inv.Lines, model.InvoiceLine{
			ProductID: l.ProductID,
			Qty:       l.Qty,
			UnitPrice: l.UnitPrice,
			Position:  l.Position,
		})
	}
	rederive(&inv)
	inv.State = model.StatePending

	return InvoiceDraft{
		SourceQuotation: q.Number,
		Expired:         q.Expired(now),
		Invoice:         inv,
	}
}
