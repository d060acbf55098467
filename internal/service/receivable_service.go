package service

import (
	"context"
	"sort"
	"time"

	"bodega/internal/logger"
	"bodega/internal/model"
	"bodega/internal/money"
	"bodega/internal/repository"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const topDebtorsLimit = 5

type Debtor struct {
	CustomerID   string
	CustomerName string
	Invoices     int
	Balance      decimal.Decimal
}

// Receivables is the accounts-receivable snapshot. OutstandingSecondary uses
// the current rate, not the per-invoice snapshots.
type Receivables struct {
	Invoices             []model.Invoice
	Outstanding          decimal.Decimal
	OutstandingSecondary decimal.Decimal
	Rate                 decimal.Decimal
	RateStale            bool
	Debtors              int
	AveragePerInvoice    decimal.Decimal
	Overdue              int
	TopDebtors           []Debtor
}

type ReceivablesService interface {
	Summary(ctx context.Context) (*Receivables, error)
}

type receivablesService struct {
	invoices repository.InvoiceRepository
	rates    ExchangeRateService
	fallback decimal.Decimal
	now      func() time.Time
	log      zerolog.Logger
}

func NewReceivablesService(invoices repository.InvoiceRepository, rates ExchangeRateService, fallback decimal.Decimal) ReceivablesService {
	return &receivablesService{
		invoices: invoices,
		rates:    rates,
		fallback: fallback,
		now:      time.Now,
		log:      logger.WithComponent("receivables"),
	}
}

func (s *receivablesService) Summary(ctx context.Context) (*Receivables, error) {
	pending, err := s.invoices.ListOutstanding(ctx)
	if err != nil {
		return nil, classify("Receivables", "", err)
	}

	r := &Receivables{Invoices: pending, Outstanding: decimal.Zero, AveragePerInvoice: decimal.Zero}

	rate, stale := s.fallback, true
	if s.rates != nil {
		if cur, st, err := s.rates.CurrentRate(ctx); err == nil {
			rate, stale = cur, st
		} else {
			s.log.Warn().Err(err).Str("fallback", s.fallback.String()).Msg("receivables priced with fallback rate")
		}
	}
	r.Rate, r.RateStale = rate, stale

	now := s.now()
	byCustomer := make(map[string]*Debtor)
	for i := range pending {
		inv := &pending[i]
		r.Outstanding = r.Outstanding.Add(inv.Balance)
		if inv.Condition == model.ConditionCredit && inv.DueDate != nil && now.After(*inv.DueDate) {
			r.Overdue++
		}
		d, ok := byCustomer[inv.CustomerID]
		if !ok {
			d = &Debtor{CustomerID: inv.CustomerID, Balance: decimal.Zero}
			if inv.Customer != nil {
				d.CustomerName = inv.Customer.Name
			}
			byCustomer[inv.CustomerID] = d
		}
		d.Invoices++
		d.Balance = d.Balance.Add(inv.Balance)
	}

	r.OutstandingSecondary = money.ToSecondary(r.Outstanding, rate)
	r.Debtors = len(byCustomer)
	if len(pending) > 0 {
		r.AveragePerInvoice = r.Outstanding.Div(decimal.NewFromInt(int64(len(pending)))).Round(2)
	}

	debtors := make([]Debtor, 0, len(byCustomer))
	for _, d := range byCustomer {
		debtors = append(debtors, *d)
	}
	sort.Slice(debtors, func(i, j int) bool {
		if c := debtors[i].Balance.Cmp(debtors[j].Balance); c != 0 {
			return c > 0
		}
		return debtors[i].CustomerID < debtors[j].CustomerID
	})
	if len(debtors) > topDebtorsLimit {
		debtors = debtors[:topDebtorsLimit]
	}
	r.TopDebtors = debtors
	return r, nil
}
