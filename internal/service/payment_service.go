package service

import (
	"context"
	"errors"
	"time"

	"bodega/internal/dto"
	"bodega/internal/logger"
	"bodega/internal/model"
	"bodega/internal/money"
	"bodega/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// PaymentService is the payment ledger. Payments never touch stock, so only
// the invoice lock is taken.
type PaymentService interface {
	// RegisterPayment converts secondary-currency amounts with the invoice's
	// own rate snapshot, never the live one.
	RegisterPayment(ctx context.Context, user string, invoiceID uuid.UUID, req dto.PaymentRequest) (*model.Payment, *model.Invoice, error)
	RemovePayment(ctx context.Context, user string, invoiceID, paymentID uuid.UUID) (*model.Invoice, error)
}

type paymentService struct {
	invoices repository.InvoiceRepository
	locks    *Locks
	now      func() time.Time
	log      zerolog.Logger
}

func NewPaymentService(invoices repository.InvoiceRepository, locks *Locks) PaymentService {
	return &paymentService{
		invoices: invoices,
		locks:    locks,
		now:      time.Now,
		log:      logger.WithComponent("payment"),
	}
}

func (s *paymentService) RegisterPayment(
	ctx context.Context,
	user string,
	invoiceID uuid.UUID,
	req dto.PaymentRequest,
) (*model.Payment, *model.Invoice, error) {
	const op = "RegisterPayment"

	if !req.Amount.IsPositive() {
		return nil, nil, &LedgerError{Op: op, Kind: ErrInvalidAmount, Subject: invoiceID.String(), Details: "amount must be greater than zero"}
	}
	currency := model.Currency(req.Currency)
	if currency == "" {
		currency = model.CurrencyPrimary
	}
	if currency != model.CurrencyPrimary && currency != model.CurrencySecondary {
		return nil, nil, validationErr(op, "unknown currency "+req.Currency)
	}
	if req.Method == "" {
		return nil, nil, validationErr(op, "payment method is required")
	}

	unlock := s.locks.Invoices()
	defer unlock()

	var (
		inv *model.Invoice
		pay *model.Payment
	)
	err := runTx(ctx, op, s.invoices.DB(), func(tx *gorm.DB, comp *compensator) error {
		var err error
		inv, err = s.invoices.LockTx(ctx, tx, invoiceID)
		if err != nil {
			return classify(op, invoiceID.String(), err)
		}

		entered := req.Amount.Round(money.StoragePlaces)
		amount := entered
		if currency == model.CurrencySecondary {
			if !inv.Rate.IsPositive() {
				return newErr(op, ErrValidation, invoiceID.String(), "invoice has no rate to convert with")
			}
			amount = money.ToPrimary(entered, inv.Rate).Round(money.StoragePlaces)
		}
		if !amount.IsPositive() {
			return &LedgerError{Op: op, Kind: ErrInvalidAmount, Subject: invoiceID.String(), Details: "amount rounds to zero"}
		}

		paidAt := s.now().UTC()
		if req.PaidAt != nil {
			paidAt = req.PaidAt.UTC()
		}
		pay = &model.Payment{
			ID:            uuid.New(),
			InvoiceID:     inv.ID,
			Amount:        amount,
			Currency:      currency,
			EnteredAmount: entered,
			Rate:          inv.Rate,
			Method:        req.Method,
			Reference:     req.Reference,
			Bank:          req.Bank,
			ReceiptPath:   req.ReceiptPath,
			PaidAt:        paidAt,
		}
		if err := s.invoices.AddPaymentTx(ctx, tx, pay); err != nil {
			return classify(op, invoiceID.String(), err)
		}
		payID := pay.ID
		comp.push(func() error { return s.invoices.DeletePaymentTx(ctx, nil, invoiceID, payID) })

		inv.Payments = append(inv.Payments, *pay)
		rederive(inv)
		return classify(op, invoiceID.String(), s.invoices.UpdateTx(ctx, tx, inv))
	})
	if err != nil {
		return nil, nil, err
	}

	ev := s.log.Info().
		Int("number", inv.Number).
		Str("amount", pay.Amount.String()).
		Str("currency", string(pay.Currency)).
		Str("balance", inv.Balance.String()).
		Str("state", string(inv.State)).
		Str("user", user)
	if inv.Overpayment.IsPositive() {
		ev = ev.Str("overpayment", inv.Overpayment.String())
	}
	ev.Msg("payment registered")
	return pay, inv, nil
}

// RemovePayment subtracts the stored primary amount. That amount is already
// the result of the registration-time conversion, so nothing is converted
// again here.
func (s *paymentService) RemovePayment(ctx context.Context, user string, invoiceID, paymentID uuid.UUID) (*model.Invoice, error) {
	const op = "RemovePayment"

	unlock := s.locks.Invoices()
	defer unlock()

	var inv *model.Invoice
	err := runTx(ctx, op, s.invoices.DB(), func(tx *gorm.DB, comp *compensator) error {
		var err error
		inv, err = s.invoices.LockTx(ctx, tx, invoiceID)
		if err != nil {
			return classify(op, invoiceID.String(), err)
		}

		idx := -1
		for i := range inv.Payments {
			if inv.Payments[i].ID == paymentID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return notFound(op, paymentID.String())
		}
		removed := inv.Payments[idx]

		if err := s.invoices.DeletePaymentTx(ctx, tx, invoiceID, paymentID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound(op, paymentID.String())
			}
			return classify(op, paymentID.String(), err)
		}
		comp.push(func() error { return s.invoices.AddPaymentTx(ctx, nil, &removed) })

		inv.Payments = append(inv.Payments[:idx:idx], inv.Payments[idx+1:]...)
		rederive(inv)
		return classify(op, invoiceID.String(), s.invoices.UpdateTx(ctx, tx, inv))
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int("number", inv.Number).
		Str("payment", paymentID.String()).
		Str("balance", inv.Balance.String()).
		Str("state", string(inv.State)).
		Str("user", user).
		Msg("payment removed")
	return inv, nil
}
