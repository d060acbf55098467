package service_test

import (
	"context"
	"testing"

	"bodega/internal/dto"
	"bodega/internal/model"
	"bodega/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterPayment_InvalidAmount(t *testing.T) {
	env, inv := scenarioA(t)

	for _, amt := range []string{"0", "-5"} {
		_, _, err := env.payments.RegisterPayment(context.Background(), "maria", inv.ID, dto.PaymentRequest{
			Amount: d(amt), Currency: "USD", Method: "cash",
		})
		assert.ErrorIs(t, err, service.ErrInvalidAmount)
		assert.ErrorIs(t, err, service.ErrValidation, "invalid amount is a validation kind")
	}
	assert.Empty(t, env.invoiceRepo.stored(t, inv.ID).Payments)
}

func TestRegisterPayment_UnknownInvoice(t *testing.T) {
	env := newLedgerEnv(t)

	_, _, err := env.payments.RegisterPayment(context.Background(), "maria", uuid.New(), dto.PaymentRequest{
		Amount: d("1"), Currency: "USD", Method: "cash",
	})
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestRegisterPayment_UsesInvoiceRateNotLive(t *testing.T) {
	env, inv := scenarioA(t)
	env.fetcher.rate = d("72.00")

	pay, _, err := env.payments.RegisterPayment(context.Background(), "maria", inv.ID, dto.PaymentRequest{
		Amount: d("720"), Currency: "VES", Method: "mobile",
	})
	require.NoError(t, err)
	assertDec(t, "20", pay.Amount, "amount")
	assertDec(t, "36", pay.Rate, "rate")
}

func TestRegisterPayment_Overpayment(t *testing.T) {
	env, inv := scenarioA(t)

	_, after, err := env.payments.RegisterPayment(context.Background(), "maria", inv.ID, dto.PaymentRequest{
		Amount: d("25"), Currency: "USD", Method: "cash",
	})
	require.NoError(t, err)
	assertDec(t, "0", after.Balance, "balance")
	assertDec(t, "5", after.Overpayment, "overpayment")
	assert.Equal(t, model.StatePaid, after.State)
}

func TestRemovePayment_PaidBackToPending(t *testing.T) {
	env, inv := scenarioA(t)
	ctx := context.Background()

	ves, _, err := env.payments.RegisterPayment(ctx, "maria", inv.ID, dto.PaymentRequest{Amount: d("360"), Currency: "VES", Method: "transfer"})
	require.NoError(t, err)
	_, after, err := env.payments.RegisterPayment(ctx, "maria", inv.ID, dto.PaymentRequest{Amount: d("10"), Currency: "USD", Method: "cash"})
	require.NoError(t, err)
	require.Equal(t, model.StatePaid, after.State)

	after, err = env.payments.RemovePayment(ctx, "maria", inv.ID, ves.ID)
	require.NoError(t, err)
	assertDec(t, "10", after.TotalPaid, "total paid")
	assertDec(t, "10", after.Balance, "balance")
	assert.Equal(t, model.StatePending, after.State)

	stored := env.invoiceRepo.stored(t, inv.ID)
	require.Len(t, stored.Payments, 1)
	assertDec(t, "10", stored.Balance, "stored balance")
}

func TestRemovePayment_NotFound(t *testing.T) {
	env, inv := scenarioA(t)

	_, err := env.payments.RemovePayment(context.Background(), "maria", inv.ID, uuid.New())
	assert.ErrorIs(t, err, service.ErrNotFound)

	_, err = env.payments.RemovePayment(context.Background(), "maria", uuid.New(), uuid.New())
	assert.ErrorIs(t, err, service.ErrNotFound)
}
