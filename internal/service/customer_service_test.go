package service_test

import (
	"context"
	"testing"

	"bodega/internal/dto"
	"bodega/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct{ in, want string }{
		{"0414-123 4567", "+584141234567"},
		{"414 1234567", "+584141234567"},
		{"+1 (305) 555-0100", "+13055550100"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, service.NormalizePhone(tc.in, "+58"), tc.in)
	}
}

func TestCreateCustomer(t *testing.T) {
	env := newLedgerEnv(t)

	c, err := env.customerS.Create(context.Background(), dto.CreateCustomerRequest{
		TypeCode: "j", Number: "409876543", Name: " Distribuidora El Sol ", Phone: "0212-5550000",
	})
	require.NoError(t, err)
	assert.Equal(t, "J-409876543", c.ID)
	assert.Equal(t, "Distribuidora El Sol", c.Name)
	assert.Equal(t, "+582125550000", c.Phone)

	_, err = env.customerS.Create(context.Background(), dto.CreateCustomerRequest{
		TypeCode: "J", Number: "409876543", Name: "Otra",
	})
	assert.ErrorIs(t, err, service.ErrValidation)
}

func TestCreateCustomer_RejectsBadIdentity(t *testing.T) {
	env := newLedgerEnv(t)

	for _, req := range []dto.CreateCustomerRequest{
		{TypeCode: "V", Number: "12.345.678", Name: "Ana"},
		{TypeCode: "V", Number: "", Name: "Ana"},
		{TypeCode: "X", Number: "123", Name: "Ana"},
	} {
		_, err := env.customerS.Create(context.Background(), req)
		assert.ErrorIs(t, err, service.ErrValidation, "%+v", req)
	}
}

func TestDeleteCustomer_GuardedByInvoices(t *testing.T) {
	env := newLedgerEnv(t)
	env.products.put("P001", "10.00", 5)

	_, err := env.invoices.Create(context.Background(), "maria", invoiceReq(line("P001", 1)))
	require.NoError(t, err)

	err = env.customerS.Delete(context.Background(), "V-12345678")
	assert.ErrorIs(t, err, service.ErrValidation)

	assert.ErrorIs(t, env.customerS.Delete(context.Background(), "V-1"), service.ErrNotFound)
}

func TestUpdateCustomer(t *testing.T) {
	env := newLedgerEnv(t)

	phone := "0424 000 1111"
	c, err := env.customerS.Update(context.Background(), "V-12345678", dto.UpdateCustomerRequest{Phone: &phone})
	require.NoError(t, err)
	assert.Equal(t, "+584240001111", c.Phone)
	assert.Equal(t, "Ana Pérez", c.Name)

	_, err = env.customerS.Update(context.Background(), "V-0", dto.UpdateCustomerRequest{})
	assert.ErrorIs(t, err, service.ErrNotFound)
}
