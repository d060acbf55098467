package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"bodega/internal/dto"
	"bodega/internal/handler"
	"bodega/internal/infra"
	"bodega/internal/middleware"
	"bodega/internal/model"
	"bodega/internal/money"
	"bodega/internal/repository"
	"bodega/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── Fakes ─────────────────────────────────────────────────────────────────────

type auditCall struct{ user, action, detail string }

type recordingAuditor struct {
	mu    sync.Mutex
	calls []auditCall
}

func (a *recordingAuditor) EnqueueAudit(_ context.Context, user, action, detail string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, auditCall{user, action, detail})
	return nil
}

type fakeInvoices struct {
	inv     *model.Invoice
	err     error
	lastReq dto.InvoiceRequest
	user    string
}

var _ service.InvoiceService = (*fakeInvoices)(nil)

func (f *fakeInvoices) Create(_ context.Context, user string, req dto.InvoiceRequest) (*model.Invoice, error) {
	f.user, f.lastReq = user, req
	return f.inv, f.err
}

func (f *fakeInvoices) Edit(_ context.Context, user string, _ uuid.UUID, req dto.InvoiceRequest) (*model.Invoice, error) {
	f.user, f.lastReq = user, req
	return f.inv, f.err
}

func (f *fakeInvoices) Delete(context.Context, string, uuid.UUID) error { return f.err }

func (f *fakeInvoices) Get(_ context.Context, id uuid.UUID) (*model.Invoice, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.inv, nil
}

func (f *fakeInvoices) List(context.Context, repository.InvoiceFilter) ([]model.Invoice, int64, error) {
	if f.inv == nil {
		return nil, 0, f.err
	}
	return []model.Invoice{*f.inv}, 1, f.err
}

func (f *fakeInvoices) ComputeTotals(_ context.Context, req dto.TotalsRequest) (money.Totals, error) {
	lines := make([]money.Line, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, money.Line{Qty: l.Qty, UnitPrice: *l.UnitPrice})
	}
	return money.Compute(lines, money.Discount{Value: req.Discount.Value, Type: money.DiscountType(req.Discount.Type)}, req.TaxPct, req.Rate), f.err
}

func (f *fakeInvoices) RepairInvoiceTotals(context.Context) (service.RepairReport, error) {
	return service.RepairReport{Scanned: 4, Changed: 1}, f.err
}

type fakePayments struct {
	inv *model.Invoice
	err error
}

func (f *fakePayments) RegisterPayment(_ context.Context, _ string, _ uuid.UUID, req dto.PaymentRequest) (*model.Payment, *model.Invoice, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	p := model.Payment{ID: uuid.New(), InvoiceID: f.inv.ID, Amount: req.Amount, EnteredAmount: req.Amount, Currency: model.Currency(req.Currency), Method: req.Method}
	f.inv.Payments = append(f.inv.Payments, p)
	return &p, f.inv, nil
}

func (f *fakePayments) RemovePayment(context.Context, string, uuid.UUID, uuid.UUID) (*model.Invoice, error) {
	return f.inv, f.err
}

type fakeRates struct {
	quote *service.RateQuote
	err   error
}

func (f *fakeRates) CurrentRate(context.Context) (decimal.Decimal, bool, error) {
	if f.err != nil {
		return decimal.Zero, false, f.err
	}
	return f.quote.Rate, f.quote.Stale, nil
}

func (f *fakeRates) Quote(context.Context) (*service.RateQuote, error)  { return f.quote, f.err }
func (f *fakeRates) Cached(context.Context) (*service.RateQuote, error) { return f.quote, f.err }
func (f *fakeRates) Breaker() *infra.RateBreaker {
	return infra.NewRateBreaker(infra.DefaultBreakerConfig())
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func testRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Actor())
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.UserHeader, "maria")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func sampleInvoice() *model.Invoice {
	inv := &model.Invoice{
		ID:         uuid.New(),
		Number:     12,
		IssuedAt:   time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
		CustomerID: "V-12345678",
		Condition:  model.ConditionCash,
		Rate:       decimal.RequireFromString("36"),
		Lines: []model.InvoiceLine{
			{ProductID: "P001", Qty: 2, UnitPrice: decimal.RequireFromString("10")},
		},
		State: model.StatePending,
	}
	inv.Totals = money.Compute(inv.MoneyLines(), money.Discount{Type: money.DiscountPercentage}, decimal.Zero, inv.Rate)
	inv.Balance = inv.Total
	return inv
}

// ── Tests ─────────────────────────────────────────────────────────────────────

func TestCreateInvoice_Created(t *testing.T) {
	inv := sampleInvoice()
	svc := &fakeInvoices{inv: inv}
	audit := &recordingAuditor{}
	h := handler.NewInvoicesHandler(svc, &fakePayments{}, audit)
	r := testRouter()
	r.POST("/v1/invoices", h.Create)

	w := doJSON(t, r, http.MethodPost, "/v1/invoices", map[string]any{
		"customer_id": "V-12345678",
		"lines":       []map[string]any{{"product_id": "P001", "qty": 2}},
	})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp dto.InvoiceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 12, resp.Number)
	assert.True(t, decimal.RequireFromString("20").Equal(resp.Totals.Total))
	assert.True(t, decimal.RequireFromString("720").Equal(resp.Totals.TotalSecondary))
	assert.Equal(t, "maria", svc.user)

	require.Len(t, audit.calls, 1)
	assert.Equal(t, "invoice.create", audit.calls[0].action)
	assert.Equal(t, "maria", audit.calls[0].user)
}

func TestCreateInvoice_ValidationFailsBeforeService(t *testing.T) {
	svc := &fakeInvoices{}
	audit := &recordingAuditor{}
	h := handler.NewInvoicesHandler(svc, &fakePayments{}, audit)
	r := testRouter()
	r.POST("/v1/invoices", h.Create)

	w := doJSON(t, r, http.MethodPost, "/v1/invoices", map[string]any{
		"customer_id": "V-12345678",
		"lines":       []map[string]any{{"product_id": "P001", "qty": 0}},
	})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "Qty")
	assert.Empty(t, svc.user)
	assert.Empty(t, audit.calls)
}

func TestCreateInvoice_InsufficientStockIsConflict(t *testing.T) {
	svc := &fakeInvoices{err: &service.LedgerError{
		Op: "invoice.create", Kind: service.ErrInsufficientStock, Subject: "P001", Details: "P001 has 1, needs 2",
	}}
	audit := &recordingAuditor{}
	h := handler.NewInvoicesHandler(svc, &fakePayments{}, audit)
	r := testRouter()
	r.POST("/v1/invoices", h.Create)

	w := doJSON(t, r, http.MethodPost, "/v1/invoices", map[string]any{
		"customer_id": "V-12345678",
		"lines":       []map[string]any{{"product_id": "P001", "qty": 2}},
	})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "P001")
	assert.Contains(t, w.Body.String(), `"kind":"insufficient_stock"`)
	assert.Empty(t, audit.calls)
}

func TestGetInvoice_BadIDAndNotFound(t *testing.T) {
	svc := &fakeInvoices{err: &service.LedgerError{Op: "invoice.get", Kind: service.ErrNotFound}}
	h := handler.NewInvoicesHandler(svc, &fakePayments{}, nil)
	r := testRouter()
	r.GET("/v1/invoices/:id", h.Get)

	assert.Equal(t, http.StatusBadRequest, doJSON(t, r, http.MethodGet, "/v1/invoices/not-a-uuid", nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, r, http.MethodGet, "/v1/invoices/"+uuid.NewString(), nil).Code)
}

func TestRegisterPayment(t *testing.T) {
	inv := sampleInvoice()
	audit := &recordingAuditor{}
	h := handler.NewInvoicesHandler(&fakeInvoices{}, &fakePayments{inv: inv}, audit)
	r := testRouter()
	r.POST("/v1/invoices/:id/payments", h.RegisterPayment)

	w := doJSON(t, r, http.MethodPost, "/v1/invoices/"+inv.ID.String()+"/payments", map[string]any{
		"amount": "360", "currency": "VES", "method": "transfer",
	})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		Payment dto.PaymentResponse `json:"payment"`
		Invoice dto.InvoiceResponse `json:"invoice"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "VES", resp.Payment.Currency)
	assert.Len(t, resp.Invoice.Payments, 1)
	require.Len(t, audit.calls, 1)
	assert.Equal(t, "payment.register", audit.calls[0].action)
}

func TestRegisterPayment_InvalidAmount(t *testing.T) {
	h := handler.NewInvoicesHandler(&fakeInvoices{}, &fakePayments{err: &service.LedgerError{
		Op: "payment.register", Kind: service.ErrInvalidAmount,
	}}, nil)
	r := testRouter()
	r.POST("/v1/invoices/:id/payments", h.RegisterPayment)

	w := doJSON(t, r, http.MethodPost, "/v1/invoices/"+uuid.NewString()+"/payments", map[string]any{
		"amount": "0", "currency": "USD", "method": "cash",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), `"kind":"invalid_amount"`)
}

func TestRepair(t *testing.T) {
	h := handler.NewInvoicesHandler(&fakeInvoices{}, &fakePayments{}, nil)
	r := testRouter()
	r.POST("/v1/invoices/repair", h.Repair)

	w := doJSON(t, r, http.MethodPost, "/v1/invoices/repair", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"scanned":4,"changed":1}`, w.Body.String())
}

func TestRate_StaleAndUnavailable(t *testing.T) {
	fetched := time.Date(2025, 3, 9, 8, 0, 0, 0, time.UTC)
	retry := fetched.Add(26 * time.Hour)
	rates := &fakeRates{quote: &service.RateQuote{
		Rate:        decimal.RequireFromString("36.5"),
		Stale:       true,
		FetchedAt:   fetched,
		Source:      "stub",
		SourceState: "open",
		StaleReason: "rate source suspended",
		RetryAt:     &retry,
	}}
	audit := &recordingAuditor{}
	h := handler.NewRateHandler(rates, &fakeInvoices{}, audit)
	r := testRouter()
	r.GET("/v1/rate", h.Get)
	r.POST("/v1/rate/refresh", h.Refresh)

	w := doJSON(t, r, http.MethodGet, "/v1/rate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.RateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Stale)
	assert.Equal(t, "2025-03-09T08:00:00Z", resp.FetchedAt)
	assert.Equal(t, "open", resp.SourceState)
	assert.Equal(t, "rate source suspended", resp.StaleReason)
	assert.Equal(t, "2025-03-10T10:00:00Z", resp.RetryAt)

	// A stale refresh is not a refresh.
	w = doJSON(t, r, http.MethodPost, "/v1/rate/refresh", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, audit.calls)

	rates.quote, rates.err = nil, &service.LedgerError{Op: "CurrentRate", Kind: service.ErrExternalService}
	w = doJSON(t, r, http.MethodGet, "/v1/rate", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestTotals(t *testing.T) {
	h := handler.NewRateHandler(&fakeRates{}, &fakeInvoices{}, nil)
	r := testRouter()
	r.POST("/v1/totals", h.Totals)

	w := doJSON(t, r, http.MethodPost, "/v1/totals", map[string]any{
		"lines":    []map[string]any{{"product_id": "P001", "qty": 3, "unit_price": "10"}},
		"discount": map[string]any{"value": "10", "type": "percentage"},
		"tax_pct":  "16",
		"rate":     "36",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp dto.TotalsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, decimal.RequireFromString("31.32").Equal(resp.Total), resp.Total.String())

	w = doJSON(t, r, http.MethodPost, "/v1/totals", map[string]any{"rate": "0"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestAdjustStock_RequiresReason(t *testing.T) {
	h := handler.NewProductsHandler(nil, nil)
	r := testRouter()
	r.PATCH("/v1/products/:id/stock", h.AdjustStock)

	w := doJSON(t, r, http.MethodPatch, "/v1/products/P001/stock", map[string]any{"quantity": 3})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "Reason")
}

func TestActorDefaultsToAnonymous(t *testing.T) {
	r := testRouter()
	r.GET("/whoami", func(c *gin.Context) { c.String(http.StatusOK, middleware.GetUser(c)) })

	req, _ := http.NewRequest(http.MethodGet, "/whoami", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, middleware.AnonymousUser, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
}
