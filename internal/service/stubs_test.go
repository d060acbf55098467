package service_test

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"bodega/internal/infra"
	"bodega/internal/model"
	"bodega/internal/money"
	"bodega/internal/repository"
	"bodega/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// The stubs hand out copies so that a service only changes stored state
// through the repository calls, as it would against Postgres.

// ── Products ─────────────────────────────────────────────────────────────────

type stubProductRepo struct {
	mu       sync.Mutex
	products map[string]*model.Product
	// failStockOn makes UpdateStockTx fail for that product id.
	failStockOn string
}

var _ repository.ProductRepository = (*stubProductRepo)(nil)

func newStubProductRepo() *stubProductRepo {
	return &stubProductRepo{products: make(map[string]*model.Product)}
}

func (r *stubProductRepo) put(id, price string, qty int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[id] = &model.Product{ID: id, Name: "Product " + id, Price: d(price), Quantity: qty}
}

func (r *stubProductRepo) qty(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.products[id].Quantity
}

func (r *stubProductRepo) DB() *gorm.DB { return nil }

func (r *stubProductRepo) CreateTx(_ context.Context, _ *gorm.DB, p *model.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[p.ID]; ok {
		return errors.New("duplicate key")
	}
	cp := *p
	cp.Quantity = 0
	r.products[p.ID] = &cp
	return nil
}

func (r *stubProductRepo) FindByID(_ context.Context, id string) (*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *stubProductRepo) List(_ context.Context, f repository.ProductFilter) ([]model.Product, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Product
	for _, p := range r.products {
		if f.Name != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Name)) {
			continue
		}
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, int64(len(out)), nil
}

func (r *stubProductRepo) Update(_ context.Context, p *model.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.products[p.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored.Name, stored.Category, stored.Price = p.Name, p.Category, p.Price
	stored.DistributorPrice, stored.Image = p.DistributorPrice, p.Image
	return nil
}

func (r *stubProductRepo) LockTx(_ context.Context, _ *gorm.DB, ids []string) (map[string]*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]*model.Product, len(ids))
	for _, id := range ids {
		if p, ok := r.products[id]; ok {
			cp := *p
			out[id] = &cp
		}
	}
	return out, nil
}

func (r *stubProductRepo) UpdateStockTx(_ context.Context, _ *gorm.DB, id string, delta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id == r.failStockOn {
		return errors.New("disk full")
	}
	p, ok := r.products[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.Quantity += delta
	return nil
}

func (r *stubProductRepo) DeleteTx(_ context.Context, _ *gorm.DB, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		delete(r.products, id)
	}
	return nil
}

// ── Stock adjustments ────────────────────────────────────────────────────────

type stubAdjustmentRepo struct {
	mu   sync.Mutex
	rows []model.StockAdjustment
}

var _ repository.StockAdjustmentRepository = (*stubAdjustmentRepo)(nil)

func (r *stubAdjustmentRepo) CreateTx(_ context.Context, _ *gorm.DB, a *model.StockAdjustment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a.CreatedAt = time.Now()
	r.rows = append(r.rows, *a)
	return nil
}

func (r *stubAdjustmentRepo) DeleteTx(_ context.Context, _ *gorm.DB, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rows {
		if r.rows[i].ID == id {
			r.rows = append(r.rows[:i], r.rows[i+1:]...)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *stubAdjustmentRepo) List(_ context.Context, f repository.AdjustmentFilter) ([]model.StockAdjustment, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.StockAdjustment
	for _, a := range r.rows {
		if f.ProductID != "" && a.ProductID != f.ProductID {
			continue
		}
		if f.Kind != "" && a.Kind != f.Kind {
			continue
		}
		if f.User != "" && a.User != f.User {
			continue
		}
		out = append(out, a)
	}
	return out, int64(len(out)), nil
}

func (r *stubAdjustmentRepo) forProduct(id string) []model.StockAdjustment {
	out, _, _ := r.List(context.Background(), repository.AdjustmentFilter{ProductID: id})
	return out
}

func (r *stubAdjustmentRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

// ── Customers ────────────────────────────────────────────────────────────────

type stubCustomerRepo struct {
	mu        sync.Mutex
	customers map[string]*model.Customer
}

var _ repository.CustomerRepository = (*stubCustomerRepo)(nil)

func newStubCustomerRepo() *stubCustomerRepo {
	return &stubCustomerRepo{customers: make(map[string]*model.Customer)}
}

func (r *stubCustomerRepo) Create(_ context.Context, c *model.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.customers[c.ID]; ok {
		return errors.New("duplicate key")
	}
	cp := *c
	r.customers[c.ID] = &cp
	return nil
}

func (r *stubCustomerRepo) FindByID(_ context.Context, id string) (*model.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.customers[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *stubCustomerRepo) List(_ context.Context, search string, _ repository.Page) ([]model.Customer, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Customer
	for _, c := range r.customers {
		if search == "" || strings.Contains(c.Name, search) || strings.Contains(c.ID, search) {
			out = append(out, *c)
		}
	}
	return out, int64(len(out)), nil
}

func (r *stubCustomerRepo) Update(_ context.Context, c *model.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.customers[c.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *c
	r.customers[c.ID] = &cp
	return nil
}

func (r *stubCustomerRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.customers[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.customers, id)
	return nil
}

// ── Invoices ─────────────────────────────────────────────────────────────────

type stubInvoiceRepo struct {
	mu       sync.Mutex
	invoices map[uuid.UUID]*model.Invoice
	seq      int
	// failCreate makes Create fail after stock was already moved.
	failCreate bool
	// updates counts UpdateTx calls.
	updates int
}

var _ repository.InvoiceRepository = (*stubInvoiceRepo)(nil)

func newStubInvoiceRepo() *stubInvoiceRepo {
	return &stubInvoiceRepo{invoices: make(map[uuid.UUID]*model.Invoice)}
}

func cloneInvoice(inv *model.Invoice) *model.Invoice {
	cp := *inv
	cp.Lines = append([]model.InvoiceLine(nil), inv.Lines...)
	cp.Payments = append([]model.Payment(nil), inv.Payments...)
	return &cp
}

// numeric rounds v the way a numeric(p,s) column does on write.
func numeric(v decimal.Decimal, scale int32) decimal.Decimal { return v.Round(scale) }

// persisted returns what Postgres would keep of inv given the column scales.
func persisted(inv *model.Invoice) *model.Invoice {
	cp := cloneInvoice(inv)
	cp.Rate = numeric(cp.Rate, 6)
	cp.DiscountValue = numeric(cp.DiscountValue, 6)
	cp.TaxPct = numeric(cp.TaxPct, 2)
	cp.Totals = money.Totals{
		Subtotal:          numeric(cp.Subtotal, 6),
		SubtotalSecondary: numeric(cp.SubtotalSecondary, 6),
		Discount:          numeric(cp.Discount, 6),
		DiscountSecondary: numeric(cp.DiscountSecondary, 6),
		Tax:               numeric(cp.Tax, 6),
		TaxSecondary:      numeric(cp.TaxSecondary, 6),
		Total:             numeric(cp.Total, 6),
		TotalSecondary:    numeric(cp.TotalSecondary, 6),
	}
	cp.TotalPaid = numeric(cp.TotalPaid, 6)
	cp.Balance = numeric(cp.Balance, 6)
	cp.Overpayment = numeric(cp.Overpayment, 6)
	for i := range cp.Lines {
		cp.Lines[i].UnitPrice = numeric(cp.Lines[i].UnitPrice, 2)
	}
	for i := range cp.Payments {
		cp.Payments[i] = persistedPayment(cp.Payments[i])
	}
	return cp
}

func persistedPayment(p model.Payment) model.Payment {
	p.Amount = numeric(p.Amount, 6)
	p.EnteredAmount = numeric(p.EnteredAmount, 6)
	p.Rate = numeric(p.Rate, 6)
	return p
}

func (r *stubInvoiceRepo) DB() *gorm.DB { return nil }

func (r *stubInvoiceRepo) NextNumber(_ context.Context, _ *gorm.DB) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	return r.seq, nil
}

func (r *stubInvoiceRepo) Create(_ context.Context, _ *gorm.DB, inv *model.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate {
		return errors.New("connection reset")
	}
	for _, other := range r.invoices {
		if other.Number == inv.Number {
			return errors.New("duplicate invoice number")
		}
	}
	cp := persisted(inv)
	cp.Customer = nil
	r.invoices[inv.ID] = cp
	return nil
}

func (r *stubInvoiceRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return cloneInvoice(inv), nil
}

func (r *stubInvoiceRepo) LockTx(ctx context.Context, _ *gorm.DB, id uuid.UUID) (*model.Invoice, error) {
	return r.FindByID(ctx, id)
}

func (r *stubInvoiceRepo) UpdateTx(_ context.Context, _ *gorm.DB, inv *model.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.invoices[inv.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	cp := persisted(inv)
	cp.Lines, cp.Payments, cp.Customer = stored.Lines, stored.Payments, nil
	r.invoices[inv.ID] = cp
	r.updates++
	return nil
}

func (r *stubInvoiceRepo) ReplaceLinesTx(_ context.Context, _ *gorm.DB, inv *model.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.invoices[inv.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored.Lines = persisted(inv).Lines
	return nil
}

func (r *stubInvoiceRepo) DeleteTx(_ context.Context, _ *gorm.DB, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.invoices[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.invoices, id)
	return nil
}

func (r *stubInvoiceRepo) AddPaymentTx(_ context.Context, _ *gorm.DB, p *model.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.invoices[p.InvoiceID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored.Payments = append(stored.Payments, persistedPayment(*p))
	return nil
}

func (r *stubInvoiceRepo) DeletePaymentTx(_ context.Context, _ *gorm.DB, invoiceID, paymentID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.invoices[invoiceID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for i, p := range stored.Payments {
		if p.ID == paymentID {
			stored.Payments = append(stored.Payments[:i:i], stored.Payments[i+1:]...)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *stubInvoiceRepo) sorted() []model.Invoice {
	out := make([]model.Invoice, 0, len(r.invoices))
	for _, inv := range r.invoices {
		out = append(out, *cloneInvoice(inv))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

func (r *stubInvoiceRepo) List(_ context.Context, f repository.InvoiceFilter) ([]model.Invoice, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Invoice
	for _, inv := range r.sorted() {
		if f.State != "" && inv.State != f.State {
			continue
		}
		if f.CustomerID != "" && inv.CustomerID != f.CustomerID {
			continue
		}
		out = append(out, inv)
	}
	return out, int64(len(out)), nil
}

func (r *stubInvoiceRepo) ListIDs(_ context.Context) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []uuid.UUID
	for _, inv := range r.sorted() {
		ids = append(ids, inv.ID)
	}
	return ids, nil
}

func (r *stubInvoiceRepo) ListOutstanding(_ context.Context) ([]model.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Invoice
	for _, inv := range r.sorted() {
		if inv.State == model.StatePending {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (r *stubInvoiceRepo) CountByProducts(_ context.Context, productIDs []string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, inv := range r.invoices {
		for _, l := range inv.Lines {
			if containsString(productIDs, l.ProductID) {
				n++
				break
			}
		}
	}
	return n, nil
}

func (r *stubInvoiceRepo) CountByCustomer(_ context.Context, customerID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, inv := range r.invoices {
		if inv.CustomerID == customerID {
			n++
		}
	}
	return n, nil
}

// stored returns the persisted copy of an invoice.
func (r *stubInvoiceRepo) stored(t *testing.T, id uuid.UUID) *model.Invoice {
	t.Helper()
	inv, err := r.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("invoice %s not stored: %v", id, err)
	}
	return inv
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ── Quotations ───────────────────────────────────────────────────────────────

type stubQuotationRepo struct {
	mu         sync.Mutex
	quotations map[string]*model.Quotation
	seq        int64
}

var _ repository.QuotationRepository = (*stubQuotationRepo)(nil)

func newStubQuotationRepo() *stubQuotationRepo {
	return &stubQuotationRepo{quotations: make(map[string]*model.Quotation)}
}

func (r *stubQuotationRepo) DB() *gorm.DB { return nil }

func (r *stubQuotationRepo) NextNumber(_ context.Context, _ *gorm.DB) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	return r.seq, nil
}

func (r *stubQuotationRepo) Create(_ context.Context, _ *gorm.DB, q *model.Quotation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *q
	cp.Lines = append([]model.QuotationLine(nil), q.Lines...)
	r.quotations[q.Number] = &cp
	return nil
}

func (r *stubQuotationRepo) FindByNumber(_ context.Context, number string) (*model.Quotation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.quotations[number]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *q
	cp.Lines = append([]model.QuotationLine(nil), q.Lines...)
	return &cp, nil
}

func (r *stubQuotationRepo) List(_ context.Context, customerID string, _ repository.Page) ([]model.Quotation, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Quotation
	for _, q := range r.quotations {
		if customerID == "" || q.CustomerID == customerID {
			out = append(out, *q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number > out[j].Number })
	return out, int64(len(out)), nil
}

func (r *stubQuotationRepo) Delete(_ context.Context, number string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.quotations[number]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.quotations, number)
	return nil
}

// ── Exchange rate ────────────────────────────────────────────────────────────

type stubRateCache struct {
	mu    sync.Mutex
	entry *model.RateCacheEntry
	saves int
}

var _ repository.RateCacheRepository = (*stubRateCache)(nil)

func (r *stubRateCache) Get(_ context.Context) (*model.RateCacheEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entry == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *r.entry
	return &cp, nil
}

func (r *stubRateCache) Save(_ context.Context, e *model.RateCacheEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *e
	cp.ID = 1
	r.entry = &cp
	r.saves++
	return nil
}

// stubFetcher returns rate, or err when set.
type stubFetcher struct {
	mu    sync.Mutex
	rate  decimal.Decimal
	err   error
	calls int
}

func (f *stubFetcher) Fetch(_ context.Context) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return decimal.Zero, f.err
	}
	return f.rate, nil
}

func (f *stubFetcher) Source() string { return "stub://rate" }

func (f *stubFetcher) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// ── Wiring ───────────────────────────────────────────────────────────────────

type ledgerEnv struct {
	products    *stubProductRepo
	adjustments *stubAdjustmentRepo
	customers   *stubCustomerRepo
	invoiceRepo *stubInvoiceRepo
	quoteRepo   *stubQuotationRepo
	rateCache   *stubRateCache
	fetcher     *stubFetcher

	stock     service.StockService
	rates     service.ExchangeRateService
	invoices  service.InvoiceService
	payments  service.PaymentService
	quotes    service.QuotationService
	customerS service.CustomerService
	now       time.Time
}

func newLedgerEnv(t *testing.T) *ledgerEnv {
	t.Helper()
	env := &ledgerEnv{
		products:    newStubProductRepo(),
		adjustments: &stubAdjustmentRepo{},
		customers:   newStubCustomerRepo(),
		invoiceRepo: newStubInvoiceRepo(),
		quoteRepo:   newStubQuotationRepo(),
		rateCache:   &stubRateCache{},
		fetcher:     &stubFetcher{rate: d("36.00")},
		now:         time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	locks := service.NewLocks()
	now := func() time.Time { return env.now }

	env.stock = service.NewStockService(env.products, env.adjustments, env.invoiceRepo, locks)
	env.rates = service.NewExchangeRateService(env.fetcher, infra.NewRateBreaker(infra.DefaultBreakerConfig()), env.rateCache)
	env.invoices = service.NewInvoiceService(env.invoiceRepo, env.products, env.customers, env.stock, env.rates, locks,
		service.InvoiceOptions{DefaultCreditDays: 30, FallbackRate: d("36"), Now: now})
	env.payments = service.NewPaymentService(env.invoiceRepo, locks)
	env.quotes = service.NewQuotationService(env.quoteRepo, env.products, env.customers, env.rates,
		service.QuotationOptions{DefaultCreditDays: 30, DefaultValidityDays: 3, FallbackRate: d("36"), Now: now})
	env.customerS = service.NewCustomerService(env.customers, env.invoiceRepo, "+58")

	env.customers.customers["V-12345678"] = &model.Customer{ID: "V-12345678", Name: "Ana Pérez"}
	return env
}
