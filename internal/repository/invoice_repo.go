package repository

import (
	"context"
	"time"

	"bodega/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InvoiceFilter struct {
	State      model.InvoiceState
	CustomerID string
	From       *time.Time
	To         *time.Time
	Page
}

type InvoiceRepository interface {
	// NextNumber draws from the invoice_number_seq sequence.
	NextNumber(ctx context.Context, tx *gorm.DB) (int, error)
	Create(ctx context.Context, tx *gorm.DB, inv *model.Invoice) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
	// LockTx reloads the invoice with its lines and payments while holding a
	// row lock on it.
	LockTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Invoice, error)
	// UpdateTx writes the header and derived fields, never the associations.
	UpdateTx(ctx context.Context, tx *gorm.DB, inv *model.Invoice) error
	ReplaceLinesTx(ctx context.Context, tx *gorm.DB, inv *model.Invoice) error
	DeleteTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) error

	AddPaymentTx(ctx context.Context, tx *gorm.DB, p *model.Payment) error
	DeletePaymentTx(ctx context.Context, tx *gorm.DB, invoiceID, paymentID uuid.UUID) error

	List(ctx context.Context, filter InvoiceFilter) ([]model.Invoice, int64, error)
	ListIDs(ctx context.Context) ([]uuid.UUID, error)
	// ListOutstanding returns pending invoices with their customer, oldest due first.
	ListOutstanding(ctx context.Context) ([]model.Invoice, error)
	CountByProducts(ctx context.Context, productIDs []string) (int64, error)
	CountByCustomer(ctx context.Context, customerID string) (int64, error)

	DB() *gorm.DB
}

type invoiceRepo struct{ db *gorm.DB }

func NewInvoiceRepository(db *gorm.DB) InvoiceRepository { return &invoiceRepo{db: db} }

func (r *invoiceRepo) DB() *gorm.DB { return r.db }

func (r *invoiceRepo) NextNumber(ctx context.Context, tx *gorm.DB) (int, error) {
	var num int
	err := conn(r.db, tx).WithContext(ctx).Raw("SELECT nextval('invoice_number_seq')").Scan(&num).Error
	return num, err
}

func (r *invoiceRepo) Create(ctx context.Context, tx *gorm.DB, inv *model.Invoice) error {
	return conn(r.db, tx).WithContext(ctx).Omit("Customer").Create(inv).Error
}

func withDetail(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("paid_at ASC") })
}

func (r *invoiceRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	var inv model.Invoice
	err := withDetail(r.db.WithContext(ctx)).Preload("Customer").First(&inv, "id = ?", id).Error
	return &inv, err
}

func (r *invoiceRepo) LockTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Invoice, error) {
	var inv model.Invoice
	err := withDetail(conn(r.db, tx).WithContext(ctx).Clauses(forUpdate())).First(&inv, "id = ?", id).Error
	return &inv, err
}

func (r *invoiceRepo) UpdateTx(ctx context.Context, tx *gorm.DB, inv *model.Invoice) error {
	return conn(r.db, tx).WithContext(ctx).Omit(clause.Associations).Save(inv).Error
}

func (r *invoiceRepo) ReplaceLinesTx(ctx context.Context, tx *gorm.DB, inv *model.Invoice) error {
	db := conn(r.db, tx).WithContext(ctx)
	if err := db.Where("invoice_id = ?", inv.ID).Delete(&model.InvoiceLine{}).Error; err != nil {
		return err
	}
	if len(inv.Lines) == 0 {
		return nil
	}
	for i := range inv.Lines {
		inv.Lines[i].ID = uuid.Nil
		inv.Lines[i].InvoiceID = inv.ID
	}
	return db.Create(&inv.Lines).Error
}

func (r *invoiceRepo) DeleteTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	db := conn(r.db, tx).WithContext(ctx)
	if err := db.Where("invoice_id = ?", id).Delete(&model.Payment{}).Error; err != nil {
		return err
	}
	if err := db.Where("invoice_id = ?", id).Delete(&model.InvoiceLine{}).Error; err != nil {
		return err
	}
	res := db.Where("id = ?", id).Delete(&model.Invoice{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *invoiceRepo) AddPaymentTx(ctx context.Context, tx *gorm.DB, p *model.Payment) error {
	return conn(r.db, tx).WithContext(ctx).Create(p).Error
}

func (r *invoiceRepo) DeletePaymentTx(ctx context.Context, tx *gorm.DB, invoiceID, paymentID uuid.UUID) error {
	res := conn(r.db, tx).WithContext(ctx).
		Where("id = ? AND invoice_id = ?", paymentID, invoiceID).
		Delete(&model.Payment{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *invoiceRepo) List(ctx context.Context, filter InvoiceFilter) ([]model.Invoice, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Invoice{})
	if filter.State != "" {
		q = q.Where("state = ?", filter.State)
	}
	if filter.CustomerID != "" {
		q = q.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.From != nil {
		q = q.Where("issued_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("issued_at < ?", *filter.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := filter.bounds(50, 200)
	var invoices []model.Invoice
	err := withDetail(q).Preload("Customer").
		Order("number DESC").Offset(offset).Limit(limit).
		Find(&invoices).Error
	return invoices, total, err
}

func (r *invoiceRepo) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&model.Invoice{}).Order("number ASC").Pluck("id", &ids).Error
	return ids, err
}

func (r *invoiceRepo) ListOutstanding(ctx context.Context) ([]model.Invoice, error) {
	var invoices []model.Invoice
	err := r.db.WithContext(ctx).Preload("Customer").
		Where("state = ?", model.StatePending).
		Order("due_date ASC NULLS LAST").Order("issued_at ASC").
		Find(&invoices).Error
	return invoices, err
}

func (r *invoiceRepo) CountByProducts(ctx context.Context, productIDs []string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.InvoiceLine{}).
		Where("product_id IN ?", productIDs).
		Distinct("invoice_id").Count(&n).Error
	return n, err
}

func (r *invoiceRepo) CountByCustomer(ctx context.Context, customerID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Invoice{}).Where("customer_id = ?", customerID).Count(&n).Error
	return n, err
}
