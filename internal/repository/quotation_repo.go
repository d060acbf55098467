package repository

import (
	"context"

	"bodega/internal/model"

	"gorm.io/gorm"
)

type QuotationRepository interface {
	// NextNumber draws from the quotation_number_seq sequence.
	NextNumber(ctx context.Context, tx *gorm.DB) (int64, error)
	Create(ctx context.Context, tx *gorm.DB, q *model.Quotation) error
	FindByNumber(ctx context.Context, number string) (*model.Quotation, error)
	List(ctx context.Context, customerID string, page Page) ([]model.Quotation, int64, error)
	Delete(ctx context.Context, number string) error
	DB() *gorm.DB
}

type quotationRepo struct{ db *gorm.DB }

func NewQuotationRepository(db *gorm.DB) QuotationRepository { return &quotationRepo{db: db} }

func (r *quotationRepo) DB() *gorm.DB { return r.db }

func (r *quotationRepo) NextNumber(ctx context.Context, tx *gorm.DB) (int64, error) {
	var num int64
	err := conn(r.db, tx).WithContext(ctx).Raw("SELECT nextval('quotation_number_seq')").Scan(&num).Error
	return num, err
}

func (r *quotationRepo) Create(ctx context.Context, tx *gorm.DB, q *model.Quotation) error {
	return conn(r.db, tx).WithContext(ctx).Omit("Customer").Create(q).Error
}

func (r *quotationRepo) FindByNumber(ctx context.Context, number string) (*model.Quotation, error) {
	var q model.Quotation
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Customer").
		First(&q, "number = ?", number).Error
	return &q, err
}

func (r *quotationRepo) List(ctx context.Context, customerID string, page Page) ([]model.Quotation, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Quotation{})
	if customerID != "" {
		q = q.Where("customer_id = ?", customerID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := page.bounds(50, 200)
	var quotations []model.Quotation
	err := q.Preload("Customer").Order("length(number) DESC, number DESC").Offset(offset).Limit(limit).Find(&quotations).Error
	return quotations, total, err
}

func (r *quotationRepo) Delete(ctx context.Context, number string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("quotation_number = ?", number).Delete(&model.QuotationLine{}).Error; err != nil {
			return err
		}
		res := tx.Where("number = ?", number).Delete(&model.Quotation{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
