package repository

import (
	"context"
	"time"

	"bodega/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AdjustmentFilter backs the adjustment history report. Zero values mean
// "no filter".
type AdjustmentFilter struct {
	ProductID string
	User      string
	Kind      model.AdjustmentKind
	From      *time.Time
	To        *time.Time
	Page
}

type StockAdjustmentRepository interface {
	CreateTx(ctx context.Context, tx *gorm.DB, a *model.StockAdjustment) error
	// DeleteTx exists only to compensate uncommitted work; the log is
	// otherwise append-only.
	DeleteTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	List(ctx context.Context, filter AdjustmentFilter) ([]model.StockAdjustment, int64, error)
}

type stockAdjustmentRepo struct{ db *gorm.DB }

func NewStockAdjustmentRepository(db *gorm.DB) StockAdjustmentRepository {
	return &stockAdjustmentRepo{db: db}
}

func (r *stockAdjustmentRepo) CreateTx(ctx context.Context, tx *gorm.DB, a *model.StockAdjustment) error {
	return conn(r.db, tx).WithContext(ctx).Create(a).Error
}

func (r *stockAdjustmentRepo) DeleteTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	return conn(r.db, tx).WithContext(ctx).Where("id = ?", id).Delete(&model.StockAdjustment{}).Error
}

func (r *stockAdjustmentRepo) List(ctx context.Context, filter AdjustmentFilter) ([]model.StockAdjustment, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.StockAdjustment{})
	if filter.ProductID != "" {
		q = q.Where("product_id = ?", filter.ProductID)
	}
	if filter.User != "" {
		q = q.Where("username = ?", filter.User)
	}
	if filter.Kind != "" {
		q = q.Where("kind = ?", filter.Kind)
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("created_at < ?", *filter.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := filter.bounds(100, 500)
	var adjustments []model.StockAdjustment
	err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&adjustments).Error
	return adjustments, total, err
}
