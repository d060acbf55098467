package repository

import (
	"context"

	"bodega/internal/model"

	"gorm.io/gorm"
)

// ProductFilter is used by List.
type ProductFilter struct {
	Name     string
	Category string
	Page
}

// ProductRepository defines the data access contract for products.
type ProductRepository interface {
	CreateTx(ctx context.Context, tx *gorm.DB, p *model.Product) error
	FindByID(ctx context.Context, id string) (*model.Product, error)
	List(ctx context.Context, filter ProductFilter) ([]model.Product, int64, error)
	Update(ctx context.Context, p *model.Product) error

	// LockTx loads the given products with SELECT … FOR UPDATE, locking rows
	// in id order. Missing ids are simply absent from the result.
	LockTx(ctx context.Context, tx *gorm.DB, ids []string) (map[string]*model.Product, error)
	// UpdateStockTx adds delta to the product quantity.
	UpdateStockTx(ctx context.Context, tx *gorm.DB, id string, delta int) error
	DeleteTx(ctx context.Context, tx *gorm.DB, ids []string) error

	// DB exposes the underlying *gorm.DB so services can open transactions.
	DB() *gorm.DB
}

type productRepo struct{ db *gorm.DB }

func NewProductRepository(db *gorm.DB) ProductRepository { return &productRepo{db: db} }

func (r *productRepo) DB() *gorm.DB { return r.db }

func (r *productRepo) CreateTx(ctx context.Context, tx *gorm.DB, p *model.Product) error {
	return conn(r.db, tx).WithContext(ctx).Omit("Adjustments").Create(p).Error
}

func (r *productRepo) FindByID(ctx context.Context, id string) (*model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	return &p, err
}

func (r *productRepo) List(ctx context.Context, filter ProductFilter) ([]model.Product, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Product{})
	if filter.Name != "" {
		q = q.Where("name ILIKE ?", "%"+filter.Name+"%")
	}
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := filter.bounds(100, 500)
	var products []model.Product
	err := q.Order("name ASC").Offset(offset).Limit(limit).Find(&products).Error
	return products, total, err
}

// Update writes the descriptive fields only; quantity moves through UpdateStockTx.
func (r *productRepo) Update(ctx context.Context, p *model.Product) error {
	return r.db.WithContext(ctx).Model(&model.Product{}).Where("id = ?", p.ID).
		Select("name", "category", "price", "distributor_price", "image").
		Updates(p).Error
}

func (r *productRepo) LockTx(ctx context.Context, tx *gorm.DB, ids []string) (map[string]*model.Product, error) {
	var products []model.Product
	err := conn(r.db, tx).WithContext(ctx).Clauses(forUpdate()).
		Where("id IN ?", ids).Order("id").Find(&products).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]*model.Product, len(products))
	for i := range products {
		out[products[i].ID] = &products[i]
	}
	return out, nil
}

func (r *productRepo) UpdateStockTx(ctx context.Context, tx *gorm.DB, id string, delta int) error {
	res := conn(r.db, tx).WithContext(ctx).Model(&model.Product{}).Where("id = ?", id).
		Update("quantity", gorm.Expr("quantity + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *productRepo) DeleteTx(ctx context.Context, tx *gorm.DB, ids []string) error {
	db := conn(r.db, tx).WithContext(ctx)
	if err := db.Where("product_id IN ?", ids).Delete(&model.StockAdjustment{}).Error; err != nil {
		return err
	}
	return db.Where("id IN ?", ids).Delete(&model.Product{}).Error
}
