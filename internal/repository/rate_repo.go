package repository

import (
	"context"

	"bodega/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RateCacheRepository persists the last good exchange rate.
type RateCacheRepository interface {
	// Get returns gorm.ErrRecordNotFound when nothing was ever cached.
	Get(ctx context.Context) (*model.RateCacheEntry, error)
	Save(ctx context.Context, e *model.RateCacheEntry) error
}

const rateCacheRowID = 1

type rateCacheRepo struct{ db *gorm.DB }

func NewRateCacheRepository(db *gorm.DB) RateCacheRepository { return &rateCacheRepo{db: db} }

func (r *rateCacheRepo) Get(ctx context.Context) (*model.RateCacheEntry, error) {
	var e model.RateCacheEntry
	err := r.db.WithContext(ctx).First(&e, rateCacheRowID).Error
	return &e, err
}

func (r *rateCacheRepo) Save(ctx context.Context, e *model.RateCacheEntry) error {
	e.ID = rateCacheRowID
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"rate", "source", "fetched_at"}),
	}).Create(e).Error
}
