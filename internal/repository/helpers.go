package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// conn picks the transaction when the caller is inside one.
func conn(db, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return db
}

func forUpdate() clause.Locking {
	return clause.Locking{Strength: "UPDATE"}
}

// Page normalizes page/limit pairs coming from query strings.
type Page struct {
	Page  int
	Limit int
}

func (p Page) bounds(def, max int) (offset, limit int) {
	page := p.Page
	limit = p.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > max {
		limit = def
	}
	return (page - 1) * limit, limit
}
