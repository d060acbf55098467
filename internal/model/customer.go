package model

import "time"

// Customer is keyed by "{type}-{number}", e.g. "V-12345678".
type Customer struct {
	ID        string `gorm:"type:varchar(32);primaryKey"`
	Name      string `gorm:"not null"`
	Email     string
	Phone     string
	Address   string
	CreatedAt time.Time
	UpdatedAt time.Time
}
