package models

import "gorm.io/gorm"

// Trade represents one executed paper trade.
type Trade struct {
	gorm.Model
	UserID   uint    `gorm:"index;not null" json:"user_id"`
	Symbol   string  `gorm:"not null" json:"symbol"`
	Side     string  `gorm:"not null" json:"side"` // "BUY" or "SELL"
	Price    float64 `gorm:"not null" json:"price"`
	Quantity int64   `gorm:"not null" json:"quantity"`
	Amount   float64 `gorm:"not null" json:"amount"` // Quantity * Price
}
