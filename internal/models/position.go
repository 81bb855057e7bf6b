package models

import "gorm.io/gorm"

// Position is a user's paper holding in one symbol. CostBasis is the
// cumulative signed cost: buys add quantity*price, sells subtract it.
// Rows are kept when Quantity drops to zero.
type Position struct {
	gorm.Model
	UserID    uint    `gorm:"not null;uniqueIndex:idx_position_user_symbol"`
	Symbol    string  `gorm:"not null;uniqueIndex:idx_position_user_symbol"`
	Quantity  int64   `gorm:"not null;default:0"`
	CostBasis float64 `gorm:"not null;default:0"`
}
