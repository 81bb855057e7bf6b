package models

import (
	"stock-alert-server/internal/protocol"

	"gorm.io/gorm"
)

// Alert is a stored price alert. A user holds at most one alert per symbol
// and direction; changing a threshold means delete and re-create.
type Alert struct {
	gorm.Model
	UserID    uint               `gorm:"not null;uniqueIndex:idx_alert_user_symbol_direction"`
	Symbol    string             `gorm:"not null;uniqueIndex:idx_alert_user_symbol_direction"`
	Direction protocol.Direction `gorm:"type:text;not null;uniqueIndex:idx_alert_user_symbol_direction"`
	Threshold float64            `gorm:"not null"`
}
