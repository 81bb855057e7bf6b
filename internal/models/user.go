package models

import "gorm.io/gorm"

// User is a registered account. PasswordHash holds a bcrypt hash; the clear
// text password is never stored.
type User struct {
	gorm.Model
	Username     string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
}
