package database

import (
	"fmt"
	"net/url"
	"strings"

	"stock-alert-server/internal/config"
	"stock-alert-server/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connection parameters applied unless the DSN sets them. _txlock=immediate
// makes every transaction take the write lock at BEGIN, so a
// read-then-write transaction can never lose an update to a concurrent one.
var defaultParams = map[string]string{
	"_txlock":       "immediate",
	"_busy_timeout": "5000",
	"_foreign_keys": "on",
	"_journal_mode": "WAL",
	"_synchronous":  "NORMAL",
}

// NewDatabase opens the sqlite database with a fixed-size connection pool
// and migrates the schema. Existing data is kept.
func NewDatabase(cfg *config.Database) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(WithDefaultParams(cfg.DSN)), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxOpenConns)

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// AutoMigrate creates or updates the tables for all persisted models.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.User{}, &models.Alert{}, &models.Position{}, &models.Trade{}); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return nil
}

// WithDefaultParams appends the default connection parameters that dsn does
// not already carry.
func WithDefaultParams(dsn string) string {
	base, query, _ := strings.Cut(dsn, "?")
	values, err := url.ParseQuery(query)
	if err != nil {
		values = url.Values{}
	}
	for k, v := range defaultParams {
		if values.Get(k) == "" {
			values.Set(k, v)
		}
	}
	// Encode sorts keys, so the result is stable.
	return base + "?" + values.Encode()
}
