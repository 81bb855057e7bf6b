package database

import (
	"path/filepath"
	"testing"

	"stock-alert-server/internal/config"
	"stock-alert-server/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithDefaultParams(t *testing.T) {
	t.Run("Plain path", func(t *testing.T) {
		dsn := WithDefaultParams("stocks.db")
		assert.Equal(t, "stocks.db?_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL&_synchronous=NORMAL&_txlock=immediate", dsn)
	})

	t.Run("Explicit values win", func(t *testing.T) {
		dsn := WithDefaultParams("stocks.db?_busy_timeout=100&_journal_mode=DELETE")
		assert.Contains(t, dsn, "_busy_timeout=100")
		assert.Contains(t, dsn, "_journal_mode=DELETE")
		assert.Contains(t, dsn, "_txlock=immediate")
	})
}

func TestNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.db")
	cfg := &config.Database{DSN: path, MaxOpenConns: 2}

	db, err := NewDatabase(cfg)
	require.NoError(t, err)

	for _, m := range []any{&models.User{}, &models.Alert{}, &models.Position{}, &models.Trade{}} {
		assert.True(t, db.Migrator().HasTable(m))
	}

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 2, sqlDB.Stats().MaxOpenConnections)

	require.NoError(t, db.Create(&models.User{Username: "alice", PasswordHash: "x"}).Error)
	require.NoError(t, sqlDB.Close())

	// Reopening must not drop existing rows.
	db, err = NewDatabase(cfg)
	require.NoError(t, err)
	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
