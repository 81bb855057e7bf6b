// Package store persists users, alerts and paper-trading positions.
//
// Every operation is a single request/response against the pooled database
// handle. Buy and Sell read and rewrite the position row inside one
// transaction; the database is opened with immediate transaction locking
// (see package database), so concurrent trades on the same user and symbol
// are serialized rather than racing.
package store

import (
	"context"
	"errors"
	"math"
	"sync"

	"stock-alert-server/internal/models"
	"stock-alert-server/internal/protocol"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Store is the persistence layer shared by all sessions.
type Store struct {
	db         *gorm.DB
	logger     *zap.Logger
	bcryptCost int

	dummyOnce sync.Once
	dummyHash []byte
}

// New creates a store over db. bcryptCost is the work factor for new
// password hashes.
func New(db *gorm.DB, bcryptCost int, logger *zap.Logger) *Store {
	return &Store{
		db:         db,
		logger:     logger.Named("store"),
		bcryptCost: bcryptCost,
	}
}

// Register creates a user and returns its id.
func (s *Store) Register(ctx context.Context, username, password string) (uint, error) {
	if len(password) == 0 || len(password) > 72 {
		return 0, ErrInvalidPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return 0, storageError("hash password", err)
	}

	user := models.User{Username: username, PasswordHash: string(hash)}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return 0, ErrUserExists
		}
		return 0, storageError("create user", err)
	}

	s.logger.Info("Registered user", zap.String("username", username), zap.Uint("user_id", user.ID))
	return user.ID, nil
}

// Login verifies the credentials and returns the user id. Unknown users and
// wrong passwords both yield ErrInvalidCredentials and take comparable time.
func (s *Store) Login(ctx context.Context, username, password string) (uint, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
		return 0, ErrInvalidCredentials
	}
	if err != nil {
		return 0, storageError("find user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return 0, ErrInvalidCredentials
	}
	return user.ID, nil
}

func (s *Store) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), s.bcryptCost)
	})
	return s.dummyHash
}

// AddAlert stores a new alert. The existence check and the insert run in
// one transaction; the unique index backs it up.
func (s *Store) AddAlert(ctx context.Context, userID uint, symbol string, direction protocol.Direction, threshold float64) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Alert{}).
			Where("user_id = ? AND symbol = ? AND direction = ?", userID, symbol, direction).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrAlertExists
		}
		return tx.Create(&models.Alert{
			UserID:    userID,
			Symbol:    symbol,
			Direction: direction,
			Threshold: threshold,
		}).Error
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrAlertExists), errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrAlertExists
	default:
		return storageError("add alert", err)
	}
}

// RemoveAlert deletes the alert if present. Removing a missing alert is not
// an error.
func (s *Store) RemoveAlert(ctx context.Context, userID uint, symbol string, direction protocol.Direction) error {
	err := s.db.WithContext(ctx).Unscoped().
		Where("user_id = ? AND symbol = ? AND direction = ?", userID, symbol, direction).
		Delete(&models.Alert{}).Error
	if err != nil {
		return storageError("remove alert", err)
	}
	return nil
}

// ListAlerts returns the user's alerts ordered by creation.
func (s *Store) ListAlerts(ctx context.Context, userID uint) ([]models.Alert, error) {
	var list []models.Alert
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&list).Error; err != nil {
		return nil, storageError("list alerts", err)
	}
	return list, nil
}

// Buy adds quantity shares at price to the user's position, creating the
// row on first purchase.
func (s *Store) Buy(ctx context.Context, userID uint, symbol string, quantity int64, price float64) (*models.Position, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	var pos models.Position
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := findPosition(tx, userID, symbol, &pos); err != nil {
			return err
		}

		if pos.Quantity > math.MaxInt64-quantity {
			return ErrQuantityOverflow
		}

		amount := tradeAmount(quantity, price)
		pos.Quantity += quantity
		pos.CostBasis = decimal.NewFromFloat(pos.CostBasis).Add(amount).InexactFloat64()

		if err := tx.Save(&pos).Error; err != nil {
			return err
		}
		return recordTrade(tx, userID, symbol, SideBuy, quantity, price, amount)
	})

	switch {
	case err == nil:
		return &pos, nil
	case errors.Is(err, ErrQuantityOverflow):
		return nil, ErrQuantityOverflow
	default:
		return nil, storageError("buy", err)
	}
}

// Sell removes quantity shares at price from the user's position. Selling
// more than is held fails with *InsufficientQuantityError and changes
// nothing.
func (s *Store) Sell(ctx context.Context, userID uint, symbol string, quantity int64, price float64) (*models.Position, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	var pos models.Position
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := findPosition(tx, userID, symbol, &pos); err != nil {
			return err
		}
		if quantity > pos.Quantity {
			return &InsufficientQuantityError{Held: pos.Quantity, Requested: quantity}
		}

		amount := tradeAmount(quantity, price)
		pos.Quantity -= quantity
		pos.CostBasis = decimal.NewFromFloat(pos.CostBasis).Sub(amount).InexactFloat64()

		if err := tx.Save(&pos).Error; err != nil {
			return err
		}
		return recordTrade(tx, userID, symbol, SideSell, quantity, price, amount)
	})

	var insufficient *InsufficientQuantityError
	switch {
	case err == nil:
		return &pos, nil
	case errors.As(err, &insufficient):
		return nil, insufficient
	default:
		return nil, storageError("sell", err)
	}
}

// ListPositions returns the user's positions ordered by symbol, including
// rows whose quantity has dropped to zero.
func (s *Store) ListPositions(ctx context.Context, userID uint) ([]models.Position, error) {
	var list []models.Position
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("symbol").Find(&list).Error; err != nil {
		return nil, storageError("list positions", err)
	}
	return list, nil
}

// findPosition loads the user's row for symbol into pos, or prepares a new
// zero row when none exists.
func findPosition(tx *gorm.DB, userID uint, symbol string, pos *models.Position) error {
	err := tx.Where("user_id = ? AND symbol = ?", userID, symbol).First(pos).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		*pos = models.Position{UserID: userID, Symbol: symbol}
		return nil
	}
	return err
}

func tradeAmount(quantity int64, price float64) decimal.Decimal {
	return decimal.NewFromFloat(price).Mul(decimal.NewFromInt(quantity))
}

func recordTrade(tx *gorm.DB, userID uint, symbol, side string, quantity int64, price float64, amount decimal.Decimal) error {
	return tx.Create(&models.Trade{
		UserID:   userID,
		Symbol:   symbol,
		Side:     side,
		Price:    price,
		Quantity: quantity,
		Amount:   amount.InexactFloat64(),
	}).Error
}
