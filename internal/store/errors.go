package store

import (
	"errors"
	"fmt"
)

var (
	// ErrUserExists is returned by Register for a taken username.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidCredentials is returned by Login for an unknown user or a
	// wrong password alike.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrInvalidPassword rejects passwords bcrypt cannot hash.
	ErrInvalidPassword = errors.New("password must be between 1 and 72 bytes")
	// ErrAlertExists is returned by AddAlert when the user already has an
	// alert on the same symbol and direction.
	ErrAlertExists = errors.New("alert already exists")
	// ErrInvalidQuantity rejects non-positive trade quantities.
	ErrInvalidQuantity = errors.New("quantity must be positive")
	// ErrQuantityOverflow rejects a buy whose resulting quantity would not
	// fit in an int64.
	ErrQuantityOverflow = errors.New("quantity too large")
	// ErrInsufficientQuantity matches any *InsufficientQuantityError.
	ErrInsufficientQuantity = errors.New("insufficient quantity")
	// ErrStorage wraps every failure of the underlying database.
	ErrStorage = errors.New("storage error")
)

// InsufficientQuantityError is returned by Sell when the request exceeds the
// held quantity.
type InsufficientQuantityError struct {
	Held      int64
	Requested int64
}

func (e *InsufficientQuantityError) Error() string {
	return fmt.Sprintf("insufficient quantity: requested %d, held %d", e.Requested, e.Held)
}

func (e *InsufficientQuantityError) Is(target error) bool {
	return target == ErrInsufficientQuantity
}

func storageError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}
