package server

import (
	"errors"

	"stock-alert-server/internal/store"
)

var (
	ErrMalformed         = errors.New("malformed command")
	ErrNotLoggedIn       = errors.New("not logged in")
	ErrAlreadyLoggedIn   = errors.New("already logged in")
	ErrSymbolUnavailable = errors.New("symbol not available")
	ErrLineTooLong       = errors.New("line too long")
)

// errorReason is the text sent after ERR for a rejected command. Storage
// failures are reduced to a fixed message; their cause is only logged.
func errorReason(err error) string {
	if errors.Is(err, store.ErrStorage) {
		return "internal storage error"
	}
	return err.Error()
}
