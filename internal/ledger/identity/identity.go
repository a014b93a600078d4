// Package identity resolves the account the ledger belongs to.
//
// The sync core only needs an owner identifier for scoping remote rows; how
// that identity is obtained (session, config, keychain) is behind Provider.
package identity

import (
	"context"
	"errors"
)

// ErrUnauthenticated is returned when no account identity is available.
// Reconciliation passes treat it as an unmet precondition and skip silently.
var ErrUnauthenticated = errors.New("no account identity available")

// Provider resolves the current account identifier.
type Provider interface {
	// Account returns the current account identifier, or
	// ErrUnauthenticated when none is available.
	Account(ctx context.Context) (string, error)
}

// Static is a Provider backed by a fixed account name from configuration.
type Static struct {
	account string
}

// NewStatic creates a Static provider. An empty account means
// unauthenticated.
func NewStatic(account string) *Static {
	return &Static{account: account}
}

// Account implements Provider.
func (s *Static) Account(ctx context.Context) (string, error) {
	if s.account == "" {
		return "", ErrUnauthenticated
	}
	return s.account, nil
}
