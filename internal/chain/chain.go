// Package chain talks to the RPC node hosting the roulette program. It is
// the only layer that retries transient network failures; decode and cache
// errors propagate to the caller untouched.
package chain

import (
	"context"

	"chain-roulette/internal/account"
)

// Raw is an undecoded account record paired with its address.
type Raw struct {
	Address string
	Data    []byte
}

// Fetcher reads account state on demand.
type Fetcher interface {
	// GetAccount returns the raw record at address, or ok=false when the
	// account does not exist.
	GetAccount(ctx context.Context, address string, schema account.Schema) ([]byte, bool, error)
	// GetAccountsByFilter lists all records of one schema matching the
	// byte-offset equality filters.
	GetAccountsByFilter(ctx context.Context, schema account.Schema, filters []account.Filter) ([]Raw, error)
}

// Subscription is a live watch on one account address. Updates carries raw
// account bytes in arrival order. After Unsubscribe returns, no further
// update is delivered on the channel.
type Subscription interface {
	Updates() <-chan []byte
	Address() string
	Unsubscribe()
}

// Watcher delivers account-change notifications for a single address over an
// ordered channel.
type Watcher interface {
	Watch(ctx context.Context, address string) (Subscription, error)
}
