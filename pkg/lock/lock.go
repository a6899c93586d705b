// Package lock provides bounded-wait mutual exclusion keyed by string, backed
// by redis in deployments and by an in-process table for tests and local runs.
package lock

import (
	"context"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/marketledger-backend/pkg/errors"
)

const (
	defaultPollInterval = 50 * time.Millisecond
	keyPrefix           = "ml:lock"
)

// Key joins non-empty parts under the lock namespace: Key("order", id) is
// ml:lock:order:<id>.
func Key(parts ...string) string {
	clean := []string{keyPrefix}
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		clean = append(clean, part)
	}
	return strings.Join(clean, ":")
}

// OrderKey scopes a lock to one order.
func OrderKey(orderID string) string {
	return Key("order", orderID)
}

// CheckoutKey scopes a lock to one user's cart vendor.
func CheckoutKey(userID, cartVendorID string) string {
	return Key("checkout", userID, cartVendorID)
}

// WalletKey scopes a lock to one wallet.
func WalletKey(walletID string) string {
	return Key("wallet", walletID)
}

// Locker hands out leases on keys. Obtain blocks up to wait and fails with a
// LOCK_CONTENTION error when the key stays held.
type Locker interface {
	Obtain(ctx context.Context, key string, wait, ttl time.Duration) (Lease, error)
}

// Lease is a held lock. Release is safe to call after the TTL lapsed.
type Lease interface {
	Key() string
	Release(ctx context.Context) error
}

// ErrContention reports that key could not be obtained within the wait budget.
func ErrContention(key string) error {
	return pkgerrors.Newf(pkgerrors.CodeLockContention, "lock %s is held", key).
		WithDetails(map[string]any{"key": key})
}

// IsContention reports whether err came from a failed Obtain.
func IsContention(err error) bool {
	return pkgerrors.IsCode(err, pkgerrors.CodeLockContention)
}

// poll retries try every interval until it succeeds, the deadline passes or ctx ends.
func poll(ctx context.Context, key string, wait, interval time.Duration, try func() (bool, error)) error {
	deadline := time.Now().Add(wait)
	for {
		ok, err := try()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if !time.Now().Before(deadline) {
			return ErrContention(key)
		}
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ErrContention(key)
		case <-timer.C:
		}
	}
}
