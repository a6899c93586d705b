// Package listeners runs the order lifecycle handlers. Each handler holds the
// order (or checkout) lock, performs all of its writes in one transaction and
// only notifies once that transaction committed.
package listeners

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketledger-backend/internal/cart"
	"github.com/angelmondragon/marketledger-backend/internal/coupons"
	"github.com/angelmondragon/marketledger-backend/internal/notifications"
	"github.com/angelmondragon/marketledger-backend/internal/orders"
	"github.com/angelmondragon/marketledger-backend/internal/settlements"
	"github.com/angelmondragon/marketledger-backend/internal/transactions"
	"github.com/angelmondragon/marketledger-backend/internal/wallets"
	pkgerrors "github.com/angelmondragon/marketledger-backend/pkg/errors"
	"github.com/angelmondragon/marketledger-backend/pkg/lock"
	"github.com/angelmondragon/marketledger-backend/pkg/logger"
	"github.com/angelmondragon/marketledger-backend/pkg/outbox"
)

const (
	defaultLockWait = 5 * time.Second
	defaultLockTTL  = 10 * time.Second
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Params wires the listeners to their collaborators.
type Params struct {
	DB             txRunner
	Locker         lock.Locker
	Orders         orders.Service
	Wallets        wallets.Service
	Transactions   transactions.Service
	Settlements    settlements.Service
	Coupons        coupons.Service
	Cart           cart.Service
	Outbox         outbox.Emitter
	Notifier       notifications.Notifier
	Logger         *logger.Logger
	CommissionRate decimal.Decimal
	LockWait       time.Duration
	LockTTL        time.Duration
}

// Listeners holds one handler per lifecycle event.
type Listeners struct {
	db       txRunner
	locker   lock.Locker
	orders   orders.Service
	wallets  wallets.Service
	txns     transactions.Service
	settle   settlements.Service
	coupons  coupons.Service
	cart     cart.Service
	outbox   outbox.Emitter
	notifier notifications.Notifier
	logg     *logger.Logger
	rate     decimal.Decimal
	wait     time.Duration
	ttl      time.Duration
}

func New(params Params) (*Listeners, error) {
	switch {
	case params.DB == nil:
		return nil, errors.New("tx runner required")
	case params.Locker == nil:
		return nil, errors.New("locker required")
	case params.Orders == nil:
		return nil, errors.New("orders service required")
	case params.Wallets == nil:
		return nil, errors.New("wallets service required")
	case params.Transactions == nil:
		return nil, errors.New("transactions service required")
	case params.Settlements == nil:
		return nil, errors.New("settlements service required")
	case params.Coupons == nil:
		return nil, errors.New("coupons service required")
	case params.Cart == nil:
		return nil, errors.New("cart service required")
	case params.Outbox == nil:
		return nil, errors.New("outbox emitter required")
	case params.Notifier == nil:
		return nil, errors.New("notifier required")
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.CommissionRate.IsNegative() || params.CommissionRate.GreaterThan(decimal.NewFromInt(100)):
		return nil, errors.New("commission rate must be within 0..100")
	}
	wait, ttl := params.LockWait, params.LockTTL
	if wait <= 0 {
		wait = defaultLockWait
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &Listeners{
		db:       params.DB,
		locker:   params.Locker,
		orders:   params.Orders,
		wallets:  params.Wallets,
		txns:     params.Transactions,
		settle:   params.Settlements,
		coupons:  params.Coupons,
		cart:     params.Cart,
		outbox:   params.Outbox,
		notifier: params.Notifier,
		logg:     params.Logger,
		rate:     params.CommissionRate,
		wait:     wait,
		ttl:      ttl,
	}, nil
}

// guarded obtains key, runs fn in a single transaction and delivers the
// messages fn returned after commit. Lock contention returns before any
// write so the caller can redeliver.
func (l *Listeners) guarded(ctx context.Context, key string, fn func(tx *gorm.DB) ([]notifications.Message, error)) error {
	logCtx := l.logg.WithField(ctx, "lock_key", key)
	lease, err := l.locker.Obtain(ctx, key, l.wait, l.ttl)
	if err != nil {
		if lock.IsContention(err) {
			l.logg.Warn(logCtx, "listener lock busy")
		}
		return err
	}
	defer func() {
		if err := lease.Release(context.Background()); err != nil {
			l.logg.Warn(logCtx, "listener lock release failed")
		}
	}()

	var msgs []notifications.Message
	err = l.db.WithTx(ctx, func(tx *gorm.DB) error {
		out, err := fn(tx)
		if err != nil {
			return err
		}
		msgs = out
		return nil
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeReconciliationMismatch) {
			l.logg.Error(logCtx, "ledger reconciliation mismatch", err)
		}
		return err
	}
	notifications.BestEffort(ctx, l.notifier, l.logg, msgs...)
	return nil
}
