// Package app assembles the ledger services shared by the api, worker and
// cron-worker binaries.
package app

import (
	"fmt"

	"github.com/angelmondragon/marketledger-backend/internal/cart"
	"github.com/angelmondragon/marketledger-backend/internal/checkout"
	"github.com/angelmondragon/marketledger-backend/internal/coupons"
	"github.com/angelmondragon/marketledger-backend/internal/listeners"
	"github.com/angelmondragon/marketledger-backend/internal/notifications"
	"github.com/angelmondragon/marketledger-backend/internal/orders"
	"github.com/angelmondragon/marketledger-backend/internal/settlements"
	"github.com/angelmondragon/marketledger-backend/internal/transactions"
	"github.com/angelmondragon/marketledger-backend/internal/wallets"
	"github.com/angelmondragon/marketledger-backend/pkg/config"
	"github.com/angelmondragon/marketledger-backend/pkg/db"
	"github.com/angelmondragon/marketledger-backend/pkg/lock"
	"github.com/angelmondragon/marketledger-backend/pkg/logger"
	"github.com/angelmondragon/marketledger-backend/pkg/outbox"
	"github.com/angelmondragon/marketledger-backend/pkg/redis"
)

type Params struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       *db.Client
	Locker   lock.Locker
	Notifier notifications.Notifier
}

// Services is the wired domain layer. Every field is non-nil after New.
type Services struct {
	OutboxRepo        *outbox.Repository
	Outbox            *outbox.Service
	Orders            orders.Service
	OrderCommands     *orders.Commands
	Cart              cart.Service
	Checkout          checkout.Service
	Coupons           coupons.Service
	Wallets           wallets.Service
	Funding           *wallets.FundingService
	Transactions      transactions.Service
	Settlements       settlements.Service
	Notifications     notifications.Service
	NotificationsRepo notifications.Repository

	cfg      *config.Config
	db       *db.Client
	locker   lock.Locker
	notifier notifications.Notifier
	logg     *logger.Logger
}

func New(params Params) (*Services, error) {
	switch {
	case params.Config == nil:
		return nil, fmt.Errorf("config required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.DB == nil:
		return nil, fmt.Errorf("database client required")
	case params.Locker == nil:
		return nil, fmt.Errorf("locker required")
	case params.Notifier == nil:
		return nil, fmt.Errorf("notifier required")
	}
	cfg, conn := params.Config, params.DB.DB()
	s := &Services{
		cfg:      cfg,
		db:       params.DB,
		locker:   params.Locker,
		notifier: params.Notifier,
		logg:     params.Logger,
	}

	s.OutboxRepo = outbox.NewRepository(conn)
	s.Outbox = outbox.NewService(s.OutboxRepo, params.Logger)
	s.NotificationsRepo = notifications.NewRepository(conn)

	var err error
	if s.Orders, err = orders.NewService(orders.NewRepository(conn), cfg.Security); err != nil {
		return nil, fmt.Errorf("orders service: %w", err)
	}
	if s.Cart, err = cart.NewService(cart.NewRepository(conn), params.DB); err != nil {
		return nil, fmt.Errorf("cart service: %w", err)
	}
	if s.Coupons, err = coupons.NewService(coupons.NewRepository(conn)); err != nil {
		return nil, fmt.Errorf("coupons service: %w", err)
	}
	if s.Wallets, err = wallets.NewService(wallets.NewRepository(conn)); err != nil {
		return nil, fmt.Errorf("wallets service: %w", err)
	}
	if s.Transactions, err = transactions.NewService(transactions.NewRepository(conn)); err != nil {
		return nil, fmt.Errorf("transactions service: %w", err)
	}
	if s.Settlements, err = settlements.NewService(settlements.NewRepository(conn), cfg.Engine.PaymentGateway); err != nil {
		return nil, fmt.Errorf("settlements service: %w", err)
	}
	if s.Notifications, err = notifications.NewService(s.NotificationsRepo); err != nil {
		return nil, fmt.Errorf("notifications service: %w", err)
	}

	s.Checkout, err = checkout.NewService(checkout.ServiceParams{
		DB:          params.DB,
		Cart:        s.Cart,
		Coupons:     s.Coupons,
		Wallets:     s.Wallets,
		Outbox:      s.Outbox,
		Submissions: s.OutboxRepo,
		Logger:      params.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("checkout service: %w", err)
	}

	s.OrderCommands, err = orders.NewCommands(orders.CommandParams{
		DB:     params.DB,
		Orders: s.Orders,
		Outbox: s.Outbox,
		Events: s.OutboxRepo,
		Logger: params.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("order commands: %w", err)
	}

	s.Funding, err = wallets.NewFundingService(wallets.FundingParams{
		DB:           params.DB,
		Wallets:      s.Wallets,
		Transactions: s.Transactions,
		Locker:       params.Locker,
		Outbox:       s.Outbox,
		Notifier:     params.Notifier,
		Logger:       params.Logger,
		LockWait:     cfg.Engine.LockWait,
		LockTTL:      cfg.Engine.LockTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("funding service: %w", err)
	}
	return s, nil
}

// Listeners builds the lifecycle handlers over the same services.
func (s *Services) Listeners() (*listeners.Listeners, error) {
	rate, err := s.cfg.Engine.CommissionRate()
	if err != nil {
		return nil, err
	}
	return listeners.New(listeners.Params{
		DB:             s.db,
		Locker:         s.locker,
		Orders:         s.Orders,
		Wallets:        s.Wallets,
		Transactions:   s.Transactions,
		Settlements:    s.Settlements,
		Coupons:        s.Coupons,
		Cart:           s.Cart,
		Outbox:         s.Outbox,
		Notifier:       s.notifier,
		Logger:         s.logg,
		CommissionRate: rate,
		LockWait:       s.cfg.Engine.LockWait,
		LockTTL:        s.cfg.Engine.LockTTL,
	})
}

// NewLocker picks the in-process locker for single-replica deployments and
// the redis locker otherwise.
func NewLocker(cfg config.FeatureFlagsConfig, client *redis.Client) (lock.Locker, error) {
	if cfg.InProcessLocking {
		return lock.NewMemoryLocker(), nil
	}
	if client == nil {
		return nil, fmt.Errorf("redis client required unless in-process locking is enabled")
	}
	locker, err := lock.NewRedisLocker(client)
	if err != nil {
		return nil, err
	}
	return locker, nil
}
