// Package dbtest opens throwaway sqlite databases carrying the ledger schema.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/marketledger-backend/pkg/db"
)

var schema = []string{
	`CREATE TABLE orders (
  id TEXT PRIMARY KEY,
  order_number TEXT NOT NULL UNIQUE,
  user_id TEXT NOT NULL,
  vendor_id TEXT NOT NULL,
  driver_id TEXT,
  cart_vendor_id TEXT,
  status TEXT NOT NULL,
  currency TEXT NOT NULL,
  gross_total_amount INTEGER NOT NULL,
  coupon_discount INTEGER NOT NULL DEFAULT 0,
  net_total_amount INTEGER NOT NULL,
  delivery_fee INTEGER NOT NULL DEFAULT 0,
  coupon_id TEXT,
  coupon_code TEXT,
  payment_reference TEXT NOT NULL UNIQUE,
  processor_transaction_id TEXT,
  paid_from_wallet INTEGER NOT NULL DEFAULT 0,
  receiver_name TEXT,
  receiver_phone TEXT,
  receiver_address TEXT,
  receiver_note TEXT,
  is_gift INTEGER NOT NULL DEFAULT 0,
  ip_address TEXT,
  delivery_otp_hash TEXT,
  paid_at DATETIME,
  dispatched_at DATETIME,
  delivered_at DATETIME,
  completed_at DATETIME,
  settled_at DATETIME,
  cancelled_at DATETIME,
  failed_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE order_line_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  product_name TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price INTEGER NOT NULL,
  total_price INTEGER NOT NULL,
  created_at DATETIME
);`,
	`CREATE TABLE wallets (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL UNIQUE,
  currency TEXT NOT NULL,
  balance INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE wallet_entries (
  id TEXT PRIMARY KEY,
  wallet_id TEXT NOT NULL,
  amount INTEGER NOT NULL,
  balance_after INTEGER NOT NULL,
  reference TEXT NOT NULL,
  sequence INTEGER NOT NULL,
  created_at DATETIME,
  UNIQUE (wallet_id, sequence)
);`,
	`CREATE TABLE transactions (
  id TEXT PRIMARY KEY,
  wallet_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  type TEXT NOT NULL,
  status TEXT NOT NULL,
  amount INTEGER NOT NULL,
  currency TEXT NOT NULL,
  reference TEXT NOT NULL,
  principal_transaction_id TEXT UNIQUE REFERENCES transactions(id),
  wallet_entry_id TEXT,
  description TEXT,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (type, reference)
);`,
	`CREATE TABLE settlements (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL UNIQUE,
  vendor_id TEXT NOT NULL,
  total_amount INTEGER NOT NULL,
  platform_fee INTEGER NOT NULL,
  vendor_amount INTEGER NOT NULL,
  currency TEXT NOT NULL,
  payment_gateway TEXT NOT NULL,
  status TEXT NOT NULL,
  transaction_id TEXT,
  settled_at DATETIME NOT NULL,
  created_at DATETIME
);`,
	`CREATE TABLE coupons (
  id TEXT PRIMARY KEY,
  code TEXT NOT NULL UNIQUE,
  discount_type TEXT NOT NULL,
  flat_amount INTEGER NOT NULL DEFAULT 0,
  percent_off NUMERIC NOT NULL DEFAULT 0,
  currency TEXT NOT NULL,
  minimum_order_value INTEGER NOT NULL DEFAULT 0,
  maximum_discount INTEGER,
  usage_per_customer INTEGER,
  usage_count INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL,
  is_hidden INTEGER NOT NULL DEFAULT 0,
  expires_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE coupon_usages (
  id TEXT PRIMARY KEY,
  coupon_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  usable_type TEXT NOT NULL,
  usable_id TEXT NOT NULL,
  created_at DATETIME,
  UNIQUE (coupon_id, usable_type, usable_id)
);`,
	`CREATE TABLE cart_vendors (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  vendor_id TEXT NOT NULL,
  currency TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE cart_items (
  id TEXT PRIMARY KEY,
  cart_vendor_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  product_name TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price INTEGER NOT NULL,
  created_at DATETIME
);`,
	`CREATE TABLE notifications (
  id TEXT PRIMARY KEY,
  recipient_type TEXT NOT NULL,
  recipient_id TEXT NOT NULL,
  kind TEXT NOT NULL,
  title TEXT NOT NULL,
  body TEXT NOT NULL,
  data TEXT,
  read_at DATETIME,
  created_at DATETIME
);`,
	`CREATE TABLE outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`,
	`CREATE TABLE outbox_dlq (
  id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload_json TEXT NOT NULL,
  error_reason TEXT NOT NULL,
  error_message TEXT,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  failed_at DATETIME,
  created_at DATETIME
);`,
}

// Open returns a private in-memory database with the full schema applied.
// A single connection keeps every goroutine on the same database and
// serializes transactions the way a row lock would.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}

// Client wraps Open in the production transaction runner.
func Client(t *testing.T) *db.Client {
	t.Helper()
	return db.Wrap(Open(t))
}
