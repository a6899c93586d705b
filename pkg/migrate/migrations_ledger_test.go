package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketledger-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	require.NoError(t, err)
	require.Len(t, matches, 1, "migration %s", suffix)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	return string(data)
}

func TestMigrationsDirIsValid(t *testing.T) {
	require.NoError(t, migrate.ValidateDir("migrations"))
}

func TestLedgerMigrationGuardsIdempotency(t *testing.T) {
	content := readMigration(t, "create_wallet_ledger")
	for _, sub := range []string{
		"CONSTRAINT ux_transactions_type_reference UNIQUE (type, reference)",
		"CONSTRAINT ux_transactions_principal UNIQUE (principal_transaction_id)",
		"CONSTRAINT ux_wallets_user_id UNIQUE (user_id)",
		"CHECK (balance >= 0)",
		"DROP TABLE IF EXISTS transactions",
	} {
		require.True(t, strings.Contains(content, sub), "missing %q", sub)
	}
}

func TestSettlementMigrationEnforcesSplit(t *testing.T) {
	content := readMigration(t, "create_settlements_coupons")
	for _, sub := range []string{
		"CONSTRAINT ux_settlements_order_id UNIQUE (order_id)",
		"CHECK (platform_fee + vendor_amount = total_amount)",
		"CONSTRAINT ux_coupon_usages_usable UNIQUE (coupon_id, usable_type, usable_id)",
	} {
		require.True(t, strings.Contains(content, sub), "missing %q", sub)
	}
}

func TestOrdersMigrationEnforcesNetTotal(t *testing.T) {
	content := readMigration(t, "create_orders")
	require.Contains(t, content, "net_total_amount = gross_total_amount - coupon_discount")
	require.Contains(t, content, "CONSTRAINT ux_orders_payment_reference UNIQUE (payment_reference)")
}
