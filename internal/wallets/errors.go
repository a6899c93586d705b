package wallets

import (
	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/marketledger-backend/pkg/errors"
	"github.com/angelmondragon/marketledger-backend/pkg/money"
)

// ErrInsufficientFunds is returned by Debit when the amount exceeds the balance.
func ErrInsufficientFunds(walletID uuid.UUID, balance, requested money.Money) error {
	return pkgerrors.Newf(pkgerrors.CodeInsufficientFunds,
		"wallet balance %s is below %s", balance, requested).
		WithDetails(map[string]any{
			"wallet_id": walletID.String(),
			"balance":   balance.Amount,
			"requested": requested.Amount,
			"currency":  requested.Currency,
		})
}

// ErrReconciliationMismatch reports ledger drift: a post-mutation lookup did
// not match what the mutation should have produced.
func ErrReconciliationMismatch(walletID uuid.UUID, reason string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	details["wallet_id"] = walletID.String()
	return pkgerrors.Newf(pkgerrors.CodeReconciliationMismatch, "wallet %s: %s", walletID, reason).
		WithDetails(details)
}
