package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketledger-backend/api/middleware"
	"github.com/angelmondragon/marketledger-backend/api/responses"
	"github.com/angelmondragon/marketledger-backend/api/validators"
	"github.com/angelmondragon/marketledger-backend/internal/transactions"
	"github.com/angelmondragon/marketledger-backend/internal/wallets"
	"github.com/angelmondragon/marketledger-backend/pkg/db/models"
	"github.com/angelmondragon/marketledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketledger-backend/pkg/errors"
	"github.com/angelmondragon/marketledger-backend/pkg/logger"
	"github.com/angelmondragon/marketledger-backend/pkg/money"
)

const recentTransactionLimit = 20

// Funding is the FUND_WALLET surface behind the wallet routes.
type Funding interface {
	InitiateFunding(ctx context.Context, userID uuid.UUID, amount money.Money) (*models.Transaction, error)
	ConfirmFunding(ctx context.Context, reference string) (*models.Transaction, error)
}

var _ Funding = (*wallets.FundingService)(nil)

type fundWalletRequest struct {
	Amount   int64  `json:"amount" validate:"gt=0"`
	Currency string `json:"currency" validate:"required"`
}

type fundingResponse struct {
	TransactionID uuid.UUID               `json:"transaction_id"`
	Reference     string                  `json:"reference"`
	Status        enums.TransactionStatus `json:"status"`
	Amount        int64                   `json:"amount"`
	Currency      enums.Currency          `json:"currency"`
}

func newFundingResponse(txn *models.Transaction) fundingResponse {
	return fundingResponse{
		TransactionID: txn.ID,
		Reference:     txn.Reference,
		Status:        txn.Status,
		Amount:        txn.Amount,
		Currency:      txn.Currency,
	}
}

// FundWallet opens a PENDING funding whose reference goes to the processor.
func FundWallet(funding Funding, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID, err := walletOwner(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var payload fundWalletRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		currency, err := enums.ParseCurrency(payload.Currency)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported currency"))
			return
		}
		txn, err := funding.InitiateFunding(ctx, userID, money.New(payload.Amount, currency))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newFundingResponse(txn))
	}
}

// ConfirmFunding relays the processor's verified funding callback.
func ConfirmFunding(funding Funding, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		reference, err := validators.RequireParam(r, "reference", 64)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		txn, err := funding.ConfirmFunding(ctx, reference)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newFundingResponse(txn))
	}
}

type walletResponse struct {
	Wallet       *models.Wallet       `json:"wallet"`
	Transactions []models.Transaction `json:"recent_transactions"`
}

// GetWallet returns the balance with the most recent ledger rows.
func GetWallet(svc wallets.Service, txns transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID, err := walletOwner(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		wallet, err := svc.Get(ctx, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		recent, err := txns.ListByWallet(ctx, wallet.ID, recentTransactionLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, walletResponse{Wallet: wallet, Transactions: recent})
	}
}

// AuditWallet recomputes the balance from the ledger. A mismatch is a
// finding, not a failure of the request.
func AuditWallet(svc wallets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID, err := validators.ParseUUIDParam(r, "userId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		wallet, err := svc.Get(ctx, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		err = svc.VerifyBalance(ctx, nil, wallet.ID)
		switch {
		case err == nil:
			responses.WriteSuccess(w, map[string]any{"wallet_id": wallet.ID, "consistent": true})
		case pkgerrors.IsCode(err, pkgerrors.CodeReconciliationMismatch):
			if logg != nil {
				logg.Warn(logg.WithField(ctx, "wallet_id", wallet.ID.String()), "wallet audit mismatch")
			}
			responses.WriteSuccess(w, map[string]any{
				"wallet_id":  wallet.ID,
				"consistent": false,
				"details":    pkgerrors.As(err).Details(),
			})
		default:
			responses.WriteError(ctx, logg, w, err)
		}
	}
}

// walletOwner resolves {userId}; customers may only address their own wallet.
func walletOwner(r *http.Request) (uuid.UUID, error) {
	userID, err := validators.ParseUUIDParam(r, "userId")
	if err != nil {
		return uuid.Nil, err
	}
	ctx := r.Context()
	switch middleware.RoleFromContext(ctx) {
	case middleware.RoleAdmin, middleware.RoleSystem:
		return userID, nil
	}
	if middleware.UserIDFromContext(ctx) != userID {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "wallet belongs to another user")
	}
	return userID, nil
}
