package listeners

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketledger-backend/internal/settlements"
	"github.com/angelmondragon/marketledger-backend/internal/transactions"
	"github.com/angelmondragon/marketledger-backend/pkg/db/models"
	"github.com/angelmondragon/marketledger-backend/pkg/enums"
	"github.com/angelmondragon/marketledger-backend/pkg/money"
	"github.com/angelmondragon/marketledger-backend/pkg/outbox"
	"github.com/angelmondragon/marketledger-backend/pkg/outbox/payloads"
)

// posting is one wallet movement booked against an order.
type posting struct {
	order   *models.Order
	userID  uuid.UUID
	typ     enums.TransactionType
	amount  money.Money
	fact    string
	split   *settlements.Split
	summary string
}

// book moves amount through the user's wallet and writes the matching
// SUCCESSFUL transaction, its zero fee row, the entry link and a ledger fact.
func (l *Listeners) book(ctx context.Context, tx *gorm.DB, p posting) (*models.Transaction, error) {
	wallet, err := l.wallets.EnsureWallet(ctx, tx, p.userID, p.amount.Currency)
	if err != nil {
		return nil, err
	}
	reference := p.order.PaymentReference

	var entry *models.WalletEntry
	expected := p.amount
	if p.typ.Sign() < 0 {
		expected = p.amount.Neg()
		entry, err = l.wallets.Debit(ctx, tx, wallet, p.amount, reference)
	} else {
		entry, err = l.wallets.Deposit(ctx, tx, wallet, p.amount, reference)
	}
	if err != nil {
		return nil, err
	}
	if err := l.wallets.VerifyLatestEntry(ctx, tx, wallet, expected); err != nil {
		return nil, err
	}

	txn, err := l.txns.CreateSuccessful(ctx, tx, transactions.CreateInput{
		Wallet:      wallet,
		Type:        p.typ,
		Amount:      p.amount,
		Reference:   reference,
		Description: fmt.Sprintf("%s for order %s", p.summary, p.order.OrderNumber),
	})
	if err != nil {
		return nil, err
	}
	fee, err := l.txns.CreateSuccessfulFee(ctx, tx, txn, money.Zero(p.amount.Currency))
	if err != nil {
		return nil, err
	}
	if err := l.txns.AttachWalletTransactionFor(ctx, tx, txn, wallet, entry.ID); err != nil {
		return nil, err
	}

	orderID, vendorID := p.order.ID, p.order.VendorID
	fact := payloads.LedgerFactEvent{
		Fact:            p.fact,
		TransactionID:   txn.ID,
		TransactionType: txn.Type,
		WalletID:        wallet.ID,
		UserID:          p.userID,
		OrderID:         &orderID,
		VendorID:        &vendorID,
		Amount:          txn.Amount,
		FeeAmount:       fee.Amount,
		Currency:        txn.Currency,
		Reference:       txn.Reference,
		RecordedAt:      txn.CreatedAt,
	}
	if p.split != nil {
		platformFee, vendorAmount := p.split.PlatformFee.Amount, p.split.VendorAmount.Amount
		fact.PlatformFee, fact.VendorAmount = &platformFee, &vendorAmount
	}
	if err := l.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventLedgerFactRecorded,
		AggregateType: enums.AggregateTransaction,
		AggregateID:   txn.ID,
		Data:          fact,
	}); err != nil {
		return nil, err
	}
	return txn, nil
}
