package enums

import "fmt"

// TransactionType classifies a ledger row.
type TransactionType string

const (
	TransactionOrderPayment       TransactionType = "ORDER_PAYMENT"
	TransactionOrderPaymentFee    TransactionType = "ORDER_PAYMENT_FEE"
	TransactionOrderRefund        TransactionType = "ORDER_REFUND"
	TransactionOrderRefundFee     TransactionType = "ORDER_REFUND_FEE"
	TransactionOrderSettlement    TransactionType = "ORDER_SETTLEMENT"
	TransactionOrderSettlementFee TransactionType = "ORDER_SETTLEMENT_FEE"
	TransactionFundWallet         TransactionType = "FUND_WALLET"
	TransactionFundWalletFee      TransactionType = "FUND_WALLET_FEE"
)

var feeTypes = map[TransactionType]TransactionType{
	TransactionOrderPayment:    TransactionOrderPaymentFee,
	TransactionOrderRefund:     TransactionOrderRefundFee,
	TransactionOrderSettlement: TransactionOrderSettlementFee,
	TransactionFundWallet:      TransactionFundWalletFee,
}

var validTransactionTypes = []TransactionType{
	TransactionOrderPayment,
	TransactionOrderPaymentFee,
	TransactionOrderRefund,
	TransactionOrderRefundFee,
	TransactionOrderSettlement,
	TransactionOrderSettlementFee,
	TransactionFundWallet,
	TransactionFundWalletFee,
}

func (t TransactionType) String() string {
	return string(t)
}

func (t TransactionType) IsValid() bool {
	for _, candidate := range validTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// IsFee reports whether the type is a *_FEE companion row.
func (t TransactionType) IsFee() bool {
	for _, fee := range feeTypes {
		if fee == t {
			return true
		}
	}
	return false
}

// FeeType returns the companion fee type of a principal type.
func (t TransactionType) FeeType() (TransactionType, bool) {
	fee, ok := feeTypes[t]
	return fee, ok
}

// Sign is -1 for movements out of the wallet and +1 for movements in.
func (t TransactionType) Sign() int64 {
	switch t {
	case TransactionOrderPayment, TransactionOrderPaymentFee,
		TransactionOrderRefundFee, TransactionOrderSettlementFee, TransactionFundWalletFee:
		return -1
	}
	return 1
}

// DebitTransactionTypes lists every type whose Sign is -1.
func DebitTransactionTypes() []TransactionType {
	out := make([]TransactionType, 0, len(validTransactionTypes))
	for _, t := range validTransactionTypes {
		if t.Sign() < 0 {
			out = append(out, t)
		}
	}
	return out
}

func ParseTransactionType(value string) (TransactionType, error) {
	for _, candidate := range validTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction type %q", value)
}

// TransactionStatus is the ledger row state.
type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "PENDING"
	TransactionStatusSuccessful TransactionStatus = "SUCCESSFUL"
	TransactionStatusFailed     TransactionStatus = "FAILED"
)

func (s TransactionStatus) IsValid() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusSuccessful, TransactionStatusFailed:
		return true
	}
	return false
}

func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusSuccessful || s == TransactionStatusFailed
}
