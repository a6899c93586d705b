package enums

import "testing"

func TestTransactionTypeSignsAndFees(t *testing.T) {
	if TransactionOrderPayment.Sign() != -1 {
		t.Fatalf("payment must debit")
	}
	for _, credit := range []TransactionType{TransactionOrderRefund, TransactionOrderSettlement, TransactionFundWallet} {
		if credit.Sign() != 1 {
			t.Fatalf("%s must credit", credit)
		}
	}
	fee, ok := TransactionOrderSettlement.FeeType()
	if !ok || fee != TransactionOrderSettlementFee {
		t.Fatalf("unexpected fee type %s", fee)
	}
	if _, ok := TransactionOrderSettlementFee.FeeType(); ok {
		t.Fatalf("fee rows never carry a fee")
	}
	if !TransactionOrderRefundFee.IsFee() || TransactionOrderRefund.IsFee() {
		t.Fatalf("IsFee classification wrong")
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	for _, s := range []OrderStatus{OrderStatusCompleted, OrderStatusCancelled, OrderStatusFailed} {
		if !s.IsTerminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
	if OrderStatusPaid.IsTerminal() {
		t.Fatalf("PAID is not terminal")
	}
	if _, err := ParseOrderStatus("SHIPPED"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestCurrencyExponent(t *testing.T) {
	c, err := ParseCurrency(" ngn ")
	if err != nil || c != CurrencyNGN {
		t.Fatalf("expected NGN, got %q (%v)", c, err)
	}
	if CurrencyJPY.MinorUnitExponent() != 0 {
		t.Fatalf("JPY has no minor unit")
	}
}
