package enums

// SettlementStatus tracks whether vendor proceeds reached the wallet.
type SettlementStatus string

const (
	SettlementStatusSettled SettlementStatus = "settled"
)
