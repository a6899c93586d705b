package types

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// LedgerFactRow mirrors the ledger_facts BigQuery schema.
type LedgerFactRow struct {
	EventID         string             `bigquery:"event_id"`
	Fact            string             `bigquery:"fact"`
	RecordedAt      time.Time          `bigquery:"recorded_at"`
	TransactionID   string             `bigquery:"transaction_id"`
	TransactionType string             `bigquery:"transaction_type"`
	WalletID        string             `bigquery:"wallet_id"`
	UserID          string             `bigquery:"user_id"`
	OrderID         *string            `bigquery:"order_id"`
	VendorID        *string            `bigquery:"vendor_id"`
	AmountMinor     int64              `bigquery:"amount_minor"`
	FeeMinor        int64              `bigquery:"fee_minor"`
	PlatformFee     *int64             `bigquery:"platform_fee_minor"`
	VendorAmount    *int64             `bigquery:"vendor_amount_minor"`
	Currency        string             `bigquery:"currency"`
	Reference       string             `bigquery:"reference"`
	Payload         cbigquery.NullJSON `bigquery:"payload"`
}

// LedgerSummaryRequest selects the facts summarized for one user or vendor.
type LedgerSummaryRequest struct {
	VendorID string
	Start    time.Time
	End      time.Time
}

// DailyTotal is one day of summed amounts for a fact kind.
type DailyTotal struct {
	Date   string `json:"date"`
	Fact   string `json:"fact"`
	Amount int64  `json:"amount"`
	Count  int64  `json:"count"`
}

// LedgerSummary is the settlement dashboard payload for a vendor.
type LedgerSummary struct {
	VendorID         string       `json:"vendor_id"`
	Daily            []DailyTotal `json:"daily"`
	SettledTotal     int64        `json:"settled_total"`
	PlatformFeeTotal int64        `json:"platform_fee_total"`
}
