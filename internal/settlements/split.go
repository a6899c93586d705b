// Package settlements computes and records the vendor payout of a completed
// order.
package settlements

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/marketledger-backend/pkg/money"
)

// Split divides a settled amount between the platform and the vendor.
// PlatformFee + VendorAmount == Total always holds.
type Split struct {
	Total        money.Money
	PlatformFee  money.Money
	VendorAmount money.Money
}

// ComputeSplit charges rate percent of total as commission, rounded up to the
// next minor unit, and pays the vendor the remainder.
func ComputeSplit(total money.Money, rate decimal.Decimal) (Split, error) {
	if total.IsNegative() {
		return Split{}, money.ErrNegativeAmount
	}
	fee := total.PercentCeil(rate)
	if fee.Amount > total.Amount {
		fee = total
	}
	vendor, err := total.Sub(fee)
	if err != nil {
		return Split{}, err
	}
	return Split{Total: total, PlatformFee: fee, VendorAmount: vendor}, nil
}
