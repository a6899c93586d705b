// Package coupons validates and prices discount codes and records their
// redemption against orders.
package coupons

import (
	"time"

	"github.com/angelmondragon/marketledger-backend/pkg/db/models"
	"github.com/angelmondragon/marketledger-backend/pkg/enums"
	"github.com/angelmondragon/marketledger-backend/pkg/money"
)

// IsValidForUser reports whether userUsage prior redemptions still allow the
// user to apply coupon at now.
func IsValidForUser(coupon *models.Coupon, userUsage int64, now time.Time) bool {
	if coupon == nil || coupon.Status != enums.CouponStatusActive || coupon.IsHidden {
		return false
	}
	if coupon.ExpiresAt != nil && !now.Before(*coupon.ExpiresAt) {
		return false
	}
	if coupon.UsagePerCustomer != nil && userUsage >= int64(*coupon.UsagePerCustomer) {
		return false
	}
	return true
}

// CanApplyToOrder reports whether total meets the coupon's minimum order value.
func CanApplyToOrder(coupon *models.Coupon, total money.Money) bool {
	if coupon == nil || coupon.Currency != total.Currency {
		return false
	}
	return total.Amount >= coupon.MinimumOrderValue
}

// CalculateDiscount never returns more than total. Percent discounts round
// down and are capped by MaximumDiscount when set.
func CalculateDiscount(coupon *models.Coupon, total money.Money) money.Money {
	zero := money.Zero(total.Currency)
	if coupon == nil || total.Amount <= 0 {
		return zero
	}
	var discount money.Money
	switch coupon.DiscountType {
	case enums.CouponDiscountFlat:
		discount = money.New(coupon.FlatAmount, total.Currency)
	case enums.CouponDiscountPercent:
		discount = total.PercentFloor(coupon.PercentOff)
		if coupon.MaximumDiscount != nil && discount.Amount > *coupon.MaximumDiscount {
			discount = money.New(*coupon.MaximumDiscount, total.Currency)
		}
	default:
		return zero
	}
	if discount.Amount < 0 {
		return zero
	}
	if discount.Amount > total.Amount {
		return total
	}
	return discount
}
