package coupons

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/marketledger-backend/pkg/db/models"
	"github.com/angelmondragon/marketledger-backend/pkg/enums"
	"github.com/angelmondragon/marketledger-backend/pkg/money"
)

func ngn(minor int64) money.Money { return money.New(minor, enums.CurrencyNGN) }

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }

func activeCoupon() *models.Coupon {
	return &models.Coupon{
		Code:         "SAVE500",
		DiscountType: enums.CouponDiscountFlat,
		FlatAmount:   500,
		Currency:     enums.CurrencyNGN,
		Status:       enums.CouponStatusActive,
	}
}

func TestIsValidForUser(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name   string
		mutate func(c *models.Coupon)
		usage  int64
		want   bool
	}{
		{name: "active", want: true},
		{name: "inactive", mutate: func(c *models.Coupon) { c.Status = enums.CouponStatusInactive }},
		{name: "hidden", mutate: func(c *models.Coupon) { c.IsHidden = true }},
		{name: "expired", mutate: func(c *models.Coupon) { c.ExpiresAt = &past }},
		{name: "not yet expired", mutate: func(c *models.Coupon) { c.ExpiresAt = &future }, want: true},
		{name: "single use consumed", mutate: func(c *models.Coupon) { c.UsagePerCustomer = intPtr(1) }, usage: 1},
		{name: "under per customer limit", mutate: func(c *models.Coupon) { c.UsagePerCustomer = intPtr(2) }, usage: 1, want: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := activeCoupon()
			if tc.mutate != nil {
				tc.mutate(c)
			}
			assert.Equal(t, tc.want, IsValidForUser(c, tc.usage, now))
		})
	}
	assert.False(t, IsValidForUser(nil, 0, now))
}

func TestCalculateDiscount(t *testing.T) {
	flat := activeCoupon()
	assert.Equal(t, ngn(500), CalculateDiscount(flat, ngn(5000)))
	assert.Equal(t, ngn(300), CalculateDiscount(flat, ngn(300)))

	percent := activeCoupon()
	percent.DiscountType = enums.CouponDiscountPercent
	percent.PercentOff = decimal.RequireFromString("12.5")
	assert.Equal(t, ngn(624), CalculateDiscount(percent, ngn(4999)))

	percent.MaximumDiscount = int64Ptr(400)
	assert.Equal(t, ngn(400), CalculateDiscount(percent, ngn(4999)))

	assert.Equal(t, ngn(0), CalculateDiscount(percent, ngn(0)))
	assert.Equal(t, ngn(0), CalculateDiscount(nil, ngn(100)))
}

func TestCanApplyToOrder(t *testing.T) {
	c := activeCoupon()
	c.MinimumOrderValue = 2000
	assert.True(t, CanApplyToOrder(c, ngn(2000)))
	assert.False(t, CanApplyToOrder(c, ngn(1999)))
	assert.False(t, CanApplyToOrder(c, money.New(5000, enums.CurrencyUSD)))
}
