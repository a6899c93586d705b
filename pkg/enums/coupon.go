package enums

import "fmt"

// CouponDiscountType selects how a coupon value is applied.
type CouponDiscountType string

const (
	CouponDiscountFlat    CouponDiscountType = "flat"
	CouponDiscountPercent CouponDiscountType = "percent"
)

func (t CouponDiscountType) IsValid() bool {
	return t == CouponDiscountFlat || t == CouponDiscountPercent
}

func ParseCouponDiscountType(value string) (CouponDiscountType, error) {
	t := CouponDiscountType(value)
	if !t.IsValid() {
		return "", fmt.Errorf("invalid coupon discount type %q", value)
	}
	return t, nil
}

// CouponStatus gates whether a coupon can be redeemed at all.
type CouponStatus string

const (
	CouponStatusActive   CouponStatus = "active"
	CouponStatusInactive CouponStatus = "inactive"
)

// CouponUsableType names the entity a coupon usage points at.
type CouponUsableType string

const (
	CouponUsableOrder CouponUsableType = "order"
)

func (t CouponUsableType) IsValid() bool {
	return t == CouponUsableOrder
}
