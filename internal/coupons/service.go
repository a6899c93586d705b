package coupons

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketledger-backend/pkg/db/models"
	"github.com/angelmondragon/marketledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketledger-backend/pkg/errors"
	"github.com/angelmondragon/marketledger-backend/pkg/money"
)

// Quote is a validated coupon and the discount it grants on an order total.
type Quote struct {
	Coupon   *models.Coupon
	Discount money.Money
}

// Service validates coupons at checkout and records redemptions.
type Service interface {
	Quote(ctx context.Context, code string, userID uuid.UUID, total money.Money) (*Quote, error)
	IsValidForUser(ctx context.Context, tx *gorm.DB, coupon *models.Coupon, userID uuid.UUID) (bool, error)
	Revalidate(ctx context.Context, tx *gorm.DB, couponID, userID uuid.UUID) (*models.Coupon, error)
	RecordUsage(ctx context.Context, tx *gorm.DB, couponID, userID, orderID uuid.UUID) (bool, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupons repository required")
	}
	return &service{repo: repo, now: func() time.Time { return time.Now().UTC() }}, nil
}

func invalidCoupon(code, reason string) error {
	return pkgerrors.Newf(pkgerrors.CodeInvalidCoupon, "coupon %s %s", code, reason).
		WithDetails(map[string]any{"code": code, "reason": reason})
}

// Quote validates code for the user and order total and prices the discount.
func (s *service) Quote(ctx context.Context, code string, userID uuid.UUID, total money.Money) (*Quote, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code required")
	}
	coupon, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invalidCoupon(code, "does not exist")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}
	valid, err := s.IsValidForUser(ctx, nil, coupon, userID)
	if err != nil {
		return nil, err
	}
	if !valid {
		return nil, invalidCoupon(code, "is not valid for this user")
	}
	if !CanApplyToOrder(coupon, total) {
		return nil, invalidCoupon(code, fmt.Sprintf("requires a minimum order of %s",
			money.New(coupon.MinimumOrderValue, coupon.Currency)))
	}
	return &Quote{Coupon: coupon, Discount: CalculateDiscount(coupon, total)}, nil
}

func (s *service) IsValidForUser(ctx context.Context, tx *gorm.DB, coupon *models.Coupon, userID uuid.UUID) (bool, error) {
	if coupon == nil {
		return false, nil
	}
	used, err := s.repo.WithTx(tx).CountUserUsages(ctx, coupon.ID, userID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count coupon usages")
	}
	return IsValidForUser(coupon, used, s.now()), nil
}

// Revalidate locks the coupon row and checks it is still redeemable by userID.
// Two checkouts quoted against the same per-customer allowance serialize on
// the lock, so the second sees the first usage row.
func (s *service) Revalidate(ctx context.Context, tx *gorm.DB, couponID, userID uuid.UUID) (*models.Coupon, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	coupon, err := s.repo.WithTx(tx).LockByID(ctx, couponID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invalidCoupon(couponID.String(), "does not exist")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock coupon")
	}
	valid, err := s.IsValidForUser(ctx, tx, coupon, userID)
	if err != nil {
		return nil, err
	}
	if !valid {
		return nil, invalidCoupon(coupon.Code, "is not valid for this user")
	}
	return coupon, nil
}

// RecordUsage redeems the coupon for orderID exactly once. usage_count grows
// only when the usage row is new; the boolean reports that case.
func (s *service) RecordUsage(ctx context.Context, tx *gorm.DB, couponID, userID, orderID uuid.UUID) (bool, error) {
	if tx == nil {
		return false, errors.New("transaction required")
	}
	repo := s.repo.WithTx(tx)
	created, err := repo.CreateUsage(ctx, &models.CouponUsage{
		CouponID:   couponID,
		UserID:     userID,
		UsableType: enums.CouponUsableOrder,
		UsableID:   orderID,
		CreatedAt:  s.now(),
	})
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record coupon usage")
	}
	if !created {
		return false, nil
	}
	if err := repo.IncrementUsage(ctx, couponID); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment coupon usage")
	}
	return true, nil
}
