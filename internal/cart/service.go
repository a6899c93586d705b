// Package cart stages a user's items per vendor until checkout consumes them.
package cart

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

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes cart operations.
type Service interface {
	AddItem(ctx context.Context, input AddItemInput) (*models.CartVendor, error)
	Get(ctx context.Context, tx *gorm.DB, userID, cartVendorID uuid.UUID) (*models.CartVendor, error)
	Consume(ctx context.Context, tx *gorm.DB, cartVendorID uuid.UUID) (bool, error)
}

// AddItemInput captures one product added to a vendor's cart group. UnitPrice
// is the price snapshot carried through to the order line item.
type AddItemInput struct {
	UserID      uuid.UUID
	VendorID    uuid.UUID
	Currency    enums.Currency
	ProductID   uuid.UUID
	ProductName string
	Quantity    int
	UnitPrice   int64
}

type service struct {
	repo CartRepository
	tx   txRunner
	now  func() time.Time
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo CartRepository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *service) AddItem(ctx context.Context, input AddItemInput) (*models.CartVendor, error) {
	switch {
	case input.UserID == uuid.Nil || input.VendorID == uuid.Nil || input.ProductID == uuid.Nil:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user, vendor and product ids required")
	case !input.Currency.IsValid():
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid currency %q", input.Currency)
	case input.Quantity <= 0:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	case input.UnitPrice < 0:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit price must not be negative")
	case strings.TrimSpace(input.ProductName) == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name required")
	}

	var result *models.CartVendor
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		now := s.now()
		vendor, err := repo.FindOrCreateVendor(ctx, input.UserID, input.VendorID, &models.CartVendor{
			UserID:    input.UserID,
			VendorID:  input.VendorID,
			Currency:  input.Currency,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart vendor")
		}
		if vendor.Currency != input.Currency {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "cart for this vendor is priced in %s", vendor.Currency)
		}
		if err := repo.AddItem(ctx, &models.CartItem{
			CartVendorID: vendor.ID,
			ProductID:    input.ProductID,
			ProductName:  strings.TrimSpace(input.ProductName),
			Quantity:     input.Quantity,
			UnitPrice:    input.UnitPrice,
			CreatedAt:    now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add cart item")
		}
		result, err = repo.FindVendorForUser(ctx, input.UserID, vendor.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload cart vendor")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) Get(ctx context.Context, tx *gorm.DB, userID, cartVendorID uuid.UUID) (*models.CartVendor, error) {
	vendor, err := s.repo.WithTx(tx).FindVendorForUser(ctx, userID, cartVendorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return vendor, nil
}

// Consume deletes a checked-out cart vendor inside the order's transaction.
func (s *service) Consume(ctx context.Context, tx *gorm.DB, cartVendorID uuid.UUID) (bool, error) {
	if tx == nil {
		return false, errors.New("transaction required")
	}
	deleted, err := s.repo.WithTx(tx).DeleteVendor(ctx, cartVendorID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart vendor")
	}
	return deleted, nil
}

// Gross sums the price snapshots of the cart vendor's items.
func Gross(vendor *models.CartVendor) money.Money {
	total := money.Zero(vendor.Currency)
	for _, item := range vendor.Items {
		total.Amount += item.Subtotal()
	}
	return total
}
