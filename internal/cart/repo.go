package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketledger-backend/pkg/db/models"
)

// Repository exposes persistence operations for cart vendors and their items.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindVendorForUser loads a cart vendor with its items, scoped to its owner.
func (r *Repository) FindVendorForUser(ctx context.Context, userID, cartVendorID uuid.UUID) (*models.CartVendor, error) {
	var vendor models.CartVendor
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Where("id = ? AND user_id = ?", cartVendorID, userID).
		First(&vendor).Error
	if err != nil {
		return nil, err
	}
	return &vendor, nil
}

// FindOrCreateVendor returns the user's cart group for vendorID, inserting
// vendor when none exists yet.
func (r *Repository) FindOrCreateVendor(ctx context.Context, userID, vendorID uuid.UUID, vendor *models.CartVendor) (*models.CartVendor, error) {
	var existing models.CartVendor
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND vendor_id = ?", userID, vendorID).
		Order("created_at ASC").
		First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Create(vendor).Error; err != nil {
		return nil, err
	}
	return vendor, nil
}

func (r *Repository) AddItem(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// DeleteVendor removes the cart vendor and its items. It reports false when
// the cart vendor was already gone.
func (r *Repository) DeleteVendor(ctx context.Context, cartVendorID uuid.UUID) (bool, error) {
	if err := r.db.WithContext(ctx).
		Where("cart_vendor_id = ?", cartVendorID).
		Delete(&models.CartItem{}).Error; err != nil {
		return false, err
	}
	result := r.db.WithContext(ctx).
		Where("id = ?", cartVendorID).
		Delete(&models.CartVendor{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
