package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketledger-backend/pkg/db/models"
)

// CartRepository defines the persistence surface required by the cart service.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	FindVendorForUser(ctx context.Context, userID, cartVendorID uuid.UUID) (*models.CartVendor, error)
	FindOrCreateVendor(ctx context.Context, userID, vendorID uuid.UUID, vendor *models.CartVendor) (*models.CartVendor, error)
	AddItem(ctx context.Context, item *models.CartItem) error
	DeleteVendor(ctx context.Context, cartVendorID uuid.UUID) (bool, error)
}
