package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketledger-backend/api/middleware"
	"github.com/angelmondragon/marketledger-backend/api/responses"
	"github.com/angelmondragon/marketledger-backend/api/validators"
	"github.com/angelmondragon/marketledger-backend/internal/cart"
	"github.com/angelmondragon/marketledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketledger-backend/pkg/errors"
	"github.com/angelmondragon/marketledger-backend/pkg/logger"
)

type addCartItemRequest struct {
	VendorID    uuid.UUID `json:"vendor_id" validate:"required"`
	Currency    string    `json:"currency" validate:"required"`
	ProductID   uuid.UUID `json:"product_id" validate:"required"`
	ProductName string    `json:"product_name" validate:"required,max=200"`
	Quantity    int       `json:"quantity" validate:"gt=0,max=1000"`
	UnitPrice   int64     `json:"unit_price" validate:"gte=0"`
}

// AddCartItem adds a line to the caller's cart for one vendor.
func AddCartItem(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var payload addCartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		currency, err := enums.ParseCurrency(payload.Currency)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported currency"))
			return
		}
		vendor, err := svc.AddItem(ctx, cart.AddItemInput{
			UserID:      middleware.UserIDFromContext(ctx),
			VendorID:    payload.VendorID,
			Currency:    currency,
			ProductID:   payload.ProductID,
			ProductName: validators.SanitizeString(payload.ProductName, 200),
			Quantity:    payload.Quantity,
			UnitPrice:   payload.UnitPrice,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, vendor)
	}
}

// GetCartVendor returns one of the caller's cart vendors with its items.
func GetCartVendor(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		cartVendorID, err := validators.ParseUUIDParam(r, "cartVendorId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		vendor, err := svc.Get(ctx, nil, middleware.UserIDFromContext(ctx), cartVendorID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, vendor)
	}
}
