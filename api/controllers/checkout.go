package controllers

import (
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketledger-backend/api/middleware"
	"github.com/angelmondragon/marketledger-backend/api/responses"
	"github.com/angelmondragon/marketledger-backend/api/validators"
	checkoutsvc "github.com/angelmondragon/marketledger-backend/internal/checkout"
	pkgerrors "github.com/angelmondragon/marketledger-backend/pkg/errors"
	"github.com/angelmondragon/marketledger-backend/pkg/logger"
	"github.com/angelmondragon/marketledger-backend/pkg/outbox/payloads"
)

type checkoutRequest struct {
	CartVendorID           uuid.UUID       `json:"cart_vendor_id" validate:"required"`
	CouponCode             *string         `json:"coupon_code" validate:"omitempty,max=64"`
	WalletUsage            bool            `json:"wallet_usage"`
	DeliveryFee            int64           `json:"delivery_fee" validate:"gte=0"`
	Receiver               receiverRequest `json:"receiver" validate:"required"`
	IsGift                 bool            `json:"is_gift"`
	ProcessorTransactionID *string         `json:"processor_transaction_id" validate:"omitempty,max=128"`
}

type receiverRequest struct {
	Name    string `json:"name" validate:"required,max=120"`
	Phone   string `json:"phone" validate:"required,max=32"`
	Address string `json:"address" validate:"required,max=500"`
	Note    string `json:"note" validate:"max=500"`
}

// Checkout prices the caller's cart vendor and queues it for processing.
// The order itself is created by the processed listener, so this answers 202.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.Execute(ctx, checkoutsvc.Input{
			UserID:       middleware.UserIDFromContext(ctx),
			CartVendorID: payload.CartVendorID,
			CouponCode:   payload.CouponCode,
			WalletUsage:  payload.WalletUsage,
			DeliveryFee:  payload.DeliveryFee,
			Receiver: payloads.Receiver{
				Name:    validators.SanitizeString(payload.Receiver.Name, 120),
				Phone:   validators.SanitizeString(payload.Receiver.Phone, 32),
				Address: validators.SanitizeString(payload.Receiver.Address, 500),
				Note:    validators.SanitizeString(payload.Receiver.Note, 500),
			},
			IsGift:                 payload.IsGift,
			IPAddress:              clientIP(r),
			ProcessorTransactionID: payload.ProcessorTransactionID,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, result)
	}
}

func clientIP(r *http.Request) *string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		first := strings.TrimSpace(strings.Split(fwd, ",")[0])
		if first != "" {
			return &first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || host == "" {
		return nil
	}
	return &host
}
