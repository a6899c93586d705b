package orders

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketledger-backend/api/middleware"
	"github.com/angelmondragon/marketledger-backend/api/responses"
	"github.com/angelmondragon/marketledger-backend/api/validators"
	internalorders "github.com/angelmondragon/marketledger-backend/internal/orders"
	"github.com/angelmondragon/marketledger-backend/pkg/db/models"
	"github.com/angelmondragon/marketledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketledger-backend/pkg/errors"
	"github.com/angelmondragon/marketledger-backend/pkg/logger"
	"github.com/angelmondragon/marketledger-backend/pkg/pagination"
)

// Commands is the lifecycle surface the order actions drive.
type Commands interface {
	ConfirmPayment(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID, processorTransactionID *string) (*internalorders.Accepted, error)
	Dispatch(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID, driverID *uuid.UUID) (*internalorders.Accepted, error)
	Complete(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID) (*internalorders.Accepted, error)
	Cancel(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID, reason string) (*internalorders.Accepted, error)
	Advance(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus) (*models.Order, error)
}

var _ Commands = (*internalorders.Commands)(nil)

// List returns the caller's orders, newest first.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		list, err := svc.ListForUser(ctx, middleware.UserIDFromContext(ctx), pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// Detail returns one order to its customer, vendor, assigned driver or staff.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		order, err := svc.Get(ctx, nil, orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if !canView(ctx, order) {
			// same answer as a missing order
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func canView(ctx context.Context, order *models.Order) bool {
	userID := middleware.UserIDFromContext(ctx)
	switch middleware.RoleFromContext(ctx) {
	case middleware.RoleAdmin, middleware.RoleSystem:
		return true
	case middleware.RoleCustomer:
		return order.UserID == userID
	case middleware.RoleVendor:
		return order.VendorID == userID
	case middleware.RoleDriver:
		return order.DriverID != nil && *order.DriverID == userID
	}
	return false
}

type paymentConfirmedRequest struct {
	ProcessorTransactionID *string `json:"processor_transaction_id" validate:"omitempty,max=128"`
}

// PaymentConfirmed relays a verified processor callback.
func PaymentConfirmed(cmds Commands, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var payload paymentConfirmedRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		accepted, err := cmds.ConfirmPayment(ctx, actorFrom(ctx), orderID, payload.ProcessorTransactionID)
		writeAccepted(ctx, logg, w, accepted, err)
	}
}

type dispatchRequest struct {
	DriverID *uuid.UUID `json:"driver_id"`
}

func Dispatch(cmds Commands, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var payload dispatchRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		accepted, err := cmds.Dispatch(ctx, actorFrom(ctx), orderID, payload.DriverID)
		writeAccepted(ctx, logg, w, accepted, err)
	}
}

func Complete(cmds Commands, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		accepted, err := cmds.Complete(ctx, actorFrom(ctx), orderID)
		writeAccepted(ctx, logg, w, accepted, err)
	}
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

func Cancel(cmds Commands, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var payload cancelRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		accepted, err := cmds.Cancel(ctx, actorFrom(ctx), orderID, validators.SanitizeString(payload.Reason, 500))
		writeAccepted(ctx, logg, w, accepted, err)
	}
}

type advanceRequest struct {
	Status enums.OrderStatus `json:"status" validate:"required"`
}

// Advance moves the order through a fulfillment sub-state synchronously.
func Advance(cmds Commands, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var payload advanceRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		order, err := cmds.Advance(ctx, orderID, payload.Status)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

type assignDriverRequest struct {
	InRange bool `json:"in_range"`
}

// AssignDriver lets the calling driver claim the order.
func AssignDriver(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var payload assignDriverRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		order, err := svc.AssignDriver(ctx, orderID, middleware.UserIDFromContext(ctx), payload.InRange)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

type verifyOTPRequest struct {
	OTP string `json:"otp" validate:"required,min=4,max=12"`
}

func VerifyOTP(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var payload verifyOTPRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		ok, err := svc.VerifyDeliveryOTP(ctx, orderID, strings.TrimSpace(payload.OTP))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"valid": ok})
	}
}

func actorFrom(ctx context.Context) internalorders.Actor {
	actor := internalorders.Actor{Role: middleware.RoleFromContext(ctx)}
	if id := middleware.UserIDFromContext(ctx); id != uuid.Nil {
		actor.ID = &id
	}
	return actor
}

// writeAccepted answers 202: the state change happens when the event is handled.
func writeAccepted(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, accepted *internalorders.Accepted, err error) {
	if err != nil {
		responses.WriteError(ctx, logg, w, err)
		return
	}
	responses.WriteSuccessStatus(w, http.StatusAccepted, accepted)
}
