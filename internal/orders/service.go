// Package orders owns the order entity and its lifecycle graph. Status
// changes are conditional updates: a write only lands while the row is still
// in the status the caller observed.
package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketledger-backend/pkg/config"
	"github.com/angelmondragon/marketledger-backend/pkg/db"
	"github.com/angelmondragon/marketledger-backend/pkg/db/models"
	"github.com/angelmondragon/marketledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketledger-backend/pkg/errors"
	"github.com/angelmondragon/marketledger-backend/pkg/pagination"
	"github.com/angelmondragon/marketledger-backend/pkg/security"
)

// Service defines order lifecycle operations. Methods taking tx run inside the
// caller's unit of work.
type Service interface {
	Create(ctx context.Context, tx *gorm.DB, input CreateInput) (*models.Order, error)
	Get(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Order, error)
	Lock(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Order, error)
	FindByPaymentReference(ctx context.Context, tx *gorm.DB, reference string) (*models.Order, error)
	MarkPaid(ctx context.Context, tx *gorm.DB, order *models.Order, processorTransactionID *string) error
	MarkDispatched(ctx context.Context, tx *gorm.DB, order *models.Order) (string, error)
	MarkCompleted(ctx context.Context, tx *gorm.DB, order *models.Order) error
	MarkCancelled(ctx context.Context, tx *gorm.DB, order *models.Order) error
	MarkFailed(ctx context.Context, tx *gorm.DB, order *models.Order) error
	MarkSettled(ctx context.Context, tx *gorm.DB, order *models.Order) (bool, error)
	Advance(ctx context.Context, tx *gorm.DB, order *models.Order, to enums.OrderStatus) error
	AssignDriver(ctx context.Context, orderID, driverID uuid.UUID, inRange bool) (*models.Order, error)
	VerifyDeliveryOTP(ctx context.Context, orderID uuid.UUID, otp string) (bool, error)
	ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error)
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

type service struct {
	repo     Repository
	security config.SecurityConfig
	now      func() time.Time
}

// NewService builds an order service. security drives delivery OTP hashing.
func NewService(repo Repository, security config.SecurityConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	return &service{repo: repo, security: security, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *service) Create(ctx context.Context, tx *gorm.DB, input CreateInput) (*models.Order, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	if err := validateCreate(&input); err != nil {
		return nil, err
	}

	now := s.now()
	reference := strings.TrimSpace(input.PaymentReference)
	if reference == "" {
		reference = ulid.Make().String()
	}
	order := &models.Order{
		ID:                     uuid.New(),
		OrderNumber:            ulid.Make().String(),
		UserID:                 input.UserID,
		VendorID:               input.VendorID,
		CartVendorID:           input.CartVendorID,
		Status:                 input.InitialStatus,
		Currency:               input.Currency,
		GrossTotalAmount:       input.GrossTotal,
		CouponDiscount:         input.CouponDiscount,
		NetTotalAmount:         input.NetTotal,
		DeliveryFee:            input.DeliveryFee,
		CouponID:               input.CouponID,
		CouponCode:             input.CouponCode,
		PaymentReference:       reference,
		ProcessorTransactionID: input.ProcessorTransactionID,
		PaidFromWallet:         input.PaidFromWallet,
		Receiver:               input.Receiver,
		IsGift:                 input.IsGift,
		IPAddress:              input.IPAddress,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if order.Status == enums.OrderStatusPaid {
		order.PaidAt = &now
	}
	for _, item := range input.LineItems {
		order.LineItems = append(order.LineItems, models.OrderLineItem{
			OrderID:     order.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			TotalPrice:  item.UnitPrice * int64(item.Quantity),
			CreatedAt:   now,
		})
	}

	if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "order already exists for payment reference").
				WithDetails(map[string]any{"payment_reference": reference})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	return order, nil
}

func validateCreate(input *CreateInput) error {
	switch {
	case input.UserID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	case input.VendorID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	case !input.Currency.IsValid():
		return pkgerrors.Newf(pkgerrors.CodeValidation, "invalid currency %q", input.Currency)
	case input.GrossTotal < 0 || input.CouponDiscount < 0 || input.NetTotal < 0 || input.DeliveryFee < 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "order amounts must not be negative")
	case input.CouponDiscount > input.GrossTotal:
		return pkgerrors.New(pkgerrors.CodeValidation, "coupon discount exceeds gross total")
	case input.NetTotal != input.GrossTotal-input.CouponDiscount:
		return pkgerrors.Newf(pkgerrors.CodeValidation, "net total %d must equal gross %d minus discount %d",
			input.NetTotal, input.GrossTotal, input.CouponDiscount)
	}
	if input.InitialStatus == "" {
		input.InitialStatus = enums.OrderStatusPending
	}
	if input.InitialStatus != enums.OrderStatusPending && input.InitialStatus != enums.OrderStatusPaid {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "orders start PENDING or PAID, not %s", input.InitialStatus)
	}
	for _, item := range input.LineItems {
		if item.Quantity <= 0 || item.UnitPrice < 0 {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "invalid line item for product %s", item.ProductID)
		}
	}
	return nil
}

func (s *service) Get(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Order, error) {
	order, err := s.repo.WithTx(tx).FindByID(ctx, id)
	return order, lookupError(err)
}

// Lock reloads the order inside tx, holding its row lock on postgres.
func (s *service) Lock(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Order, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	order, err := s.repo.WithTx(tx).LockByID(ctx, id)
	return order, lookupError(err)
}

func (s *service) FindByPaymentReference(ctx context.Context, tx *gorm.DB, reference string) (*models.Order, error) {
	order, err := s.repo.WithTx(tx).FindByPaymentReference(ctx, reference)
	return order, lookupError(err)
}

func lookupError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}

// transition moves order to status `to` and merges extra column updates. The
// in-memory order is updated only when the write landed.
func (s *service) transition(ctx context.Context, tx *gorm.DB, order *models.Order, to enums.OrderStatus, extra map[string]any) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	if err := CheckTransition(order.ID, order.Status, to); err != nil {
		return err
	}
	now := s.now()
	updates := map[string]any{"status": to, "updated_at": now}
	for k, v := range extra {
		updates[k] = v
	}

	repo := s.repo.WithTx(tx)
	ok, err := repo.UpdateStatus(ctx, order.ID, order.Status, updates)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if !ok {
		current, err := repo.FindByID(ctx, order.ID)
		if err != nil {
			return lookupError(err)
		}
		return ErrInvalidTransition(order.ID, current.Status, to)
	}
	order.Status = to
	order.UpdatedAt = now
	return nil
}

func (s *service) MarkPaid(ctx context.Context, tx *gorm.DB, order *models.Order, processorTransactionID *string) error {
	now := s.now()
	extra := map[string]any{"paid_at": now}
	if processorTransactionID != nil {
		extra["processor_transaction_id"] = *processorTransactionID
	}
	if err := s.transition(ctx, tx, order, enums.OrderStatusPaid, extra); err != nil {
		return err
	}
	order.PaidAt = &now
	if processorTransactionID != nil {
		order.ProcessorTransactionID = processorTransactionID
	}
	return nil
}

// MarkDispatched returns the clear delivery OTP; only its hash is stored.
func (s *service) MarkDispatched(ctx context.Context, tx *gorm.DB, order *models.Order) (string, error) {
	if order != nil {
		if err := CheckTransition(order.ID, order.Status, enums.OrderStatusDispatched); err != nil {
			return "", err
		}
	}
	otp, err := security.GenerateOTP(s.security.DeliveryOTPDigits)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate delivery otp")
	}
	hash, err := security.HashOTP(otp, s.security)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash delivery otp")
	}
	now := s.now()
	if err := s.transition(ctx, tx, order, enums.OrderStatusDispatched, map[string]any{
		"dispatched_at":     now,
		"delivery_otp_hash": hash,
	}); err != nil {
		return "", err
	}
	order.DispatchedAt = &now
	order.DeliveryOTPHash = &hash
	return otp, nil
}

func (s *service) MarkCompleted(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	now := s.now()
	if err := s.transition(ctx, tx, order, enums.OrderStatusCompleted, map[string]any{"completed_at": now}); err != nil {
		return err
	}
	order.CompletedAt = &now
	return nil
}

func (s *service) MarkCancelled(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	now := s.now()
	if err := s.transition(ctx, tx, order, enums.OrderStatusCancelled, map[string]any{"cancelled_at": now}); err != nil {
		return err
	}
	order.CancelledAt = &now
	return nil
}

func (s *service) MarkFailed(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	now := s.now()
	if err := s.transition(ctx, tx, order, enums.OrderStatusFailed, map[string]any{"failed_at": now}); err != nil {
		return err
	}
	order.FailedAt = &now
	return nil
}

// MarkSettled stamps settled_at once; it reports false if already stamped.
func (s *service) MarkSettled(ctx context.Context, tx *gorm.DB, order *models.Order) (bool, error) {
	if tx == nil {
		return false, errors.New("transaction required")
	}
	now := s.now()
	ok, err := s.repo.WithTx(tx).MarkSettled(ctx, order.ID, now)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order settled")
	}
	if ok {
		order.SettledAt = &now
	}
	return ok, nil
}

// Advance moves an order through the fulfillment sub-states.
func (s *service) Advance(ctx context.Context, tx *gorm.DB, order *models.Order, to enums.OrderStatus) error {
	if !fulfillmentStates[to] {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "%s is not a fulfillment state", to)
	}
	var extra map[string]any
	now := s.now()
	if to == enums.OrderStatusDelivered {
		extra = map[string]any{"delivered_at": now}
	}
	if err := s.transition(ctx, tx, order, to, extra); err != nil {
		return err
	}
	if to == enums.OrderStatusDelivered {
		order.DeliveredAt = &now
	}
	return nil
}

// AssignDriver hands the order to driverID when the range predicate holds and
// no other driver has claimed it. Reassigning the same driver is a no-op.
func (s *service) AssignDriver(ctx context.Context, orderID, driverID uuid.UUID, inRange bool) (*models.Order, error) {
	if driverID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "driver id required")
	}
	if !inRange {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "driver is outside the delivery range")
	}
	ok, err := s.repo.AssignDriver(ctx, orderID, driverID, driverAssignable, s.now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign driver")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, lookupError(err)
	}
	if !ok {
		if order.DriverID != nil && *order.DriverID != driverID {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "order already has a driver")
		}
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "order in status %s cannot take a driver", order.Status)
	}
	return order, nil
}

func (s *service) VerifyDeliveryOTP(ctx context.Context, orderID uuid.UUID, otp string) (bool, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return false, lookupError(err)
	}
	if order.DeliveryOTPHash == nil {
		return false, pkgerrors.New(pkgerrors.CodeStateConflict, "order has no delivery otp")
	}
	ok, err := security.VerifyOTP(otp, *order.DeliveryOTPHash)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify delivery otp")
	}
	return ok, nil
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	orders, next, err := s.repo.ListForUser(ctx, userID, params.Limit, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	list := &OrderList{Orders: orders}
	if next != nil {
		list.NextCursor = pagination.EncodeCursor(*next)
	}
	return list, nil
}

func (s *service) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	orders, err := s.repo.ListStalePending(ctx, cutoff, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stale orders")
	}
	return orders, nil
}
