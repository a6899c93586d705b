// Package checkout prices a cart vendor, validates it synchronously and hands
// it to the order pipeline as an OrderProcessed event.
package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketledger-backend/internal/cart"
	"github.com/angelmondragon/marketledger-backend/internal/coupons"
	"github.com/angelmondragon/marketledger-backend/internal/wallets"
	"github.com/angelmondragon/marketledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketledger-backend/pkg/errors"
	"github.com/angelmondragon/marketledger-backend/pkg/logger"
	"github.com/angelmondragon/marketledger-backend/pkg/money"
	"github.com/angelmondragon/marketledger-backend/pkg/outbox"
	"github.com/angelmondragon/marketledger-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// submissionChecker reports whether a live event is queued for an aggregate.
type submissionChecker interface {
	InFlightTx(tx *gorm.DB, eventType enums.OutboxEventType, aggregateType enums.OutboxAggregateType, aggregateID uuid.UUID) (bool, error)
}

// Service executes checkout orchestration.
type Service interface {
	Execute(ctx context.Context, input Input) (*Result, error)
}

// Input captures a customer's checkout request for one cart vendor.
type Input struct {
	UserID                 uuid.UUID
	CartVendorID           uuid.UUID
	CouponCode             *string
	WalletUsage            bool
	DeliveryFee            int64
	Receiver               payloads.Receiver
	IsGift                 bool
	IPAddress              *string
	ProcessorTransactionID *string
}

// Result is the priced checkout handed back to the caller. PaymentReference
// is what the payment processor reports back on its callback.
type Result struct {
	CartVendorID     uuid.UUID      `json:"cart_vendor_id"`
	PaymentReference string         `json:"payment_reference"`
	Currency         enums.Currency `json:"currency"`
	GrossTotal       int64          `json:"gross_total"`
	CouponDiscount   int64          `json:"coupon_discount"`
	NetTotal         int64          `json:"net_total"`
	DeliveryFee      int64          `json:"delivery_fee"`
	AmountDue        int64          `json:"amount_due"`
	WalletUsage      bool           `json:"wallet_usage"`
}

// ServiceParams wires the checkout service.
type ServiceParams struct {
	DB          txRunner
	Cart        cart.Service
	Coupons     coupons.Service
	Wallets     wallets.Service
	Outbox      outbox.Emitter
	Submissions submissionChecker
	Logger      *logger.Logger
}

type service struct {
	db          txRunner
	cart        cart.Service
	coupons     coupons.Service
	wallets     wallets.Service
	outbox      outbox.Emitter
	submissions submissionChecker
	logg        *logger.Logger
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.DB == nil:
		return nil, fmt.Errorf("tx runner required")
	case params.Cart == nil:
		return nil, fmt.Errorf("cart service required")
	case params.Coupons == nil:
		return nil, fmt.Errorf("coupons service required")
	case params.Wallets == nil:
		return nil, fmt.Errorf("wallets service required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case params.Submissions == nil:
		return nil, fmt.Errorf("submission checker required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		db:          params.DB,
		cart:        params.Cart,
		coupons:     params.Coupons,
		wallets:     params.Wallets,
		outbox:      params.Outbox,
		submissions: params.Submissions,
		logg:        params.Logger,
	}, nil
}

func (s *service) Execute(ctx context.Context, input Input) (*Result, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if input.CartVendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart vendor id required")
	}
	if input.DeliveryFee < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery fee must not be negative")
	}
	if strings.TrimSpace(input.Receiver.Name) == "" || strings.TrimSpace(input.Receiver.Address) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "receiver name and address required")
	}

	cartVendor, err := s.cart.Get(ctx, nil, input.UserID, input.CartVendorID)
	if err != nil {
		return nil, err
	}
	if len(cartVendor.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart contains no items")
	}

	gross := cart.Gross(cartVendor)
	discount := money.Zero(gross.Currency)
	var couponID *uuid.UUID
	var couponCode *string
	if input.CouponCode != nil && strings.TrimSpace(*input.CouponCode) != "" {
		quote, err := s.coupons.Quote(ctx, *input.CouponCode, input.UserID, gross)
		if err != nil {
			return nil, err
		}
		discount = quote.Discount
		id, code := quote.Coupon.ID, quote.Coupon.Code
		couponID, couponCode = &id, &code
	}
	net, err := gross.Sub(discount)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "price cart")
	}
	due, err := net.Add(money.New(input.DeliveryFee, gross.Currency))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "price cart")
	}

	if input.WalletUsage {
		if err := s.checkWallet(ctx, input.UserID, due); err != nil {
			return nil, err
		}
	}

	result := &Result{
		CartVendorID:     cartVendor.ID,
		PaymentReference: ulid.Make().String(),
		Currency:         gross.Currency,
		GrossTotal:       gross.Amount,
		CouponDiscount:   discount.Amount,
		NetTotal:         net.Amount,
		DeliveryFee:      input.DeliveryFee,
		AmountDue:        due.Amount,
		WalletUsage:      input.WalletUsage,
	}
	userID := input.UserID
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		submitted, err := s.submissions.InFlightTx(tx, enums.EventOrderProcessed, enums.AggregateCartVendor, cartVendor.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check checkout submission")
		}
		if submitted {
			return pkgerrors.New(pkgerrors.CodeConflict, "checkout already submitted for this cart")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderProcessed,
			AggregateType: enums.AggregateCartVendor,
			AggregateID:   cartVendor.ID,
			Actor:         &outbox.ActorRef{Role: "customer", ID: &userID},
			Data: payloads.OrderProcessedEvent{
				UserID:                 input.UserID,
				VendorID:               cartVendor.VendorID,
				CartVendorID:           cartVendor.ID,
				GrossTotal:             result.GrossTotal,
				CouponDiscount:         result.CouponDiscount,
				NetTotal:               result.NetTotal,
				DeliveryFee:            result.DeliveryFee,
				Currency:               result.Currency,
				PaymentReference:       result.PaymentReference,
				CouponID:               couponID,
				CouponCode:             couponCode,
				ProcessorTransactionID: input.ProcessorTransactionID,
				Receiver:               input.Receiver,
				IsGift:                 input.IsGift,
				WalletUsage:            input.WalletUsage,
				IPAddress:              input.IPAddress,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"user_id":           input.UserID.String(),
		"cart_vendor_id":    cartVendor.ID.String(),
		"payment_reference": result.PaymentReference,
	})
	s.logg.Info(logCtx, "checkout submitted")
	return result, nil
}

// checkWallet fails fast when the wallet cannot cover due; the processed
// listener debits under its lock and rechecks.
func (s *service) checkWallet(ctx context.Context, userID uuid.UUID, due money.Money) error {
	wallet, err := s.wallets.Get(ctx, userID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return wallets.ErrInsufficientFunds(uuid.Nil, money.Zero(due.Currency), due)
		}
		return err
	}
	if wallet.Currency != due.Currency {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "wallet currency %s does not match cart %s", wallet.Currency, due.Currency)
	}
	if wallet.Balance < due.Amount {
		return wallets.ErrInsufficientFunds(wallet.ID, money.New(wallet.Balance, wallet.Currency), due)
	}
	return nil
}
