package settlements

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
)

// RecordInput is the immutable payout of one order.
type RecordInput struct {
	Order         *models.Order
	Split         Split
	TransactionID uuid.UUID
}

type Service interface {
	Record(ctx context.Context, tx *gorm.DB, input RecordInput) (*models.Settlement, error)
	ForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Settlement, error)
}

type service struct {
	repo    Repository
	gateway string
	now     func() time.Time
}

// NewService records settlements tagged with the configured payment gateway.
func NewService(repo Repository, gateway string) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("settlements repository required")
	}
	gateway = strings.TrimSpace(gateway)
	if gateway == "" {
		return nil, fmt.Errorf("payment gateway required")
	}
	return &service{repo: repo, gateway: gateway, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Record writes the settlement row. A second settlement for the same order is
// a CONFLICT; callers guard against it with the order status.
func (s *service) Record(ctx context.Context, tx *gorm.DB, input RecordInput) (*models.Settlement, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	order := input.Order
	if order == nil || order.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	split := input.Split
	if split.PlatformFee.Amount+split.VendorAmount.Amount != split.Total.Amount {
		return nil, pkgerrors.Newf(pkgerrors.CodeReconciliationMismatch,
			"settlement split %d + %d does not add up to %d",
			split.PlatformFee.Amount, split.VendorAmount.Amount, split.Total.Amount)
	}
	if split.Total.Currency != order.Currency {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "settlement currency %s does not match order %s",
			split.Total.Currency, order.Currency)
	}

	now := s.now()
	row := &models.Settlement{
		OrderID:        order.ID,
		VendorID:       order.VendorID,
		TotalAmount:    split.Total.Amount,
		PlatformFee:    split.PlatformFee.Amount,
		VendorAmount:   split.VendorAmount.Amount,
		Currency:       split.Total.Currency,
		PaymentGateway: s.gateway,
		Status:         enums.SettlementStatusSettled,
		SettledAt:      now,
		CreatedAt:      now,
	}
	if input.TransactionID != uuid.Nil {
		id := input.TransactionID
		row.TransactionID = &id
	}
	created, err := s.repo.WithTx(tx).CreateIfAbsent(ctx, row)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record settlement")
	}
	if !created {
		return nil, pkgerrors.Newf(pkgerrors.CodeConflict, "order %s is already settled", order.ID)
	}
	return row, nil
}

func (s *service) ForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Settlement, error) {
	row, err := s.repo.WithTx(tx).FindByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "settlement not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load settlement")
	}
	return row, nil
}
