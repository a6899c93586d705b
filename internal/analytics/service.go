package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/angelmondragon/marketledger-backend/internal/analytics/query"
	"github.com/angelmondragon/marketledger-backend/internal/analytics/types"
	"github.com/angelmondragon/marketledger-backend/internal/analytics/writer"
	"github.com/angelmondragon/marketledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketledger-backend/pkg/errors"
	"github.com/angelmondragon/marketledger-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
)

// Service provides settlement reports built from ledger facts.
type Service interface {
	LedgerSummary(ctx context.Context, req types.LedgerSummaryRequest) (*types.LedgerSummary, error)
}

type service struct {
	ledger query.LedgerService
}

// NewService builds an analytics service over the ledger query service.
func NewService(ledger query.LedgerService) (Service, error) {
	if ledger == nil {
		return nil, errors.New("ledger query service required")
	}
	return &service{ledger: ledger}, nil
}

func (s *service) LedgerSummary(ctx context.Context, req types.LedgerSummaryRequest) (*types.LedgerSummary, error) {
	return s.ledger.Summary(ctx, req)
}

type factWriter interface {
	InsertLedgerFact(ctx context.Context, row types.LedgerFactRow) error
}

var _ factWriter = (*writer.BigQueryWriter)(nil)

// LedgerFactHandler turns ledger_fact_recorded envelopes into BigQuery rows.
type LedgerFactHandler struct {
	writer factWriter
}

// NewLedgerFactHandler wires the handler to a row writer.
func NewLedgerFactHandler(w factWriter) (*LedgerFactHandler, error) {
	if w == nil {
		return nil, errors.New("ledger fact writer required")
	}
	return &LedgerFactHandler{writer: w}, nil
}

// Handle decodes the fact and inserts it. Decode failures are validation
// errors so the consumer acks them instead of redelivering.
func (h *LedgerFactHandler) Handle(ctx context.Context, envelope types.Envelope) error {
	if envelope.EventType != enums.EventLedgerFactRecorded {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "unsupported analytics event %q", envelope.EventType)
	}
	var fact payloads.LedgerFactEvent
	if err := json.Unmarshal(envelope.Payload, &fact); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode ledger fact")
	}
	row, err := LedgerFactRow(envelope, fact)
	if err != nil {
		return err
	}
	return h.writer.InsertLedgerFact(ctx, row)
}

// LedgerFactRow maps a decoded fact onto the ledger_facts schema.
func LedgerFactRow(envelope types.Envelope, fact payloads.LedgerFactEvent) (types.LedgerFactRow, error) {
	if strings.TrimSpace(fact.Fact) == "" || fact.TransactionID == uuid.Nil {
		return types.LedgerFactRow{}, pkgerrors.New(pkgerrors.CodeValidation, "ledger fact is missing fact kind or transaction id")
	}
	payload, err := writer.EncodeJSON(envelope.Payload)
	if err != nil {
		return types.LedgerFactRow{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "encode ledger fact payload")
	}

	recordedAt := fact.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = envelope.OccurredAt
	}

	return types.LedgerFactRow{
		EventID:         envelope.EventID,
		Fact:            fact.Fact,
		RecordedAt:      recordedAt.UTC(),
		TransactionID:   fact.TransactionID.String(),
		TransactionType: string(fact.TransactionType),
		WalletID:        fact.WalletID.String(),
		UserID:          fact.UserID.String(),
		OrderID:         uuidString(fact.OrderID),
		VendorID:        uuidString(fact.VendorID),
		AmountMinor:     fact.Amount,
		FeeMinor:        fact.FeeAmount,
		PlatformFee:     fact.PlatformFee,
		VendorAmount:    fact.VendorAmount,
		Currency:        string(fact.Currency),
		Reference:       fact.Reference,
		Payload:         payload,
	}, nil
}

func uuidString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}
