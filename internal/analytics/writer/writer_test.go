package writer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/angelmondragon/marketledger-backend/internal/analytics/types"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestNewWriterValidation(t *testing.T) {
	if _, err := New(nil, Config{LedgerFactsTable: "ledger_facts"}); err == nil {
		t.Fatal("expected error when client missing")
	}
	if _, err := New(&fakeInserter{}, Config{LedgerFactsTable: " "}); err == nil {
		t.Fatal("expected error when ledger table missing")
	}
}

func TestEncodeJSON(t *testing.T) {
	nj, err := EncodeJSON(map[string]any{"fact": "settlement"})
	if err != nil {
		t.Fatalf("unexpected error encoding json: %v", err)
	}
	if !nj.Valid {
		t.Fatal("expected json to be marked valid")
	}

	nj, err = EncodeJSON(nil)
	if err != nil {
		t.Fatalf("unexpected error for nil json: %v", err)
	}
	if nj.Valid {
		t.Fatal("expected nil json to be invalid")
	}

	raw := json.RawMessage(`{"fact":"refund"}`)
	nj, err = EncodeJSON(raw)
	if err != nil {
		t.Fatalf("unexpected error encoding raw json: %v", err)
	}
	if nj.JSONVal != string(raw) {
		t.Fatalf("expected raw json passed through, got %s", nj.JSONVal)
	}
}

func TestInsertLedgerFactUsesEventIDAsInsertID(t *testing.T) {
	writer, fake := newWriterWithFakeInserter(t)

	if err := writer.InsertLedgerFact(context.Background(), types.LedgerFactRow{EventID: "evt-1", Fact: "payment"}); err != nil {
		t.Fatalf("unexpected error writing row: %v", err)
	}
	if len(fake.calls) != 1 {
		t.Fatalf("expected one insert, got %d", len(fake.calls))
	}
	call := fake.calls[0]
	if call.table != "ledger_facts" {
		t.Fatalf("unexpected table %s", call.table)
	}
	saver, ok := call.rows[0].(*cbigquery.StructSaver)
	if !ok {
		t.Fatalf("expected struct saver, got %T", call.rows[0])
	}
	if saver.InsertID != "evt-1" {
		t.Fatalf("expected insert id evt-1, got %s", saver.InsertID)
	}
}

func TestInsertLedgerFactRequiresEventID(t *testing.T) {
	writer, fake := newWriterWithFakeInserter(t)
	if err := writer.InsertLedgerFact(context.Background(), types.LedgerFactRow{}); err == nil {
		t.Fatal("expected error for missing event id")
	}
	if len(fake.calls) != 0 {
		t.Fatal("expected no insert attempt")
	}
}

func TestWriterRetriesOnTransientError(t *testing.T) {
	writer, fake := newWriterWithFakeInserter(t)
	fake.responses = []error{
		&googleapi.Error{Code: http.StatusServiceUnavailable},
		nil,
	}

	if err := writer.InsertLedgerFact(context.Background(), types.LedgerFactRow{EventID: "1"}); err != nil {
		t.Fatalf("unexpected error writing row: %v", err)
	}
	if len(fake.calls) != 2 {
		t.Fatalf("expected two insert attempts, got %d", len(fake.calls))
	}
}

func TestWriterStopsOnPermanentError(t *testing.T) {
	writer, fake := newWriterWithFakeInserter(t)
	fake.responses = []error{&googleapi.Error{Code: http.StatusBadRequest}}

	if err := writer.InsertLedgerFact(context.Background(), types.LedgerFactRow{EventID: "1"}); err == nil {
		t.Fatal("expected error")
	}
	if len(fake.calls) != 1 {
		t.Fatalf("expected a single attempt, got %d", len(fake.calls))
	}
}

func TestWriterGivesUpAfterMaxAttempts(t *testing.T) {
	writer, fake := newWriterWithFakeInserter(t)
	unavailable := status.Error(codes.Unavailable, "down")
	fake.responses = []error{unavailable, unavailable, unavailable, nil}

	if err := writer.InsertLedgerFact(context.Background(), types.LedgerFactRow{EventID: "1"}); err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if len(fake.calls) != 3 {
		t.Fatalf("expected three attempts, got %d", len(fake.calls))
	}
}

func TestIsRetryableBigQueryError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
		{"http 429", &googleapi.Error{Code: http.StatusTooManyRequests}, true},
		{"http 400", &googleapi.Error{Code: http.StatusBadRequest}, false},
		{"grpc unavailable", status.Error(codes.Unavailable, "x"), true},
		{"grpc invalid", status.Error(codes.InvalidArgument, "x"), false},
		{"row errors all transient", &cbigquery.RowInsertionError{Errors: cbigquery.MultiError{&googleapi.Error{Code: http.StatusServiceUnavailable}}}, true},
		{"row errors mixed", &cbigquery.RowInsertionError{Errors: cbigquery.MultiError{
			&googleapi.Error{Code: http.StatusServiceUnavailable},
			&googleapi.Error{Code: http.StatusBadRequest},
		}}, false},
	}
	for _, tc := range cases {
		if got := isRetryableBigQueryError(tc.err); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

type insertCall struct {
	table string
	rows  []any
}

type fakeInserter struct {
	responses []error
	calls     []insertCall
	index     int
}

func (f *fakeInserter) InsertRows(_ context.Context, table string, rows []any) error {
	f.calls = append(f.calls, insertCall{table: table, rows: rows})
	var err error
	if f.index < len(f.responses) {
		err = f.responses[f.index]
	}
	f.index++
	return err
}

func newWriterWithFakeInserter(t *testing.T) (*BigQueryWriter, *fakeInserter) {
	t.Helper()
	fake := &fakeInserter{}
	writer, err := New(fake, Config{
		LedgerFactsTable: "ledger_facts",
		RetryPolicy: RetryPolicy{
			MaxAttempts:    3,
			InitialBackoff: time.Millisecond,
			MaximumBackoff: 2 * time.Millisecond,
		},
	})
	if err != nil {
		t.Fatalf("construct writer: %v", err)
	}
	return writer, fake
}
