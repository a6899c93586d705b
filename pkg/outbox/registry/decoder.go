package registry

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/angelmondragon/marketledger-backend/pkg/enums"
	"github.com/angelmondragon/marketledger-backend/pkg/outbox/payloads"
)

type decoderFunc func(payload json.RawMessage) (interface{}, error)

type registryKey struct {
	eventType enums.OutboxEventType
	version   int
}

// DecoderRegistry stores versioned payload decoders for consumers.
type DecoderRegistry struct {
	mtx      sync.RWMutex
	registry map[registryKey]decoderFunc
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{registry: make(map[registryKey]decoderFunc)}
}

// NewLifecycleDecoders registers v1 decoders for every event the worker consumes.
func NewLifecycleDecoders() *DecoderRegistry {
	reg := NewDecoderRegistry()
	reg.Register(enums.EventOrderProcessed, 1, DecodeJSON[payloads.OrderProcessedEvent])
	reg.Register(enums.EventOrderPaymentSuccessful, 1, DecodeJSON[payloads.OrderPaymentSuccessfulEvent])
	reg.Register(enums.EventOrderDispatched, 1, DecodeJSON[payloads.OrderDispatchedEvent])
	reg.Register(enums.EventOrderCompleted, 1, DecodeJSON[payloads.OrderCompletedEvent])
	reg.Register(enums.EventOrderCancelled, 1, DecodeJSON[payloads.OrderCancelledEvent])
	reg.Register(enums.EventLedgerFactRecorded, 1, DecodeJSON[payloads.LedgerFactEvent])
	return reg
}

func (r *DecoderRegistry) Register(eventType enums.OutboxEventType, version int, decoder decoderFunc) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.registry[registryKey{eventType: eventType, version: version}] = decoder
}

// Decode runs the decoder registered for the event type and version. Failures
// are non-retryable: a redelivery carries the same bytes.
func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (interface{}, error) {
	r.mtx.RLock()
	decoder, ok := r.registry[registryKey{eventType: eventType, version: version}]
	r.mtx.RUnlock()
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("decoder not registered for %s@v%d", eventType, version))
	}
	out, err := decoder(payload)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s@v%d: %w", eventType, version, err))
	}
	return out, nil
}

// DecodeJSON unmarshals payload into a new *T.
func DecodeJSON[T any](payload json.RawMessage) (interface{}, error) {
	out := new(T)
	if err := json.Unmarshal(payload, out); err != nil {
		return nil, err
	}
	return out, nil
}
