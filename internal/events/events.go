package events

import (
	"context"
	"sync"
	"time"
)

// Routing keys for outbound notifications consumed by off-chain indexers
// and the UI.
const (
	KeyTransferInitiated = "transfer.initiated"
	KeyTransferCompleted = "transfer.completed"
	KeyFeeRateChanged    = "fee.rate_changed"
	KeyPaused            = "ledger.paused"
	KeyUnpaused          = "ledger.unpaused"
)

// TransferInitiated is emitted once per created transfer request.
type TransferInitiated struct {
	ID             string    `json:"id"`
	Sender         string    `json:"sender"`
	Asset          string    `json:"asset"`
	NetAmount      string    `json:"netAmount"`
	RecipientPhone string    `json:"recipientPhone"`
	CountryCode    string    `json:"countryCode"`
	ProviderCode   string    `json:"providerCode"`
	CreatedAt      time.Time `json:"createdAt"`
}

// TransferCompleted is emitted when an operator attests an outcome.
type TransferCompleted struct {
	ID            string `json:"id"`
	Success       bool   `json:"success"`
	SettlementRef string `json:"settlementRef"`
}

type FeeRateChanged struct {
	OldRateBps uint32 `json:"oldRateBps"`
	NewRateBps uint32 `json:"newRateBps"`
}

type PauseChanged struct {
	Paused bool `json:"paused"`
}

// Publisher delivers events to the outside world. Delivery is best-effort:
// the ledger commits before publishing and never unwinds on a publish error.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// NopPublisher drops all events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }

// Published is a captured event, for assertions in tests.
type Published struct {
	RoutingKey string
	Event      any
}

// MemoryPublisher records events in order. Testing only.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Published
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (m *MemoryPublisher) Publish(_ context.Context, routingKey string, event any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, Published{RoutingKey: routingKey, Event: event})
	return nil
}

func (m *MemoryPublisher) Events() []Published {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Published, len(m.events))
	copy(out, m.events)
	return out
}
