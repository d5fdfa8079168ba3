package ledger

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"remitrails/internal/events"
	"remitrails/internal/funding"
	"remitrails/internal/oracle"
)

const (
	// MaxFeeRateBps is the hard platform fee ceiling, 5% in basis points.
	MaxFeeRateBps = 500

	feeRateDenominator = 10_000

	// minPhoneLength is a shape check only; full E.164 validation belongs to
	// the off-chain provider integration.
	minPhoneLength = 10
)

// MinTransferAmount is the request floor for the native asset, 0.001 units
// in wei. Token floors scale to the token's own decimals via minAmount.
var MinTransferAmount = big.NewInt(1_000_000_000_000_000)

// minAmount returns the 0.001-unit floor in an asset's smallest unit.
func minAmount(decimals uint8) *big.Int {
	if decimals < 3 {
		return big.NewInt(1)
	}
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals-3)), nil)
}

// Config carries construction-time parameters. Validation failures reject
// construction outright.
type Config struct {
	Owner           common.Address
	FeeCollector    common.Address
	FeeRateBps      uint32
	NativePriceFeed oracle.Feed
	Countries       []string
	Providers       []string
}

// Ledger is the transfer-settlement state machine. All mutable state lives
// behind one lock: every state-changing call runs to completion with no
// interleaving, and external value movements are sub-steps whose failure
// unwinds the whole call before anything is committed.
type Ledger struct {
	mu sync.RWMutex

	owner        common.Address
	operators    map[common.Address]bool
	paused       bool
	feeRateBps   uint32
	feeCollector common.Address

	registry *SupportRegistry
	oracle   *oracle.Adapter
	mover    funding.Mover
	events   events.Publisher

	records  map[common.Hash]*TransferRequest
	escrow   map[common.Address]*big.Int
	totalTxs uint64
	usdTotal *big.Int
	sequence uint64

	now func() time.Time
	log zerolog.Logger
}

func New(cfg Config, mover funding.Mover, publisher events.Publisher, log zerolog.Logger) (*Ledger, error) {
	if (cfg.Owner == common.Address{}) {
		return nil, fmt.Errorf("owner: %w", ErrInvalidAddress)
	}
	if (cfg.FeeCollector == common.Address{}) {
		return nil, fmt.Errorf("fee collector: %w", ErrInvalidAddress)
	}
	if cfg.FeeRateBps > MaxFeeRateBps {
		return nil, fmt.Errorf("rate %d: %w", cfg.FeeRateBps, ErrFeeRateTooHigh)
	}
	if cfg.NativePriceFeed == nil {
		return nil, fmt.Errorf("native price feed: %w", ErrInvalidAddress)
	}
	if mover == nil {
		return nil, fmt.Errorf("funding mover is required")
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	adapter := oracle.NewAdapter()
	if err := adapter.Bind(funding.NativeAsset, cfg.NativePriceFeed, funding.NativeDecimals); err != nil {
		return nil, err
	}

	return &Ledger{
		owner:        cfg.Owner,
		operators:    make(map[common.Address]bool),
		feeRateBps:   cfg.FeeRateBps,
		feeCollector: cfg.FeeCollector,
		registry:     newSupportRegistry(cfg.Countries, cfg.Providers),
		oracle:       adapter,
		mover:        mover,
		events:       publisher,
		records:      make(map[common.Hash]*TransferRequest),
		escrow:       make(map[common.Address]*big.Int),
		usdTotal:     new(big.Int),
		now:          time.Now,
		log:          log,
	}, nil
}

// InitiateTransfer validates and funds a payout request, routes the platform
// fee, records the request and returns its id. attachedValue is the native
// value delivered with the call; it must equal amount for native transfers
// and be absent for token transfers.
func (l *Ledger) InitiateTransfer(ctx context.Context, sender, asset common.Address, amount *big.Int, recipientPhone, countryCode, providerCode string, attachedValue *big.Int) (common.Hash, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.paused {
		return common.Hash{}, ErrPaused
	}
	if amount == nil || amount.Sign() <= 0 {
		return common.Hash{}, ErrAmountBelowMinimum
	}
	decimals, err := l.mover.Decimals(ctx, asset)
	if err != nil {
		return common.Hash{}, err
	}
	if amount.Cmp(minAmount(decimals)) < 0 {
		return common.Hash{}, ErrAmountBelowMinimum
	}
	if len(recipientPhone) < minPhoneLength {
		return common.Hash{}, ErrInvalidPhone
	}
	if !l.registry.countrySupported(countryCode) {
		return common.Hash{}, fmt.Errorf("%q: %w", countryCode, ErrCountryNotSupported)
	}
	if !l.registry.providerSupported(providerCode) {
		return common.Hash{}, fmt.Errorf("%q: %w", providerCode, ErrProviderNotSupported)
	}

	attached := attachedValue
	if attached == nil {
		attached = new(big.Int)
	}
	if asset == funding.NativeAsset {
		if attached.Cmp(amount) != 0 {
			return common.Hash{}, fmt.Errorf("native transfer: %w", ErrValueMismatch)
		}
	} else if attached.Sign() != 0 {
		return common.Hash{}, fmt.Errorf("value attached to token transfer: %w", ErrValueMismatch)
	}

	// Price the gross amount before any value moves, so an unbound feed or a
	// bad reading fails the call with no side effects.
	usdValue, err := l.oracle.ValueInUSD(ctx, asset, amount)
	if err != nil {
		return common.Hash{}, err
	}

	feeAmount := new(big.Int).Mul(amount, big.NewInt(int64(l.feeRateBps)))
	feeAmount.Quo(feeAmount, big.NewInt(feeRateDenominator))
	netAmount := new(big.Int).Sub(amount, feeAmount)

	if err := l.mover.Pull(ctx, asset, sender, amount); err != nil {
		return common.Hash{}, err
	}
	if feeAmount.Sign() > 0 {
		if err := l.mover.Payout(ctx, asset, l.feeCollector, feeAmount); err != nil {
			// Return the pulled funds so a failed fee routing leaves no
			// orphaned escrow.
			if refundErr := l.mover.Payout(ctx, asset, sender, amount); refundErr != nil {
				l.log.Error().Err(refundErr).
					Str("sender", sender.Hex()).
					Msg("refund after failed fee routing also failed")
			}
			return common.Hash{}, fmt.Errorf("route fee: %w", err)
		}
	}

	createdAt := l.now()
	l.sequence++
	id := deriveID(sender, asset, amount, recipientPhone, l.sequence, createdAt)

	rec := &TransferRequest{
		ID:             id,
		Sender:         sender,
		Asset:          asset,
		GrossAmount:    new(big.Int).Set(amount),
		NetAmount:      netAmount,
		FeeAmount:      feeAmount,
		RecipientPhone: recipientPhone,
		CountryCode:    countryCode,
		ProviderCode:   providerCode,
		Status:         StatusPending,
		CreatedAt:      createdAt,
	}
	l.records[id] = rec
	l.creditEscrow(asset, netAmount)
	l.totalTxs++
	l.usdTotal.Add(l.usdTotal, usdValue)

	l.log.Info().
		Str("id", id.Hex()).
		Str("sender", sender.Hex()).
		Str("asset", asset.Hex()).
		Str("net", netAmount.String()).
		Str("country", countryCode).
		Str("provider", providerCode).
		Msg("transfer initiated")

	l.publish(ctx, events.KeyTransferInitiated, events.TransferInitiated{
		ID:             id.Hex(),
		Sender:         sender.Hex(),
		Asset:          asset.Hex(),
		NetAmount:      netAmount.String(),
		RecipientPhone: recipientPhone,
		CountryCode:    countryCode,
		ProviderCode:   providerCode,
		CreatedAt:      createdAt,
	})

	return id, nil
}

// CompleteTransfer records an operator's attestation of the off-chain payout
// outcome. No escrow moves here; the payout itself happens in the operator's
// own infrastructure. Permitted while paused so in-flight requests stay
// resolvable.
func (l *Ledger) CompleteTransfer(ctx context.Context, caller common.Address, id common.Hash, success bool, settlementRef string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.operators[caller] && caller != l.owner {
		return ErrNotOperator
	}
	rec, ok := l.records[id]
	if !ok {
		return fmt.Errorf("%s: %w", id.Hex(), ErrRecordNotFound)
	}
	if rec.Status != StatusPending {
		return fmt.Errorf("%s: %w", id.Hex(), ErrRecordNotPending)
	}

	if success {
		rec.Status = StatusCompletedSuccess
	} else {
		rec.Status = StatusCompletedFailure
	}
	rec.SettlementRef = settlementRef

	l.log.Info().
		Str("id", id.Hex()).
		Bool("success", success).
		Str("settlementRef", settlementRef).
		Msg("transfer completed")

	l.publish(ctx, events.KeyTransferCompleted, events.TransferCompleted{
		ID:            id.Hex(),
		Success:       success,
		SettlementRef: settlementRef,
	})
	return nil
}

// GetTransfer returns a copy of the record for id.
func (l *Ledger) GetTransfer(id common.Hash) (TransferRequest, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.records[id]
	if !ok {
		return TransferRequest{}, fmt.Errorf("%s: %w", id.Hex(), ErrRecordNotFound)
	}
	return rec.clone(), nil
}

// GetBalance returns the escrowed net amount held for an asset.
func (l *Ledger) GetBalance(asset common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if bal, ok := l.escrow[asset]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

// GetStats returns the monotone aggregate counters.
func (l *Ledger) GetStats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Stats{
		TotalTransactions: l.totalTxs,
		TotalVolumeUSD:    new(big.Int).Set(l.usdTotal),
	}
}

// LatestPrice reads the bound feed for an asset.
func (l *Ledger) LatestPrice(ctx context.Context, asset common.Address) (*big.Int, time.Time, error) {
	return l.oracle.LatestPrice(ctx, asset)
}

// ValueInUSD converts an asset amount at the current feed price.
func (l *Ledger) ValueInUSD(ctx context.Context, asset common.Address, amount *big.Int) (*big.Int, error) {
	return l.oracle.ValueInUSD(ctx, asset, amount)
}

// PriceDecimals reports the decimal precision of the feed bound to an asset.
func (l *Ledger) PriceDecimals(ctx context.Context, asset common.Address) (uint8, error) {
	return l.oracle.FeedDecimals(ctx, asset)
}

func (l *Ledger) IsCountrySupported(code string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.registry.countrySupported(code)
}

func (l *Ledger) IsProviderSupported(code string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.registry.providerSupported(code)
}

// SupportedCountries lists the allowed country codes, sorted.
func (l *Ledger) SupportedCountries() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.registry.countryList()
}

// SupportedProviders lists the allowed provider codes, sorted.
func (l *Ledger) SupportedProviders() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.registry.providerList()
}

func (l *Ledger) IsOperator(addr common.Address) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.operators[addr] || addr == l.owner
}

func (l *Ledger) Owner() common.Address {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.owner
}

func (l *Ledger) Paused() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.paused
}

func (l *Ledger) FeeRateBps() uint32 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.feeRateBps
}

func (l *Ledger) FeeCollector() common.Address {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.feeCollector
}

func (l *Ledger) creditEscrow(asset common.Address, amount *big.Int) {
	if bal, ok := l.escrow[asset]; ok {
		bal.Add(bal, amount)
		return
	}
	l.escrow[asset] = new(big.Int).Set(amount)
}

func (l *Ledger) publish(ctx context.Context, key string, event any) {
	if err := l.events.Publish(ctx, key, event); err != nil {
		l.log.Warn().Err(err).Str("routingKey", key).Msg("event publish failed")
	}
}
