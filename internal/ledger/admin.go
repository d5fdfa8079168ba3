package ledger

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"remitrails/internal/events"
	"remitrails/internal/oracle"
)

// Owner-gated operations. Each checks the caller against the current owner
// under the ledger lock; ownership checks and the mutation they guard are a
// single atomic step.

func (l *Ledger) requireOwner(caller common.Address) error {
	if caller != l.owner {
		return ErrNotOwner
	}
	return nil
}

// SetPlatformFeeRate changes the basis-point fee for subsequent requests.
// Existing records keep the rate snapshotted at their creation.
func (l *Ledger) SetPlatformFeeRate(ctx context.Context, caller common.Address, rateBps uint32) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireOwner(caller); err != nil {
		return err
	}
	if rateBps > MaxFeeRateBps {
		return fmt.Errorf("rate %d: %w", rateBps, ErrFeeRateTooHigh)
	}

	old := l.feeRateBps
	l.feeRateBps = rateBps
	l.log.Info().Uint32("old", old).Uint32("new", rateBps).Msg("platform fee rate changed")
	l.publish(ctx, events.KeyFeeRateChanged, events.FeeRateChanged{OldRateBps: old, NewRateBps: rateBps})
	return nil
}

func (l *Ledger) SetFeeCollector(caller, collector common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireOwner(caller); err != nil {
		return err
	}
	if (collector == common.Address{}) {
		return fmt.Errorf("fee collector: %w", ErrInvalidAddress)
	}
	l.feeCollector = collector
	return nil
}

func (l *Ledger) AddOperator(caller, operator common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireOwner(caller); err != nil {
		return err
	}
	if (operator == common.Address{}) {
		return fmt.Errorf("operator: %w", ErrInvalidAddress)
	}
	l.operators[operator] = true
	return nil
}

func (l *Ledger) RemoveOperator(caller, operator common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireOwner(caller); err != nil {
		return err
	}
	delete(l.operators, operator)
	return nil
}

// Pause blocks new transfer requests. Completions and emergency withdrawal
// remain available.
func (l *Ledger) Pause(ctx context.Context, caller common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireOwner(caller); err != nil {
		return err
	}
	if l.paused {
		return ErrPaused
	}
	l.paused = true
	l.log.Warn().Msg("ledger paused")
	l.publish(ctx, events.KeyPaused, events.PauseChanged{Paused: true})
	return nil
}

func (l *Ledger) Unpause(ctx context.Context, caller common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireOwner(caller); err != nil {
		return err
	}
	if !l.paused {
		return ErrNotPaused
	}
	l.paused = false
	l.log.Info().Msg("ledger unpaused")
	l.publish(ctx, events.KeyUnpaused, events.PauseChanged{Paused: false})
	return nil
}

func (l *Ledger) TransferOwnership(caller, newOwner common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireOwner(caller); err != nil {
		return err
	}
	if (newOwner == common.Address{}) {
		return fmt.Errorf("new owner: %w", ErrInvalidAddress)
	}
	l.owner = newOwner
	l.log.Info().Str("owner", newOwner.Hex()).Msg("ownership transferred")
	return nil
}

// SetPriceFeed binds a feed for an asset. assetDecimals is the asset's
// smallest-unit precision used when scaling amounts to USD.
func (l *Ledger) SetPriceFeed(caller, asset common.Address, feed oracle.Feed, assetDecimals uint8) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireOwner(caller); err != nil {
		return err
	}
	if feed == nil {
		return fmt.Errorf("price feed: %w", ErrInvalidAddress)
	}
	return l.oracle.Bind(asset, feed, assetDecimals)
}

func (l *Ledger) SetCountrySupport(caller common.Address, code string, supported bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireOwner(caller); err != nil {
		return err
	}
	l.registry.setCountry(code, supported)
	return nil
}

func (l *Ledger) SetProviderSupport(caller common.Address, code string, supported bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireOwner(caller); err != nil {
		return err
	}
	l.registry.setProvider(code, supported)
	return nil
}

// EmergencyWithdraw is the break-glass path: owner-only, paused-only, bounded
// by the asset's escrow balance. The payout runs before the balance is
// decremented so a failed external transfer leaves state untouched; the
// ledger lock excludes reentrancy for the duration.
func (l *Ledger) EmergencyWithdraw(ctx context.Context, caller, asset common.Address, amount *big.Int, destination common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireOwner(caller); err != nil {
		return err
	}
	if !l.paused {
		return ErrNotPaused
	}
	if (destination == common.Address{}) {
		return fmt.Errorf("destination: %w", ErrInvalidAddress)
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("withdraw amount: %w", ErrInsufficientEscrow)
	}

	bal, ok := l.escrow[asset]
	if !ok || bal.Cmp(amount) < 0 {
		return fmt.Errorf("asset %s: %w", asset.Hex(), ErrInsufficientEscrow)
	}

	if err := l.mover.Payout(ctx, asset, destination, amount); err != nil {
		return fmt.Errorf("emergency withdraw: %w", err)
	}
	bal.Sub(bal, amount)

	l.log.Warn().
		Str("asset", asset.Hex()).
		Str("amount", amount.String()).
		Str("destination", destination.Hex()).
		Msg("emergency withdrawal")
	return nil
}

// PendingLiability sums the net amounts of all pending records for an asset.
// Escrow must always cover it; exposed for monitoring and tests.
func (l *Ledger) PendingLiability(asset common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := new(big.Int)
	for _, rec := range l.records {
		if rec.Asset == asset && rec.Status == StatusPending {
			total.Add(total, rec.NetAmount)
		}
	}
	return total
}
