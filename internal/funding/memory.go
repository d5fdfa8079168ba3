package funding

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

type holderKey struct {
	asset  common.Address
	holder common.Address
}

// MemoryMover keeps balances and token allowances in memory. It backs local
// development and tests, where it deterministically emulates the funding
// semantics of the chain: token pulls consume allowance, payouts draw from
// the custody account.
type MemoryMover struct {
	mu         sync.Mutex
	custody    common.Address
	balances   map[holderKey]*big.Int
	allowances map[holderKey]*big.Int
	decimals   map[common.Address]uint8
}

func NewMemoryMover(custody common.Address) *MemoryMover {
	return &MemoryMover{
		custody:    custody,
		balances:   make(map[holderKey]*big.Int),
		allowances: make(map[holderKey]*big.Int),
		decimals:   make(map[common.Address]uint8),
	}
}

// Mint credits a holder's balance. Test and dev setup only.
func (m *MemoryMover) Mint(asset, holder common.Address, amount *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credit(asset, holder, amount)
}

// Approve grants the custody account an allowance to pull a token from owner.
func (m *MemoryMover) Approve(token, owner common.Address, amount *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allowances[holderKey{token, owner}] = new(big.Int).Set(amount)
}

// SetDecimals registers a token's smallest-unit precision.
func (m *MemoryMover) SetDecimals(token common.Address, decimals uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decimals[token] = decimals
}

// BalanceOf reports a holder's balance for an asset.
func (m *MemoryMover) BalanceOf(asset, holder common.Address) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if bal, ok := m.balances[holderKey{asset, holder}]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

func (m *MemoryMover) Pull(_ context.Context, asset, from common.Address, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bal := m.balances[holderKey{asset, from}]
	if bal == nil || bal.Cmp(amount) < 0 {
		return fmt.Errorf("pull %s from %s: %w", amount, from.Hex(), ErrInsufficientFunds)
	}
	if asset != NativeAsset {
		allowance := m.allowances[holderKey{asset, from}]
		if allowance == nil || allowance.Cmp(amount) < 0 {
			return fmt.Errorf("pull %s from %s: %w", amount, from.Hex(), ErrInsufficientFunds)
		}
		allowance.Sub(allowance, amount)
	}
	bal.Sub(bal, amount)
	m.credit(asset, m.custody, amount)
	return nil
}

func (m *MemoryMover) Payout(_ context.Context, asset, to common.Address, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bal := m.balances[holderKey{asset, m.custody}]
	if bal == nil || bal.Cmp(amount) < 0 {
		return fmt.Errorf("payout %s to %s: %w", amount, to.Hex(), ErrInsufficientFunds)
	}
	bal.Sub(bal, amount)
	m.credit(asset, to, amount)
	return nil
}

func (m *MemoryMover) Decimals(_ context.Context, asset common.Address) (uint8, error) {
	if asset == NativeAsset {
		return NativeDecimals, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	dec, ok := m.decimals[asset]
	if !ok {
		return 0, fmt.Errorf("decimals for %s: %w", asset.Hex(), ErrUnknownAsset)
	}
	return dec, nil
}

func (m *MemoryMover) credit(asset, holder common.Address, amount *big.Int) {
	key := holderKey{asset, holder}
	if bal, ok := m.balances[key]; ok {
		bal.Add(bal, amount)
		return
	}
	m.balances[key] = new(big.Int).Set(amount)
}
