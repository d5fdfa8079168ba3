package funding

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	custody = common.HexToAddress("0x000000000000000000000000000000000000c0de")
	holder  = common.HexToAddress("0x0000000000000000000000000000000000000001")
	other   = common.HexToAddress("0x0000000000000000000000000000000000000002")
	token   = common.HexToAddress("0x00000000000000000000000000000000000005dc")
)

func TestMemoryMoverNativePull(t *testing.T) {
	m := NewMemoryMover(custody)
	ctx := context.Background()

	err := m.Pull(ctx, NativeAsset, holder, big.NewInt(100))
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	m.Mint(NativeAsset, holder, big.NewInt(100))
	// Native pulls need no allowance.
	require.NoError(t, m.Pull(ctx, NativeAsset, holder, big.NewInt(60)))

	assert.Zero(t, m.BalanceOf(NativeAsset, holder).Cmp(big.NewInt(40)))
	assert.Zero(t, m.BalanceOf(NativeAsset, custody).Cmp(big.NewInt(60)))
}

func TestMemoryMoverTokenPullConsumesAllowance(t *testing.T) {
	m := NewMemoryMover(custody)
	ctx := context.Background()

	m.Mint(token, holder, big.NewInt(100))

	err := m.Pull(ctx, token, holder, big.NewInt(50))
	assert.ErrorIs(t, err, ErrInsufficientFunds, "no allowance granted")

	m.Approve(token, holder, big.NewInt(50))
	require.NoError(t, m.Pull(ctx, token, holder, big.NewInt(50)))

	err = m.Pull(ctx, token, holder, big.NewInt(1))
	assert.ErrorIs(t, err, ErrInsufficientFunds, "allowance exhausted")
}

func TestMemoryMoverPayout(t *testing.T) {
	m := NewMemoryMover(custody)
	ctx := context.Background()

	err := m.Payout(ctx, NativeAsset, other, big.NewInt(10))
	assert.ErrorIs(t, err, ErrInsufficientFunds, "custody is empty")

	m.Mint(NativeAsset, custody, big.NewInt(30))
	require.NoError(t, m.Payout(ctx, NativeAsset, other, big.NewInt(10)))

	assert.Zero(t, m.BalanceOf(NativeAsset, other).Cmp(big.NewInt(10)))
	assert.Zero(t, m.BalanceOf(NativeAsset, custody).Cmp(big.NewInt(20)))
}

func TestMemoryMoverDecimals(t *testing.T) {
	m := NewMemoryMover(custody)
	ctx := context.Background()

	dec, err := m.Decimals(ctx, NativeAsset)
	require.NoError(t, err)
	assert.Equal(t, NativeDecimals, dec)

	_, err = m.Decimals(ctx, token)
	assert.ErrorIs(t, err, ErrUnknownAsset)

	m.SetDecimals(token, 6)
	dec, err = m.Decimals(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), dec)
}
