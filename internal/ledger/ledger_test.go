package ledger

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remitrails/internal/events"
	"remitrails/internal/funding"
	"remitrails/internal/oracle"
)

var (
	owner     = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	collector = common.HexToAddress("0x0000000000000000000000000000000000000fee")
	operator  = common.HexToAddress("0x000000000000000000000000000000000000beef")
	sender    = common.HexToAddress("0x0000000000000000000000000000000000005e5d")
	custody   = common.HexToAddress("0x000000000000000000000000000000000000c0de")
	stranger  = common.HexToAddress("0x000000000000000000000000000000000000dead")
	usdc      = common.HexToAddress("0x00000000000000000000000000000000000005dc")
)

// oneEther and the $3250 price mirror the local development fixtures.
var (
	oneEther    = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	nativePrice = big.NewInt(325_000_000_000) // $3250, 8 decimals
)

type fixture struct {
	ledger *Ledger
	mover  *funding.MemoryMover
	events *events.MemoryPublisher
}

func newFixture(t *testing.T, feeRateBps uint32) *fixture {
	t.Helper()

	mover := funding.NewMemoryMover(custody)
	pub := events.NewMemoryPublisher()

	led, err := New(Config{
		Owner:           owner,
		FeeCollector:    collector,
		FeeRateBps:      feeRateBps,
		NativePriceFeed: oracle.NewStaticFeed(nativePrice, 8),
		Countries:       []string{"KE", "NG", "GH", "UG", "TZ", "RW"},
		Providers:       []string{"mpesa", "airtel", "opay", "kuda", "mtn"},
	}, mover, pub, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, led.AddOperator(owner, operator))

	mover.Mint(funding.NativeAsset, sender, new(big.Int).Mul(oneEther, big.NewInt(10)))
	return &fixture{ledger: led, mover: mover, events: pub}
}

func (f *fixture) initiateNative(t *testing.T, amount *big.Int) common.Hash {
	t.Helper()
	id, err := f.ledger.InitiateTransfer(context.Background(), sender, funding.NativeAsset,
		amount, "+254712345678", "KE", "mpesa", amount)
	require.NoError(t, err)
	return id
}

func TestNewValidation(t *testing.T) {
	mover := funding.NewMemoryMover(custody)
	feed := oracle.NewStaticFeed(nativePrice, 8)

	cases := []struct {
		name string
		cfg  Config
		want error
	}{
		{"zero owner", Config{FeeCollector: collector, NativePriceFeed: feed}, ErrInvalidAddress},
		{"zero collector", Config{Owner: owner, NativePriceFeed: feed}, ErrInvalidAddress},
		{"rate above ceiling", Config{Owner: owner, FeeCollector: collector, FeeRateBps: 501, NativePriceFeed: feed}, ErrFeeRateTooHigh},
		{"nil feed", Config{Owner: owner, FeeCollector: collector}, ErrInvalidAddress},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.cfg, mover, nil, zerolog.Nop())
			assert.ErrorIs(t, err, tc.want)
		})
	}

	t.Run("rate at ceiling is accepted", func(t *testing.T) {
		_, err := New(Config{Owner: owner, FeeCollector: collector, FeeRateBps: MaxFeeRateBps, NativePriceFeed: feed}, mover, nil, zerolog.Nop())
		assert.NoError(t, err)
	})
}

func TestInitiateTransferNative(t *testing.T) {
	f := newFixture(t, 100) // 1%
	id := f.initiateNative(t, oneEther)

	rec, err := f.ledger.GetTransfer(id)
	require.NoError(t, err)

	wantFee := new(big.Int).Quo(oneEther, big.NewInt(100))
	wantNet := new(big.Int).Sub(oneEther, wantFee)

	assert.Equal(t, StatusPending, rec.Status)
	assert.Equal(t, sender, rec.Sender)
	assert.Equal(t, funding.NativeAsset, rec.Asset)
	assert.Zero(t, rec.GrossAmount.Cmp(oneEther))
	assert.Zero(t, rec.FeeAmount.Cmp(wantFee))
	assert.Zero(t, rec.NetAmount.Cmp(wantNet))
	assert.Equal(t, "+254712345678", rec.RecipientPhone)

	// Escrow holds the net, the collector received the fee.
	assert.Zero(t, f.ledger.GetBalance(funding.NativeAsset).Cmp(wantNet))
	assert.Zero(t, f.mover.BalanceOf(funding.NativeAsset, collector).Cmp(wantFee))

	stats := f.ledger.GetStats()
	assert.Equal(t, uint64(1), stats.TotalTransactions)
	assert.Zero(t, stats.TotalVolumeUSD.Cmp(nativePrice), "1 unit at $3250 with 8 decimals")

	evts := f.events.Events()
	require.Len(t, evts, 1)
	assert.Equal(t, events.KeyTransferInitiated, evts[0].RoutingKey)
}

func TestFeeNeverExceedsGross(t *testing.T) {
	f := newFixture(t, MaxFeeRateBps)

	// An amount that does not divide evenly: the fee floors and the sum of
	// fee and net always reproduces the gross exactly.
	amount := new(big.Int).Add(oneEther, big.NewInt(7))
	id := f.initiateNative(t, amount)

	rec, err := f.ledger.GetTransfer(id)
	require.NoError(t, err)

	sum := new(big.Int).Add(rec.FeeAmount, rec.NetAmount)
	assert.Zero(t, sum.Cmp(amount))
	assert.True(t, rec.FeeAmount.Cmp(amount) < 0)

	wantFee := new(big.Int).Mul(amount, big.NewInt(MaxFeeRateBps))
	wantFee.Quo(wantFee, big.NewInt(10_000))
	assert.Zero(t, rec.FeeAmount.Cmp(wantFee))
}

func TestZeroFeeRate(t *testing.T) {
	f := newFixture(t, 0)
	id := f.initiateNative(t, oneEther)

	rec, err := f.ledger.GetTransfer(id)
	require.NoError(t, err)
	assert.Zero(t, rec.FeeAmount.Sign())
	assert.Zero(t, rec.NetAmount.Cmp(oneEther))
	assert.Zero(t, f.mover.BalanceOf(funding.NativeAsset, collector).Sign())
}

func TestInitiateTransferValidation(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	cases := []struct {
		name     string
		amount   *big.Int
		attached *big.Int
		phone    string
		country  string
		provider string
		want     error
	}{
		{"below minimum", big.NewInt(999_999_999_999_999), big.NewInt(999_999_999_999_999), "+254712345678", "KE", "mpesa", ErrAmountBelowMinimum},
		{"short phone", oneEther, oneEther, "12345", "KE", "mpesa", ErrInvalidPhone},
		{"unsupported country", oneEther, oneEther, "+254712345678", "US", "mpesa", ErrCountryNotSupported},
		{"unsupported provider", oneEther, oneEther, "+254712345678", "KE", "venmo", ErrProviderNotSupported},
		{"attached value short", oneEther, big.NewInt(1), "+254712345678", "KE", "mpesa", ErrValueMismatch},
		{"attached value missing", oneEther, nil, "+254712345678", "KE", "mpesa", ErrValueMismatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.ledger.InitiateTransfer(ctx, sender, funding.NativeAsset,
				tc.amount, tc.phone, tc.country, tc.provider, tc.attached)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	// None of the rejections left a trace.
	stats := f.ledger.GetStats()
	assert.Zero(t, stats.TotalTransactions)
	assert.Zero(t, f.ledger.GetBalance(funding.NativeAsset).Sign())
	assert.Empty(t, f.events.Events())
}

func TestInitiateTokenTransfer(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	// USDC at $1, 6 decimals. 2000 USDC.
	require.NoError(t, f.ledger.SetPriceFeed(owner, usdc, oracle.NewStaticFeed(big.NewInt(100_000_000), 8), 6))
	f.mover.SetDecimals(usdc, 6)
	amount := big.NewInt(2_000_000_000)
	f.mover.Mint(usdc, sender, amount)

	t.Run("value attached to token transfer", func(t *testing.T) {
		_, err := f.ledger.InitiateTransfer(ctx, sender, usdc, amount,
			"+254712345678", "KE", "mpesa", big.NewInt(1))
		assert.ErrorIs(t, err, ErrValueMismatch)
	})

	t.Run("missing allowance leaves no state", func(t *testing.T) {
		_, err := f.ledger.InitiateTransfer(ctx, sender, usdc, amount,
			"+254712345678", "KE", "mpesa", nil)
		assert.ErrorIs(t, err, funding.ErrInsufficientFunds)
		assert.Zero(t, f.ledger.GetStats().TotalTransactions)
		assert.Zero(t, f.ledger.GetBalance(usdc).Sign())
		assert.Zero(t, f.mover.BalanceOf(usdc, sender).Cmp(amount), "sender balance untouched")
	})

	t.Run("approved transfer succeeds", func(t *testing.T) {
		f.mover.Approve(usdc, sender, amount)
		id, err := f.ledger.InitiateTransfer(ctx, sender, usdc, amount,
			"+254712345678", "KE", "mpesa", nil)
		require.NoError(t, err)

		rec, err := f.ledger.GetTransfer(id)
		require.NoError(t, err)
		assert.Zero(t, rec.FeeAmount.Cmp(big.NewInt(20_000_000))) // 1% of 2000 USDC

		// $2000 at 8 decimals.
		assert.Zero(t, f.ledger.GetStats().TotalVolumeUSD.Cmp(big.NewInt(200_000_000_000)))
	})
}

func TestMinimumScalesWithAssetDecimals(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	// The 0.001-unit floor is 10^3 for a 6-decimal token, not the native
	// asset's 10^15.
	require.NoError(t, f.ledger.SetPriceFeed(owner, usdc, oracle.NewStaticFeed(big.NewInt(100_000_000), 8), 6))
	f.mover.SetDecimals(usdc, 6)
	f.mover.Mint(usdc, sender, big.NewInt(10_000_000_000))
	f.mover.Approve(usdc, sender, big.NewInt(10_000_000_000))

	_, err := f.ledger.InitiateTransfer(ctx, sender, usdc, big.NewInt(999),
		"+254712345678", "KE", "mpesa", nil)
	assert.ErrorIs(t, err, ErrAmountBelowMinimum)

	_, err = f.ledger.InitiateTransfer(ctx, sender, usdc, big.NewInt(1000),
		"+254712345678", "KE", "mpesa", nil)
	assert.NoError(t, err, "0.001 of a 6-decimal token clears the floor")

	// 2000 whole tokens is far above any sane floor.
	_, err = f.ledger.InitiateTransfer(ctx, sender, usdc, big.NewInt(2_000_000_000),
		"+254712345678", "KE", "mpesa", nil)
	assert.NoError(t, err)

	// A token whose decimals are unknown to the funding layer is rejected
	// before any value moves.
	mystery := common.HexToAddress("0x0000000000000000000000000000000000009e7a")
	before := f.ledger.GetStats().TotalTransactions
	_, err = f.ledger.InitiateTransfer(ctx, sender, mystery, oneEther,
		"+254712345678", "KE", "mpesa", nil)
	assert.ErrorIs(t, err, funding.ErrUnknownAsset)
	assert.Equal(t, before, f.ledger.GetStats().TotalTransactions)

	assert.Zero(t, minAmount(18).Cmp(MinTransferAmount))
	assert.Zero(t, minAmount(2).Cmp(big.NewInt(1)))
}

func TestUnboundFeedRejectsTransfer(t *testing.T) {
	f := newFixture(t, 100)
	unknown := common.HexToAddress("0x0000000000000000000000000000000000004242")
	f.mover.SetDecimals(unknown, 18)
	f.mover.Mint(unknown, sender, oneEther)
	f.mover.Approve(unknown, sender, oneEther)

	_, err := f.ledger.InitiateTransfer(context.Background(), sender, unknown, oneEther,
		"+254712345678", "KE", "mpesa", nil)
	assert.ErrorIs(t, err, oracle.ErrPriceFeedUnbound)
	assert.Zero(t, f.mover.BalanceOf(unknown, custody).Sign(), "nothing pulled")
}

// failingMover pulls successfully but cannot pay out, simulating fee routing
// failure after the sender's funds were taken.
type failingMover struct {
	*funding.MemoryMover
	refunds int
}

func (m *failingMover) Payout(ctx context.Context, asset, to common.Address, amount *big.Int) error {
	if to == sender {
		m.refunds++
		return m.MemoryMover.Payout(ctx, asset, to, amount)
	}
	return errors.New("payout rail down")
}

func TestFeeRoutingFailureRefundsSender(t *testing.T) {
	mover := &failingMover{MemoryMover: funding.NewMemoryMover(custody)}
	led, err := New(Config{
		Owner:           owner,
		FeeCollector:    collector,
		FeeRateBps:      100,
		NativePriceFeed: oracle.NewStaticFeed(nativePrice, 8),
		Countries:       []string{"KE"},
		Providers:       []string{"mpesa"},
	}, mover, nil, zerolog.Nop())
	require.NoError(t, err)

	mover.Mint(funding.NativeAsset, sender, oneEther)

	_, err = led.InitiateTransfer(context.Background(), sender, funding.NativeAsset,
		oneEther, "+254712345678", "KE", "mpesa", oneEther)
	require.Error(t, err)

	assert.Equal(t, 1, mover.refunds)
	assert.Zero(t, mover.BalanceOf(funding.NativeAsset, sender).Cmp(oneEther), "sender made whole")
	assert.Zero(t, led.GetStats().TotalTransactions)
	assert.Zero(t, led.GetBalance(funding.NativeAsset).Sign())
}

func TestCompleteTransfer(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()
	id := f.initiateNative(t, oneEther)

	t.Run("stranger rejected", func(t *testing.T) {
		err := f.ledger.CompleteTransfer(ctx, stranger, id, true, "ref")
		assert.ErrorIs(t, err, ErrNotOperator)
	})

	t.Run("unknown id", func(t *testing.T) {
		err := f.ledger.CompleteTransfer(ctx, operator, common.HexToHash("0x01"), true, "ref")
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("operator completes success", func(t *testing.T) {
		require.NoError(t, f.ledger.CompleteTransfer(ctx, operator, id, true, "MPESA-123"))
		rec, err := f.ledger.GetTransfer(id)
		require.NoError(t, err)
		assert.Equal(t, StatusCompletedSuccess, rec.Status)
		assert.Equal(t, "MPESA-123", rec.SettlementRef)
	})

	t.Run("terminal records stay terminal", func(t *testing.T) {
		err := f.ledger.CompleteTransfer(ctx, operator, id, false, "again")
		assert.ErrorIs(t, err, ErrRecordNotPending)
		rec, _ := f.ledger.GetTransfer(id)
		assert.Equal(t, StatusCompletedSuccess, rec.Status)
	})

	t.Run("failure keeps escrow", func(t *testing.T) {
		before := f.ledger.GetBalance(funding.NativeAsset)
		id2 := f.initiateNative(t, oneEther)
		require.NoError(t, f.ledger.CompleteTransfer(ctx, owner, id2, false, ""))

		rec, err := f.ledger.GetTransfer(id2)
		require.NoError(t, err)
		assert.Equal(t, StatusCompletedFailure, rec.Status)

		after := f.ledger.GetBalance(funding.NativeAsset)
		assert.True(t, after.Cmp(before) > 0, "failed completion does not refund escrow")
	})
}

func TestCompleteWhilePaused(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()
	id := f.initiateNative(t, oneEther)

	require.NoError(t, f.ledger.Pause(ctx, owner))

	_, err := f.ledger.InitiateTransfer(ctx, sender, funding.NativeAsset, oneEther,
		"+254712345678", "KE", "mpesa", oneEther)
	assert.ErrorIs(t, err, ErrPaused)

	assert.NoError(t, f.ledger.CompleteTransfer(ctx, operator, id, true, "ref"),
		"completion is allowed while paused")
}

func TestPauseUnpause(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	assert.ErrorIs(t, f.ledger.Pause(ctx, stranger), ErrNotOwner)
	assert.ErrorIs(t, f.ledger.Unpause(ctx, owner), ErrNotPaused)

	require.NoError(t, f.ledger.Pause(ctx, owner))
	assert.True(t, f.ledger.Paused())
	assert.ErrorIs(t, f.ledger.Pause(ctx, owner), ErrPaused)

	require.NoError(t, f.ledger.Unpause(ctx, owner))
	assert.False(t, f.ledger.Paused())
}

func TestSetPlatformFeeRate(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	assert.ErrorIs(t, f.ledger.SetPlatformFeeRate(ctx, stranger, 50), ErrNotOwner)
	assert.ErrorIs(t, f.ledger.SetPlatformFeeRate(ctx, owner, 501), ErrFeeRateTooHigh)

	id1 := f.initiateNative(t, oneEther)
	require.NoError(t, f.ledger.SetPlatformFeeRate(ctx, owner, 200))
	id2 := f.initiateNative(t, oneEther)

	rec1, _ := f.ledger.GetTransfer(id1)
	rec2, _ := f.ledger.GetTransfer(id2)

	// Existing records keep the rate snapshotted at creation.
	assert.Zero(t, rec1.FeeAmount.Cmp(new(big.Int).Quo(oneEther, big.NewInt(100))))
	assert.Zero(t, rec2.FeeAmount.Cmp(new(big.Int).Quo(oneEther, big.NewInt(50))))
}

func TestOperatorManagement(t *testing.T) {
	f := newFixture(t, 0)

	assert.ErrorIs(t, f.ledger.AddOperator(stranger, stranger), ErrNotOwner)
	assert.ErrorIs(t, f.ledger.AddOperator(owner, common.Address{}), ErrInvalidAddress)

	require.NoError(t, f.ledger.AddOperator(owner, stranger))
	assert.True(t, f.ledger.IsOperator(stranger))

	require.NoError(t, f.ledger.RemoveOperator(owner, stranger))
	assert.False(t, f.ledger.IsOperator(stranger))

	assert.True(t, f.ledger.IsOperator(owner), "owner always passes the operator check")
}

func TestTransferOwnership(t *testing.T) {
	f := newFixture(t, 0)
	newOwner := common.HexToAddress("0x000000000000000000000000000000000000900d")

	assert.ErrorIs(t, f.ledger.TransferOwnership(stranger, newOwner), ErrNotOwner)
	assert.ErrorIs(t, f.ledger.TransferOwnership(owner, common.Address{}), ErrInvalidAddress)

	require.NoError(t, f.ledger.TransferOwnership(owner, newOwner))
	assert.Equal(t, newOwner, f.ledger.Owner())

	// The old owner holds no residual authority.
	assert.ErrorIs(t, f.ledger.Pause(context.Background(), owner), ErrNotOwner)
	assert.NoError(t, f.ledger.Pause(context.Background(), newOwner))
}

func TestSetFeeCollector(t *testing.T) {
	f := newFixture(t, 0)
	next := common.HexToAddress("0x0000000000000000000000000000000000001fee")

	assert.ErrorIs(t, f.ledger.SetFeeCollector(stranger, next), ErrNotOwner)
	assert.ErrorIs(t, f.ledger.SetFeeCollector(owner, common.Address{}), ErrInvalidAddress)

	require.NoError(t, f.ledger.SetFeeCollector(owner, next))
	assert.Equal(t, next, f.ledger.FeeCollector())
}

func TestSupportRegistryToggles(t *testing.T) {
	f := newFixture(t, 0)

	assert.True(t, f.ledger.IsCountrySupported("KE"))
	assert.False(t, f.ledger.IsCountrySupported("US"))

	require.NoError(t, f.ledger.SetCountrySupport(owner, "US", true))
	assert.True(t, f.ledger.IsCountrySupported("US"))

	require.NoError(t, f.ledger.SetCountrySupport(owner, "US", false))
	assert.False(t, f.ledger.IsCountrySupported("US"))

	assert.ErrorIs(t, f.ledger.SetProviderSupport(stranger, "venmo", true), ErrNotOwner)
	require.NoError(t, f.ledger.SetProviderSupport(owner, "venmo", true))
	assert.True(t, f.ledger.IsProviderSupported("venmo"))

	assert.Contains(t, f.ledger.SupportedCountries(), "KE")
	assert.Contains(t, f.ledger.SupportedProviders(), "mpesa")
}

func TestEmergencyWithdraw(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	dest := common.HexToAddress("0x0000000000000000000000000000000000007a7e")

	f.initiateNative(t, oneEther)
	escrowed := f.ledger.GetBalance(funding.NativeAsset)

	assert.ErrorIs(t, f.ledger.EmergencyWithdraw(ctx, owner, funding.NativeAsset, oneEther, dest), ErrNotPaused)

	require.NoError(t, f.ledger.Pause(ctx, owner))

	assert.ErrorIs(t, f.ledger.EmergencyWithdraw(ctx, stranger, funding.NativeAsset, oneEther, dest), ErrNotOwner)
	assert.ErrorIs(t, f.ledger.EmergencyWithdraw(ctx, owner, funding.NativeAsset, oneEther, common.Address{}), ErrInvalidAddress)
	assert.ErrorIs(t, f.ledger.EmergencyWithdraw(ctx, owner, funding.NativeAsset, big.NewInt(0), dest), ErrInsufficientEscrow)

	tooMuch := new(big.Int).Add(escrowed, big.NewInt(1))
	assert.ErrorIs(t, f.ledger.EmergencyWithdraw(ctx, owner, funding.NativeAsset, tooMuch, dest), ErrInsufficientEscrow)

	half := new(big.Int).Quo(escrowed, big.NewInt(2))
	require.NoError(t, f.ledger.EmergencyWithdraw(ctx, owner, funding.NativeAsset, half, dest))

	remaining := new(big.Int).Sub(escrowed, half)
	assert.Zero(t, f.ledger.GetBalance(funding.NativeAsset).Cmp(remaining))
	assert.Zero(t, f.mover.BalanceOf(funding.NativeAsset, dest).Cmp(half))
}

func TestEscrowCoversPendingLiability(t *testing.T) {
	f := newFixture(t, 250)
	ctx := context.Background()

	id1 := f.initiateNative(t, oneEther)
	f.initiateNative(t, new(big.Int).Mul(oneEther, big.NewInt(2)))

	liability := f.ledger.PendingLiability(funding.NativeAsset)
	assert.True(t, f.ledger.GetBalance(funding.NativeAsset).Cmp(liability) >= 0)

	require.NoError(t, f.ledger.CompleteTransfer(ctx, operator, id1, true, "ref"))
	after := f.ledger.PendingLiability(funding.NativeAsset)
	assert.True(t, after.Cmp(liability) < 0, "liability shrinks as requests resolve")
	assert.True(t, f.ledger.GetBalance(funding.NativeAsset).Cmp(after) >= 0)
}

func TestRequestIDsAreUnique(t *testing.T) {
	f := newFixture(t, 0)

	id1 := f.initiateNative(t, oneEther)
	id2 := f.initiateNative(t, oneEther)
	assert.NotEqual(t, id1, id2, "identical submissions get distinct ids")
}

func TestGetBalanceUnknownAsset(t *testing.T) {
	f := newFixture(t, 0)
	assert.Zero(t, f.ledger.GetBalance(usdc).Sign())
	assert.Zero(t, f.ledger.PendingLiability(usdc).Sign())
}

func TestEventSequence(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	id := f.initiateNative(t, oneEther)
	require.NoError(t, f.ledger.SetPlatformFeeRate(ctx, owner, 50))
	require.NoError(t, f.ledger.CompleteTransfer(ctx, operator, id, true, "ref"))
	require.NoError(t, f.ledger.Pause(ctx, owner))
	require.NoError(t, f.ledger.Unpause(ctx, owner))

	keys := make([]string, 0)
	for _, e := range f.events.Events() {
		keys = append(keys, e.RoutingKey)
	}
	assert.Equal(t, []string{
		events.KeyTransferInitiated,
		events.KeyFeeRateChanged,
		events.KeyTransferCompleted,
		events.KeyPaused,
		events.KeyUnpaused,
	}, keys)

	completed, ok := f.events.Events()[2].Event.(events.TransferCompleted)
	require.True(t, ok)
	assert.Equal(t, id.Hex(), completed.ID)
	assert.True(t, completed.Success)
}
