package oracle

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrPriceFeedUnbound    = errors.New("no price feed bound for asset")
	ErrInvalidPriceReading = errors.New("invalid price reading")
)

// Feed is a read-only source of an asset's USD price: latest value, the
// feed's own decimal precision, and the time of the last update.
type Feed interface {
	LatestRoundData(ctx context.Context) (price *big.Int, updatedAt time.Time, err error)
	Decimals(ctx context.Context) (uint8, error)
}

type binding struct {
	feed          Feed
	assetDecimals uint8
}

// Adapter resolves per-asset feed bindings and converts token amounts into
// USD-denominated values at the feed's precision. Bindings belong to the
// adapter instance; independent ledgers never share state.
type Adapter struct {
	mu       sync.RWMutex
	bindings map[common.Address]binding
}

func NewAdapter() *Adapter {
	return &Adapter{bindings: make(map[common.Address]binding)}
}

// Bind attaches a feed to an asset, replacing any previous binding.
// assetDecimals is the asset's smallest-unit precision (18 for the native
// asset), needed to scale amounts before applying the feed price.
func (a *Adapter) Bind(asset common.Address, feed Feed, assetDecimals uint8) error {
	if feed == nil {
		return fmt.Errorf("bind %s: nil feed", asset.Hex())
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.bindings[asset] = binding{feed: feed, assetDecimals: assetDecimals}
	return nil
}

// Bound reports whether the asset has a feed.
func (a *Adapter) Bound(asset common.Address) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.bindings[asset]
	return ok
}

// LatestPrice returns the bound feed's current price and update time.
func (a *Adapter) LatestPrice(ctx context.Context, asset common.Address) (*big.Int, time.Time, error) {
	bind, err := a.lookup(asset)
	if err != nil {
		return nil, time.Time{}, err
	}
	return a.read(ctx, asset, bind)
}

// FeedDecimals reports the decimal precision of the feed bound to asset.
func (a *Adapter) FeedDecimals(ctx context.Context, asset common.Address) (uint8, error) {
	bind, err := a.lookup(asset)
	if err != nil {
		return 0, err
	}
	dec, err := bind.feed.Decimals(ctx)
	if err != nil {
		return 0, fmt.Errorf("feed decimals for %s: %w", asset.Hex(), err)
	}
	return dec, nil
}

// ValueInUSD computes amount * price / 10^assetDecimals. The result carries
// the feed's own decimal precision.
func (a *Adapter) ValueInUSD(ctx context.Context, asset common.Address, amount *big.Int) (*big.Int, error) {
	bind, err := a.lookup(asset)
	if err != nil {
		return nil, err
	}

	price, _, err := a.read(ctx, asset, bind)
	if err != nil {
		return nil, err
	}

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(bind.assetDecimals)), nil)
	value := new(big.Int).Mul(amount, price)
	return value.Quo(value, scale), nil
}

func (a *Adapter) lookup(asset common.Address) (binding, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	bind, ok := a.bindings[asset]
	if !ok {
		return binding{}, fmt.Errorf("asset %s: %w", asset.Hex(), ErrPriceFeedUnbound)
	}
	return bind, nil
}

func (a *Adapter) read(ctx context.Context, asset common.Address, bind binding) (*big.Int, time.Time, error) {
	price, updatedAt, err := bind.feed.LatestRoundData(ctx)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("read feed for %s: %w", asset.Hex(), err)
	}
	if price == nil || price.Sign() <= 0 {
		return nil, time.Time{}, fmt.Errorf("asset %s: %w", asset.Hex(), ErrInvalidPriceReading)
	}
	// No staleness bound on updatedAt; callers decide what age they accept.
	return new(big.Int).Set(price), updatedAt, nil
}
