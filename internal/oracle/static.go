package oracle

import (
	"context"
	"math/big"
	"sync"
	"time"
)

// StaticFeed reports a fixed price. It emulates an aggregator for local dev
// and tests; the price can be swapped at runtime to exercise repricing.
type StaticFeed struct {
	mu        sync.Mutex
	price     *big.Int
	decimals  uint8
	updatedAt time.Time
}

func NewStaticFeed(price *big.Int, decimals uint8) *StaticFeed {
	return &StaticFeed{
		price:     new(big.Int).Set(price),
		decimals:  decimals,
		updatedAt: time.Now(),
	}
}

func (f *StaticFeed) SetPrice(price *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.price = new(big.Int).Set(price)
	f.updatedAt = time.Now()
}

func (f *StaticFeed) LatestRoundData(context.Context) (*big.Int, time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.price), f.updatedAt, nil
}

func (f *StaticFeed) Decimals(context.Context) (uint8, error) {
	return f.decimals, nil
}
