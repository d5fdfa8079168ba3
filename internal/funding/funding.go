package funding

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// NativeAsset is the distinguished asset identifier for the chain's native
// currency. Any other address denotes a fungible token contract.
var NativeAsset = common.Address{}

// NativeDecimals is the smallest-unit precision of the native asset.
const NativeDecimals uint8 = 18

var (
	ErrInsufficientFunds = errors.New("insufficient balance or allowance")
	ErrUnknownAsset      = errors.New("unknown asset")
)

// Mover moves value between the ledger's custody account and the outside
// world. Pull claims funds from a sender (a token transfer-from, or taking
// custody of natively attached value); Payout releases custody funds to a
// destination (fee routing, emergency withdrawal).
//
// Both operations are all-or-nothing: on error no value has moved.
type Mover interface {
	Pull(ctx context.Context, asset, from common.Address, amount *big.Int) error
	Payout(ctx context.Context, asset, to common.Address, amount *big.Int) error
	Decimals(ctx context.Context, asset common.Address) (uint8, error)
}
