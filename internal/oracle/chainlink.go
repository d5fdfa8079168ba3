package oracle

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

const aggregatorABI = `[
  {"name":"latestRoundData","type":"function","stateMutability":"view","inputs":[],"outputs":[
    {"name":"roundId","type":"uint80"},
    {"name":"answer","type":"int256"},
    {"name":"startedAt","type":"uint256"},
    {"name":"updatedAt","type":"uint256"},
    {"name":"answeredInRound","type":"uint80"}]},
  {"name":"decimals","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]}
]`

// ChainlinkFeed reads a Chainlink-style aggregator contract.
type ChainlinkFeed struct {
	contract *bind.BoundContract
	address  common.Address
}

func NewChainlinkFeed(client *ethclient.Client, address common.Address) (*ChainlinkFeed, error) {
	if (address == common.Address{}) {
		return nil, fmt.Errorf("aggregator address is required")
	}
	parsedABI, err := abi.JSON(strings.NewReader(aggregatorABI))
	if err != nil {
		return nil, fmt.Errorf("parse aggregator abi: %w", err)
	}
	return &ChainlinkFeed{
		contract: bind.NewBoundContract(address, parsedABI, client, client, client),
		address:  address,
	}, nil
}

func (f *ChainlinkFeed) Address() common.Address {
	return f.address
}

func (f *ChainlinkFeed) LatestRoundData(ctx context.Context) (*big.Int, time.Time, error) {
	var out []interface{}
	if err := f.contract.Call(&bind.CallOpts{Context: ctx}, &out, "latestRoundData"); err != nil {
		return nil, time.Time{}, fmt.Errorf("latestRoundData %s: %w", f.address.Hex(), err)
	}
	answer, ok := out[1].(*big.Int)
	if !ok {
		return nil, time.Time{}, fmt.Errorf("latestRoundData %s: unexpected answer type %T", f.address.Hex(), out[1])
	}
	updatedAt, ok := out[3].(*big.Int)
	if !ok {
		return nil, time.Time{}, fmt.Errorf("latestRoundData %s: unexpected updatedAt type %T", f.address.Hex(), out[3])
	}
	return answer, time.Unix(updatedAt.Int64(), 0), nil
}

func (f *ChainlinkFeed) Decimals(ctx context.Context) (uint8, error) {
	var out []interface{}
	if err := f.contract.Call(&bind.CallOpts{Context: ctx}, &out, "decimals"); err != nil {
		return 0, fmt.Errorf("feed decimals %s: %w", f.address.Hex(), err)
	}
	dec, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("feed decimals %s: unexpected type %T", f.address.Hex(), out[0])
	}
	return dec, nil
}
