package funding

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

const erc20ABI = `[
  {"name":"transferFrom","type":"function","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
  {"name":"transfer","type":"function","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
  {"name":"decimals","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]}
]`

// EthMover moves value over an Ethereum JSON-RPC endpoint: ERC-20 pulls via
// transferFrom against the custody key, payouts via token transfer or a plain
// native-value transaction.
type EthMover struct {
	client    *ethclient.Client
	abi       abi.ABI
	chainID   *big.Int
	key       *ecdsa.PrivateKey
	custody   common.Address
	transacts *bind.TransactOpts
}

type EthMoverConfig struct {
	RPCURL        string
	PrivateKeyHex string
}

func NewEthMover(ctx context.Context, cfg EthMoverConfig) (*EthMover, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	if cfg.PrivateKeyHex == "" {
		return nil, fmt.Errorf("private key is required for moving funds")
	}

	cli, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	parsedABI, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}

	key, err := parsePrivateKey(cfg.PrivateKeyHex)
	if err != nil {
		return nil, err
	}

	chainID, err := cli.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch chain id: %w", err)
	}

	txOpts, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, fmt.Errorf("transactor: %w", err)
	}
	txOpts.GasLimit = 0 // let node estimate
	txOpts.GasPrice = nil
	txOpts.Nonce = nil

	return &EthMover{
		client:    cli,
		abi:       parsedABI,
		chainID:   chainID,
		key:       key,
		custody:   crypto.PubkeyToAddress(key.PublicKey),
		transacts: txOpts,
	}, nil
}

func parsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimPrefix(hexKey, "0x")
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

// Client exposes the underlying RPC client so callers can share the
// connection, e.g. for price feed reads.
func (m *EthMover) Client() *ethclient.Client {
	return m.client
}

// Custody returns the address holding escrowed funds.
func (m *EthMover) Custody() common.Address {
	return m.custody
}

// Pull claims funds from a sender. Native value arrives with the sender's own
// deposit transaction, so only token assets require a transfer-from here.
func (m *EthMover) Pull(ctx context.Context, asset, from common.Address, amount *big.Int) error {
	if asset == NativeAsset {
		return nil
	}

	bound := bind.NewBoundContract(asset, m.abi, m.client, m.client, m.client)
	opts := *m.transacts
	opts.Context = ctx

	tx, err := bound.Transact(&opts, "transferFrom", from, m.custody, amount)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "allowance") ||
			strings.Contains(strings.ToLower(err.Error()), "balance") {
			return fmt.Errorf("transfer from %s: %w", from.Hex(), ErrInsufficientFunds)
		}
		return fmt.Errorf("transfer from %s: %w", from.Hex(), err)
	}
	return m.waitMined(ctx, tx)
}

func (m *EthMover) Payout(ctx context.Context, asset, to common.Address, amount *big.Int) error {
	if asset == NativeAsset {
		return m.sendNative(ctx, to, amount)
	}

	bound := bind.NewBoundContract(asset, m.abi, m.client, m.client, m.client)
	opts := *m.transacts
	opts.Context = ctx

	tx, err := bound.Transact(&opts, "transfer", to, amount)
	if err != nil {
		return fmt.Errorf("token payout to %s: %w", to.Hex(), err)
	}
	return m.waitMined(ctx, tx)
}

func (m *EthMover) Decimals(ctx context.Context, asset common.Address) (uint8, error) {
	if asset == NativeAsset {
		return NativeDecimals, nil
	}

	bound := bind.NewBoundContract(asset, m.abi, m.client, m.client, m.client)
	var out []interface{}
	if err := bound.Call(&bind.CallOpts{Context: ctx}, &out, "decimals"); err != nil {
		return 0, fmt.Errorf("token decimals: %w", err)
	}
	dec, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("token decimals: unexpected type %T", out[0])
	}
	return dec, nil
}

func (m *EthMover) Ping(ctx context.Context) error {
	_, err := m.client.BlockNumber(ctx)
	return err
}

func (m *EthMover) sendNative(ctx context.Context, to common.Address, amount *big.Int) error {
	nonce, err := m.client.PendingNonceAt(ctx, m.custody)
	if err != nil {
		return fmt.Errorf("fetch nonce: %w", err)
	}
	gasPrice, err := m.client.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("suggest gas price: %w", err)
	}

	tx := types.NewTransaction(nonce, to, amount, 21000, gasPrice, nil)
	signed, err := types.SignTx(tx, types.NewEIP155Signer(m.chainID), m.key)
	if err != nil {
		return fmt.Errorf("sign native payout: %w", err)
	}
	if err := m.client.SendTransaction(ctx, signed); err != nil {
		return fmt.Errorf("native payout to %s: %w", to.Hex(), err)
	}
	return m.waitMined(ctx, signed)
}

func (m *EthMover) waitMined(ctx context.Context, tx *types.Transaction) error {
	receipt, err := bind.WaitMined(ctx, m.client, tx)
	if err != nil {
		return fmt.Errorf("wait mined %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("transaction %s reverted: %w", tx.Hash().Hex(), ErrInsufficientFunds)
	}
	return nil
}
