package ledger

import (
	"encoding/binary"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Status is a transfer's lifecycle state. Pending is initial; the completed
// states are terminal and a record never returns to Pending.
type Status uint8

const (
	StatusPending Status = iota
	StatusCompletedSuccess
	StatusCompletedFailure
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusCompletedSuccess:
		return "completed"
	case StatusCompletedFailure:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status admits no further transition.
func (s Status) Terminal() bool {
	return s == StatusCompletedSuccess || s == StatusCompletedFailure
}

// TransferRequest is the durable record of a payout request. Created exactly
// once; mutated exactly once (status and settlement reference on completion);
// never deleted.
type TransferRequest struct {
	ID             common.Hash
	Sender         common.Address
	Asset          common.Address
	GrossAmount    *big.Int
	NetAmount      *big.Int
	FeeAmount      *big.Int
	RecipientPhone string
	CountryCode    string
	ProviderCode   string
	Status         Status
	CreatedAt      time.Time
	SettlementRef  string
}

func (r *TransferRequest) clone() TransferRequest {
	out := *r
	out.GrossAmount = new(big.Int).Set(r.GrossAmount)
	out.NetAmount = new(big.Int).Set(r.NetAmount)
	out.FeeAmount = new(big.Int).Set(r.FeeAmount)
	return out
}

// Stats are the ledger's monotone aggregates. TotalVolumeUSD carries the
// price feeds' decimal precision and accumulates each request's USD value at
// creation time.
type Stats struct {
	TotalTransactions uint64
	TotalVolumeUSD    *big.Int
}

// deriveID hashes the request identity plus a per-ledger sequence number and
// the creation timestamp, so no two requests collide even for identical
// submissions.
func deriveID(sender, asset common.Address, amount *big.Int, phone string, sequence uint64, createdAt time.Time) common.Hash {
	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], sequence)
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(createdAt.UnixNano()))

	return crypto.Keccak256Hash(
		sender.Bytes(),
		asset.Bytes(),
		common.LeftPadBytes(amount.Bytes(), 32),
		[]byte(phone),
		seq[:],
		ts[:],
	)
}
