package audit

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"remitrails/internal/ledger"
)

// Log is the durable, append-only trail of transfer records. Writes happen
// after the ledger commits and are best-effort: an audit failure is logged
// by the caller, never unwound into ledger state.
type Log interface {
	RecordInitiated(ctx context.Context, rec ledger.TransferRequest) error
	RecordCompleted(ctx context.Context, id common.Hash, status ledger.Status, settlementRef string) error
}

// NopLog discards audit writes. Used when no database is configured.
type NopLog struct{}

func (NopLog) RecordInitiated(context.Context, ledger.TransferRequest) error {
	return nil
}

func (NopLog) RecordCompleted(context.Context, common.Hash, ledger.Status, string) error {
	return nil
}
