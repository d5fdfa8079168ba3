package audit

import (
	"context"
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"remitrails/internal/ledger"
)

func TestPostgresLogLifecycle(t *testing.T) {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	log, err := NewPostgresLog(ctx, dsn)
	if err != nil {
		t.Fatalf("new log: %v", err)
	}
	defer log.Close()

	rec := ledger.TransferRequest{
		ID:             common.HexToHash("0xabc1"),
		Sender:         common.HexToAddress("0x01"),
		Asset:          common.Address{},
		GrossAmount:    big.NewInt(1_000_000_000_000_000),
		NetAmount:      big.NewInt(990_000_000_000_000),
		FeeAmount:      big.NewInt(10_000_000_000_000),
		RecipientPhone: "+254712345678",
		CountryCode:    "KE",
		ProviderCode:   "mpesa",
		Status:         ledger.StatusPending,
		CreatedAt:      time.Now().UTC(),
	}

	if err := log.RecordInitiated(ctx, rec); err != nil {
		t.Fatalf("record initiated: %v", err)
	}
	// Replays are absorbed, not duplicated.
	if err := log.RecordInitiated(ctx, rec); err != nil {
		t.Fatalf("replayed insert: %v", err)
	}

	if err := log.RecordCompleted(ctx, rec.ID, ledger.StatusCompletedSuccess, "MPESA-1"); err != nil {
		t.Fatalf("record completed: %v", err)
	}
}
