package audit

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgxpool"

	"remitrails/internal/ledger"
)

// PostgresLog persists the transfer trail in a PostgreSQL table.
type PostgresLog struct {
	pool *pgxpool.Pool
}

const createTransfersSQL = `
CREATE TABLE IF NOT EXISTS transfer_audit (
    id TEXT PRIMARY KEY,
    sender TEXT NOT NULL,
    asset TEXT NOT NULL,
    gross_amount NUMERIC NOT NULL,
    net_amount NUMERIC NOT NULL,
    fee_amount NUMERIC NOT NULL,
    recipient_phone TEXT NOT NULL,
    country_code TEXT NOT NULL,
    provider_code TEXT NOT NULL,
    status TEXT NOT NULL,
    settlement_ref TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL,
    completed_at TIMESTAMPTZ
);
`

// NewPostgresLog connects using the DSN and ensures the table exists.
func NewPostgresLog(ctx context.Context, dsn string) (*PostgresLog, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is empty")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if _, err := pool.Exec(ctx, createTransfersSQL); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresLog{pool: pool}, nil
}

func (p *PostgresLog) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

func (p *PostgresLog) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *PostgresLog) RecordInitiated(ctx context.Context, rec ledger.TransferRequest) error {
	_, err := p.pool.Exec(ctx, `
INSERT INTO transfer_audit (id, sender, asset, gross_amount, net_amount, fee_amount,
    recipient_phone, country_code, provider_code, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (id) DO NOTHING
`, rec.ID.Hex(), rec.Sender.Hex(), rec.Asset.Hex(),
		rec.GrossAmount.String(), rec.NetAmount.String(), rec.FeeAmount.String(),
		rec.RecipientPhone, rec.CountryCode, rec.ProviderCode,
		rec.Status.String(), rec.CreatedAt)
	return err
}

func (p *PostgresLog) RecordCompleted(ctx context.Context, id common.Hash, status ledger.Status, settlementRef string) error {
	_, err := p.pool.Exec(ctx, `
UPDATE transfer_audit
SET status = $2, settlement_ref = $3, completed_at = NOW()
WHERE id = $1
`, id.Hex(), status.String(), settlementRef)
	return err
}
