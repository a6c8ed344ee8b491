package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"liquidityVault/internal/model"
)

// Schema creates the tables the store writes to.
const Schema = `
CREATE TABLE IF NOT EXISTS vault_events (
	vault        TEXT        NOT NULL,
	sequence     BIGINT      NOT NULL,
	block_number BIGINT      NOT NULL,
	block_ts     BIGINT      NOT NULL,
	event_name   TEXT        NOT NULL,
	decoded      JSONB       NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (vault, sequence)
);
CREATE TABLE IF NOT EXISTS vault_state (
	vault        TEXT        PRIMARY KEY,
	block_number BIGINT      NOT NULL,
	snapshot     JSONB       NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store provides Postgres persistence for vault events and snapshots.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates missing tables.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// PutEvents inserts events; an event already stored under the same vault and sequence is left alone.
func (s *Store) PutEvents(ctx context.Context, events []model.VaultEvent) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, ev := range events {
		decoded, err := json.Marshal(ev.Decoded)
		if err != nil {
			return fmt.Errorf("marshal event %d: %w", ev.Sequence, err)
		}
		batch.Queue(`
			INSERT INTO vault_events (vault, sequence, block_number, block_ts, event_name, decoded, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, now())
			ON CONFLICT (vault, sequence) DO NOTHING
		`,
			ev.Vault,
			int64(ev.Sequence),
			int64(ev.BlockNumber),
			int64(ev.Timestamp),
			ev.EventName,
			decoded,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// ListEvents returns a vault's events in sequence order.
func (s *Store) ListEvents(ctx context.Context, vault string) ([]model.VaultEventRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT sequence, block_number, block_ts, vault, event_name, decoded
		FROM vault_events WHERE vault=$1 ORDER BY sequence
	`, vault)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.VaultEventRecord
	for rows.Next() {
		var rec model.VaultEventRecord
		var seq, block, ts int64
		if err := rows.Scan(&seq, &block, &ts, &rec.Vault, &rec.EventName, &rec.Decoded); err != nil {
			return nil, err
		}
		rec.Sequence, rec.BlockNumber, rec.Timestamp = uint64(seq), uint64(block), uint64(ts)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// LoadSnapshot returns the stored snapshot JSON for a vault.
func (s *Store) LoadSnapshot(ctx context.Context, vault string) ([]byte, bool, error) {
	if vault == "" {
		return nil, false, fmt.Errorf("vault address required")
	}
	var data []byte
	row := s.pool.QueryRow(ctx, `SELECT snapshot FROM vault_state WHERE vault=$1`, vault)
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// SaveSnapshot upserts the snapshot JSON for a vault.
func (s *Store) SaveSnapshot(ctx context.Context, vault string, block uint64, data []byte) error {
	if vault == "" {
		return fmt.Errorf("vault address required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO vault_state (vault, block_number, snapshot, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (vault) DO UPDATE
		SET block_number = EXCLUDED.block_number, snapshot = EXCLUDED.snapshot, updated_at = now()
	`, vault, int64(block), data)
	return err
}
