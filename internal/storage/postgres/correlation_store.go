package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"

	"amm-position-ledger/internal/domain"
	"amm-position-ledger/internal/storage"
)

// CorrelationStore implements storage.CorrelationStore using PostgreSQL.
// Tables: mints, burns and sync_markers.
type CorrelationStore struct {
	q querier
}

// NewCorrelationStore creates a new CorrelationStore on the pool.
func NewCorrelationStore(pool *Pool) *CorrelationStore {
	return &CorrelationStore{q: pool}
}

var _ storage.CorrelationStore = (*CorrelationStore)(nil)

// GetMint retrieves a mint record by tx hash. Returns ErrNotFound if not exists.
func (s *CorrelationStore) GetMint(ctx context.Context, id string) (*domain.Mint, error) {
	var (
		m                     domain.Mint
		liquidity, amt0, amt1 pgtype.Numeric
	)
	err := s.q.QueryRow(ctx, `
		SELECT id, pair, recipient_account, sender, liquidity_amount, amount0, amount1,
		       transfer_event_applied, sync_event_applied, mint_event_applied, reconciled
		FROM mints
		WHERE id = $1
	`, id).Scan(
		&m.ID, &m.Pair, &m.To, &m.Sender, &liquidity, &amt0, &amt1,
		&m.TransferEventApplied, &m.SyncEventApplied, &m.MintEventApplied, &m.Reconciled,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get mint: %w", err)
	}
	m.LiquidityAmount = bigInt(liquidity)
	m.Amount0 = bigInt(amt0)
	m.Amount1 = bigInt(amt1)
	return &m, nil
}

// PutMint creates or overwrites a mint record.
func (s *CorrelationStore) PutMint(ctx context.Context, m *domain.Mint) error {
	if m == nil || m.ID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.q.Exec(ctx, `
		INSERT INTO mints (
			id, pair, recipient_account, sender, liquidity_amount, amount0, amount1,
			transfer_event_applied, sync_event_applied, mint_event_applied, reconciled
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE
		SET recipient_account = EXCLUDED.recipient_account,
		    sender = EXCLUDED.sender,
		    liquidity_amount = EXCLUDED.liquidity_amount,
		    amount0 = EXCLUDED.amount0,
		    amount1 = EXCLUDED.amount1,
		    transfer_event_applied = EXCLUDED.transfer_event_applied,
		    sync_event_applied = EXCLUDED.sync_event_applied,
		    mint_event_applied = EXCLUDED.mint_event_applied,
		    reconciled = EXCLUDED.reconciled
	`,
		m.ID, m.Pair, m.To, m.Sender,
		numeric(m.LiquidityAmount), numeric(m.Amount0), numeric(m.Amount1),
		m.TransferEventApplied, m.SyncEventApplied, m.MintEventApplied, m.Reconciled,
	)
	if err != nil {
		return fmt.Errorf("put mint: %w", err)
	}
	return nil
}

// GetBurn retrieves a burn record by tx hash. Returns ErrNotFound if not exists.
func (s *CorrelationStore) GetBurn(ctx context.Context, id string) (*domain.Burn, error) {
	var (
		b                     domain.Burn
		liquidity, amt0, amt1 pgtype.Numeric
	)
	err := s.q.QueryRow(ctx, `
		SELECT id, pair, owner_account, recipient, sender, liquidity_amount, amount0, amount1,
		       transfer_event_applied, sync_event_applied, burn_event_applied, reconciled
		FROM burns
		WHERE id = $1
	`, id).Scan(
		&b.ID, &b.Pair, &b.To, &b.Recipient, &b.Sender, &liquidity, &amt0, &amt1,
		&b.TransferEventApplied, &b.SyncEventApplied, &b.BurnEventApplied, &b.Reconciled,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get burn: %w", err)
	}
	b.LiquidityAmount = bigInt(liquidity)
	b.Amount0 = bigInt(amt0)
	b.Amount1 = bigInt(amt1)
	return &b, nil
}

// PutBurn creates or overwrites a burn record.
func (s *CorrelationStore) PutBurn(ctx context.Context, b *domain.Burn) error {
	if b == nil || b.ID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.q.Exec(ctx, `
		INSERT INTO burns (
			id, pair, owner_account, recipient, sender, liquidity_amount, amount0, amount1,
			transfer_event_applied, sync_event_applied, burn_event_applied, reconciled
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE
		SET owner_account = EXCLUDED.owner_account,
		    recipient = EXCLUDED.recipient,
		    sender = EXCLUDED.sender,
		    liquidity_amount = EXCLUDED.liquidity_amount,
		    amount0 = EXCLUDED.amount0,
		    amount1 = EXCLUDED.amount1,
		    transfer_event_applied = EXCLUDED.transfer_event_applied,
		    sync_event_applied = EXCLUDED.sync_event_applied,
		    burn_event_applied = EXCLUDED.burn_event_applied,
		    reconciled = EXCLUDED.reconciled
	`,
		b.ID, b.Pair, b.To, b.Recipient, b.Sender,
		numeric(b.LiquidityAmount), numeric(b.Amount0), numeric(b.Amount1),
		b.TransferEventApplied, b.SyncEventApplied, b.BurnEventApplied, b.Reconciled,
	)
	if err != nil {
		return fmt.Errorf("put burn: %w", err)
	}
	return nil
}

// HasSyncMarker reports whether a sync was seen for (pair, txHash) before any record.
func (s *CorrelationStore) HasSyncMarker(ctx context.Context, pair, txHash string) (bool, error) {
	var exists bool
	err := s.q.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM sync_markers WHERE pair = $1 AND tx_hash = $2)
	`, pair, txHash).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("has sync marker: %w", err)
	}
	return exists, nil
}

// PutSyncMarker records a sync for (pair, txHash). Idempotent.
func (s *CorrelationStore) PutSyncMarker(ctx context.Context, m *domain.SyncMarker) error {
	if m == nil || m.Pair == "" || m.TxHash == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.q.Exec(ctx, `
		INSERT INTO sync_markers (pair, tx_hash)
		VALUES ($1, $2)
		ON CONFLICT (pair, tx_hash) DO NOTHING
	`, m.Pair, m.TxHash)
	if err != nil {
		return fmt.Errorf("put sync marker: %w", err)
	}
	return nil
}
