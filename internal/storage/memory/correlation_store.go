package memory

import (
	"context"

	"amm-position-ledger/internal/domain"
	"amm-position-ledger/internal/entityid"
	"amm-position-ledger/internal/storage"
)

// CorrelationStore is an in-memory implementation of storage.CorrelationStore.
type CorrelationStore struct {
	mints   *table[*domain.Mint]
	burns   *table[*domain.Burn]
	markers *table[*domain.SyncMarker]
}

func newCorrelationStore(db *DB) *CorrelationStore {
	return &CorrelationStore{
		mints: newTable(db, (*domain.Mint).Clone),
		burns: newTable(db, (*domain.Burn).Clone),
		markers: newTable(db, func(m *domain.SyncMarker) *domain.SyncMarker {
			c := *m
			return &c
		}),
	}
}

// GetMint retrieves a mint record by tx hash. Returns ErrNotFound if not exists.
func (s *CorrelationStore) GetMint(_ context.Context, id string) (*domain.Mint, error) {
	m, ok := s.mints.get(id)
	if !ok {
		return nil, storage.ErrNotFound
	}
	return m, nil
}

// PutMint creates or overwrites a mint record.
func (s *CorrelationStore) PutMint(_ context.Context, m *domain.Mint) error {
	if m == nil || m.ID == "" {
		return storage.ErrInvalidInput
	}
	s.mints.put(m.ID, m)
	return nil
}

// GetBurn retrieves a burn record by tx hash. Returns ErrNotFound if not exists.
func (s *CorrelationStore) GetBurn(_ context.Context, id string) (*domain.Burn, error) {
	b, ok := s.burns.get(id)
	if !ok {
		return nil, storage.ErrNotFound
	}
	return b, nil
}

// PutBurn creates or overwrites a burn record.
func (s *CorrelationStore) PutBurn(_ context.Context, b *domain.Burn) error {
	if b == nil || b.ID == "" {
		return storage.ErrInvalidInput
	}
	s.burns.put(b.ID, b)
	return nil
}

// HasSyncMarker reports whether a sync was seen for (pair, txHash) before any record.
func (s *CorrelationStore) HasSyncMarker(_ context.Context, pair, txHash string) (bool, error) {
	return s.markers.has(entityid.SyncMarkerKey{Pair: pair, TxHash: txHash}.String()), nil
}

// PutSyncMarker records a sync for (pair, txHash).
func (s *CorrelationStore) PutSyncMarker(_ context.Context, m *domain.SyncMarker) error {
	if m == nil || m.Pair == "" || m.TxHash == "" {
		return storage.ErrInvalidInput
	}
	s.markers.put(entityid.SyncMarkerKey{Pair: m.Pair, TxHash: m.TxHash}.String(), m)
	return nil
}

var _ storage.CorrelationStore = (*CorrelationStore)(nil)
