package memory

import (
	"context"
	"sort"

	"amm-position-ledger/internal/domain"
	"amm-position-ledger/internal/storage"
)

// TransactionStore is an in-memory implementation of storage.TransactionStore.
type TransactionStore struct {
	rows *table[*domain.Transaction]
}

func newTransactionStore(db *DB) *TransactionStore {
	return &TransactionStore{rows: newTable(db, (*domain.Transaction).Clone)}
}

// Insert adds a transaction. Returns ErrDuplicateKey if id exists.
func (s *TransactionStore) Insert(_ context.Context, t *domain.Transaction) error {
	if t == nil || t.ID == "" {
		return storage.ErrInvalidInput
	}
	return s.rows.insert(t.ID, t)
}

// Get retrieves a transaction by id. Returns ErrNotFound if not exists.
func (s *TransactionStore) Get(_ context.Context, id string) (*domain.Transaction, error) {
	t, ok := s.rows.get(id)
	if !ok {
		return nil, storage.ErrNotFound
	}
	return t, nil
}

// ListByAccount returns all transactions of an account in chain order.
func (s *TransactionStore) ListByAccount(_ context.Context, account string) ([]*domain.Transaction, error) {
	txs := s.rows.list(func(t *domain.Transaction) bool { return t.Account == account })
	sort.SliceStable(txs, func(i, j int) bool {
		return chainLess(
			txs[i].BlockNumber, txs[i].TransactionIndexInBlock, txs[i].LogIndex,
			txs[j].BlockNumber, txs[j].TransactionIndexInBlock, txs[j].LogIndex,
		)
	})
	return txs, nil
}

var _ storage.TransactionStore = (*TransactionStore)(nil)
