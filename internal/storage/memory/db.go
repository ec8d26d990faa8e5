package memory

import (
	"context"
	"sort"
	"sync"

	"amm-position-ledger/internal/storage"
)

// DB is an in-memory backend for every ledger store.
// Writes made inside RunInTx are journaled and undone if the unit of work fails.
type DB struct {
	txMu sync.Mutex // serializes units of work

	mu    sync.RWMutex
	inTx  bool
	undo  []func()
	seq   uint64
	store *storage.Stores

	Accounts         *AccountStore
	Tokens           *TokenStore
	Pairs            *PairStore
	Markets          *MarketStore
	Liquidity        *LiquidityStore
	AccountPositions *AccountPositionStore
	Positions        *PositionStore
	Snapshots        *SnapshotStore
	Transactions     *TransactionStore
	Correlations     *CorrelationStore
	ProcessedLogs    *ProcessedLogStore
}

// NewDB creates an empty in-memory backend.
func NewDB() *DB {
	db := &DB{}
	db.Accounts = newAccountStore(db)
	db.Tokens = newTokenStore(db)
	db.Pairs = newPairStore(db)
	db.Markets = newMarketStore(db)
	db.Liquidity = newLiquidityStore(db)
	db.AccountPositions = newAccountPositionStore(db)
	db.Positions = newPositionStore(db)
	db.Snapshots = newSnapshotStore(db)
	db.Transactions = newTransactionStore(db)
	db.Correlations = newCorrelationStore(db)
	db.ProcessedLogs = newProcessedLogStore(db)
	db.store = &storage.Stores{
		Accounts:         db.Accounts,
		Tokens:           db.Tokens,
		Pairs:            db.Pairs,
		Markets:          db.Markets,
		Liquidity:        db.Liquidity,
		AccountPositions: db.AccountPositions,
		Positions:        db.Positions,
		Snapshots:        db.Snapshots,
		Transactions:     db.Transactions,
		Correlations:     db.Correlations,
		ProcessedLogs:    db.ProcessedLogs,
	}
	return db
}

// Stores returns the bundle of stores backed by db.
func (db *DB) Stores() *storage.Stores {
	return db.store
}

// RunInTx runs fn and undoes all of its writes if it returns an error or panics.
func (db *DB) RunInTx(ctx context.Context, fn func(ctx context.Context, s *storage.Stores) error) (err error) {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mu.Lock()
	db.inTx = true
	db.undo = nil
	db.mu.Unlock()

	committed := false
	defer func() {
		db.mu.Lock()
		defer db.mu.Unlock()
		if !committed {
			for i := len(db.undo) - 1; i >= 0; i-- {
				db.undo[i]()
			}
		}
		db.inTx = false
		db.undo = nil
	}()

	if err := fn(ctx, db.store); err != nil {
		return err
	}
	committed = true
	return nil
}

// record registers an undo step. Caller must hold db.mu.
func (db *DB) record(undo func()) {
	if db.inTx {
		db.undo = append(db.undo, undo)
	}
}

// nextSeq returns a monotonically increasing insertion number. Caller must hold db.mu.
func (db *DB) nextSeq() uint64 {
	db.seq++
	return db.seq
}

var _ storage.UnitOfWork = (*DB)(nil)

type row[T any] struct {
	value T
	seq   uint64
}

// table is a keyed collection sharing the DB lock and journal.
// Values are cloned on the way in and on the way out.
type table[T any] struct {
	db    *DB
	rows  map[string]row[T]
	clone func(T) T
}

func newTable[T any](db *DB, clone func(T) T) *table[T] {
	return &table[T]{db: db, rows: make(map[string]row[T]), clone: clone}
}

func (t *table[T]) get(id string) (T, bool) {
	t.db.mu.RLock()
	defer t.db.mu.RUnlock()

	r, ok := t.rows[id]
	if !ok {
		var zero T
		return zero, false
	}
	return t.clone(r.value), true
}

func (t *table[T]) has(id string) bool {
	t.db.mu.RLock()
	defer t.db.mu.RUnlock()

	_, ok := t.rows[id]
	return ok
}

// insert adds a new row. Returns storage.ErrDuplicateKey if id exists.
func (t *table[T]) insert(id string, v T) error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()

	if _, exists := t.rows[id]; exists {
		return storage.ErrDuplicateKey
	}
	t.set(id, t.clone(v))
	return nil
}

// update overwrites an existing row. Returns storage.ErrNotFound if id does not exist.
func (t *table[T]) update(id string, v T) error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()

	if _, exists := t.rows[id]; !exists {
		return storage.ErrNotFound
	}
	t.set(id, t.clone(v))
	return nil
}

// put creates or overwrites a row.
func (t *table[T]) put(id string, v T) {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()

	t.set(id, t.clone(v))
}

// set writes v under id and journals the previous state. Caller must hold db.mu.
func (t *table[T]) set(id string, v T) {
	prev, existed := t.rows[id]
	seq := prev.seq
	if !existed {
		seq = t.db.nextSeq()
	}
	t.rows[id] = row[T]{value: v, seq: seq}
	t.db.record(func() {
		if existed {
			t.rows[id] = prev
		} else {
			delete(t.rows, id)
		}
	})
}

// list returns clones of all rows matching keep, in insertion order.
func (t *table[T]) list(keep func(T) bool) []T {
	t.db.mu.RLock()
	defer t.db.mu.RUnlock()

	matched := make([]row[T], 0)
	for _, r := range t.rows {
		if keep == nil || keep(r.value) {
			matched = append(matched, r)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq < matched[j].seq })

	out := make([]T, len(matched))
	for i, r := range matched {
		out[i] = t.clone(r.value)
	}
	return out
}
