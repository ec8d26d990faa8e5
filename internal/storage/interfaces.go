package storage

import (
	"context"

	"amm-position-ledger/internal/domain"
)

// AccountStore provides access to accounts storage.
type AccountStore interface {
	// Ensure creates the account if it does not exist. Idempotent.
	Ensure(ctx context.Context, a *domain.Account) error

	// Get retrieves an account by id. Returns ErrNotFound if not exists.
	Get(ctx context.Context, id string) (*domain.Account, error)
}

// TokenStore provides access to tokens storage.
type TokenStore interface {
	// Insert adds a new token. Returns ErrDuplicateKey if id exists.
	Insert(ctx context.Context, t *domain.Token) error

	// Get retrieves a token by address. Returns ErrNotFound if not exists.
	Get(ctx context.Context, id string) (*domain.Token, error)
}

// PairStore provides access to pairs storage.
type PairStore interface {
	// Insert adds a new pair. Returns ErrDuplicateKey if id exists.
	Insert(ctx context.Context, p *domain.Pair) error

	// Update overwrites reserves and total supply. Returns ErrNotFound if not exists.
	Update(ctx context.Context, p *domain.Pair) error

	// Get retrieves a pair by address. Returns ErrNotFound if not exists.
	Get(ctx context.Context, id string) (*domain.Pair, error)

	// List returns all pairs ordered by creation block, then id.
	List(ctx context.Context) ([]*domain.Pair, error)
}

// MarketStore provides access to markets storage.
type MarketStore interface {
	// Insert adds a new market. Returns ErrDuplicateKey if id exists.
	Insert(ctx context.Context, m *domain.Market) error

	// Update overwrites the market totals. Returns ErrNotFound if not exists.
	Update(ctx context.Context, m *domain.Market) error

	// Get retrieves a market by id. Returns ErrNotFound if not exists.
	Get(ctx context.Context, id string) (*domain.Market, error)
}

// LiquidityStore provides access to per-account pool share balances.
type LiquidityStore interface {
	// Get retrieves the balance record for (pair, account). Returns ErrNotFound if not exists.
	Get(ctx context.Context, pair, account string) (*domain.AccountLiquidity, error)

	// Put creates or overwrites the balance record.
	Put(ctx context.Context, l *domain.AccountLiquidity) error

	// ListByPair returns every balance record of a pair ordered by account.
	ListByPair(ctx context.Context, pair string) ([]*domain.AccountLiquidity, error)
}

// AccountPositionStore provides access to position counters.
type AccountPositionStore interface {
	// Get retrieves a counter record by id. Returns ErrNotFound if not exists.
	Get(ctx context.Context, id string) (*domain.AccountPosition, error)

	// Put creates or overwrites the counter record.
	Put(ctx context.Context, ap *domain.AccountPosition) error
}

// PositionStore provides access to position versions.
type PositionStore interface {
	// Get retrieves a position by id. Returns ErrNotFound if not exists.
	Get(ctx context.Context, id string) (*domain.Position, error)

	// Put creates or overwrites a position.
	Put(ctx context.Context, p *domain.Position) error

	// ListByAccount returns all positions of an account ordered by id.
	ListByAccount(ctx context.Context, account string) ([]*domain.Position, error)
}

// SnapshotStore provides access to append-only snapshot storage.
type SnapshotStore interface {
	// InsertPosition adds a position snapshot. Returns ErrDuplicateKey if id exists.
	InsertPosition(ctx context.Context, s *domain.PositionSnapshot) error

	// InsertMarket adds a market snapshot. Returns ErrDuplicateKey if id exists.
	InsertMarket(ctx context.Context, s *domain.MarketSnapshot) error

	// InsertPair adds a pair snapshot. Returns ErrDuplicateKey if id exists.
	InsertPair(ctx context.Context, s *domain.PairSnapshot) error

	// ListPositionSnapshots returns snapshots of a position in insertion order.
	ListPositionSnapshots(ctx context.Context, position string) ([]*domain.PositionSnapshot, error)

	// ListMarketSnapshots returns snapshots of a market in chain order.
	ListMarketSnapshots(ctx context.Context, market string) ([]*domain.MarketSnapshot, error)

	// ListPairSnapshots returns snapshots of a pair in chain order.
	ListPairSnapshots(ctx context.Context, pair string) ([]*domain.PairSnapshot, error)
}

// TransactionStore provides access to append-only transaction storage.
type TransactionStore interface {
	// Insert adds a transaction. Returns ErrDuplicateKey if id exists.
	Insert(ctx context.Context, t *domain.Transaction) error

	// Get retrieves a transaction by id. Returns ErrNotFound if not exists.
	Get(ctx context.Context, id string) (*domain.Transaction, error)

	// ListByAccount returns all transactions of an account in chain order.
	ListByAccount(ctx context.Context, account string) ([]*domain.Transaction, error)
}

// CorrelationStore provides access to in-progress mint/burn records.
type CorrelationStore interface {
	// GetMint retrieves a mint record by tx hash. Returns ErrNotFound if not exists.
	GetMint(ctx context.Context, id string) (*domain.Mint, error)

	// PutMint creates or overwrites a mint record.
	PutMint(ctx context.Context, m *domain.Mint) error

	// GetBurn retrieves a burn record by tx hash. Returns ErrNotFound if not exists.
	GetBurn(ctx context.Context, id string) (*domain.Burn, error)

	// PutBurn creates or overwrites a burn record.
	PutBurn(ctx context.Context, b *domain.Burn) error

	// HasSyncMarker reports whether a sync was seen for (pair, txHash) before any record.
	HasSyncMarker(ctx context.Context, pair, txHash string) (bool, error)

	// PutSyncMarker records a sync for (pair, txHash). Idempotent.
	PutSyncMarker(ctx context.Context, m *domain.SyncMarker) error
}

// ProcessedLogStore records which logs have been applied.
type ProcessedLogStore interface {
	// IsProcessed reports whether the log key has been applied.
	IsProcessed(ctx context.Context, key string) (bool, error)

	// MarkProcessed records the log key. Returns ErrDuplicateKey if already recorded.
	MarkProcessed(ctx context.Context, key string) error
}

// Stores bundles every store a unit of work writes to.
type Stores struct {
	Accounts         AccountStore
	Tokens           TokenStore
	Pairs            PairStore
	Markets          MarketStore
	Liquidity        LiquidityStore
	AccountPositions AccountPositionStore
	Positions        PositionStore
	Snapshots        SnapshotStore
	Transactions     TransactionStore
	Correlations     CorrelationStore
	ProcessedLogs    ProcessedLogStore
}

// UnitOfWork runs fn against stores whose writes commit together or not at all.
type UnitOfWork interface {
	// RunInTx commits when fn returns nil and rolls back every write otherwise.
	RunInTx(ctx context.Context, fn func(ctx context.Context, s *Stores) error) error
}
