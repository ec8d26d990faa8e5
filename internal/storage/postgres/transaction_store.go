package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"amm-position-ledger/internal/domain"
	"amm-position-ledger/internal/storage"
)

// TransactionStore implements storage.TransactionStore using PostgreSQL.
// Append-only: rows are never updated.
type TransactionStore struct {
	q querier
}

// NewTransactionStore creates a new TransactionStore on the pool.
func NewTransactionStore(pool *Pool) *TransactionStore {
	return &TransactionStore{q: pool}
}

var _ storage.TransactionStore = (*TransactionStore)(nil)

const transactionColumns = `id, account, transaction_hash, market, tx_from, tx_to,
	transaction_type, transferred_from, transferred_to, input_token_amounts,
	output_token_amount, reward_token_amounts, block_number, timestamp,
	transaction_index_in_block, log_index`

// Insert adds a transaction. Returns ErrDuplicateKey if id exists.
func (s *TransactionStore) Insert(ctx context.Context, t *domain.Transaction) error {
	if t == nil || t.ID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.q.Exec(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`,
		t.ID, t.Account, t.TransactionHash, t.Market, t.From, t.To,
		string(t.TransactionType), t.TransferredFrom, t.TransferredTo, t.InputTokenAmounts.Strings(),
		numeric(t.OutputTokenAmount), t.RewardTokenAmounts.Strings(), t.BlockNumber, t.Timestamp,
		t.TransactionIndexInBlock, t.LogIndex,
	)
	return insertErr("transaction", err)
}

// Get retrieves a transaction by id. Returns ErrNotFound if not exists.
func (s *TransactionStore) Get(ctx context.Context, id string) (*domain.Transaction, error) {
	row := s.q.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)

	t, err := scanTransaction(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// ListByAccount returns all transactions of an account in chain order.
func (s *TransactionStore) ListByAccount(ctx context.Context, account string) ([]*domain.Transaction, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE account = $1
		ORDER BY block_number ASC, transaction_index_in_block ASC, log_index ASC
	`, account)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []*domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		t              domain.Transaction
		txType         string
		inputs, reward []string
		output         pgtype.Numeric
	)
	if err := row.Scan(
		&t.ID, &t.Account, &t.TransactionHash, &t.Market, &t.From, &t.To,
		&txType, &t.TransferredFrom, &t.TransferredTo, &inputs,
		&output, &reward, &t.BlockNumber, &t.Timestamp,
		&t.TransactionIndexInBlock, &t.LogIndex,
	); err != nil {
		return nil, err
	}

	var err error
	t.TransactionType = domain.TransactionType(txType)
	t.OutputTokenAmount = bigInt(output)
	if t.InputTokenAmounts, err = balances(inputs); err != nil {
		return nil, err
	}
	if t.RewardTokenAmounts, err = balances(reward); err != nil {
		return nil, err
	}
	return &t, nil
}
