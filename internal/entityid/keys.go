// Package entityid builds the deterministic string identifiers entities are stored under.
// These formats are read by downstream query consumers and must not change.
package entityid

import (
	"strconv"

	"amm-position-ledger/internal/domain"
)

// AccountPositionKey identifies the position counter of an (account, market, type) tuple.
// Format: account-market-type
type AccountPositionKey struct {
	Account      string
	Market       string
	PositionType domain.PositionType
}

func (k AccountPositionKey) String() string {
	return k.Account + "-" + k.Market + "-" + string(k.PositionType)
}

// PositionKey identifies one position version.
// Format: accountPosition-counter
type PositionKey struct {
	AccountPosition AccountPositionKey
	Counter         uint64
}

func (k PositionKey) String() string {
	return k.AccountPosition.String() + "-" + strconv.FormatUint(k.Counter, 10)
}

// PositionSnapshotKey identifies one snapshot of a position.
// Format: position-historyCounter
type PositionSnapshotKey struct {
	Position       string
	HistoryCounter uint64
}

func (k PositionSnapshotKey) String() string {
	return k.Position + "-" + strconv.FormatUint(k.HistoryCounter, 10)
}

// TransactionKey identifies one logical action of one account.
// Format: account-txHash-0x<logIndex hex>
type TransactionKey struct {
	Account  string
	TxHash   string
	LogIndex uint
}

func (k TransactionKey) String() string {
	return k.Account + "-" + k.TxHash + "-0x" + strconv.FormatUint(uint64(k.LogIndex), 16)
}

// LogKey identifies a single log: market and pair snapshots use it as their id.
// Format: txHash<logIndex decimal>
type LogKey struct {
	TxHash   string
	LogIndex uint
}

func (k LogKey) String() string {
	return k.TxHash + strconv.FormatUint(uint64(k.LogIndex), 10)
}

// ProcessedLogKey identifies an applied log for replay deduplication.
// Format: txHash-logIndex
type ProcessedLogKey struct {
	TxHash   string
	LogIndex uint
}

func (k ProcessedLogKey) String() string {
	return k.TxHash + "-" + strconv.FormatUint(uint64(k.LogIndex), 10)
}

// LiquidityKey identifies an account's share balance in a pair.
// Format: pair-account
type LiquidityKey struct {
	Pair    string
	Account string
}

func (k LiquidityKey) String() string {
	return k.Pair + "-" + k.Account
}

// SyncMarkerKey identifies a sync seen for a pair within a transaction.
// Format: pair-txHash
type SyncMarkerKey struct {
	Pair   string
	TxHash string
}

func (k SyncMarkerKey) String() string {
	return k.Pair + "-" + k.TxHash
}
