package event

import (
	"errors"
	"sort"
)

// ErrInvalidOrdering is returned when events are not in canonical chain order.
var ErrInvalidOrdering = errors.New("events are not in canonical chain order")

// Sort orders events by (block ASC, tx_index ASC, log_index ASC).
func Sort(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return Compare(events[i].EventMeta(), events[j].EventMeta()) < 0
	})
}

// ValidateOrdering checks that events are strictly increasing in chain order.
// Returns ErrInvalidOrdering if not.
func ValidateOrdering(events []Event) error {
	for i := 1; i < len(events); i++ {
		if Compare(events[i-1].EventMeta(), events[i].EventMeta()) >= 0 {
			return ErrInvalidOrdering
		}
	}
	return nil
}

// Compare returns:
//   - negative if a < b
//   - zero if a == b
//   - positive if a > b
//
// Order: (block ASC, tx_index ASC, log_index ASC)
func Compare(a, b Meta) int {
	if a.BlockNumber != b.BlockNumber {
		if a.BlockNumber < b.BlockNumber {
			return -1
		}
		return 1
	}
	if a.TxIndex != b.TxIndex {
		if a.TxIndex < b.TxIndex {
			return -1
		}
		return 1
	}
	if a.LogIndex != b.LogIndex {
		if a.LogIndex < b.LogIndex {
			return -1
		}
		return 1
	}
	return 0
}
