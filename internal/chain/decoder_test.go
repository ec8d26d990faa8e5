package chain

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"amm-position-ledger/internal/event"
)

var (
	testPair   = common.HexToAddress("0xB4e16d0168e52d35CaCD2c6185b44281Ec28C9Dc")
	testToken0 = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	testToken1 = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	testUser   = common.HexToAddress("0x00000000000000000000000000000000000000Ab")
)

func addrTopic(a common.Address) common.Hash {
	return common.BytesToHash(a.Bytes())
}

func packEvent(t *testing.T, name string, args ...any) []byte {
	t.Helper()
	ev, ok := pairABI.Events[name]
	if !ok {
		ev = factoryABI.Events[name]
	}
	data, err := ev.Inputs.NonIndexed().Pack(args...)
	if err != nil {
		t.Fatalf("pack %s: %v", name, err)
	}
	return data
}

func testLog(address common.Address, topics []common.Hash, data []byte) types.Log {
	return types.Log{
		Address:     address,
		Topics:      topics,
		Data:        data,
		BlockNumber: 10008355,
		TxHash:      common.HexToHash("0xAB01"),
		TxIndex:     3,
		Index:       7,
	}
}

func TestDecode_PairCreated(t *testing.T) {
	factory := common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f")
	lg := testLog(factory,
		[]common.Hash{PairCreatedTopic, addrTopic(testToken0), addrTopic(testToken1)},
		packEvent(t, "PairCreated", testPair, big.NewInt(1)))

	ev, err := NewDecoder().Decode(lg, LogMeta(lg, 1588710145))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	pc, ok := ev.(*event.PairCreated)
	if !ok {
		t.Fatalf("got %T, want *event.PairCreated", ev)
	}
	if pc.Pair != "0xb4e16d0168e52d35cacd2c6185b44281ec28c9dc" {
		t.Errorf("Pair = %s, want lowercase hex", pc.Pair)
	}
	if pc.Token0 != "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48" {
		t.Errorf("Token0 = %s", pc.Token0)
	}
	if pc.Address != "0x5c69bee701ef814a2b6a3edd4b1652cb9cc5aa6f" {
		t.Errorf("Address = %s", pc.Address)
	}
	if pc.BlockTimestamp != 1588710145 || pc.TxIndex != 3 || pc.LogIndex != 7 {
		t.Errorf("meta = %+v", pc.Meta)
	}
	if pc.TxHash != "0x000000000000000000000000000000000000000000000000000000000000ab01" {
		t.Errorf("TxHash = %s", pc.TxHash)
	}
}

func TestDecode_PairEvents(t *testing.T) {
	d := NewDecoder()
	zero := common.Address{}

	tests := []struct {
		name  string
		log   types.Log
		check func(t *testing.T, ev event.Event)
	}{
		{
			name: "transfer",
			log: testLog(testPair,
				[]common.Hash{TransferTopic, addrTopic(zero), addrTopic(testUser)},
				packEvent(t, "Transfer", big.NewInt(5000))),
			check: func(t *testing.T, ev event.Event) {
				tr := ev.(*event.Transfer)
				if tr.From != "0x0000000000000000000000000000000000000000" || tr.To != Address(testUser) {
					t.Errorf("from/to = %s/%s", tr.From, tr.To)
				}
				if tr.Value.Int64() != 5000 {
					t.Errorf("Value = %s", tr.Value)
				}
			},
		},
		{
			name: "mint",
			log: testLog(testPair,
				[]common.Hash{MintTopic, addrTopic(testUser)},
				packEvent(t, "Mint", big.NewInt(11), big.NewInt(22))),
			check: func(t *testing.T, ev event.Event) {
				m := ev.(*event.Mint)
				if m.Sender != Address(testUser) || m.Amount0.Int64() != 11 || m.Amount1.Int64() != 22 {
					t.Errorf("mint = %+v", m)
				}
			},
		},
		{
			name: "burn",
			log: testLog(testPair,
				[]common.Hash{BurnTopic, addrTopic(testUser), addrTopic(testToken1)},
				packEvent(t, "Burn", big.NewInt(3), big.NewInt(4))),
			check: func(t *testing.T, ev event.Event) {
				b := ev.(*event.Burn)
				if b.To != Address(testToken1) || b.Amount0.Int64() != 3 || b.Amount1.Int64() != 4 {
					t.Errorf("burn = %+v", b)
				}
			},
		},
		{
			name: "sync",
			log: testLog(testPair,
				[]common.Hash{SyncTopic},
				packEvent(t, "Sync", big.NewInt(100), big.NewInt(200))),
			check: func(t *testing.T, ev event.Event) {
				s := ev.(*event.Sync)
				if s.Reserve0.Int64() != 100 || s.Reserve1.Int64() != 200 {
					t.Errorf("sync = %+v", s)
				}
				if s.Address != Address(testPair) {
					t.Errorf("Address = %s", s.Address)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := d.Decode(tt.log, LogMeta(tt.log, 1))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if string(ev.Kind()) != tt.name {
				t.Fatalf("Kind = %s, want %s", ev.Kind(), tt.name)
			}
			tt.check(t, ev)
		})
	}
}

func TestDecode_UnknownEvent(t *testing.T) {
	d := NewDecoder()

	lg := testLog(testPair, []common.Hash{common.HexToHash("0xdeadbeef")}, nil)
	if _, err := d.Decode(lg, LogMeta(lg, 0)); !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("unknown topic: err = %v, want ErrUnknownEvent", err)
	}

	lg = testLog(testPair, nil, nil)
	if _, err := d.Decode(lg, LogMeta(lg, 0)); !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("no topics: err = %v, want ErrUnknownEvent", err)
	}
}

func TestDecode_Malformed(t *testing.T) {
	d := NewDecoder()

	// ERC20 style Transfer with the value indexed has the right signature but four topics.
	lg := testLog(testPair,
		[]common.Hash{TransferTopic, addrTopic(testUser), addrTopic(testUser), common.BigToHash(big.NewInt(1))},
		nil)
	if _, err := d.Decode(lg, LogMeta(lg, 0)); !errors.Is(err, ErrMalformedLog) {
		t.Errorf("topic count: err = %v, want ErrMalformedLog", err)
	}

	lg = testLog(testPair, []common.Hash{SyncTopic}, []byte{1, 2, 3})
	if _, err := d.Decode(lg, LogMeta(lg, 0)); !errors.Is(err, ErrMalformedLog) {
		t.Errorf("short data: err = %v, want ErrMalformedLog", err)
	}
}
