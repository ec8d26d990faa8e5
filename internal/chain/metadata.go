package chain

import (
	"bytes"
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"amm-position-ledger/internal/domain"
	"amm-position-ledger/internal/observability"
)

// nullBytes32 is what some broken tokens return from a bytes32 name or symbol.
var nullBytes32 = common.HexToHash("0x0000000000000000000000000000000000000000000000000000000000000001")

// MetadataReader reads ERC20 metadata with eth_call. A failed call counts as a revert
// and leaves the field unset.
type MetadataReader struct {
	caller    ethereum.ContractCaller
	overrides map[string]domain.TokenMetadata
	log       zerolog.Logger
	metrics   *observability.Metrics
}

// MetadataOptions configures a MetadataReader.
type MetadataOptions struct {
	// Overrides replace on-chain reads for specific tokens, keyed by lowercase address.
	Overrides map[string]domain.TokenMetadata
	Logger    *zerolog.Logger
	Metrics   *observability.Metrics
}

// NewMetadataReader creates a MetadataReader reading through caller.
func NewMetadataReader(caller ethereum.ContractCaller, opts MetadataOptions) *MetadataReader {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	return &MetadataReader{
		caller:    caller,
		overrides: opts.Overrides,
		log:       log,
		metrics:   opts.Metrics,
	}
}

// ReadMetadata reads name, symbol, decimals and total supply of token at the latest block.
func (r *MetadataReader) ReadMetadata(ctx context.Context, token string) domain.TokenMetadata {
	if md, ok := r.overrides[strings.ToLower(token)]; ok {
		return md
	}

	to := common.HexToAddress(token)
	var md domain.TokenMetadata

	md.Name = r.readText(ctx, to, "name")
	md.Symbol = r.readText(ctx, to, "symbol")

	if values, ok := r.call(ctx, erc20ABI, to, "decimals"); ok {
		if d, ok := values[0].(uint8); ok {
			md.Decimals = &d
		}
	} else {
		r.reverted(token, "decimals")
	}

	if values, ok := r.call(ctx, erc20ABI, to, "totalSupply"); ok {
		if s, ok := values[0].(*big.Int); ok {
			md.TotalSupply = s
		}
	} else {
		r.reverted(token, "totalSupply")
	}

	return md
}

// readText reads a string field, falling back to the bytes32 variant.
func (r *MetadataReader) readText(ctx context.Context, to common.Address, method string) *string {
	if values, ok := r.call(ctx, erc20ABI, to, method); ok {
		if s, ok := values[0].(string); ok {
			return &s
		}
	}

	values, ok := r.call(ctx, erc20BytesABI, to, method)
	if !ok {
		r.reverted(Address(to), method)
		return nil
	}
	raw, ok := values[0].([32]byte)
	if !ok || common.Hash(raw) == nullBytes32 {
		return nil
	}
	s := bytes32String(raw)
	return &s
}

func (r *MetadataReader) call(ctx context.Context, contract abi.ABI, to common.Address, method string) ([]any, bool) {
	data, err := contract.Pack(method)
	if err != nil {
		return nil, false
	}

	start := time.Now()
	out, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	r.metrics.RecordRPCLatency("eth_call", time.Since(start).Seconds())
	if err != nil || len(out) == 0 {
		return nil, false
	}

	values, err := contract.Unpack(method, out)
	if err != nil || len(values) == 0 {
		return nil, false
	}
	return values, true
}

func (r *MetadataReader) reverted(token, field string) {
	r.metrics.RecordMetadataRevert(field)
	r.log.Debug().Str("token", token).Str("field", field).Msg("metadata call reverted")
}

func bytes32String(raw [32]byte) string {
	trimmed := bytes.TrimRight(raw[:], "\x00")
	return strings.ToValidUTF8(string(trimmed), "")
}
