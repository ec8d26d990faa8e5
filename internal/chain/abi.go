// Package chain reads Uniswap V2 style factory and pair logs and ERC20 metadata from an
// Ethereum JSON-RPC endpoint.
package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const factoryABIJSON = `[
  {"anonymous":false,"name":"PairCreated","type":"event","inputs":[
    {"indexed":true,"name":"token0","type":"address"},
    {"indexed":true,"name":"token1","type":"address"},
    {"indexed":false,"name":"pair","type":"address"},
    {"indexed":false,"name":"","type":"uint256"}]}
]`

const pairABIJSON = `[
  {"anonymous":false,"name":"Transfer","type":"event","inputs":[
    {"indexed":true,"name":"from","type":"address"},
    {"indexed":true,"name":"to","type":"address"},
    {"indexed":false,"name":"value","type":"uint256"}]},
  {"anonymous":false,"name":"Mint","type":"event","inputs":[
    {"indexed":true,"name":"sender","type":"address"},
    {"indexed":false,"name":"amount0","type":"uint256"},
    {"indexed":false,"name":"amount1","type":"uint256"}]},
  {"anonymous":false,"name":"Burn","type":"event","inputs":[
    {"indexed":true,"name":"sender","type":"address"},
    {"indexed":false,"name":"amount0","type":"uint256"},
    {"indexed":false,"name":"amount1","type":"uint256"},
    {"indexed":true,"name":"to","type":"address"}]},
  {"anonymous":false,"name":"Sync","type":"event","inputs":[
    {"indexed":false,"name":"reserve0","type":"uint112"},
    {"indexed":false,"name":"reserve1","type":"uint112"}]}
]`

const erc20ABIJSON = `[
  {"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
  {"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
  {"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
  {"constant":true,"inputs":[],"name":"totalSupply","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

// Some early tokens (MKR, SAI) return bytes32 instead of string.
const erc20BytesABIJSON = `[
  {"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"bytes32"}],"stateMutability":"view","type":"function"},
  {"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"bytes32"}],"stateMutability":"view","type":"function"}
]`

var (
	factoryABI    = mustParseABI(factoryABIJSON)
	pairABI       = mustParseABI(pairABIJSON)
	erc20ABI      = mustParseABI(erc20ABIJSON)
	erc20BytesABI = mustParseABI(erc20BytesABIJSON)
)

func mustParseABI(definition string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		panic("chain: invalid ABI: " + err.Error())
	}
	return parsed
}
