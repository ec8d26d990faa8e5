// Package config loads runtime settings from the environment.
//
// Every key carries the AMMLEDGER_ prefix, e.g. AMMLEDGER_RPC_URL. A .env file in the
// working directory is loaded first when present; real environment variables win.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Prefix is prepended to every environment key.
const Prefix = "AMMLEDGER_"

// UniswapV2Factory is the mainnet Uniswap V2 factory.
const UniswapV2Factory = "0x5c69bee701ef814a2b6a3edd4b1652cb9cc5aa6f"

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds all settings of the ammledger binary.
type Config struct {
	RPCURL         string `env:"RPC_URL"`
	PostgresDSN    string `env:"POSTGRES_DSN"`
	ClickhouseDSN  string `env:"CLICKHOUSE_DSN"`
	FactoryAddress string `env:"FACTORY_ADDRESS" envDefault:"0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f"`

	StartBlock     uint64 `env:"START_BLOCK"`
	EndBlock       uint64 `env:"END_BLOCK"` // 0 = chain head
	BatchSize      uint64 `env:"BATCH_SIZE" envDefault:"2000"`
	ResolveSenders bool   `env:"RESOLVE_SENDERS"`

	HaltOnInvariant bool   `env:"HALT_ON_INVARIANT" envDefault:"true"`
	LogLevel        string `env:"LOG_LEVEL" envDefault:"info"`
	MetricsAddr     string `env:"METRICS_ADDR"` // empty disables /metrics
}

// Load reads an optional dotenv file and then the environment.
// An empty path means ".env"; a missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return FromEnv()
}

// FromEnv parses the environment without touching dotenv files.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: Prefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.FactoryAddress = strings.ToLower(cfg.FactoryAddress)
	return &cfg, nil
}

// Validate rejects settings the indexer cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.EndBlock != 0 && c.EndBlock < c.StartBlock {
		errs = append(errs, fmt.Errorf("end block %d before start block %d", c.EndBlock, c.StartBlock))
	}
	if c.BatchSize == 0 {
		errs = append(errs, errors.New("batch size must be positive"))
	}
	if !isHexAddress(c.FactoryAddress) {
		errs = append(errs, fmt.Errorf("factory address %q is not a 20-byte hex address", c.FactoryAddress))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log level %q: %w", c.LogLevel, err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// ValidateIndex additionally requires an RPC endpoint.
func (c *Config) ValidateIndex() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.RPCURL == "" {
		return fmt.Errorf("%w: %sRPC_URL is required", ErrInvalidConfig, Prefix)
	}
	return nil
}

func isHexAddress(s string) bool {
	if len(s) != 42 || !strings.HasPrefix(s, "0x") {
		return false
	}
	for _, r := range s[2:] {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}
