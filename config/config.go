package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the daemon's on-disk configuration.
type Config struct {
	ListenAddress string `toml:"ListenAddress"`
	DataDir       string `toml:"DataDir"`
	Env           string `toml:"Env"`

	Engine     Engine       `toml:"engine"`
	Collateral []Collateral `toml:"collateral"`
}

// Engine carries the vault risk parameters, both whole percentages.
type Engine struct {
	LiquidationThreshold uint64 `toml:"LiquidationThreshold"`
	LiquidationBonus     uint64 `toml:"LiquidationBonus"`
}

// Collateral declares one accepted collateral kind and its price source.
// When FeedURL is empty the daemon pins the price at StaticPriceUSD, which is
// only acceptable for local development.
type Collateral struct {
	Symbol         string `toml:"Symbol"`
	Decimals       uint8  `toml:"Decimals"`
	FeedURL        string `toml:"FeedURL"`
	FeedDecimals   uint8  `toml:"FeedDecimals"`
	StaticPriceUSD string `toml:"StaticPriceUSD"`
}

// Load reads the configuration from path, writing a default file when none
// exists yet.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = ":8545"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./synthvault-data"
	}
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
}

// Validate rejects configurations the daemon could not start with.
func (c *Config) Validate() error {
	if c.Engine.LiquidationThreshold == 0 || c.Engine.LiquidationThreshold > 100 {
		return fmt.Errorf("engine: LiquidationThreshold %d out of (0,100]", c.Engine.LiquidationThreshold)
	}
	if c.Engine.LiquidationBonus >= 100 {
		return fmt.Errorf("engine: LiquidationBonus %d must be below 100", c.Engine.LiquidationBonus)
	}
	if len(c.Collateral) == 0 {
		return fmt.Errorf("collateral: at least one kind required")
	}
	seen := make(map[string]bool, len(c.Collateral))
	for i, col := range c.Collateral {
		symbol := strings.TrimSpace(col.Symbol)
		if symbol == "" {
			return fmt.Errorf("collateral[%d]: empty Symbol", i)
		}
		if seen[symbol] {
			return fmt.Errorf("collateral: duplicate Symbol %s", symbol)
		}
		seen[symbol] = true
		if col.Decimals > 36 {
			return fmt.Errorf("collateral %s: Decimals %d out of range", symbol, col.Decimals)
		}
		if strings.TrimSpace(col.FeedURL) == "" {
			price, ok := new(big.Int).SetString(strings.TrimSpace(col.StaticPriceUSD), 10)
			if !ok || price.Sign() <= 0 {
				return fmt.Errorf("collateral %s: StaticPriceUSD %q must be a positive integer when FeedURL is unset", symbol, col.StaticPriceUSD)
			}
		}
	}
	return nil
}

// StaticPrice parses the pinned price for a collateral entry, scaled to the
// feed's decimal precision.
func (c Collateral) StaticPrice() (*big.Int, error) {
	whole, ok := new(big.Int).SetString(strings.TrimSpace(c.StaticPriceUSD), 10)
	if !ok || whole.Sign() <= 0 {
		return nil, fmt.Errorf("collateral %s: malformed StaticPriceUSD %q", c.Symbol, c.StaticPriceUSD)
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(c.FeedDecimals)), nil)
	return whole.Mul(whole, scale), nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		ListenAddress: ":8545",
		DataDir:       "./synthvault-data",
		Env:           "dev",
		Engine: Engine{
			LiquidationThreshold: 50,
			LiquidationBonus:     10,
		},
		Collateral: []Collateral{
			{Symbol: "WETH", Decimals: 18, FeedDecimals: 8, StaticPriceUSD: "2000"},
			{Symbol: "WBTC", Decimals: 8, FeedDecimals: 8, StaticPriceUSD: "40000"},
		},
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
