package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"synthvault/config"
	"synthvault/core/events"
	"synthvault/crypto"
	"synthvault/native/common"
	"synthvault/native/oracle"
	"synthvault/native/token"
	"synthvault/native/vault"
	"synthvault/observability/logging"
	"synthvault/rpc"
	"synthvault/storage"
)

const synthSymbol = "SUSD"

// custodyAddress is the account every custody adapter settles against. The
// payload is a fixed 20-byte tag rather than a key-derived address because no
// private key should ever be able to spend from custody directly.
func custodyAddress() crypto.Address {
	return crypto.NewAddress(crypto.VaultPrefix, []byte("synthvault/custody-0"))
}

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger := logging.Setup("synthvaultd", cfg.Env)

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	kinds := make([]oracle.Kind, 0, len(cfg.Collateral))
	feeds := make([]oracle.PriceFeed, 0, len(cfg.Collateral))
	for _, col := range cfg.Collateral {
		kinds = append(kinds, oracle.Kind{Symbol: col.Symbol, Decimals: col.Decimals})
		feed, err := buildFeed(col, logger)
		if err != nil {
			logger.Error("Failed to build price feed", slog.String("kind", col.Symbol), slog.Any("error", err))
			os.Exit(1)
		}
		feeds = append(feeds, feed)
	}
	adapter, err := oracle.NewAdapter(kinds, feeds)
	if err != nil {
		logger.Error("Failed to build oracle adapter", slog.Any("error", err))
		os.Exit(1)
	}

	custody := custodyAddress()
	synthLedger := token.NewLedger(synthSymbol, 18)
	collateralLedgers := make(map[string]*token.Ledger, len(cfg.Collateral))
	collateralTokens := make(map[string]vault.CollateralToken, len(cfg.Collateral))
	for _, col := range cfg.Collateral {
		ledger := token.NewLedger(col.Symbol, col.Decimals)
		collateralLedgers[col.Symbol] = ledger
		collateralTokens[col.Symbol] = token.NewCustody(ledger, custody)
	}

	params := vault.RiskParameters{
		LiquidationThreshold: cfg.Engine.LiquidationThreshold,
		LiquidationBonus:     cfg.Engine.LiquidationBonus,
	}
	engine, err := vault.NewEngine(
		params,
		adapter,
		token.NewSynthCustody(synthLedger, custody),
		collateralTokens,
		events.LogEmitter{Logger: logger},
	)
	if err != nil {
		logger.Error("Failed to build vault engine", slog.Any("error", err))
		os.Exit(1)
	}
	engine.SetPauses(common.NewSwitches())
	if err := engine.SetStore(vault.NewStore(db)); err != nil {
		logger.Error("Failed to recover positions", slog.Any("error", err))
		os.Exit(1)
	}

	devFaucet := strings.EqualFold(cfg.Env, "dev")
	server := rpc.NewServer(engine, synthLedger, collateralLedgers, devFaucet, logger)
	logger.Info("synthvault daemon ready",
		slog.String("listen", cfg.ListenAddress),
		slog.Int("collateralKinds", len(cfg.Collateral)),
		slog.Bool("devFaucet", devFaucet))
	if err := server.Start(cfg.ListenAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func buildFeed(col config.Collateral, logger *slog.Logger) (oracle.PriceFeed, error) {
	if url := strings.TrimSpace(col.FeedURL); url != "" {
		return oracle.NewHTTPFeed(url, nil), nil
	}
	price, err := col.StaticPrice()
	if err != nil {
		return nil, err
	}
	logger.Warn("Using static price feed", slog.String("kind", col.Symbol), slog.String("price", price.String()))
	return oracle.NewStaticFeed(price, col.FeedDecimals), nil
}
