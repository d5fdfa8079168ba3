package main

import (
	"context"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"remitrails/internal/audit"
	"remitrails/internal/config"
	"remitrails/internal/events"
	"remitrails/internal/funding"
	"remitrails/internal/idempotency"
	"remitrails/internal/ledger"
	"remitrails/internal/oracle"
	"remitrails/internal/server"
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("config error")
	}

	log := newLogger(cfg)
	ctx := context.Background()

	mover, feedFactory, rpcHealth := buildFunding(ctx, cfg, log)

	nativeFeed, err := buildNativeFeed(cfg, feedFactory)
	if err != nil {
		log.Fatal().Err(err).Msg("price feed error")
	}

	publisher := buildPublisher(cfg, log)

	led, err := ledger.New(ledger.Config{
		Owner:           common.HexToAddress(cfg.OwnerAddress),
		FeeCollector:    common.HexToAddress(cfg.FeeCollectorAddress),
		FeeRateBps:      cfg.PlatformFeeRateBps,
		NativePriceFeed: nativeFeed,
		Countries:       cfg.Countries(),
		Providers:       cfg.Providers(),
	}, mover, publisher, log)
	if err != nil {
		log.Fatal().Err(err).Msg("ledger error")
	}

	store := buildStore(ctx, cfg, log)
	auditLog := buildAudit(ctx, cfg, log)

	apiServer := server.NewServer(cfg, led, server.Options{
		Store:       store,
		Audit:       auditLog,
		FeedFactory: feedFactory,
		RPCHealthFn: rpcHealth,
	}, log)

	go func() {
		if err := apiServer.Start(); err != nil {
			log.Error().Err(err).Msg("server stopped")
		}
	}()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = apiServer.Shutdown(shutdownCtx)
	if closer, ok := publisher.(interface{ Close() }); ok {
		closer.Close()
	}
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var out zerolog.Logger
	if cfg.LogFormat == "console" {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		out = zerolog.New(os.Stderr)
	}
	return out.Level(level).With().Timestamp().Logger()
}

// buildFunding picks the chain-backed mover when a private key is configured,
// otherwise an in-memory simulator so the service runs without a node.
func buildFunding(ctx context.Context, cfg config.Config, log zerolog.Logger) (funding.Mover, server.FeedFactory, func(context.Context) error) {
	if cfg.ChainPrivateKey == "" {
		log.Warn().Msg("no chain key configured, using in-memory funds")
		return funding.NewMemoryMover(common.HexToAddress("0x00000000000000000000000000000000000c0de0")), nil, nil
	}

	mover, err := funding.NewEthMover(ctx, funding.EthMoverConfig{
		RPCURL:        cfg.ChainRPCURL,
		PrivateKeyHex: cfg.ChainPrivateKey,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("chain client error")
	}

	factory := func(address common.Address) (oracle.Feed, error) {
		return oracle.NewChainlinkFeed(mover.Client(), address)
	}
	return mover, factory, mover.Ping
}

func buildNativeFeed(cfg config.Config, factory server.FeedFactory) (oracle.Feed, error) {
	if cfg.NativePriceFeedAddr != "" && factory != nil {
		return factory(common.HexToAddress(cfg.NativePriceFeedAddr))
	}
	price, ok := new(big.Int).SetString(cfg.StaticNativePriceUSD, 10)
	if !ok {
		price = big.NewInt(0)
	}
	return oracle.NewStaticFeed(price, uint8(cfg.StaticPriceDecimals)), nil
}

func buildPublisher(cfg config.Config, log zerolog.Logger) events.Publisher {
	if cfg.AMQPURL == "" {
		return events.NopPublisher{}
	}
	pub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.EventExchange)
	if err != nil {
		log.Fatal().Err(err).Msg("amqp error")
	}
	return pub
}

func buildStore(ctx context.Context, cfg config.Config, log zerolog.Logger) idempotency.Store {
	switch {
	case cfg.PostgresDSN != "":
		store, err := idempotency.NewPostgresStore(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("idempotency store error")
		}
		return store
	case cfg.IdempotencyStorePath != "":
		store, err := idempotency.NewFileStore(cfg.IdempotencyStorePath)
		if err != nil {
			log.Fatal().Err(err).Msg("idempotency store error")
		}
		return store
	default:
		return idempotency.NewMemoryStore()
	}
}

func buildAudit(ctx context.Context, cfg config.Config, log zerolog.Logger) audit.Log {
	if cfg.PostgresDSN == "" {
		return audit.NopLog{}
	}
	al, err := audit.NewPostgresLog(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("audit log error")
	}
	return al
}
