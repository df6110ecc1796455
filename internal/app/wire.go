package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rosterfi/rosterfi/internal/backend"
	"github.com/rosterfi/rosterfi/internal/bus"
	"github.com/rosterfi/rosterfi/internal/cache/redis"
	"github.com/rosterfi/rosterfi/internal/chain"
	"github.com/rosterfi/rosterfi/internal/config"
	"github.com/rosterfi/rosterfi/internal/crypto"
	"github.com/rosterfi/rosterfi/internal/domain"
	"github.com/rosterfi/rosterfi/internal/notify"
	"github.com/rosterfi/rosterfi/internal/pricing"
	"github.com/rosterfi/rosterfi/internal/session"
	"github.com/rosterfi/rosterfi/internal/store/postgres"
	"github.com/rosterfi/rosterfi/internal/trade"
	"github.com/rosterfi/rosterfi/internal/wallet"
)

// Dependencies bundles every domain-level dependency the application needs
// to operate. It is constructed by Wire and torn down by the returned
// cleanup function.
type Dependencies struct {
	Chain   *chain.Client
	Wallet  *wallet.Local
	Backend *backend.Client
	Session *session.Session
	Pricing *pricing.Engine

	// TradeStore is nil when Postgres is disabled; trade history endpoints
	// degrade gracefully in that case.
	TradeStore domain.TradeStore

	// SignalBus is Redis-backed when Redis is enabled and in-process
	// otherwise, so the live status feed works either way.
	SignalBus domain.SignalBus

	Notifier     *notify.Notifier
	Orchestrator *trade.Orchestrator
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Chain client ---
	chainClient, err := chain.New(ctx, chain.ClientConfig{
		RPCURL:      cfg.Chain.RPCURL,
		Exchange:    cfg.Chain.ExchangeContract,
		PlayerToken: cfg.Chain.PlayerTokenContract,
		Currency:    cfg.Chain.CurrencyContract,
	}, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: chain: %w", err)
	}
	closers = append(closers, chainClient.Close)
	deps.Chain = chainClient

	// --- Embedded wallet ---
	w, err := wallet.NewLocal(crypto.KeyConfig{
		RawPrivateKey:    cfg.Wallet.PrivateKey,
		EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      cfg.Wallet.KeyPassword,
	}, cfg.Chain.ChainID, cfg.Chain.ExchangeContract, chainClient.Backend())
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: wallet: %w", err)
	}
	deps.Wallet = w

	// --- Protocol backend ---
	backendClient := backend.NewClient(cfg.Backend.BaseURL)
	deps.Backend = backendClient

	// --- Redis (optional): token cache + signal bus ---
	var tokens domain.TokenStore
	var signalBus domain.SignalBus = bus.NewLocal()
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		tokens = redis.NewTokenStore(redisClient)
		signalBus = redis.NewSignalBus(redisClient)
	}
	deps.SignalBus = signalBus

	// --- PostgreSQL (optional): trade history ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		deps.TradeStore = postgres.NewTradeStore(pgClient.Pool())
	}

	// --- Session ---
	sess := session.New(backendClient, w, tokens, logger)
	sess.Connect(ctx, w.Address().Hex())
	deps.Session = sess

	// --- Pricing engine ---
	deps.Pricing = pricing.NewEngine(chainClient, logger)

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Trade orchestrator ---
	deps.Orchestrator = trade.New(trade.Config{
		Chain:   chainClient,
		Wallet:  w,
		Backend: backendClient,
		Session: sess,
		Quoter:  deps.Pricing,
		Store:   deps.TradeStore,
		Bus:     signalBus,
		Notify:  deps.Notifier,
		Logger:  logger,
	})

	return deps, cleanup, nil
}
