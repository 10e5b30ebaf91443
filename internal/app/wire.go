package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	s3blob "github.com/veritasmkt/veritas/internal/blob/s3"
	"github.com/veritasmkt/veritas/internal/cache/redis"
	"github.com/veritasmkt/veritas/internal/config"
	"github.com/veritasmkt/veritas/internal/crypto"
	"github.com/veritasmkt/veritas/internal/domain"
	"github.com/veritasmkt/veritas/internal/ledger"
	"github.com/veritasmkt/veritas/internal/notify"
	"github.com/veritasmkt/veritas/internal/oracle"
	"github.com/veritasmkt/veritas/internal/quote"
	"github.com/veritasmkt/veritas/internal/registry"
	"github.com/veritasmkt/veritas/internal/service"
	"github.com/veritasmkt/veritas/internal/settlement"
	"github.com/veritasmkt/veritas/internal/store/postgres"
	"github.com/veritasmkt/veritas/internal/vault"
)

// Dependencies bundles everything the application modes need to operate.
// It is constructed by Wire and torn down by the returned cleanup
// function. Optional infrastructure (stores, caches, blob storage) is nil
// when the corresponding backend is disabled in config.
type Dependencies struct {
	// Core engine
	Cash       *ledger.CashLedger
	Vault      *vault.Vault
	Verifier   *quote.Verifier
	Registry   *registry.Registry
	Oracle     *oracle.Adapter
	Settlement *settlement.Engine

	// Services
	Quotes  *service.QuoteService
	Markets *service.MarketService

	// Stores (nil unless postgres is enabled)
	MarketStore     domain.MarketStore
	TradeStore      domain.TradeStore
	OracleStore     domain.OracleRequestStore
	RedemptionStore domain.RedemptionStore

	// Caches (nil unless redis is enabled)
	PriceCache  domain.PriceCache
	SignalBus   domain.SignalBus
	RateLimiter domain.RateLimiter

	// Blob storage (nil unless s3 is enabled)
	BlobWriter domain.BlobWriter
	Archiver   domain.Archiver

	// Notifications
	Notifier *notify.Notifier
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

	// --- PostgreSQL ---
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

		pool := pgClient.Pool()
		deps.MarketStore = postgres.NewMarketStore(pool)
		deps.TradeStore = postgres.NewTradeStore(pool)
		deps.OracleStore = postgres.NewOracleRequestStore(pool)
		deps.RedemptionStore = postgres.NewRedemptionStore(pool)
	}

	// --- Redis ---
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

		deps.PriceCache = redis.NewPriceCache(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
	}

	// --- S3 blob storage ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		if deps.TradeStore != nil && deps.OracleStore != nil {
			deps.Archiver = s3blob.NewArchiver(deps.BlobWriter, deps.TradeStore, deps.OracleStore, logger)
		}
	}

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

	// --- Core engine ---
	keyHex, err := crypto.ResolveSigningKey(crypto.KeyConfig{
		RawPrivateKey:    cfg.Signer.PrivateKey,
		EncryptedKeyPath: cfg.Signer.EncryptedKeyPath,
		KeyPassword:      cfg.Signer.KeyPassword,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: signing key: %w", err)
	}
	verifying := common.HexToAddress(cfg.Signer.VerifyingContract)

	signer, err := crypto.NewSigner(keyHex, cfg.Signer.ChainID, verifying)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: signer: %w", err)
	}

	deps.Verifier = quote.NewVerifier(cfg.Signer.Owner, cfg.Signer.ChainID, verifying)
	if err := deps.Verifier.AddSigner(cfg.Signer.Owner, signer.Address()); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: authorize signer: %w", err)
	}

	deps.Cash = ledger.NewCashLedger()
	deps.Vault = vault.New(deps.Cash, settlement.Role)
	deps.Registry = registry.New(deps.Verifier, deps.Cash, deps.Vault, settlement.Role, nil)

	deps.Oracle = oracle.New(oracle.Config{
		ProposerBond:       cfg.Oracle.ProposerBond,
		DisputerBond:       cfg.Oracle.DisputerBond,
		DisputeWindow:      cfg.Oracle.DisputeWindow.Duration,
		ResolutionDeadline: cfg.Oracle.ResolutionDeadline.Duration,
	}, cfg.Signer.Owner, settlement.Role, deps.Registry, deps.Cash, nil)
	for _, r := range cfg.Oracle.Resolvers {
		if err := deps.Oracle.AddResolver(cfg.Signer.Owner, r); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: add resolver %s: %w", r, err)
		}
	}

	deps.Settlement = settlement.New(deps.Registry, deps.Oracle, deps.Vault, nil)

	// --- Services ---
	deps.Quotes = service.NewQuoteService(
		deps.Registry, deps.Verifier, signer,
		deps.PriceCache, deps.SignalBus,
		cfg.Quote.TTL.Duration, logger, nil,
	)
	deps.Markets = service.NewMarketService(
		deps.Registry, deps.Oracle, deps.Settlement,
		service.Stores{
			Markets:     deps.MarketStore,
			Trades:      deps.TradeStore,
			Oracle:      deps.OracleStore,
			Redemptions: deps.RedemptionStore,
		},
		deps.SignalBus, deps.Notifier, logger,
	)

	return deps, cleanup, nil
}
