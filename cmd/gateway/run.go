package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fystack/payment-gateway/internal/iterator"
	"github.com/fystack/payment-gateway/internal/mailer"
	"github.com/fystack/payment-gateway/internal/notification"
	"github.com/fystack/payment-gateway/internal/scheduler"
	"github.com/fystack/payment-gateway/internal/valuation"
	"github.com/fystack/payment-gateway/internal/worker"
	"github.com/fystack/payment-gateway/pkg/addressbloomfilter"
	"github.com/fystack/payment-gateway/pkg/common/config"
	"github.com/fystack/payment-gateway/pkg/common/constant"
	"github.com/fystack/payment-gateway/pkg/common/logger"
	"github.com/fystack/payment-gateway/pkg/common/types"
	"github.com/fystack/payment-gateway/pkg/events"
	"github.com/fystack/payment-gateway/pkg/infra"
	"github.com/fystack/payment-gateway/pkg/kvstore"
	"github.com/fystack/payment-gateway/pkg/retry"
	"github.com/fystack/payment-gateway/pkg/store/chainstore"
	"github.com/fystack/payment-gateway/pkg/store/cursorstore"
	"github.com/fystack/payment-gateway/pkg/store/merchantstore"
	"github.com/fystack/payment-gateway/pkg/store/notificationstore"
	"github.com/fystack/payment-gateway/pkg/store/paymentstore"
	"github.com/fystack/payment-gateway/pkg/store/valuationstore"
	"github.com/nats-io/nats.go"
)

const connectTimeout = 30 * time.Second

func runGateway(cfg *config.Config, seed bool) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := worker.NewManager(ctx)
	running := false
	defer func() {
		// release whatever was opened before a startup failure
		if !running {
			manager.Stop()
		}
	}()

	kv, err := kvstore.NewFromConfig(cfg.Services.KVS)
	if err != nil {
		return fmt.Errorf("open kvstore: %w", err)
	}
	manager.AddCloser("kvstore", kv.Close)
	logger.Info("KV store ready", "type", cfg.Services.KVS.Type)

	// the address source must not consult the filter it feeds
	addressSource := merchantstore.New(kv, nil)
	bloom := addressbloomfilter.NewAddressBloomFilter(addressbloomfilter.Config{Source: addressSource})
	merchants := merchantstore.New(kv, bloom)
	chains := chainstore.New(kv)
	cursors := cursorstore.New(kv)
	payments := paymentstore.New(kv)
	queue := notificationstore.New(kv)
	samples := valuationstore.New(kv)

	if seed {
		if err := seedStores(ctx, cfg, chains, merchants); err != nil {
			return err
		}
	}
	if err := bloom.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize address filter: %w", err)
	}

	rates := valuation.NewExchangeRateCache(cfg.Pricing.SamplingInterval, samples,
		providerOrNoop("exchange rate", func() (valuation.Provider, error) {
			return valuation.NewExchangeRateProvider(cfg.Pricing.ExchangeRate)
		}))
	prices := valuation.NewTokenPriceCache(cfg.Pricing.SamplingInterval, samples,
		providerOrNoop("token price", func() (valuation.Provider, error) {
			return valuation.NewTokenPriceProvider(cfg.Pricing.TokenPrice)
		}))

	builder := iterator.NewBuilder(merchants, prices)

	var emitter events.Emitter
	if cfg.Services.Nats.Enabled() {
		nc, err := connectNATS(ctx, cfg.Services.Nats)
		if err != nil {
			return err
		}
		manager.AddCloser("nats", func() error { nc.Close(); return nil })

		mq, err := infra.NewNATsMessageQueueManager(ctx, events.StreamName, events.Subjects(cfg.Services.Nats.SubjectPrefix), nc)
		if err != nil {
			return err
		}
		emitter = events.NewEmitter(mq.Publisher(), cfg.Services.Nats.SubjectPrefix)
	} else {
		logger.Warn("NATS not configured, payment events disabled")
	}

	var deadLetter worker.DeadLetterSink
	if cfg.Notifications.DeadLetter {
		if !cfg.Services.Redis.Enabled() {
			logger.Warn("Dead letter capture requested but redis is not configured")
		} else {
			client, err := connectRedis(ctx, cfg.Services.Redis)
			if err != nil {
				return err
			}
			manager.AddCloser("redis", client.Close)
			deadLetter = worker.NewRedisDeadLetter(client)
		}
	}

	m := mailer.New(cfg.Mail)
	registry, err := notification.NewRegistry(
		notification.NewPaymentStatusHandler(payments, merchants, m),
		notification.NewWebhookHandler(merchants, payments, rates, cfg.Webhook),
		notification.NewSupportTicketHandler(m, cfg.Mail.Support),
	)
	if err != nil {
		return err
	}
	for _, t := range registry.Types() {
		handler, _ := registry.Get(t)
		manager.AddTask(
			worker.DispatchTaskKey(t),
			worker.NewDispatchTask(queue, handler, cfg.Notifications.TTL, deadLetter),
			cfg.Notifications.IntervalFor(string(t)),
		)
	}

	newIngestion := func(chain config.ChainConfig) scheduler.Task {
		return worker.NewIngestionTask(chain, builder, cursors, payments, queue, emitter)
	}
	manager.AddTask(
		constant.ChainManagerTaskKey,
		worker.NewChainManagerTask(chains, manager.Scheduler(), builder, cursors, newIngestion),
		cfg.Manager.Interval,
	)
	manager.AddTask(worker.BloomSyncTaskKey, worker.NewBloomSyncTask(bloom, addressSource), cfg.Manager.Interval)

	manager.Start()
	running = true

	srv := newHTTPServer(cfg.Services.Port, NewGatewayHTTPHandler(version, manager.Scheduler()))
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "err", err)
		}
	}()
	manager.AddCloser("http", func() error {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		return srv.Shutdown(shutdownCtx)
	})
	logger.Info("Gateway is running... Press Ctrl+C to stop", "port", cfg.Services.Port)

	waitForShutdown()
	logger.Info("Shutting down")
	cancel()
	manager.Stop()
	return nil
}

func runSeed(cfg *config.Config) error {
	ctx := context.Background()
	kv, err := kvstore.NewFromConfig(cfg.Services.KVS)
	if err != nil {
		return fmt.Errorf("open kvstore: %w", err)
	}
	defer kv.Close()

	return seedStores(ctx, cfg, chainstore.New(kv), merchantstore.New(kv, nil))
}

// seedStores writes the file's chains and merchants over the stored ones.
func seedStores(ctx context.Context, cfg *config.Config, chains chainstore.Store, merchants merchantstore.Store) error {
	n, err := chains.Seed(ctx, cfg.Chains)
	if err != nil {
		return fmt.Errorf("seed chains: %w", err)
	}

	errs := &types.MultiError{}
	for _, profile := range cfg.Merchants {
		if err := merchants.SaveProfile(ctx, profile); err != nil {
			errs.Add(err)
		}
	}
	logger.Info("Seeded KV store", "chains", n, "merchants", len(cfg.Merchants)-errs.Len())
	if err := errs.ErrorOrNil(); err != nil {
		return fmt.Errorf("seed merchants: %w", err)
	}
	return nil
}

// providerOrNoop falls back to a provider that returns no samples, so
// lookups report not-found instead of failing.
func providerOrNoop(name string, build func() (valuation.Provider, error)) valuation.Provider {
	p, err := build()
	if err == nil {
		return p
	}
	if !errors.Is(err, valuation.ErrProviderNotConfigured) {
		logger.Error("Invalid valuation provider, lookups disabled", "provider", name, "err", err)
	} else {
		logger.Warn("Valuation provider not configured, lookups disabled", "provider", name)
	}
	return valuation.ProviderFunc(func(context.Context) ([]types.ValuationSample, error) {
		return nil, nil
	})
}

func connectNATS(ctx context.Context, cfg config.NatsConfig) (*nats.Conn, error) {
	var nc *nats.Conn
	err := retry.Exponential(ctx, func() error {
		var err error
		nc, err = infra.GetNATSConnection(cfg)
		return err
	}, retry.ExponentialConfig{
		InitialInterval: time.Second,
		MaxInterval:     5 * time.Second,
		MaxElapsedTime:  connectTimeout,
		OnRetry: func(err error, next time.Duration) {
			logger.Warn("NATS connect failed, retrying", "err", err, "next", next)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	logger.Info("Connected to NATS", "url", nc.ConnectedUrl())
	return nc, nil
}

func connectRedis(ctx context.Context, cfg config.RedisConfig) (infra.RedisClient, error) {
	var client infra.RedisClient
	err := retry.Exponential(ctx, func() error {
		var err error
		client, err = infra.NewRedisClient(ctx, cfg.URL, cfg.Password)
		return err
	}, retry.ExponentialConfig{
		InitialInterval: time.Second,
		MaxInterval:     5 * time.Second,
		MaxElapsedTime:  connectTimeout,
		OnRetry: func(err error, next time.Duration) {
			logger.Warn("Redis connect failed, retrying", "err", err, "next", next)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	logger.Info("Connected to Redis", "addr", cfg.URL)
	return client, nil
}
