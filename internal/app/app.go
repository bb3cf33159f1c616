// Package app assembles every component of the service.
// app.go is the wiring point: storage, sweep lock, event pipeline, ops
// notifier, services, handlers, the HTTP server and the scheduler.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"alchemyst.ke/billing/internal/auth"
	"alchemyst.ke/billing/internal/common"
	"alchemyst.ke/billing/internal/config"
	"alchemyst.ke/billing/internal/db/postgres"
	"alchemyst.ke/billing/internal/events"
	"alchemyst.ke/billing/internal/features/accounts"
	"alchemyst.ke/billing/internal/features/catalog"
	"alchemyst.ke/billing/internal/features/expiration"
	"alchemyst.ke/billing/internal/features/payments"
	"alchemyst.ke/billing/internal/features/subscription"
	"alchemyst.ke/billing/internal/features/wallet"
	"alchemyst.ke/billing/internal/jobs"
	"alchemyst.ke/billing/internal/notify"
	"alchemyst.ke/billing/internal/server"
)

// App holds every running component.
type App struct {
	Store     accounts.Store
	Sweeper   *expiration.Service
	Server    *server.Server
	Scheduler *jobs.Scheduler // nil when SWEEP_ENABLED=false

	closers []func()
}

// Storage is the persistence layer picked by STORAGE_DRIVER.
type Storage struct {
	Accounts accounts.Store
	Receipts payments.ReceiptStore
	Pool     *pgxpool.Pool // nil for the memory driver
}

// Close releases the storage.
func (s *Storage) Close() {
	s.Accounts.Close()
	if s.Pool != nil {
		s.Pool.Close()
	}
}

// OpenStorage connects the configured driver. Postgres is migrated first.
func OpenStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if cfg.StorageDriver == config.StorageMemory {
		log.Warn("STORAGE_DRIVER=memory, data is lost on restart")
		return &Storage{
			Accounts: accounts.NewMemoryStore(),
			Receipts: payments.NewMemoryReceipts(),
		}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	if err := postgres.RunMigrations(ctx, pool, Migrations); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrations failed: %w", err)
	}
	return &Storage{
		Accounts: accounts.NewRepository(pool, cfg.DBTxRetries),
		Receipts: payments.NewRepository(pool),
		Pool:     pool,
	}, nil
}

// New creates and wires the application.
// Order matters: later components depend on earlier ones.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	// === 1. Storage ===
	storage, err := OpenStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Store = storage.Accounts
	a.closers = append(a.closers, storage.Close)

	// === 2. Sweep lock ===
	locker, err := a.newLocker(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// === 3. Domain events ===
	emitter, err := a.newEmitter(cfg)
	if err != nil {
		return nil, err
	}

	// === 4. Ops notifier ===
	loc := common.LoadLocation(cfg.AppTimezone)
	var reporter expiration.Reporter
	if cfg.TelegramEnabled() {
		tg, err := notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramOpsChatID, loc)
		if err != nil {
			return nil, err
		}
		reporter = tg
		log.WithField("chat_id", cfg.TelegramOpsChatID).Info("sweep summaries go to Telegram")
	}

	// === 5. Services ===
	basic, premium, elite, err := cfg.WeeklyPrices()
	if err != nil {
		return nil, err
	}
	prices := catalog.NewPriceList(basic, premium, elite)
	hub := payments.NewHub(cfg.WSAllowedOrigins)

	walletService := wallet.NewService(a.Store, emitter)
	subscriptionService := subscription.NewService(a.Store, prices, emitter)
	paymentService := payments.NewService(storage.Receipts, hub, emitter)
	a.Sweeper = expiration.NewService(a.Store, locker, emitter, reporter)

	// === 6. HTTP ===
	resolver, err := auth.NewJWTResolver(cfg.JWTSecret, a.Store)
	if err != nil {
		return nil, err
	}
	a.Server, err = server.New(cfg, server.Handlers{
		Wallet:       wallet.NewHandler(walletService),
		Subscription: subscription.NewHandler(subscriptionService),
		Payments:     payments.NewHandler(paymentService),
		Hub:          hub,
		Expiration:   expiration.NewHandler(a.Sweeper, auth.NewCronGuard(cfg.CronSecretHash)),
	}, resolver)
	if err != nil {
		return nil, err
	}

	// === 7. Scheduler ===
	if cfg.SweepEnabled {
		a.Scheduler = jobs.NewScheduler(a.Sweeper, cfg.SweepSchedule, cfg.SweepLockTTL, loc)
	}

	ok = true
	return a, nil
}

func (a *App) newLocker(ctx context.Context, cfg *config.Config) (expiration.Locker, error) {
	if cfg.RedisURL == "" {
		return expiration.NewLocalLocker(), nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	a.closers = append(a.closers, func() { _ = client.Close() })

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis unreachable: %w", err)
	}
	log.WithField("addr", opts.Addr).Info("sweep lock held in Redis")
	return expiration.NewRedisLocker(client, cfg.SweepLockTTL), nil
}

func (a *App) newEmitter(cfg *config.Config) (events.Emitter, error) {
	var pub events.Publisher = events.LogPublisher{}
	if cfg.AMQPURL != "" {
		rmq, err := events.NewRabbitMQPublisher(cfg.AMQPURL)
		if err != nil {
			return nil, err
		}
		pub = rmq
	}
	d := events.NewDispatcher(pub, cfg.EventsBuffer)
	a.closers = append(a.closers, func() {
		if err := d.Close(); err != nil {
			log.WithError(err).Warn("failed to close event dispatcher")
		}
	})
	return d, nil
}

// Close releases resources in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
