package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirinyoku/tixmarket/internal/auth"
	"github.com/kirinyoku/tixmarket/internal/config"
	"github.com/kirinyoku/tixmarket/internal/domain"
	"github.com/kirinyoku/tixmarket/internal/notify"
	"github.com/kirinyoku/tixmarket/internal/postgres"
	"github.com/kirinyoku/tixmarket/internal/redis"
	"github.com/kirinyoku/tixmarket/internal/repository"
	"github.com/kirinyoku/tixmarket/internal/repository/memory"
	postgresrepo "github.com/kirinyoku/tixmarket/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/tixmarket/internal/repository/redis"
	"github.com/kirinyoku/tixmarket/internal/service"
	"github.com/kirinyoku/tixmarket/internal/service/catalog"
	httpgin "github.com/kirinyoku/tixmarket/internal/transport/http/gin"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	services   *service.Services
	pubsub     *redisrepo.CatalogPubSub
	dispatcher *notify.Dispatcher
	closers    []func()
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.New"

	a := &App{cfg: cfg, logger: logger}

	store, err := a.openStore(ctx)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	deps := service.Deps{Store: store, Log: logger}

	var idem *redisrepo.IdempotencyStore
	if cfg.Redis.Enabled {
		rdb, err := redis.New(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			a.close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		a.closers = append(a.closers, func() { _ = rdb.Close() })

		deps.Cache = redisrepo.New(rdb)
		deps.PubSub = redisrepo.NewCatalogPubSub(rdb)
		deps.Limiter = redisrepo.NewSlidingWindowLimiter(rdb, "purchase", cfg.RateLimit.Purchases, cfg.RateLimit.Window)
		idem = redisrepo.NewIdempotencyStore(rdb, cfg.IdempotencyTTL)
		a.pubsub = deps.PubSub
	} else {
		logger.Warn("redis disabled: no cache, rate limit or idempotency")
	}

	sink, err := a.openNotifier()
	if err != nil {
		a.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	a.dispatcher = notify.NewDispatcher(sink, cfg.Notify.Timeout, logger.With(slog.String("component", "notify")))
	deps.Notifier = a.dispatcher

	fees, err := domain.NewFeeSchedule(cfg.Fees.ServiceRate)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a.services = service.NewServices(deps, service.Config{
		Catalog: catalog.Config{},
		Fees:    fees,
	})

	router := httpgin.NewRouter(a.services, auth.NewVerifier(cfg.Auth.JWTSecret), idem, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

func (a *App) openStore(ctx context.Context) (repository.Store, error) {
	if a.cfg.Storage == config.StorageMemory {
		a.logger.Warn("using in-memory storage; data is lost on exit")
		return memory.NewStore(), nil
	}

	pg := a.cfg.Postgres
	pool, err := postgres.New(ctx, postgres.Config{
		DSN:      postgres.DSN(pg.User, pg.Password, pg.Host, pg.Port, pg.Name, pg.SSLMode),
		MaxConns: pg.MaxConns,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, pool.Close)

	if pg.Migrate {
		if err := postgresrepo.Migrate(ctx, pool); err != nil {
			return nil, err
		}
	}

	return postgresrepo.NewStore(pool), nil
}

func (a *App) openNotifier() (notify.Notifier, error) {
	k := a.cfg.Kafka
	if !k.Enabled {
		return notify.NewLogNotifier(a.logger.With(slog.String("component", "notify"))), nil
	}

	prod, err := notify.NewProducer(notify.ProducerConfig{
		Brokers:      k.Brokers,
		RetryMax:     k.RetryMax,
		RequiredAcks: k.RequiredAcks,
		Timeout:      a.cfg.Notify.Timeout,
	})
	if err != nil {
		return nil, err
	}

	n := notify.NewKafkaNotifier(prod, k.PurchaseTopic)
	a.closers = append(a.closers, func() { _ = n.Close() })
	return n, nil
}

// close releases resources in reverse order of acquisition.
func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	defer a.close()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Other replicas publish catalog changes; drop our cached copies.
	if a.pubsub != nil {
		g.Go(func() error {
			err := a.pubsub.Subscribe(gCtx, a.services.Catalog.OnCatalogChange)
			if err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Warn("catalog subscription ended", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := a.httpServer.Shutdown(ctx)
		if werr := a.dispatcher.Wait(ctx); werr != nil {
			a.logger.Warn("pending notifications dropped", slog.String("error", werr.Error()))
		}
		return err
	})

	return g.Wait()
}
