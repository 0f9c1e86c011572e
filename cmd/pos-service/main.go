package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danirudp/lipos/internal/cache"
	"github.com/danirudp/lipos/internal/config"
	"github.com/danirudp/lipos/internal/consumer"
	posgrpc "github.com/danirudp/lipos/internal/grpc"
	poshttp "github.com/danirudp/lipos/internal/http"
	"github.com/danirudp/lipos/internal/metrics"
	"github.com/danirudp/lipos/internal/publisher"
	"github.com/danirudp/lipos/internal/repository"
	"github.com/danirudp/lipos/internal/service"
	"github.com/danirudp/lipos/internal/store"
	"github.com/danirudp/lipos/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/reflection"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("pos-service stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("pos-service exited")
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("pos-service starting",
		"db_driver", cfg.DB.Driver,
		"http_port", cfg.HTTPPort,
		"grpc_port", cfg.GRPCPort,
		"cache_enabled", cfg.Redis.Addr != "",
		"relay_enabled", len(cfg.Kafka.Brokers) > 0)

	repo, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer repo.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var catalog service.CatalogReader = repo
	var cached *cache.CachedCatalog
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password})
		defer client.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := client.Ping(pingCtx).Err(); err != nil {
			// the breaker keeps checkout on the database until Redis answers
			log.Warn("redis unreachable at startup", "addr", cfg.Redis.Addr, "error", err)
		}
		cancel()

		cached = cache.NewCachedCatalog(repo, cache.NewRedisCache(client, cfg.Redis.TTL), log)
		catalog = cached
	}

	checkout := service.NewCheckoutService(repo, catalog, service.Policy{
		MaxRetries:     cfg.Checkout.MaxRetries,
		RetryBaseDelay: cfg.Checkout.RetryBaseDelay,
		CommitTimeout:  cfg.Checkout.CommitTimeout,
		PriceTolerance: cfg.Checkout.PriceTolerance,
	}, log, metrics.NewCheckoutMetrics(reg))
	var invalidator service.CatalogInvalidator
	if cached != nil {
		invalidator = cached
	}
	admin := service.NewCatalogService(repo, invalidator, log)

	httpServer := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: poshttp.NewRouter(poshttp.RouterConfig{
			Checkout:       checkout,
			Admin:          admin,
			Log:            log,
			Metrics:        metrics.NewServerMetrics(reg),
			Gatherer:       reg,
			RequestTimeout: cfg.RequestTimeout,
			CORSOrigins:    cfg.CORSOrigins,
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + cfg.Checkout.CommitTimeout,
		IdleTimeout:  60 * time.Second,
	}

	grpcServer := posgrpc.NewServer(log)
	posgrpc.RegisterCheckoutServer(grpcServer, posgrpc.NewCheckoutServiceServer(checkout))
	reflection.Register(grpcServer)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("failed to listen on grpc port: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("http server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		log.Info("grpc server listening", "addr", lis.Addr().String())
		if err := grpcServer.Serve(lis); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	if len(cfg.Kafka.Brokers) > 0 {
		writer := publisher.NewKafkaWriter(cfg.Kafka.Topic, cfg.Kafka.Brokers...)
		defer writer.Close()
		poller := publisher.NewOutboxPoller(repo, writer, cfg.Kafka.PollInterval, log)
		g.Go(func() error {
			poller.Run(gctx)
			return nil
		})

		if cached != nil {
			invalidations := consumer.NewCatalogInvalidator(
				consumer.NewKafkaReader(cfg.Kafka.Topic, cfg.Kafka.GroupID, cfg.Kafka.Brokers...), cached, log)
			defer invalidations.Close()
			g.Go(func() error {
				invalidations.Run(gctx)
				return nil
			})
		}
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down servers...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		err := httpServer.Shutdown(shutdownCtx)
		select {
		case <-stopped:
		case <-shutdownCtx.Done():
			grpcServer.Stop()
		}
		if err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

type seeder interface {
	Seed(ctx context.Context) error
}

// openStore opens the configured backend, migrates it and optionally seeds the demo catalog.
func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (repository.RepoInterface, error) {
	var (
		repo repository.RepoInterface
		seed seeder
	)

	switch cfg.DB.Driver {
	case "memory":
		mem := store.NewMemoryStore()
		repo, seed = mem, mem
	case "sqlite", "postgres":
		var (
			sqlRepo *repository.Repository
			err     error
		)
		if cfg.DB.Driver == "sqlite" {
			sqlRepo, err = repository.NewSQLiteRepository(cfg.DB.SQLitePath)
		} else {
			sqlRepo, err = repository.NewRepository(&repository.Credentials{
				Host:         cfg.DB.Host,
				Port:         cfg.DB.Port,
				User:         cfg.DB.User,
				Password:     cfg.DB.Password,
				DBName:       cfg.DB.Name,
				MaxOpenConns: cfg.DB.MaxOpenConns,
			})
		}
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := sqlRepo.RunMigrations(); err != nil {
			sqlRepo.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database migrations completed", "dialect", sqlRepo.Dialect())
		repo, seed = sqlRepo, sqlRepo
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DB.Driver)
	}

	if cfg.DB.SeedDemoData {
		if err := seed.Seed(ctx); err != nil {
			repo.Close()
			return nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
		log.Info("demo catalog seeded")
	}
	return repo, nil
}
