package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-chi/httplog/v2"
	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"

	"github.com/vadimbarashkov/shortly/internal/analytics"
	"github.com/vadimbarashkov/shortly/internal/cache"
	"github.com/vadimbarashkov/shortly/internal/config"
	dbpostgres "github.com/vadimbarashkov/shortly/internal/database/postgres"
	"github.com/vadimbarashkov/shortly/internal/safebrowsing"
	"github.com/vadimbarashkov/shortly/internal/service"
	"github.com/vadimbarashkov/shortly/internal/shortcode"
	"github.com/vadimbarashkov/shortly/internal/urlinfo"
	"github.com/vadimbarashkov/shortly/pkg/postgres"

	myhttp "github.com/vadimbarashkov/shortly/internal/api/http"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx); err != nil {
		panic(err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return err
	}

	logger := httplog.NewLogger("shortly", httplog.Options{
		JSON:    cfg.Env == config.EnvProd,
		Concise: cfg.Env != config.EnvProd,
	})

	g, ctx := errgroup.WithContext(ctx)

	db, err := postgres.Connect(ctx, cfg.Postgres.DSN(), postgres.PoolConfig{
		ConnMaxIdleTime: cfg.Postgres.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
	})
	if err != nil {
		return err
	}
	g.Go(func() error {
		<-ctx.Done()
		return db.Close()
	})

	if err := postgres.RunMigrations(ctx, "file://migrations", cfg.Postgres.DSN()); err != nil {
		return err
	}

	linkRepo := dbpostgres.NewLinkRepository(db)
	codeGen := shortcode.NewGenerator(cfg.Service.ShortCodeLength)

	svcOpts := []service.Option{
		service.WithStoreTimeout(cfg.Service.StoreTimeout),
		service.WithMaxRetries(cfg.Service.MaxRetries),
		service.WithCountOnResolve(cfg.Service.CountOnResolve),
	}

	if cfg.Redis.Addr != "" {
		redisCache, err := cache.NewRedisCache(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		g.Go(func() error {
			<-ctx.Done()
			return redisCache.Close()
		})

		svcOpts = append(svcOpts, service.WithCache(redisCache), service.WithCacheTTL(cfg.Redis.TTL))
	}

	httpClient := &http.Client{Timeout: 10 * time.Second}

	if cfg.Service.FetchTitle {
		svcOpts = append(svcOpts, service.WithTitleFetcher(urlinfo.NewFetcher(httpClient)))
	}
	if cfg.SafeBrowsing.APIKey != "" {
		svcOpts = append(svcOpts, service.WithSafetyChecker(safebrowsing.NewChecker(cfg.SafeBrowsing.APIKey, httpClient)))
	}

	linkSvc := service.NewLinkService(linkRepo, codeGen, logger.Logger, svcOpts...)

	monitor := analytics.NewMonitor(cfg.Monitor.Window, cfg.Monitor.Threshold, logger.Logger, nil)
	g.Go(func() error {
		return ignoreCanceled(monitor.Run(ctx))
	})

	conn, err := nats.Connect(
		cfg.Analytics.URL,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return err
	}
	g.Go(func() error {
		<-ctx.Done()
		conn.Close()
		return nil
	})

	ingestor, err := analytics.NewIngestor(conn, linkRepo, codeGen, monitor, logger.Logger, analytics.Config{
		Stream:       cfg.Analytics.Stream,
		Subject:      cfg.Analytics.Subject,
		Durable:      cfg.Analytics.Durable,
		DeliverAll:   cfg.Analytics.DeliverAll,
		BatchSize:    cfg.Analytics.BatchSize,
		BatchTimeout: cfg.Analytics.BatchTimeout,
		StoreTimeout: cfg.Service.StoreTimeout,
	})
	if err != nil {
		return err
	}
	g.Go(func() error {
		return ignoreCanceled(ingestor.Run(ctx))
	})

	r := myhttp.NewRouter(logger, linkSvc, cfg.BaseURL)

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        r,
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g.Go(func() error {
		logger.Info("starting server", slog.String("addr", server.Addr))

		var err error
		switch cfg.Env {
		case config.EnvProd:
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		return server.Shutdown(context.Background())
	})

	return g.Wait()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
