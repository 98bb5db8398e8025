package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"domainwatch/internal/config"
	"domainwatch/internal/logging"
	"domainwatch/internal/metrics"
	"domainwatch/internal/monitor"
	"domainwatch/internal/notify"
	"domainwatch/internal/server"
	"domainwatch/internal/source"
	"domainwatch/internal/storage"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "path to configuration file (YAML)")
		addr       = flag.String("addr", "", "address for the status server (overrides server.addr)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("exiting", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("domain monitor stopped")
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	store, cleanup, err := openHistory(ctx, cfg.History, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	var (
		journal    monitor.Journal
		detections server.DetectionSource
	)
	if cfg.History.DetectionsPath != "" {
		ds, err := storage.NewDetectionStorage(cfg.History.DetectionsPath, cfg.History.DetectionsLimit)
		if err != nil {
			return fmt.Errorf("open detection journal: %w", err)
		}
		journal, detections = ds, ds
	}

	hub := server.NewHub(logger)
	sinks := notify.Multi{hub}
	if cfg.Notify.WebhookURL != "" {
		sinks = append(sinks, notify.NewFeishu(notify.FeishuOptions{
			WebhookURL:    cfg.Notify.WebhookURL,
			Timeout:       time.Duration(cfg.Notify.TimeoutSeconds) * time.Second,
			Locale:        cfg.Notify.Locale,
			RatePerSecond: cfg.Notify.RatePerSecond,
		}))
	} else {
		logger.Warn("notify.webhook_url is empty, detections are only logged and streamed")
	}

	fetcher := source.NewClient(source.Options{
		URL:       cfg.Source.URL,
		Timeout:   time.Duration(cfg.Source.TimeoutSeconds) * time.Second,
		UserAgent: cfg.Source.UserAgent,
		Headers:   cfg.Source.Headers,
		ListKey:   cfg.Source.ListKey,
	}, logger)

	mon := monitor.New(monitor.Options{
		Interval:       time.Duration(cfg.IntervalSeconds) * time.Second,
		Fetcher:        fetcher,
		Store:          store,
		Notifier:       sinks,
		Journal:        journal,
		Metrics:        m,
		Logger:         logger,
		StrictHistory:  cfg.History.Strict,
		SendStartup:    cfg.Notify.SendStartup,
		StartupTitle:   cfg.Notify.StartupTitle,
		StartupBody:    cfg.Notify.StartupBody,
		DetectionTitle: cfg.Notify.DetectionTitle,
	})

	logger.Info("domain monitor starting",
		zap.String("source", cfg.Source.URL),
		zap.String("history", cfg.History.Backend),
		zap.Int("interval_seconds", cfg.IntervalSeconds))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return mon.Run(ctx)
	})

	if cfg.Server.Addr != "" {
		srv := server.New(server.Options{
			Addr:       cfg.Server.Addr,
			Status:     mon,
			Detections: detections,
			Hub:        hub,
			Gatherer:   reg,
			Logger:     logger,
		})
		g.Go(func() error {
			if err := srv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("status server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("server shutdown", zap.Error(err))
			}
			return nil
		})
	}

	return g.Wait()
}

func openHistory(ctx context.Context, cfg config.HistoryConfig, logger *zap.Logger) (storage.HistoryStore, func(), error) {
	switch cfg.Backend {
	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		store := storage.NewRedisHistory(rdb, cfg.Redis.Key)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			_ = rdb.Close()
			return nil, nil, err
		}
		logger.Info("using redis history", zap.String("addr", cfg.Redis.Addr), zap.String("key", cfg.Redis.Key))
		return store, func() { _ = rdb.Close() }, nil
	default:
		store, err := storage.NewFileHistory(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using file history", zap.String("path", store.Path()))
		return store, func() {}, nil
	}
}
