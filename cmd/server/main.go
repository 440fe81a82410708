package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	apihttp "github.com/XITRIX/iTorrent-v2/internal/api/http"
	"github.com/XITRIX/iTorrent-v2/internal/app"
	"github.com/XITRIX/iTorrent-v2/internal/engine/anacrolix"
	"github.com/XITRIX/iTorrent-v2/internal/metrics"
	"github.com/XITRIX/iTorrent-v2/internal/notifications"
	mongorepo "github.com/XITRIX/iTorrent-v2/internal/repository/mongo"
	"github.com/XITRIX/iTorrent-v2/internal/services/background"
	"github.com/XITRIX/iTorrent-v2/internal/services/monitoring"
	"github.com/XITRIX/iTorrent-v2/internal/services/network"
	"github.com/XITRIX/iTorrent-v2/internal/services/preferences"
	"github.com/XITRIX/iTorrent-v2/internal/services/scopes"
	"github.com/XITRIX/iTorrent-v2/internal/services/torrent"
	"github.com/XITRIX/iTorrent-v2/internal/telemetry"

	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
)

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), "session-core")
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", "session-core"),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.String("dataDir", cfg.DataDir),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(rootCtx, 15*time.Second)
	defer cancel()

	mongoClient, err := mongorepo.Connect(ctx, cfg.MongoURI, options.Client().SetMonitor(otelmongo.NewMonitor()))
	if err != nil {
		logger.Error("mongo connect failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := mongoClient.Ping(ctx, readpref.Primary()); err != nil {
		logger.Error("mongo ping failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	prefsRepo := mongorepo.NewPreferencesRepository(mongoClient, cfg.MongoDatabase)
	scopeRepo := mongorepo.NewScopeRepository(mongoClient, cfg.MongoDatabase)
	metadataRepo := mongorepo.NewMetadataRepository(mongoClient, cfg.MongoDatabase)

	prefsMgr := preferences.NewManager(prefsRepo, logger)
	if err := prefsMgr.Load(ctx); err != nil {
		logger.Error("preferences load failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	scopeMgr := scopes.NewManager(scopeRepo, scopes.FileBookmarks{}, prefsMgr, cfg.DataDir, logger)
	scopeMgr.OnChange(prefsMgr.StoragesChanged)
	if err := scopeMgr.Load(ctx); err != nil {
		logger.Error("scope load failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	// Every persisted scope is re-resolved before the engine starts so
	// torrents never attach to a root the process cannot reach.
	scopeMgr.ResolveAll(ctx)

	engine, err := anacrolix.New(anacrolix.Config{
		DataDir:  cfg.DataDir,
		Settings: prefsMgr.Get().SessionSettings(nil, scopeMgr.Resolved()),
	}, logger)
	if err != nil {
		logger.Error("engine init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	registry := torrent.NewService(engine, metadataRepo, logger)
	registry.Start(rootCtx)

	pushScheduler := notifications.NewPushScheduler(cfg.PushEndpoint, logger)
	monitor := &monitoring.Service{
		Preferences: prefsMgr.Get,
		Scheduler:   pushScheduler,
		Logger:      logger,
	}
	monitor.Attach(registry)

	strategyFactory := background.NewStrategyFactory(
		background.NewSystemAudioSession(),
		background.NewSystemLocationProvider(),
		logger,
	)
	controller := background.NewController(strategyFactory, prefsMgr.Get().BackgroundMode, logger)
	go controller.ApplyMode(rootCtx, prefsMgr.Get().BackgroundMode)

	netMonitor := network.NewMonitor(prefsMgr.NetworkChanged, logger)
	go netMonitor.Run(rootCtx)

	prefsMgr.BindEngine(engine.ApplySettings, netMonitor.Interfaces, scopeMgr.Resolved)
	prefsMgr.ScheduleApply()

	handler := apihttp.NewServer(registry,
		apihttp.WithScopes(scopeMgr),
		apihttp.WithPreferences(prefsMgr),
		apihttp.WithMonitoring(monitor),
		apihttp.WithBackground(controller),
		apihttp.WithLogger(logger),
	)

	go updateSpeedMetrics(rootCtx, registry)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("server started", slog.String("addr", cfg.HTTPAddr))

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	handler.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", slog.String("error", err.Error()))
	}

	controller.Stop()
	registry.Close()
	prefsMgr.Close()
	if err := engine.Close(); err != nil {
		logger.Warn("engine close failed", slog.String("error", err.Error()))
	}
	if err := mongoClient.Disconnect(shutdownCtx); err != nil {
		logger.Warn("mongo disconnect failed", slog.String("error", err.Error()))
	}
	logger.Info("server stopped")
}

// updateSpeedMetrics periodically aggregates per-torrent rates into the
// session-wide Prometheus gauges.
func updateSpeedMetrics(ctx context.Context, registry *torrent.Service) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var download, upload int64
			for _, snap := range registry.Snapshots() {
				download += snap.DownloadRate
				upload += snap.UploadRate
			}
			metrics.DownloadSpeedBytes.Set(float64(download))
			metrics.UploadSpeedBytes.Set(float64(upload))
		}
	}
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	options := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
