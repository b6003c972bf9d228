package app

import (
	"context"
	"log/slog"
	"time"

	"moviex/internal/api"
	"moviex/internal/infra"
	"moviex/internal/infra/storage"
	"moviex/internal/marketdata"
	"moviex/internal/service"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config   *infra.Config
	LogLevel *slog.LevelVar
	Store    *storage.Store
	Exchange *service.Exchange
	View     *marketdata.View
	Server   *api.Server
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization: config, logger, storage,
// exchange, market data view, API server.
func (b *Bootstrap) Initialize(configPath string) error {
	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger, level := infra.NewLogger(cfg)
	slog.SetDefault(logger)
	b.LogLevel = level

	// 3. Initialize Storage (DB)
	store, err := storage.NewStore(cfg.Storage.Path)
	if err != nil {
		return err
	}
	b.Store = store
	slog.Info("database initialized", slog.String("path", cfg.Storage.Path))

	// 4. Exchange core, notified through the WebSocket hub
	hub := api.NewHub()
	b.Exchange = service.New(store, hub, service.Options{
		StartingCash:      cfg.Exchange.StartingCash,
		SettlementRetries: cfg.Exchange.SettlementRetries,
	})

	// 5. Market data view delegates depth to the live books
	b.View = marketdata.New(store, b.Exchange.Depth)

	// 6. API server
	b.Server = api.NewServer(b.Exchange, b.View, hub, api.Options{
		Addr:           cfg.Server.Addr,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		DepthLevels:    cfg.Exchange.DepthLevels,
		StatsWindow:    time.Duration(cfg.Exchange.StatsWindowHours) * time.Hour,
	})

	slog.Info("exchange core ready", slog.String("app", cfg.App.Name), slog.String("version", cfg.App.Version))
	return nil
}

// WatchConfig hot-reloads runtime-tunable settings, currently the log level.
func (b *Bootstrap) WatchConfig(ctx context.Context, configPath string) {
	err := infra.WatchConfig(ctx, configPath, func(cfg *infra.Config) {
		b.LogLevel.Set(infra.ParseLevel(cfg.Logging.Level))
		slog.Info("log level updated", slog.String("level", cfg.Logging.Level))
	})
	if err != nil {
		slog.Warn("config watcher stopped", slog.Any("error", err))
	}
}
