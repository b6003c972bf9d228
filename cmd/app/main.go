package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"moviex/internal/app"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	// 1. Optional .env for local overrides (MOVIEX_* variables)
	_ = godotenv.Load()

	configPath := os.Getenv("MOVIEX_CONFIG")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	// 2. Pprof Server (for performance profiling)
	go func() {
		// Localhost only for security
		slog.Info("pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("pprof server failed", slog.Any("error", err))
		}
	}()

	// 3. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(configPath); err != nil {
		slog.Error("bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}

	// 4. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Config hot reload (log level)
	go bootstrap.WatchConfig(ctx, configPath)

	// 6. Serve until shutdown
	if err := bootstrap.Server.Start(ctx); err != nil {
		slog.Error("api server failed", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("shut down gracefully")
}
