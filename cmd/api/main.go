package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/abbasKakoolvand/OKR-analyze/internal/app"
	"github.com/abbasKakoolvand/OKR-analyze/internal/scheduler"
	"github.com/abbasKakoolvand/OKR-analyze/pkg/config"
	appLogger "github.com/abbasKakoolvand/OKR-analyze/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting OKR scoring API server")

	a, err := app.New(cfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize application", zap.Error(err))
	}
	defer a.Close()

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = a.Scheduler()
		if err != nil {
			appLogger.Fatal("Failed to create scheduler", zap.Error(err))
		}
		sched.Start()
	}

	server, stopRouter := a.Router()
	defer stopRouter()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := server.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if sched != nil {
		if err := sched.Stop(ctx); err != nil {
			appLogger.Warn("Scheduler did not stop cleanly", zap.Error(err))
		}
	}
	if err := server.ShutdownWithContext(ctx); err != nil {
		appLogger.Warn("Server shutdown error", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}
