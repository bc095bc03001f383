// Package main provides the broker server entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/glebarez/sqlite"
	"github.com/golang/glog"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/contractgrid/pact-broker/pkg/api"
	"github.com/contractgrid/pact-broker/pkg/broker"
)

func main() {
	cfg := broker.ConfigFromEnv()

	flag.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "Address to listen on")
	flag.StringVar(&cfg.DatabaseType, "db-type", cfg.DatabaseType, "Database type (sqlite, postgres, or mysql)")
	flag.StringVar(&cfg.DatabaseDSN, "db-dsn", cfg.DatabaseDSN, "Database connection string")
	flag.Parse()

	// Initialize glog for backwards compatibility
	_ = flag.Set("logtostderr", "true")

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting broker server",
		"listen", cfg.ListenAddr,
		"dbType", cfg.DatabaseType,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	db, err := setupDatabase(cfg.DatabaseType, cfg.DatabaseDSN)
	if err != nil {
		glog.Fatalf("Failed to connect to database: %v", err)
	}

	b := broker.New(db)

	// Schema initialization must complete before any request is served.
	if err := b.Migrate(ctx); err != nil {
		glog.Fatalf("Failed to run migrations: %v", err)
	}

	router := api.NewRouter(b, logger)

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			glog.Fatalf("HTTP server error: %v", err)
		}
	}()

	logger.Info("broker server ready", "listen", cfg.ListenAddr)

	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("broker server stopped")
}

func setupDatabase(dbType, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch dbType {
	case "sqlite", "":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database type %q (expected sqlite, postgres, or mysql)", dbType)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}
