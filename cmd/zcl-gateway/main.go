package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"zcl-gateway/internal/coordinator"
	"zcl-gateway/internal/mqtt"
	"zcl-gateway/internal/notify"
	"zcl-gateway/internal/store"
	"zcl-gateway/internal/web"
	"zcl-gateway/internal/zcl"
	"zcl-gateway/internal/zcl/clusters"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfgPath := "config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}
	cfg, err := loadConfig(cfgPath)
	if err == nil {
		err = cfg.validate()
	}
	if err != nil {
		slog.Error("config", "path", cfgPath, "err", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)
	if err := run(cfg, logger); err != nil {
		logger.Error("zcl-gateway stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg *Config, logger *slog.Logger) error {
	logger.Info("zcl-gateway starting", "version", version)

	registry := zcl.NewRegistry(logger)
	for _, def := range clusters.Standard() {
		registry.Register(def)
	}
	devices, err := coordinator.LoadDeviceDir(cfg.DevicesDir, registry, logger)
	if err != nil {
		return fmt.Errorf("load device definitions: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	db, err := store.NewBoltStore(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	pool := notify.NewPool(logger)
	defer pool.Stop()

	tr, err := mqtt.NewTransport(cfg.mqttConfig(), db, logger)
	if err != nil {
		return fmt.Errorf("connect mqtt: %w", err)
	}
	defer tr.Stop()

	coord := coordinator.New(tr, db, registry, devices, pool, logger)
	if err := coord.SeedNodes(cfg.seedNodes()); err != nil {
		return fmt.Errorf("seed nodes: %w", err)
	}
	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = coord.Start(startCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("start coordinator: %w", err)
	}

	publisher := mqtt.NewPublisher(tr, db, logger)
	coord.Router().AddListener(publisher)
	coord.OnRemove(func(n store.Node) { publisher.Forget(n.IEEEAddress) })

	tr.SetHandler(coord.HandleCommand)
	tr.Start()

	stopAutomation, autoOpts, err := initAutomation(coord, cfg, logger)
	if err != nil {
		return err
	}
	defer stopAutomation()

	webServer := web.NewServer(coord, logger, append(cfg.webOptions(), autoOpts...)...)
	defer webServer.Stop()

	httpServer := &http.Server{
		Addr:              cfg.Web.Listen,
		Handler:           webServer,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("web server listening", "addr", cfg.Web.Listen)
		serveErr <- httpServer.ListenAndServe()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", "err", err)
	}
	return nil
}
