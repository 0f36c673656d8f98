package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/houseofcat/turbocookedredis/pkg/tcr"
)

func main() {
	configPath := flag.String("config", "seasoning.json", "path to a .json or .yaml RedisSeasoning file")
	interval := flag.Duration("interval", time.Second, "time between command rounds")
	addr := flag.String("addr", ":8080", "listen address for /stats and /healthz, empty disables")
	flag.Parse()

	config, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("can't load config", "path", *configPath, "error", err)
		os.Exit(1)
	}

	if config.PoolConfig == nil {
		slog.Error("config has no PoolConfig", "path", *configPath)
		os.Exit(1)
	}

	logger := tcr.NewLogger(config.LoggingConfig)
	slog.SetDefault(logger)

	if err := run(config, *interval, *addr, logger); err != nil {
		logger.Error("driver stopped", "error", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*tcr.RedisSeasoning, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return tcr.ConvertYAMLFileToConfig(path)
	default:
		return tcr.ConvertJSONFileToConfig(path)
	}
}

func run(config *tcr.RedisSeasoning, interval time.Duration, addr string, logger *slog.Logger) error {
	loop := tcr.NewEventLoopWithErrorHandler(func(err error) {
		logger.Error("event loop task failed", "error", err)
	})

	var notify func(*tcr.Notification)
	if config.NotifierConfig != nil && config.NotifierConfig.Enabled {
		notifier, err := tcr.NewNotifier(config.NotifierConfig, logger)
		if err != nil {
			return err
		}

		notifier.StartPublishing()
		defer notifier.Shutdown()
		notify = notifier.Notify
	}

	client, err := tcr.NewRedisClient(config.PoolConfig)
	if err != nil {
		return err
	}

	count := int(config.PoolConfig.MaxConnectionCount)
	if count <= 0 {
		count = 1
	}

	pool, err := tcr.NewConnectionPoolWithHandlers(loop, client, config.PoolConfig, count, nil, notify)
	if err != nil {
		return err
	}
	pool.SetLogger(logger)

	loop.Start()
	defer loop.Stop()

	if err := loop.Post(pool.Init); err != nil {
		return err
	}

	logger.Info("connection pool started",
		"application", config.PoolConfig.ApplicationName,
		"endpoint", config.PoolConfig.Endpoint().String(),
		"slots", count)

	var server *http.Server
	if addr != "" {
		server = &http.Server{Addr: addr, Handler: newRouter(pool), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("stats server failed", "addr", addr, "error", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if server != nil {
				_ = server.Shutdown(shutdownCtx)
			}

			return pool.Shutdown(shutdownCtx)
		case <-ticker.C:
			exercise(ctx, pool, logger)
		}
	}
}

// exercise writes two keys and reads one back on the next connections in rotation.
func exercise(ctx context.Context, pool *tcr.ConnectionPool, logger *slog.Logger) {
	commands := [][]interface{}{
		{"SET", "key1", "test1"},
		{"SET", "key2", "test2"},
		{"GET", "key2"},
	}

	for _, args := range commands {
		conn, err := pool.Get(ctx)
		if err != nil {
			logger.Warn("no connection available", "command", args[0], "error", err)
			continue
		}

		args := args
		conn.Send(func(reply interface{}, err error) {
			if err != nil {
				logger.Error("command failed", "command", args[0], "error", err)
				return
			}

			logger.Debug("command replied", "command", args[0], "reply", reply)
		}, args...)
	}
}
