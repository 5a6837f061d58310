// unidrive index daemon
//
// Serves the drive index over HTTP for the chat layer:
// - snapshot persistence in PostgreSQL with flat-file fallback
// - background refresh with serve-stale failure posture
// - Prometheus metrics & structured logging (zap)
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/unidrive/unidrive/internal/api"
	"github.com/unidrive/unidrive/internal/config"
	"github.com/unidrive/unidrive/internal/index"
	"github.com/unidrive/unidrive/internal/logging"
	"github.com/unidrive/unidrive/internal/metrics"
	"github.com/unidrive/unidrive/internal/remote"
	"github.com/unidrive/unidrive/internal/store"
	"github.com/unidrive/unidrive/internal/token"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Can't use structured logging yet
		panic("configuration error: " + err.Error())
	}

	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		panic("logging init error: " + err.Error())
	}
	defer logging.Sync()

	logging.Info("unidrive indexd starting",
		zap.String("listen", cfg.ListenAddr),
		zap.String("metrics", cfg.MetricsAddr))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Persistence: postgres primary when configured, file store always.
	fileStore, err := store.NewFile(cfg.DataDir)
	if err != nil {
		logging.Fatal("file store init failed", zap.Error(err))
	}
	var primary store.Store
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			logging.Warn("database unavailable, using file store only", zap.Error(err))
		} else {
			defer pg.Close()
			primary = pg
			logging.Info("connected to PostgreSQL")
		}
	}
	snapStore := store.NewFallback(primary, fileStore)

	// Remote drive client.
	tokens := &remote.ClientCredentials{
		TokenURL:     cfg.TokenURL,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
	}
	client := remote.New(remote.Config{
		BaseURL:           cfg.RemoteBaseURL,
		DriveUserID:       cfg.DriveUserID,
		Tokens:            tokens,
		Timeout:           cfg.RequestTimeout,
		RequestsPerSecond: cfg.RemoteRPS,
	})

	builder := index.NewBuilder(client, cfg.TraversalWorkers)
	scorer := index.NewScorer(index.DefaultWeights(), cfg.DocExtensions)
	manager := index.NewManager(builder, snapStore, scorer, cfg.CacheTTL)

	if err := manager.Load(ctx); err != nil {
		logging.Warn("snapshot load failed, starting empty", zap.Error(err))
	}
	manager.RefreshIfStale(cfg.IndexRoots, cfg.MaxDepth)

	// Periodic freshness check.
	go func() {
		ticker := time.NewTicker(cfg.RefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				manager.RefreshIfStale(cfg.IndexRoots, cfg.MaxDepth)
			}
		}
	}()

	// Metrics server, with a runtime log-level knob on the same port.
	debugMux := http.NewServeMux()
	debugMux.Handle("/metrics", metrics.Handler())
	debugMux.HandleFunc("PUT /log-level", func(w http.ResponseWriter, r *http.Request) {
		level := r.URL.Query().Get("level")
		if err := logging.SetLevel(level); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logging.Info("log level changed", zap.String("level", level))
		w.WriteHeader(http.StatusNoContent)
	})
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: debugMux,
	}
	go func() {
		logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logging.Error("metrics server error", zap.Error(err))
		}
	}()

	// API server.
	srv := api.NewServer(manager, token.NewCodec(), cfg.SearchLimit)
	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Handler(),
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logging.Info("shutting down...")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
		metricsServer.Close()
	}()

	logging.Info("server listening", zap.String("addr", cfg.ListenAddr))
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		logging.Fatal("server error", zap.Error(err))
	}
}
