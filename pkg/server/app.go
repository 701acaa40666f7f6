package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	domrepo "RegimeFlow/internal/domain/repository"
	"RegimeFlow/internal/handler/api"
	"RegimeFlow/internal/services/classifier"
	"RegimeFlow/internal/usecase"
	pkgcache "RegimeFlow/pkg/cache"
	pkgch "RegimeFlow/pkg/clickhouse"
	"RegimeFlow/pkg/config"
	xhttp "RegimeFlow/pkg/http"
	pkgkafka "RegimeFlow/pkg/kafka"
	applogger "RegimeFlow/pkg/logger"
	pkgqueue "RegimeFlow/pkg/queue"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	l           *applogger.Logger
	collector   *usecase.FeatureCollector
	consumer    *pkgkafka.Consumer
	kh          pkgkafka.MessageHandler
	chClient    *pkgch.Client
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler

	Proc       *usecase.StreamProcessor
	Store      domrepo.RegimeStore
	Params     classifier.Params
	Cache      *pkgcache.RedisCache
	AlertQueue *pkgqueue.RedisQueue
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	collector *usecase.FeatureCollector,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:       cfg,
		l:         l,
		collector: collector,
		consumer:  consumer,
		kh:        kh,
		chClient:  chClient,
	}
}

// SetHTTPHandler allows DI to inject an HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := a.l
	if l == nil {
		l, _ = applogger.New(&applogger.Config{Level: "info", Format: "console", Output: "stdout"})
	}

	// Resume from the last persisted snapshot so replayed input is rejected
	// instead of double-counted.
	if a.Proc != nil {
		restored, err := a.Proc.Restore(ctx)
		if err != nil {
			l.Warn("snapshot restore failed, starting cold", applogger.Error(err))
		} else if restored {
			l.Info("engine state restored from snapshot")
		}
	}

	// Setup Echo HTTP server using pkg/http and register routes via handler
	httpHandler := a.httpHandler
	if httpHandler == nil && a.Store != nil && a.Proc != nil {
		var queryCache pkgcache.Service = pkgcache.NewMemoryCache()
		if a.Cache != nil {
			queryCache = pkgcache.NewLayeredCache(a.Cache)
		}
		query := usecase.NewRegimeQuery(a.Store, a.Proc, queryCache, a.cfg.Redis.LatestTTL)
		replayer := usecase.NewReplayer(a.Store, a.Params)
		httpHandler = api.NewRegimeEchoHandler(l, query, a.Proc, replayer)
	}

	a.httpServer = xhttp.NewServer(httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	// Start ingest: live WebSocket feed or Kafka features topic
	source := a.cfg.Ingest.Source
	if source == "" {
		source = "websocket"
	}
	switch source {
	case "websocket":
		go func() {
			if err := a.collector.Start(ctx); err != nil {
				l.Error("collector error", applogger.Error(err))
			}
		}()
		l.Info("collector started", applogger.Strings("channels", a.cfg.FeatureFeed.Channels))
	case "kafka":
		if a.consumer != nil && a.kh != nil {
			a.consumer.RegisterHandler(a.kh)
			go func() {
				if err := a.consumer.Start(); err != nil {
					l.Error("kafka consumer error", applogger.Error(err))
				}
			}()
			l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
		}
	}

	// Start queued alert delivery
	if a.AlertQueue != nil {
		if err := a.AlertQueue.Start(); err != nil {
			l.Warn("alert queue start error", applogger.Error(err))
		}
	}

	// Start HTTP server
	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info("shutdown signal received")
	return a.shutdown(ctx, l)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context, l *applogger.Logger) error {
	l.Info("shutting down...")

	// Stop collector (pipeline + stream)
	if a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			l.Warn("collector stop error", applogger.Error(err))
		}
	}

	// Stop consumer before the final snapshot so no rows race the save
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	// Persist the final engine state
	if a.Proc != nil {
		saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.Proc.SaveSnapshot(saveCtx); err != nil {
			l.Warn("final snapshot save error", applogger.Error(err))
		}
		cancel()
	}

	// Shutdown HTTP server
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			l.Error("http shutdown error", applogger.Error(err))
		}
	}

	// Close infrastructure clients
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	// Drain queued alerts
	if a.AlertQueue != nil {
		if err := a.AlertQueue.Stop(ctx); err != nil {
			l.Warn("alert queue stop error", applogger.Error(err))
		}
	}

	// Flush aggregated logs while the Kafka producer is still open
	if a.l != nil {
		a.l.RemoveCollector()
	}

	// Close processor resources (publisher/storage)
	if a.Proc != nil {
		a.Proc.Close()
	}

	l.Info("shutdown complete")
	return nil
}
