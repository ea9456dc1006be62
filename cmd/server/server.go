package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/septivank/meter-reading-service/internal/anomaly"
	"github.com/septivank/meter-reading-service/internal/api"
	"github.com/septivank/meter-reading-service/internal/config"
	"github.com/septivank/meter-reading-service/internal/db"
	"github.com/septivank/meter-reading-service/internal/imagestore"
	"github.com/septivank/meter-reading-service/internal/mq"
	"github.com/septivank/meter-reading-service/internal/reading"
	"github.com/septivank/meter-reading-service/internal/recognition/gemini"
	"github.com/septivank/meter-reading-service/internal/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func startServer(lc fx.Lifecycle, router *chi.Mux, cfg *config.Config, logger *zap.Logger) *http.Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServicePort),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return fmt.Errorf("[HTTP] failed to listen on %s: %w", srv.Addr, err)
			}
			logger.Info("http server listening", zap.String("addr", srv.Addr))

			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server stopped unexpectedly", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, cfg.HTTP.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("failed to shut down http server", zap.Error(err))
				return err
			}
			logger.Info("http server stopped gracefully")
			return nil
		},
	})

	return srv
}

// ProvideStore creates the record store selected by STORE_DRIVER
func ProvideStore(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (reading.Store, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		pool, err := db.NewPool(lc, logger, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		return repository.NewPostgres(pool), nil

	case config.DriverSQLite:
		store, err := repository.NewSQLite(cfg.Database.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("[DATABASE] failed to open sqlite store: %w", err)
		}
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return store.Close()
			},
		})
		logger.Info("using sqlite store", zap.String("path", cfg.Database.SQLitePath))
		return store, nil

	case config.DriverMemory:
		logger.Warn("using in-memory store, readings are lost on restart")
		return repository.NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Database.Driver)
}

// ProvideImageStore creates the scratch storage for submitted photographs
func ProvideImageStore(cfg *config.Config) *imagestore.Store {
	return imagestore.New(cfg.Upload.TmpDir)
}

// ProvideAnomalyDetector creates a new anomaly detector instance
func ProvideAnomalyDetector(cfg *config.Config) *anomaly.Detector {
	return anomaly.NewDetector(cfg.Anomaly.SpikeThreshold, cfg.Anomaly.MinDataPointsForDetection)
}

// ProvideRecognizer creates the Gemini recognition client
func ProvideRecognizer(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (reading.Recognizer, error) {
	return gemini.NewClient(lc, logger, cfg.Gemini)
}

// ProvideNotifier creates the reading event publisher. Without RABBITMQ_URL
// events are dropped.
func ProvideNotifier(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (reading.Notifier, error) {
	if cfg.RabbitMQ.URL == "" {
		logger.Info("RABBITMQ_URL not set, reading events are not published")
		return mq.NoopPublisher{}, nil
	}

	conn, err := mq.NewConnection(lc, logger, cfg.RabbitMQ.URL, cfg.ServiceName)
	if err != nil {
		return nil, err
	}

	publisher, err := mq.NewPublisher(conn, cfg.RabbitMQ.Exchange, mq.Routes{
		Created:   cfg.RabbitMQ.CreatedRoutingKey,
		Confirmed: cfg.RabbitMQ.ConfirmedRoutingKey,
	}, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return publisher.Close()
		},
	})

	return publisher, nil
}

// ProvideManager creates the reading lifecycle manager
func ProvideManager(
	store reading.Store,
	images *imagestore.Store,
	recognizer reading.Recognizer,
	detector *anomaly.Detector,
	notifier reading.Notifier,
	cfg *config.Config,
	logger *zap.Logger,
) *reading.Manager {
	return reading.NewManager(store, images, recognizer, detector, notifier, cfg, logger)
}

// ProvideHandler creates the HTTP handlers
func ProvideHandler(manager *reading.Manager, cfg *config.Config, logger *zap.Logger) *api.Handler {
	return api.NewHandler(manager, cfg.HTTP.BodyLimitBytes, logger)
}

// ProvideRouter creates the HTTP router
func ProvideRouter(h *api.Handler, cfg *config.Config, logger *zap.Logger) *chi.Mux {
	return api.NewRouter(h, cfg.HTTP, logger)
}
