package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/pralapin/school-service/internal/adapters/messaging"
	"github.com/pralapin/school-service/internal/adapters/observability"
	"github.com/pralapin/school-service/internal/adapters/push"
	"github.com/pralapin/school-service/internal/config"
	"github.com/pralapin/school-service/internal/core/ports"
)

// The notifier drains queued push batches and delivers them through FCM.
func main() {
	cfg := config.LoadNotifierConfig()
	logger := config.NewLogger(cfg.Debug)
	logger.Info("starting push notifier...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker, err := messaging.NewRabbitMQBroker(cfg.RabbitMQURL, cfg.PushQueueName)
	if err != nil {
		logger.WithError(err).Fatal("notifier: failed to connect to RabbitMQ")
	}
	defer broker.Close()
	logger.WithField("queue", cfg.PushQueueName).Info("notifier: connected to RabbitMQ")

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	var sender ports.PushSender = push.Disabled{}
	name := "disabled"
	if cfg.FirebaseCredentialsPath != "" {
		fcm, err := push.NewFCMFromFile(ctx, cfg.FirebaseCredentialsPath, logger)
		if err != nil {
			logger.WithError(err).Warn("notifier: FCM unavailable, queued pushes will be dropped")
		} else {
			sender, name = fcm, "fcm"
		}
	} else {
		logger.Warn("notifier: FIREBASE_CREDENTIALS_PATH not set, queued pushes will be dropped")
	}
	sender = push.NewInstrumented(sender, name, metrics.PushBatchesTotal, metrics.PushMessagesTotal)

	healthServer := &http.Server{
		Addr:              ":" + cfg.HealthPort,
		Handler:           healthMux(broker, metrics),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.WithField("port", cfg.HealthPort).Info("notifier: starting health check server")
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("notifier: health server error")
		}
	}()

	errChan := make(chan error, 1)
	go func() {
		err := broker.Consume(ctx, func(ctx context.Context, msg ports.PushMessage) error {
			res, err := sender.Send(ctx, msg)
			entry := logger.WithFields(logrus.Fields{
				"tokens":  len(msg.Tokens),
				"success": res.SuccessCount,
				"failure": res.FailureCount,
			})
			if err != nil {
				entry.WithError(err).Warn("notifier: push batch failed")
				return err
			}
			entry.Debug("notifier: push batch delivered")
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.WithField("signal", sig.String()).Info("notifier: initiating shutdown")
	case err := <-errChan:
		logger.WithError(err).Error("notifier: consumer stopped, shutting down")
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("notifier: error shutting down health server")
	}
	logger.Info("notifier: shutdown complete")
}

func healthMux(broker *messaging.RabbitMQBroker, metrics *observability.Metrics) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := "UP"
		httpStatus := http.StatusOK
		if !broker.IsOpen() {
			status = "DOWN"
			httpStatus = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(httpStatus)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":    status,
			"component": "push-notifier",
		})
	})
	mux.Handle("/metrics", metrics.Handler())
	return mux
}
