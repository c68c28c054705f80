package handler

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Pinger is any dependency whose reachability gates readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	store       Pinger
	redisClient *redis.Client
	logger      *logrus.Logger
	startTime   time.Time
	version     string
}

// NewHealthHandler builds the health checks. redisClient may be nil when the
// revocation list is disabled.
func NewHealthHandler(store Pinger, redisClient *redis.Client, logger *logrus.Logger) *HealthHandler {
	version := os.Getenv("APP_VERSION")
	if version == "" {
		version = "unknown"
	}
	return &HealthHandler{
		store:       store,
		redisClient: redisClient,
		logger:      logger,
		startTime:   time.Now(),
		version:     version,
	}
}

// HealthResponse follows Kubernetes/OpenShift health check conventions
type HealthResponse struct {
	Status    string           `json:"status"`
	Timestamp string           `json:"timestamp"`
	Uptime    string           `json:"uptime"`
	Version   string           `json:"version"`
	Checks    map[string]Check `json:"checks"`
}

type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Health is a simple liveness check - just confirms the Go process is running
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "UP",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Version:   h.version,
		Checks:    map[string]Check{"process": {Status: "UP"}},
	})
}

// Ready checks if the service is ready to accept traffic
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := map[string]Check{
		"database": h.checkDatabase(r.Context()),
		"redis":    h.checkRedis(r.Context()),
	}

	status := "UP"
	httpStatus := http.StatusOK
	for name, c := range checks {
		if c.Status == "DOWN" {
			status = "DOWN"
			httpStatus = http.StatusServiceUnavailable
			h.logger.WithField("check", name).Warn(c.Message)
		}
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Version:   h.version,
		Checks:    checks,
	})
}

func (h *HealthHandler) checkDatabase(ctx context.Context) Check {
	if h.store == nil {
		return Check{Status: "DOWN", Message: "Document store is not initialized"}
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		return Check{Status: "DOWN", Message: "Cannot connect to document store"}
	}
	return Check{Status: "UP"}
}

func (h *HealthHandler) checkRedis(ctx context.Context) Check {
	if h.redisClient == nil {
		return Check{Status: "DISABLED"}
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := h.redisClient.Ping(ctx).Err(); err != nil {
		return Check{Status: "DOWN", Message: "Cannot connect to Redis"}
	}
	return Check{Status: "UP"}
}
