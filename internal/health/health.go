package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mpjgroup/OrganizationalMessenger-sub000/internal/redis"
)

// Status is the /health response body.
type Status struct {
	Service     string `json:"service"`
	Database    string `json:"database"`
	Redis       string `json:"redis"`
	Connections int    `json:"connections"`
}

// ConnectionCounter reports the live connection count.
type ConnectionCounter interface {
	Count() int
}

// Checker probes the durable store and the presence mirror.
type Checker struct {
	pool        *pgxpool.Pool
	redisClient *redis.Client
	connCounter ConnectionCounter
}

// NewChecker creates a health checker.
func NewChecker(pool *pgxpool.Pool, redisClient *redis.Client, connCounter ConnectionCounter) *Checker {
	return &Checker{
		pool:        pool,
		redisClient: redisClient,
		connCounter: connCounter,
	}
}

// Check probes each dependency with a short timeout.
func (h *Checker) Check(ctx context.Context) *Status {
	status := &Status{
		Service: "realtime",
	}

	if h.pool != nil {
		dbCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		if err := h.pool.Ping(dbCtx); err == nil {
			status.Database = "connected"
		} else {
			status.Database = "disconnected"
		}
	} else {
		status.Database = "not configured"
	}

	if h.redisClient != nil {
		redisCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		if err := h.redisClient.Ping(redisCtx); err == nil {
			status.Redis = "connected"
		} else {
			status.Redis = "disconnected"
		}
	} else {
		status.Redis = "not configured"
	}

	if h.connCounter != nil {
		status.Connections = h.connCounter.Count()
	}

	return status
}

// IsHealthy reports whether the durable store is reachable. Redis is a
// mirror, so losing it degrades lookups but does not fail readiness.
func (h *Checker) IsHealthy(ctx context.Context) bool {
	status := h.Check(ctx)
	return status.Database == "connected"
}

// ServeHTTP is the /health endpoint.
func (h *Checker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := h.Check(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if status.Database != "connected" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	json.NewEncoder(w).Encode(status)
}
