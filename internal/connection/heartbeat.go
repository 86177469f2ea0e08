package connection

import (
	"context"
	"log/slog"
	"time"
)

// HeartbeatChecker closes connections whose last activity is older than the
// timeout. Closing the session unblocks the server's read loop, which then
// runs the normal disconnect path (unregister + presence).
type HeartbeatChecker struct {
	registry      *Registry
	timeout       time.Duration
	checkInterval time.Duration
	logger        *slog.Logger
}

// NewHeartbeatChecker creates a sweeper with sane defaults.
func NewHeartbeatChecker(registry *Registry, timeout, checkInterval time.Duration, logger *slog.Logger) *HeartbeatChecker {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	if checkInterval <= 0 {
		checkInterval = 30 * time.Second
	}

	return &HeartbeatChecker{
		registry:      registry,
		timeout:       timeout,
		checkInterval: checkInterval,
		logger:        logger,
	}
}

// Start blocks until ctx is done; run it in a goroutine.
func (h *HeartbeatChecker) Start(ctx context.Context) {
	ticker := time.NewTicker(h.checkInterval)
	defer ticker.Stop()

	h.logger.Info("Heartbeat checker started",
		"timeout", h.timeout,
		"check_interval", h.checkInterval)

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("Heartbeat checker stopped")
			return
		case <-ticker.C:
			h.sweep()
		}
	}
}

func (h *HeartbeatChecker) sweep() {
	conns := h.registry.AllConnections()
	now := time.Now()
	timeoutCount := 0

	for _, conn := range conns {
		if idleSince(conn, now) > h.timeout {
			timeoutCount++
			h.logger.Debug("Connection heartbeat timeout",
				"conn_id", conn.ID(),
				"user_id", conn.UserID(),
				"last_active", conn.LastActive())

			conn.Close()
		}
	}

	if timeoutCount > 0 {
		h.logger.Info("Heartbeat sweep completed",
			"total", len(conns),
			"timed_out", timeoutCount)
	}
}
