package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/otterscale/timedmq/internal/core"
)

// statsLogInterval is the interval at which the stats loop logs a
// per-instance snapshot of the broker.
const statsLogInterval = 30 * time.Second

// statsListener periodically logs broker queue state. It adapts the
// loop to the transport.Listener interface so it participates in the
// managed lifecycle alongside the HTTP server.
type statsListener struct {
	broker *core.Broker
	log    *slog.Logger
}

func newStatsListener(broker *core.Broker) *statsListener {
	return &statsListener{
		broker: broker,
		log:    slog.Default().With("component", "stats"),
	}
}

func (l *statsListener) Start(ctx context.Context) error {
	ticker := time.NewTicker(statsLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for _, st := range l.broker.Stats() {
				if st.QueuedMsgs == 0 && st.Sessions == 0 && st.PendingReads == 0 && st.PendingWrites == 0 {
					continue
				}
				l.log.Info("instance state",
					"instance", st.Instance,
					"queued_messages", st.QueuedMsgs,
					"stored_bytes", st.StoredBytes,
					"sessions", st.Sessions,
					"pending_reads", st.PendingReads,
					"pending_writes", st.PendingWrites,
				)
			}
		}
	}
}

func (l *statsListener) Stop(_ context.Context) error {
	return nil // the loop stops when its context is cancelled
}
