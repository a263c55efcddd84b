package server

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"connectrpc.com/grpchealth"
	"connectrpc.com/otelconnect"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	brokerv1 "github.com/otterscale/timedmq/api/broker/v1"
	"github.com/otterscale/timedmq/internal/core"
	"github.com/otterscale/timedmq/internal/handler"
)

// Handler mounts the BrokerService handler, interceptors, and the
// operational endpoints (health, metrics) onto an HTTP mux.
type Handler struct {
	broker *handler.BrokerService
	engine *core.Broker
}

// NewHandler returns a Handler for the given service and engine. The
// engine is needed directly for the queue-state gauges.
func NewHandler(broker *handler.BrokerService, engine *core.Broker) *Handler {
	return &Handler{broker: broker, engine: engine}
}

// Mount registers the BrokerService handler, the OTel interceptor,
// and the operational endpoints onto the provided mux.
func (h *Handler) Mount(mux *http.ServeMux) error {
	// OpenTelemetry interceptor for automatic tracing and metrics.
	otelInterceptor, err := otelconnect.NewInterceptor()
	if err != nil {
		return err
	}

	interceptors := connect.WithInterceptors(
		otelInterceptor,
	)

	if err := h.registerOpsHandlers(mux); err != nil {
		return err
	}

	mux.Handle(brokerv1.NewBrokerServiceHandler(h.broker, interceptors))

	return nil
}

// registerOpsHandlers sets up health checks, Prometheus metrics
// scraping, and the broker queue-state gauges.
func (h *Handler) registerOpsHandlers(mux *http.ServeMux) error {
	checker := grpchealth.NewStaticChecker(brokerv1.BrokerServiceName)
	mux.Handle(grpchealth.NewHandler(checker))

	exporter, err := prometheus.New()
	if err != nil {
		return err
	}
	// NOTE: This intentionally sets the global OTel MeterProvider so
	// that otelconnect interceptors can discover it without explicit
	// injection.
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter)))
	mux.Handle("/metrics", promhttp.Handler())

	return h.registerBrokerGauges()
}

// registerBrokerGauges exposes a per-instance snapshot of the broker
// as observable gauges, sampled at scrape time.
func (h *Handler) registerBrokerGauges() error {
	meter := otel.Meter("github.com/otterscale/timedmq/internal/core")

	queued, err := meter.Int64ObservableGauge("timedmq_instance_queued_messages",
		otelmetric.WithDescription("Messages currently queued in the instance FIFO"))
	if err != nil {
		return err
	}
	stored, err := meter.Int64ObservableGauge("timedmq_instance_stored_bytes",
		otelmetric.WithDescription("Bytes currently counted against the instance storage budget"))
	if err != nil {
		return err
	}
	sessions, err := meter.Int64ObservableGauge("timedmq_instance_sessions",
		otelmetric.WithDescription("Sessions currently attached to the instance"))
	if err != nil {
		return err
	}
	pendingReads, err := meter.Int64ObservableGauge("timedmq_instance_pending_reads",
		otelmetric.WithDescription("Readers currently parked on the instance"))
	if err != nil {
		return err
	}
	pendingWrites, err := meter.Int64ObservableGauge("timedmq_instance_pending_writes",
		otelmetric.WithDescription("Deferred writes scheduled by the instance's sessions"))
	if err != nil {
		return err
	}

	_, err = meter.RegisterCallback(func(_ context.Context, o otelmetric.Observer) error {
		for _, st := range h.engine.Stats() {
			attrs := otelmetric.WithAttributes(attribute.Int("instance", st.Instance))
			o.ObserveInt64(queued, int64(st.QueuedMsgs), attrs)
			o.ObserveInt64(stored, int64(st.StoredBytes), attrs)
			o.ObserveInt64(sessions, int64(st.Sessions), attrs)
			o.ObserveInt64(pendingReads, int64(st.PendingReads), attrs)
			o.ObserveInt64(pendingWrites, int64(st.PendingWrites), attrs)
		}
		return nil
	}, queued, stored, sessions, pendingReads, pendingWrites)
	return err
}
