package monitoring

import (
	"time"

	"stagecast/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusCollector struct {
	// Counters
	connectionsTotal     prometheus.Counter
	roomJoinsTotal       *prometheus.CounterVec
	roomLeavesTotal      *prometheus.CounterVec
	gatewayEventsTotal   *prometheus.CounterVec
	swallowedErrorsTotal *prometheus.CounterVec
	billingChargesTotal  prometheus.Counter
	billingEvictions     prometheus.Counter

	// Gauges
	connectionsActive prometheus.Gauge
	roomsActive       prometheus.Gauge
	roomMembers       *prometheus.GaugeVec

	// Histograms
	provisionerDuration *prometheus.HistogramVec
	connectionDuration  prometheus.Histogram
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		connectionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stagecast_gateway_connections_total",
			Help: "Total number of accepted gateway connections",
		}),

		roomJoinsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stagecast_room_joins_total",
			Help: "Total room joins by role",
		}, []string{"role"}),

		roomLeavesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stagecast_room_leaves_total",
			Help: "Total room leaves by role",
		}, []string{"role"}),

		gatewayEventsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stagecast_gateway_events_total",
			Help: "Total gateway protocol events by type",
		}, []string{"event"}),

		swallowedErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stagecast_gateway_swallowed_errors_total",
			Help: "Errors absorbed by gateway handlers instead of surfacing over the socket",
		}, []string{"event"}),

		billingChargesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stagecast_billing_charges_total",
			Help: "Total successful per-interval billing charges",
		}),

		billingEvictions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "stagecast_billing_evictions_total",
			Help: "Participants evicted after a failed billing charge",
		}),

		connectionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "stagecast_gateway_connections_active",
			Help: "Currently open gateway connections",
		}),

		roomsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "stagecast_rooms_active",
			Help: "Rooms with at least one present participant",
		}),

		roomMembers: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stagecast_room_members",
			Help: "Participants present per room",
		}, []string{"room"}),

		provisionerDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stagecast_provisioner_request_duration_seconds",
			Help:    "Duration of media server management calls",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		}, []string{"operation"}),

		connectionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "stagecast_gateway_connection_duration_seconds",
			Help:    "Lifetime of gateway connections",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
}

func (p *PrometheusCollector) RecordConnectionOpened() {
	p.connectionsTotal.Inc()
	p.connectionsActive.Inc()
}

func (p *PrometheusCollector) RecordConnectionClosed(lifetime time.Duration) {
	p.connectionsActive.Dec()
	p.connectionDuration.Observe(lifetime.Seconds())
}

func (p *PrometheusCollector) RecordJoin(room domain.RoomID, role domain.Role, roomSize int) {
	p.roomJoinsTotal.WithLabelValues(string(role)).Inc()
	p.roomMembers.WithLabelValues(string(room)).Set(float64(roomSize))
	if roomSize == 1 {
		p.roomsActive.Inc()
	}
}

func (p *PrometheusCollector) RecordLeave(room domain.RoomID, role domain.Role, roomSize int) {
	p.roomLeavesTotal.WithLabelValues(string(role)).Inc()
	if roomSize == 0 {
		p.roomsActive.Dec()
		p.roomMembers.DeleteLabelValues(string(room))
		return
	}
	p.roomMembers.WithLabelValues(string(room)).Set(float64(roomSize))
}

func (p *PrometheusCollector) RecordEvent(event string) {
	p.gatewayEventsTotal.WithLabelValues(event).Inc()
}

// RecordSwallowedError is the sink for the gateway's absorb-and-log failure
// policy so dropped errors stay observable.
func (p *PrometheusCollector) RecordSwallowedError(event string) {
	p.swallowedErrorsTotal.WithLabelValues(event).Inc()
}

func (p *PrometheusCollector) RecordBillingCharge() {
	p.billingChargesTotal.Inc()
}

func (p *PrometheusCollector) RecordBillingEviction() {
	p.billingEvictions.Inc()
}

func (p *PrometheusCollector) RecordProvisionerCall(operation string, duration time.Duration) {
	p.provisionerDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
