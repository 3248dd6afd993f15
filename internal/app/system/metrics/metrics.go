// internal/app/system/metrics/metrics.go

// Package metrics exposes Prometheus instrumentation for the realtime core.
//
// Metrics are registered on the Registerer handed to New rather than the
// default registry, so tests can build as many instances as they like.
// Every method is safe to call on a nil *Metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Delivery results.
const (
	ResultDelivered   = "delivered"
	ResultUnreachable = "unreachable"
)

// Step notification results.
const (
	StepNotified = "created"
	StepSkipped  = "skipped"
)

// Metrics holds the collectors for socket and notification activity.
type Metrics struct {
	// Connections is the number of registered sockets.
	Connections prometheus.Gauge

	// OnlineUsers is the number of users with at least one socket.
	OnlineUsers prometheus.Gauge

	// Frames counts inbound frames by decoded type ("invalid" for parse failures).
	Frames *prometheus.CounterVec

	// Deliveries counts DeliverToUser outcomes.
	Deliveries *prometheus.CounterVec

	// SendFailures counts individual socket writes that failed.
	SendFailures prometheus.Counter

	// HandshakeRejections counts refused socket handshakes by reason.
	HandshakeRejections *prometheus.CounterVec

	// StepNotifications counts OnStepCompleted outcomes.
	StepNotifications *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "labflow_ws_connections",
			Help: "Number of live websocket connections",
		}),
		OnlineUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "labflow_ws_online_users",
			Help: "Number of users with at least one live websocket connection",
		}),
		Frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "labflow_ws_inbound_frames_total",
			Help: "Inbound websocket frames by message type",
		}, []string{"type"}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "labflow_ws_deliveries_total",
			Help: "Point-to-point deliveries by result",
		}, []string{"result"}),
		SendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "labflow_ws_send_failures_total",
			Help: "Outbound websocket writes that failed",
		}),
		HandshakeRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "labflow_ws_handshake_rejections_total",
			Help: "Refused websocket handshakes by reason",
		}, []string{"reason"}),
		StepNotifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "labflow_step_notifications_total",
			Help: "Step completion notifications by result",
		}, []string{"result"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.Connections,
			m.OnlineUsers,
			m.Frames,
			m.Deliveries,
			m.SendFailures,
			m.HandshakeRejections,
			m.StepNotifications,
		)
	}
	return m
}

// SetPopulation records the current connection and online-user counts.
func (m *Metrics) SetPopulation(connections, users int) {
	if m == nil {
		return
	}
	m.Connections.Set(float64(connections))
	m.OnlineUsers.Set(float64(users))
}

// FrameReceived counts one inbound frame of the given type.
func (m *Metrics) FrameReceived(frameType string) {
	if m == nil {
		return
	}
	m.Frames.WithLabelValues(frameType).Inc()
}

// Delivery records a DeliverToUser outcome.
func (m *Metrics) Delivery(delivered bool) {
	if m == nil {
		return
	}
	if delivered {
		m.Deliveries.WithLabelValues(ResultDelivered).Inc()
		return
	}
	m.Deliveries.WithLabelValues(ResultUnreachable).Inc()
}

// SendFailed counts one failed socket write.
func (m *Metrics) SendFailed() {
	if m == nil {
		return
	}
	m.SendFailures.Inc()
}

// HandshakeRejected counts one refused handshake.
func (m *Metrics) HandshakeRejected(reason string) {
	if m == nil {
		return
	}
	m.HandshakeRejections.WithLabelValues(reason).Inc()
}

// StepNotification records an OnStepCompleted outcome.
func (m *Metrics) StepNotification(created bool) {
	if m == nil {
		return
	}
	if created {
		m.StepNotifications.WithLabelValues(StepNotified).Inc()
		return
	}
	m.StepNotifications.WithLabelValues(StepSkipped).Inc()
}
