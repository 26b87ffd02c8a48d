package websocket

import "github.com/prometheus/client_golang/prometheus"

var (
	wsConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "support_chat_ws_connections",
			Help: "Current number of open websocket connections.",
		},
		[]string{"kind"},
	)
	wsFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_chat_ws_frames_total",
			Help: "Inbound frames handled, by frame type and outcome.",
		},
		[]string{"kind", "type", "outcome"},
	)
	wsMessagesDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_chat_ws_messages_delivered_total",
			Help: "Bus events written to websocket clients.",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(wsConnections, wsFrames, wsMessagesDelivered)
}

func incConnections(kind Kind) {
	wsConnections.WithLabelValues(string(kind)).Inc()
}

func decConnections(kind Kind) {
	wsConnections.WithLabelValues(string(kind)).Dec()
}

func countFrame(kind Kind, frameType string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "rejected"
	}
	wsFrames.WithLabelValues(string(kind), frameType, outcome).Inc()
}

func addDelivered(kind Kind) {
	wsMessagesDelivered.WithLabelValues(string(kind)).Inc()
}
