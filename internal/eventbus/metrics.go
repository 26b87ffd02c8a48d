package eventbus

import "github.com/prometheus/client_golang/prometheus"

const (
	backendMemory = "memory"
	backendRedis  = "redis"
)

var (
	published = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_chat_eventbus_published_total",
			Help: "Events accepted for publication.",
		},
		[]string{"backend"},
	)
	delivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_chat_eventbus_delivered_total",
			Help: "Events handed to a subscriber buffer.",
		},
		[]string{"backend"},
	)
	dropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_chat_eventbus_dropped_total",
			Help: "Events dropped because a subscriber buffer was full.",
		},
		[]string{"backend"},
	)
	subscriptionsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "support_chat_eventbus_subscriptions",
			Help: "Open subscriptions.",
		},
		[]string{"backend"},
	)
)

func init() {
	prometheus.MustRegister(published, delivered, dropped, subscriptionsActive)
}
