package conversation

import "github.com/prometheus/client_golang/prometheus"

const (
	claimWon      = "won"
	claimLost     = "lost"
	claimNotFound = "not_found"
	claimError    = "error"
)

var (
	claimOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_chat_claims_total",
			Help: "Claim and assign attempts by outcome.",
		},
		[]string{"outcome"},
	)
	transitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_chat_conversation_transitions_total",
			Help: "Conversation status transitions committed.",
		},
		[]string{"to"},
	)
	publishFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "support_chat_publish_failures_total",
			Help: "Events that could not be published after a durable write.",
		},
	)
)

func init() {
	prometheus.MustRegister(claimOutcomes, transitionsTotal, publishFailures)
}
