package metrics

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"resty.dev/v3"

	"murmur/internal/core"
)

var (
	rpcLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "murmur_rpc_latency_seconds",
			Help:    "Histogram of database RPC call latency in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "status"},
	)

	httpLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "murmur_http_request_latency_seconds",
			Help:    "Histogram of database HTTP API request latency in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"method", "path", "status_code"},
	)

	pagesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "murmur_pages_fetched_total",
		Help: "The total number of fetched feed pages",
	}, []string{"kind", "status"})

	optimisticMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "murmur_optimistic_mutations_total",
		Help: "The total number of optimistic reaction mutations by outcome",
	}, []string{"operation", "outcome"})

	liveNotifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "murmur_live_notifications_total",
		Help: "The total number of received live query notifications",
	}, []string{"table", "action"})

	reactionKinds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "murmur_reaction_events_total",
		Help: "The total number of observed reaction events by kind",
	}, []string{"kind", "action"})
)

// ObserveRPC records a database RPC call.
func ObserveRPC(method string, duration time.Duration, err error) {
	rpcLatency.WithLabelValues(method, status(err)).Observe(duration.Seconds())
}

// HTTPMiddleware records the latency of database HTTP API requests.
func HTTPMiddleware(_ *resty.Client, response *resty.Response) error {
	reqURL, err := url.Parse(response.Request.URL)
	if err != nil {
		return err
	}

	httpLatency.WithLabelValues(
		response.Request.Method,
		reqURL.Path,
		fmt.Sprintf("%d", response.StatusCode()),
	).Observe(response.Duration().Seconds())

	return nil
}

func PageFetched(kind string, err error) {
	pagesFetched.WithLabelValues(kind, status(err)).Inc()
}

// MutationSettled records the outcome of an optimistic mutation: confirmed or reverted.
func MutationSettled(operation, outcome string) {
	optimisticMutations.WithLabelValues(operation, outcome).Inc()
}

func LiveNotification(table, action string) {
	liveNotifications.WithLabelValues(table, action).Inc()
}

func ReactionEvent(kind core.ReactionKind, action string) {
	reactionKinds.WithLabelValues(string(kind), action).Inc()
}

func status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case core.IsLoginRequired(err):
		return "login_required"
	case errors.Is(err, core.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
