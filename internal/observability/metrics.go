package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PostsCreated counts posts appended through the service.
	PostsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "postfeed_posts_created_total",
		Help: "Total number of posts created",
	})

	// ValidationFailures counts rejected create requests by error code.
	ValidationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postfeed_create_rejected_total",
		Help: "Total number of rejected create requests by error code",
	}, []string{"code"})

	// Searches counts featured list requests, split by whether a query was given.
	Searches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postfeed_searches_total",
		Help: "Total number of featured list requests",
	}, []string{"filtered"})

	// SearchResults records how many posts each featured list returned.
	SearchResults = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "postfeed_search_results",
		Help:    "Number of posts returned per featured list request",
		Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
	})

	// CacheLookups counts list cache lookups by result (hit, miss, error).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postfeed_cache_lookups_total",
		Help: "Total list cache lookups by result",
	}, []string{"result"})

	// RedisErrors counts Redis errors by command name.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postfeed_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// StaleResponses counts client responses discarded because their token was superseded.
	StaleResponses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "postfeed_client_stale_responses_total",
		Help: "Total number of search responses dropped after supersession",
	})
)

// SearchLabel maps a query presence onto the "filtered" label value.
func SearchLabel(query string) string {
	if query == "" {
		return "false"
	}
	return "true"
}
