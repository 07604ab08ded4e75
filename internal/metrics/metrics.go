package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	RolloutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecs_deploy_rollouts_total",
			Help: "Total number of rollouts attempted",
		},
		[]string{"strategy", "status"},
	)

	RolloutDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ecs_deploy_rollout_duration_seconds",
			Help:    "Rollout duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"strategy"},
	)

	AWSAPICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecs_deploy_aws_api_calls_total",
			Help: "Total number of AWS API calls",
		},
		[]string{"service", "operation", "status"},
	)

	AWSAPICallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ecs_deploy_aws_api_call_duration_seconds",
			Help:    "AWS API call duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"service", "operation"},
	)
)

// RecordRollout records a rollout attempt and its duration.
func RecordRollout(strategy, status string, duration time.Duration) {
	RolloutsTotal.WithLabelValues(strategy, status).Inc()
	RolloutDuration.WithLabelValues(strategy).Observe(duration.Seconds())
}

// RecordAWSCall records one AWS API call.
func RecordAWSCall(service, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	AWSAPICallsTotal.WithLabelValues(service, operation, status).Inc()
	AWSAPICallDuration.WithLabelValues(service, operation).Observe(time.Since(start).Seconds())
}

// Push publishes collected metrics to a Pushgateway. A one-shot CLI has no
// scrape surface, so metrics leave by push or not at all. A blank URL is a
// no-op.
func Push(url string) error {
	if url == "" {
		return nil
	}
	return push.New(url, "ecs_deploy").Gatherer(prometheus.DefaultGatherer).Push()
}
