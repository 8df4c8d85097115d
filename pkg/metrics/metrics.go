package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "formpersist"

	metricLabelRoute  = "route"
	metricLabelStatus = "status"
	metricLabelScope  = "scope"
	metricLabelResult = "result"
)

var (
	// WritesCounter counts committed slot writes
	WritesCounter = newCounterVec(
		"writes_count",
		"Number of form state writes, by storage scope and result",
		metricLabelScope, metricLabelResult,
	)
	// WriteDuration observes encoding and storage time of each write
	WriteDuration = newSummaryVec(
		"write_duration_seconds",
		"Seconds to encode and store a form state",
		metricLabelScope,
	)
	// SavesSupersededCounter counts saves collapsed into a later one by the debounce window
	SavesSupersededCounter = newCounterVec(
		"saves_superseded_count",
		"Number of scheduled saves replaced before their debounce window elapsed",
		metricLabelScope,
	)
	// ChangesSkippedCounter counts change notifications without a structural difference
	ChangesSkippedCounter = newCounterVec(
		"changes_skipped_count",
		"Number of change notifications ignored because the state did not change",
	)
	// RestoresCounter counts rehydration attempts
	RestoresCounter = newCounterVec(
		"restores_count",
		"Number of rehydration attempts, by storage scope and result",
		metricLabelScope, metricLabelResult,
	)
	// FormsGauge tracks the number of forms held by a registry
	FormsGauge = newGaugeVec(
		"forms_total",
		"Number of forms currently held in memory",
	)
	// ServiceRequestCounter counts handled http requests
	ServiceRequestCounter = newCounterVec(
		"service_request_count",
		"Count of requests for each route",
		metricLabelRoute, metricLabelStatus,
	)
	// ServiceRequestDuration observes the duration of handled http requests
	ServiceRequestDuration = newSummaryVec(
		"service_request_duration_seconds",
		"Seconds to decode a request, execute it and encode its reply",
		metricLabelRoute, metricLabelStatus,
	)
)

func newSummaryVec(name, help string, labels ...string) *prometheus.SummaryVec {
	vec := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, labels)
	prometheus.MustRegister(vec)
	return vec
}

func newCounterVec(name, help string, labels ...string) *prometheus.CounterVec {
	vec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, labels)
	prometheus.MustRegister(vec)
	return vec
}

func newGaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	vec := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, labels)
	prometheus.MustRegister(vec)
	return vec
}
