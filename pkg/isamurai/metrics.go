package isamurai

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the client's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	pollsTotal      *prometheus.CounterVec
	waitsTotal      *prometheus.CounterVec
	waitDuration    *prometheus.HistogramVec
	jobsSubmitted   *prometheus.CounterVec
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "isamurai_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"endpoint", "code"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "isamurai_request_duration_seconds",
				Help:    "Duration of API requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		pollsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "isamurai_job_polls_total",
				Help: "Total number of job status polls by reported state",
			},
			[]string{"state"},
		),
		waitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "isamurai_job_waits_total",
				Help: "Total number of completed waits by outcome",
			},
			[]string{"outcome"},
		),
		waitDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "isamurai_job_wait_duration_seconds",
				Help:    "Time spent waiting for jobs",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
			},
			[]string{"outcome"},
		),
		jobsSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "isamurai_jobs_submitted_total",
				Help: "Total number of jobs submitted by kind",
			},
			[]string{"kind"},
		),
	}
}

func (m *Metrics) recordRequest(endpoint string, code int, d time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	m.requestsTotal.WithLabelValues(endpoint, label).Inc()
	m.requestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

func (m *Metrics) recordPoll(state State) {
	if m == nil {
		return
	}
	m.pollsTotal.WithLabelValues(string(state)).Inc()
}

func (m *Metrics) recordWait(outcome Outcome, d time.Duration) {
	if m == nil {
		return
	}
	m.waitsTotal.WithLabelValues(string(outcome)).Inc()
	m.waitDuration.WithLabelValues(string(outcome)).Observe(d.Seconds())
}

func (m *Metrics) recordSubmit(kind string) {
	if m == nil {
		return
	}
	m.jobsSubmitted.WithLabelValues(kind).Inc()
}
