// Package metrics provides Prometheus metrics for guarded processes.
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/smazurov/procguard/internal/events"
	"github.com/smazurov/procguard/internal/version"
)

const namespace = "procguard"

var (
	guardSpawned = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "guard",
		Name:      "spawned_total",
		Help:      "Processes started under a guard",
	}, []string{"strategy"})

	guardActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "guard",
		Name:      "active",
		Help:      "Guards whose strategy has not run yet",
	})

	guardDisposals = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "guard",
		Name:      "disposals_total",
		Help:      "Strategy executions by outcome",
	}, []string{"strategy", "outcome"})

	guardDisposalErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "guard",
		Name:      "disposal_errors_total",
		Help:      "Strategy executions that reported a teardown error",
	}, []string{"strategy"})

	guardDisposalDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "guard",
		Name:      "disposal_duration_seconds",
		Help:      "Time spent running a termination strategy",
		Buckets:   []float64{.001, .01, .05, .1, .5, 1, 2.5, 5, 10, 30},
	}, []string{"strategy"})

	runnerStopRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "runner",
		Name:      "stop_requests_total",
		Help:      "Stop triggers seen by the runner",
	}, []string{"reason"})

	buildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "build_info",
		Help:      "Build metadata, always 1",
	}, []string{"version", "commit", "goversion"})
)

// RecordBuildInfo publishes the running build's metadata.
func RecordBuildInfo(info version.Info) {
	buildInfo.WithLabelValues(info.Version, info.GitCommit, info.GoVersion).Set(1)
}

// strategyLabel drops the timeout from a strategy's text form so the label
// has one value per kind.
func strategyLabel(strategy string) string {
	kind, _, _ := strings.Cut(strategy, ":")
	return kind
}

// RecordSpawned counts a child started under strategy.
func RecordSpawned(strategy string) {
	guardSpawned.WithLabelValues(strategyLabel(strategy)).Inc()
	guardActive.Inc()
}

// RecordDisposal records one strategy execution.
func RecordDisposal(strategy, outcome string, elapsed time.Duration, failed bool) {
	label := strategyLabel(strategy)
	guardActive.Dec()
	guardDisposals.WithLabelValues(label, outcome).Inc()
	guardDisposalDuration.WithLabelValues(label).Observe(elapsed.Seconds())
	if failed {
		guardDisposalErrors.WithLabelValues(label).Inc()
	}
}

// RecordStopRequest counts a stop trigger.
func RecordStopRequest(reason string) {
	runnerStopRequests.WithLabelValues(reason).Inc()
}

// EventSource is the subscription side of the event bus.
type EventSource interface {
	Subscribe(handler any) func()
}

// Subscribe feeds guard lifecycle events from bus into the metrics above.
// Returns a function that removes every subscription.
func Subscribe(bus EventSource) func() {
	unsubs := []func(){
		bus.Subscribe(func(e events.ProcessSpawnedEvent) {
			RecordSpawned(e.Strategy)
		}),
		bus.Subscribe(func(e events.ProcessDisposedEvent) {
			elapsed := time.Duration(e.DurationSec * float64(time.Second))
			RecordDisposal(e.Strategy, e.Outcome, elapsed, e.Error != "")
		}),
		bus.Subscribe(func(e events.StopRequestedEvent) {
			RecordStopRequest(string(e.Reason))
		}),
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}
