package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const MetricPrefix = "jobwatch_"

var TrackedJobs = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: MetricPrefix + "tracked_jobs",
		Help: "Jobs currently held by the job list store, by state",
	},
	[]string{"state"},
)

var SnapshotFetches = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: MetricPrefix + "snapshot_fetches_total",
		Help: "Job list fetches, by result",
	},
	[]string{"result"},
)

var CancelRequests = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: MetricPrefix + "cancel_requests_total",
		Help: "Cancel requests, by outcome",
	},
	[]string{"outcome"},
)

var LocalTicks = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: MetricPrefix + "local_ticks_total",
		Help: "Local one-second advances applied to running jobs",
	},
)
