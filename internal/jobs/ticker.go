package jobs

import (
	"time"

	log "github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"jobwatch/internal/duration"
	"jobwatch/internal/metrics"
	"jobwatch/internal/task"
)

const DefaultTickInterval = time.Second

// Advance moves a running job's elapsed time forward by one second and reports
// whether it did. Other states are left alone. Elapsed text that cannot be parsed
// restarts from zero.
func Advance(job *Job) bool {
	if job == nil || job.State != Running {
		return false
	}
	next, err := duration.Increment(job.Elapsed)
	if err != nil {
		log.WithError(err).WithField("job", job.ID).Debug("elapsed time unparseable, counting from zero")
		next, _ = duration.Increment("")
	}
	job.Elapsed = next
	metrics.LocalTicks.Inc()
	return true
}

// NewTicker schedules store.Tick every interval. It is stopped like any other task
// and never touches the network.
func NewTicker(store *Store, clk clock.WithTicker, interval time.Duration) *task.Task {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return task.New("local_tick", clk, interval, false, func() {
		store.Tick()
	})
}
