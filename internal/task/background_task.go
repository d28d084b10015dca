package task

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"jobwatch/internal/metrics"
)

var taskLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    metrics.MetricPrefix + "task_latency_seconds",
		Help:    "Background task latency in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
	},
	[]string{"task"},
)

// Task calls a function on a fixed interval until stopped. An interval of zero runs
// the function once.
type Task struct {
	name      string
	interval  time.Duration
	immediate bool
	function  func()
	clock     clock.WithTicker

	started   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// New creates a stopped task. With immediate set the first run happens on Start,
// otherwise one interval later.
func New(name string, clk clock.WithTicker, interval time.Duration, immediate bool, function func()) *Task {
	return &Task{
		name:      name,
		interval:  interval,
		immediate: immediate,
		function:  function,
		clock:     clk,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (t *Task) Name() string {
	return t.name
}

func (t *Task) Start() {
	t.startOnce.Do(func() {
		t.started.Store(true)
		go t.run()
	})
}

func (t *Task) run() {
	defer close(t.done)

	if t.immediate {
		t.invoke()
	}
	if t.interval <= 0 {
		if !t.immediate {
			t.invoke()
		}
		return
	}

	ticker := t.clock.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C():
		}
		// a stop that raced with the tick wins
		select {
		case <-t.stop:
			return
		default:
		}
		t.invoke()
	}
}

func (t *Task) invoke() {
	start := t.clock.Now()
	t.function()
	taskLatency.WithLabelValues(t.name).Observe(t.clock.Since(start).Seconds())
}

// Stop cancels the schedule. It does not wait for a run in progress; use Wait.
func (t *Task) Stop() {
	t.stopOnce.Do(func() {
		close(t.stop)
	})
}

// Wait blocks until the task goroutine has exited or the timeout passes, and reports
// whether it timed out. A task that was never started counts as exited.
func (t *Task) Wait(timeout time.Duration) bool {
	if !t.started.Load() {
		return false
	}
	select {
	case <-t.done:
		return false
	case <-time.After(timeout):
		return true
	}
}

// Manager owns a set of tasks and stops them together.
type Manager struct {
	mu    sync.Mutex
	tasks []*Task
}

func NewManager() *Manager {
	return &Manager{}
}

func (m *Manager) Register(t *Task) {
	m.mu.Lock()
	m.tasks = append(m.tasks, t)
	m.mu.Unlock()
	t.Start()
	log.WithField("task", t.name).WithField("interval", t.interval).Debug("started background task")
}

// StopAll stops every task and waits for them; it returns true if any task was still
// running when the timeout expired.
func (m *Manager) StopAll(timeout time.Duration) bool {
	m.mu.Lock()
	tasks := append([]*Task(nil), m.tasks...)
	m.mu.Unlock()

	for _, t := range tasks {
		t.Stop()
	}
	timedOut := false
	deadline := time.Now().Add(timeout)
	for _, t := range tasks {
		if t.Wait(time.Until(deadline)) {
			log.WithField("task", t.name).Warn("background task did not stop in time")
			timedOut = true
		}
	}
	return timedOut
}
