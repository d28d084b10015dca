package jobs

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"jobwatch/internal/task"
)

const stopTimeout = 5 * time.Second

type MonitorConfig struct {
	TickInterval time.Duration
	// PollInterval of zero fetches the job list once.
	PollInterval time.Duration
	Poller       PollerConfig
}

// Monitor owns the scheduled work behind a job view: the poll loop and the local
// ticker. Both are started together and cancelled together.
type Monitor struct {
	store  *Store
	poller *Poller
	clock  clock.WithTicker
	config MonitorConfig

	tasks  *task.Manager
	cancel context.CancelFunc
}

func NewMonitor(store *Store, lister Lister, clk clock.WithTicker, config MonitorConfig) *Monitor {
	return &Monitor{
		store:  store,
		poller: NewPoller(lister, store, config.Poller),
		clock:  clk,
		config: config,
	}
}

func (m *Monitor) Store() *Store {
	return m.store
}

// Start schedules polling and ticking. They run on separate goroutines so a slow
// fetch never delays a tick.
func (m *Monitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.tasks = task.NewManager()
	m.tasks.Register(task.New("poll", m.clock, m.config.PollInterval, true, func() {
		_ = m.poller.Poll(ctx)
	}))
	m.tasks.Register(NewTicker(m.store, m.clock, m.config.TickInterval))
}

// Refresh fetches immediately, outside the poll schedule.
func (m *Monitor) Refresh(ctx context.Context) error {
	return m.poller.Poll(ctx)
}

// Stop cancels any fetch in flight and both schedules.
func (m *Monitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	if m.tasks.StopAll(stopTimeout) {
		log.Warn("job monitor did not stop cleanly")
	}
}
