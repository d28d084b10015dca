package jobs

import (
	"context"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"jobwatch/internal/metrics"
)

// Lister fetches a full authoritative job list.
type Lister interface {
	ListJobs(ctx context.Context) ([]Job, error)
}

type PollerConfig struct {
	// Timeout bounds each fetch attempt.
	Timeout time.Duration
	// Attempts is the number of tries per poll; failures that are not temporary
	// are not retried.
	Attempts   uint
	RetryDelay time.Duration
}

// Poller applies snapshots from a Lister to a Store.
type Poller struct {
	lister Lister
	store  *Store
	config PollerConfig
}

func NewPoller(lister Lister, store *Store, config PollerConfig) *Poller {
	if config.Attempts == 0 {
		config.Attempts = 1
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	return &Poller{lister: lister, store: store, config: config}
}

// Poll fetches once and applies the result. A failed fetch leaves the store's jobs
// untouched and sets its error. Nothing is applied once ctx is done.
func (p *Poller) Poll(ctx context.Context) error {
	var snapshot []Job
	err := retry.Do(
		func() error {
			attemptCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
			defer cancel()
			jobs, err := p.lister.ListJobs(attemptCtx)
			if err != nil {
				return err
			}
			snapshot = jobs
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(p.config.Attempts),
		retry.Delay(p.config.RetryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isTemporary),
		retry.OnRetry(func(n uint, err error) {
			log.WithError(err).WithField("attempt", n+1).Debug("job list fetch failed, retrying")
		}),
	)

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		metrics.SnapshotFetches.WithLabelValues("error").Inc()
		log.WithError(err).Warn("failed to fetch job list")
		p.store.FetchFailed(err)
		return errors.Wrap(err, "fetching job list")
	}

	metrics.SnapshotFetches.WithLabelValues("ok").Inc()
	p.store.Replace(snapshot)
	log.WithField("jobs", len(snapshot)).Debug("applied job snapshot")
	return nil
}

func isTemporary(err error) bool {
	var t interface{ Temporary() bool }
	return errors.As(err, &t) && t.Temporary()
}
