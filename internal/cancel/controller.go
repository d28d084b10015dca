// Package cancel issues job cancellations, allowing at most one request in flight
// per job id.
package cancel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"jobwatch/internal/metrics"
)

const DefaultStatusTTL = 5 * time.Minute

var (
	// ErrAlreadyInFlight is returned when a cancel for the same job has not resolved
	// yet. Callers treat it as a no-op.
	ErrAlreadyInFlight = errors.New("cancel already in flight")
	// ErrClosed is returned for requests that resolve after Close; their result
	// has not been applied.
	ErrClosed = errors.New("cancel controller closed")
)

type RequestState int

const (
	Pending RequestState = iota
	Succeeded
	Failed
)

func (s RequestState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// FailedError is a cancel the job source refused or could not be reached for. The
// job stays listed so it can be retried.
type FailedError struct {
	JobID string
	Err   error
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("failed to cancel job %s: %v", e.JobID, e.Err)
}

func (e *FailedError) Unwrap() error {
	return e.Err
}

type Canceler interface {
	CancelJob(ctx context.Context, jobID string) error
}

// Store is the part of the job list store a controller writes to.
type Store interface {
	Remove(jobID string)
	SetError(msg string)
}

type Config struct {
	// User and Cluster only annotate audit entries.
	User    string
	Cluster string
	// StatusTTL is how long a resolved request's outcome is remembered.
	StatusTTL time.Duration
}

type Controller struct {
	canceler Canceler
	store    Store
	audit    *log.Entry

	mu       sync.Mutex
	inFlight map[string]struct{}
	closed   bool
	outcomes *gocache.Cache
}

func NewController(canceler Canceler, store Store, config Config) *Controller {
	ttl := config.StatusTTL
	if ttl <= 0 {
		ttl = DefaultStatusTTL
	}
	return &Controller{
		canceler: canceler,
		store:    store,
		audit: log.WithFields(log.Fields{
			"logger":  "audit",
			"user":    config.User,
			"cluster": config.Cluster,
		}),
		inFlight: make(map[string]struct{}),
		outcomes: gocache.New(ttl, 2*ttl),
	}
}

// Cancel asks the job source to cancel jobID. On success the job is removed from
// the store; on failure the store's error is set and the job is left in place.
// Requests for different jobs run concurrently; a second request for the same job
// fails fast with ErrAlreadyInFlight while the first is outstanding.
func (c *Controller) Cancel(ctx context.Context, jobID string) error {
	if err := c.begin(jobID); err != nil {
		if errors.Is(err, ErrAlreadyInFlight) {
			metrics.CancelRequests.WithLabelValues("rejected").Inc()
		}
		return err
	}
	// Released whatever happens below, including a panic in the store.
	defer c.finish(jobID)

	requestID := uuid.New().String()
	entry := c.audit.WithFields(log.Fields{"request_id": requestID, "job_id": jobID, "request_type": "cancel"})
	entry.WithField("status", Pending.String()).Info("cancel requested")

	err := c.canceler.CancelJob(ctx, jobID)

	if c.isClosed() {
		metrics.CancelRequests.WithLabelValues("discarded").Inc()
		entry.WithError(err).WithField("status", "discarded").Info("cancel resolved after teardown")
		return ErrClosed
	}

	if err != nil {
		failed := &FailedError{JobID: jobID, Err: err}
		c.outcomes.SetDefault(jobID, Failed)
		c.store.SetError(failed.Error())
		metrics.CancelRequests.WithLabelValues("failed").Inc()
		entry.WithError(err).WithField("status", Failed.String()).Warn("cancel failed")
		return failed
	}

	c.store.Remove(jobID)
	c.outcomes.SetDefault(jobID, Succeeded)
	metrics.CancelRequests.WithLabelValues("succeeded").Inc()
	entry.WithField("status", Succeeded.String()).Info("cancel succeeded")
	return nil
}

func (c *Controller) begin(jobID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if _, ok := c.inFlight[jobID]; ok {
		return errors.Wrapf(ErrAlreadyInFlight, "job %s", jobID)
	}
	c.inFlight[jobID] = struct{}{}
	c.outcomes.Set(jobID, Pending, gocache.NoExpiration)
	return nil
}

func (c *Controller) finish(jobID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inFlight, jobID)
	if state, ok := c.outcomes.Get(jobID); ok && state.(RequestState) == Pending {
		// resolved without an outcome: discarded or panicked
		c.outcomes.Delete(jobID)
	}
}

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Controller) IsInFlight(jobID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inFlight[jobID]
	return ok
}

// Status is the state of the latest request for jobID, if one is remembered.
func (c *Controller) Status(jobID string) (RequestState, bool) {
	state, ok := c.outcomes.Get(jobID)
	if !ok {
		return 0, false
	}
	return state.(RequestState), true
}

// Close stops the controller applying results. Requests already sent may still
// complete but leave the store alone.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}
