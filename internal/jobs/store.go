package jobs

import (
	"fmt"
	"sync"

	"jobwatch/internal/metrics"
)

// Store is the single owner of the job collection. Snapshots, local ticks and
// removals are serialised by its lock; readers get copies.
type Store struct {
	mu      sync.RWMutex
	records map[string]*Job
	order   []string
	loading bool
	err     string
}

func NewStore() *Store {
	return &Store{
		records: make(map[string]*Job),
		order:   []string{},
		loading: true,
	}
}

// Replace swaps the whole collection for snapshot, keeping the snapshot's order.
// Local tick drift is discarded: the snapshot wins even when it reports less
// elapsed time than was shown.
func (s *Store) Replace(snapshot []Job) {
	records := make(map[string]*Job, len(snapshot))
	order := make([]string, 0, len(snapshot))
	for _, incoming := range snapshot {
		job := incoming
		if _, exists := records[job.ID]; !exists {
			order = append(order, job.ID)
		}
		records[job.ID] = &job
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = records
	s.order = order
	s.loading = false
	s.err = ""
	s.recordMetrics()
}

// Tick advances every running job by one second.
func (s *Store) Tick() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	advanced := 0
	for _, id := range s.order {
		if Advance(s.records[id]) {
			advanced++
		}
	}
	return advanced
}

// Remove deletes a job. Removing an unknown id is a no-op.
func (s *Store) Remove(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[jobID]; !ok {
		return
	}
	delete(s.records, jobID)
	for i, id := range s.order {
		if id == jobID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.recordMetrics()
}

// All returns a copy of the collection in snapshot order.
func (s *Store) All() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	jobs := make([]Job, 0, len(s.order))
	for _, id := range s.order {
		jobs = append(jobs, *s.records[id])
	}
	return jobs
}

func (s *Store) Get(jobID string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.records[jobID]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// FetchFailed records a failed snapshot fetch. The current collection is kept so a
// transient outage does not empty the table.
func (s *Store) FetchFailed(err error) {
	s.SetError(fmt.Sprintf("failed to fetch jobs: %v", err))
}

func (s *Store) SetError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = msg
}

// Err is the last fetch or cancel error message, or "" if none.
func (s *Store) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Loading is true until the first snapshot has been applied.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// must hold s.mu
func (s *Store) recordMetrics() {
	metrics.TrackedJobs.Reset()
	for _, id := range s.order {
		metrics.TrackedJobs.WithLabelValues(string(s.records[id].State)).Inc()
	}
}
