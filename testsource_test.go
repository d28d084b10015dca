package main

import (
	"context"
	"sync"

	"jobwatch/internal/jobs"
)

// fakeSource serves a fixed job list and records cancel calls.
type fakeSource struct {
	mu        sync.Mutex
	jobs      []jobs.Job
	listErr   error
	cancelErr map[string]error
	cancelled []string
}

func (f *fakeSource) ListJobs(context.Context) ([]jobs.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]jobs.Job(nil), f.jobs...), f.listErr
}

func (f *fakeSource) CancelJob(_ context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.cancelErr[jobID]; err != nil {
		return err
	}
	f.cancelled = append(f.cancelled, jobID)
	return nil
}

func (f *fakeSource) Cancelled() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cancelled...)
}
