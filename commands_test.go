package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobwatch/internal/cancel"
	"jobwatch/internal/jobs"
)

func TestPrintJobs(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printJobs(&out, []jobs.Job{
		{ID: "7", Name: "train", State: jobs.Running, CPUs: 4, Nodes: 1, Elapsed: "0:45:00", Requested: "1:00:00", SubmitDirectory: "/scratch/train"},
		{ID: "8", Name: "eval", State: jobs.Pending, CPUs: 1, Nodes: 1, Requested: "2:00:00"},
	}))

	text := out.String()
	assert.Contains(t, text, "JOB ID")
	assert.Contains(t, text, "45m 0s")
	assert.Contains(t, text, "75.00% (high)")
	assert.Contains(t, text, "/scratch/train")
	assert.Contains(t, text, "0.00% (low)")
	assert.Contains(t, text, "N/A")
}

func TestCancelJobsReportsEveryFailure(t *testing.T) {
	src := &fakeSource{cancelErr: map[string]error{
		"2": errors.New("not your job"),
		"3": errors.New("invalid job id"),
	}}
	controller := cancel.NewController(src, jobs.NewStore(), cancel.Config{})

	var out bytes.Buffer
	err := cancelJobs(context.Background(), controller, []string{"1", "2", "3", "4"}, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not your job")
	assert.Contains(t, err.Error(), "invalid job id")

	assert.ElementsMatch(t, []string{"1", "4"}, src.Cancelled())
	assert.Equal(t, "cancelled 1\ncancelled 4\n", out.String())
}

func TestCancelJobsIgnoresDuplicates(t *testing.T) {
	src := &fakeSource{}
	controller := cancel.NewController(src, jobs.NewStore(), cancel.Config{})

	var out bytes.Buffer
	require.NoError(t, cancelJobs(context.Background(), controller, []string{"5", "5", "", "6"}, &out))
	assert.ElementsMatch(t, []string{"5", "6"}, src.Cancelled())
}

func TestNewSource(t *testing.T) {
	src, err := newSource(Config{Source: sourceHTTP, URL: "https://jobs.example.edu/api"})
	require.NoError(t, err)
	assert.NotNil(t, src)

	src, err = newSource(Config{Source: sourceSlurm})
	require.NoError(t, err)
	assert.NotNil(t, src)

	_, err = newSource(Config{Source: sourceHTTP, URL: "ftp://jobs"})
	assert.Error(t, err)
}

func TestSubtitle(t *testing.T) {
	assert.Equal(t, "slurm user:alice", subtitle(Config{Source: sourceSlurm, User: "alice"}))
	assert.Equal(t, "https://x/api cluster:grace", subtitle(Config{Source: sourceHTTP, URL: "https://x/api", Cluster: "grace"}))
}
