package source

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobwatch/internal/jobs"
)

func TestParseSqueueOutput(t *testing.T) {
	input := "101|alpha|RUNNING|10:05|1:00:00|4|1|/home/u/alpha\n102|beta sim|PENDING|0:00|2-00:00:00|8|2|(null)\n"
	parsed := parseSqueueOutput(input)

	if len(parsed) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(parsed))
	}
	if parsed[0].ID != "101" || parsed[0].SubmitDirectory != "/home/u/alpha" {
		t.Fatalf("unexpected first job: %+v", parsed[0])
	}
	if parsed[0].Elapsed != "0:10:05" || parsed[0].CPUs != 4 || parsed[0].Nodes != 1 {
		t.Fatalf("unexpected first job: %+v", parsed[0])
	}
	if parsed[1].Name != "beta sim" || parsed[1].State != jobs.Pending || parsed[1].SubmitDirectory != "" {
		t.Fatalf("unexpected second job: %+v", parsed[1])
	}
	if parsed[1].Requested != "2-00:00:00" {
		t.Fatalf("unexpected requested time: %q", parsed[1].Requested)
	}
}

func TestParseSqueueOutputSkipsMalformed(t *testing.T) {
	input := "bad line\n103|gamma|RUNNING|00:10|UNLIMITED\n"
	parsed := parseSqueueOutput(input)
	if len(parsed) != 1 {
		t.Fatalf("expected 1 parsed row, got %d", len(parsed))
	}
	if parsed[0].ID != "103" {
		t.Fatalf("expected id 103, got %s", parsed[0].ID)
	}
	if parsed[0].Requested != "" {
		t.Fatalf("expected unlimited to be empty, got %q", parsed[0].Requested)
	}
}

func TestNormaliseSlurmDuration(t *testing.T) {
	tests := map[string]string{
		"":           "",
		"UNLIMITED":  "",
		"INVALID":    "",
		"0:00":       "0:0:00",
		"5:03":       "0:5:03",
		"1:02:03":    "1:02:03",
		"1-02:03:04": "1-02:03:04",
		"1-02:03":    "1-02:03:00",
		"3-04":       "3-04:00:00",
		"garbage":    "",
	}
	for input, expected := range tests {
		assert.Equal(t, expected, normaliseSlurmDuration(input), "input %q", input)
	}
}

func TestSlurmListJobsUsesMe(t *testing.T) {
	var gotArgs []string
	s := &Slurm{run: func(_ context.Context, name string, args ...string) ([]byte, error) {
		assert.Equal(t, "squeue", name)
		gotArgs = args
		return []byte("1|a|RUNNING|0:01|1:00:00|1|1|/tmp\n"), nil
	}}

	listed, err := s.ListJobs(context.Background())
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Contains(t, gotArgs, "--me")
	assert.Contains(t, gotArgs, squeueFormat)
}

func TestSlurmListJobsForUser(t *testing.T) {
	var gotArgs []string
	s := &Slurm{user: "alice", run: func(_ context.Context, _ string, args ...string) ([]byte, error) {
		gotArgs = args
		return nil, nil
	}}

	_, err := s.ListJobs(context.Background())
	require.NoError(t, err)
	assert.Subset(t, gotArgs, []string{"-u", "alice"})
	assert.NotContains(t, gotArgs, "--me")
}

func TestSlurmCancelJobReportsSchedulerMessage(t *testing.T) {
	exitErr := &exec.ExitError{}
	s := &Slurm{run: func(_ context.Context, name string, args ...string) ([]byte, error) {
		assert.Equal(t, "scancel", name)
		assert.Equal(t, []string{"42"}, args)
		return []byte("scancel: error: Kill job error on job id 42: Invalid job id specified\n"), exitErr
	}}

	err := s.CancelJob(context.Background(), "42")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "got %v", err)
	assert.Contains(t, apiErr.Message, "Invalid job id specified")
}

func TestSlurmMissingBinaryIsTemporary(t *testing.T) {
	s := &Slurm{run: func(context.Context, string, ...string) ([]byte, error) {
		return nil, exec.ErrNotFound
	}}

	_, err := s.ListJobs(context.Background())
	var netErr *NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.True(t, netErr.Temporary())
}
