package source

import (
	"context"
	"os/exec"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"jobwatch/internal/duration"
	"jobwatch/internal/jobs"
)

// squeue format: id|name|state|time used|time limit|cpus|nodes|work dir
const squeueFormat = "%i|%j|%T|%M|%l|%C|%D|%Z"

type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Slurm reads the current user's jobs with squeue and cancels them with scancel.
type Slurm struct {
	user string
	run  commandRunner
}

// NewSlurm returns a source for user's jobs; an empty user means the caller's own.
func NewSlurm(user string) *Slurm {
	return &Slurm{user: user, run: runCommand}
}

func (s *Slurm) ListJobs(ctx context.Context) ([]jobs.Job, error) {
	args := []string{"--noheader", "-o", squeueFormat}
	if s.user != "" {
		args = append(args, "-u", s.user)
	} else {
		args = append(args, "--me")
	}
	output, err := s.run(ctx, "squeue", args...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), "squeue")
		}
		return nil, commandError("squeue", output, err)
	}
	return parseSqueueOutput(string(output)), nil
}

func (s *Slurm) CancelJob(ctx context.Context, jobID string) error {
	output, err := s.run(ctx, "scancel", jobID)
	if err != nil {
		if ctx.Err() != nil {
			return errors.Wrapf(ctx.Err(), "scancel %s", jobID)
		}
		return commandError("scancel "+jobID, output, err)
	}
	return nil
}

// commandError prefers the command's own message over the exit status. A missing
// binary is a NetworkError-like condition for retry purposes, anything else the
// scheduler told us is an APIError.
func commandError(op string, output []byte, err error) error {
	msg := strings.TrimSpace(string(output))
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return &NetworkError{Op: op, Err: err}
	}
	if msg == "" {
		msg = err.Error()
	}
	return &APIError{Op: op, Message: msg}
}

func parseSqueueOutput(output string) []jobs.Job {
	var result []jobs.Job
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		parts := strings.Split(line, "|")
		if len(parts) < 5 {
			log.WithField("line", line).Debug("skipping malformed squeue line")
			continue
		}
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		job := jobs.Job{
			ID:        parts[0],
			Name:      parts[1],
			State:     jobs.ParseState(parts[2]),
			Elapsed:   normaliseSlurmDuration(parts[3]),
			Requested: normaliseSlurmDuration(parts[4]),
		}
		if len(parts) > 5 {
			job.CPUs = parseCount(parts[5])
		}
		if len(parts) > 6 {
			job.Nodes = parseCount(parts[6])
		}
		if len(parts) > 7 && parts[7] != "(null)" {
			job.SubmitDirectory = parts[7]
		}
		result = append(result, job)
	}
	return result
}

// normaliseSlurmDuration turns squeue's short forms into [D-]H:MM:SS. squeue drops
// the hour field under an hour ("5:03") and prints words for unset limits.
func normaliseSlurmDuration(s string) string {
	switch s {
	case "", "UNLIMITED", "NOT_SET", "INVALID", "Partition_Limit":
		return ""
	}
	rest := s
	prefix := ""
	if i := strings.Index(s, "-"); i >= 0 {
		prefix, rest = s[:i+1], s[i+1:]
	}
	switch strings.Count(rest, ":") {
	case 0:
		// "1-02" is days-hours
		if prefix != "" {
			rest += ":00:00"
		} else {
			rest = "0:0:" + rest
		}
	case 1:
		if prefix != "" {
			rest += ":00"
		} else {
			rest = "0:" + rest
		}
	}
	normalised := prefix + rest
	if _, err := duration.Parse(normalised); err != nil {
		log.WithField("value", s).Debug("unrecognised squeue duration")
		return ""
	}
	return normalised
}

func parseCount(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
