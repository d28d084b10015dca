package jobs

import "strings"

type State string

const (
	Running    State = "RUNNING"
	Pending    State = "PENDING"
	Completing State = "COMPLETING"
	Completed  State = "COMPLETED"
	Failed     State = "FAILED"
	Cancelled  State = "CANCELLED"
	Timeout    State = "TIMEOUT"
)

// ParseState normalises a scheduler state string. Unknown states are kept as given
// (upper cased) rather than rejected.
func ParseState(s string) State {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch s {
	case "R":
		return Running
	case "PD":
		return Pending
	case "CANCELED":
		return Cancelled
	}
	if i := strings.IndexByte(s, ' '); i > 0 {
		// squeue reports e.g. "CANCELLED by 1234"
		s = s[:i]
	}
	return State(s)
}

// IsActive reports whether a job in this state can still be cancelled.
func (s State) IsActive() bool {
	return s == Running || s == Pending
}

type Job struct {
	ID              string
	Name            string
	SubmitDirectory string
	State           State
	CPUs            int
	Nodes           int
	// Elapsed and Requested hold scheduler duration strings ([D-]HH:MM:SS).
	Elapsed   string
	Requested string
}

// DisplayDirectory is the submit directory, or the job id when the source did not
// report one.
func (j Job) DisplayDirectory() string {
	if j.SubmitDirectory == "" {
		return j.ID
	}
	return j.SubmitDirectory
}
