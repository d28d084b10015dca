package source

import "fmt"

// NetworkError is a transport level failure talking to the job source. These are
// worth retrying.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

func (e *NetworkError) Temporary() bool {
	return true
}

// APIError is an error reported by the job source itself, e.g. {"error": "..."}.
type APIError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// Temporary reports server side failures as retryable.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= 500
}
