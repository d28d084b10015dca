package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"jobwatch/internal/jobs"
)

const maxBodyBytes = 4 << 20

// JobSnapshot is one job as the HTTP job API reports it.
type JobSnapshot struct {
	JobID           string `json:"job_id"`
	Name            string `json:"name"`
	SubmitDirectory string `json:"submit_directory,omitempty"`
	State           string `json:"state"`
	CPUs            int    `json:"cpus"`
	Nodes           int    `json:"nodes"`
	Elapsed         string `json:"elapsed"`
	Requested       string `json:"requested"`
}

func (s JobSnapshot) Job() jobs.Job {
	return jobs.Job{
		ID:              s.JobID,
		Name:            s.Name,
		SubmitDirectory: s.SubmitDirectory,
		State:           jobs.ParseState(s.State),
		CPUs:            max(0, s.CPUs),
		Nodes:           max(0, s.Nodes),
		Elapsed:         s.Elapsed,
		Requested:       s.Requested,
	}
}

type listResponse struct {
	Jobs  []JobSnapshot `json:"jobs"`
	Error string        `json:"error,omitempty"`
}

type cancelResponse struct {
	Error string `json:"error,omitempty"`
}

// HTTPClient talks to the job API: GET {base}/jobs and POST {base}/jobs/{id}/cancel.
type HTTPClient struct {
	baseURL *url.URL
	user    string
	client  *http.Client
}

func NewHTTPClient(baseURL string, user string, client *http.Client) (*HTTPClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid job API url %q", baseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("invalid job API url %q: scheme must be http or https", baseURL)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPClient{baseURL: u, user: user, client: client}, nil
}

func (c *HTTPClient) endpoint(path string) string {
	u := *c.baseURL
	u.Path = u.Path + path
	if c.user != "" {
		q := u.Query()
		q.Set("user", c.user)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func (c *HTTPClient) ListJobs(ctx context.Context) ([]jobs.Job, error) {
	const op = "list jobs"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/jobs"), nil)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	req.Header.Set("Accept", "application/json")

	var body listResponse
	if err := c.do(req, op, &body); err != nil {
		return nil, err
	}

	result := make([]jobs.Job, 0, len(body.Jobs))
	for _, s := range body.Jobs {
		if s.JobID == "" {
			log.WithField("name", s.Name).Warn("skipping job without id")
			continue
		}
		result = append(result, s.Job())
	}
	return result, nil
}

func (c *HTTPClient) CancelJob(ctx context.Context, jobID string) error {
	const op = "cancel job"
	payload, err := json.Marshal(map[string]string{"job_id": jobID})
	if err != nil {
		return errors.Wrap(err, op)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/jobs/"+url.PathEscape(jobID)+"/cancel"), bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, op)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	var body cancelResponse
	return c.do(req, fmt.Sprintf("%s %s", op, jobID), &body)
}

// do sends req and decodes a JSON body into out. The body's "error" field, if any,
// becomes an APIError even on a 200.
func (c *HTTPClient) do(req *http.Request, op string, out interface{ errorMessage() string }) error {
	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return errors.Wrap(ctxErr, op)
		}
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}

	var decodeErr error
	if len(bytes.TrimSpace(raw)) > 0 {
		decodeErr = json.Unmarshal(raw, out)
	}
	if decodeErr == nil {
		if msg := out.errorMessage(); msg != "" {
			return &APIError{Op: op, StatusCode: resp.StatusCode, Message: msg}
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Op: op, StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	if decodeErr != nil {
		return &APIError{Op: op, StatusCode: resp.StatusCode, Message: fmt.Sprintf("malformed response: %v", decodeErr)}
	}
	return nil
}

func (r *listResponse) errorMessage() string   { return r.Error }
func (r *cancelResponse) errorMessage() string { return r.Error }
