package source

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobwatch/internal/jobs"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewHTTPClient(server.URL+"/api/", "alice", server.Client())
	require.NoError(t, err)
	return client
}

func TestListJobs(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/jobs", r.URL.Path)
		assert.Equal(t, "alice", r.URL.Query().Get("user"))
		_, _ = w.Write([]byte(`{"jobs":[
			{"job_id":"7","name":"train","submit_directory":"/scratch/train","state":"RUNNING","cpus":4,"nodes":1,"elapsed":"0:00:10","requested":"1:00:00"},
			{"job_id":"8","name":"eval","state":"Pending","cpus":1,"nodes":1,"elapsed":"","requested":"2:00:00"},
			{"name":"no id"}
		]}`))
	})

	listed, err := client.ListJobs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []jobs.Job{
		{ID: "7", Name: "train", SubmitDirectory: "/scratch/train", State: jobs.Running, CPUs: 4, Nodes: 1, Elapsed: "0:00:10", Requested: "1:00:00"},
		{ID: "8", Name: "eval", State: jobs.Pending, CPUs: 1, Nodes: 1, Requested: "2:00:00"},
	}, listed)
	assert.Equal(t, "8", listed[1].DisplayDirectory())
}

func TestListJobsErrorBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"squeue timed out"}`))
	})

	_, err := client.ListJobs(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "squeue timed out", apiErr.Message)
	assert.False(t, apiErr.Temporary())
}

func TestListJobsServerErrorIsTemporary(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.ListJobs(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.True(t, apiErr.Temporary())
}

func TestListJobsMalformedBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>login</html>`))
	})

	_, err := client.ListJobs(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Contains(t, apiErr.Message, "malformed response")
}

func TestListJobsNetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	client, err := NewHTTPClient(server.URL, "", server.Client())
	require.NoError(t, err)
	server.Close()

	_, err = client.ListJobs(context.Background())
	var netErr *NetworkError
	require.True(t, errors.As(err, &netErr), "got %v", err)
	assert.True(t, netErr.Temporary())
}

func TestCancelJob(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/jobs/42/cancel", r.URL.Path)
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "42", body["job_id"])
		_, _ = w.Write([]byte(`{}`))
	})

	assert.NoError(t, client.CancelJob(context.Background(), "42"))
}

func TestCancelJobError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"not your job"}`))
	})

	err := client.CancelJob(context.Background(), "42")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "not your job", apiErr.Message)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
}

func TestNewHTTPClientRejectsBadURL(t *testing.T) {
	_, err := NewHTTPClient("ftp://example.com", "", nil)
	assert.Error(t, err)
	_, err = NewHTTPClient("://bad", "", nil)
	assert.Error(t, err)
}
