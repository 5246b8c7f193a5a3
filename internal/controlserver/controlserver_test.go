package controlserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sparkqdev/sparkq/internal/clock"
	"github.com/sparkqdev/sparkq/internal/config"
	"github.com/sparkqdev/sparkq/internal/core"
	"github.com/sparkqdev/sparkq/internal/idgen"
	"github.com/sparkqdev/sparkq/internal/store"
	"github.com/sparkqdev/sparkq/internal/toolresolver"
	"github.com/sparkqdev/sparkq/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	fake := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s, err := store.NewBoltStore(t.TempDir(), fake, idgen.New())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	cfg := config.Default()
	cfg.Tools["run_tests"] = config.ToolConfig{TaskClass: "FAST_SCRIPT"}
	resolver := toolresolver.New(cfg)
	c := core.New(s, fake, resolver, idgen.New())

	srv := httptest.NewServer(New(c).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body interface{}) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestHealthAndVersion(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var health healthResponse
	decode(t, resp, &health)
	assert.Equal(t, "ok", health.Status)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/version", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var version versionResponse
	decode(t, resp, &version)
	assert.Equal(t, Version, version.Version)
}

func TestSessionQueueTaskLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/sessions", createSessionRequest{Name: "default"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var session types.Session
	decode(t, resp, &session)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/queues", createQueueRequest{SessionID: session.ID, Name: "back-end", Instructions: "fix bugs"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var queue types.Queue
	decode(t, resp, &queue)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/tasks", enqueueRequest{QueueID: queue.ID, ToolName: "run_tests"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var task types.Task
	decode(t, resp, &task)
	assert.Equal(t, types.TaskStatusQueued, task.Status)
	assert.Equal(t, 30, task.Timeout)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/tasks/"+task.ID+"/claim", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var descriptor core.ClaimDescriptor
	decode(t, resp, &descriptor)
	assert.Equal(t, "back-end", descriptor.Queue.Name)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/tasks/"+task.ID+"/complete", completeRequest{ResultSummary: "done"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestClaimConflictIsSurfacedAs409(t *testing.T) {
	srv := newTestServer(t)
	sessResp := doJSON(t, http.MethodPost, srv.URL+"/api/sessions", createSessionRequest{Name: "default"})
	var session types.Session
	decode(t, sessResp, &session)
	qResp := doJSON(t, http.MethodPost, srv.URL+"/api/queues", createQueueRequest{SessionID: session.ID, Name: "q"})
	var queue types.Queue
	decode(t, qResp, &queue)
	tResp := doJSON(t, http.MethodPost, srv.URL+"/api/tasks", enqueueRequest{QueueID: queue.ID, ToolName: "run_tests"})
	var task types.Task
	decode(t, tResp, &task)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/tasks/"+task.ID+"/claim", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/tasks/"+task.ID+"/claim", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var errBody errorBody
	decode(t, resp, &errBody)
	assert.Equal(t, "conflict", errBody.Kind)
}

func TestUnknownToolIsSurfacedAs400(t *testing.T) {
	srv := newTestServer(t)
	sessResp := doJSON(t, http.MethodPost, srv.URL+"/api/sessions", createSessionRequest{Name: "default"})
	var session types.Session
	decode(t, sessResp, &session)
	qResp := doJSON(t, http.MethodPost, srv.URL+"/api/queues", createQueueRequest{SessionID: session.ID, Name: "q"})
	var queue types.Queue
	decode(t, qResp, &queue)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/tasks", enqueueRequest{QueueID: queue.ID, ToolName: "nonexistent"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetUnknownTaskIsSurfacedAs404(t *testing.T) {
	srv := newTestServer(t)
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/tasks/nonexistent", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
