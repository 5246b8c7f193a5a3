// Package runner implements the per-queue runner process of spec.md
// §4.8: a single-instance poller that claims tasks from the
// ControlServer and hands them off on standard output without ever
// executing them itself.
package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sparkqdev/sparkq/internal/core"
	"github.com/sparkqdev/sparkq/internal/types"
)

// APIClient is a thin HTTP JSON client over the ControlServer, one
// method per RPC with a bounded per-call timeout — the same shape the
// teacher's pkg/client.Client uses per gRPC call, generalized from
// mTLS+protobuf to plain HTTP+JSON since the Runner talks to a local,
// unauthenticated surface (spec.md §4.7).
type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIClient builds an APIClient against the server's base URL,
// e.g. "http://127.0.0.1:8777".
func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{baseURL: baseURL, httpClient: &http.Client{Timeout: 10 * time.Second}}
}

func (c *APIClient) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sparkq server unreachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var errBody struct {
			Error string `json:"error"`
			Kind  string `json:"kind"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return &apiError{status: resp.StatusCode, kind: errBody.Kind, message: errBody.Error}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// apiError carries the classified error kind back from the server so
// the Runner can distinguish a claim conflict (skip and re-poll) from
// a fatal failure.
type apiError struct {
	status  int
	kind    string
	message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("sparkq server: %s (status %d)", e.message, e.status)
}

// IsConflict reports whether err is the classified Conflict kind
// (spec.md §7): two claimers raced and this one lost.
func IsConflict(err error) bool {
	ae, ok := err.(*apiError)
	return ok && ae.kind == "conflict"
}

// GetQueue fetches a queue's current record, used for the startup
// instructions banner.
func (c *APIClient) GetQueue(ctx context.Context, queueID string) (*types.Queue, error) {
	var queue types.Queue
	if err := c.do(ctx, http.MethodGet, "/api/queues/"+url.PathEscape(queueID), nil, &queue); err != nil {
		return nil, err
	}
	return &queue, nil
}

// GetQueueByName resolves a queue's human-assigned name to its current
// record, letting the Runner take a queue name on its command line
// (spec.md §4.8) while every other call still addresses the queue by
// its opaque id.
func (c *APIClient) GetQueueByName(ctx context.Context, name string) (*types.Queue, error) {
	var queue types.Queue
	if err := c.do(ctx, http.MethodGet, "/api/queues/by-name/"+url.PathEscape(name), nil, &queue); err != nil {
		return nil, err
	}
	return &queue, nil
}

// PeekOldestQueued lists the single oldest queued task for a queue,
// implementing the Runner's peek step over HTTP (spec.md §4.1's
// PeekOldestQueued, as exposed through GET /api/tasks).
func (c *APIClient) PeekOldestQueued(ctx context.Context, queueID string) (*types.Task, error) {
	q := url.Values{}
	q.Set("queue_id", queueID)
	q.Set("status", string(types.TaskStatusQueued))
	q.Set("limit", "1")

	var resp struct {
		Tasks []*types.Task `json:"tasks"`
		Total int           `json:"total"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/tasks?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Tasks) == 0 {
		return nil, nil
	}
	return resp.Tasks[0], nil
}

// Claim attempts the one state-advancing operation in the system;
// IsConflict(err) distinguishes a lost race from a fatal error.
func (c *APIClient) Claim(ctx context.Context, taskID string) (*core.ClaimDescriptor, error) {
	var descriptor core.ClaimDescriptor
	if err := c.do(ctx, http.MethodPost, "/api/tasks/"+url.PathEscape(taskID)+"/claim", nil, &descriptor); err != nil {
		return nil, err
	}
	return &descriptor, nil
}
