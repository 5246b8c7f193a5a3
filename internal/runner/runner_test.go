package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sparkqdev/sparkq/internal/clock"
	"github.com/sparkqdev/sparkq/internal/config"
	"github.com/sparkqdev/sparkq/internal/controlserver"
	"github.com/sparkqdev/sparkq/internal/core"
	"github.com/sparkqdev/sparkq/internal/idgen"
	"github.com/sparkqdev/sparkq/internal/lockfile"
	"github.com/sparkqdev/sparkq/internal/store"
	"github.com/sparkqdev/sparkq/internal/toolresolver"
	"github.com/sparkqdev/sparkq/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServerWithQueue(t *testing.T) (*httptest.Server, *core.Core, string) {
	t.Helper()
	fake := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s, err := store.NewBoltStore(t.TempDir(), fake, idgen.New())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	cfg := config.Default()
	cfg.Tools["run_tests"] = config.ToolConfig{TaskClass: "FAST_SCRIPT"}
	resolver := toolresolver.New(cfg)
	c := core.New(s, fake, resolver, idgen.New())

	session, err := c.CreateSession("default")
	require.NoError(t, err)
	queue, err := c.CreateQueue(session.ID, "back-end", "run the test suite before merging")
	require.NoError(t, err)

	srv := httptest.NewServer(controlserver.New(c).Handler())
	t.Cleanup(srv.Close)
	return srv, c, queue.ID
}

func TestRunnerOnceModeClaimsSingleTaskAndEmitsDescriptor(t *testing.T) {
	srv, c, queueID := newTestServerWithQueue(t)
	task, err := c.Enqueue(queueID, "run_tests", []byte(`{"x":1}`), 0)
	require.NoError(t, err)

	var stdout, stderr bytes.Buffer
	r := New(Config{
		QueueID:   queueID,
		ServerURL: srv.URL,
		Mode:      ModeOnce,
		LockDir:   t.TempDir(),
		Stdout:    &stdout,
		Stderr:    &stderr,
	})

	require.NoError(t, r.Run(context.Background()))

	var descriptor core.ClaimDescriptor
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &descriptor))
	assert.Equal(t, task.ID, descriptor.ID)
	assert.Equal(t, types.TaskStatusRunning, descriptor.Status)
	assert.Contains(t, stderr.String(), "run the test suite")
}

func TestRunnerDrainModeClaimsUntilEmpty(t *testing.T) {
	srv, c, queueID := newTestServerWithQueue(t)
	for i := 0; i < 3; i++ {
		_, err := c.Enqueue(queueID, "run_tests", nil, 0)
		require.NoError(t, err)
	}

	var stdout, stderr bytes.Buffer
	r := New(Config{
		QueueID:   queueID,
		ServerURL: srv.URL,
		Mode:      ModeDrain,
		LockDir:   t.TempDir(),
		Stdout:    &stdout,
		Stderr:    &stderr,
	})

	require.NoError(t, r.Run(context.Background()))

	lines := bytes.Count(stdout.Bytes(), []byte("\n"))
	assert.Equal(t, 3, lines)
}

func TestRunnerRejectsSecondInstanceOnSameQueue(t *testing.T) {
	srv, _, queueID := newTestServerWithQueue(t)
	lockDir := t.TempDir()

	blocker := New(Config{QueueID: queueID, ServerURL: srv.URL, Mode: ModeOnce, LockDir: lockDir})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Acquire the lock directly to simulate a concurrently running
	// runner process on the same queue, then try to start a second one.
	held, err := lockfile.Acquire(LockPath(lockDir, queueID))
	require.NoError(t, err)
	defer held.Release()

	err = blocker.Run(ctx)
	require.Error(t, err)
}
