package core

import (
	"testing"
	"time"

	"github.com/sparkqdev/sparkq/internal/clock"
	"github.com/sparkqdev/sparkq/internal/config"
	"github.com/sparkqdev/sparkq/internal/corerr"
	"github.com/sparkqdev/sparkq/internal/idgen"
	"github.com/sparkqdev/sparkq/internal/store"
	"github.com/sparkqdev/sparkq/internal/toolresolver"
	"github.com/sparkqdev/sparkq/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCore(t *testing.T) (*Core, *clock.Fake) {
	t.Helper()
	fake := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s, err := store.NewBoltStore(t.TempDir(), fake, idgen.New())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	cfg := config.Default()
	cfg.Tools["run_tests"] = config.ToolConfig{TaskClass: "FAST_SCRIPT"}
	resolver := toolresolver.New(cfg)

	return New(s, fake, resolver, idgen.New()), fake
}

func mustSessionAndQueue(t *testing.T, c *Core) (*types.Session, *types.Queue) {
	t.Helper()
	session, err := c.CreateSession("default")
	require.NoError(t, err)
	queue, err := c.CreateQueue(session.ID, "back-end", "fix the bug")
	require.NoError(t, err)
	return session, queue
}

func TestEnqueueResolvesTimeoutFromToolRegistry(t *testing.T) {
	c, _ := newTestCore(t)
	_, queue := mustSessionAndQueue(t, c)

	task, err := c.Enqueue(queue.ID, "run_tests", []byte(`{}`), 0)
	require.NoError(t, err)
	assert.Equal(t, 30, task.Timeout)
	assert.EqualValues(t, "FAST_SCRIPT", task.TaskClass)
	assert.Equal(t, types.TaskStatusQueued, task.Status)
}

func TestClaimBuildsDescriptorWithQueueInstructions(t *testing.T) {
	c, _ := newTestCore(t)
	_, queue := mustSessionAndQueue(t, c)
	task, err := c.Enqueue(queue.ID, "run_tests", []byte(`{"x":1}`), 0)
	require.NoError(t, err)

	descriptor, err := c.Claim(task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, descriptor.ID)
	assert.Equal(t, queue.Instructions, descriptor.Queue.Instructions)
	assert.Equal(t, types.TaskStatusRunning, descriptor.Status)
	assert.NotEmpty(t, descriptor.StartedAt)
}

func TestFullLifecycleCompleteThenRequeue(t *testing.T) {
	c, _ := newTestCore(t)
	_, queue := mustSessionAndQueue(t, c)
	task, err := c.Enqueue(queue.ID, "run_tests", nil, 0)
	require.NoError(t, err)

	_, err = c.Claim(task.ID)
	require.NoError(t, err)

	done, err := c.Complete(task.ID, "all green", nil)
	require.NoError(t, err)
	assert.Equal(t, types.TaskStatusSucceeded, done.Status)

	clone, err := c.Requeue(task.ID)
	require.NoError(t, err)
	assert.Equal(t, types.TaskStatusQueued, clone.Status)
	assert.NotEqual(t, task.ID, clone.ID)

	original, err := c.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, types.TaskStatusSucceeded, original.Status, "requeue must not touch the source task")
}

func TestArchivedQueueRejectsEnqueue(t *testing.T) {
	c, _ := newTestCore(t)
	_, queue := mustSessionAndQueue(t, c)
	_, err := c.ArchiveQueue(queue.ID)
	require.NoError(t, err)

	_, err = c.Enqueue(queue.ID, "run_tests", nil, 0)
	require.Error(t, err)
	assert.True(t, corerr.Is(err, corerr.KindPrecondition))

	_, err = c.UnarchiveQueue(queue.ID)
	require.NoError(t, err)
	_, err = c.Enqueue(queue.ID, "run_tests", nil, 0)
	require.NoError(t, err)
}

func TestEndSessionIsNotReversible(t *testing.T) {
	c, _ := newTestCore(t)
	session, _ := mustSessionAndQueue(t, c)

	ended, err := c.EndSession(session.ID)
	require.NoError(t, err)
	assert.Equal(t, types.SessionStatusEnded, ended.Status)

	_, err = c.EndSession(session.ID)
	require.Error(t, err)
	assert.True(t, corerr.Is(err, corerr.KindPrecondition))
}
