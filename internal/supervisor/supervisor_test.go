package supervisor

import (
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

func newTestSupervisorCore(t *testing.T) (*core.Core, *clock.Fake) {
	t.Helper()
	fake := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s, err := store.NewBoltStore(t.TempDir(), fake, idgen.New())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	cfg := config.Default()
	cfg.Tools["run_tests"] = config.ToolConfig{TaskClass: "FAST_SCRIPT"}
	resolver := toolresolver.New(cfg)

	return core.New(s, fake, resolver, idgen.New()), fake
}

func TestStaleTickWarnsThenAutoFails(t *testing.T) {
	c, fake := newTestSupervisorCore(t)
	session, err := c.CreateSession("default")
	require.NoError(t, err)
	queue, err := c.CreateQueue(session.ID, "q", "")
	require.NoError(t, err)
	task, err := c.Enqueue(queue.ID, "run_tests", nil, 10)
	require.NoError(t, err)
	_, err = c.Claim(task.ID)
	require.NoError(t, err)

	sup := New(c, time.Minute, time.Hour, 14*24*time.Hour)

	fake.Advance(11 * time.Second)
	sup.staleTick()
	warned, err := c.GetTask(task.ID)
	require.NoError(t, err)
	assert.NotNil(t, warned.StaleWarnedAt)
	assert.Equal(t, types.TaskStatusRunning, warned.Status)

	fake.Advance(15 * time.Second)
	sup.staleTick()
	dead, err := c.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, types.TaskStatusFailed, dead.Status)
	assert.Contains(t, dead.Error, "2x timeout")
}

func TestPurgeTickDeletesOldTerminalTasksOnly(t *testing.T) {
	c, fake := newTestSupervisorCore(t)
	session, err := c.CreateSession("default")
	require.NoError(t, err)
	queue, err := c.CreateQueue(session.ID, "q", "")
	require.NoError(t, err)

	old, err := c.Enqueue(queue.ID, "run_tests", nil, 60)
	require.NoError(t, err)
	_, err = c.Claim(old.ID)
	require.NoError(t, err)
	_, err = c.Complete(old.ID, "done", nil)
	require.NoError(t, err)

	fake.Advance(48 * time.Hour)

	fresh, err := c.Enqueue(queue.ID, "run_tests", nil, 60)
	require.NoError(t, err)
	_, err = c.Claim(fresh.ID)
	require.NoError(t, err)
	_, err = c.Complete(fresh.ID, "done", nil)
	require.NoError(t, err)

	stillQueued, err := c.Enqueue(queue.ID, "run_tests", nil, 60)
	require.NoError(t, err)

	sup := New(c, time.Minute, time.Hour, 24*time.Hour)
	sup.purgeTick()

	_, err = c.GetTask(old.ID)
	assert.Error(t, err, "task finished before the retention window should be purged")

	_, err = c.GetTask(fresh.ID)
	assert.NoError(t, err, "task finished within the retention window should survive")

	_, err = c.GetTask(stillQueued.ID)
	assert.NoError(t, err, "queued tasks are never purged regardless of age")
}

func TestStartStopIsIdempotentAndClean(t *testing.T) {
	c, _ := newTestSupervisorCore(t)
	sup := New(c, 10*time.Millisecond, 10*time.Millisecond, time.Hour)
	sup.Start()
	sup.Start() // no-op, already running
	time.Sleep(25 * time.Millisecond)
	sup.Stop()
	sup.Stop() // no-op, already stopped
}
