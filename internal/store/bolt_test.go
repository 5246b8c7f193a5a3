package store

import (
	"sync"
	"testing"
	"time"

	"github.com/sparkqdev/sparkq/internal/clock"
	"github.com/sparkqdev/sparkq/internal/corerr"
	"github.com/sparkqdev/sparkq/internal/idgen"
	"github.com/sparkqdev/sparkq/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*BoltStore, *clock.Fake) {
	t.Helper()
	fake := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s, err := NewBoltStore(t.TempDir(), fake, idgen.New())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, fake
}

func mustQueue(t *testing.T, s *BoltStore, name string) *types.Queue {
	t.Helper()
	q := &types.Queue{ID: "q_" + name, Name: name, Status: types.QueueStatusActive}
	require.NoError(t, s.CreateQueue(q))
	return q
}

func TestCreateQueueRejectsDuplicateName(t *testing.T) {
	s, _ := newTestStore(t)
	mustQueue(t, s, "back-end")

	err := s.CreateQueue(&types.Queue{ID: "q_other", Name: "back-end", Status: types.QueueStatusActive})
	require.Error(t, err)
	assert.True(t, corerr.Is(err, corerr.KindValidation))
}

func TestCreateTaskAssignsFriendlyLabelsSequentially(t *testing.T) {
	s, _ := newTestStore(t)
	q := mustQueue(t, s, "Back End")

	t1, err := s.CreateTask(q.ID, "run_tests", types.TaskClassFastScript, []byte(`{}`), 60)
	require.NoError(t, err)
	assert.Equal(t, "BACK-END-1", t1.FriendlyID)

	t2, err := s.CreateTask(q.ID, "run_tests", types.TaskClassFastScript, []byte(`{}`), 60)
	require.NoError(t, err)
	assert.Equal(t, "BACK-END-2", t2.FriendlyID)
}

func TestCreateTaskRejectsUnacceptableQueue(t *testing.T) {
	s, _ := newTestStore(t)
	q := mustQueue(t, s, "archived-queue")
	q.Status = types.QueueStatusArchived
	require.NoError(t, s.UpdateQueue(q))

	_, err := s.CreateTask(q.ID, "run_tests", types.TaskClassFastScript, nil, 60)
	require.Error(t, err)
	assert.True(t, corerr.Is(err, corerr.KindPrecondition))
}

func TestAtomicClaimExactlyOneWinnerUnderConcurrency(t *testing.T) {
	s, _ := newTestStore(t)
	q := mustQueue(t, s, "contested")
	task, err := s.CreateTask(q.ID, "run_tests", types.TaskClassFastScript, nil, 60)
	require.NoError(t, err)

	const claimers = 20
	var wg sync.WaitGroup
	wins := make([]bool, claimers)
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			claimed, err := s.AtomicClaim(task.ID)
			wins[i] = err == nil && claimed != nil
		}(i)
	}
	wg.Wait()

	winCount := 0
	for _, w := range wins {
		if w {
			winCount++
		}
	}
	assert.Equal(t, 1, winCount, "exactly one claimer should win the race")

	final, err := s.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, types.TaskStatusRunning, final.Status)
	assert.Equal(t, 1, final.Attempts)
}

func TestAtomicClaimOnAlreadyRunningReturnsConflict(t *testing.T) {
	s, _ := newTestStore(t)
	q := mustQueue(t, s, "q")
	task, err := s.CreateTask(q.ID, "run_tests", types.TaskClassFastScript, nil, 60)
	require.NoError(t, err)

	_, err = s.AtomicClaim(task.ID)
	require.NoError(t, err)

	_, err = s.AtomicClaim(task.ID)
	require.Error(t, err)
	assert.True(t, corerr.Is(err, corerr.KindConflict))
	assert.ErrorIs(t, err, corerr.ErrConflict)
}

func TestCompleteRequiresRunningAndNonEmptySummary(t *testing.T) {
	s, _ := newTestStore(t)
	q := mustQueue(t, s, "q")
	task, err := s.CreateTask(q.ID, "run_tests", types.TaskClassFastScript, nil, 60)
	require.NoError(t, err)

	_, err = s.Complete(task.ID, "done", nil)
	require.Error(t, err)
	assert.True(t, corerr.Is(err, corerr.KindPrecondition))

	_, err = s.AtomicClaim(task.ID)
	require.NoError(t, err)

	_, err = s.Complete(task.ID, "", nil)
	require.Error(t, err)
	assert.True(t, corerr.Is(err, corerr.KindValidation))

	done, err := s.Complete(task.ID, "all tests passed", []byte(`{"passed":12}`))
	require.NoError(t, err)
	assert.Equal(t, types.TaskStatusSucceeded, done.Status)
	assert.NotNil(t, done.FinishedAt)
}

func TestCloneForRequeueRejectsNonTerminalSource(t *testing.T) {
	s, _ := newTestStore(t)
	q := mustQueue(t, s, "q")
	task, err := s.CreateTask(q.ID, "run_tests", types.TaskClassFastScript, nil, 60)
	require.NoError(t, err)

	_, err = s.CloneForRequeue(task.ID)
	require.Error(t, err)
	assert.True(t, corerr.Is(err, corerr.KindPrecondition))

	_, err = s.AtomicClaim(task.ID)
	require.NoError(t, err)
	_, err = s.Fail(task.ID, "boom")
	require.NoError(t, err)

	clone, err := s.CloneForRequeue(task.ID)
	require.NoError(t, err)
	assert.Equal(t, types.TaskStatusQueued, clone.Status)
	assert.Equal(t, 0, clone.Attempts)
	assert.Equal(t, "Q-2", clone.FriendlyID)
	assert.Equal(t, task.ToolName, clone.ToolName)
}

func TestListTasksFiltersAndPaginates(t *testing.T) {
	s, fake := newTestStore(t)
	q := mustQueue(t, s, "q")
	for i := 0; i < 5; i++ {
		_, err := s.CreateTask(q.ID, "run_tests", types.TaskClassFastScript, nil, 60)
		require.NoError(t, err)
		fake.Advance(time.Second)
	}

	page, total, err := s.ListTasks(TaskFilter{QueueID: q.ID, Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, "Q-2", page[0].FriendlyID)
	assert.Equal(t, "Q-3", page[1].FriendlyID)
}

func TestListTasksStaleOnly(t *testing.T) {
	s, fake := newTestStore(t)
	q := mustQueue(t, s, "q")
	task, err := s.CreateTask(q.ID, "run_tests", types.TaskClassFastScript, nil, 10)
	require.NoError(t, err)
	_, err = s.AtomicClaim(task.ID)
	require.NoError(t, err)

	stale, _, err := s.ListTasks(TaskFilter{StaleOnly: true})
	require.NoError(t, err)
	assert.Empty(t, stale)

	fake.Advance(11 * time.Second)
	stale, _, err = s.ListTasks(TaskFilter{StaleOnly: true})
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, task.ID, stale[0].ID)
}

func TestDeleteQueueRejectsUnlessCascade(t *testing.T) {
	s, _ := newTestStore(t)
	q := mustQueue(t, s, "q")
	_, err := s.CreateTask(q.ID, "run_tests", types.TaskClassFastScript, nil, 60)
	require.NoError(t, err)

	err = s.DeleteQueue(q.ID, false)
	require.Error(t, err)
	assert.True(t, corerr.Is(err, corerr.KindPrecondition))

	err = s.DeleteQueue(q.ID, true)
	require.NoError(t, err)

	_, err = s.GetQueue(q.ID)
	require.Error(t, err)
	assert.True(t, corerr.Is(err, corerr.KindNotFound))
}

func TestPurgeTerminalOlderThan(t *testing.T) {
	s, fake := newTestStore(t)
	q := mustQueue(t, s, "q")
	task, err := s.CreateTask(q.ID, "run_tests", types.TaskClassFastScript, nil, 60)
	require.NoError(t, err)
	_, err = s.AtomicClaim(task.ID)
	require.NoError(t, err)
	_, err = s.Complete(task.ID, "done", nil)
	require.NoError(t, err)

	cutoff := fake.Now().Add(time.Hour)
	fake.Advance(2 * time.Hour)

	n, err := s.PurgeTerminalOlderThan(cutoff)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.GetTask(task.ID)
	require.Error(t, err)
	assert.True(t, corerr.Is(err, corerr.KindNotFound))
}
