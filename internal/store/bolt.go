package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/sparkqdev/sparkq/internal/clock"
	"github.com/sparkqdev/sparkq/internal/corerr"
	"github.com/sparkqdev/sparkq/internal/idgen"
	"github.com/sparkqdev/sparkq/internal/types"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketProject      = []byte("project")
	bucketSessions     = []byte("sessions")
	bucketQueues       = []byte("queues")
	bucketTasks        = []byte("tasks")
	bucketTaskCounters = []byte("task_counters")
	bucketAgentRoles   = []byte("agent_roles")
)

const projectKey = "project"

// BoltStore implements Store on top of a single embedded BoltDB file,
// following the teacher's bucket-per-kind, JSON-marshal-value shape in
// pkg/storage/boltdb.go, generalized with the Task state machine's
// extra preconditions and an injected Clock so claim/timeout decisions
// are testable without real sleeps.
type BoltStore struct {
	db    *bolt.DB
	clock clock.Clock
	ids   idgen.IdGen
}

// NewBoltStore opens (creating if absent) the bbolt file at
// <dataDir>/sparkq.db and ensures every bucket exists.
func NewBoltStore(dataDir string, clk clock.Clock, ids idgen.IdGen) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "sparkq.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketProject, bucketSessions, bucketQueues, bucketTasks, bucketTaskCounters, bucketAgentRoles} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &BoltStore{db: db, clock: clk, ids: ids}, nil
}

// Close closes the underlying database file.
func (s *BoltStore) Close() error { return s.db.Close() }

// --- Project ---

func (s *BoltStore) InitProject(name, repositoryPath string) (*types.Project, error) {
	var project *types.Project
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProject)
		if existing := b.Get([]byte(projectKey)); existing != nil {
			return json.Unmarshal(existing, &project)
		}
		now := s.clock.Now()
		project = &types.Project{
			ID:             "proj_1",
			Name:           name,
			RepositoryPath: repositoryPath,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		data, err := json.Marshal(project)
		if err != nil {
			return err
		}
		return b.Put([]byte(projectKey), data)
	})
	return project, err
}

func (s *BoltStore) GetProject() (*types.Project, error) {
	var project *types.Project
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketProject).Get([]byte(projectKey))
		if data == nil {
			return corerr.NotFound("project", projectKey)
		}
		return json.Unmarshal(data, &project)
	})
	return project, err
}

// --- Session ---

func (s *BoltStore) CreateSession(session *types.Session) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		data, err := json.Marshal(session)
		if err != nil {
			return err
		}
		return b.Put([]byte(session.ID), data)
	})
}

func (s *BoltStore) GetSession(id string) (*types.Session, error) {
	var session *types.Session
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSessions).Get([]byte(id))
		if data == nil {
			return corerr.NotFound("session", id)
		}
		return json.Unmarshal(data, &session)
	})
	return session, err
}

func (s *BoltStore) ListSessions() ([]*types.Session, error) {
	var sessions []*types.Session
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSessions).ForEach(func(k, v []byte) error {
			var session types.Session
			if err := json.Unmarshal(v, &session); err != nil {
				return err
			}
			sessions = append(sessions, &session)
			return nil
		})
	})
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].CreatedAt.Before(sessions[j].CreatedAt) })
	return sessions, err
}

func (s *BoltStore) UpdateSession(session *types.Session) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		if b.Get([]byte(session.ID)) == nil {
			return corerr.NotFound("session", session.ID)
		}
		data, err := json.Marshal(session)
		if err != nil {
			return err
		}
		return b.Put([]byte(session.ID), data)
	})
}

func (s *BoltStore) DeleteSession(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		if b.Get([]byte(id)) == nil {
			return corerr.NotFound("session", id)
		}
		return b.Delete([]byte(id))
	})
}

// --- Queue ---

// queueByName scans the queues bucket for a queue with the given name,
// within an already-open transaction. Both GetQueueByName and the
// create/update duplicate-name checks scan through this single helper
// instead of each re-implementing the ForEach walk.
func queueByName(tx *bolt.Tx, name string) (*types.Queue, error) {
	var found *types.Queue
	err := tx.Bucket(bucketQueues).ForEach(func(k, v []byte) error {
		var queue types.Queue
		if err := json.Unmarshal(v, &queue); err != nil {
			return err
		}
		if queue.Name == name {
			found = &queue
		}
		return nil
	})
	return found, err
}

func (s *BoltStore) CreateQueue(queue *types.Queue) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		existing, err := queueByName(tx, queue.Name)
		if err != nil {
			return err
		}
		if existing != nil {
			return corerr.Validation(fmt.Sprintf("queue name %q already in use", queue.Name))
		}
		data, err := json.Marshal(queue)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketQueues).Put([]byte(queue.ID), data)
	})
}

func (s *BoltStore) GetQueue(id string) (*types.Queue, error) {
	var queue *types.Queue
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketQueues).Get([]byte(id))
		if data == nil {
			return corerr.NotFound("queue", id)
		}
		return json.Unmarshal(data, &queue)
	})
	return queue, err
}

func (s *BoltStore) GetQueueByName(name string) (*types.Queue, error) {
	var found *types.Queue
	err := s.db.View(func(tx *bolt.Tx) error {
		f, err := queueByName(tx, name)
		found = f
		return err
	})
	if err == nil && found == nil {
		return nil, corerr.NotFound("queue", name)
	}
	return found, err
}

func (s *BoltStore) ListQueues() ([]*types.Queue, error) {
	var queues []*types.Queue
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketQueues).ForEach(func(k, v []byte) error {
			var queue types.Queue
			if err := json.Unmarshal(v, &queue); err != nil {
				return err
			}
			queues = append(queues, &queue)
			return nil
		})
	})
	sort.Slice(queues, func(i, j int) bool { return queues[i].CreatedAt.Before(queues[j].CreatedAt) })
	return queues, err
}

func (s *BoltStore) UpdateQueue(queue *types.Queue) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketQueues)
		if b.Get([]byte(queue.ID)) == nil {
			return corerr.NotFound("queue", queue.ID)
		}
		existing, err := queueByName(tx, queue.Name)
		if err != nil {
			return err
		}
		if existing != nil && existing.ID != queue.ID {
			return corerr.Validation(fmt.Sprintf("queue name %q already in use", queue.Name))
		}
		data, err := json.Marshal(queue)
		if err != nil {
			return err
		}
		return b.Put([]byte(queue.ID), data)
	})
}

func (s *BoltStore) DeleteQueue(id string, cascade bool) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		qb := tx.Bucket(bucketQueues)
		if qb.Get([]byte(id)) == nil {
			return corerr.NotFound("queue", id)
		}

		tb := tx.Bucket(bucketTasks)
		var toDelete [][]byte
		nonTerminal := 0
		err := tb.ForEach(func(k, v []byte) error {
			var task types.Task
			if err := json.Unmarshal(v, &task); err != nil {
				return err
			}
			if task.QueueID != id {
				return nil
			}
			if !task.IsTerminal() {
				nonTerminal++
			}
			toDelete = append(toDelete, append([]byte(nil), k...))
			return nil
		})
		if err != nil {
			return err
		}
		if nonTerminal > 0 && !cascade {
			return corerr.Precondition(fmt.Sprintf("queue %q has %d non-terminal task(s); pass cascade to force delete", id, nonTerminal))
		}
		for _, k := range toDelete {
			if err := tb.Delete(k); err != nil {
				return err
			}
		}
		_ = tx.Bucket(bucketTaskCounters).Delete([]byte(id))
		return qb.Delete([]byte(id))
	})
}

// --- Task lifecycle ---

func (s *BoltStore) nextFriendlyID(tx *bolt.Tx, queue *types.Queue) (string, error) {
	cb := tx.Bucket(bucketTaskCounters)
	var n uint64
	if raw := cb.Get([]byte(queue.ID)); raw != nil {
		n = binary.BigEndian.Uint64(raw)
	}
	n++
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, n)
	if err := cb.Put([]byte(queue.ID), buf); err != nil {
		return "", err
	}
	return s.ids.FriendlyLabel(queue.Name, int(n)), nil
}

func (s *BoltStore) CreateTask(queueID, toolName string, taskClass types.TaskClass, payload []byte, timeout int) (*types.Task, error) {
	if timeout <= 0 {
		return nil, corerr.Validation("timeout must be a positive number of seconds")
	}
	var task *types.Task
	err := s.db.Update(func(tx *bolt.Tx) error {
		qb := tx.Bucket(bucketQueues)
		qdata := qb.Get([]byte(queueID))
		if qdata == nil {
			return corerr.NotFound("queue", queueID)
		}
		var queue types.Queue
		if err := json.Unmarshal(qdata, &queue); err != nil {
			return err
		}
		if !queue.Acceptable() {
			return corerr.Precondition(fmt.Sprintf("queue %q is %s and not accepting tasks", queue.Name, queue.Status))
		}

		friendly, err := s.nextFriendlyID(tx, &queue)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		id := s.ids.NewTaskID()
		task = &types.Task{
			ID:         id,
			FriendlyID: friendly,
			QueueID:    queueID,
			ToolName:   toolName,
			TaskClass:  taskClass,
			Payload:    payload,
			Status:     types.TaskStatusQueued,
			Timeout:    timeout,
			Attempts:   0,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		data, err := json.Marshal(task)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketTasks).Put([]byte(id), data)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (s *BoltStore) GetTask(id string) (*types.Task, error) {
	var task *types.Task
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketTasks).Get([]byte(id))
		if data == nil {
			return corerr.NotFound("task", id)
		}
		return json.Unmarshal(data, &task)
	})
	return task, err
}

func (s *BoltStore) allTasks(tx *bolt.Tx) ([]*types.Task, error) {
	var tasks []*types.Task
	err := tx.Bucket(bucketTasks).ForEach(func(k, v []byte) error {
		var task types.Task
		if err := json.Unmarshal(v, &task); err != nil {
			return err
		}
		tasks = append(tasks, &task)
		return nil
	})
	return tasks, err
}

func sortTasksFIFO(tasks []*types.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].ID < tasks[j].ID
		}
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
}

// PeekOldestQueued never advances state: it is a read-only scan of the
// tasks bucket inside a View transaction.
func (s *BoltStore) PeekOldestQueued(queueID string) (*types.Task, error) {
	var result *types.Task
	err := s.db.View(func(tx *bolt.Tx) error {
		tasks, err := s.allTasks(tx)
		if err != nil {
			return err
		}
		var candidates []*types.Task
		for _, t := range tasks {
			if t.QueueID == queueID && t.Status == types.TaskStatusQueued {
				candidates = append(candidates, t)
			}
		}
		sortTasksFIFO(candidates)
		if len(candidates) > 0 {
			result = candidates[0]
		}
		return nil
	})
	return result, err
}

// AtomicClaim is the one conditional update the whole state machine
// hinges on: it only succeeds if the row is still queued. Two
// concurrent callers both enter db.Update, but bbolt serializes writer
// transactions, so the second to run observes the first's committed
// change and loses cleanly.
func (s *BoltStore) AtomicClaim(taskID string) (*types.Task, error) {
	var task *types.Task
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTasks)
		data := b.Get([]byte(taskID))
		if data == nil {
			return corerr.NotFound("task", taskID)
		}
		if err := json.Unmarshal(data, &task); err != nil {
			return err
		}
		if task.Status != types.TaskStatusQueued {
			task = nil
			return corerr.Conflict(fmt.Sprintf("task %q is no longer queued", taskID))
		}
		now := s.clock.Now()
		task.Status = types.TaskStatusRunning
		task.ClaimedAt = &now
		task.StartedAt = &now
		task.Attempts++
		task.UpdatedAt = now
		updated, err := json.Marshal(task)
		if err != nil {
			return err
		}
		return b.Put([]byte(taskID), updated)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (s *BoltStore) Complete(taskID, summary string, data []byte) (*types.Task, error) {
	if summary == "" {
		return nil, corerr.Validation("result_summary must be non-empty")
	}
	var task *types.Task
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTasks)
		raw := b.Get([]byte(taskID))
		if raw == nil {
			return corerr.NotFound("task", taskID)
		}
		if err := json.Unmarshal(raw, &task); err != nil {
			return err
		}
		if task.Status != types.TaskStatusRunning {
			return corerr.Precondition(fmt.Sprintf("task %q is %s, not running", taskID, task.Status))
		}
		now := s.clock.Now()
		task.Status = types.TaskStatusSucceeded
		task.ResultSummary = summary
		task.ResultData = data
		task.FinishedAt = &now
		task.UpdatedAt = now
		updated, err := json.Marshal(task)
		if err != nil {
			return err
		}
		return b.Put([]byte(taskID), updated)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (s *BoltStore) failTask(taskID, reason string) (*types.Task, error) {
	var task *types.Task
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTasks)
		raw := b.Get([]byte(taskID))
		if raw == nil {
			return corerr.NotFound("task", taskID)
		}
		if err := json.Unmarshal(raw, &task); err != nil {
			return err
		}
		if task.Status != types.TaskStatusRunning {
			return corerr.Precondition(fmt.Sprintf("task %q is %s, not running", taskID, task.Status))
		}
		now := s.clock.Now()
		task.Status = types.TaskStatusFailed
		task.Error = reason
		task.FinishedAt = &now
		task.UpdatedAt = now
		updated, err := json.Marshal(task)
		if err != nil {
			return err
		}
		return b.Put([]byte(taskID), updated)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (s *BoltStore) Fail(taskID, errMsg string) (*types.Task, error) {
	return s.failTask(taskID, errMsg)
}

// AutoFail is invoked by the Supervisor and carries the same
// precondition as Fail; the error text identifies the cause as timeout
// exceedance so readers can tell it apart from an explicit Fail.
func (s *BoltStore) AutoFail(taskID, reason string) (*types.Task, error) {
	return s.failTask(taskID, reason)
}

func (s *BoltStore) MarkStaleWarned(taskID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTasks)
		raw := b.Get([]byte(taskID))
		if raw == nil {
			return corerr.NotFound("task", taskID)
		}
		var task types.Task
		if err := json.Unmarshal(raw, &task); err != nil {
			return err
		}
		if task.Status != types.TaskStatusRunning || task.StaleWarnedAt != nil {
			return nil // idempotent no-op
		}
		now := s.clock.Now()
		task.StaleWarnedAt = &now
		task.UpdatedAt = now
		updated, err := json.Marshal(&task)
		if err != nil {
			return err
		}
		return b.Put([]byte(taskID), updated)
	})
}

func (s *BoltStore) CloneForRequeue(sourceTaskID string) (*types.Task, error) {
	var clone *types.Task
	err := s.db.Update(func(tx *bolt.Tx) error {
		tb := tx.Bucket(bucketTasks)
		raw := tb.Get([]byte(sourceTaskID))
		if raw == nil {
			return corerr.NotFound("task", sourceTaskID)
		}
		var source types.Task
		if err := json.Unmarshal(raw, &source); err != nil {
			return err
		}
		if !source.IsTerminal() {
			return corerr.Precondition(fmt.Sprintf("task %q is %s, not terminal", sourceTaskID, source.Status))
		}

		qb := tx.Bucket(bucketQueues)
		qdata := qb.Get([]byte(source.QueueID))
		if qdata == nil {
			return corerr.NotFound("queue", source.QueueID)
		}
		var queue types.Queue
		if err := json.Unmarshal(qdata, &queue); err != nil {
			return err
		}
		if !queue.Acceptable() {
			return corerr.Precondition(fmt.Sprintf("queue %q is %s and not accepting tasks", queue.Name, queue.Status))
		}

		friendly, err := s.nextFriendlyID(tx, &queue)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		clone = &types.Task{
			ID:         s.ids.NewTaskID(),
			FriendlyID: friendly,
			QueueID:    source.QueueID,
			ToolName:   source.ToolName,
			TaskClass:  source.TaskClass,
			Payload:    source.Payload,
			Status:     types.TaskStatusQueued,
			Timeout:    source.Timeout,
			Attempts:   0,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		data, err := json.Marshal(clone)
		if err != nil {
			return err
		}
		return tb.Put([]byte(clone.ID), data)
	})
	if err != nil {
		return nil, err
	}
	return clone, nil
}

func (s *BoltStore) EditTask(id string, payload []byte, timeout int, agentRoleKey string) (*types.Task, error) {
	if timeout <= 0 {
		return nil, corerr.Validation("timeout must be a positive number of seconds")
	}
	var task *types.Task
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTasks)
		raw := b.Get([]byte(id))
		if raw == nil {
			return corerr.NotFound("task", id)
		}
		if err := json.Unmarshal(raw, &task); err != nil {
			return err
		}
		if task.Status == types.TaskStatusRunning {
			return corerr.Precondition(fmt.Sprintf("task %q is running and cannot be edited", id))
		}
		task.Payload = payload
		task.Timeout = timeout
		task.AgentRoleKey = agentRoleKey
		task.UpdatedAt = s.clock.Now()
		updated, err := json.Marshal(task)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), updated)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (s *BoltStore) DeleteTask(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTasks)
		if b.Get([]byte(id)) == nil {
			return corerr.NotFound("task", id)
		}
		return b.Delete([]byte(id))
	})
}

func (s *BoltStore) ListTasks(filter TaskFilter) ([]*types.Task, int, error) {
	var tasks []*types.Task
	err := s.db.View(func(tx *bolt.Tx) error {
		all, err := s.allTasks(tx)
		tasks = all
		return err
	})
	if err != nil {
		return nil, 0, err
	}

	now := s.clock.Now()
	var filtered []*types.Task
	for _, t := range tasks {
		if filter.QueueID != "" && t.QueueID != filter.QueueID {
			continue
		}
		if filter.HasStatus && t.Status != filter.Status {
			continue
		}
		if filter.StaleOnly {
			if t.Status != types.TaskStatusRunning || t.StartedAt == nil {
				continue
			}
			if now.Sub(*t.StartedAt) <= time.Duration(t.Timeout)*time.Second {
				continue
			}
		}
		filtered = append(filtered, t)
	}
	sortTasksFIFO(filtered)
	total := len(filtered)

	if filter.Offset > 0 {
		if filter.Offset >= len(filtered) {
			filtered = nil
		} else {
			filtered = filtered[filter.Offset:]
		}
	}
	if filter.Limit > 0 && filter.Limit < len(filtered) {
		filtered = filtered[:filter.Limit]
	}
	return filtered, total, nil
}

func (s *BoltStore) CountByStatus(queueID string) (map[types.TaskStatus]int, error) {
	var tasks []*types.Task
	err := s.db.View(func(tx *bolt.Tx) error {
		all, err := s.allTasks(tx)
		tasks = all
		return err
	})
	if err != nil {
		return nil, err
	}
	counts := map[types.TaskStatus]int{}
	for _, t := range tasks {
		if queueID != "" && t.QueueID != queueID {
			continue
		}
		counts[t.Status]++
	}
	return counts, nil
}

func (s *BoltStore) QueuesWithQueuedTasks() ([]types.QueueQueuedCount, error) {
	var result []types.QueueQueuedCount
	err := s.db.View(func(tx *bolt.Tx) error {
		tasks, err := s.allTasks(tx)
		if err != nil {
			return err
		}
		counts := map[string]int{}
		for _, t := range tasks {
			if t.Status == types.TaskStatusQueued {
				counts[t.QueueID]++
			}
		}
		for queueID, n := range counts {
			qdata := tx.Bucket(bucketQueues).Get([]byte(queueID))
			if qdata == nil {
				continue
			}
			var queue types.Queue
			if err := json.Unmarshal(qdata, &queue); err != nil {
				return err
			}
			result = append(result, types.QueueQueuedCount{Queue: &queue, QueuedCount: n})
		}
		return nil
	})
	sort.Slice(result, func(i, j int) bool { return result[i].Queue.Name < result[j].Queue.Name })
	return result, err
}

func (s *BoltStore) PurgeTerminalOlderThan(cutoff time.Time, statuses ...types.TaskStatus) (int, error) {
	if len(statuses) == 0 {
		statuses = []types.TaskStatus{types.TaskStatusSucceeded, types.TaskStatusFailed}
	}
	eligible := map[types.TaskStatus]bool{}
	for _, st := range statuses {
		eligible[st] = true
	}

	var n int
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTasks)
		var toDelete [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var task types.Task
			if err := json.Unmarshal(v, &task); err != nil {
				return err
			}
			if !eligible[task.Status] || task.FinishedAt == nil {
				return nil
			}
			if task.FinishedAt.Before(cutoff) {
				toDelete = append(toDelete, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range toDelete {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		n = len(toDelete)
		return nil
	})
	return n, err
}

// --- Registries ---

func (s *BoltStore) UpsertAgentRole(role *types.AgentRole) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(role)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketAgentRoles).Put([]byte(role.Key), data)
	})
}

func (s *BoltStore) GetAgentRole(key string) (*types.AgentRole, error) {
	var role *types.AgentRole
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketAgentRoles).Get([]byte(key))
		if data == nil {
			return corerr.NotFound("agent_role", key)
		}
		return json.Unmarshal(data, &role)
	})
	return role, err
}

func (s *BoltStore) ListAgentRoles() ([]*types.AgentRole, error) {
	var roles []*types.AgentRole
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAgentRoles).ForEach(func(k, v []byte) error {
			var role types.AgentRole
			if err := json.Unmarshal(v, &role); err != nil {
				return err
			}
			roles = append(roles, &role)
			return nil
		})
	})
	return roles, err
}
