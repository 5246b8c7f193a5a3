// Package types defines the core data structures shared across SparkQ's
// queue core: the durable store, the task state machine, the supervisor
// loops, the control surface, and the runner.
//
// All entities carry opaque string ids and CreatedAt/UpdatedAt wall-clock
// timestamps. Enumerated fields use typed string types with named
// constants for the valid values; the types themselves do not restrict
// values, so a conversion such as TaskStatus(s) accepts any string.
package types

import "time"

// SessionStatus is the lifecycle state of a Session.
type SessionStatus string

const (
	SessionStatusActive SessionStatus = "active"
	SessionStatusEnded  SessionStatus = "ended"
)

// QueueStatus is the lifecycle state of a Queue.
type QueueStatus string

const (
	QueueStatusActive   QueueStatus = "active"
	QueueStatusIdle     QueueStatus = "idle"
	QueueStatusPlanned  QueueStatus = "planned"
	QueueStatusEnded    QueueStatus = "ended"
	QueueStatusArchived QueueStatus = "archived"
)

// TaskStatus is the state machine position of a Task (spec.md §4.5).
type TaskStatus string

const (
	TaskStatusQueued    TaskStatus = "queued"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusSucceeded TaskStatus = "succeeded"
	TaskStatusFailed    TaskStatus = "failed"
)

// TaskClass buckets tasks for default-timeout resolution.
type TaskClass string

const (
	TaskClassFastScript   TaskClass = "FAST_SCRIPT"
	TaskClassMediumScript TaskClass = "MEDIUM_SCRIPT"
	TaskClassLLMLite      TaskClass = "LLM_LITE"
	TaskClassLLMHeavy     TaskClass = "LLM_HEAVY"
)

// Project is the singleton project-level identity record.
type Project struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	RepositoryPath string    `json:"repository_path"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Session is a named work period that owns many queues.
type Session struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Status    SessionStatus `json:"status"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   *time.Time    `json:"ended_at,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Queue is a FIFO work lane within a session. Name is globally unique
// across all queues (case-sensitive).
//
// LLMSessions and ModelProfile resolve the Open Question in spec.md §9:
// they are first-class optional attributes, not dead endpoints.
type Queue struct {
	ID                  string      `json:"id"`
	SessionID           string      `json:"session_id"`
	Name                string      `json:"name"`
	Instructions        string      `json:"instructions"`
	Status              QueueStatus `json:"status"`
	DefaultAgentRoleKey string      `json:"default_agent_role_key,omitempty"`
	CodexSessionID      string      `json:"codex_session_id,omitempty"`
	LLMSessions         []string    `json:"llm_sessions,omitempty"`
	ModelProfile        string      `json:"model_profile,omitempty"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

// Acceptable reports whether the queue may accept newly enqueued or
// requeued tasks (spec.md §4.1: CreateTask/CloneForRequeue preconditions).
func (q *Queue) Acceptable() bool {
	return q.Status != QueueStatusArchived && q.Status != QueueStatusEnded
}

// Task is a single unit of work belonging to exactly one queue.
type Task struct {
	ID             string     `json:"id"`
	FriendlyID     string     `json:"friendly_id"`
	QueueID        string     `json:"queue_id"`
	ToolName       string     `json:"tool_name"`
	TaskClass      TaskClass  `json:"task_class"`
	Payload        []byte     `json:"payload"`
	Status         TaskStatus `json:"status"`
	Timeout        int        `json:"timeout"`
	Attempts       int        `json:"attempts"`
	ResultSummary  string     `json:"result_summary,omitempty"`
	ResultData     []byte     `json:"result_data,omitempty"`
	Error          string     `json:"error,omitempty"`
	AgentRoleKey   string     `json:"agent_role_key,omitempty"`
	ClaimedAt      *time.Time `json:"claimed_at,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	StaleWarnedAt  *time.Time `json:"stale_warned_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// IsTerminal reports whether the task has reached an absorbing state.
func (t *Task) IsTerminal() bool {
	return t.Status == TaskStatusSucceeded || t.Status == TaskStatusFailed
}

// IsStale reports whether a running task has exceeded its timeout but
// not yet twice its timeout, as of `now`.
func (t *Task) IsStale(now time.Time) bool {
	if t.Status != TaskStatusRunning || t.StartedAt == nil {
		return false
	}
	elapsed := now.Sub(*t.StartedAt)
	return elapsed > time.Duration(t.Timeout)*time.Second && elapsed <= 2*time.Duration(t.Timeout)*time.Second
}

// IsOverdue reports whether a running task has exceeded twice its
// timeout, the definitive dead-task condition (spec.md §4.6).
func (t *Task) IsOverdue(now time.Time) bool {
	if t.Status != TaskStatusRunning || t.StartedAt == nil {
		return false
	}
	return now.Sub(*t.StartedAt) > 2*time.Duration(t.Timeout)*time.Second
}

// AgentRole is an opaque registry entry referenced by key from Tasks
// and Queues.
type AgentRole struct {
	Key         string    `json:"key"`
	DisplayName string    `json:"display_name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// QueueQueuedCount pairs a queue with the number of queued tasks it
// holds, as returned by Store.QueuesWithQueuedTasks.
type QueueQueuedCount struct {
	Queue       *Queue `json:"queue"`
	QueuedCount int    `json:"queued_count"`
}
