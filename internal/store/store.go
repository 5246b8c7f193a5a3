// Package store implements SparkQ's durable data layer: the only
// component that touches disk-resident state (spec.md §2). It exposes
// the primitive, transactional operations Core composes into the task
// state machine, plus CRUD for Session/Queue and the small registries.
package store

import (
	"time"

	"github.com/sparkqdev/sparkq/internal/types"
)

// TaskFilter selects a subset of tasks for ListTasks, per spec.md §4.1.
type TaskFilter struct {
	QueueID   string // empty = all queues
	Status    types.TaskStatus
	HasStatus bool
	StaleOnly bool
	Limit     int
	Offset    int
}

// Store defines the durable persistence contract SparkQ's Core relies
// on. Every successful mutating operation is durable before it returns
// (spec.md §4.1 Durability contract).
type Store interface {
	Close() error

	// Project is a singleton, created once at initialization.
	InitProject(name, repositoryPath string) (*types.Project, error)
	GetProject() (*types.Project, error)

	// Session CRUD.
	CreateSession(session *types.Session) error
	GetSession(id string) (*types.Session, error)
	ListSessions() ([]*types.Session, error)
	UpdateSession(session *types.Session) error
	DeleteSession(id string) error

	// Queue CRUD. Queue names are globally unique (enforced here).
	CreateQueue(queue *types.Queue) error
	GetQueue(id string) (*types.Queue, error)
	GetQueueByName(name string) (*types.Queue, error)
	ListQueues() ([]*types.Queue, error)
	UpdateQueue(queue *types.Queue) error
	// DeleteQueue removes a queue. If cascade is false, the delete is
	// rejected when the queue still has non-terminal tasks.
	DeleteQueue(id string, cascade bool) error

	// Task lifecycle, per spec.md §4.1/§4.5.
	CreateTask(queueID, toolName string, taskClass types.TaskClass, payload []byte, timeout int) (*types.Task, error)
	GetTask(id string) (*types.Task, error)
	PeekOldestQueued(queueID string) (*types.Task, error)
	AtomicClaim(taskID string) (*types.Task, error)
	Complete(taskID, summary string, data []byte) (*types.Task, error)
	Fail(taskID, errMsg string) (*types.Task, error)
	MarkStaleWarned(taskID string) error
	AutoFail(taskID, reason string) (*types.Task, error)
	CloneForRequeue(sourceTaskID string) (*types.Task, error)
	EditTask(taskID string, payload []byte, timeout int, agentRoleKey string) (*types.Task, error)
	DeleteTask(id string) error
	ListTasks(filter TaskFilter) ([]*types.Task, int, error)
	CountByStatus(queueID string) (map[types.TaskStatus]int, error)
	QueuesWithQueuedTasks() ([]types.QueueQueuedCount, error)
	PurgeTerminalOlderThan(cutoff time.Time, statuses ...types.TaskStatus) (int, error)

	// AgentRole registry, referenced by key from Tasks and Queues and
	// exposed read/write through the control surface (spec.md §3).
	UpsertAgentRole(role *types.AgentRole) error
	GetAgentRole(key string) (*types.AgentRole, error)
	ListAgentRoles() ([]*types.AgentRole, error)
}
