// Package core implements the queue's task state machine (spec.md
// §4.5): it is the only component permitted to call Store's
// transition primitives directly, and it is what ControlServer and
// Supervisor both sit on top of.
package core

import (
	"fmt"
	"time"

	"github.com/sparkqdev/sparkq/internal/clock"
	"github.com/sparkqdev/sparkq/internal/corerr"
	"github.com/sparkqdev/sparkq/internal/idgen"
	"github.com/sparkqdev/sparkq/internal/store"
	"github.com/sparkqdev/sparkq/internal/toolresolver"
	"github.com/sparkqdev/sparkq/internal/types"
)

// Core wires the Store, Clock, ToolResolver, and IdGen into the
// operations spec.md §2 lists against "Core": enqueue / peek / claim /
// complete / fail / requeue / delete / list, plus Session and Queue
// lifecycle management.
type Core struct {
	store    store.Store
	clock    clock.Clock
	resolver *toolresolver.ToolResolver
	ids      idgen.IdGen
}

// New builds a Core over the given collaborators.
func New(s store.Store, clk clock.Clock, resolver *toolresolver.ToolResolver, ids idgen.IdGen) *Core {
	return &Core{store: s, clock: clk, resolver: resolver, ids: ids}
}

// ClaimDescriptor is the projection handed back by Claim and streamed
// by the Runner, per spec.md §6.
type ClaimDescriptor struct {
	ID         string          `json:"id"`
	FriendlyID string          `json:"friendly_id"`
	Queue      ClaimQueueView  `json:"queue"`
	ToolName   string          `json:"tool_name"`
	TaskClass  types.TaskClass `json:"task_class"`
	Payload    []byte          `json:"payload"`
	Status     types.TaskStatus `json:"status"`
	Timeout    int             `json:"timeout"`
	Attempts   int             `json:"attempts"`
	CreatedAt  string          `json:"created_at"`
	StartedAt  string          `json:"started_at"`
	ClaimedAt  string          `json:"claimed_at"`
}

// ClaimQueueView is the queue summary embedded in a ClaimDescriptor.
type ClaimQueueView struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Instructions string `json:"instructions"`
}

// --- Project ---

// Now exposes the injected Clock so collaborators like Supervisor can
// make time-dependent decisions without reaching past Core into a
// second, possibly divergent, time source.
func (c *Core) Now() time.Time { return c.clock.Now() }

// InitProject creates the singleton project row, or returns the
// existing one if it already exists.
func (c *Core) InitProject(name, repositoryPath string) (*types.Project, error) {
	return c.store.InitProject(name, repositoryPath)
}

// --- Session lifecycle ---

func (c *Core) CreateSession(name string) (*types.Session, error) {
	if name == "" {
		return nil, corerr.Validation("session name must be non-empty")
	}
	now := c.clock.Now()
	session := &types.Session{
		ID:        c.ids.NewSessionID(),
		Name:      name,
		Status:    types.SessionStatusActive,
		StartedAt: now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.store.CreateSession(session); err != nil {
		return nil, err
	}
	return session, nil
}

func (c *Core) GetSession(id string) (*types.Session, error) { return c.store.GetSession(id) }

func (c *Core) ListSessions() ([]*types.Session, error) { return c.store.ListSessions() }

// RenameSession renames an active or ended session in place.
func (c *Core) RenameSession(id, name string) (*types.Session, error) {
	if name == "" {
		return nil, corerr.Validation("session name must be non-empty")
	}
	session, err := c.store.GetSession(id)
	if err != nil {
		return nil, err
	}
	session.Name = name
	session.UpdatedAt = c.clock.Now()
	if err := c.store.UpdateSession(session); err != nil {
		return nil, err
	}
	return session, nil
}

// EndSession moves an active session to ended. Ending an already
// ended session is a no-op precondition error: sessions are not
// reopened once ended.
func (c *Core) EndSession(id string) (*types.Session, error) {
	session, err := c.store.GetSession(id)
	if err != nil {
		return nil, err
	}
	if session.Status == types.SessionStatusEnded {
		return nil, corerr.Precondition(fmt.Sprintf("session %q is already ended", id))
	}
	now := c.clock.Now()
	session.Status = types.SessionStatusEnded
	session.EndedAt = &now
	session.UpdatedAt = now
	if err := c.store.UpdateSession(session); err != nil {
		return nil, err
	}
	return session, nil
}

func (c *Core) DeleteSession(id string) error { return c.store.DeleteSession(id) }

// --- Queue lifecycle ---

func (c *Core) CreateQueue(sessionID, name, instructions string) (*types.Queue, error) {
	if name == "" {
		return nil, corerr.Validation("queue name must be non-empty")
	}
	if _, err := c.store.GetSession(sessionID); err != nil {
		return nil, err
	}
	now := c.clock.Now()
	queue := &types.Queue{
		ID:           c.ids.NewQueueID(),
		SessionID:    sessionID,
		Name:         name,
		Instructions: instructions,
		Status:       types.QueueStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := c.store.CreateQueue(queue); err != nil {
		return nil, err
	}
	return queue, nil
}

func (c *Core) GetQueue(id string) (*types.Queue, error)        { return c.store.GetQueue(id) }
func (c *Core) GetQueueByName(name string) (*types.Queue, error) { return c.store.GetQueueByName(name) }
func (c *Core) ListQueues() ([]*types.Queue, error)             { return c.store.ListQueues() }

// UpdateQueueInput carries the mutable fields spec.md §6's PUT
// /api/queues/{id} accepts; nil pointers leave the field unchanged.
type UpdateQueueInput struct {
	Name                *string
	Instructions        *string
	DefaultAgentRoleKey *string
	CodexSessionID      *string
	LLMSessions         []string
	ModelProfile        *string
}

func (c *Core) UpdateQueue(id string, in UpdateQueueInput) (*types.Queue, error) {
	queue, err := c.store.GetQueue(id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		if *in.Name == "" {
			return nil, corerr.Validation("queue name must be non-empty")
		}
		queue.Name = *in.Name
	}
	if in.Instructions != nil {
		queue.Instructions = *in.Instructions
	}
	if in.DefaultAgentRoleKey != nil {
		if *in.DefaultAgentRoleKey != "" {
			if _, err := c.store.GetAgentRole(*in.DefaultAgentRoleKey); err != nil {
				return nil, err
			}
		}
		queue.DefaultAgentRoleKey = *in.DefaultAgentRoleKey
	}
	if in.CodexSessionID != nil {
		queue.CodexSessionID = *in.CodexSessionID
	}
	if in.LLMSessions != nil {
		queue.LLMSessions = in.LLMSessions
	}
	if in.ModelProfile != nil {
		queue.ModelProfile = *in.ModelProfile
	}
	queue.UpdatedAt = c.clock.Now()
	if err := c.store.UpdateQueue(queue); err != nil {
		return nil, err
	}
	return queue, nil
}

// ArchiveQueue moves a queue to archived, after which it no longer
// accepts CreateTask/CloneForRequeue (types.Queue.Acceptable).
func (c *Core) ArchiveQueue(id string) (*types.Queue, error) {
	queue, err := c.store.GetQueue(id)
	if err != nil {
		return nil, err
	}
	queue.Status = types.QueueStatusArchived
	queue.UpdatedAt = c.clock.Now()
	if err := c.store.UpdateQueue(queue); err != nil {
		return nil, err
	}
	return queue, nil
}

// UnarchiveQueue reverses ArchiveQueue, restoring the queue to active.
func (c *Core) UnarchiveQueue(id string) (*types.Queue, error) {
	queue, err := c.store.GetQueue(id)
	if err != nil {
		return nil, err
	}
	if queue.Status != types.QueueStatusArchived {
		return nil, corerr.Precondition(fmt.Sprintf("queue %q is not archived", id))
	}
	queue.Status = types.QueueStatusActive
	queue.UpdatedAt = c.clock.Now()
	if err := c.store.UpdateQueue(queue); err != nil {
		return nil, err
	}
	return queue, nil
}

func (c *Core) DeleteQueue(id string, cascade bool) error {
	return c.store.DeleteQueue(id, cascade)
}

// --- Task lifecycle ---

// Enqueue resolves the effective timeout via ToolResolver (unless the
// caller supplied an enqueue-time override) and inserts a new queued
// task.
func (c *Core) Enqueue(queueID, toolName string, payload []byte, overrideTimeout int) (*types.Task, error) {
	taskClass, timeout, err := c.resolver.Resolve(toolName, overrideTimeout)
	if err != nil {
		return nil, err
	}
	return c.store.CreateTask(queueID, toolName, taskClass, payload, timeout)
}

func (c *Core) GetTask(id string) (*types.Task, error) { return c.store.GetTask(id) }

func (c *Core) ListTasks(filter store.TaskFilter) ([]*types.Task, int, error) {
	return c.store.ListTasks(filter)
}

func (c *Core) EditTask(id string, payload []byte, timeout int, agentRoleKey string) (*types.Task, error) {
	if agentRoleKey != "" {
		if _, err := c.store.GetAgentRole(agentRoleKey); err != nil {
			return nil, err
		}
	}
	return c.store.EditTask(id, payload, timeout, agentRoleKey)
}

func (c *Core) DeleteTask(id string) error { return c.store.DeleteTask(id) }

// Peek returns the oldest queued task for a queue without advancing
// state, per spec.md §4.5.
func (c *Core) Peek(queueID string) (*types.Task, error) {
	return c.store.PeekOldestQueued(queueID)
}

// Claim performs the one conditional state-advancing operation in the
// whole system and, on success, projects the result into the claim
// descriptor shape spec.md §6 defines for both the HTTP response and
// the Runner's stdout stream.
func (c *Core) Claim(taskID string) (*ClaimDescriptor, error) {
	task, err := c.store.AtomicClaim(taskID)
	if err != nil {
		return nil, err
	}
	queue, err := c.store.GetQueue(task.QueueID)
	if err != nil {
		return nil, err
	}
	return buildClaimDescriptor(task, queue), nil
}

func buildClaimDescriptor(task *types.Task, queue *types.Queue) *ClaimDescriptor {
	d := &ClaimDescriptor{
		ID:         task.ID,
		FriendlyID: task.FriendlyID,
		Queue: ClaimQueueView{
			ID:           queue.ID,
			Name:         queue.Name,
			Instructions: queue.Instructions,
		},
		ToolName:  task.ToolName,
		TaskClass: task.TaskClass,
		Payload:   task.Payload,
		Status:    task.Status,
		Timeout:   task.Timeout,
		Attempts:  task.Attempts,
	}
	if !task.CreatedAt.IsZero() {
		d.CreatedAt = task.CreatedAt.Format(timeFormat)
	}
	if task.StartedAt != nil {
		d.StartedAt = task.StartedAt.Format(timeFormat)
	}
	if task.ClaimedAt != nil {
		d.ClaimedAt = task.ClaimedAt.Format(timeFormat)
	}
	return d
}

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

func (c *Core) Complete(taskID, summary string, data []byte) (*types.Task, error) {
	return c.store.Complete(taskID, summary, data)
}

func (c *Core) Fail(taskID, errMsg string) (*types.Task, error) {
	return c.store.Fail(taskID, errMsg)
}

// Requeue clones a terminal task into a fresh queued one; the source
// task is left untouched for audit (spec.md §3, §4.5).
func (c *Core) Requeue(taskID string) (*types.Task, error) {
	return c.store.CloneForRequeue(taskID)
}

func (c *Core) CountByStatus(queueID string) (map[types.TaskStatus]int, error) {
	return c.store.CountByStatus(queueID)
}

func (c *Core) QueuesWithQueuedTasks() ([]types.QueueQueuedCount, error) {
	return c.store.QueuesWithQueuedTasks()
}

// --- AgentRole registry ---
//
// AgentRole entries are referenced by key from Queue.DefaultAgentRoleKey
// and Task.AgentRoleKey (spec.md §3). UpsertAgentRole is the only write
// path into the registry; EditTask and UpdateQueue both validate a
// nonempty key against it before persisting the reference.

// UpsertAgentRole creates or updates an AgentRole registry entry,
// preserving CreatedAt across updates the way Session/Queue mutations
// do.
func (c *Core) UpsertAgentRole(key, displayName, description string) (*types.AgentRole, error) {
	if key == "" {
		return nil, corerr.Validation("agent role key must be non-empty")
	}
	now := c.clock.Now()
	role := &types.AgentRole{Key: key, DisplayName: displayName, Description: description, CreatedAt: now, UpdatedAt: now}
	switch existing, err := c.store.GetAgentRole(key); {
	case err == nil:
		role.CreatedAt = existing.CreatedAt
	case corerr.Is(err, corerr.KindNotFound):
		// first write for this key; CreatedAt already set to now.
	default:
		return nil, err
	}
	if err := c.store.UpsertAgentRole(role); err != nil {
		return nil, err
	}
	return role, nil
}

func (c *Core) GetAgentRole(key string) (*types.AgentRole, error) {
	return c.store.GetAgentRole(key)
}
func (c *Core) ListAgentRoles() ([]*types.AgentRole, error) { return c.store.ListAgentRoles() }

// AutoFail and MarkStaleWarned are invoked by the Supervisor, not the
// external control surface, but are exposed here so Supervisor never
// needs to reach past Core into Store directly.
func (c *Core) AutoFail(taskID, reason string) (*types.Task, error) {
	return c.store.AutoFail(taskID, reason)
}

func (c *Core) MarkStaleWarned(taskID string) error {
	return c.store.MarkStaleWarned(taskID)
}

// PurgeTerminalOlderThan deletes terminal tasks whose finished_at
// falls before now()-retention, per spec.md §4.6's purge loop.
func (c *Core) PurgeTerminalOlderThan(retention time.Duration, statuses ...types.TaskStatus) (int, error) {
	cutoff := c.clock.Now().Add(-retention)
	return c.store.PurgeTerminalOlderThan(cutoff, statuses...)
}
