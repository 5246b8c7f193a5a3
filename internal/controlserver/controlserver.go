// Package controlserver implements the thin local HTTP surface of
// spec.md §4.7/§6: it translates JSON requests into Core calls, maps
// classified errors to HTTP status codes per spec.md §7, and serializes
// entities in a stable shape. Grounded on the teacher's
// pkg/api/health.go — a plain net/http.ServeMux wrapping a manager,
// generalized from a two-route health check into the full CRUD surface
// spec.md §6 names, and using the enhanced ServeMux method+wildcard
// routing patterns available since Go 1.22.
package controlserver

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/sparkqdev/sparkq/internal/core"
	"github.com/sparkqdev/sparkq/internal/corerr"
	"github.com/sparkqdev/sparkq/internal/log"
	"github.com/sparkqdev/sparkq/internal/metrics"
	"github.com/sparkqdev/sparkq/internal/store"
	"github.com/sparkqdev/sparkq/internal/types"
)

// Version is the build identifier the UI pins its assets against
// (spec.md §6, GET /api/version). It is a var, not a const, so
// cmd/sparkqd can set it at startup from its own build Version.
var Version = "dev"

// Server is SparkQ's local HTTP control surface. It binds only to the
// loopback or an explicitly configured local address and performs no
// authentication, by design (spec.md §4.7: single-user, local trust).
type Server struct {
	core   *core.Core
	mux    *http.ServeMux
	logger zerolog.Logger
}

// New builds a Server wired to the given Core and registers every
// route in spec.md §6.
func New(c *core.Core) *Server {
	s := &Server{core: c, mux: http.NewServeMux(), logger: log.WithComponent("controlserver")}
	s.routes()
	return s
}

// Handler returns the http.Handler for embedding in an *http.Server or
// tests via httptest.
func (s *Server) Handler() http.Handler { return s.instrument(s.mux) }

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/version", s.handleVersion)

	s.mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	s.mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	s.mux.HandleFunc("PUT /api/sessions/{id}", s.handleUpdateSession)
	s.mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)

	s.mux.HandleFunc("POST /api/queues", s.handleCreateQueue)
	s.mux.HandleFunc("GET /api/queues", s.handleListQueues)
	s.mux.HandleFunc("GET /api/queues/with-queued", s.handleQueuesWithQueued)
	s.mux.HandleFunc("GET /api/queues/by-name/{name}", s.handleGetQueueByName)
	s.mux.HandleFunc("GET /api/queues/{id}", s.handleGetQueue)
	s.mux.HandleFunc("PUT /api/queues/{id}", s.handleUpdateQueue)
	s.mux.HandleFunc("PUT /api/queues/{id}/archive", s.handleArchiveQueue)
	s.mux.HandleFunc("PUT /api/queues/{id}/unarchive", s.handleUnarchiveQueue)
	s.mux.HandleFunc("DELETE /api/queues/{id}", s.handleDeleteQueue)

	s.mux.HandleFunc("POST /api/tasks", s.handleEnqueue)
	s.mux.HandleFunc("GET /api/tasks", s.handleListTasks)
	s.mux.HandleFunc("GET /api/tasks/{id}", s.handleGetTask)
	s.mux.HandleFunc("PUT /api/tasks/{id}", s.handleEditTask)
	s.mux.HandleFunc("DELETE /api/tasks/{id}", s.handleDeleteTask)
	s.mux.HandleFunc("POST /api/tasks/{id}/claim", s.handleClaim)
	s.mux.HandleFunc("POST /api/tasks/{id}/complete", s.handleComplete)
	s.mux.HandleFunc("POST /api/tasks/{id}/fail", s.handleFail)
	s.mux.HandleFunc("POST /api/tasks/{id}/requeue", s.handleRequeue)

	s.mux.HandleFunc("PUT /api/agent-roles/{key}", s.handleUpsertAgentRole)
	s.mux.HandleFunc("GET /api/agent-roles", s.handleListAgentRoles)
	s.mux.HandleFunc("GET /api/agent-roles/{key}", s.handleGetAgentRole)

	s.mux.Handle("GET /metrics", metrics.Handler())
}

// instrument wraps every route with the request-count/duration
// metrics the teacher records for its gRPC-facing HTTP health server,
// generalized to track method+path+status for the whole surface.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		metrics.ControlServerRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
		metrics.ControlServerRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rec.status)).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// --- response helpers ---

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// writeError maps a classified CoreError to the HTTP status table in
// spec.md §7. Unclassified errors are surfaced as 500 with kind
// "internal" and logged; no correlation marker is attached to the
// response.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := corerr.KindInternal
	if ce, ok := asCoreError(err); ok {
		kind = ce.Kind
	}

	status := http.StatusInternalServerError
	switch kind {
	case corerr.KindNotFound:
		status = http.StatusNotFound
	case corerr.KindPrecondition, corerr.KindConflict:
		status = http.StatusConflict
	case corerr.KindValidation:
		status = http.StatusBadRequest
	case corerr.KindTransient:
		status = http.StatusServiceUnavailable
	case corerr.KindInternal:
		status = http.StatusInternalServerError
		s.logger.Error().Err(err).Msg("internal error")
	}

	writeJSON(w, status, errorBody{Error: err.Error(), Kind: string(kind)})
}

func asCoreError(err error) (*corerr.CoreError, bool) {
	ce, ok := err.(*corerr.CoreError)
	return ce, ok
}

// --- health / version ---

type healthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

type versionResponse struct {
	Version string `json:"version"`
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, versionResponse{Version: Version})
}

// --- sessions ---

type createSessionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, corerr.Validation("malformed JSON body"))
		return
	}
	session, err := s.core.CreateSession(req.Name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	log.WithSessionID(s.logger, session.ID).Info().Str("name", session.Name).Msg("session created")
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.core.ListSessions()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

type updateSessionRequest struct {
	Name *string `json:"name,omitempty"`
	End  bool    `json:"end,omitempty"`
}

func (s *Server) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req updateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, corerr.Validation("malformed JSON body"))
		return
	}

	var session *types.Session
	var err error
	if req.Name != nil {
		session, err = s.core.RenameSession(id, *req.Name)
		if err != nil {
			s.writeError(w, err)
			return
		}
	}
	if req.End {
		session, err = s.core.EndSession(id)
		if err != nil {
			s.writeError(w, err)
			return
		}
	}
	if session == nil {
		session, err = s.core.GetSession(id)
		if err != nil {
			s.writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.core.DeleteSession(id); err != nil {
		s.writeError(w, err)
		return
	}
	log.WithSessionID(s.logger, id).Info().Msg("session deleted")
	w.WriteHeader(http.StatusNoContent)
}

// --- queues ---

type createQueueRequest struct {
	SessionID    string `json:"session_id"`
	Name         string `json:"name"`
	Instructions string `json:"instructions,omitempty"`
}

func (s *Server) handleCreateQueue(w http.ResponseWriter, r *http.Request) {
	var req createQueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, corerr.Validation("malformed JSON body"))
		return
	}
	queue, err := s.core.CreateQueue(req.SessionID, req.Name, req.Instructions)
	if err != nil {
		s.writeError(w, err)
		return
	}
	log.WithQueueID(s.logger, queue.ID).Info().Str("name", queue.Name).Msg("queue created")
	writeJSON(w, http.StatusCreated, queue)
}

func (s *Server) handleListQueues(w http.ResponseWriter, r *http.Request) {
	queues, err := s.core.ListQueues()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, queues)
}

func (s *Server) handleGetQueue(w http.ResponseWriter, r *http.Request) {
	queue, err := s.core.GetQueue(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, queue)
}

// handleGetQueueByName backs the Runner's startup resolution of a
// queue name into an id (spec.md §4.8: the Runner is invoked with a
// queue name on the command line).
func (s *Server) handleGetQueueByName(w http.ResponseWriter, r *http.Request) {
	queue, err := s.core.GetQueueByName(r.PathValue("name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, queue)
}

type updateQueueRequest struct {
	Name                *string  `json:"name,omitempty"`
	Instructions        *string  `json:"instructions,omitempty"`
	DefaultAgentRoleKey *string  `json:"default_agent_role_key,omitempty"`
	CodexSessionID      *string  `json:"codex_session_id,omitempty"`
	LLMSessions         []string `json:"llm_sessions,omitempty"`
	ModelProfile        *string  `json:"model_profile,omitempty"`
}

func (s *Server) handleUpdateQueue(w http.ResponseWriter, r *http.Request) {
	var req updateQueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, corerr.Validation("malformed JSON body"))
		return
	}
	queue, err := s.core.UpdateQueue(r.PathValue("id"), core.UpdateQueueInput{
		Name:                req.Name,
		Instructions:        req.Instructions,
		DefaultAgentRoleKey: req.DefaultAgentRoleKey,
		CodexSessionID:      req.CodexSessionID,
		LLMSessions:         req.LLMSessions,
		ModelProfile:        req.ModelProfile,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, queue)
}

func (s *Server) handleArchiveQueue(w http.ResponseWriter, r *http.Request) {
	queue, err := s.core.ArchiveQueue(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, queue)
}

func (s *Server) handleUnarchiveQueue(w http.ResponseWriter, r *http.Request) {
	queue, err := s.core.UnarchiveQueue(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, queue)
}

func (s *Server) handleDeleteQueue(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	cascade := r.URL.Query().Get("cascade") == "true"
	if err := s.core.DeleteQueue(id, cascade); err != nil {
		s.writeError(w, err)
		return
	}
	log.WithQueueID(s.logger, id).Info().Bool("cascade", cascade).Msg("queue deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleQueuesWithQueued(w http.ResponseWriter, r *http.Request) {
	result, err := s.core.QueuesWithQueuedTasks()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// --- tasks ---

type enqueueRequest struct {
	QueueID  string          `json:"queue_id"`
	ToolName string          `json:"tool_name"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Timeout  int             `json:"timeout,omitempty"`
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, corerr.Validation("malformed JSON body"))
		return
	}
	task, err := s.core.Enqueue(req.QueueID, req.ToolName, req.Payload, req.Timeout)
	if err != nil {
		s.writeError(w, err)
		return
	}
	metrics.TasksEnqueuedTotal.WithLabelValues(req.QueueID, req.ToolName).Inc()
	log.WithTask(s.logger, task.ID, task.FriendlyID).Info().Str("tool_name", req.ToolName).Msg("task enqueued")
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.TaskFilter{
		QueueID:   q.Get("queue_id"),
		StaleOnly: q.Get("stale") == "true",
	}
	if status := q.Get("status"); status != "" {
		filter.Status = types.TaskStatus(status)
		filter.HasStatus = true
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(q.Get("offset")); err == nil {
		filter.Offset = offset
	}

	tasks, total, err := s.core.ListTasks(filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listTasksResponse{Tasks: tasks, Total: total})
}

type listTasksResponse struct {
	Tasks []*types.Task `json:"tasks"`
	Total int           `json:"total"`
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.core.GetTask(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

type editTaskRequest struct {
	Payload      json.RawMessage `json:"payload,omitempty"`
	Timeout      int             `json:"timeout,omitempty"`
	AgentRoleKey string          `json:"agent_role_key,omitempty"`
}

func (s *Server) handleEditTask(w http.ResponseWriter, r *http.Request) {
	var req editTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, corerr.Validation("malformed JSON body"))
		return
	}
	task, err := s.core.EditTask(r.PathValue("id"), req.Payload, req.Timeout, req.AgentRoleKey)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.core.DeleteTask(r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	descriptor, err := s.core.Claim(r.PathValue("id"))
	if err != nil {
		if corerr.Is(err, corerr.KindConflict) {
			metrics.TasksClaimConflictsTotal.Inc()
		}
		s.writeError(w, err)
		return
	}
	metrics.TasksClaimedTotal.Inc()
	log.WithTask(s.logger, descriptor.ID, descriptor.FriendlyID).Info().Msg("task claimed")
	writeJSON(w, http.StatusOK, descriptor)
}

type completeRequest struct {
	ResultSummary string          `json:"result_summary"`
	ResultData    json.RawMessage `json:"result_data,omitempty"`
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, corerr.Validation("malformed JSON body"))
		return
	}
	task, err := s.core.Complete(r.PathValue("id"), req.ResultSummary, req.ResultData)
	if err != nil {
		s.writeError(w, err)
		return
	}
	metrics.TasksCompletedTotal.Inc()
	log.WithTask(s.logger, task.ID, task.FriendlyID).Info().Msg("task completed")
	writeJSON(w, http.StatusOK, task)
}

type failRequest struct {
	ErrorMessage string `json:"error_message"`
	ErrorType    string `json:"error_type,omitempty"`
}

func (s *Server) handleFail(w http.ResponseWriter, r *http.Request) {
	var req failRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, corerr.Validation("malformed JSON body"))
		return
	}
	task, err := s.core.Fail(r.PathValue("id"), req.ErrorMessage)
	if err != nil {
		s.writeError(w, err)
		return
	}
	metrics.TasksFailedTotal.WithLabelValues("explicit").Inc()
	log.WithTask(s.logger, task.ID, task.FriendlyID).Warn().Str("error_message", req.ErrorMessage).Msg("task failed")
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleRequeue(w http.ResponseWriter, r *http.Request) {
	task, err := s.core.Requeue(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	metrics.TasksRequeuedTotal.Inc()
	log.WithTask(s.logger, task.ID, task.FriendlyID).Info().Msg("task requeued")
	writeJSON(w, http.StatusCreated, task)
}

// --- agent roles ---

type upsertAgentRoleRequest struct {
	DisplayName string `json:"display_name"`
	Description string `json:"description,omitempty"`
}

func (s *Server) handleUpsertAgentRole(w http.ResponseWriter, r *http.Request) {
	var req upsertAgentRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, corerr.Validation("malformed JSON body"))
		return
	}
	key := r.PathValue("key")
	role, err := s.core.UpsertAgentRole(key, req.DisplayName, req.Description)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info().Str("agent_role_key", key).Msg("agent role upserted")
	writeJSON(w, http.StatusOK, role)
}

func (s *Server) handleListAgentRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := s.core.ListAgentRoles()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, roles)
}

func (s *Server) handleGetAgentRole(w http.ResponseWriter, r *http.Request) {
	role, err := s.core.GetAgentRole(r.PathValue("key"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}
