// Package idgen produces opaque, collision-resistant ids for each entity
// kind and assigns monotonic, human-readable friendly labels to tasks on
// a per-queue basis (spec.md §4.2).
package idgen

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// IdGen produces entity ids. Implementations must be safe for concurrent
// use, since concurrent ControlServer requests reach it through Core
// and Store.
type IdGen interface {
	NewSessionID() string
	NewQueueID() string
	NewTaskID() string
	// FriendlyLabel builds the human-readable label for the nth task
	// created in a queue (1-indexed), e.g. FriendlyLabel("Back End", 1)
	// -> "BACK-END-1". The caller is responsible for tracking n durably;
	// this function is pure.
	FriendlyLabel(queueName string, n int) string
}

// UUIDGen generates ids with google/uuid, the teacher's id-generation
// library of choice throughout pkg/scheduler and pkg/manager.
type UUIDGen struct{}

// New returns the default UUID-backed generator.
func New() UUIDGen { return UUIDGen{} }

func (UUIDGen) NewSessionID() string { return "sess_" + uuid.New().String() }
func (UUIDGen) NewQueueID() string   { return "q_" + uuid.New().String() }
func (UUIDGen) NewTaskID() string    { return "task_" + uuid.New().String() }

var friendlyLabelSanitizer = regexp.MustCompile(`[^A-Z0-9]+`)

// FriendlyLabel uppercases the queue name, replaces runs of non
// alphanumeric characters with a single hyphen, and appends the
// counter, e.g. "Back End" -> "BACK-END-1".
func (UUIDGen) FriendlyLabel(queueName string, n int) string {
	upper := strings.ToUpper(strings.TrimSpace(queueName))
	slug := friendlyLabelSanitizer.ReplaceAllString(upper, "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "QUEUE"
	}
	return fmt.Sprintf("%s-%d", slug, n)
}
