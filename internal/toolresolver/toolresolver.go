// Package toolresolver implements the pure, read-only timeout
// resolution described in spec.md §4.4: given a tool name and an
// optional enqueue-time override, decide the effective timeout for a
// new task without touching the store.
package toolresolver

import (
	"fmt"

	"github.com/sparkqdev/sparkq/internal/config"
	"github.com/sparkqdev/sparkq/internal/corerr"
	"github.com/sparkqdev/sparkq/internal/types"
)

// ToolResolver resolves (tool_name, override) pairs to an effective
// timeout and task class, consulting the configured tool/task-class
// registry loaded at startup.
type ToolResolver struct {
	taskClasses map[string]config.TaskClassConfig
	tools       map[string]config.ToolConfig
}

// New builds a ToolResolver from the loaded configuration's registries.
func New(cfg *config.Config) *ToolResolver {
	return &ToolResolver{taskClasses: cfg.TaskClasses, tools: cfg.Tools}
}

// Resolve returns the task class and effective timeout (seconds) for
// toolName. override, when positive, always wins. An unrecognized
// tool name produces a Validation error (spec.md §4.4, §7).
func (r *ToolResolver) Resolve(toolName string, override int) (types.TaskClass, int, error) {
	tool, ok := r.tools[toolName]
	if !ok {
		return "", 0, corerr.Validation(fmt.Sprintf("unknown tool %q", toolName))
	}

	class := types.TaskClass(tool.TaskClass)
	if override > 0 {
		return class, override, nil
	}
	if tool.TimeoutOverride > 0 {
		return class, tool.TimeoutOverride, nil
	}
	if classCfg, ok := r.taskClasses[tool.TaskClass]; ok && classCfg.Timeout > 0 {
		return class, classCfg.Timeout, nil
	}
	if fallback, ok := r.taskClasses[config.DefaultTaskClass]; ok && fallback.Timeout > 0 {
		return class, fallback.Timeout, nil
	}
	return "", 0, corerr.Internal(fmt.Sprintf("no timeout configured for tool %q", toolName), nil)
}
