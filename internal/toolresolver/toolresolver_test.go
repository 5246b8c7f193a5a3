package toolresolver

import (
	"testing"

	"github.com/sparkqdev/sparkq/internal/config"
	"github.com/sparkqdev/sparkq/internal/corerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Tools["run_tests"] = config.ToolConfig{TaskClass: "FAST_SCRIPT"}
	cfg.Tools["deep_refactor"] = config.ToolConfig{TaskClass: "LLM_HEAVY"}
	cfg.Tools["lint"] = config.ToolConfig{TaskClass: "FAST_SCRIPT", TimeoutOverride: 15}
	return cfg
}

func TestResolveUsesClassDefault(t *testing.T) {
	r := New(testConfig())
	class, timeout, err := r.Resolve("run_tests", 0)
	require.NoError(t, err)
	assert.EqualValues(t, "FAST_SCRIPT", class)
	assert.Equal(t, 30, timeout)
}

func TestResolveEnqueueOverrideWins(t *testing.T) {
	r := New(testConfig())
	_, timeout, err := r.Resolve("run_tests", 120)
	require.NoError(t, err)
	assert.Equal(t, 120, timeout)
}

func TestResolvePerToolOverride(t *testing.T) {
	r := New(testConfig())
	_, timeout, err := r.Resolve("lint", 0)
	require.NoError(t, err)
	assert.Equal(t, 15, timeout)
}

func TestResolveUnknownToolIsValidationError(t *testing.T) {
	r := New(testConfig())
	_, _, err := r.Resolve("nonexistent_tool", 0)
	require.Error(t, err)
	assert.True(t, corerr.Is(err, corerr.KindValidation))
}

func TestResolveHeavyClassDefault(t *testing.T) {
	r := New(testConfig())
	_, timeout, err := r.Resolve("deep_refactor", 0)
	require.NoError(t, err)
	assert.Equal(t, 1800, timeout)
}
