// Package config loads SparkQ's server configuration from a YAML file,
// the way the teacher loads its node/cluster settings, generalized to
// the options spec.md §6 recognizes (server bind address, database
// path, purge/supervisor intervals, and the tool/task-class registry).
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// TaskClassConfig carries the default timeout for one task class.
type TaskClassConfig struct {
	Timeout int `yaml:"timeout"`
}

// ToolConfig maps one tool name to its task class and optional
// per-tool timeout override.
type ToolConfig struct {
	TaskClass       string `yaml:"task_class"`
	TimeoutOverride int    `yaml:"timeout_override"`
}

// Config is the top-level shape of sparkq.yaml.
type Config struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
		Mode string `yaml:"mode"`
	} `yaml:"database"`

	Purge struct {
		OlderThanDays int `yaml:"older_than_days"`
	} `yaml:"purge"`

	QueueRunner struct {
		PollIntervalSeconds     int `yaml:"poll_interval_seconds"`
		AutoFailIntervalSeconds int `yaml:"auto_fail_interval_seconds"`
	} `yaml:"queue_runner"`

	TaskClasses map[string]TaskClassConfig `yaml:"task_classes"`
	Tools       map[string]ToolConfig      `yaml:"tools"`
}

// DefaultTaskClass is the sentinel fallback ToolResolver uses when a
// tool is registered without a recognized task class default, per
// spec.md §4.4.
const DefaultTaskClass = "MEDIUM_SCRIPT"

// Default returns a Config with every ambient knob set to a sane
// local-development value.
func Default() *Config {
	c := &Config{}
	c.Server.Host = "127.0.0.1"
	c.Server.Port = 8777
	c.Database.Path = "./sparkq-data"
	c.Database.Mode = "fsync"
	c.Purge.OlderThanDays = 14
	c.QueueRunner.PollIntervalSeconds = 5
	c.QueueRunner.AutoFailIntervalSeconds = 30
	c.TaskClasses = map[string]TaskClassConfig{
		"FAST_SCRIPT":   {Timeout: 30},
		"MEDIUM_SCRIPT": {Timeout: 300},
		"LLM_LITE":      {Timeout: 600},
		"LLM_HEAVY":     {Timeout: 1800},
	}
	c.Tools = map[string]ToolConfig{}
	return c
}

// Load reads and parses the YAML file at path, overlaying it onto
// Default() so a partial config file only needs to set what it wants
// to change.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// PurgeRetention returns the purge threshold as a Duration.
func (c *Config) PurgeRetention() time.Duration {
	return time.Duration(c.Purge.OlderThanDays) * 24 * time.Hour
}

// PollInterval returns the runner's watch-mode sleep as a Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.QueueRunner.PollIntervalSeconds) * time.Second
}

// AutoFailInterval returns the supervisor stale-loop period as a Duration.
func (c *Config) AutoFailInterval() time.Duration {
	return time.Duration(c.QueueRunner.AutoFailIntervalSeconds) * time.Second
}
