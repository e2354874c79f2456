package config

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"go.yaml.in/yaml/v3"

	"github.com/satococoa/shellrun/internal/command"
)

// Config represents the shellrun project configuration
type Config struct {
	Version  string          `yaml:"version" toml:"version"`
	Defaults Defaults        `yaml:"defaults,omitempty" toml:"defaults,omitempty"`
	Tasks    map[string]Task `yaml:"tasks,omitempty" toml:"tasks,omitempty"`

	// Internal field: file the configuration was read from, empty for defaults
	path string `yaml:"-" toml:"-"`
}

// Defaults are applied to every task unless the task overrides them
type Defaults struct {
	Shell        string            `yaml:"shell,omitempty" toml:"shell,omitempty"`
	MaxRetries   int               `yaml:"max_retries,omitempty" toml:"max_retries,omitempty"`
	RetryDelay   *Duration         `yaml:"retry_delay,omitempty" toml:"retry_delay,omitempty"`
	PollInterval *Duration         `yaml:"poll_interval,omitempty" toml:"poll_interval,omitempty"`
	InheritEnv   *bool             `yaml:"inherit_env,omitempty" toml:"inherit_env,omitempty"` // nil = inherit
	Env          map[string]string `yaml:"env,omitempty" toml:"env,omitempty"`
}

// Task is a named command
type Task struct {
	Description string            `yaml:"description,omitempty" toml:"description,omitempty"`
	Command     string            `yaml:"command" toml:"command"`
	WorkDir     string            `yaml:"work_dir,omitempty" toml:"work_dir,omitempty"`
	Shell       string            `yaml:"shell,omitempty" toml:"shell,omitempty"`
	Env         map[string]string `yaml:"env,omitempty" toml:"env,omitempty"`
	MaxRetries  int               `yaml:"max_retries,omitempty" toml:"max_retries,omitempty"`
	RetryDelay  *Duration         `yaml:"retry_delay,omitempty" toml:"retry_delay,omitempty"`
	Blocking    *bool             `yaml:"blocking,omitempty" toml:"blocking,omitempty"` // nil = true
	DependsOn   []string          `yaml:"depends_on,omitempty" toml:"depends_on,omitempty"`
}

const (
	ConfigFileName        = ".shellrun.yml"
	TOMLConfigFileName    = ".shellrun.toml"
	CurrentVersion        = "1.0"
	configFilePermissions = 0o600
)

// LoadConfig loads .shellrun.yml, or .shellrun.toml when no YAML file exists,
// from dir. Without either file the default configuration is returned.
func LoadConfig(dir string) (*Config, error) {
	for _, name := range []string{ConfigFileName, TOMLConfigFileName} {
		configPath := filepath.Join(dir, name)
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			continue
		}
		return LoadConfigFile(configPath)
	}

	return &Config{Version: CurrentVersion}, nil
}

// LoadConfigFile loads a configuration file, choosing the decoder by extension
func LoadConfigFile(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if isTOML(configPath) {
		err = toml.Unmarshal(data, &config)
	} else {
		err = yaml.Unmarshal(data, &config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	config.path = configPath
	return &config, nil
}

// SaveConfig saves configuration to .shellrun.yml in dir
func SaveConfig(dir string, config *Config) error {
	return SaveConfigFile(filepath.Join(dir, ConfigFileName), config)
}

// SaveConfigFile saves configuration, choosing the encoder by extension
func SaveConfigFile(configPath string, config *Config) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if isTOML(configPath) {
		data, err = toml.Marshal(config)
	} else {
		data, err = yaml.Marshal(config)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, configFilePermissions); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	config.path = configPath
	return nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Version == "" {
		c.Version = CurrentVersion
	}

	if c.Defaults.MaxRetries < 0 {
		return fmt.Errorf("defaults: max_retries must not be negative, got %d", c.Defaults.MaxRetries)
	}
	if err := c.Defaults.RetryDelay.validate("defaults: retry_delay"); err != nil {
		return err
	}
	if err := c.Defaults.PollInterval.validate("defaults: poll_interval"); err != nil {
		return err
	}

	for _, name := range c.TaskNames() {
		task := c.Tasks[name]
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("task name must not be empty")
		}
		if err := task.Validate(); err != nil {
			return fmt.Errorf("invalid task '%s': %w", name, err)
		}
		for _, dep := range task.DependsOn {
			if _, ok := c.Tasks[dep]; !ok {
				return fmt.Errorf("invalid task '%s': depends on unknown task '%s'", name, dep)
			}
		}
	}

	return nil
}

// Validate validates a single task configuration
func (t *Task) Validate() error {
	if strings.TrimSpace(t.Command) == "" {
		return fmt.Errorf("task requires 'command' field")
	}
	if t.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative, got %d", t.MaxRetries)
	}
	return t.RetryDelay.validate("retry_delay")
}

// Path returns the file the configuration was loaded from or saved to
func (c *Config) Path() string {
	return c.path
}

// Dir returns the directory relative task paths are resolved against
func (c *Config) Dir() string {
	if c.path == "" {
		return ""
	}
	return filepath.Dir(c.path)
}

// HasTasks returns true if any task is configured
func (c *Config) HasTasks() bool {
	return len(c.Tasks) > 0
}

// TaskNames returns the configured task names in sorted order
func (c *Config) TaskNames() []string {
	return slices.Sorted(maps.Keys(c.Tasks))
}

// ExecutionOrder returns the tasks to run for name, dependencies first.
// Each task appears once even when several tasks depend on it.
func (c *Config) ExecutionOrder(name string) ([]string, error) {
	var (
		order   []string
		visited = make(map[string]bool)
		active  = make(map[string]bool)
		visit   func(string, []string) error
	)

	visit = func(current string, path []string) error {
		if active[current] {
			return fmt.Errorf("task dependency cycle: %s", strings.Join(append(path, current), " → "))
		}
		if visited[current] {
			return nil
		}
		task, ok := c.Tasks[current]
		if !ok {
			return fmt.Errorf("unknown task '%s'", current)
		}

		active[current] = true
		next := append(slices.Clone(path), current)
		for _, dep := range task.DependsOn {
			if err := visit(dep, next); err != nil {
				return err
			}
		}
		active[current] = false
		visited[current] = true
		order = append(order, current)
		return nil
	}

	if err := visit(name, nil); err != nil {
		return nil, err
	}
	return order, nil
}

// CommandFor builds the command for a task, applying defaults. Relative work
// directories resolve against the configuration file's directory.
func (c *Config) CommandFor(name string) (command.Command, error) {
	task, ok := c.Tasks[name]
	if !ok {
		return command.Command{}, fmt.Errorf("unknown task '%s'", name)
	}

	opts := []command.Option{}

	if shell := firstNonEmpty(task.Shell, c.Defaults.Shell); shell != "" {
		opts = append(opts, command.WithExecutable(shell))
	}

	maxRetries := command.DefaultMaxRetries
	if c.Defaults.MaxRetries > 0 {
		maxRetries = c.Defaults.MaxRetries
	}
	if task.MaxRetries > 0 {
		maxRetries = task.MaxRetries
	}
	retryDelay := command.DefaultRetryDelay
	if c.Defaults.RetryDelay != nil {
		retryDelay = c.Defaults.RetryDelay.Duration()
	}
	if task.RetryDelay != nil {
		retryDelay = task.RetryDelay.Duration()
	}
	opts = append(opts, command.WithRetries(maxRetries, retryDelay))

	if c.Defaults.PollInterval != nil && c.Defaults.PollInterval.Duration() > 0 {
		opts = append(opts, command.WithPollInterval(c.Defaults.PollInterval.Duration()))
	}

	if env := mergeEnv(c.Defaults.Env, task.Env); env != nil {
		opts = append(opts, command.WithEnv(env))
		if c.Defaults.InheritEnv == nil || *c.Defaults.InheritEnv {
			opts = append(opts, command.WithInheritEnv())
		}
	} else if c.Defaults.InheritEnv != nil && !*c.Defaults.InheritEnv {
		opts = append(opts, command.WithEnv(map[string]string{}))
	}

	if task.WorkDir != "" {
		workDir := task.WorkDir
		if !filepath.IsAbs(workDir) && c.Dir() != "" {
			workDir = filepath.Join(c.Dir(), workDir)
		}
		opts = append(opts, command.WithWorkDir(workDir))
	}

	if task.Blocking != nil && !*task.Blocking {
		opts = append(opts, command.NonBlocking())
	}

	return command.New(task.Command, opts...), nil
}

func mergeEnv(base, override map[string]string) map[string]string {
	if base == nil && override == nil {
		return nil
	}
	env := make(map[string]string, len(base)+len(override))
	maps.Copy(env, base)
	maps.Copy(env, override)
	return env
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
