package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/satococoa/shellrun/internal/command"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestLoadConfig_NonExistentFile(t *testing.T) {
	tempDir := t.TempDir()

	config, err := LoadConfig(tempDir)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if config.Version != CurrentVersion {
		t.Errorf("Expected version %s, got %s", CurrentVersion, config.Version)
	}

	if config.HasTasks() {
		t.Error("Expected no tasks in default config")
	}

	if config.Path() != "" {
		t.Errorf("Expected empty path for default config, got %s", config.Path())
	}
}

func TestLoadConfig_ValidYAML(t *testing.T) {
	tempDir := t.TempDir()
	writeConfig(t, tempDir, ConfigFileName, `version: "1.0"
defaults:
  shell: /bin/bash
  max_retries: 2
  retry_delay: 1.5
  poll_interval: 20ms
  env:
    CI: "true"
tasks:
  build:
    description: Build everything
    command: make build
    work_dir: ./sub
    retry_delay: 250ms
  test:
    command: go test ./...
    depends_on: [build]
    blocking: false
`)

	config, err := LoadConfig(tempDir)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if config.Defaults.Shell != "/bin/bash" {
		t.Errorf("Expected shell '/bin/bash', got %s", config.Defaults.Shell)
	}
	if config.Defaults.RetryDelay.Duration() != 1500*time.Millisecond {
		t.Errorf("Expected retry_delay 1.5s, got %s", config.Defaults.RetryDelay.Duration())
	}
	if config.Defaults.PollInterval.Duration() != 20*time.Millisecond {
		t.Errorf("Expected poll_interval 20ms, got %s", config.Defaults.PollInterval.Duration())
	}
	if got := config.TaskNames(); !reflect.DeepEqual(got, []string{"build", "test"}) {
		t.Errorf("Expected tasks [build test], got %v", got)
	}
	if config.Tasks["build"].RetryDelay.Duration() != 250*time.Millisecond {
		t.Errorf("Expected build retry_delay 250ms, got %s", config.Tasks["build"].RetryDelay.Duration())
	}
	if config.Path() != filepath.Join(tempDir, ConfigFileName) {
		t.Errorf("Expected path to be recorded, got %s", config.Path())
	}
}

func TestLoadConfig_ValidTOML(t *testing.T) {
	tempDir := t.TempDir()
	writeConfig(t, tempDir, TOMLConfigFileName, `version = "1.0"

[defaults]
max_retries = 3
retry_delay = "2s"

[tasks.lint]
command = "golangci-lint run"
blocking = false
`)

	config, err := LoadConfig(tempDir)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if config.Defaults.MaxRetries != 3 {
		t.Errorf("Expected max_retries 3, got %d", config.Defaults.MaxRetries)
	}
	if config.Defaults.RetryDelay.Duration() != 2*time.Second {
		t.Errorf("Expected retry_delay 2s, got %s", config.Defaults.RetryDelay.Duration())
	}
	lint, ok := config.Tasks["lint"]
	if !ok {
		t.Fatal("Expected lint task")
	}
	if lint.Command != "golangci-lint run" {
		t.Errorf("Expected lint command, got %s", lint.Command)
	}
	if lint.Blocking == nil || *lint.Blocking {
		t.Error("Expected lint to be non-blocking")
	}
}

func TestLoadConfig_YAMLTakesPrecedence(t *testing.T) {
	tempDir := t.TempDir()
	writeConfig(t, tempDir, ConfigFileName, "tasks:\n  from-yaml:\n    command: echo yaml\n")
	writeConfig(t, tempDir, TOMLConfigFileName, "[tasks.from-toml]\ncommand = \"echo toml\"\n")

	config, err := LoadConfig(tempDir)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if _, ok := config.Tasks["from-yaml"]; !ok {
		t.Errorf("Expected YAML config to be loaded, got tasks %v", config.TaskNames())
	}
}

func TestLoadConfig_InvalidFiles(t *testing.T) {
	tests := []struct {
		name        string
		file        string
		content     string
		expectedErr string
	}{
		{
			name:        "invalid yaml",
			file:        ConfigFileName,
			content:     "tasks: [unclosed",
			expectedErr: "failed to parse config file",
		},
		{
			name:        "invalid toml",
			file:        TOMLConfigFileName,
			content:     "tasks = = 1",
			expectedErr: "failed to parse config file",
		},
		{
			name:        "missing command",
			file:        ConfigFileName,
			content:     "tasks:\n  empty:\n    work_dir: .\n",
			expectedErr: "task requires 'command' field",
		},
		{
			name:        "invalid duration",
			file:        ConfigFileName,
			content:     "defaults:\n  retry_delay: soon\n",
			expectedErr: "invalid duration 'soon'",
		},
		{
			name:        "negative retries",
			file:        ConfigFileName,
			content:     "tasks:\n  t:\n    command: 'true'\n    max_retries: -1\n",
			expectedErr: "max_retries must not be negative",
		},
		{
			name:        "unknown dependency",
			file:        ConfigFileName,
			content:     "tasks:\n  t:\n    command: 'true'\n    depends_on: [missing]\n",
			expectedErr: "depends on unknown task 'missing'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tempDir := t.TempDir()
			writeConfig(t, tempDir, tt.file, tt.content)

			_, err := LoadConfig(tempDir)
			if err == nil {
				t.Fatal("Expected error")
			}
			if !strings.Contains(err.Error(), tt.expectedErr) {
				t.Errorf("Expected error containing %q, got %v", tt.expectedErr, err)
			}
		})
	}
}

func TestSaveConfig(t *testing.T) {
	for _, name := range []string{ConfigFileName, TOMLConfigFileName} {
		t.Run(name, func(t *testing.T) {
			tempDir := t.TempDir()
			blocking := false
			config := &Config{
				Defaults: Defaults{
					MaxRetries: 2,
					RetryDelay: NewDuration(3 * time.Second),
				},
				Tasks: map[string]Task{
					"serve": {Command: "python -m http.server", Blocking: &blocking},
				},
			}

			if err := SaveConfigFile(filepath.Join(tempDir, name), config); err != nil {
				t.Fatalf("Failed to save config: %v", err)
			}

			loaded, err := LoadConfig(tempDir)
			if err != nil {
				t.Fatalf("Failed to load saved config: %v", err)
			}

			if loaded.Version != CurrentVersion {
				t.Errorf("Expected version %s, got %s", CurrentVersion, loaded.Version)
			}
			if loaded.Defaults.RetryDelay.Duration() != 3*time.Second {
				t.Errorf("Expected retry_delay 3s, got %s", loaded.Defaults.RetryDelay.Duration())
			}
			if loaded.Tasks["serve"].Command != "python -m http.server" {
				t.Errorf("Expected serve task, got %v", loaded.Tasks)
			}
		})
	}
}

func TestSaveConfig_Invalid(t *testing.T) {
	config := &Config{Tasks: map[string]Task{"broken": {}}}

	if err := SaveConfig(t.TempDir(), config); err == nil {
		t.Error("Expected error saving invalid config")
	}
}

func TestConfig_ExecutionOrder(t *testing.T) {
	config := &Config{Tasks: map[string]Task{
		"deploy":  {Command: "deploy", DependsOn: []string{"build", "test"}},
		"test":    {Command: "test", DependsOn: []string{"build"}},
		"build":   {Command: "build", DependsOn: []string{"prepare"}},
		"prepare": {Command: "prepare"},
	}}

	order, err := config.ExecutionOrder("deploy")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	expected := []string{"prepare", "build", "test", "deploy"}
	if !reflect.DeepEqual(order, expected) {
		t.Errorf("Expected order %v, got %v", expected, order)
	}
}

func TestConfig_ExecutionOrder_Cycle(t *testing.T) {
	config := &Config{Tasks: map[string]Task{
		"a": {Command: "a", DependsOn: []string{"b"}},
		"b": {Command: "b", DependsOn: []string{"a"}},
	}}

	_, err := config.ExecutionOrder("a")
	if err == nil {
		t.Fatal("Expected cycle error")
	}
	if !strings.Contains(err.Error(), "a → b → a") {
		t.Errorf("Expected cycle path in error, got %v", err)
	}
}

func TestConfig_CommandFor(t *testing.T) {
	tempDir := t.TempDir()
	path := writeConfig(t, tempDir, ConfigFileName, `defaults:
  shell: /bin/bash
  max_retries: 2
  retry_delay: 500ms
  poll_interval: 5ms
  env:
    SHARED: base
    OVERRIDE: base
tasks:
  build:
    command: make
    work_dir: sub
    env:
      OVERRIDE: task
    max_retries: 4
  plain:
    command: echo plain
    blocking: false
`)
	config, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	t.Run("task overrides defaults", func(t *testing.T) {
		cmd, err := config.CommandFor("build")
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}

		if cmd.Text != "make" {
			t.Errorf("Expected text 'make', got %s", cmd.Text)
		}
		if cmd.Executable != "/bin/bash" {
			t.Errorf("Expected shell '/bin/bash', got %s", cmd.Executable)
		}
		if cmd.MaxRetries != 4 {
			t.Errorf("Expected 4 retries, got %d", cmd.MaxRetries)
		}
		if cmd.RetryDelay != 500*time.Millisecond {
			t.Errorf("Expected 500ms delay, got %s", cmd.RetryDelay)
		}
		if cmd.PollInterval != 5*time.Millisecond {
			t.Errorf("Expected 5ms poll interval, got %s", cmd.PollInterval)
		}
		if cmd.WorkDir != filepath.Join(tempDir, "sub") {
			t.Errorf("Expected work dir relative to config, got %s", cmd.WorkDir)
		}
		expectedEnv := map[string]string{"SHARED": "base", "OVERRIDE": "task"}
		if !reflect.DeepEqual(cmd.Env, expectedEnv) {
			t.Errorf("Expected env %v, got %v", expectedEnv, cmd.Env)
		}
		if !cmd.InheritEnv {
			t.Error("Expected env to be layered over the caller's")
		}
		if !cmd.Blocking {
			t.Error("Expected blocking by default")
		}
	})

	t.Run("non-blocking task", func(t *testing.T) {
		cmd, err := config.CommandFor("plain")
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if cmd.Blocking {
			t.Error("Expected non-blocking command")
		}
		if cmd.MaxRetries != 2 {
			t.Errorf("Expected default retries 2, got %d", cmd.MaxRetries)
		}
	})

	t.Run("unknown task", func(t *testing.T) {
		if _, err := config.CommandFor("missing"); err == nil {
			t.Error("Expected error for unknown task")
		}
	})
}

func TestConfig_CommandFor_Environment(t *testing.T) {
	inherit := false

	tests := []struct {
		name        string
		defaults    Defaults
		expectedEnv map[string]string
		inherit     bool
	}{
		{
			name:        "no env inherits the caller's",
			expectedEnv: nil,
		},
		{
			name:        "inherit disabled without env clears the environment",
			defaults:    Defaults{InheritEnv: &inherit},
			expectedEnv: map[string]string{},
		},
		{
			name:        "inherit disabled with env passes only those variables",
			defaults:    Defaults{InheritEnv: &inherit, Env: map[string]string{"ONLY": "1"}},
			expectedEnv: map[string]string{"ONLY": "1"},
		},
		{
			name:        "env is layered by default",
			defaults:    Defaults{Env: map[string]string{"EXTRA": "1"}},
			expectedEnv: map[string]string{"EXTRA": "1"},
			inherit:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &Config{Defaults: tt.defaults, Tasks: map[string]Task{"t": {Command: "env"}}}

			cmd, err := config.CommandFor("t")
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}

			if !reflect.DeepEqual(cmd.Env, tt.expectedEnv) {
				t.Errorf("Expected env %#v, got %#v", tt.expectedEnv, cmd.Env)
			}
			if cmd.InheritEnv != tt.inherit {
				t.Errorf("Expected InheritEnv %v, got %v", tt.inherit, cmd.InheritEnv)
			}
			if cmd.MaxRetries != command.DefaultMaxRetries || cmd.RetryDelay != command.DefaultRetryDelay {
				t.Errorf("Expected default retry policy, got %d/%s", cmd.MaxRetries, cmd.RetryDelay)
			}
		})
	}
}
