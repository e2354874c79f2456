package framework

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"
)

const (
	dirPerm  = 0755
	filePerm = 0600
)

type TestEnvironment struct {
	t              *testing.T
	tmpDir         string
	shellrunBinary string
	cleanup        []func()
}

func NewTestEnvironment(t *testing.T) *TestEnvironment {
	t.Helper()

	tmpDir := t.TempDir()
	env := &TestEnvironment{
		t:       t,
		tmpDir:  tmpDir,
		cleanup: []func(){},
	}

	env.buildShellrun()

	return env
}

func (e *TestEnvironment) buildShellrun() {
	e.t.Helper()

	binary := filepath.Join(e.tmpDir, "shellrun")
	if prebuilt := os.Getenv("SHELLRUN_E2E_BINARY"); prebuilt != "" {
		binary = prebuilt
		if _, err := os.Stat(binary); err != nil {
			e.t.Fatalf("Specified shellrun binary not found: %s", binary)
		}
	} else {
		projectRoot := e.findProjectRoot()
		cmd := exec.Command("go", "build", "-o", binary, "./cmd/shellrun")
		cmd.Dir = projectRoot
		if output, err := cmd.CombinedOutput(); err != nil {
			e.t.Fatalf("Failed to build shellrun binary: %v\nOutput: %s", err, output)
		}
	}

	binary = filepath.Clean(binary)
	if !filepath.IsAbs(binary) {
		absPath, err := filepath.Abs(binary)
		if err != nil {
			e.t.Fatalf("Failed to get absolute path for binary: %v", err)
		}
		binary = absPath
	}

	e.shellrunBinary = binary
}

func (e *TestEnvironment) findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		e.t.Fatalf("Failed to get working directory: %v", err)
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			e.t.Fatal("Could not find project root (go.mod)")
		}
		dir = parent
	}
}

// CreateProject creates an empty directory to run shellrun in.
func (e *TestEnvironment) CreateProject(name string) *Project {
	e.t.Helper()

	dir := filepath.Join(e.tmpDir, name)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		e.t.Fatalf("Failed to create directory: %v", err)
	}

	// Resolve symlinks so paths compare equal to what pwd -P prints
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		e.t.Fatalf("Failed to resolve directory %s: %v", dir, err)
	}

	return &Project{
		env:  e,
		path: resolved,
	}
}

func (e *TestEnvironment) writeFile(path, content string) {
	e.t.Helper()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		e.t.Fatalf("Failed to create directory %s: %v", dir, err)
	}

	if err := os.WriteFile(path, []byte(content), filePerm); err != nil {
		e.t.Fatalf("Failed to write file %s: %v", path, err)
	}
}

// RunShellrun runs the binary outside any project and returns combined output.
func (e *TestEnvironment) RunShellrun(args ...string) (string, error) {
	cmd := exec.Command(e.shellrunBinary, args...)
	cmd.Dir = e.tmpDir
	output, err := cmd.CombinedOutput()
	return string(output), err
}

func (e *TestEnvironment) TmpDir() string {
	return e.tmpDir
}

func (e *TestEnvironment) Cleanup() {
	for _, fn := range e.cleanup {
		fn()
	}
}

// Project is a working directory shellrun is run from.
type Project struct {
	env  *TestEnvironment
	path string
}

func (p *Project) command(args ...string) *exec.Cmd {
	cmd := exec.Command(p.env.shellrunBinary, args...)
	cmd.Dir = p.path
	cmd.Env = append(os.Environ(), "HOME="+p.env.tmpDir)
	return cmd
}

// RunShellrun runs the binary in the project and returns combined output.
func (p *Project) RunShellrun(args ...string) (string, error) {
	output, err := p.command(args...).CombinedOutput()
	return string(output), err
}

// Result is the separated output of one shellrun invocation.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
}

// RunShellrunSplit runs the binary and keeps stdout and stderr apart.
func (p *Project) RunShellrunSplit(args ...string) Result {
	var stdout, stderr bytes.Buffer
	cmd := p.command(args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{Stdout: stdout.String(), Stderr: stderr.String(), Err: err}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
	} else if err != nil {
		p.env.t.Fatalf("Failed to run shellrun: %v", err)
	}
	return result
}

// FirstLineWithin starts shellrun and returns the first stdout line it prints
// along with how long that took. The process is waited for before returning.
func (p *Project) FirstLineWithin(timeout time.Duration, args ...string) (string, time.Duration) {
	p.env.t.Helper()

	cmd := p.command(args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		p.env.t.Fatalf("Failed to open stdout pipe: %v", err)
	}

	started := time.Now()
	if err := cmd.Start(); err != nil {
		p.env.t.Fatalf("Failed to start shellrun: %v", err)
	}

	type lineResult struct {
		line string
		err  error
	}
	lines := make(chan lineResult, 1)
	reader := bufio.NewReader(stdout)
	go func() {
		line, err := reader.ReadString('\n')
		lines <- lineResult{line: line, err: err}
	}()

	var first lineResult
	select {
	case first = <-lines:
	case <-time.After(timeout):
		_ = cmd.Process.Kill()
		p.env.t.Fatalf("No output within %s", timeout)
	}
	elapsed := time.Since(started)

	// Drain the rest so the child never blocks on a full pipe
	_, _ = io.Copy(io.Discard, reader)
	_ = cmd.Wait()

	if first.err != nil && first.line == "" {
		p.env.t.Fatalf("Failed to read first line: %v", first.err)
	}
	return first.line, elapsed
}

func (p *Project) Path() string {
	return p.path
}

func (p *Project) WriteConfig(content string) {
	p.env.writeFile(filepath.Join(p.path, ".shellrun.yml"), content)
}

func (p *Project) WriteFile(name, content string) {
	p.env.writeFile(filepath.Join(p.path, name), content)
}

func (p *Project) HasFile(name string) bool {
	_, err := os.Stat(filepath.Join(p.path, name))
	return err == nil
}

func (p *Project) ReadFile(name string) string {
	content, err := os.ReadFile(filepath.Join(p.path, name))
	if err != nil {
		p.env.t.Fatalf("Failed to read file %s: %v", name, err)
	}
	return string(content)
}
