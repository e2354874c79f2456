package e2e

import (
	"testing"

	"github.com/satococoa/shellrun/test/e2e/framework"
)

const pipelineConfig = `version: "1.0"
defaults:
  retry_delay: 10ms
  env:
    STAGE: e2e
tasks:
  prepare:
    command: mkdir -p out && echo prepared
  server:
    command: sleep 0.3; echo "server stopped"
    blocking: false
  build:
    description: Build after prepare
    command: echo "building for $STAGE in $(basename "$(pwd -P)")" && touch out/built
    depends_on: [prepare, server]
  broken:
    command: echo "about to fail" >&2; exit 12
    max_retries: 2
  missing:
    command: definitely-not-a-command-shellrun
`

func TestTaskCommand(t *testing.T) {
	env := framework.NewTestEnvironment(t)
	defer env.Cleanup()

	project := env.CreateProject("pipeline")
	project.WriteConfig(pipelineConfig)

	t.Run("List", func(t *testing.T) {
		output, err := project.RunShellrun("task", "--list")
		framework.AssertNoError(t, err)
		framework.AssertMultipleStringsInOutput(t, output, []string{"broken", "build", "prepare", "server", "Build after prepare"})
	})

	t.Run("DependenciesAndBackgroundTasks", func(t *testing.T) {
		result := project.RunShellrunSplit("task", "build")

		framework.AssertExitCode(t, result, 0)
		framework.AssertOutputOrder(t, result.Stdout, []string{
			"→ prepare:",
			"prepared",
			"→ server (background):",
			"→ build:",
			"building for e2e in pipeline",
			"server stopped",
			"✓ build",
			"✓ server",
		})
		framework.AssertFileExists(t, project, "out/built")
	})

	t.Run("FailingTask", func(t *testing.T) {
		result := project.RunShellrunSplit("task", "--prefix", "broken")

		framework.AssertExitCode(t, result, 12)
		framework.AssertOutputContains(t, result.Stdout, "[broken] about to fail")
		framework.AssertOutputContains(t, result.Stdout, "✗ broken (exit 12, 2 attempts")
		framework.AssertOutputContains(t, result.Stderr, "task 'broken' failed")
	})

	t.Run("CommandNotFound", func(t *testing.T) {
		result := project.RunShellrunSplit("task", "missing")

		framework.AssertExitCode(t, result, 127)
		framework.AssertOutputContains(t, result.Stderr, "Command not found")
		framework.AssertHelpfulError(t, result.Stderr)
	})
}
