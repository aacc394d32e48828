// Package sandbox runs the single external process an Executor call
// spawns, with process-group isolation so cancellation can terminate the
// whole process tree. Spec §9 ("Non-goals: Sandboxed execution... the
// danger gate is advisory") means this does NOT enforce a binary
// allowlist — commands run with the agent's own privileges.
package sandbox

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Result is the raw output of a spawned process, before truncation is
// applied by the executor.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
	Killed   bool // true if terminated by cancellation rather than exiting
}

// Runner spawns shell commands in their own process group so cancellation
// (spec §4.3 "Cancellation") can kill the whole tree rather than just the
// immediate child.
type Runner struct {
	workDir string
	logger  *zap.Logger
}

// NewRunner creates a Runner rooted at workDir (the user's real working
// directory — this sandbox provides process-group isolation and
// cancellation, not filesystem isolation, matching the teacher's own
// DefaultConfig comment).
func NewRunner(workDir string, logger *zap.Logger) *Runner {
	if workDir == "" {
		if wd, err := os.Getwd(); err == nil {
			workDir = wd
		}
	}
	return &Runner{workDir: workDir, logger: logger}
}

// Shell runs `sh -c command` on POSIX or `cmd /C command` on Windows
// (spec §4.3 run_cmd dispatch, §6 executor collaborators).
func (r *Runner) Shell(ctx context.Context, command string) (*Result, error) {
	if runtime.GOOS == "windows" {
		return r.run(ctx, "cmd", []string{"/C", command})
	}
	return r.run(ctx, "sh", []string{"-c", command})
}

// Python3 runs `python3 -c code` (spec §4.3 run_python dispatch).
func (r *Runner) Python3(ctx context.Context, code string) (*Result, error) {
	return r.run(ctx, "python3", []string{"-c", code})
}

func (r *Runner) run(ctx context.Context, name string, args []string) (*Result, error) {
	start := time.Now()

	path, err := exec.LookPath(name)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Dir = r.workDir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	// exec.CommandContext's default cancel only kills cmd.Process itself;
	// with Setpgid the child's own children would survive in their now-
	// orphaned process group. Kill the whole group instead (spec §4.3
	// "Cancellation... terminated (best-effort)").
	cmd.Cancel = func() error {
		Kill(cmd.Process.Pid)
		return nil
	}
	cmd.WaitDelay = 3 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	result := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if ctx.Err() == context.Canceled || ctx.Err() == context.DeadlineExceeded {
		result.Killed = true
		result.ExitCode = -1
		if r.logger != nil {
			r.logger.Info("command cancelled", zap.String("command", name))
		}
		return result, ctx.Err()
	}

	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		} else {
			return nil, runErr
		}
	}

	return result, nil
}

// Kill best-effort terminates the process group for pid (spec §4.3
// "Cancellation... terminated (best-effort)"). Errors are intentionally
// swallowed — on cancellation the caller has already decided to move on
// regardless of whether the kill succeeds.
func Kill(pid int) {
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}

// AbsPath resolves path relative to the runner's working directory for
// display purposes (used by read_file/write_file result metadata).
func (r *Runner) AbsPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(r.workDir, path)
}

// WorkDir returns the runner's working directory.
func (r *Runner) WorkDir() string { return r.workDir }
