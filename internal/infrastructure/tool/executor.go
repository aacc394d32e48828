// Package tool implements the Executor described in spec §4.3: running
// one ToolCall asynchronously, capturing bounded output, and reporting a
// CommandResult. Grounded on the teacher's infrastructure/tool/executor.go
// dispatch shape and infrastructure/sandbox/process_sandbox.go's
// process-group execution, adapted to the spec's fixed five-tool
// discriminator set and non-allowlisted (advisory-only) danger gate.
package tool

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	domaintool "github.com/n4ar/sabi/internal/domain/tool"
	"github.com/n4ar/sabi/internal/infrastructure/sandbox"
	"go.uber.org/zap"
)

// Result is the CommandResult of spec §3: `success ⇔ exit_code == 0`.
type Result struct {
	Stdout     string
	Stderr     string
	ExitCode   int
	Success    bool
	Truncated  bool
}

// Limits are the configured output caps (spec §3 max_output_bytes,
// max_output_lines).
type Limits struct {
	MaxOutputBytes int
	MaxOutputLines int
}

// DefaultLimits matches the teacher's own conservative defaults for
// captured tool output.
func DefaultLimits() Limits {
	return Limits{MaxOutputBytes: 20000, MaxOutputLines: 500}
}

// Executor runs one ToolCall at a time. safeMode substitutes a synthetic
// "would run" result for every call (spec §3 safe_mode, §9 "Safe mode").
type Executor struct {
	runner  *sandbox.Runner
	limits  Limits
	safeMode bool
	logger  *zap.Logger
}

// NewExecutor builds an Executor bound to runner.
func NewExecutor(runner *sandbox.Runner, limits Limits, safeMode bool, logger *zap.Logger) *Executor {
	return &Executor{runner: runner, limits: limits, safeMode: safeMode, logger: logger}
}

// SetSafeMode toggles the dry-run switch at runtime (the loop calls it on
// a config hot-reload; the --safe CLI flag is applied through NewExecutor).
func (e *Executor) SetSafeMode(on bool) { e.safeMode = on }

// SafeMode reports the current dry-run switch.
func (e *Executor) SafeMode() bool { return e.safeMode }

// Execute dispatches call by discriminator and always returns a Result —
// it never fails abstractly (spec §4.3 "An executor call always returns a
// CommandResult").
func (e *Executor) Execute(ctx context.Context, call domaintool.Call) *Result {
	if e.safeMode {
		return e.wouldRun(call)
	}

	var res *Result
	switch call.Tool {
	case domaintool.RunCmd:
		res = e.runShell(ctx, call.Command)
	case domaintool.RunPython:
		res = e.runPython(ctx, call.Code)
	case domaintool.ReadFile:
		res = e.readFile(call.Path)
	case domaintool.WriteFile:
		res = e.writeFile(call.Path, call.Content)
	case domaintool.Search:
		res = e.search(ctx, call.Pattern, call.Directory)
	default:
		res = &Result{
			Stderr:   fmt.Sprintf("Unknown tool: %s", call.Tool),
			ExitCode: 1,
			Success:  false,
		}
	}

	if e.logger != nil {
		e.logger.Info("tool executed",
			zap.String("tool", string(call.Tool)),
			zap.Int("exit_code", res.ExitCode),
			zap.Bool("success", res.Success),
		)
	}
	return res
}

// wouldRun produces the safe-mode synthetic result (spec §9 "Safe mode").
func (e *Executor) wouldRun(call domaintool.Call) *Result {
	return &Result{
		Stdout:   fmt.Sprintf("[safe mode] would run %s", describe(call)),
		ExitCode: 0,
		Success:  true,
	}
}

func describe(call domaintool.Call) string {
	switch call.Tool {
	case domaintool.RunCmd:
		return call.Command
	case domaintool.RunPython:
		return "python: " + call.Code
	case domaintool.ReadFile:
		return "read_file: " + call.Path
	case domaintool.WriteFile:
		return fmt.Sprintf("write_file: %s (%d bytes)", call.Path, len(call.Content))
	case domaintool.Search:
		return fmt.Sprintf("search: %s in %s", call.Pattern, call.Directory)
	default:
		return string(call.Tool)
	}
}

func (e *Executor) runShell(ctx context.Context, command string) *Result {
	out, err := e.runner.Shell(ctx, command)
	return e.fromProcess(out, err)
}

func (e *Executor) runPython(ctx context.Context, code string) *Result {
	out, err := e.runner.Python3(ctx, code)
	return e.fromProcess(out, err)
}

// fromProcess converts a sandbox.Result (or a spawn failure) into a
// truncated Result (spec §4.3 "Failures" and "Output capture").
func (e *Executor) fromProcess(out *sandbox.Result, err error) *Result {
	if out == nil {
		return &Result{
			Stderr:   fmt.Sprintf("Failed to execute command: %v", err),
			ExitCode: -1,
			Success:  false,
		}
	}
	stdout, truncStdout := truncate(out.Stdout, e.limits)
	stderr, truncStderr := truncate(out.Stderr, e.limits)
	return &Result{
		Stdout:    stdout,
		Stderr:    stderr,
		ExitCode:  out.ExitCode,
		Success:   out.ExitCode == 0,
		Truncated: truncStdout || truncStderr,
	}
}

func (e *Executor) readFile(path string) *Result {
	data, err := os.ReadFile(path)
	if err != nil {
		return &Result{Stderr: err.Error(), ExitCode: 1, Success: false}
	}
	stdout, truncated := truncate(string(data), e.limits)
	return &Result{Stdout: stdout, ExitCode: 0, Success: true, Truncated: truncated}
}

func (e *Executor) writeFile(path, content string) *Result {
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return &Result{Stderr: err.Error(), ExitCode: 1, Success: false}
	}
	return &Result{
		Stdout:   fmt.Sprintf("wrote %d bytes to %s", len(content), path),
		ExitCode: 0,
		Success:  true,
	}
}

func (e *Executor) search(ctx context.Context, pattern, directory string) *Result {
	dir := directory
	if dir == "" {
		dir = "."
	}
	cmd := fmt.Sprintf("find %s -name '%s' 2>/dev/null | head -100", dir, pattern)
	out, err := e.runner.Shell(ctx, cmd)
	return e.fromProcess(out, err)
}

// truncate implements spec §4.3's exact algorithm:
//  1. byte-boundary-safe truncation to MaxOutputBytes
//  2. line-count truncation to MaxOutputLines
//  3. append the fixed suffix if either step truncated
func truncate(s string, limits Limits) (string, bool) {
	truncated := false

	if limits.MaxOutputBytes > 0 && len(s) > limits.MaxOutputBytes {
		cut := limits.MaxOutputBytes
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
		truncated = true
	}

	if limits.MaxOutputLines > 0 {
		lines := strings.Split(s, "\n")
		if len(lines) > limits.MaxOutputLines {
			s = strings.Join(lines[:limits.MaxOutputLines], "\n")
			truncated = true
		}
	}

	if truncated {
		s += "\n\n[Output truncated due to size limits]"
	}
	return s, truncated
}
