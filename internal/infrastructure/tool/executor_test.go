package tool

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	domaintool "github.com/n4ar/sabi/internal/domain/tool"
	"github.com/n4ar/sabi/internal/infrastructure/sandbox"
)

func newTestExecutor(t *testing.T) (*Executor, string) {
	t.Helper()
	dir := t.TempDir()
	runner := sandbox.NewRunner(dir, nil)
	return NewExecutor(runner, DefaultLimits(), false, nil), dir
}

func TestExecuteRunCmdSuccess(t *testing.T) {
	e, _ := newTestExecutor(t)
	res := e.Execute(context.Background(), domaintool.Call{Tool: domaintool.RunCmd, Command: "echo hello"})
	if !res.Success || res.ExitCode != 0 {
		t.Fatalf("expected success, got %+v", res)
	}
	if strings.TrimSpace(res.Stdout) != "hello" {
		t.Fatalf("expected stdout 'hello', got %q", res.Stdout)
	}
}

func TestExecuteRunCmdNonZeroExit(t *testing.T) {
	e, _ := newTestExecutor(t)
	res := e.Execute(context.Background(), domaintool.Call{Tool: domaintool.RunCmd, Command: "exit 7"})
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.ExitCode != 7 {
		t.Fatalf("expected exit code 7, got %d", res.ExitCode)
	}
}

func TestExecuteReadWriteFileRoundTrip(t *testing.T) {
	e, dir := newTestExecutor(t)
	path := filepath.Join(dir, "note.txt")

	writeRes := e.Execute(context.Background(), domaintool.Call{Tool: domaintool.WriteFile, Path: path, Content: "hi there"})
	if !writeRes.Success {
		t.Fatalf("expected write success, got %+v", writeRes)
	}

	readRes := e.Execute(context.Background(), domaintool.Call{Tool: domaintool.ReadFile, Path: path})
	if !readRes.Success || readRes.Stdout != "hi there" {
		t.Fatalf("expected read back 'hi there', got %+v", readRes)
	}
}

func TestExecuteReadFileMissing(t *testing.T) {
	e, dir := newTestExecutor(t)
	res := e.Execute(context.Background(), domaintool.Call{Tool: domaintool.ReadFile, Path: filepath.Join(dir, "nope.txt")})
	if res.Success || res.ExitCode != 1 {
		t.Fatalf("expected failure with exit code 1, got %+v", res)
	}
	if res.Stderr == "" {
		t.Fatal("expected stderr to carry the I/O error")
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	e, _ := newTestExecutor(t)
	res := e.Execute(context.Background(), domaintool.Call{Tool: domaintool.Name("delete_universe")})
	if res.Success || res.ExitCode != 1 {
		t.Fatalf("expected failure with exit code 1, got %+v", res)
	}
	if res.Stderr != "Unknown tool: delete_universe" {
		t.Fatalf("unexpected stderr: %q", res.Stderr)
	}
}

func TestExecuteSafeModeNeverRuns(t *testing.T) {
	e, dir := newTestExecutor(t)
	e.SetSafeMode(true)
	path := filepath.Join(dir, "should-not-exist.txt")

	res := e.Execute(context.Background(), domaintool.Call{Tool: domaintool.WriteFile, Path: path, Content: "x"})
	if !res.Success {
		t.Fatalf("expected synthetic success, got %+v", res)
	}
	if !strings.HasPrefix(res.Stdout, "[safe mode]") {
		t.Fatalf("expected safe-mode marker, got %q", res.Stdout)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("safe mode must not actually write the file")
	}
}

func TestTruncateUnderLimitsUnchanged(t *testing.T) {
	out, truncated := truncate("short output", Limits{MaxOutputBytes: 1000, MaxOutputLines: 100})
	if truncated || out != "short output" {
		t.Fatalf("expected no truncation, got %q truncated=%v", out, truncated)
	}
}

func TestTruncateByBytesIsUTF8SafeAndSuffixed(t *testing.T) {
	s := strings.Repeat("é", 100) // 2 bytes per rune
	out, truncated := truncate(s, Limits{MaxOutputBytes: 51, MaxOutputLines: 0})
	if !truncated {
		t.Fatal("expected truncation")
	}
	if !strings.HasSuffix(out, "[Output truncated due to size limits]") {
		t.Fatalf("expected fixed suffix, got %q", out)
	}
	body := strings.TrimSuffix(out, "\n\n[Output truncated due to size limits]")
	if !utf8.ValidString(body) {
		t.Fatalf("truncated body split a multi-byte rune: %q", body)
	}
}

func TestTruncateByLineCount(t *testing.T) {
	lines := make([]string, 10)
	for i := range lines {
		lines[i] = "line"
	}
	s := strings.Join(lines, "\n")
	out, truncated := truncate(s, Limits{MaxOutputBytes: 0, MaxOutputLines: 3})
	if !truncated {
		t.Fatal("expected truncation")
	}
	body := strings.TrimSuffix(out, "\n\n[Output truncated due to size limits]")
	if got := strings.Count(body, "\n") + 1; got != 3 {
		t.Fatalf("expected 3 lines, got %d", got)
	}
}

func TestTruncateZeroLimitsDisabled(t *testing.T) {
	s := strings.Repeat("x", 10000)
	out, truncated := truncate(s, Limits{MaxOutputBytes: 0, MaxOutputLines: 0})
	if truncated || out != s {
		t.Fatal("zero limits must disable truncation entirely")
	}
}

