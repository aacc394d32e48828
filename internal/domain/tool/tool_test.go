package tool

import (
	"fmt"
	"strings"
	"testing"
)

func TestParseRawJSON(t *testing.T) {
	resp := Parse(`{"tool":"run_cmd","command":"ls -la"}`)
	if !resp.IsCall() {
		t.Fatalf("expected a tool call, got text: %q", resp.Text())
	}
	c := resp.Call()
	if c.Tool != RunCmd || c.Command != "ls -la" {
		t.Fatalf("unexpected call: %+v", c)
	}
}

func TestParseMarkdownJSONBlock(t *testing.T) {
	input := "Here's what I'll run:\n```json\n{\"tool\":\"run_cmd\",\"command\":\"pwd\"}\n```\n"
	resp := Parse(input)
	if !resp.IsCall() || resp.Call().Command != "pwd" {
		t.Fatalf("expected parsed command 'pwd', got %+v", resp)
	}
}

func TestParseFencedBlockNoLanguageTag(t *testing.T) {
	input := "```\n{\"tool\":\"search\",\"pattern\":\"*.go\",\"directory\":\"src\"}\n```"
	resp := Parse(input)
	if !resp.IsCall() || resp.Call().Pattern != "*.go" {
		t.Fatalf("expected parsed pattern, got %+v", resp)
	}
}

func TestParseEmbeddedJSON(t *testing.T) {
	input := `I will run the following: {"tool":"run_cmd","command":"echo hi"} to check things.`
	resp := Parse(input)
	if !resp.IsCall() || resp.Call().Command != "echo hi" {
		t.Fatalf("expected embedded call recovered, got %+v", resp)
	}
}

func TestParseNoToolCall(t *testing.T) {
	input := "The answer to your question is 4."
	resp := Parse(input)
	if !resp.IsText() || resp.Text() != input {
		t.Fatalf("expected byte-identical text response, got %+v", resp)
	}
}

func TestParseInvalidJSONFallsBackToText(t *testing.T) {
	input := `{"tool": "run_cmd", "command": }`
	resp := Parse(input)
	if !resp.IsText() {
		t.Fatalf("expected invalid JSON to fall back to TextResponse, got %+v", resp)
	}
}

func TestParseMissingDiscriminatorIsNotAToolCall(t *testing.T) {
	input := `{"command":"ls"}`
	resp := Parse(input)
	if !resp.IsText() {
		t.Fatalf("object without 'tool' discriminator must not parse as a ToolCall, got %+v", resp)
	}
}

func TestParseMissingFieldsDefaultEmpty(t *testing.T) {
	resp := Parse(`{"tool":"run_python"}`)
	if !resp.IsCall() {
		t.Fatalf("expected a tool call")
	}
	c := resp.Call()
	if c.Code != "" || c.Command != "" || c.Path != "" {
		t.Fatalf("expected empty defaults for absent fields, got %+v", c)
	}
}

func TestParseRoundTrip(t *testing.T) {
	calls := []Call{
		{Tool: RunCmd, Command: "ls -la"},
		{Tool: RunPython, Code: "print(1)"},
		{Tool: ReadFile, Path: "a.txt"},
		{Tool: WriteFile, Path: "a.txt", Content: "hello"},
		{Tool: Search, Pattern: "*.go", Directory: "."},
	}
	for _, c := range calls {
		data := fmt.Sprintf(
			`{"tool":%q,"command":%q,"code":%q,"path":%q,"content":%q,"pattern":%q,"directory":%q}`,
			c.Tool, c.Command, c.Code, c.Path, c.Content, c.Pattern, c.Directory,
		)
		resp := Parse(data)
		if !resp.IsCall() {
			t.Fatalf("round trip failed to parse back as a call: %s", data)
		}
		if resp.Call() != c {
			t.Fatalf("round trip mismatch: want %+v, got %+v", c, resp.Call())
		}

		wrapped := "```json\n" + data + "\n```"
		resp2 := Parse(wrapped)
		if !resp2.IsCall() || resp2.Call() != c {
			t.Fatalf("markdown-wrapped round trip mismatch for %+v: %+v", c, resp2)
		}

		embedded := "I'll do this: " + data + " now."
		resp3 := Parse(embedded)
		if !resp3.IsCall() || resp3.Call() != c {
			t.Fatalf("embedded round trip mismatch for %+v: %+v", c, resp3)
		}
	}
}

func TestParseNeverPanics(t *testing.T) {
	inputs := []string{
		"", " ", "{", "}", "{}", "{{{{{{", "}}}}}}",
		strings.Repeat("{", 1000),
		"```json\n```",
		"null", "42", `"just a string"`,
		`{"tool":123}`,
	}
	for _, in := range inputs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("Parse panicked on %q: %v", in, r)
				}
			}()
			_ = Parse(in)
		}()
	}
}
