// Package tool defines the ToolCall wire shape and the parser that
// recovers one from free-form model output (spec §4.1).
package tool

import (
	"encoding/json"
	"strings"
)

// Name is the tool discriminator. Unknown names are preserved verbatim
// and rejected at dispatch, never at parse time (spec §3).
type Name string

const (
	RunCmd    Name = "run_cmd"
	RunPython Name = "run_python"
	ReadFile  Name = "read_file"
	WriteFile Name = "write_file"
	Search    Name = "search"
)

// Call is a tagged record with a discriminator and type-specific fields,
// all defaulting to the empty string when absent from the model's JSON
// (spec §3, §9 "Tagged action variants"). A single flat struct is used
// instead of a Go-native sum type so encoding/json's normal zero-value
// behavior already implements the missing-field-becomes-empty rule
// without a custom UnmarshalJSON.
type Call struct {
	Tool      Name   `json:"tool"`
	Command   string `json:"command,omitempty"`
	Code      string `json:"code,omitempty"`
	Path      string `json:"path,omitempty"`
	Content   string `json:"content,omitempty"`
	Pattern   string `json:"pattern,omitempty"`
	Directory string `json:"directory,omitempty"`
}

// Kind reports whether r is a ToolCall or a TextResponse.
type Kind int

const (
	KindText Kind = iota
	KindToolCall
)

// ParsedResponse is the sum over {ToolCall(t), TextResponse(s)} (spec §3).
type ParsedResponse struct {
	kind Kind
	call Call
	text string
}

func (r ParsedResponse) Kind() Kind   { return r.kind }
func (r ParsedResponse) IsText() bool { return r.kind == KindText }
func (r ParsedResponse) IsCall() bool { return r.kind == KindToolCall }
func (r ParsedResponse) Call() Call   { return r.call }
func (r ParsedResponse) Text() string { return r.text }

func textResponse(s string) ParsedResponse {
	return ParsedResponse{kind: KindText, text: s}
}

func toolCallResponse(c Call) ParsedResponse {
	return ParsedResponse{kind: KindToolCall, call: c}
}

// Parse extracts a structured action from model text. It is pure (no I/O)
// and total: every input yields either a ToolCall or a TextResponse, it
// never panics or returns an error (spec §4.1).
//
// Resolution order, first success wins:
//  1. Parse the entire trimmed string as a JSON object matching Call.
//  2. Scan for a fenced code block (```json or ```), parse its content.
//  3. Brace-match scan across the string, trying each balanced top-level
//     object.
//  4. TextResponse(original) — the original, untrimmed string.
func Parse(response string) ParsedResponse {
	trimmed := strings.TrimSpace(response)

	if c, ok := tryParseJSON(trimmed); ok {
		return toolCallResponse(c)
	}
	if c, ok := tryParseFencedBlock(response); ok {
		return toolCallResponse(c)
	}
	if c, ok := tryFindJSONObject(response); ok {
		return toolCallResponse(c)
	}
	return textResponse(response)
}

// tryParseJSON attempts to decode s as a Call. A bare JSON object lacking
// the "tool" discriminator is not a ToolCall (spec §4.1).
func tryParseJSON(s string) (Call, bool) {
	if s == "" || s[0] != '{' {
		return Call{}, false
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return Call{}, false
	}
	if _, hasTool := raw["tool"]; !hasTool {
		return Call{}, false
	}
	var c Call
	if err := json.Unmarshal([]byte(s), &c); err != nil {
		return Call{}, false
	}
	if c.Tool == "" {
		return Call{}, false
	}
	return c, true
}

// tryParseFencedBlock finds a fenced code block delimited by three
// backticks, optionally tagged "json", and attempts to parse its content.
func tryParseFencedBlock(s string) (Call, bool) {
	const fence = "```"
	start := strings.Index(s, fence)
	if start == -1 {
		return Call{}, false
	}
	rest := s[start+len(fence):]
	// Skip an optional language tag ("json") up to the first newline.
	if nl := strings.IndexByte(rest, '\n'); nl != -1 {
		tag := strings.TrimSpace(rest[:nl])
		if tag == "json" || tag == "" {
			rest = rest[nl+1:]
		}
	}
	end := strings.Index(rest, fence)
	if end == -1 {
		return Call{}, false
	}
	content := strings.TrimSpace(rest[:end])
	return tryParseJSON(content)
}

// tryFindJSONObject performs a brace-depth-counting scan over the string,
// resetting start/depth at each balanced group, and attempts to parse
// each balanced {...} substring it finds (spec §4.1 step 3).
func tryFindJSONObject(s string) (Call, bool) {
	depth := 0
	start := -1
	for i, r := range s {
		switch r {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start != -1 {
				if c, ok := tryParseJSON(s[start : i+1]); ok {
					return c, true
				}
				start = -1
			}
		}
	}
	return Call{}, false
}
