package entity

import "errors"

var (
	// ErrEmptyToolName describes a ToolCall without a discriminator. Nothing
	// in the module returns it: the parser rejects such objects, and the
	// executor reports an empty tool name as an unknown tool.
	ErrEmptyToolName = errors.New("tool call has no discriminator")
)
