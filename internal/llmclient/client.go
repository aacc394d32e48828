// Package llmclient defines the model client contract (spec §4.4): a
// single async `Chat(conversation) -> text | error` operation plus an
// optional model listing, and the typed error kinds the loop must
// distinguish. Grounded on the teacher's infrastructure/llm.Provider
// registry shape (internal/infrastructure/llm/provider.go), narrowed to
// the spec's synchronous, non-streaming, non-tool-calling contract —
// tool calls travel as plain text the domain/tool parser recognizes, not
// as a transport-level tool-call schema.
package llmclient

import (
	"context"
	"fmt"

	"github.com/n4ar/sabi/internal/domain/entity"
)

// Kind is one of the six error kinds the loop must distinguish (spec
// §4.4, §7 "Model errors").
type Kind string

const (
	KindMissingAPIKey   Kind = "missing_api_key"
	KindRateLimited     Kind = "rate_limited"
	KindNetwork         Kind = "network"
	KindAPIError        Kind = "api_error"
	KindInvalidResponse Kind = "invalid_response"
	KindEmptyResponse   Kind = "empty_response"
)

// Error carries a Kind plus, for KindAPIError, the server-supplied status
// and message verbatim (spec §7: "ApiError's server-supplied status and
// message, which are surfaced verbatim").
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindAPIError:
		return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
	case KindMissingAPIKey:
		return "missing API key"
	case KindRateLimited:
		return "rate limited"
	case KindNetwork:
		return fmt.Sprintf("network error: %v", e.Err)
	case KindInvalidResponse:
		return "invalid response from model"
	case KindEmptyResponse:
		return "empty response from model"
	default:
		return "model error"
	}
}

func (e *Error) Unwrap() error { return e.Err }

// NewMissingAPIKeyError reports a missing credential (spec §7: surfaces
// before any state change).
func NewMissingAPIKeyError() *Error { return &Error{Kind: KindMissingAPIKey} }

// NewRateLimitedError reports an HTTP 429 (spec §4.4 "Error typing").
func NewRateLimitedError() *Error { return &Error{Kind: KindRateLimited} }

// NewNetworkError wraps a transport-level failure (connection refused,
// timeout, DNS, TLS).
func NewNetworkError(err error) *Error { return &Error{Kind: KindNetwork, Err: err} }

// NewAPIError reports a non-2xx response, carrying the server's status
// and body verbatim (spec §7).
func NewAPIError(status int, message string) *Error {
	return &Error{Kind: KindAPIError, Status: status, Message: message}
}

// NewInvalidResponseError reports a response body that could not be
// decoded into the transport's expected shape.
func NewInvalidResponseError(err error) *Error {
	return &Error{Kind: KindInvalidResponse, Err: err}
}

// NewEmptyResponseError reports an empty candidate list or empty
// concatenated text (spec §4.4 "Error typing").
func NewEmptyResponseError() *Error { return &Error{Kind: KindEmptyResponse} }

// Client is the model transport contract (spec §4.4, §6 "Model
// transport"). A concrete transport (gemini, openai) implements this.
type Client interface {
	// Chat sends conversation through the sliding window and returns the
	// model's text reply, or a typed *Error.
	Chat(ctx context.Context, conversation []entity.Message) (string, error)

	// ListModels optionally enumerates available model names. Transports
	// that cannot list models return (nil, nil).
	ListModels(ctx context.Context) ([]string, error)
}

// Window selects the request-side subset of a conversation (spec §4.4
// "Sliding window"): at most one System message, then the last
// maxHistory non-System messages in order. The stored conversation is
// unbounded; only the outgoing request is bounded.
func Window(conversation []entity.Message, maxHistory int) []entity.Message {
	var system *entity.Message
	nonSystem := make([]entity.Message, 0, len(conversation))
	for i, m := range conversation {
		if m.IsSystem() {
			if system == nil {
				s := conversation[i]
				system = &s
			}
			continue
		}
		nonSystem = append(nonSystem, m)
	}

	if maxHistory > 0 && len(nonSystem) > maxHistory {
		nonSystem = nonSystem[len(nonSystem)-maxHistory:]
	}

	windowed := make([]entity.Message, 0, len(nonSystem)+1)
	if system != nil {
		windowed = append(windowed, *system)
	}
	windowed = append(windowed, nonSystem...)
	return windowed
}

// Role maps a domain Role onto a transport dialect's role string (spec
// §4.4 "Role mapping"). modelRole is "model" (Gemini-style) or
// "assistant" (OpenAI-style). Window keeps the System message; each
// transport handles it before calling Role, so System is never passed
// here (it would map to modelRole).
func Role(role entity.Role, modelRole string) string {
	switch role {
	case entity.RoleUser:
		return "user"
	case entity.RoleModel:
		return modelRole
	default:
		return modelRole
	}
}
