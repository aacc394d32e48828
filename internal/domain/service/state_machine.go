package service

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// AppState is one of the six states of the ReAct loop (spec §3, §4.5).
type AppState string

const (
	StateInput        AppState = "input"
	StateThinking      AppState = "thinking"
	StateReviewAction AppState = "review_action"
	StateExecuting    AppState = "executing"
	StateFinalizing   AppState = "finalizing"
	StateDone         AppState = "done"
)

// AllStates lists every defined AppState variant, useful for testing
// (spec §8 property 3 "state validity").
func AllStates() []AppState {
	return []AppState{StateInput, StateThinking, StateReviewAction, StateExecuting, StateFinalizing, StateDone}
}

// BlocksInput reports whether keystrokes other than cancel/quit must be
// ignored while in this state (spec §4.5).
func (s AppState) BlocksInput() bool {
	switch s {
	case StateThinking, StateExecuting, StateFinalizing:
		return true
	}
	return false
}

// ShowsSpinner reports whether the renderer should animate a spinner for
// this state (spec §4.5).
func (s AppState) ShowsSpinner() bool {
	switch s {
	case StateThinking, StateFinalizing:
		return true
	}
	return false
}

// DisplayName is the status-bar label for this state.
func (s AppState) DisplayName() string {
	switch s {
	case StateInput:
		return "Input"
	case StateThinking:
		return "Thinking..."
	case StateReviewAction:
		return "Review Command"
	case StateExecuting:
		return "Executing..."
	case StateFinalizing:
		return "Analyzing..."
	case StateDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// EventKind tags the closed set of events that can drive a transition
// (spec §4.5).
type EventKind string

const (
	EventSubmitInput          EventKind = "submit_input"
	EventEscape               EventKind = "escape"
	EventToolCallReceived     EventKind = "tool_call_received"
	EventTextResponseReceived EventKind = "text_response_received"
	EventAPIError             EventKind = "api_error"
	EventConfirmCommand       EventKind = "confirm_command"
	EventCancelCommand        EventKind = "cancel_command"
	EventCommandComplete      EventKind = "command_complete"
	EventAnalysisComplete     EventKind = "analysis_complete"
	EventContinue             EventKind = "continue"
)

// Event is an EventKind plus the one payload field a transition needs to
// inspect (SubmitInput{empty}).
type Event struct {
	Kind  EventKind
	Empty bool // only meaningful for EventSubmitInput
}

// Outcome classifies the result of a transition attempt.
type Outcome int

const (
	// OutcomeSuccess means the machine moved to a new state.
	OutcomeSuccess Outcome = iota
	// OutcomeIgnored means the event is valid for this state but causes
	// no state change (e.g. an empty submit in Input).
	OutcomeIgnored
	// OutcomeError means (state, event) is not a defined transition.
	OutcomeError
)

// TransitionResult is the return value of the pure Transition function.
type TransitionResult struct {
	Outcome Outcome
	Next    AppState // meaningful only when Outcome == OutcomeSuccess
	Err     error    // meaningful only when Outcome == OutcomeError
}

// Transition is the pure state transition function: given the current
// state and an event, it returns the transition's outcome. It performs no
// I/O and never panics (spec §4.5's closed event/state table below).
//
//	From          | Event                       | To
//	Input         | SubmitInput{empty:true}     | (ignored)
//	Input         | SubmitInput{empty:false}    | Thinking
//	Input         | Escape                      | Done
//	Thinking      | ToolCallReceived            | ReviewAction
//	Thinking      | TextResponseReceived        | Input
//	Thinking      | ApiError                    | Input
//	ReviewAction  | ConfirmCommand              | Executing
//	ReviewAction  | CancelCommand               | Input
//	ReviewAction  | Escape                      | Input
//	Executing     | CommandComplete             | Finalizing
//	Finalizing    | ToolCallReceived            | ReviewAction
//	Finalizing    | TextResponseReceived        | Input
//	Finalizing    | AnalysisComplete            | Input
//	Finalizing    | ApiError                    | Input
//	Done          | Continue                    | Input
//
// Every other (state, event) pair is an invalid transition: the machine
// reports OutcomeError without changing state.
func Transition(current AppState, event Event) TransitionResult {
	switch {
	case current == StateInput && event.Kind == EventSubmitInput && event.Empty:
		return TransitionResult{Outcome: OutcomeIgnored}
	case current == StateInput && event.Kind == EventSubmitInput && !event.Empty:
		return success(StateThinking)
	case current == StateInput && event.Kind == EventEscape:
		return success(StateDone)

	case current == StateThinking && event.Kind == EventToolCallReceived:
		return success(StateReviewAction)
	case current == StateThinking && event.Kind == EventTextResponseReceived:
		return success(StateInput)
	case current == StateThinking && event.Kind == EventAPIError:
		return success(StateInput)

	case current == StateReviewAction && event.Kind == EventConfirmCommand:
		return success(StateExecuting)
	case current == StateReviewAction && event.Kind == EventCancelCommand:
		return success(StateInput)
	case current == StateReviewAction && event.Kind == EventEscape:
		return success(StateInput)

	case current == StateExecuting && event.Kind == EventCommandComplete:
		return success(StateFinalizing)

	case current == StateFinalizing && event.Kind == EventToolCallReceived:
		return success(StateReviewAction)
	case current == StateFinalizing && event.Kind == EventTextResponseReceived:
		return success(StateInput)
	case current == StateFinalizing && event.Kind == EventAnalysisComplete:
		return success(StateInput)
	case current == StateFinalizing && event.Kind == EventAPIError:
		return success(StateInput)

	case current == StateDone && event.Kind == EventContinue:
		return success(StateInput)

	default:
		return TransitionResult{
			Outcome: OutcomeError,
			Err:     fmt.Errorf("invalid transition: %s with event %s", current, event.Kind),
		}
	}
}

func success(to AppState) TransitionResult {
	return TransitionResult{Outcome: OutcomeSuccess, Next: to}
}

// IsValidTransition reports whether moving from `from` directly to `to`
// is reachable via some event, independent of which event caused it.
// Used by property tests (spec §8 property 3).
func IsValidTransition(from, to AppState) bool {
	switch from {
	case StateInput:
		return to == StateThinking || to == StateDone || to == StateInput
	case StateThinking:
		return to == StateReviewAction || to == StateInput
	case StateReviewAction:
		return to == StateExecuting || to == StateInput
	case StateExecuting:
		return to == StateFinalizing
	case StateFinalizing:
		return to == StateReviewAction || to == StateInput
	case StateDone:
		return to == StateInput
	}
	return false
}

// StateMachine is a mutex-guarded, listener-notifying wrapper around the
// pure Transition function. The event loop (internal/loop) does not use
// it: the loop calls Transition directly and stores the state itself.
// Mirrors the teacher's StateMachine (domain/service/state_machine.go)
// shape: an exclusively-owned current state plus transition listeners
// notified outside the lock.
type StateMachine struct {
	mu     sync.RWMutex
	state  AppState
	logger *zap.Logger

	listeners []func(from, to AppState)
}

// NewStateMachine creates a state machine starting in Input.
func NewStateMachine(logger *zap.Logger) *StateMachine {
	return &StateMachine{state: StateInput, logger: logger}
}

// State returns the current state.
func (sm *StateMachine) State() AppState {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.state
}

// Dispatch applies an event to the current state via the pure Transition
// function, updates the stored state on success, and notifies listeners
// outside the lock. It returns the same TransitionResult Transition
// would have returned.
func (sm *StateMachine) Dispatch(event Event) TransitionResult {
	sm.mu.Lock()
	from := sm.state
	result := Transition(from, event)

	if result.Outcome != OutcomeSuccess {
		sm.mu.Unlock()
		if result.Outcome == OutcomeError && sm.logger != nil {
			sm.logger.Warn("rejected state transition",
				zap.String("from", string(from)),
				zap.String("event", string(event.Kind)),
			)
		}
		return result
	}

	sm.state = result.Next
	listeners := make([]func(from, to AppState), len(sm.listeners))
	copy(listeners, sm.listeners)
	sm.mu.Unlock()

	if sm.logger != nil {
		sm.logger.Debug("state transition",
			zap.String("from", string(from)),
			zap.String("to", string(result.Next)),
			zap.String("event", string(event.Kind)),
		)
	}
	for _, fn := range listeners {
		fn(from, result.Next)
	}
	return result
}

// OnTransition registers a listener called after every successful
// transition.
func (sm *StateMachine) OnTransition(fn func(from, to AppState)) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.listeners = append(sm.listeners, fn)
}
