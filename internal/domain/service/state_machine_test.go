package service

import (
	"testing"

	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

func TestNewStateMachineStartsAtInput(t *testing.T) {
	sm := NewStateMachine(testLogger())
	if sm.State() != StateInput {
		t.Fatalf("expected initial state Input, got %s", sm.State())
	}
}

func TestEmptySubmitIsIgnored(t *testing.T) {
	result := Transition(StateInput, Event{Kind: EventSubmitInput, Empty: true})
	if result.Outcome != OutcomeIgnored {
		t.Fatalf("expected Ignored, got %+v", result)
	}
}

func TestNonEmptySubmitTransitionsToThinking(t *testing.T) {
	result := Transition(StateInput, Event{Kind: EventSubmitInput, Empty: false})
	if result.Outcome != OutcomeSuccess || result.Next != StateThinking {
		t.Fatalf("expected Success(Thinking), got %+v", result)
	}
}

func TestInputEscapeToDone(t *testing.T) {
	result := Transition(StateInput, Event{Kind: EventEscape})
	if result.Outcome != OutcomeSuccess || result.Next != StateDone {
		t.Fatalf("expected Success(Done), got %+v", result)
	}
}

func TestThinkingToolCallToReview(t *testing.T) {
	result := Transition(StateThinking, Event{Kind: EventToolCallReceived})
	if result.Outcome != OutcomeSuccess || result.Next != StateReviewAction {
		t.Fatalf("expected Success(ReviewAction), got %+v", result)
	}
}

func TestThinkingTextResponseToInput(t *testing.T) {
	result := Transition(StateThinking, Event{Kind: EventTextResponseReceived})
	if result.Outcome != OutcomeSuccess || result.Next != StateInput {
		t.Fatalf("expected Success(Input), got %+v", result)
	}
}

func TestThinkingAPIErrorToInput(t *testing.T) {
	result := Transition(StateThinking, Event{Kind: EventAPIError})
	if result.Outcome != OutcomeSuccess || result.Next != StateInput {
		t.Fatalf("expected Success(Input), got %+v", result)
	}
}

func TestReviewConfirmToExecuting(t *testing.T) {
	result := Transition(StateReviewAction, Event{Kind: EventConfirmCommand})
	if result.Outcome != OutcomeSuccess || result.Next != StateExecuting {
		t.Fatalf("expected Success(Executing), got %+v", result)
	}
}

func TestReviewCancelToInput(t *testing.T) {
	result := Transition(StateReviewAction, Event{Kind: EventCancelCommand})
	if result.Outcome != OutcomeSuccess || result.Next != StateInput {
		t.Fatalf("expected Success(Input), got %+v", result)
	}
}

func TestReviewEscapeToInput(t *testing.T) {
	result := Transition(StateReviewAction, Event{Kind: EventEscape})
	if result.Outcome != OutcomeSuccess || result.Next != StateInput {
		t.Fatalf("expected Success(Input), got %+v", result)
	}
}

func TestExecutingCompleteToFinalizing(t *testing.T) {
	result := Transition(StateExecuting, Event{Kind: EventCommandComplete})
	if result.Outcome != OutcomeSuccess || result.Next != StateFinalizing {
		t.Fatalf("expected Success(Finalizing), got %+v", result)
	}
}

func TestFinalizingAnalysisCompleteToInput(t *testing.T) {
	result := Transition(StateFinalizing, Event{Kind: EventAnalysisComplete})
	if result.Outcome != OutcomeSuccess || result.Next != StateInput {
		t.Fatalf("expected Success(Input), got %+v", result)
	}
}

func TestDoneContinueToInput(t *testing.T) {
	result := Transition(StateDone, Event{Kind: EventContinue})
	if result.Outcome != OutcomeSuccess || result.Next != StateInput {
		t.Fatalf("expected Success(Input), got %+v", result)
	}
}

func TestInvalidTransitionReturnsError(t *testing.T) {
	result := Transition(StateExecuting, Event{Kind: EventSubmitInput, Empty: false})
	if result.Outcome != OutcomeError {
		t.Fatalf("expected Error outcome, got %+v", result)
	}
}

func TestAllStatesCompleteness(t *testing.T) {
	states := AllStates()
	if len(states) != 6 {
		t.Fatalf("expected 6 states, got %d", len(states))
	}
}

func TestBlocksInput(t *testing.T) {
	cases := map[AppState]bool{
		StateInput:        false,
		StateThinking:      true,
		StateReviewAction: false,
		StateExecuting:    true,
		StateFinalizing:   true,
		StateDone:         false,
	}
	for s, want := range cases {
		if got := s.BlocksInput(); got != want {
			t.Errorf("%s.BlocksInput() = %v, want %v", s, got, want)
		}
	}
}

func TestShowsSpinner(t *testing.T) {
	cases := map[AppState]bool{
		StateInput:        false,
		StateThinking:      true,
		StateReviewAction: false,
		StateExecuting:    false,
		StateFinalizing:   true,
		StateDone:         false,
	}
	for s, want := range cases {
		if got := s.ShowsSpinner(); got != want {
			t.Errorf("%s.ShowsSpinner() = %v, want %v", s, got, want)
		}
	}
}

// prop_successful_transitions_are_valid, exhaustively: every (state,
// event) pair that Transition succeeds on must also be IsValidTransition.
func TestSuccessfulTransitionsAreValid(t *testing.T) {
	events := []Event{
		{Kind: EventSubmitInput, Empty: true},
		{Kind: EventSubmitInput, Empty: false},
		{Kind: EventEscape},
		{Kind: EventToolCallReceived},
		{Kind: EventTextResponseReceived},
		{Kind: EventAPIError},
		{Kind: EventConfirmCommand},
		{Kind: EventCancelCommand},
		{Kind: EventCommandComplete},
		{Kind: EventAnalysisComplete},
		{Kind: EventContinue},
	}
	for _, state := range AllStates() {
		for _, event := range events {
			result := Transition(state, event)
			if result.Outcome != OutcomeSuccess {
				continue
			}
			if !IsValidTransition(state, result.Next) {
				t.Errorf("Transition(%s, %s) = Success(%s) but IsValidTransition says false", state, event.Kind, result.Next)
			}
		}
	}
}

func TestStateMachineDispatchNotifiesListeners(t *testing.T) {
	sm := NewStateMachine(testLogger())
	var got []string
	sm.OnTransition(func(from, to AppState) {
		got = append(got, string(from)+"->"+string(to))
	})
	sm.Dispatch(Event{Kind: EventSubmitInput, Empty: false})
	if sm.State() != StateThinking {
		t.Fatalf("expected Thinking, got %s", sm.State())
	}
	if len(got) != 1 || got[0] != "input->thinking" {
		t.Fatalf("expected one listener call input->thinking, got %v", got)
	}
}

func TestStateMachineDispatchIgnoredDoesNotNotify(t *testing.T) {
	sm := NewStateMachine(testLogger())
	called := false
	sm.OnTransition(func(from, to AppState) { called = true })
	sm.Dispatch(Event{Kind: EventSubmitInput, Empty: true})
	if sm.State() != StateInput {
		t.Fatalf("expected state unchanged at Input, got %s", sm.State())
	}
	if called {
		t.Fatal("listener should not fire on an ignored transition")
	}
}
