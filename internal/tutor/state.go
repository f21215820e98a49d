package tutor

import (
	"github.com/grovetools/socratic/errors"
)

// State is the tutoring phase of a session.
type State string

const (
	StateWaitingTask State = "waiting_task"
	StateSolving     State = "solving"
	StateFinalAnswer State = "final_answer"
	// StateChecking, StateCompleted and StateExamMode are recognised when
	// loading stored sessions but no transition leads into them.
	StateChecking  State = "checking"
	StateCompleted State = "completed"
	StateExamMode  State = "exam_mode"
)

// Event is a trigger fed to Transition.
type Event string

const (
	EventTaskReceived    Event = "task_received"
	EventUserText        Event = "user_text"
	EventHintRequested   Event = "hint_requested"
	EventSubmitRequested Event = "submit_requested"
	EventFinalAnswer     Event = "final_answer"
	EventReset           Event = "reset"
	EventStartSolving    Event = "start_solving"
)

// Effect is a side effect the caller must perform after a transition, in order.
type Effect string

const (
	// EffectBeginTask sets the current task, clears the conversation, stamps
	// the start time, increments TotalTasks and seeds the framing turn.
	EffectBeginTask Effect = "begin_task"
	// EffectAppendTurn appends the user's text to the conversation.
	EffectAppendTurn Effect = "append_turn"
	// EffectAppendHint appends the hint request turn and increments TotalHints.
	EffectAppendHint Effect = "append_hint"
	// EffectComplete asks the completion API for the next tutoring reply.
	EffectComplete Effect = "complete"
	// EffectPromptFinal asks the user for the final write-up.
	EffectPromptFinal Effect = "prompt_final"
	// EffectVerify grades the final answer.
	EffectVerify Effect = "verify"
	// EffectRecordResult updates the running average and the history.
	EffectRecordResult Effect = "record_result"
	// EffectMeme sends a meme when memes are enabled.
	EffectMeme Effect = "meme"
	// EffectClearTask clears the task, conversation and start time.
	EffectClearTask Effect = "clear_task"
)

// Valid reports whether s is one of the declared states.
func (s State) Valid() bool {
	switch s {
	case StateWaitingTask, StateSolving, StateFinalAnswer, StateChecking, StateCompleted, StateExamMode:
		return true
	}
	return false
}

// Transition computes the next state and the effects of applying ev in state.
// Illegal triggers return INVALID_TRANSITION and the unchanged state.
func Transition(state State, ev Event) (State, []Effect, error) {
	switch ev {
	case EventReset, EventStartSolving:
		return StateWaitingTask, []Effect{EffectClearTask}, nil
	case EventTaskReceived:
		// A confirmed photo task may replace the one being solved.
		if state == StateWaitingTask || state == StateSolving {
			return StateSolving, []Effect{EffectBeginTask, EffectComplete}, nil
		}
	case EventUserText:
		if state == StateSolving {
			return StateSolving, []Effect{EffectAppendTurn, EffectComplete}, nil
		}
	case EventHintRequested:
		if state == StateSolving {
			return StateSolving, []Effect{EffectAppendHint, EffectComplete}, nil
		}
	case EventSubmitRequested:
		if state == StateSolving {
			return StateFinalAnswer, []Effect{EffectPromptFinal}, nil
		}
	case EventFinalAnswer:
		if state == StateFinalAnswer {
			return StateWaitingTask, []Effect{EffectVerify, EffectRecordResult, EffectMeme, EffectClearTask}, nil
		}
	}
	return state, nil, errors.InvalidTransition(string(state), string(ev))
}

// TextEvent maps a free-text message to the event it represents in state.
func TextEvent(state State) Event {
	switch state {
	case StateWaitingTask:
		return EventTaskReceived
	case StateFinalAnswer:
		return EventFinalAnswer
	default:
		return EventUserText
	}
}

// AcceptsPhoto reports whether a photographed task may be submitted in state.
func AcceptsPhoto(state State) bool {
	return state == StateWaitingTask || state == StateSolving
}
