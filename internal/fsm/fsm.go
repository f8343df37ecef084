// Package fsm models the assistant conversation lifecycle as a pure transition function.
package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle      State = "idle"
	StateListening State = "listening"
	StateRecording State = "recording"
	StateThinking  State = "thinking"
	StateSpeaking  State = "speaking"
	StateError     State = "error"
)

const (
	EventListen   Event = "listen"   // begin passive wake-word listening
	EventWake     Event = "wake"     // wake phrase detected, start recording
	EventCaptured Event = "captured" // recording finalized, waiting on reply
	EventReply    Event = "reply"    // reply text ready, start speaking
	EventSpoken   Event = "spoken"   // playback finished, resume listening
	EventCancel   Event = "cancel"   // abandon the active exchange
	EventHalt     Event = "halt"     // stop listening entirely
	EventFail     Event = "fail"
	EventReset    Event = "reset"
)

func Transition(current State, event Event) (State, error) {
	if event == EventFail {
		return StateError, nil
	}

	switch current {
	case StateIdle:
		switch event {
		case EventListen:
			return StateListening, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateListening:
		switch event {
		case EventWake:
			return StateRecording, nil
		case EventHalt:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateRecording:
		switch event {
		case EventCaptured:
			return StateThinking, nil
		case EventCancel:
			return StateListening, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateThinking:
		switch event {
		case EventReply:
			return StateSpeaking, nil
		case EventCancel:
			return StateListening, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateSpeaking:
		switch event {
		case EventSpoken:
			return StateListening, nil
		case EventCancel:
			return StateListening, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateError:
		switch event {
		case EventReset:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
