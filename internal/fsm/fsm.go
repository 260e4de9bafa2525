// Package fsm defines the capture lifecycle state machine for a speech session.
package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle      State = "idle"
	StateListening State = "listening"
	StateStopping  State = "stopping"
	StateError     State = "error"
)

const (
	EventStart       Event = "start"
	EventStopRequest Event = "stop_request"
	EventStopped     Event = "stopped"
	EventFail        Event = "fail"
	EventReset       Event = "reset"
)

func Transition(current State, event Event) (State, error) {
	if event == EventFail {
		return StateError, nil
	}

	switch current {
	case StateIdle:
		switch event {
		case EventStart:
			return StateListening, nil
		case EventStopped:
			// Stop on an already-stopped session is a no-op.
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateListening:
		switch event {
		case EventStopRequest:
			return StateStopping, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateStopping:
		switch event {
		case EventStopped:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateError:
		switch event {
		case EventReset:
			return StateIdle, nil
		case EventStart:
			// A fresh start recovers from a reported environment error.
			return StateListening, nil
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
