// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package consumer

// State is the lifecycle state of a Connection.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// transitions lists every allowed State edge. Closed is absorbing.
var transitions = map[State]map[State]bool{
	StateConnecting: {StateOpen: true, StateClosing: true},
	StateOpen:       {StateClosing: true},
	StateClosing:    {StateClosed: true},
	StateClosed:     {},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to State) bool {
	return transitions[from][to]
}

// Trigger records what started a connection's shutdown.
type Trigger int32

const (
	TriggerNone Trigger = iota
	TriggerDisconnect
	TriggerError
	TriggerSessionInvalid
	TriggerCheckFailed
	TriggerServerClose
	TriggerHandshake
)

func (t Trigger) String() string {
	switch t {
	case TriggerNone:
		return "none"
	case TriggerDisconnect:
		return "disconnect"
	case TriggerError:
		return "error"
	case TriggerSessionInvalid:
		return "session_invalid"
	case TriggerCheckFailed:
		return "check_failed"
	case TriggerServerClose:
		return "server_close"
	case TriggerHandshake:
		return "handshake"
	default:
		return "unknown"
	}
}
