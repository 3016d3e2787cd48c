package core

import "fmt"

// ConnState is the lifecycle state of one transport connection.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateJoining
	StateInRoom
	StateLeaving
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateJoining:
		return "joining"
	case StateInRoom:
		return "in_room"
	case StateLeaving:
		return "leaving"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// legalTransitions lists the allowed next states per state. A transport
// drop may force any state to Disconnected, so that edge is implicit.
var legalTransitions = map[ConnState][]ConnState{
	StateDisconnected: {StateConnecting},
	StateConnecting:   {StateConnected},
	StateConnected:    {StateJoining},
	StateJoining:      {StateInRoom, StateConnected},
	StateInRoom:       {StateLeaving},
	StateLeaving:      {StateConnected},
}

func canTransition(from, to ConnState) bool {
	if to == StateDisconnected {
		return true
	}
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
