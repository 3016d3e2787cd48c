package core

import "testing"

func TestConnStateTransitions(t *testing.T) {
	tests := []struct {
		from ConnState
		to   ConnState
		ok   bool
	}{
		{StateDisconnected, StateConnecting, true},
		{StateConnecting, StateConnected, true},
		{StateConnected, StateJoining, true},
		{StateJoining, StateInRoom, true},
		{StateJoining, StateConnected, true}, // failed join allows retry
		{StateInRoom, StateLeaving, true},
		{StateLeaving, StateConnected, true},

		// A transport drop forces Disconnected from anywhere.
		{StateInRoom, StateDisconnected, true},
		{StateJoining, StateDisconnected, true},
		{StateConnected, StateDisconnected, true},

		{StateConnected, StateInRoom, false}, // must pass through Joining
		{StateInRoom, StateJoining, false},   // no join while a member
		{StateDisconnected, StateInRoom, false},
		{StateLeaving, StateInRoom, false},
	}

	for _, tt := range tests {
		c := NewClient("id", tt.from)
		err := c.Transition(tt.to)
		if tt.ok && err != nil {
			t.Errorf("%s -> %s should be legal: %v", tt.from, tt.to, err)
		}
		if !tt.ok && err == nil {
			t.Errorf("%s -> %s should be rejected", tt.from, tt.to)
		}
	}
}

func TestTakeRoomIsSingleShot(t *testing.T) {
	reg := newTestRegistry()
	alice := newTestClient("a", "alice")
	if _, err := reg.CreateRoom(alice); err != nil {
		t.Fatalf("create: %v", err)
	}

	if alice.takeRoom() == nil {
		t.Fatal("first takeRoom should return the room")
	}
	if alice.takeRoom() != nil {
		t.Fatal("second takeRoom should return nil")
	}
}
