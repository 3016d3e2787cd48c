package core

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestMessageOrderingPerRoom(t *testing.T) {
	reg := newTestRegistry()

	alice := newTestClient("a", "alice")
	code, err := reg.CreateRoom(alice)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	bob := newTestClient("b", "bob")
	if err := reg.JoinRoom(code, bob); err != nil {
		t.Fatalf("join: %v", err)
	}

	room := alice.Room()
	for i := 0; i < 10; i++ {
		if err := room.PostMessage(alice, fmt.Sprintf("msg-%d", i)); err != nil {
			t.Fatalf("post %d: %v", i, err)
		}
	}

	// Both members observe the messages in posting order.
	for _, member := range []*Client{alice, bob} {
		for i := 0; i < 10; i++ {
			ev := mustEvent(t, member.Events, EventChatMessage)
			want := fmt.Sprintf("msg-%d", i)
			if ev.Message.Body != want {
				t.Fatalf("member %s got %q at position %d, want %q", member.ID, ev.Message.Body, i, want)
			}
		}
	}
}

func TestPostMessageBounds(t *testing.T) {
	reg := newTestRegistry()
	alice := newTestClient("a", "alice")
	if _, err := reg.CreateRoom(alice); err != nil {
		t.Fatalf("create: %v", err)
	}
	room := alice.Room()

	if err := room.PostMessage(alice, strings.Repeat("x", 200)); err != nil {
		t.Fatalf("200-char body should pass: %v", err)
	}
	if err := room.PostMessage(alice, strings.Repeat("x", 201)); !errors.Is(err, ErrMessageTooLong) {
		t.Fatalf("201-char body should fail, got %v", err)
	}
}

func TestPostMessageFromNonMember(t *testing.T) {
	reg := newTestRegistry()
	alice := newTestClient("a", "alice")
	if _, err := reg.CreateRoom(alice); err != nil {
		t.Fatalf("create: %v", err)
	}
	room := alice.Room()

	stranger := newTestClient("s", "stranger")
	if err := room.PostMessage(stranger, "hello?"); !errors.Is(err, ErrNotAMember) {
		t.Fatalf("expected not a member, got %v", err)
	}
	noEvent(t, alice.Events, EventChatMessage)
}

func TestHistoryReplayToLateJoiner(t *testing.T) {
	reg := newTestRegistry()

	alice := newTestClient("a", "alice")
	code, err := reg.CreateRoom(alice)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	room := alice.Room()
	_ = room.PostMessage(alice, "first")
	_ = room.PostMessage(alice, "second")

	bob := newTestClient("b", "bob")
	if err := reg.JoinRoom(code, bob); err != nil {
		t.Fatalf("join: %v", err)
	}

	// The joiner sees: ack, history, snapshot, strictly in that order.
	ack := <-bob.Events
	if ack.Kind != EventAck || ack.Ack == nil || !ack.Ack.Success {
		t.Fatalf("expected success ack first, got %+v", ack)
	}
	hist := <-bob.Events
	if hist.Kind != EventHistory {
		t.Fatalf("expected history second, got %+v", hist)
	}
	if len(hist.Messages) != 2 || hist.Messages[0].Body != "first" || hist.Messages[1].Body != "second" {
		t.Fatalf("unexpected history: %+v", hist.Messages)
	}
	snap := <-bob.Events
	if snap.Kind != EventRoomSnapshot || len(snap.Members) != 2 {
		t.Fatalf("expected 2-member snapshot third, got %+v", snap)
	}
}

func TestSnapshotOnRemove(t *testing.T) {
	reg := newTestRegistry()

	alice := newTestClient("a", "alice")
	code, err := reg.CreateRoom(alice)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	bob := newTestClient("b", "bob")
	if err := reg.JoinRoom(code, bob); err != nil {
		t.Fatalf("join: %v", err)
	}
	mustEvent(t, bob.Events, EventRoomSnapshot)

	reg.Leave(alice)

	snap := mustEvent(t, bob.Events, EventRoomSnapshot)
	if len(snap.Members) != 1 || snap.Members[0].DisplayName != "bob" {
		t.Fatalf("unexpected snapshot after leave: %+v", snap.Members)
	}
}

func TestHistoryRingIsBounded(t *testing.T) {
	reg := newTestRegistry() // defaults: history limit 50
	alice := newTestClient("a", "alice")
	code, err := reg.CreateRoom(alice)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	room := alice.Room()
	for i := 0; i < 60; i++ {
		if err := room.PostMessage(alice, fmt.Sprintf("m%d", i)); err != nil {
			t.Fatalf("post: %v", err)
		}
		// Keep the queue from overflowing; delivery is not under test.
		drain(alice.Events)
	}

	bob := newTestClient("b", "bob")
	if err := reg.JoinRoom(code, bob); err != nil {
		t.Fatalf("join: %v", err)
	}
	hist := mustEvent(t, bob.Events, EventHistory)
	if len(hist.Messages) != 50 {
		t.Fatalf("expected 50 retained messages, got %d", len(hist.Messages))
	}
	if hist.Messages[0].Body != "m10" {
		t.Fatalf("expected oldest retained message m10, got %s", hist.Messages[0].Body)
	}
}

func drain(ch <-chan *Event) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}
