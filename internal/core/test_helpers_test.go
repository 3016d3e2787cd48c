package core

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestRegistry() *Registry {
	logger := zerolog.Nop()
	return NewRegistry(DefaultSettings(), nil, &logger)
}

func newTestClient(id, name string) *Client {
	c := NewClient(id, StateConnected)
	c.SetName(name)
	return c
}

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// noEvent asserts that no event of the given kind is pending.
func noEvent(t *testing.T, ch <-chan *Event, kind EventKind) {
	t.Helper()

	for {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event %+v", ev)
			}
		default:
			return
		}
	}
}
