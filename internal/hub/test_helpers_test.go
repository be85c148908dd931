package hub

import (
	"context"
	"testing"
	"time"

	"github.com/vovakirdan/wirechat-widget/internal/identity"
	"github.com/vovakirdan/wirechat-widget/internal/store"
)

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

func startHub(t *testing.T, st store.MessageStore) *Hub {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	h := NewHub(st, Limits{HistoryLimit: 10, MaxMessageBytes: 32}, nil)
	go h.Run(ctx)
	return h
}

func connect(h *Hub, id string, ident *identity.Identity) *Client {
	c := NewClient(id, ident)
	h.RegisterClient(c)
	return c
}

func user(id, name string) *identity.Identity {
	return &identity.Identity{ID: id, DisplayName: name, Role: identity.RoleUser}
}

func adminUser(id, name string) *identity.Identity {
	return &identity.Identity{ID: id, DisplayName: name, Role: identity.RoleAdmin}
}
