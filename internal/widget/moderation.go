package widget

import (
	"context"
	"fmt"

	"github.com/vovakirdan/wirechat-widget/internal/identity"
)

// ModerationAction names a privileged operation.
type ModerationAction string

const (
	ActionDeleteMessage ModerationAction = "delete-message"
	ActionClearAll      ModerationAction = "clear-all-messages"
	ActionPurgeHistory  ModerationAction = "purge-history"
)

// Confirmer asks the actor to confirm a destructive action.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

// Confirm implements Confirmer.
func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) {
	return f(ctx, prompt)
}

// AutoConfirm approves every prompt. Meant for scripted clients.
var AutoConfirm Confirmer = ConfirmFunc(func(context.Context, string) (bool, error) { return true, nil })

type pendingAction struct {
	action ModerationAction
	target string
}

// moderation is the client-side gate around privileged operations. The server
// remains the authority; this only spares obviously doomed requests and keeps
// track of what is awaiting an echo.
type moderation struct {
	pending []pendingAction
}

func (m *moderation) gate(id *identity.Identity, state ConnectionState) error {
	if id == nil || !id.IsAdmin() {
		return ErrNotAdmin
	}
	if state != StateConnected {
		return ErrNotConnected
	}
	return nil
}

func (m *moderation) track(action ModerationAction, target string) {
	m.pending = append(m.pending, pendingAction{action: action, target: target})
}

// settle drops the oldest pending request matched by a server echo.
func (m *moderation) settle(action ModerationAction, target string) bool {
	for i, p := range m.pending {
		if p.action != action {
			continue
		}
		if action == ActionDeleteMessage && p.target != target {
			continue
		}
		m.pending = append(m.pending[:i:i], m.pending[i+1:]...)
		return true
	}
	return false
}

// reject pops the oldest pending request when the server refuses one.
func (m *moderation) reject() (pendingAction, bool) {
	if len(m.pending) == 0 {
		return pendingAction{}, false
	}
	p := m.pending[0]
	m.pending = m.pending[1:]
	return p, true
}

func (m *moderation) reset() {
	m.pending = nil
}

func confirmPrompt(action ModerationAction, target string) string {
	switch action {
	case ActionDeleteMessage:
		return fmt.Sprintf("Delete message %s?", target)
	case ActionClearAll:
		return "Clear all messages for everyone?"
	case ActionPurgeHistory:
		return "Permanently purge all stored messages and notices?"
	default:
		return fmt.Sprintf("Run %s?", action)
	}
}
