// Package identity models the signed-in user as seen by the chat widget.
// Identities are produced by the auth collaborator; the widget only reads them.
package identity

import (
	"strings"
	"sync"
)

// Role grants or withholds moderation affordances.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole maps free-form input onto a known role, defaulting to RoleUser.
func ParseRole(s string) Role {
	if strings.EqualFold(strings.TrimSpace(s), string(RoleAdmin)) {
		return RoleAdmin
	}
	return RoleUser
}

// Identity is the authenticated user.
type Identity struct {
	ID          string
	DisplayName string
	Role        Role
	// Token is the credential presented to the chat backend, if any.
	Token string
}

// IsAdmin reports whether the identity may see moderation controls.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// Name returns the display name, falling back to the id.
func (i Identity) Name() string {
	if i.DisplayName != "" {
		return i.DisplayName
	}
	return i.ID
}

// Same reports whether a and b describe the same principal with the same role.
func Same(a, b *Identity) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID && a.Role == b.Role && a.DisplayName == b.DisplayName
}

// Provider exposes the current identity and its login/logout transitions.
type Provider interface {
	// Current returns the signed-in identity or nil when anonymous.
	Current() *Identity
	// Changes delivers transitions in order. nil means logged out. A reader
	// that falls behind may miss intermediate transitions, never the latest.
	Changes() <-chan *Identity
}

// Session is an in-memory Provider driven by explicit Login and Logout calls.
type Session struct {
	mu      sync.Mutex
	current *Identity
	changes chan *Identity
}

// NewSession creates a session, optionally already signed in.
func NewSession(initial *Identity) *Session {
	s := &Session{changes: make(chan *Identity, 16)}
	if initial != nil {
		cp := *initial
		s.current = &cp
	}
	return s
}

// Current implements Provider.
func (s *Session) Current() *Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	cp := *s.current
	return &cp
}

// Changes implements Provider.
func (s *Session) Changes() <-chan *Identity {
	return s.changes
}

// Login replaces the current identity.
func (s *Session) Login(id Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = &id
	cp := id
	s.notify(&cp)
}

// Logout clears the current identity.
func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return
	}
	s.current = nil
	s.notify(nil)
}

// notify queues a transition without blocking. When nobody drains Changes,
// the oldest queued transition is dropped so the latest one always lands.
// Callers hold mu, which keeps transitions in order.
func (s *Session) notify(next *Identity) {
	for {
		select {
		case s.changes <- next:
			return
		default:
		}
		select {
		case <-s.changes:
		default:
		}
	}
}
