package widget

import "github.com/vovakirdan/wirechat-widget/internal/identity"

// Snapshot is a deep copy of everything a view needs to render the widget.
type Snapshot struct {
	State       ConnectionState
	Unavailable bool
	ConnErr     error

	// Identity is the current user with the token stripped, or nil.
	Identity *identity.Identity

	Online      []PresenceEntry
	Chat        []PresenceEntry
	OnlineCount int
	ChatCount   int
	InChat      bool

	Messages []Message
	Notices  []Notice

	Open              bool
	Unread            int
	Alert             *Alert
	PendingModeration int
}

// IsAdmin reports whether moderation controls should be shown.
func (s Snapshot) IsAdmin() bool {
	return s.Identity != nil && s.Identity.IsAdmin()
}

func (w *Widget) snapshot() Snapshot {
	s := Snapshot{
		State:             w.link.state,
		Unavailable:       w.link.unavailable,
		ConnErr:           w.link.lastErr,
		Online:            w.presence.Online(),
		Chat:              w.presence.Chat(),
		ChatCount:         w.presence.ChatCount(),
		Messages:          w.transcript.Messages(),
		Notices:           w.transcript.Notices(),
		Open:              w.open,
		Unread:            w.unread,
		PendingModeration: len(w.moderation.pending),
	}
	connected := w.link.state == StateConnected
	if w.identity != nil {
		id := *w.identity
		id.Token = ""
		s.Identity = &id
		s.InChat = w.presence.InChat(id.ID)
	}
	s.OnlineCount = w.presence.OnlineCount(connected && w.identity != nil)
	if w.alert != nil {
		a := *w.alert
		s.Alert = &a
	}
	return s
}
