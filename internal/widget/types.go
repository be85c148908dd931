package widget

import (
	"time"

	"github.com/vovakirdan/wirechat-widget/internal/identity"
	"github.com/vovakirdan/wirechat-widget/internal/proto"
)

// StatusOnline is the only presence status the backend reports.
const StatusOnline = "online"

// PresenceEntry is one member of the online or in-chat set.
type PresenceEntry struct {
	UserID      string
	DisplayName string
	Role        identity.Role
	Status      string
}

func entryFromIdentity(id identity.Identity) PresenceEntry {
	return PresenceEntry{
		UserID:      id.ID,
		DisplayName: id.Name(),
		Role:        id.Role,
		Status:      StatusOnline,
	}
}

func entryFromRoster(u proto.RosterUser) PresenceEntry {
	return PresenceEntry{
		UserID:      u.UserID,
		DisplayName: u.DisplayName,
		Role:        identity.ParseRole(u.Role),
		Status:      u.Status,
	}
}

// Message is an immutable transcript entry.
type Message struct {
	ID         string
	AuthorName string
	Body       string
	SentAt     proto.Timestamp
	Kind       string
	IsNotice   bool
}

// IsAdminNotice reports whether m belongs in the pinned collection.
func (m Message) IsAdminNotice() bool {
	return m.IsNotice && m.Kind == proto.KindAdmin
}

// SentAtLabel renders the send time, degrading to a placeholder.
func (m Message) SentAtLabel() string {
	return m.SentAt.Display("15:04")
}

func messageFromProto(m proto.Message) Message {
	return Message{
		ID:         m.ID,
		AuthorName: m.AuthorName,
		Body:       m.Body,
		SentAt:     m.SentAt,
		Kind:       m.Kind,
		IsNotice:   m.IsNotice,
	}
}

// Notice is a pinned admin message.
type Notice struct {
	Message
	PinnedAt time.Time
	AutoHide bool
}

// Alert is a one-shot user-visible notice, such as a rejected moderation action.
type Alert struct {
	Seq     uint64
	Message string
	Err     error
}
