package hub

import (
	"time"

	"github.com/vovakirdan/wirechat-widget/internal/identity"
)

// EventKind is a notification the hub emits to clients.
type EventKind int

const (
	// EventNewMessage carries one freshly posted message.
	EventNewMessage EventKind = iota
	// EventRecentMessages delivers the transcript tail to one client.
	EventRecentMessages
	// EventOnlineList answers a roster request.
	EventOnlineList
	// EventOnlineUpdated replaces the online roster after a change.
	EventOnlineUpdated
	// EventPresenceUpdated replaces the in-chat roster.
	EventPresenceUpdated
	// EventUserJoined announces a user entering the chat.
	EventUserJoined
	// EventUserLeft announces a user leaving the chat.
	EventUserLeft
	// EventMessageDeleted announces a moderation removal.
	EventMessageDeleted
	// EventChatCleared announces a transcript wipe.
	EventChatCleared
	// EventCacheCleared announces a permanent purge.
	EventCacheCleared
	// EventError notifies one client about a rejected command.
	EventError
)

// Message is a chat message as seen by the hub.
type Message struct {
	ID         string
	AuthorID   string
	AuthorName string
	Body       string
	Kind       string
	IsNotice   bool
	SentAt     time.Time
}

// Member is one roster entry.
type Member struct {
	UserID      string
	DisplayName string
	Role        identity.Role
}

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind      EventKind
	Message   Message
	Messages  []Message
	Roster    []Member
	User      string
	At        time.Time
	MessageID string
	Count     int
	Error     *CoreError
}
