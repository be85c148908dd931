package proto

// Client to server event names.
const (
	EventRegisterPresence  = "register-presence"
	EventGetOnlineUsers    = "get-online-users"
	EventGetRecentMessages = "get-recent-messages"
	EventJoinChat          = "join-chat"
	EventLeaveChat         = "leave-chat"
	EventSendMessage       = "send-message"
	EventDeleteMessage     = "delete-message"
	EventClearAllMessages  = "clear-all-messages"
	EventClearCache        = "clear-cache"
)

// Server to client event names.
const (
	EventRecentMessages     = "recent-messages"
	EventNewMessage         = "new-message"
	EventOnlineUsersList    = "online-users-list"
	EventPresenceUpdated    = "presence-updated"
	EventOnlineUsersUpdated = "online-users-updated"
	EventUserJoined         = "user-joined"
	EventUserLeft           = "user-left"
	EventMessageDeleted     = "message-deleted"
	EventChatCleared        = "chat-cleared"
	EventCacheCleared       = "cache-cleared"
	EventError              = "error"
)

// Message kinds.
const (
	KindUser   = "user"
	KindAdmin  = "admin"
	KindSystem = "system"
)

// Error codes the backend uses for refused moderation requests.
const (
	CodeForbidden = "forbidden"
	CodeNotFound  = "not_found"
)

// ClearCacheActionPurge asks the server to drop every stored message and notice.
const ClearCacheActionPurge = "purge-all"

// PresenceData identifies a user in register-presence, join-chat and leave-chat.
type PresenceData struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

// RecentMessagesRequest asks for the latest transcript.
type RecentMessagesRequest struct {
	Limit int `json:"limit,omitempty"`
}

// SendMessageData is a chat message posted by the client.
type SendMessageData struct {
	Body     string `json:"body"`
	Kind     string `json:"kind"`
	IsNotice bool   `json:"isNotice"`
}

// DeleteMessageData asks an admin removal of one message.
type DeleteMessageData struct {
	MessageID string `json:"messageId"`
}

// ClearCacheData asks a permanent purge.
type ClearCacheData struct {
	Action string `json:"action"`
}

// Message is a transcript entry as carried on the wire.
type Message struct {
	ID         string    `json:"id"`
	AuthorName string    `json:"authorName"`
	Body       string    `json:"body"`
	SentAt     Timestamp `json:"sentAt"`
	Kind       string    `json:"kind"`
	IsNotice   bool      `json:"isNotice"`
}

// RosterUser is one entry of an online or in-chat roster.
type RosterUser struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role,omitempty"`
	Status      string `json:"status,omitempty"`
}

// RosterData is the full-replace roster payload.
type RosterData struct {
	Users []RosterUser `json:"users"`
	Count int          `json:"count"`
}

// UserActivityData announces a join or leave.
type UserActivityData struct {
	Username  string    `json:"username"`
	Timestamp Timestamp `json:"timestamp"`
}

// MessageDeletedData names the removed message.
type MessageDeletedData struct {
	MessageID string `json:"messageId"`
}

// CacheClearedData reports how many stored entries were purged.
type CacheClearedData struct {
	DeletedCount int `json:"deletedCount"`
}

// ErrorData describes a server-side rejection.
type ErrorData struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
