package hub

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandRegisterPresence marks the client's user as online.
	CommandRegisterPresence CommandKind = iota
	// CommandGetOnlineUsers asks for the current rosters.
	CommandGetOnlineUsers
	// CommandGetRecentMessages asks for the latest transcript.
	CommandGetRecentMessages
	// CommandJoinChat enters the chat room.
	CommandJoinChat
	// CommandLeaveChat exits the chat room.
	CommandLeaveChat
	// CommandSendMessage posts a message or, for admins, a notice.
	CommandSendMessage
	// CommandDeleteMessage removes one message. Admin only.
	CommandDeleteMessage
	// CommandClearAll hides the whole transcript. Admin only.
	CommandClearAll
	// CommandClearCache permanently purges stored messages. Admin only.
	CommandClearCache
)

// Command represents an action requested by a client.
type Command struct {
	Kind      CommandKind
	Limit     int
	Body      string
	IsNotice  bool
	MessageID string
	Action    string
}
