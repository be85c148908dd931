package proto

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownEvent is returned for event names outside the contract.
	ErrUnknownEvent = errors.New("unknown event")
	// ErrMalformed is returned when a payload does not match its event shape.
	ErrMalformed = errors.New("malformed payload")
)

// Frame is the envelope for every message in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewFrame marshals data into a frame for the given event.
func NewFrame(event string, data any) (Frame, error) {
	if data == nil {
		return Frame{Event: event}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Frame{}, fmt.Errorf("marshal %s: %w", event, err)
	}
	return Frame{Event: event, Data: raw}, nil
}

// RosterScope tells which membership set a roster push replaces.
type RosterScope int

const (
	// ScopeOnline is the set of users with a registered live connection.
	ScopeOnline RosterScope = iota
	// ScopeChat is the set of users who joined the chat room.
	ScopeChat
)

// Push is a narrowed server-to-client event.
type Push interface {
	EventName() string
}

// RecentMessages carries the initial history batch.
type RecentMessages struct {
	Messages []Message
}

// NewMessage carries one freshly broadcast message.
type NewMessage struct {
	Message Message
}

// RosterUpdate replaces a membership set.
type RosterUpdate struct {
	Event  string
	Scope  RosterScope
	Roster RosterData
}

// UserJoined announces a user entering the room.
type UserJoined struct {
	UserActivityData
}

// UserLeft announces a user leaving the room.
type UserLeft struct {
	UserActivityData
}

// MessageDeleted announces a moderation removal.
type MessageDeleted struct {
	MessageID string
}

// ChatCleared announces a whole-room wipe.
type ChatCleared struct{}

// CacheCleared announces a permanent purge.
type CacheCleared struct {
	DeletedCount int
}

// ServerError carries a rejection such as a refused moderation action.
type ServerError struct {
	Message string
	Code    string
}

func (RecentMessages) EventName() string { return EventRecentMessages }
func (NewMessage) EventName() string     { return EventNewMessage }
func (r RosterUpdate) EventName() string { return r.Event }
func (UserJoined) EventName() string     { return EventUserJoined }
func (UserLeft) EventName() string       { return EventUserLeft }
func (MessageDeleted) EventName() string { return EventMessageDeleted }
func (ChatCleared) EventName() string    { return EventChatCleared }
func (CacheCleared) EventName() string   { return EventCacheCleared }
func (ServerError) EventName() string    { return EventError }

// Decode narrows a frame into its typed push variant.
func Decode(f Frame) (Push, error) {
	switch f.Event {
	case EventRecentMessages:
		var msgs []Message
		if err := unmarshalData(f, &msgs); err != nil {
			return nil, err
		}
		out := make([]Message, 0, len(msgs))
		for _, m := range msgs {
			if m.ID == "" {
				continue
			}
			out = append(out, normalizeMessage(m))
		}
		return RecentMessages{Messages: out}, nil
	case EventNewMessage:
		var m Message
		if err := unmarshalData(f, &m); err != nil {
			return nil, err
		}
		if m.ID == "" {
			return nil, fmt.Errorf("%w: %s: missing id", ErrMalformed, f.Event)
		}
		return NewMessage{Message: normalizeMessage(m)}, nil
	case EventOnlineUsersList, EventOnlineUsersUpdated, EventPresenceUpdated:
		var r RosterData
		if err := unmarshalData(f, &r); err != nil {
			return nil, err
		}
		scope := ScopeOnline
		if f.Event == EventPresenceUpdated {
			scope = ScopeChat
		}
		users := make([]RosterUser, 0, len(r.Users))
		for _, u := range r.Users {
			if u.UserID == "" {
				continue
			}
			if u.Status == "" {
				u.Status = "online"
			}
			users = append(users, u)
		}
		r.Users = users
		return RosterUpdate{Event: f.Event, Scope: scope, Roster: r}, nil
	case EventUserJoined:
		var a UserActivityData
		if err := unmarshalData(f, &a); err != nil {
			return nil, err
		}
		return UserJoined{UserActivityData: a}, nil
	case EventUserLeft:
		var a UserActivityData
		if err := unmarshalData(f, &a); err != nil {
			return nil, err
		}
		return UserLeft{UserActivityData: a}, nil
	case EventMessageDeleted:
		var d MessageDeletedData
		if err := unmarshalData(f, &d); err != nil {
			return nil, err
		}
		if d.MessageID == "" {
			return nil, fmt.Errorf("%w: %s: missing messageId", ErrMalformed, f.Event)
		}
		return MessageDeleted{MessageID: d.MessageID}, nil
	case EventChatCleared:
		return ChatCleared{}, nil
	case EventCacheCleared:
		var d CacheClearedData
		if len(f.Data) > 0 {
			if err := unmarshalData(f, &d); err != nil {
				return nil, err
			}
		}
		return CacheCleared{DeletedCount: d.DeletedCount}, nil
	case EventError:
		var d ErrorData
		if err := unmarshalData(f, &d); err != nil {
			return nil, err
		}
		if d.Message == "" {
			d.Message = "request rejected"
		}
		return ServerError{Message: d.Message, Code: d.Code}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, f.Event)
	}
}

func unmarshalData(f Frame, v any) error {
	if len(f.Data) == 0 {
		return fmt.Errorf("%w: %s: empty data", ErrMalformed, f.Event)
	}
	if err := json.Unmarshal(f.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, f.Event, err)
	}
	return nil
}

func normalizeMessage(m Message) Message {
	switch strings.ToLower(m.Kind) {
	case KindAdmin:
		m.Kind = KindAdmin
	case KindSystem:
		m.Kind = KindSystem
	default:
		m.Kind = KindUser
	}
	return m
}

// IsAdminNotice reports whether m belongs to the pinned notice collection.
func (m Message) IsAdminNotice() bool {
	return m.IsNotice && m.Kind == KindAdmin
}
