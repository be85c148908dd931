package http

import (
	"encoding/json"

	"github.com/vovakirdan/wirechat-widget/internal/hub"
	"github.com/vovakirdan/wirechat-widget/internal/proto"
)

const errCodeUnknownEvent = "unknown_event"

func frameToCommand(f proto.Frame) (*hub.Command, *proto.ErrorData) {
	switch f.Event {
	case proto.EventRegisterPresence:
		// The identity comes from the token, not from the payload.
		return &hub.Command{Kind: hub.CommandRegisterPresence}, nil
	case proto.EventGetOnlineUsers:
		return &hub.Command{Kind: hub.CommandGetOnlineUsers}, nil
	case proto.EventGetRecentMessages:
		var req proto.RecentMessagesRequest
		if len(f.Data) > 0 {
			if err := json.Unmarshal(f.Data, &req); err != nil {
				return nil, badRequest("invalid get-recent-messages payload")
			}
		}
		return &hub.Command{Kind: hub.CommandGetRecentMessages, Limit: req.Limit}, nil
	case proto.EventJoinChat:
		return &hub.Command{Kind: hub.CommandJoinChat}, nil
	case proto.EventLeaveChat:
		return &hub.Command{Kind: hub.CommandLeaveChat}, nil
	case proto.EventSendMessage:
		var msg proto.SendMessageData
		if err := json.Unmarshal(f.Data, &msg); err != nil {
			return nil, badRequest("invalid send-message payload")
		}
		return &hub.Command{Kind: hub.CommandSendMessage, Body: msg.Body, IsNotice: msg.IsNotice}, nil
	case proto.EventDeleteMessage:
		var del proto.DeleteMessageData
		if err := json.Unmarshal(f.Data, &del); err != nil || del.MessageID == "" {
			return nil, badRequest("messageId is required")
		}
		return &hub.Command{Kind: hub.CommandDeleteMessage, MessageID: del.MessageID}, nil
	case proto.EventClearAllMessages:
		return &hub.Command{Kind: hub.CommandClearAll}, nil
	case proto.EventClearCache:
		var cc proto.ClearCacheData
		if err := json.Unmarshal(f.Data, &cc); err != nil {
			return nil, badRequest("invalid clear-cache payload")
		}
		return &hub.Command{Kind: hub.CommandClearCache, Action: cc.Action}, nil
	default:
		return nil, &proto.ErrorData{Code: errCodeUnknownEvent, Message: "unknown event " + f.Event}
	}
}

func badRequest(msg string) *proto.ErrorData {
	return &proto.ErrorData{Code: hub.ErrCodeBadRequest, Message: msg}
}

func eventToFrame(ev *hub.Event) (proto.Frame, error) {
	switch ev.Kind {
	case hub.EventNewMessage:
		return proto.NewFrame(proto.EventNewMessage, wireMessage(ev.Message))
	case hub.EventRecentMessages:
		msgs := make([]proto.Message, 0, len(ev.Messages))
		for _, m := range ev.Messages {
			msgs = append(msgs, wireMessage(m))
		}
		return proto.NewFrame(proto.EventRecentMessages, msgs)
	case hub.EventOnlineList:
		return proto.NewFrame(proto.EventOnlineUsersList, wireRoster(ev.Roster))
	case hub.EventOnlineUpdated:
		return proto.NewFrame(proto.EventOnlineUsersUpdated, wireRoster(ev.Roster))
	case hub.EventPresenceUpdated:
		return proto.NewFrame(proto.EventPresenceUpdated, wireRoster(ev.Roster))
	case hub.EventUserJoined:
		return proto.NewFrame(proto.EventUserJoined, proto.UserActivityData{Username: ev.User, Timestamp: proto.At(ev.At)})
	case hub.EventUserLeft:
		return proto.NewFrame(proto.EventUserLeft, proto.UserActivityData{Username: ev.User, Timestamp: proto.At(ev.At)})
	case hub.EventMessageDeleted:
		return proto.NewFrame(proto.EventMessageDeleted, proto.MessageDeletedData{MessageID: ev.MessageID})
	case hub.EventChatCleared:
		return proto.NewFrame(proto.EventChatCleared, nil)
	case hub.EventCacheCleared:
		return proto.NewFrame(proto.EventCacheCleared, proto.CacheClearedData{DeletedCount: ev.Count})
	case hub.EventError:
		if ev.Error == nil {
			return proto.NewFrame(proto.EventError, proto.ErrorData{Code: "unknown", Message: "unknown error"})
		}
		return proto.NewFrame(proto.EventError, proto.ErrorData{Code: ev.Error.Code, Message: ev.Error.Message})
	default:
		return proto.NewFrame(proto.EventError, proto.ErrorData{Code: "unknown", Message: "unknown event"})
	}
}

func wireMessage(m hub.Message) proto.Message {
	return proto.Message{
		ID:         m.ID,
		AuthorName: m.AuthorName,
		Body:       m.Body,
		SentAt:     proto.At(m.SentAt),
		Kind:       m.Kind,
		IsNotice:   m.IsNotice,
	}
}

func wireRoster(members []hub.Member) proto.RosterData {
	users := make([]proto.RosterUser, 0, len(members))
	for _, m := range members {
		users = append(users, proto.RosterUser{
			UserID:      m.UserID,
			DisplayName: m.DisplayName,
			Role:        string(m.Role),
			Status:      "online",
		})
	}
	return proto.RosterData{Users: users, Count: len(users)}
}
