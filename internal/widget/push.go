package widget

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/vovakirdan/wirechat-widget/internal/proto"
	"github.com/vovakirdan/wirechat-widget/internal/telemetry"
)

const systemAuthor = "system"

// onFrame applies one inbound frame if it belongs to the live channel.
func (w *Widget) onFrame(epoch uint64, f proto.Frame) {
	if epoch != w.link.epoch || w.link.state != StateConnected {
		telemetry.Inc(telemetry.StaleEvents)
		w.log.Debug().Str("event", f.Event).Msg("stale event ignored")
		return
	}
	p, err := proto.Decode(f)
	if err != nil {
		if errors.Is(err, proto.ErrUnknownEvent) {
			w.log.Debug().Str("event", f.Event).Msg("unknown event ignored")
		} else {
			w.log.Warn().Err(err).Str("event", f.Event).Msg("malformed event ignored")
		}
		return
	}
	w.apply(p)
}

func (w *Widget) apply(p proto.Push) {
	now := w.now()
	switch p := p.(type) {
	case proto.RecentMessages:
		batch := make([]Message, 0, len(p.Messages))
		for _, m := range p.Messages {
			batch = append(batch, messageFromProto(m))
		}
		regular, notices := w.transcript.LoadHistory(batch, now)
		w.log.Debug().Int("messages", regular).Int("notices", notices).Msg("history loaded")

	case proto.NewMessage:
		m := messageFromProto(p.Message)
		if w.transcript.Receive(m, now) && !w.open {
			w.unread++
		}

	case proto.RosterUpdate:
		entries := make([]PresenceEntry, 0, len(p.Roster.Users))
		for _, u := range p.Roster.Users {
			entries = append(entries, entryFromRoster(u))
		}
		if p.Scope == proto.ScopeChat {
			w.presence.ReplaceChat(entries)
		} else {
			w.presence.ReplaceOnline(entries)
		}

	case proto.UserJoined:
		w.transcript.Receive(w.systemMessage(p.UserActivityData, "%s joined the chat"), now)

	case proto.UserLeft:
		w.transcript.Receive(w.systemMessage(p.UserActivityData, "%s left the chat"), now)

	case proto.MessageDeleted:
		w.transcript.Remove(p.MessageID)
		w.moderation.settle(ActionDeleteMessage, p.MessageID)

	case proto.ChatCleared:
		w.transcript.Clear()
		w.moderation.settle(ActionClearAll, "")

	case proto.CacheCleared:
		w.transcript.Clear()
		w.moderation.settle(ActionPurgeHistory, "")
		w.log.Info().Int("deleted", p.DeletedCount).Msg("history purged")

	case proto.ServerError:
		w.log.Warn().Str("code", p.Code).Str("message", p.Message).Msg("server rejected request")
		if !isModerationRefusal(p.Code) {
			w.raise(p.Message, fmt.Errorf("server: %s", p.Message))
			return
		}
		if pending, ok := w.moderation.reject(); ok {
			w.raise(p.Message, &ModerationError{Action: pending.action, Message: p.Message})
			return
		}
		w.raise(p.Message, fmt.Errorf("server: %s", p.Message))
	}
}

func (w *Widget) systemMessage(a proto.UserActivityData, format string) Message {
	at := a.Timestamp
	if at.IsZero() {
		at = proto.At(w.now())
	}
	name := a.Username
	if name == "" {
		name = "someone"
	}
	return Message{
		ID:         uuid.NewString(),
		AuthorName: systemAuthor,
		Body:       fmt.Sprintf(format, name),
		SentAt:     at,
		Kind:       proto.KindSystem,
	}
}

// isModerationRefusal reports whether an error code can answer a moderation
// request. Other codes, such as rate limits, belong to ordinary sends.
func isModerationRefusal(code string) bool {
	return code == proto.CodeForbidden || code == proto.CodeNotFound
}
