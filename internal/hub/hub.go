// Package hub coordinates the development chat backend: sockets, the online
// and in-chat rosters, message fan-out and moderation.
package hub

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-widget/internal/identity"
	"github.com/vovakirdan/wirechat-widget/internal/proto"
	"github.com/vovakirdan/wirechat-widget/internal/store"
	"github.com/vovakirdan/wirechat-widget/internal/telemetry"
)

// Limits bounds client requests.
type Limits struct {
	HistoryLimit    int
	MaxMessageBytes int
}

type envelope struct {
	client *Client
	cmd    *Command
}

type onlineUser struct {
	member Member
	conns  int
}

// Hub owns all chat state. Only the Run goroutine touches it.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	inbox      chan envelope
	done       chan struct{}

	store  store.MessageStore
	limits Limits
	clock  clock.Clock
	log    *zerolog.Logger

	clients map[*Client]struct{}
	online  map[string]*onlineUser
	chat    map[string]Member
}

// NewHub creates a hub. A nil store disables persistence.
func NewHub(st store.MessageStore, limits Limits, logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if limits.HistoryLimit <= 0 {
		limits.HistoryLimit = 50
	}
	if limits.MaxMessageBytes <= 0 {
		limits.MaxMessageBytes = 1 << 16
	}
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbox:      make(chan envelope, 256),
		done:       make(chan struct{}),
		store:      st,
		limits:     limits,
		clock:      clock.New(),
		log:        logger,
		clients:    make(map[*Client]struct{}),
		online:     make(map[string]*onlineUser),
		chat:       make(map[string]Member),
	}
}

// RegisterClient attaches a client to the hub.
func (h *Hub) RegisterClient(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// UnregisterClient detaches a client and closes its Events channel.
func (h *Hub) UnregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Run processes registrations and commands until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			go h.pump(c)
			telemetry.SetSockets(len(h.clients))
			h.log.Debug().Str("client_id", c.ID).Bool("anonymous", c.Identity == nil).Msg("client registered")
		case c := <-h.unregister:
			h.drop(c)
		case env := <-h.inbox:
			if _, ok := h.clients[env.client]; !ok {
				continue
			}
			h.handle(ctx, env.client, env.cmd)
		}
	}
}

// pump forwards a client's commands into the hub inbox.
func (h *Hub) pump(c *Client) {
	for {
		select {
		case cmd := <-c.Commands:
			if cmd == nil {
				continue
			}
			select {
			case h.inbox <- envelope{client: c, cmd: cmd}:
			case <-c.done:
				return
			case <-h.done:
				return
			}
		case <-c.done:
			return
		case <-h.done:
			return
		}
	}
}

func (h *Hub) drop(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.done)
	close(c.Events)
	telemetry.SetSockets(len(h.clients))
	h.log.Debug().Str("client_id", c.ID).Msg("client unregistered")

	if c.Identity == nil || !c.registered {
		return
	}
	u, ok := h.online[c.Identity.ID]
	if !ok {
		return
	}
	u.conns--
	if u.conns > 0 {
		return
	}
	delete(h.online, c.Identity.ID)
	if _, inChat := h.chat[c.Identity.ID]; inChat {
		delete(h.chat, c.Identity.ID)
		h.broadcast(&Event{Kind: EventPresenceUpdated, Roster: h.chatRoster()})
		h.broadcast(&Event{Kind: EventUserLeft, User: u.member.DisplayName, At: h.clock.Now()})
	}
	h.broadcast(&Event{Kind: EventOnlineUpdated, Roster: h.onlineRoster()})
}

func (h *Hub) handle(ctx context.Context, c *Client, cmd *Command) {
	switch cmd.Kind {
	case CommandRegisterPresence:
		if !h.requireIdentity(c) {
			return
		}
		if h.markOnline(c) {
			h.broadcast(&Event{Kind: EventOnlineUpdated, Roster: h.onlineRoster()})
		}
	case CommandGetOnlineUsers:
		c.send(&Event{Kind: EventOnlineList, Roster: h.onlineRoster()})
		c.send(&Event{Kind: EventPresenceUpdated, Roster: h.chatRoster()})
	case CommandGetRecentMessages:
		h.sendHistory(ctx, c, cmd.Limit)
	case CommandJoinChat:
		h.joinChat(ctx, c)
	case CommandLeaveChat:
		h.leaveChat(c)
	case CommandSendMessage:
		h.sendMessage(ctx, c, cmd)
	case CommandDeleteMessage, CommandClearAll, CommandClearCache:
		h.moderate(ctx, c, cmd)
	default:
		c.send(errorEvent(ErrCodeBadRequest, "unknown command"))
	}
}

// markOnline counts one registered socket for c's user. Returns true when the
// online roster changed.
func (h *Hub) markOnline(c *Client) bool {
	if c.registered {
		return false
	}
	c.registered = true
	id := c.Identity
	if u, ok := h.online[id.ID]; ok {
		u.conns++
		return false
	}
	h.online[id.ID] = &onlineUser{member: memberOf(id), conns: 1}
	return true
}

func (h *Hub) joinChat(ctx context.Context, c *Client) {
	if !h.requireIdentity(c) {
		return
	}
	id := c.Identity
	if _, ok := h.chat[id.ID]; ok {
		c.send(errorEvent(ErrCodeAlreadyJoined, "already in chat"))
		return
	}
	if h.markOnline(c) {
		h.broadcast(&Event{Kind: EventOnlineUpdated, Roster: h.onlineRoster()})
	}
	h.chat[id.ID] = memberOf(id)
	// History goes first so the joiner's own join line lands after it.
	h.sendHistory(ctx, c, 0)
	h.broadcast(&Event{Kind: EventPresenceUpdated, Roster: h.chatRoster()})
	h.broadcast(&Event{Kind: EventUserJoined, User: id.Name(), At: h.clock.Now()})
}

func (h *Hub) leaveChat(c *Client) {
	if !h.requireIdentity(c) {
		return
	}
	id := c.Identity
	if _, ok := h.chat[id.ID]; !ok {
		c.send(errorEvent(ErrCodeNotInChat, "not in chat"))
		return
	}
	delete(h.chat, id.ID)
	h.broadcast(&Event{Kind: EventPresenceUpdated, Roster: h.chatRoster()})
	h.broadcast(&Event{Kind: EventUserLeft, User: id.Name(), At: h.clock.Now()})
}

func (h *Hub) sendMessage(ctx context.Context, c *Client, cmd *Command) {
	if !h.requireIdentity(c) {
		return
	}
	id := c.Identity
	if _, ok := h.chat[id.ID]; !ok {
		c.send(errorEvent(ErrCodeNotInChat, "join the chat before sending"))
		return
	}
	body := strings.TrimSpace(cmd.Body)
	if body == "" {
		c.send(errorEvent(ErrCodeBadRequest, "message is empty"))
		return
	}
	if len(body) > h.limits.MaxMessageBytes {
		c.send(errorEvent(ErrCodeBadRequest, "message is too long"))
		return
	}
	if cmd.IsNotice && !id.IsAdmin() {
		c.send(errorEvent(ErrCodeForbidden, "only admins can post notices"))
		return
	}

	kind := proto.KindUser
	if id.IsAdmin() {
		kind = proto.KindAdmin
	}
	msg := Message{
		ID:         uuid.NewString(),
		AuthorID:   id.ID,
		AuthorName: id.Name(),
		Body:       body,
		Kind:       kind,
		IsNotice:   cmd.IsNotice,
		SentAt:     h.clock.Now().UTC(),
	}
	if h.store != nil {
		rec := toRecord(msg)
		if err := h.store.SaveMessage(ctx, &rec); err != nil {
			h.log.Error().Err(err).Str("client_id", c.ID).Msg("save message")
			c.send(errorEvent(ErrCodeInternal, "failed to save message"))
			return
		}
	}
	telemetry.Inc(telemetry.MessagesTotal)
	h.broadcast(&Event{Kind: EventNewMessage, Message: msg})
}

func (h *Hub) moderate(ctx context.Context, c *Client, cmd *Command) {
	action := moderationAction(cmd.Kind)
	if c.Identity == nil || !c.Identity.IsAdmin() {
		telemetry.Moderation(action, "rejected")
		c.send(errorEvent(ErrCodeForbidden, "admin role required"))
		return
	}

	var ev *Event
	switch cmd.Kind {
	case CommandDeleteMessage:
		if cmd.MessageID == "" {
			c.send(errorEvent(ErrCodeBadRequest, "messageId is required"))
			return
		}
		if h.store != nil {
			if err := h.store.DeleteMessage(ctx, cmd.MessageID); err != nil {
				h.moderationFailed(c, action, err)
				return
			}
		}
		ev = &Event{Kind: EventMessageDeleted, MessageID: cmd.MessageID}
	case CommandClearAll:
		if h.store != nil {
			if _, err := h.store.ClearMessages(ctx); err != nil {
				h.moderationFailed(c, action, err)
				return
			}
		}
		ev = &Event{Kind: EventChatCleared}
	case CommandClearCache:
		if cmd.Action != proto.ClearCacheActionPurge {
			c.send(errorEvent(ErrCodeBadRequest, "unsupported clear-cache action"))
			return
		}
		n := 0
		if h.store != nil {
			var err error
			if n, err = h.store.PurgeMessages(ctx); err != nil {
				h.moderationFailed(c, action, err)
				return
			}
		}
		ev = &Event{Kind: EventCacheCleared, Count: n}
	}

	telemetry.Moderation(action, "accepted")
	h.log.Info().Str("action", action).Str("actor", c.Identity.ID).Str("target", cmd.MessageID).Msg("moderation applied")
	h.broadcast(ev)
}

func (h *Hub) moderationFailed(c *Client, action string, err error) {
	telemetry.Moderation(action, "rejected")
	if errors.Is(err, store.ErrNotFound) {
		c.send(errorEvent(ErrCodeNotFound, "message not found"))
		return
	}
	h.log.Error().Err(err).Str("action", action).Msg("moderation failed")
	c.send(errorEvent(ErrCodeInternal, "moderation failed"))
}

func (h *Hub) sendHistory(ctx context.Context, c *Client, limit int) {
	if limit <= 0 || limit > h.limits.HistoryLimit {
		limit = h.limits.HistoryLimit
	}
	msgs := []Message{}
	if h.store != nil {
		recs, err := h.store.ListRecent(ctx, limit)
		if err != nil {
			h.log.Error().Err(err).Str("client_id", c.ID).Msg("list recent messages")
			c.send(errorEvent(ErrCodeInternal, "failed to load history"))
			return
		}
		for _, r := range recs {
			msgs = append(msgs, fromRecord(r))
		}
	}
	c.send(&Event{Kind: EventRecentMessages, Messages: msgs})
}

func (h *Hub) requireIdentity(c *Client) bool {
	if c.Identity != nil {
		return true
	}
	c.send(errorEvent(ErrCodeUnauthorized, "sign in to use the chat"))
	return false
}

func (h *Hub) broadcast(ev *Event) {
	for c := range h.clients {
		c.send(ev)
	}
}

func (h *Hub) onlineRoster() []Member {
	out := make([]Member, 0, len(h.online))
	for _, u := range h.online {
		out = append(out, u.member)
	}
	sortMembers(out)
	return out
}

func (h *Hub) chatRoster() []Member {
	out := make([]Member, 0, len(h.chat))
	for _, m := range h.chat {
		out = append(out, m)
	}
	sortMembers(out)
	return out
}

func sortMembers(ms []Member) {
	sort.Slice(ms, func(i, j int) bool { return ms[i].UserID < ms[j].UserID })
}

func memberOf(id *identity.Identity) Member {
	return Member{UserID: id.ID, DisplayName: id.Name(), Role: id.Role}
}

func errorEvent(code, msg string) *Event {
	return &Event{Kind: EventError, Error: coreError(code, msg)}
}

func moderationAction(kind CommandKind) string {
	switch kind {
	case CommandDeleteMessage:
		return proto.EventDeleteMessage
	case CommandClearAll:
		return proto.EventClearAllMessages
	default:
		return proto.EventClearCache
	}
}

func toRecord(m Message) store.Message {
	return store.Message{
		ID:         m.ID,
		AuthorID:   m.AuthorID,
		AuthorName: m.AuthorName,
		Body:       m.Body,
		Kind:       m.Kind,
		IsNotice:   m.IsNotice,
		CreatedAt:  m.SentAt,
	}
}

func fromRecord(r *store.Message) Message {
	return Message{
		ID:         r.ID,
		AuthorID:   r.AuthorID,
		AuthorName: r.AuthorName,
		Body:       r.Body,
		Kind:       r.Kind,
		IsNotice:   r.IsNotice,
		SentAt:     r.CreatedAt,
	}
}
