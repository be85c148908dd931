package widget

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/vovakirdan/wirechat-widget/internal/config"
	"github.com/vovakirdan/wirechat-widget/internal/identity"
	"github.com/vovakirdan/wirechat-widget/internal/proto"
)

func TestUnavailableWithoutEndpoint(t *testing.T) {
	h := newHarness(t, &alice, withConfig(func(c *config.ClientConfig) {
		c.ServerURL = ""
		c.Environment = config.EnvironmentProduction
	}))

	if err := h.w.Open(h.ctx); err != nil {
		t.Fatalf("open: %v", err)
	}
	s := h.snapshot(t)
	if !s.Unavailable || s.State != StateDisabled {
		t.Fatalf("expected unavailable/disabled, got unavailable=%v state=%s", s.Unavailable, s.State)
	}
	if err := h.w.Retry(h.ctx); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if n := len(h.dialer.dials()); n != 0 {
		t.Fatalf("expected no dial attempts, got %d", n)
	}
}

func TestDevelopmentFallsBackToLocalBackend(t *testing.T) {
	h := newHarness(t, nil, withConfig(func(c *config.ClientConfig) {
		c.ServerURL = ""
		c.Environment = config.EnvironmentDevelopment
	}))
	h.connect(t)

	dials := h.dialer.dials()
	if len(dials) != 1 || dials[0] != config.DefaultDevServerURL {
		t.Fatalf("unexpected dials %v", dials)
	}
}

func TestConnectPerformsStartupExchange(t *testing.T) {
	h := newHarness(t, &alice)
	c := h.connect(t)

	reg := c.expectFrame(t, proto.EventRegisterPresence)
	var p proto.PresenceData
	decodeData(t, reg, &p)
	if p.UserID != alice.ID || p.DisplayName != alice.DisplayName {
		t.Fatalf("unexpected presence payload %+v", p)
	}
	c.expectFrame(t, proto.EventGetOnlineUsers)
	hist := c.expectFrame(t, proto.EventGetRecentMessages)
	var req proto.RecentMessagesRequest
	decodeData(t, hist, &req)
	if req.Limit != 50 {
		t.Fatalf("expected history limit 50, got %d", req.Limit)
	}

	dials := h.dialer.dials()
	if len(dials) != 1 || !strings.Contains(dials[0], "token=tok-alice") {
		t.Fatalf("expected token in dial url, got %v", dials)
	}

	s := h.snapshot(t)
	if s.Identity == nil || s.Identity.Token != "" {
		t.Fatalf("snapshot identity must be present without token: %+v", s.Identity)
	}
	if !containsUser(s.Online, alice.ID) {
		t.Fatal("expected optimistic online entry for local user")
	}
}

func TestOnlineCountNeverZeroWhileConnected(t *testing.T) {
	h := newHarness(t, &alice)
	c := h.connect(t)

	c.push(t, proto.EventOnlineUsersList, proto.RosterData{Users: []proto.RosterUser{}})
	s := h.waitFor(t, "empty roster", func(s Snapshot) bool { return len(s.Online) == 0 })
	if s.OnlineCount != 1 {
		t.Fatalf("expected online count floor of 1, got %d", s.OnlineCount)
	}

	c.push(t, proto.EventOnlineUsersUpdated, proto.RosterData{Users: []proto.RosterUser{
		{UserID: "u1", DisplayName: "one"},
		{UserID: "u2", DisplayName: "two", Status: "online"},
		{UserID: "u3", DisplayName: "three", Status: "away"},
	}})
	s = h.waitFor(t, "roster", func(s Snapshot) bool { return len(s.Online) == 3 })
	if s.OnlineCount != 2 {
		t.Fatalf("expected 2 online, got %d", s.OnlineCount)
	}
}

func TestJoinLeaveSymmetry(t *testing.T) {
	h := newHarness(t, &alice)
	c := h.connect(t)

	if err := h.w.JoinRoom(h.ctx); err != nil {
		t.Fatalf("join: %v", err)
	}
	c.expectFrame(t, proto.EventJoinChat)
	s := h.snapshot(t)
	if !s.InChat || s.ChatCount != 1 {
		t.Fatalf("expected in chat with count 1, got inChat=%v count=%d", s.InChat, s.ChatCount)
	}
	if err := h.w.JoinRoom(h.ctx); !errors.Is(err, ErrAlreadyInChat) {
		t.Fatalf("expected ErrAlreadyInChat, got %v", err)
	}

	if err := h.w.LeaveRoom(h.ctx); err != nil {
		t.Fatalf("leave: %v", err)
	}
	c.expectFrame(t, proto.EventLeaveChat)
	s = h.snapshot(t)
	if s.InChat || s.ChatCount != 0 {
		t.Fatalf("expected out of chat, got inChat=%v count=%d", s.InChat, s.ChatCount)
	}
	if !containsUser(s.Online, alice.ID) {
		t.Fatal("leaving chat must not drop online presence")
	}
	if err := h.w.LeaveRoom(h.ctx); !errors.Is(err, ErrNotInChat) {
		t.Fatalf("expected ErrNotInChat, got %v", err)
	}
}

func TestServerRosterReplacesOptimisticChat(t *testing.T) {
	h := newHarness(t, &alice)
	c := h.connect(t)

	if err := h.w.JoinRoom(h.ctx); err != nil {
		t.Fatalf("join: %v", err)
	}
	c.push(t, proto.EventPresenceUpdated, proto.RosterData{Users: []proto.RosterUser{
		{UserID: "u-bob", DisplayName: "bob"},
	}})
	s := h.waitFor(t, "chat roster", func(s Snapshot) bool { return containsUser(s.Chat, "u-bob") })
	if s.InChat || s.ChatCount != 1 {
		t.Fatalf("server roster must win, got inChat=%v count=%d", s.InChat, s.ChatCount)
	}
}

func TestSendValidation(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.w.Send(h.ctx, "hello", SendOptions{}); !errors.Is(err, ErrNoIdentity) {
		t.Fatalf("expected ErrNoIdentity, got %v", err)
	}
	if err := h.w.Send(h.ctx, "   ", SendOptions{}); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}

	h.session.Login(alice)
	h.waitFor(t, "login", func(s Snapshot) bool { return s.Identity != nil })
	if err := h.w.Send(h.ctx, "hello", SendOptions{}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if !IsValidation(ErrNotConnected) {
		t.Fatal("ErrNotConnected should be a validation error")
	}

	c := h.connect(t)
	if err := h.w.Send(h.ctx, "notice", SendOptions{IsNotice: true}); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("expected ErrNotAdmin for user notice, got %v", err)
	}
	if err := h.w.Send(h.ctx, "  hello  ", SendOptions{}); err != nil {
		t.Fatalf("send: %v", err)
	}
	f := c.expectFrame(t, proto.EventSendMessage)
	var d proto.SendMessageData
	decodeData(t, f, &d)
	if d.Body != "hello" || d.Kind != proto.KindUser || d.IsNotice {
		t.Fatalf("unexpected send payload %+v", d)
	}
	if s := h.snapshot(t); len(s.Messages) != 0 {
		t.Fatal("send must not append before the server echo")
	}
}

func TestHistoryPartitionsNotices(t *testing.T) {
	h := newHarness(t, &alice)
	c := h.connect(t)

	c.push(t, proto.EventRecentMessages, []proto.Message{
		wireMessage("m1", "bob", "hi", proto.KindUser, false),
		wireMessage("n1", "mod", "rules", proto.KindAdmin, true),
		wireMessage("m2", "mod", "plain admin", proto.KindAdmin, false),
		wireMessage("m3", "bob", "user notice flag", proto.KindUser, true),
		wireMessage("n2", "mod", "maintenance", proto.KindAdmin, true),
	})
	s := h.waitFor(t, "history", func(s Snapshot) bool { return len(s.Messages) == 3 })
	if len(s.Notices) != 2 {
		t.Fatalf("expected 2 notices, got %d", len(s.Notices))
	}
	for _, n := range s.Notices {
		if n.AutoHide {
			t.Fatalf("history notice %s must not auto-hide", n.ID)
		}
	}
	for _, m := range s.Messages {
		if m.IsAdminNotice() {
			t.Fatalf("admin notice %s leaked into the message list", m.ID)
		}
	}

	// History notices survive the auto-hide interval.
	h.clock.Add(time.Minute)
	time.Sleep(20 * time.Millisecond)
	if s := h.snapshot(t); len(s.Notices) != 2 {
		t.Fatalf("history notices must stay pinned, got %d", len(s.Notices))
	}
}

func TestLiveNoticeAutoHides(t *testing.T) {
	h := newHarness(t, &alice)
	c := h.connect(t)

	c.push(t, proto.EventNewMessage, wireMessage("n1", "mod", "heads up", proto.KindAdmin, true))
	s := h.waitFor(t, "notice pinned", func(s Snapshot) bool { return len(s.Notices) == 1 })
	if !s.Notices[0].AutoHide || len(s.Messages) != 0 {
		t.Fatalf("expected one auto-hiding notice and no messages, got %+v", s)
	}

	h.clock.Add(9 * time.Second)
	time.Sleep(20 * time.Millisecond)
	if s := h.snapshot(t); len(s.Notices) != 1 {
		t.Fatal("notice expired early")
	}

	h.clock.Add(time.Second)
	h.waitFor(t, "notice expired", func(s Snapshot) bool { return len(s.Notices) == 0 })
}

func TestNoticeRemovalIsIdempotent(t *testing.T) {
	h := newHarness(t, &alice)
	c := h.connect(t)

	c.push(t, proto.EventNewMessage, wireMessage("n1", "mod", "first", proto.KindAdmin, true))
	h.waitFor(t, "notice pinned", func(s Snapshot) bool { return len(s.Notices) == 1 })

	if err := h.w.Dismiss(h.ctx, "n1"); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	if err := h.w.Dismiss(h.ctx, "n1"); err != nil {
		t.Fatalf("second dismiss: %v", err)
	}
	h.clock.Add(10 * time.Second)
	time.Sleep(20 * time.Millisecond)
	if s := h.snapshot(t); len(s.Notices) != 0 {
		t.Fatalf("expected no notices, got %d", len(s.Notices))
	}

	// A re-pinned notice is not removed by the previous timer.
	c.push(t, proto.EventNewMessage, wireMessage("n2", "mod", "second", proto.KindAdmin, true))
	h.waitFor(t, "second notice", func(s Snapshot) bool { return len(s.Notices) == 1 })
	h.clock.Add(5 * time.Second)
	c.push(t, proto.EventNewMessage, wireMessage("n2", "mod", "second edited", proto.KindAdmin, true))
	h.waitFor(t, "replaced notice", func(s Snapshot) bool {
		return len(s.Notices) == 1 && s.Notices[0].Body == "second edited"
	})
	h.clock.Add(6 * time.Second)
	time.Sleep(20 * time.Millisecond)
	if s := h.snapshot(t); len(s.Notices) != 1 {
		t.Fatal("replaced notice removed by stale timer")
	}
	h.clock.Add(5 * time.Second)
	h.waitFor(t, "replacement expired", func(s Snapshot) bool { return len(s.Notices) == 0 })
}

func TestUnreadCountsWhileCollapsed(t *testing.T) {
	h := newHarness(t, &alice)
	c := h.connect(t)

	c.push(t, proto.EventNewMessage, wireMessage("m1", "bob", "one", proto.KindUser, false))
	c.push(t, proto.EventUserJoined, proto.UserActivityData{Username: "carol"})
	c.push(t, proto.EventNewMessage, wireMessage("n1", "mod", "notice", proto.KindAdmin, true))
	s := h.waitFor(t, "pushes", func(s Snapshot) bool { return len(s.Messages) == 2 && len(s.Notices) == 1 })
	if s.Unread != 1 {
		t.Fatalf("only regular messages count as unread, got %d", s.Unread)
	}

	if err := h.w.SetOpen(h.ctx, true); err != nil {
		t.Fatalf("set open: %v", err)
	}
	c.push(t, proto.EventNewMessage, wireMessage("m2", "bob", "two", proto.KindUser, false))
	s = h.waitFor(t, "message while open", func(s Snapshot) bool { return len(s.Messages) == 3 })
	if s.Unread != 0 {
		t.Fatalf("expected unread reset, got %d", s.Unread)
	}
	if s.Messages[1].Kind != proto.KindSystem || !strings.Contains(s.Messages[1].Body, "carol") {
		t.Fatalf("expected system join message, got %+v", s.Messages[1])
	}
}

func TestMalformedAndUnknownEventsIgnored(t *testing.T) {
	h := newHarness(t, &alice)
	c := h.connect(t)

	c.in <- proto.Frame{Event: "something-else", Data: []byte(`{}`)}
	c.in <- proto.Frame{Event: proto.EventNewMessage, Data: []byte(`{"body":"no id"}`)}
	c.in <- proto.Frame{Event: proto.EventNewMessage, Data: []byte(`not json`)}
	c.push(t, proto.EventNewMessage, wireMessage("m1", "bob", "ok", proto.KindUser, false))

	s := h.waitFor(t, "valid message", func(s Snapshot) bool { return len(s.Messages) == 1 })
	if s.State != StateConnected {
		t.Fatalf("bad events must not break the channel, state=%s", s.State)
	}
}

func TestTeardownSilencesLateEvents(t *testing.T) {
	h := newHarness(t, &alice)
	c := h.connect(t)
	old := h.epoch(t)

	if err := h.w.Close(h.ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	h.waitFor(t, "closed", func(s Snapshot) bool { return s.State == StateDisabled })

	late, err := proto.NewFrame(proto.EventNewMessage, wireMessage("late", "bob", "late", proto.KindUser, false))
	if err != nil {
		t.Fatal(err)
	}
	if err := h.w.do(h.ctx, func() error { h.w.onFrame(old, late); return nil }); err != nil {
		t.Fatal(err)
	}
	if err := h.w.do(h.ctx, func() error { h.w.onDropped(old, errConnClosed); return nil }); err != nil {
		t.Fatal(err)
	}

	s := h.snapshot(t)
	if len(s.Messages) != 0 || s.State != StateDisabled {
		t.Fatalf("late event applied after close: state=%s messages=%d", s.State, len(s.Messages))
	}
	deadline := time.Now().Add(time.Second)
	for !c.isClosed() {
		if time.Now().After(deadline) {
			t.Fatal("conn not closed after teardown")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDropSchedulesRedial(t *testing.T) {
	h := newHarness(t, &alice)
	c := h.connect(t)
	c.push(t, proto.EventNewMessage, wireMessage("m1", "bob", "kept", proto.KindUser, false))
	c.push(t, proto.EventNewMessage, wireMessage("n1", "mod", "live", proto.KindAdmin, true))
	h.waitFor(t, "pushes", func(s Snapshot) bool { return len(s.Messages) == 1 && len(s.Notices) == 1 })

	_ = c.Close()
	s := h.waitFor(t, "disconnected", func(s Snapshot) bool { return s.State == StateDisconnected })
	if s.ConnErr == nil {
		t.Fatal("expected connection error to be recorded")
	}
	if len(s.Online) != 0 || len(s.Notices) != 0 || len(s.Messages) != 1 {
		t.Fatalf("drop should reset presence and live notices only: %+v", s)
	}

	h.clock.Add(time.Second)
	h.dialer.next(t)
	h.waitFor(t, "reconnected", func(s Snapshot) bool { return s.State == StateConnected })
}

func TestDialFailureRequiresManualRetry(t *testing.T) {
	h := newHarness(t, &alice)
	h.dialer.setFail(errors.New("refused"))

	if err := h.w.Open(h.ctx); err != nil {
		t.Fatalf("open: %v", err)
	}
	s := h.waitFor(t, "errored", func(s Snapshot) bool { return s.State == StateErrored })
	if s.ConnErr == nil {
		t.Fatal("expected error detail")
	}

	h.clock.Add(time.Minute)
	time.Sleep(20 * time.Millisecond)
	if n := len(h.dialer.dials()); n != 1 {
		t.Fatalf("errored state must not redial on its own, dials=%d", n)
	}

	h.dialer.setFail(nil)
	if err := h.w.Retry(h.ctx); err != nil {
		t.Fatalf("retry: %v", err)
	}
	h.dialer.next(t)
	h.waitFor(t, "connected after retry", func(s Snapshot) bool { return s.State == StateConnected })
}

func TestRetryWhileConnectingIsNoop(t *testing.T) {
	h := newHarness(t, &alice)
	h.dialer.setHang(true)

	if err := h.w.Open(h.ctx); err != nil {
		t.Fatalf("open: %v", err)
	}
	h.waitFor(t, "connecting", func(s Snapshot) bool { return s.State == StateConnecting })
	for i := 0; i < 2; i++ {
		if err := h.w.Retry(h.ctx); err != nil {
			t.Fatalf("retry %d: %v", i, err)
		}
	}
	if err := h.w.Open(h.ctx); err != nil {
		t.Fatalf("second open: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for len(h.dialer.dials()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	if n := len(h.dialer.dials()); n != 1 {
		t.Fatalf("expected exactly one dial, got %d", n)
	}
	if s := h.snapshot(t); s.State != StateConnecting {
		t.Fatalf("expected still connecting, got %s", s.State)
	}
}

func TestConnectTimeoutEntersErrored(t *testing.T) {
	h := newHarness(t, &alice, withConfig(func(c *config.ClientConfig) {
		c.ConnectTimeout = 5 * time.Second
	}))
	h.dialer.setHang(true)

	if err := h.w.Open(h.ctx); err != nil {
		t.Fatalf("open: %v", err)
	}
	h.waitFor(t, "connecting", func(s Snapshot) bool { return s.State == StateConnecting })

	h.clock.Add(4 * time.Second)
	time.Sleep(20 * time.Millisecond)
	if s := h.snapshot(t); s.State != StateConnecting {
		t.Fatalf("dial gave up before the timeout, state=%s", s.State)
	}

	h.clock.Add(time.Second)
	s := h.waitFor(t, "errored", func(s Snapshot) bool { return s.State == StateErrored })
	if !errors.Is(s.ConnErr, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", s.ConnErr)
	}
}

func TestLoginDropsLiveNoticesOfAnonymousChannel(t *testing.T) {
	h := newHarness(t, nil)
	c := h.connect(t)

	c.push(t, proto.EventRecentMessages, []proto.Message{
		wireMessage("h1", "mod", "rules", proto.KindAdmin, true),
	})
	c.push(t, proto.EventNewMessage, wireMessage("n1", "mod", "live", proto.KindAdmin, true))
	h.waitFor(t, "notices", func(s Snapshot) bool { return len(s.Notices) == 2 })

	h.session.Login(alice)
	next := h.dialer.next(t)
	s := h.waitFor(t, "signed-in reconnect", func(s Snapshot) bool {
		return s.State == StateConnected && s.Identity != nil
	})
	if len(s.Notices) != 1 || s.Notices[0].ID != "h1" {
		t.Fatalf("live notice outlived its channel: %+v", s.Notices)
	}
	if n := h.armedTimers(t); n != 0 {
		t.Fatalf("expected no armed notice timers, got %d", n)
	}

	next.push(t, proto.EventNewMessage, wireMessage("n2", "mod", "fresh", proto.KindAdmin, true))
	h.waitFor(t, "fresh notice", func(s Snapshot) bool { return len(s.Notices) == 2 })
	h.clock.Add(10 * time.Second)
	h.waitFor(t, "fresh notice expired", func(s Snapshot) bool {
		return len(s.Notices) == 1 && s.Notices[0].ID == "h1"
	})
}

func TestLogoutCascade(t *testing.T) {
	h := newHarness(t, &alice)
	c := h.connect(t)

	if err := h.w.JoinRoom(h.ctx); err != nil {
		t.Fatalf("join: %v", err)
	}
	c.push(t, proto.EventNewMessage, wireMessage("m1", "alice", "hello", proto.KindUser, false))
	h.waitFor(t, "message", func(s Snapshot) bool { return len(s.Messages) == 1 })

	h.session.Logout()
	leave := c.expectFrame(t, proto.EventLeaveChat)
	var p proto.PresenceData
	decodeData(t, leave, &p)
	if p.UserID != alice.ID {
		t.Fatalf("leave-chat for wrong user %q", p.UserID)
	}

	s := h.waitFor(t, "logged out", func(s Snapshot) bool { return s.Identity == nil })
	if s.InChat || s.ChatCount != 0 || len(s.Messages) != 0 || s.Unread != 0 {
		t.Fatalf("logout must clear chat state: %+v", s)
	}

	next := h.dialer.next(t)
	h.waitFor(t, "anonymous reconnect", func(s Snapshot) bool { return s.State == StateConnected })
	dials := h.dialer.dials()
	if strings.Contains(dials[len(dials)-1], "token=") {
		t.Fatalf("anonymous dial must not carry a token: %s", dials[len(dials)-1])
	}
	next.expectFrame(t, proto.EventGetOnlineUsers)
}

func TestIdentitySwitchReconnectsAsNewUser(t *testing.T) {
	h := newHarness(t, &alice)
	h.connect(t)

	h.session.Login(admin)
	c := h.dialer.next(t)
	s := h.waitFor(t, "admin connected", func(s Snapshot) bool {
		return s.State == StateConnected && s.Identity != nil && s.Identity.ID == admin.ID
	})
	if !s.IsAdmin() {
		t.Fatal("expected admin snapshot")
	}
	reg := c.expectFrame(t, proto.EventRegisterPresence)
	var p proto.PresenceData
	decodeData(t, reg, &p)
	if p.UserID != admin.ID {
		t.Fatalf("registered wrong user %q", p.UserID)
	}
}

func TestClearIsAtomic(t *testing.T) {
	h := newHarness(t, &admin, withConfirm(AutoConfirm))
	c := h.connect(t)

	c.push(t, proto.EventRecentMessages, []proto.Message{
		wireMessage("m1", "bob", "one", proto.KindUser, false),
		wireMessage("n1", "mod", "pinned", proto.KindAdmin, true),
	})
	c.push(t, proto.EventNewMessage, wireMessage("n2", "mod", "live", proto.KindAdmin, true))
	h.waitFor(t, "loaded", func(s Snapshot) bool { return len(s.Messages) == 1 && len(s.Notices) == 2 })

	if err := h.w.ClearAll(h.ctx); err != nil {
		t.Fatalf("clear all: %v", err)
	}
	c.expectFrame(t, proto.EventClearAllMessages)
	if s := h.snapshot(t); s.PendingModeration != 1 || len(s.Messages) != 1 {
		t.Fatalf("clear must wait for the server echo: %+v", s)
	}

	c.push(t, proto.EventChatCleared, nil)
	s := h.waitFor(t, "cleared", func(s Snapshot) bool { return len(s.Messages) == 0 || len(s.Notices) == 0 })
	if len(s.Messages) != 0 || len(s.Notices) != 0 {
		t.Fatalf("observed a partial clear: messages=%d notices=%d", len(s.Messages), len(s.Notices))
	}
	if s.PendingModeration != 0 {
		t.Fatalf("expected pending moderation settled, got %d", s.PendingModeration)
	}
}

func TestModerationGate(t *testing.T) {
	t.Run("non admin", func(t *testing.T) {
		h := newHarness(t, &alice, withConfirm(AutoConfirm))
		c := h.connect(t)
		c.expectFrame(t, proto.EventGetRecentMessages)
		if err := h.w.DeleteMessage(h.ctx, "m1"); !errors.Is(err, ErrNotAdmin) {
			t.Fatalf("expected ErrNotAdmin, got %v", err)
		}
		if err := h.w.PurgeHistory(h.ctx); !errors.Is(err, ErrNotAdmin) {
			t.Fatalf("expected ErrNotAdmin, got %v", err)
		}
		select {
		case f := <-c.out:
			t.Fatalf("unexpected frame %q", f.Event)
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("declined", func(t *testing.T) {
		var prompts []string
		deny := ConfirmFunc(func(_ context.Context, prompt string) (bool, error) {
			prompts = append(prompts, prompt)
			return false, nil
		})
		h := newHarness(t, &admin, withConfirm(deny))
		h.connect(t)
		if err := h.w.ClearAll(h.ctx); !errors.Is(err, ErrNotConfirmed) {
			t.Fatalf("expected ErrNotConfirmed, got %v", err)
		}
		if len(prompts) != 1 {
			t.Fatalf("expected one prompt, got %v", prompts)
		}
	})

	t.Run("no confirmer", func(t *testing.T) {
		h := newHarness(t, &admin)
		h.connect(t)
		if err := h.w.DeleteMessage(h.ctx, "m1"); !errors.Is(err, ErrNotConfirmed) {
			t.Fatalf("expected ErrNotConfirmed, got %v", err)
		}
	})

	t.Run("not connected", func(t *testing.T) {
		h := newHarness(t, &admin, withConfirm(AutoConfirm))
		if err := h.w.ClearAll(h.ctx); !errors.Is(err, ErrNotConnected) {
			t.Fatalf("expected ErrNotConnected, got %v", err)
		}
	})
}

func TestModerationRejectionRaisesAlert(t *testing.T) {
	h := newHarness(t, &admin, withConfirm(AutoConfirm))
	c := h.connect(t)
	c.push(t, proto.EventNewMessage, wireMessage("m1", "bob", "spam", proto.KindUser, false))
	h.waitFor(t, "message", func(s Snapshot) bool { return len(s.Messages) == 1 })

	if err := h.w.DeleteMessage(h.ctx, "m1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	f := c.expectFrame(t, proto.EventDeleteMessage)
	var d proto.DeleteMessageData
	decodeData(t, f, &d)
	if d.MessageID != "m1" {
		t.Fatalf("unexpected delete target %q", d.MessageID)
	}

	c.push(t, proto.EventError, proto.ErrorData{Message: "forbidden", Code: "forbidden"})
	s := h.waitFor(t, "alert", func(s Snapshot) bool { return s.Alert != nil })
	var modErr *ModerationError
	if !errors.As(s.Alert.Err, &modErr) || modErr.Action != ActionDeleteMessage {
		t.Fatalf("expected delete moderation error, got %v", s.Alert.Err)
	}
	if len(s.Messages) != 1 || s.PendingModeration != 0 {
		t.Fatalf("rejected moderation must leave state unchanged: %+v", s)
	}

	if err := h.w.AckAlert(h.ctx, s.Alert.Seq); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if s := h.snapshot(t); s.Alert != nil {
		t.Fatal("alert not cleared")
	}
}

func TestSendErrorDoesNotRejectPendingModeration(t *testing.T) {
	h := newHarness(t, &admin, withConfirm(AutoConfirm))
	c := h.connect(t)
	c.push(t, proto.EventNewMessage, wireMessage("m1", "bob", "spam", proto.KindUser, false))
	h.waitFor(t, "message", func(s Snapshot) bool { return len(s.Messages) == 1 })

	if err := h.w.DeleteMessage(h.ctx, "m1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	c.expectFrame(t, proto.EventDeleteMessage)

	c.push(t, proto.EventError, proto.ErrorData{Message: "too many messages, slow down", Code: "rate_limited"})
	s := h.waitFor(t, "alert", func(s Snapshot) bool { return s.Alert != nil })
	var modErr *ModerationError
	if errors.As(s.Alert.Err, &modErr) {
		t.Fatalf("rate limit reported as moderation failure: %v", s.Alert.Err)
	}
	if s.PendingModeration != 1 {
		t.Fatalf("pending delete must survive an unrelated error, got %d", s.PendingModeration)
	}

	c.push(t, proto.EventMessageDeleted, proto.MessageDeletedData{MessageID: "m1"})
	h.waitFor(t, "delete settled", func(s Snapshot) bool {
		return len(s.Messages) == 0 && s.PendingModeration == 0
	})
}

func TestPurgeHistory(t *testing.T) {
	h := newHarness(t, &admin, withConfirm(AutoConfirm))
	c := h.connect(t)
	c.push(t, proto.EventNewMessage, wireMessage("m1", "bob", "one", proto.KindUser, false))
	h.waitFor(t, "message", func(s Snapshot) bool { return len(s.Messages) == 1 })

	if err := h.w.PurgeHistory(h.ctx); err != nil {
		t.Fatalf("purge: %v", err)
	}
	f := c.expectFrame(t, proto.EventClearCache)
	var d proto.ClearCacheData
	decodeData(t, f, &d)
	if d.Action != proto.ClearCacheActionPurge {
		t.Fatalf("unexpected purge action %q", d.Action)
	}
	c.push(t, proto.EventCacheCleared, proto.CacheClearedData{DeletedCount: 1})
	h.waitFor(t, "purged", func(s Snapshot) bool { return len(s.Messages) == 0 && s.PendingModeration == 0 })
}

// An admin connects, joins, posts a notice and a message, then deletes the message.
func TestEndToEndAdminSession(t *testing.T) {
	h := newHarness(t, &admin, withConfirm(AutoConfirm))
	c := h.connect(t)
	c.expectFrame(t, proto.EventRegisterPresence)
	c.expectFrame(t, proto.EventGetOnlineUsers)
	c.expectFrame(t, proto.EventGetRecentMessages)
	c.push(t, proto.EventOnlineUsersList, proto.RosterData{Users: []proto.RosterUser{
		{UserID: admin.ID, DisplayName: admin.DisplayName, Role: "admin"},
		{UserID: "u-bob", DisplayName: "bob"},
	}})
	c.push(t, proto.EventRecentMessages, []proto.Message{})

	if err := h.w.JoinRoom(h.ctx); err != nil {
		t.Fatalf("join: %v", err)
	}
	c.expectFrame(t, proto.EventJoinChat)
	c.push(t, proto.EventPresenceUpdated, proto.RosterData{Users: []proto.RosterUser{
		{UserID: admin.ID, DisplayName: admin.DisplayName},
	}})

	if err := h.w.Send(h.ctx, "server restarts at noon", SendOptions{IsNotice: true}); err != nil {
		t.Fatalf("send notice: %v", err)
	}
	nf := c.expectFrame(t, proto.EventSendMessage)
	var nd proto.SendMessageData
	decodeData(t, nf, &nd)
	if !nd.IsNotice || nd.Kind != proto.KindAdmin {
		t.Fatalf("unexpected notice payload %+v", nd)
	}
	c.push(t, proto.EventNewMessage, wireMessage("n1", admin.DisplayName, nd.Body, proto.KindAdmin, true))

	if err := h.w.Send(h.ctx, "hello everyone", SendOptions{}); err != nil {
		t.Fatalf("send: %v", err)
	}
	c.expectFrame(t, proto.EventSendMessage)
	c.push(t, proto.EventNewMessage, wireMessage("m1", admin.DisplayName, "hello everyone", proto.KindAdmin, false))

	s := h.waitFor(t, "echoes", func(s Snapshot) bool { return len(s.Messages) == 1 && len(s.Notices) == 1 })
	if s.OnlineCount != 2 || s.ChatCount != 1 || !s.InChat {
		t.Fatalf("unexpected presence: online=%d chat=%d inChat=%v", s.OnlineCount, s.ChatCount, s.InChat)
	}

	if err := h.w.DeleteMessage(h.ctx, "m1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	c.expectFrame(t, proto.EventDeleteMessage)
	c.push(t, proto.EventMessageDeleted, proto.MessageDeletedData{MessageID: "m1"})
	s = h.waitFor(t, "deleted", func(s Snapshot) bool { return len(s.Messages) == 0 })
	if len(s.Notices) != 1 {
		t.Fatal("deleting a message must not touch notices")
	}

	h.clock.Add(10 * time.Second)
	h.waitFor(t, "notice expired", func(s Snapshot) bool { return len(s.Notices) == 0 })
}

func TestUpdatesDeliversLatestSnapshot(t *testing.T) {
	h := newHarness(t, &alice)
	h.connect(t)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-h.w.Updates():
			if s.State == StateConnected {
				return
			}
		case <-deadline:
			t.Fatal("no connected snapshot on Updates")
		}
	}
}

func TestStoppedWidgetRejectsCalls(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := New(Options{Config: testClientConfig(), Dialer: newFakeDialer(), Identity: identity.NewSession(nil)})
	go w.Run(ctx)
	cancel()
	<-w.Done()

	if err := w.Open(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func containsUser(entries []PresenceEntry, id string) bool {
	for _, e := range entries {
		if e.UserID == id {
			return true
		}
	}
	return false
}
