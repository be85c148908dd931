package widget

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/vovakirdan/wirechat-widget/internal/config"
	"github.com/vovakirdan/wirechat-widget/internal/identity"
	"github.com/vovakirdan/wirechat-widget/internal/proto"
)

var errConnClosed = errors.New("fake conn closed")

// fakeConn is the server side and client side of one channel in a single value.
type fakeConn struct {
	in     chan proto.Frame
	out    chan proto.Frame
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan proto.Frame, 64),
		out:    make(chan proto.Frame, 256),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) Read(ctx context.Context) (proto.Frame, error) {
	select {
	case f := <-c.in:
		return f, nil
	case <-c.closed:
		return proto.Frame{}, errConnClosed
	case <-ctx.Done():
		return proto.Frame{}, ctx.Err()
	}
}

func (c *fakeConn) Write(_ context.Context, f proto.Frame) error {
	select {
	case <-c.closed:
		return errConnClosed
	default:
	}
	c.out <- f
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// push delivers a server event to the widget.
func (c *fakeConn) push(t *testing.T, event string, data any) {
	t.Helper()
	f, err := proto.NewFrame(event, data)
	if err != nil {
		t.Fatalf("build frame: %v", err)
	}
	c.in <- f
}

// expectFrame waits for an outbound frame with the given event, skipping others.
func (c *fakeConn) expectFrame(t *testing.T, event string) proto.Frame {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case f := <-c.out:
			if f.Event == event {
				return f
			}
		case <-deadline:
			t.Fatalf("timeout waiting for %q frame", event)
			return proto.Frame{}
		}
	}
}

type fakeDialer struct {
	mu    sync.Mutex
	fail  error
	hang  bool
	urls  []string
	conns chan *fakeConn
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{conns: make(chan *fakeConn, 16)}
}

func (d *fakeDialer) Dial(ctx context.Context, endpoint string) (Conn, error) {
	d.mu.Lock()
	d.urls = append(d.urls, endpoint)
	err, hang := d.fail, d.hang
	d.mu.Unlock()
	if hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	c := newFakeConn()
	d.conns <- c
	return c, nil
}

func (d *fakeDialer) setFail(err error) {
	d.mu.Lock()
	d.fail = err
	d.mu.Unlock()
}

// setHang makes later dials block until their context ends.
func (d *fakeDialer) setHang(hang bool) {
	d.mu.Lock()
	d.hang = hang
	d.mu.Unlock()
}

func (d *fakeDialer) dials() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.urls...)
}

func (d *fakeDialer) next(t *testing.T) *fakeConn {
	t.Helper()
	select {
	case c := <-d.conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for dial")
		return nil
	}
}

type harness struct {
	w       *Widget
	dialer  *fakeDialer
	clock   *clock.Mock
	session *identity.Session
	ctx     context.Context
}

type harnessOpt func(*Options)

func withConfirm(c Confirmer) harnessOpt {
	return func(o *Options) { o.Confirm = c }
}

func withConfig(fn func(*config.ClientConfig)) harnessOpt {
	return func(o *Options) { fn(&o.Config) }
}

func testClientConfig() config.ClientConfig {
	return config.ClientConfig{
		ServerURL:      "ws://chat.test/ws",
		Environment:    config.EnvironmentProduction,
		ReconnectDelay: time.Second,
		NoticeTTL:      10 * time.Second,
		HistoryLimit:   50,
	}
}

func newHarness(t *testing.T, initial *identity.Identity, opts ...harnessOpt) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	h := &harness{
		dialer:  newFakeDialer(),
		clock:   clock.NewMock(),
		session: identity.NewSession(initial),
		ctx:     ctx,
	}
	o := Options{
		Config:   testClientConfig(),
		Dialer:   h.dialer,
		Identity: h.session,
		Clock:    h.clock,
	}
	for _, opt := range opts {
		opt(&o)
	}
	h.w = New(o)
	go h.w.Run(ctx)

	t.Cleanup(func() {
		cancel()
		select {
		case <-h.w.Done():
		case <-time.After(2 * time.Second):
			t.Error("widget loop did not stop")
		}
	})
	return h
}

// connect opens the widget and returns the server side of the new channel.
func (h *harness) connect(t *testing.T) *fakeConn {
	t.Helper()
	if err := h.w.Open(h.ctx); err != nil {
		t.Fatalf("open: %v", err)
	}
	c := h.dialer.next(t)
	h.waitFor(t, "connected", func(s Snapshot) bool { return s.State == StateConnected })
	return c
}

// waitFor polls snapshots until cond holds.
func (h *harness) waitFor(t *testing.T, what string, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		s, err := h.w.Snapshot(h.ctx)
		if err != nil {
			t.Fatalf("snapshot: %v", err)
		}
		if cond(s) {
			return s
		}
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s; last snapshot: state=%s messages=%d notices=%d chat=%d",
				what, s.State, len(s.Messages), len(s.Notices), s.ChatCount)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (h *harness) snapshot(t *testing.T) Snapshot {
	t.Helper()
	s, err := h.w.Snapshot(h.ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	return s
}

func (h *harness) epoch(t *testing.T) uint64 {
	t.Helper()
	var e uint64
	if err := h.w.do(h.ctx, func() error { e = h.w.link.epoch; return nil }); err != nil {
		t.Fatalf("read epoch: %v", err)
	}
	return e
}

func (h *harness) armedTimers(t *testing.T) int {
	t.Helper()
	var n int
	if err := h.w.do(h.ctx, func() error { n = len(h.w.transcript.timers); return nil }); err != nil {
		t.Fatalf("read timers: %v", err)
	}
	return n
}

func decodeData(t *testing.T, f proto.Frame, v any) {
	t.Helper()
	if err := json.Unmarshal(f.Data, v); err != nil {
		t.Fatalf("decode %s: %v", f.Event, err)
	}
}

func wireMessage(id, author, body, kind string, notice bool) proto.Message {
	return proto.Message{
		ID:         id,
		AuthorName: author,
		Body:       body,
		SentAt:     proto.At(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)),
		Kind:       kind,
		IsNotice:   notice,
	}
}

var (
	alice = identity.Identity{ID: "u-alice", DisplayName: "alice", Role: identity.RoleUser, Token: "tok-alice"}
	admin = identity.Identity{ID: "u-admin", DisplayName: "moderator", Role: identity.RoleAdmin, Token: "tok-admin"}
)
