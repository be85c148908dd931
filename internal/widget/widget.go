// Package widget implements the live chat client behind the community chat
// widget: one channel to the backend, the online and in-chat rosters, the
// transcript with its pinned notices, and the moderation gate.
//
// A Widget is an explicit per-instance context. All of its state is owned by
// the goroutine running Run; public methods post work to that loop, so every
// handler observes the current identity and connection state rather than a
// copy captured when it was registered.
package widget

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-widget/internal/config"
	"github.com/vovakirdan/wirechat-widget/internal/identity"
	"github.com/vovakirdan/wirechat-widget/internal/proto"
)

const inboxSize = 256

// Options configures a Widget.
type Options struct {
	Config   config.ClientConfig
	Dialer   Dialer
	Identity identity.Provider
	// Confirm gates moderation actions. A nil Confirmer declines everything.
	Confirm Confirmer
	Clock   clock.Clock
	Logger  *zerolog.Logger
}

// Widget is one mounted chat widget instance.
type Widget struct {
	cfg      config.ClientConfig
	endpoint string
	dialer   Dialer
	ids      identity.Provider
	confirm  Confirmer
	clock    clock.Clock
	log      *zerolog.Logger

	inbox   chan func()
	done    chan struct{}
	updates chan Snapshot

	// Everything below is owned by the Run goroutine.
	runCtx     context.Context
	identity   *identity.Identity
	link       link
	presence   *Presence
	transcript *Transcript
	moderation moderation
	open       bool
	unread     int
	alert      *Alert
	alertSeq   uint64
}

// New builds a widget. Reachability is decided here, once, before any dial.
func New(opts Options) *Widget {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		nop := zerolog.Nop()
		opts.Logger = &nop
	}
	if opts.Config.NoticeTTL == 0 {
		opts.Config.NoticeTTL = config.DefaultNoticeTTL
	}

	w := &Widget{
		cfg:      opts.Config,
		endpoint: opts.Config.Endpoint(),
		dialer:   opts.Dialer,
		ids:      opts.Identity,
		confirm:  opts.Confirm,
		clock:    opts.Clock,
		log:      opts.Logger,
		inbox:    make(chan func(), inboxSize),
		done:     make(chan struct{}),
		updates:  make(chan Snapshot, 1),
		presence: NewPresence(),
	}
	w.transcript = NewTranscript(opts.Config.NoticeTTL, w.scheduleExpiry)

	if w.ids != nil {
		w.identity = w.ids.Current()
	}
	if !opts.Config.Reachable() || w.dialer == nil {
		w.link.unavailable = true
		w.log.Info().Str("environment", opts.Config.Environment).Msg("chat unavailable: no backend endpoint")
	}
	return w
}

// Run processes actions, pushes, timers and identity transitions until ctx is
// cancelled. It must be called exactly once.
func (w *Widget) Run(ctx context.Context) {
	w.runCtx = ctx
	defer close(w.done)

	var changes <-chan *identity.Identity
	if w.ids != nil {
		changes = w.ids.Changes()
	}

	for {
		select {
		case <-ctx.Done():
			w.teardown()
			w.presence.Reset()
			w.transcript.Clear()
			w.link.state = StateDisabled
			w.publish()
			return
		case fn := <-w.inbox:
			fn()
			w.publish()
		case next, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			w.applyIdentity(next)
			w.publish()
		}
	}
}

// Updates delivers the latest snapshot after each loop step. Intermediate
// snapshots are coalesced.
func (w *Widget) Updates() <-chan Snapshot {
	return w.updates
}

// Done is closed when Run returns.
func (w *Widget) Done() <-chan struct{} {
	return w.done
}

// Snapshot returns a copy of the observable state.
func (w *Widget) Snapshot(ctx context.Context) (Snapshot, error) {
	var s Snapshot
	err := w.do(ctx, func() error {
		s = w.snapshot()
		return nil
	})
	return s, err
}

// Open starts the channel. It is a no-op when chat is unavailable or a channel
// already exists.
func (w *Widget) Open(ctx context.Context) error {
	return w.do(ctx, func() error {
		w.openChannel()
		return nil
	})
}

// Close tears the channel down and resets presence and transcript. Events
// arriving afterwards are ignored.
func (w *Widget) Close(ctx context.Context) error {
	return w.do(ctx, func() error {
		w.closeChannel()
		return nil
	})
}

// Retry re-establishes the channel after a failure. It is a no-op while a dial
// is in flight or when the widget is disabled.
func (w *Widget) Retry(ctx context.Context) error {
	return w.do(ctx, func() error {
		w.retry()
		return nil
	})
}

// RegisterPresence announces the current identity as online.
func (w *Widget) RegisterPresence(ctx context.Context) error {
	return w.do(ctx, w.registerPresence)
}

// JoinRoom enters the chat room. The local chat set reflects the join
// immediately; the next roster push from the server replaces it.
func (w *Widget) JoinRoom(ctx context.Context) error {
	return w.do(ctx, func() error {
		if w.identity == nil {
			return ErrNoIdentity
		}
		if w.link.state != StateConnected {
			return ErrNotConnected
		}
		id := *w.identity
		if w.presence.InChat(id.ID) {
			return ErrAlreadyInChat
		}
		if err := w.emit(proto.EventJoinChat, presenceData(id)); err != nil {
			return err
		}
		w.presence.Join(id)
		return nil
	})
}

// LeaveRoom exits the chat room while keeping the channel open.
func (w *Widget) LeaveRoom(ctx context.Context) error {
	return w.do(ctx, func() error {
		if w.identity == nil {
			return ErrNoIdentity
		}
		return w.leaveRoom(*w.identity)
	})
}

// SendOptions modifies Send.
type SendOptions struct {
	IsNotice bool
}

// Send posts a message. Empty bodies, anonymous users and a closed channel are
// rejected locally. The message appears once the server echoes it.
func (w *Widget) Send(ctx context.Context, body string, opts SendOptions) error {
	return w.do(ctx, func() error {
		body := strings.TrimSpace(body)
		if body == "" {
			return ErrEmptyMessage
		}
		if w.identity == nil {
			return ErrNoIdentity
		}
		if w.link.state != StateConnected {
			return ErrNotConnected
		}
		kind := proto.KindUser
		if w.identity.IsAdmin() {
			kind = proto.KindAdmin
		}
		if opts.IsNotice && kind != proto.KindAdmin {
			return ErrNotAdmin
		}
		return w.emit(proto.EventSendMessage, proto.SendMessageData{
			Body:     body,
			Kind:     kind,
			IsNotice: opts.IsNotice,
		})
	})
}

// Dismiss removes a pinned notice by hand.
func (w *Widget) Dismiss(ctx context.Context, noticeID string) error {
	return w.do(ctx, func() error {
		w.transcript.Dismiss(noticeID)
		return nil
	})
}

// SetOpen switches between the expanded and collapsed presentation. Opening
// resets the unread counter.
func (w *Widget) SetOpen(ctx context.Context, open bool) error {
	return w.do(ctx, func() error {
		w.open = open
		if open {
			w.unread = 0
		}
		return nil
	})
}

// AckAlert clears the current alert if it is still the one identified by seq.
func (w *Widget) AckAlert(ctx context.Context, seq uint64) error {
	return w.do(ctx, func() error {
		if w.alert != nil && w.alert.Seq == seq {
			w.alert = nil
		}
		return nil
	})
}

// DeleteMessage asks the server to remove one message.
func (w *Widget) DeleteMessage(ctx context.Context, messageID string) error {
	return w.moderate(ctx, ActionDeleteMessage, messageID)
}

// ClearAll asks the server to clear the transcript for everyone.
func (w *Widget) ClearAll(ctx context.Context) error {
	return w.moderate(ctx, ActionClearAll, "")
}

// PurgeHistory asks the server to permanently drop stored messages and notices.
func (w *Widget) PurgeHistory(ctx context.Context) error {
	return w.moderate(ctx, ActionPurgeHistory, "")
}

func (w *Widget) moderate(ctx context.Context, action ModerationAction, target string) error {
	if action == ActionDeleteMessage && strings.TrimSpace(target) == "" {
		return errors.New("message id is required")
	}

	gate := func() error { return w.moderation.gate(w.identity, w.link.state) }
	if err := w.do(ctx, gate); err != nil {
		return err
	}

	// Confirmation may block on user input, so it runs outside the loop.
	if w.confirm == nil {
		return ErrNotConfirmed
	}
	ok, err := w.confirm.Confirm(ctx, confirmPrompt(action, target))
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotConfirmed
	}

	return w.do(ctx, func() error {
		// Identity or connection may have changed while the prompt was open.
		if err := gate(); err != nil {
			return err
		}
		var err error
		switch action {
		case ActionDeleteMessage:
			err = w.emit(proto.EventDeleteMessage, proto.DeleteMessageData{MessageID: target})
		case ActionClearAll:
			err = w.emit(proto.EventClearAllMessages, nil)
		case ActionPurgeHistory:
			err = w.emit(proto.EventClearCache, proto.ClearCacheData{Action: proto.ClearCacheActionPurge})
		}
		if err != nil {
			return err
		}
		w.moderation.track(action, target)
		w.log.Info().Str("action", string(action)).Str("target", target).Msg("moderation requested")
		return nil
	})
}

func (w *Widget) registerPresence() error {
	if w.identity == nil {
		return ErrNoIdentity
	}
	if w.link.state != StateConnected {
		return ErrNotConnected
	}
	id := *w.identity
	if err := w.emit(proto.EventRegisterPresence, presenceData(id)); err != nil {
		return err
	}
	w.presence.Register(id)
	return nil
}

func (w *Widget) leaveRoom(id identity.Identity) error {
	if !w.presence.InChat(id.ID) {
		return ErrNotInChat
	}
	if w.link.state != StateConnected {
		return ErrNotConnected
	}
	if err := w.emit(proto.EventLeaveChat, presenceData(id)); err != nil {
		return err
	}
	w.presence.Leave(id.ID)
	return nil
}

// applyIdentity reacts to login and logout. The previous user's chat
// membership and transcript are dropped in the same step, before the next
// identity becomes visible.
func (w *Widget) applyIdentity(next *identity.Identity) {
	prev := w.identity
	if identity.Same(prev, next) {
		if next != nil {
			w.identity = next
		}
		return
	}

	if prev != nil {
		if w.presence.InChat(prev.ID) {
			if err := w.leaveRoom(*prev); err != nil {
				w.presence.Leave(prev.ID)
			}
		}
		w.transcript.Clear()
		w.unread = 0
		w.alert = nil
	}

	w.identity = next
	w.log.Info().Bool("signed_in", next != nil).Msg("identity changed")

	// The channel is bound to an identity; reconnect as the new one.
	if w.link.state != StateDisabled {
		w.teardown()
		w.presence.Reset()
		w.transcript.DropLiveNotices()
		w.startDial()
	}
}

func (w *Widget) raise(msg string, err error) {
	w.alertSeq++
	w.alert = &Alert{Seq: w.alertSeq, Message: msg, Err: err}
}

func (w *Widget) now() time.Time {
	return w.clock.Now()
}

// post hands fn to the loop. It returns false once the loop has stopped.
func (w *Widget) post(fn func()) bool {
	select {
	case w.inbox <- fn:
		return true
	case <-w.done:
		return false
	}
}

// do runs fn on the loop and waits for its result.
func (w *Widget) do(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	select {
	case w.inbox <- func() { result <- fn() }:
	case <-w.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-w.done:
		select {
		case err := <-result:
			return err
		default:
			return ErrClosed
		}
	}
}

func (w *Widget) publish() {
	s := w.snapshot()
	select {
	case <-w.updates:
	default:
	}
	w.updates <- s
}

func presenceData(id identity.Identity) proto.PresenceData {
	return proto.PresenceData{UserID: id.ID, DisplayName: id.Name()}
}
