package widget

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/vovakirdan/wirechat-widget/internal/proto"
	"github.com/vovakirdan/wirechat-widget/internal/telemetry"
)

const (
	outboxSize   = 64
	writeTimeout = 5 * time.Second
)

var errOutboxFull = errors.New("outbound queue full")

// link is the connection manager's state. Each channel gets a fresh epoch;
// dial results, frames, drops and timers carrying an older epoch are stale.
type link struct {
	state       ConnectionState
	epoch       uint64
	lastErr     error
	unavailable bool

	conn       Conn
	outbox     chan proto.Frame
	cancelDial context.CancelFunc
	redial     *clock.Timer
}

// openChannel dials unless a channel already exists or is being dialed.
func (w *Widget) openChannel() {
	if w.link.unavailable {
		return
	}
	switch w.link.state {
	case StateConnecting, StateConnected:
		return
	}
	w.startDial()
}

func (w *Widget) startDial() {
	if w.link.unavailable {
		w.link.state = StateDisabled
		return
	}
	w.stopRedial()
	w.link.epoch++
	epoch := w.link.epoch
	w.link.state = StateConnecting
	w.link.lastErr = nil
	telemetry.Inc(telemetry.ConnectAttempts)

	parent := w.runCtx
	if parent == nil {
		parent = context.Background()
	}
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if w.cfg.ConnectTimeout > 0 {
		ctx, cancel = w.clock.WithTimeout(parent, w.cfg.ConnectTimeout)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}
	w.link.cancelDial = cancel

	target := w.dialURL()
	w.log.Debug().Uint64("epoch", epoch).Str("endpoint", w.endpoint).Msg("dialing chat backend")

	go func() {
		conn, err := w.dialer.Dial(ctx, target)
		cancel()
		if !w.post(func() { w.onDialed(epoch, conn, err) }) && conn != nil {
			_ = conn.Close()
		}
	}()
}

func (w *Widget) onDialed(epoch uint64, conn Conn, err error) {
	if epoch != w.link.epoch || w.link.state != StateConnecting {
		if conn != nil {
			_ = conn.Close()
		}
		telemetry.Inc(telemetry.StaleEvents)
		return
	}
	w.link.cancelDial = nil

	if err != nil {
		w.link.state = StateErrored
		w.link.lastErr = err
		telemetry.Inc(telemetry.ConnectFailures)
		w.log.Warn().Err(err).Uint64("epoch", epoch).Msg("chat connection failed")
		return
	}

	w.link.state = StateConnected
	w.link.conn = conn
	w.link.outbox = make(chan proto.Frame, outboxSize)
	go w.readLoop(epoch, conn)
	go w.writeLoop(conn, w.link.outbox)
	w.log.Info().Uint64("epoch", epoch).Msg("chat connected")
	w.onConnected()
}

// onConnected performs the startup exchange: presence, online roster, history.
func (w *Widget) onConnected() {
	if w.identity != nil {
		if err := w.registerPresence(); err != nil {
			w.log.Debug().Err(err).Msg("register presence skipped")
		}
	}
	if err := w.emit(proto.EventGetOnlineUsers, nil); err != nil {
		w.log.Debug().Err(err).Msg("online roster request skipped")
	}
	req := proto.RecentMessagesRequest{Limit: w.cfg.HistoryLimit}
	if err := w.emit(proto.EventGetRecentMessages, req); err != nil {
		w.log.Debug().Err(err).Msg("history request skipped")
	}
}

// readLoop forwards frames to the loop until the channel fails. It is stopped
// by closing the conn, never by cancelling the read context.
func (w *Widget) readLoop(epoch uint64, conn Conn) {
	for {
		f, err := conn.Read(context.Background())
		if err != nil {
			w.post(func() { w.onDropped(epoch, err) })
			return
		}
		if !w.post(func() { w.onFrame(epoch, f) }) {
			_ = conn.Close()
			return
		}
	}
}

// writeLoop drains the outbox and closes conn once the outbox is closed.
func (w *Widget) writeLoop(conn Conn, outbox <-chan proto.Frame) {
	defer conn.Close()
	for f := range outbox {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := conn.Write(ctx, f)
		cancel()
		if err != nil {
			w.log.Debug().Err(err).Str("event", f.Event).Msg("write failed")
			return
		}
	}
}

// teardown detaches the current channel. Anything it produced afterwards is
// stale. Queued frames are still flushed before the conn closes.
func (w *Widget) teardown() {
	w.stopRedial()
	if w.link.cancelDial != nil {
		w.link.cancelDial()
		w.link.cancelDial = nil
	}
	w.link.epoch++
	if w.link.outbox != nil {
		close(w.link.outbox)
		w.link.outbox = nil
	}
	w.link.conn = nil
	w.moderation.reset()
}

func (w *Widget) onDropped(epoch uint64, err error) {
	if epoch != w.link.epoch {
		telemetry.Inc(telemetry.StaleEvents)
		return
	}
	w.log.Warn().Err(err).Uint64("epoch", epoch).Msg("chat channel dropped")

	w.teardown()
	w.link.state = StateDisconnected
	w.link.lastErr = err
	w.presence.Reset()
	w.transcript.DropLiveNotices()

	redialEpoch := w.link.epoch
	w.link.redial = w.clock.AfterFunc(w.cfg.ReconnectDelay, func() {
		w.post(func() { w.onRedialDue(redialEpoch) })
	})
}

func (w *Widget) onRedialDue(epoch uint64) {
	if epoch != w.link.epoch || w.link.state != StateDisconnected {
		return
	}
	w.link.redial = nil
	w.startDial()
}

func (w *Widget) retry() {
	switch w.link.state {
	case StateDisabled, StateConnecting:
		return
	}
	w.teardown()
	w.presence.Reset()
	w.transcript.Clear()
	w.unread = 0
	w.startDial()
}

func (w *Widget) closeChannel() {
	w.teardown()
	w.presence.Reset()
	w.transcript.Clear()
	w.unread = 0
	w.link.state = StateDisabled
	w.link.lastErr = nil
	w.log.Info().Msg("chat closed")
}

func (w *Widget) stopRedial() {
	if w.link.redial != nil {
		w.link.redial.Stop()
		w.link.redial = nil
	}
}

// emit queues an outbound event on the open channel.
func (w *Widget) emit(event string, data any) error {
	if w.link.state != StateConnected || w.link.outbox == nil {
		return ErrNotConnected
	}
	f, err := proto.NewFrame(event, data)
	if err != nil {
		return err
	}
	select {
	case w.link.outbox <- f:
		return nil
	default:
		return errOutboxFull
	}
}

// scheduleExpiry arms a notice timer that expires id through the loop.
func (w *Widget) scheduleExpiry(d time.Duration, id string, token uint64) func() bool {
	t := w.clock.AfterFunc(d, func() {
		w.post(func() {
			if w.transcript.Expire(id, token) {
				telemetry.Inc(telemetry.NoticesExpired)
			}
		})
	})
	return t.Stop
}

// dialURL appends the identity token as a query parameter.
func (w *Widget) dialURL() string {
	if w.identity == nil || w.identity.Token == "" {
		return w.endpoint
	}
	u, err := url.Parse(w.endpoint)
	if err != nil {
		return w.endpoint
	}
	q := u.Query()
	q.Set("token", w.identity.Token)
	u.RawQuery = q.Encode()
	return u.String()
}
