package widget

import (
	"time"

	"github.com/vovakirdan/wirechat-widget/internal/proto"
)

// scheduleFunc arms a one-shot expiry for a pinned notice and returns its stop function.
type scheduleFunc func(d time.Duration, id string, token uint64) (stop func() bool)

type noticeTimer struct {
	token uint64
	stop  func() bool
}

// Transcript holds the regular message list and the pinned notice collection.
// Admin notices never enter the regular list.
//
// Transcript is not safe for concurrent use; the widget loop owns it.
type Transcript struct {
	messages []Message
	notices  []Notice

	ttl      time.Duration
	schedule scheduleFunc
	timers   map[string]noticeTimer
	seq      uint64
}

// NewTranscript builds a transcript whose live notices expire after ttl.
func NewTranscript(ttl time.Duration, schedule scheduleFunc) *Transcript {
	return &Transcript{
		ttl:      ttl,
		schedule: schedule,
		timers:   make(map[string]noticeTimer),
	}
}

// LoadHistory replaces the regular list with the non-notice part of batch and
// pins the notices found in it without auto-hide. Live notices already pinned
// keep their place and their timers, and locally synthesized system lines are
// kept after the history since the server never stores them.
func (t *Transcript) LoadHistory(batch []Message, now time.Time) (regular, notices int) {
	var live []Notice
	liveIDs := make(map[string]struct{})
	for _, n := range t.notices {
		if n.AutoHide {
			live = append(live, n)
			liveIDs[n.ID] = struct{}{}
		}
	}

	var system []Message
	for _, m := range t.messages {
		if m.Kind == proto.KindSystem {
			system = append(system, m)
		}
	}

	t.messages = make([]Message, 0, len(batch)+len(system))
	t.notices = nil
	for _, m := range batch {
		if !m.IsAdminNotice() {
			t.messages = append(t.messages, m)
			continue
		}
		if _, isLive := liveIDs[m.ID]; isLive {
			continue
		}
		t.pin(Notice{Message: m, PinnedAt: now, AutoHide: false})
		notices++
	}
	t.notices = append(t.notices, live...)
	regular = len(t.messages)
	t.messages = append(t.messages, system...)
	return regular, notices
}

// Receive routes a live message. Admin notices are pinned with auto-hide and
// an expiry timer; anything else is appended in arrival order.
// Returns true when m landed in the regular list.
func (t *Transcript) Receive(m Message, now time.Time) bool {
	if m.IsAdminNotice() {
		t.stopTimer(m.ID)
		t.pin(Notice{Message: m, PinnedAt: now, AutoHide: true})
		t.arm(m.ID)
		return false
	}
	t.messages = append(t.messages, m)
	return true
}

// pin inserts n, replacing any notice with the same id.
func (t *Transcript) pin(n Notice) {
	t.dropNotice(n.ID)
	t.notices = append(t.notices, n)
}

func (t *Transcript) arm(id string) {
	if t.schedule == nil || t.ttl <= 0 {
		return
	}
	t.seq++
	token := t.seq
	t.timers[id] = noticeTimer{token: token, stop: t.schedule(t.ttl, id, token)}
}

// Expire is the timer path. It removes the notice only if token still matches
// the live timer for id, so a replaced notice is not removed by its
// predecessor's timer.
func (t *Transcript) Expire(id string, token uint64) bool {
	tm, ok := t.timers[id]
	if !ok || tm.token != token {
		return false
	}
	delete(t.timers, id)
	return t.dropNotice(id)
}

// Dismiss is the manual path. Whichever of Dismiss and Expire runs first
// removes the notice; the other finds nothing to do.
func (t *Transcript) Dismiss(id string) bool {
	t.stopTimer(id)
	return t.dropNotice(id)
}

// Remove deletes a message by id from either collection.
func (t *Transcript) Remove(id string) bool {
	removed := false
	for i, m := range t.messages {
		if m.ID == id {
			t.messages = append(t.messages[:i:i], t.messages[i+1:]...)
			removed = true
			break
		}
	}
	if t.Dismiss(id) {
		removed = true
	}
	return removed
}

// Clear empties both collections in one step.
func (t *Transcript) Clear() {
	t.stopTimers()
	t.messages = nil
	t.notices = nil
}

// DropLiveNotices removes auto-hiding notices and their timers. Used when the
// channel that scheduled them goes away.
func (t *Transcript) DropLiveNotices() {
	t.stopTimers()
	kept := t.notices[:0:0]
	for _, n := range t.notices {
		if !n.AutoHide {
			kept = append(kept, n)
		}
	}
	t.notices = kept
}

// Messages returns a copy of the regular list.
func (t *Transcript) Messages() []Message {
	return append([]Message(nil), t.messages...)
}

// Notices returns a copy of the pinned collection.
func (t *Transcript) Notices() []Notice {
	return append([]Notice(nil), t.notices...)
}

// Len returns the sizes of both collections.
func (t *Transcript) Len() (messages, notices int) {
	return len(t.messages), len(t.notices)
}

func (t *Transcript) dropNotice(id string) bool {
	for i, n := range t.notices {
		if n.ID == id {
			t.notices = append(t.notices[:i:i], t.notices[i+1:]...)
			return true
		}
	}
	return false
}

func (t *Transcript) stopTimer(id string) {
	if tm, ok := t.timers[id]; ok {
		if tm.stop != nil {
			tm.stop()
		}
		delete(t.timers, id)
	}
}

func (t *Transcript) stopTimers() {
	for id := range t.timers {
		t.stopTimer(id)
	}
}
