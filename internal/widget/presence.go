package widget

import "github.com/vovakirdan/wirechat-widget/internal/identity"

// roster is one membership set: the last server snapshot plus pending local
// edits. A server snapshot always wins and discards every pending edit.
type roster struct {
	snapshot    []PresenceEntry
	pendingAdd  []PresenceEntry
	pendingDrop map[string]struct{}
}

func (r *roster) view() []PresenceEntry {
	out := make([]PresenceEntry, 0, len(r.snapshot)+len(r.pendingAdd))
	for _, e := range r.snapshot {
		if _, dropped := r.pendingDrop[e.UserID]; dropped {
			continue
		}
		out = append(out, e)
	}
	return append(out, r.pendingAdd...)
}

func (r *roster) contains(userID string) bool {
	for _, e := range r.pendingAdd {
		if e.UserID == userID {
			return true
		}
	}
	if _, dropped := r.pendingDrop[userID]; dropped {
		return false
	}
	for _, e := range r.snapshot {
		if e.UserID == userID {
			return true
		}
	}
	return false
}

// add records an optimistic insert. Returns false if already present.
func (r *roster) add(e PresenceEntry) bool {
	if r.contains(e.UserID) {
		return false
	}
	if _, dropped := r.pendingDrop[e.UserID]; dropped {
		delete(r.pendingDrop, e.UserID)
		return true
	}
	r.pendingAdd = append(r.pendingAdd, e)
	return true
}

// remove records an optimistic delete. Returns false if absent.
func (r *roster) remove(userID string) bool {
	if !r.contains(userID) {
		return false
	}
	for i, e := range r.pendingAdd {
		if e.UserID == userID {
			r.pendingAdd = append(r.pendingAdd[:i], r.pendingAdd[i+1:]...)
			return true
		}
	}
	if r.pendingDrop == nil {
		r.pendingDrop = make(map[string]struct{})
	}
	r.pendingDrop[userID] = struct{}{}
	return true
}

// replace installs an authoritative snapshot, deduplicated by user id.
func (r *roster) replace(entries []PresenceEntry) {
	seen := make(map[string]struct{}, len(entries))
	snap := make([]PresenceEntry, 0, len(entries))
	for _, e := range entries {
		if e.UserID == "" {
			continue
		}
		if _, dup := seen[e.UserID]; dup {
			continue
		}
		seen[e.UserID] = struct{}{}
		snap = append(snap, e)
	}
	r.snapshot = snap
	r.pendingAdd = nil
	r.pendingDrop = nil
}

func (r *roster) pending() int {
	return len(r.pendingAdd) + len(r.pendingDrop)
}

func (r *roster) reset() {
	r.snapshot = nil
	r.pendingAdd = nil
	r.pendingDrop = nil
}

// Presence tracks the online set and the in-chat set. The two are orthogonal:
// membership in one says nothing about the other.
//
// Presence is not safe for concurrent use; the widget loop owns it.
type Presence struct {
	online roster
	chat   roster
}

// NewPresence returns an empty registry.
func NewPresence() *Presence {
	return &Presence{}
}

// Register optimistically marks id as online.
func (p *Presence) Register(id identity.Identity) bool {
	return p.online.add(entryFromIdentity(id))
}

// Join optimistically adds id to the chat set, and to the online set if absent.
// Returns false when id is already in chat.
func (p *Presence) Join(id identity.Identity) bool {
	if p.chat.contains(id.ID) {
		return false
	}
	entry := entryFromIdentity(id)
	p.chat.add(entry)
	p.online.add(entry)
	return true
}

// Leave removes userID from the chat set. Returns false when not a member.
func (p *Presence) Leave(userID string) bool {
	return p.chat.remove(userID)
}

// ReplaceOnline installs a server roster for the online set.
func (p *Presence) ReplaceOnline(entries []PresenceEntry) {
	p.online.replace(entries)
}

// ReplaceChat installs a server roster for the chat set.
func (p *Presence) ReplaceChat(entries []PresenceEntry) {
	p.chat.replace(entries)
}

// InChat reports chat set membership.
func (p *Presence) InChat(userID string) bool {
	return p.chat.contains(userID)
}

// IsOnline reports online set membership.
func (p *Presence) IsOnline(userID string) bool {
	return p.online.contains(userID)
}

// Online returns a copy of the online set.
func (p *Presence) Online() []PresenceEntry {
	return p.online.view()
}

// Chat returns a copy of the chat set.
func (p *Presence) Chat() []PresenceEntry {
	return p.chat.view()
}

// OnlineCount never reports zero while the local identity is connected.
func (p *Presence) OnlineCount(localConnected bool) int {
	n := 0
	for _, e := range p.online.view() {
		if e.Status == StatusOnline {
			n++
		}
	}
	if localConnected && n < 1 {
		return 1
	}
	return n
}

// ChatCount returns the number of chat set members.
func (p *Presence) ChatCount() int {
	return len(p.chat.view())
}

// Pending returns the number of unconfirmed local edits across both sets.
func (p *Presence) Pending() int {
	return p.online.pending() + p.chat.pending()
}

// Reset empties both sets.
func (p *Presence) Reset() {
	p.online.reset()
	p.chat.reset()
}
