package chat

import (
	"sync"
	"time"

	"github.com/MR-JLTC/tutorchat/internal/ws"
)

// Presence tracks which contacts are currently online, driven purely by
// pushed events. It is an approximation of server truth at the time of
// the last event, never authoritative.
type Presence struct {
	mu         sync.Mutex
	online     map[int64]bool
	lastActive map[int64]int64
}

// NewPresence creates an empty presence tracker.
func NewPresence() *Presence {
	return &Presence{
		online:     make(map[int64]bool),
		lastActive: make(map[int64]int64),
	}
}

// Apply folds one presence event into the tracker.
func (p *Presence) Apply(evt *ws.PresenceEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if evt.Online() {
		p.online[evt.UserID] = true
		delete(p.lastActive, evt.UserID)
		return
	}
	delete(p.online, evt.UserID)
	if t, err := time.Parse(time.RFC3339, evt.LastActive); err == nil {
		p.lastActive[evt.UserID] = t.UnixMilli()
	}
}

// Online reports whether the user was online as of the last event.
func (p *Presence) Online(userID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online[userID]
}

// LastActive returns the user's last-active time in unix millis, zero
// when unknown or currently online.
func (p *Presence) LastActive(userID int64) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastActive[userID]
}

// Reset clears all presence state, used on disconnect and logout.
func (p *Presence) Reset() {
	p.mu.Lock()
	p.online = make(map[int64]bool)
	p.lastActive = make(map[int64]int64)
	p.mu.Unlock()
}
