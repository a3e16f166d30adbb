package model

import (
	"sync"
	"time"
)

// Flash holds a transient status-bar message with an expiry.
type Flash struct {
	mu      sync.RWMutex
	message string
	expires time.Time
}

// Set stores a message that disappears after d.
func (f *Flash) Set(msg string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.message = msg
	f.expires = time.Now().Add(d)
}

// Get returns the current message, or empty once expired.
func (f *Flash) Get() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if time.Now().After(f.expires) {
		return ""
	}
	return f.message
}
