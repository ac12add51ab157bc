package collab

import (
	"sort"
	"sync"
	"time"
)

// TypingTTL is how long after the last received change a remote user is
// still reported as typing.
const TypingTTL = 2 * time.Second

// TypingTracker turns incoming remote content changes into typing
// indicators. Each marked user auto-clears after the TTL unless marked
// again. Stop must be called on teardown so no timers leak across
// document switches.
type TypingTracker struct {
	mu      sync.Mutex
	ttl     time.Duration
	timers  map[string]*time.Timer
	stopped bool
}

// NewTypingTracker creates a tracker with the default TTL.
func NewTypingTracker() *TypingTracker {
	return NewTypingTrackerWithTTL(TypingTTL)
}

// NewTypingTrackerWithTTL creates a tracker with an explicit TTL, for tests.
func NewTypingTrackerWithTTL(ttl time.Duration) *TypingTracker {
	return &TypingTracker{
		ttl:    ttl,
		timers: make(map[string]*time.Timer),
	}
}

// Mark records activity from a remote user, restarting their expiry.
func (t *TypingTracker) Mark(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}
	if timer, ok := t.timers[userID]; ok {
		timer.Reset(t.ttl)
		return
	}
	t.timers[userID] = time.AfterFunc(t.ttl, func() {
		t.mu.Lock()
		delete(t.timers, userID)
		t.mu.Unlock()
	})
}

// Active returns the users currently typing, sorted for stable output.
func (t *TypingTracker) Active() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	users := make([]string, 0, len(t.timers))
	for userID := range t.timers {
		users = append(users, userID)
	}
	sort.Strings(users)
	return users
}

// Stop cancels all pending expiry timers and clears state. Leaking
// timers across document switches is a correctness bug, not just a
// performance one.
func (t *TypingTracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for userID, timer := range t.timers {
		timer.Stop()
		delete(t.timers, userID)
	}
	t.stopped = true
}
