package history

import "sync"

// DefaultCap bounds how many content snapshots a session keeps.
const DefaultCap = 100

// History is a bounded, linear undo/redo log of content snapshots for a
// single editing session. The value at the cursor is always the current
// document content as seen by the rest of the system.
type History struct {
	mu       sync.Mutex
	entries  []string
	index    int
	cap      int
	skipNext bool
}

// New creates a history seeded with the initial content.
func New(initial string) *History {
	return NewWithCap(initial, DefaultCap)
}

// NewWithCap creates a history with an explicit snapshot cap.
func NewWithCap(initial string, capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{
		entries: []string{initial},
		cap:     capacity,
	}
}

// Push records a new content value. Any redone (forward) entries beyond
// the cursor are truncated first. When the log exceeds its cap the oldest
// entry is evicted and the cursor clamps accordingly.
//
// One Push immediately following Undo/Redo is silently dropped: the value
// that navigation produced flows back through the normal edit-change path
// and must not re-record itself.
func (h *History) Push(value string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.skipNext {
		h.skipNext = false
		return
	}

	h.entries = append(h.entries[:h.index+1], value)
	h.index++

	if len(h.entries) > h.cap {
		h.entries = h.entries[1:]
		h.index--
	}
}

// Undo moves the cursor back one step. No-op at the oldest entry.
func (h *History) Undo() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.index > 0 {
		h.skipNext = true
		h.index--
	}
}

// Redo moves the cursor forward one step. No-op at the newest entry.
func (h *History) Redo() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.index < len(h.entries)-1 {
		h.skipNext = true
		h.index++
	}
}

// Reset discards all history and starts a fresh single-entry log. Used
// when switching documents.
func (h *History) Reset(value string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = []string{value}
	h.index = 0
	h.skipNext = false
}

// Current returns the content at the cursor.
func (h *History) Current() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries[h.index]
}

// CanUndo reports whether the cursor can move back.
func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.index > 0
}

// CanRedo reports whether the cursor can move forward.
func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.index < len(h.entries)-1
}

// Len returns the number of recorded snapshots.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
