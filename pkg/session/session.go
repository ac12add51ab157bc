// Package session implements the per-editing-session core: the edit
// orchestrator that reconciles local typing, remote broadcasts, AI
// edits, undo/redo navigation and store-level change notifications into
// one canonical content value, plus the autosave and autosnapshot
// controllers feeding off it.
package session

import (
	"sync"
	"time"

	"draftpad/pkg/collab"
	"draftpad/pkg/history"
)

// DefaultBroadcastDebounce is how long local typing must pause before
// the pending content is broadcast to peers. Kept short so perceived
// latency stays low without flooding the channel per keystroke.
const DefaultBroadcastDebounce = 150 * time.Millisecond

// Channel is the realtime transport a session broadcasts through.
// Implemented by collab.ChannelClient and by the in-process room
// binding in the handlers.
type Channel interface {
	BroadcastContentChange(content string, seq uint64)
	UpdateCursor(line, col int)
	Close()
}

// Session is the single authority for "what is the document content
// right now" within one editing session.
type Session struct {
	UserID      string
	DisplayName string

	mu         sync.Mutex
	documentID string
	isOwner    bool
	hist       *history.History
	channel    Channel
	autosave   *Autosave
	autosnap   *Autosnapshot
	typing     *collab.TypingTracker

	debounce       time.Duration
	broadcastTimer *time.Timer

	// Outgoing broadcasts carry a monotonic per-session sequence;
	// receivers drop any payload whose origin sequence they have
	// already applied. This replaces timing-window echo suppression.
	seq     uint64
	applied map[string]uint64 // highest applied seq per origin user
}

// New creates an idle session for a user. OpenDocument binds it to a
// document.
func New(userID, displayName string) *Session {
	return &Session{
		UserID:      userID,
		DisplayName: displayName,
		hist:        history.New(""),
		typing:      collab.NewTypingTracker(),
		debounce:    DefaultBroadcastDebounce,
		applied:     make(map[string]uint64),
	}
}

// SetBroadcastDebounce overrides the typing debounce, for tests.
func (s *Session) SetBroadcastDebounce(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debounce = d
}

// OpenDocument atomically switches the session to a document: the
// previous channel is torn down, typing state cleared, history reset to
// the loaded content and the new controllers attached. A partial switch
// (new channel with stale history) must never be observable.
func (s *Session) OpenDocument(documentID, content string, isOwner bool, ch Channel, autosave *Autosave, autosnap *Autosnapshot) {
	s.mu.Lock()

	s.cancelPendingBroadcastLocked()
	oldChannel := s.channel
	oldTyping := s.typing
	oldAutosave := s.autosave
	oldAutosnap := s.autosnap

	s.documentID = documentID
	s.isOwner = isOwner
	s.channel = ch
	s.autosave = autosave
	s.autosnap = autosnap
	s.typing = collab.NewTypingTracker()
	s.applied = make(map[string]uint64)
	s.hist.Reset(content)

	s.mu.Unlock()

	if oldAutosave != nil {
		oldAutosave.Stop()
	}
	if oldAutosnap != nil {
		oldAutosnap.Stop()
	}
	if oldTyping != nil {
		oldTyping.Stop()
	}
	if oldChannel != nil {
		oldChannel.Close()
	}
	if autosnap != nil {
		autosnap.Start()
	}
}

// Close tears the session down completely.
func (s *Session) Close() {
	s.OpenDocument("", "", false, nil, nil, nil)
}

// Content returns the canonical content as the session sees it.
func (s *Session) Content() string {
	return s.hist.Current()
}

// CanUndo/CanRedo expose history navigation state.
func (s *Session) CanUndo() bool { return s.hist.CanUndo() }
func (s *Session) CanRedo() bool { return s.hist.CanRedo() }

// TypingUsers lists remote users currently typing.
func (s *Session) TypingUsers() []string {
	s.mu.Lock()
	typing := s.typing
	s.mu.Unlock()
	return typing.Active()
}

// ApplyLocalEdit handles an ordinary keystroke: history records it
// immediately, broadcast waits for a short pause in typing, and the
// autosave controller is fed when the session owns the document.
func (s *Session) ApplyLocalEdit(content string) {
	s.hist.Push(content)

	s.mu.Lock()
	if s.isOwner && s.autosave != nil {
		s.autosave.ContentChanged(content)
	}
	s.scheduleBroadcastLocked(content)
	s.mu.Unlock()
}

// ApplyAIEdit handles content produced by an AI tool call. It counts as
// locally authored, but as a discrete high-value change it is broadcast
// immediately, with no debounce.
func (s *Session) ApplyAIEdit(content string) {
	s.hist.Push(content)

	s.mu.Lock()
	if s.isOwner && s.autosave != nil {
		s.autosave.ContentChanged(content)
	}
	s.cancelPendingBroadcastLocked()
	ch := s.channel
	seq := s.nextSeqLocked()
	s.mu.Unlock()

	if ch != nil {
		ch.BroadcastContentChange(content, seq)
	}
}

// ApplyRemote handles a broadcast from a peer. The change is applied to
// history and marks the peer as typing, but is never re-broadcast:
// that is the rule that keeps two sessions from echoing each other's
// edits forever. Returns false when the payload was already applied.
func (s *Session) ApplyRemote(content, fromUserID string, seq uint64) bool {
	s.mu.Lock()
	if fromUserID == s.UserID {
		s.mu.Unlock()
		return false
	}
	if seq != 0 && seq <= s.applied[fromUserID] {
		s.mu.Unlock()
		return false
	}
	if seq != 0 {
		s.applied[fromUserID] = seq
	}
	typing := s.typing
	autosave := s.autosave
	isOwner := s.isOwner
	s.mu.Unlock()

	typing.Mark(fromUserID)
	s.hist.Push(content)

	// The owner's session durably persists merged remote edits too.
	if isOwner && autosave != nil {
		autosave.ContentChanged(content)
	}
	return true
}

// ApplyStoreUpdate handles the fallback path: a change notification
// straight from the document store rather than the broadcast channel.
func (s *Session) ApplyStoreUpdate(content string) {
	if content == s.hist.Current() {
		return
	}
	s.hist.Push(content)
}

// Undo navigates history back one step and propagates the navigated
// value like a local edit (the history itself suppresses re-recording).
func (s *Session) Undo() (string, bool) {
	if !s.hist.CanUndo() {
		return s.hist.Current(), false
	}
	s.hist.Undo()
	content := s.hist.Current()
	s.afterNavigate(content)
	return content, true
}

// Redo navigates history forward one step.
func (s *Session) Redo() (string, bool) {
	if !s.hist.CanRedo() {
		return s.hist.Current(), false
	}
	s.hist.Redo()
	content := s.hist.Current()
	s.afterNavigate(content)
	return content, true
}

// UpdateCursor publishes the local caret position to peers.
func (s *Session) UpdateCursor(line, col int) {
	s.mu.Lock()
	ch := s.channel
	s.mu.Unlock()
	if ch != nil {
		ch.UpdateCursor(line, col)
	}
}

// SaveNow forces an immediate durable save (owner only).
func (s *Session) SaveNow() error {
	s.mu.Lock()
	autosave := s.autosave
	s.mu.Unlock()
	if autosave == nil {
		return nil
	}
	return autosave.SaveNow()
}

// SaveNamedVersion takes an explicit labeled snapshot of the current
// content.
func (s *Session) SaveNamedVersion(label string) error {
	s.mu.Lock()
	autosnap := s.autosnap
	s.mu.Unlock()
	if autosnap == nil {
		return nil
	}
	_, err := autosnap.SaveNamedVersion(label)
	return err
}

func (s *Session) afterNavigate(content string) {
	s.mu.Lock()
	if s.isOwner && s.autosave != nil {
		s.autosave.ContentChanged(content)
	}
	s.scheduleBroadcastLocked(content)
	s.mu.Unlock()
}

func (s *Session) scheduleBroadcastLocked(content string) {
	if s.channel == nil {
		return
	}
	if s.broadcastTimer != nil {
		s.broadcastTimer.Stop()
	}
	ch := s.channel
	s.broadcastTimer = time.AfterFunc(s.debounce, func() {
		s.mu.Lock()
		seq := s.nextSeqLocked()
		stale := s.channel != ch
		s.mu.Unlock()
		if stale {
			return // document switched while the debounce was pending
		}
		ch.BroadcastContentChange(content, seq)
	})
}

func (s *Session) cancelPendingBroadcastLocked() {
	if s.broadcastTimer != nil {
		s.broadcastTimer.Stop()
		s.broadcastTimer = nil
	}
}

func (s *Session) nextSeqLocked() uint64 {
	s.seq++
	return s.seq
}
