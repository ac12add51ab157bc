package session

import (
	"log"
	"sync"
	"time"

	"draftpad/pkg/apperr"
	"draftpad/pkg/version"
)

// DefaultSnapshotInterval is the period between background version
// snapshots of the live document.
const DefaultSnapshotInterval = 30 * time.Second

// Snapshotter is the slice of the version store the controller needs.
type Snapshotter interface {
	CreateSnapshot(documentID, content, authorID string, label *string) (*version.Version, error)
}

// Autosnapshot periodically commits the live content into the version
// store. Each tick reads content through the getter so it always
// snapshots the latest state, never the state at timer setup.
type Autosnapshot struct {
	versions   Snapshotter
	documentID string
	authorID   string
	interval   time.Duration
	getContent func() string

	mu     sync.Mutex
	done   chan struct{}
	active bool
}

// NewAutosnapshot creates a controller; call Start to begin ticking.
func NewAutosnapshot(versions Snapshotter, documentID, authorID string, getContent func() string) *Autosnapshot {
	return NewAutosnapshotWithInterval(versions, documentID, authorID, getContent, DefaultSnapshotInterval)
}

// NewAutosnapshotWithInterval allows tests to shrink the period.
func NewAutosnapshotWithInterval(versions Snapshotter, documentID, authorID string, getContent func() string, interval time.Duration) *Autosnapshot {
	return &Autosnapshot{
		versions:   versions,
		documentID: documentID,
		authorID:   authorID,
		interval:   interval,
		getContent: getContent,
	}
}

// Start begins the snapshot loop. It does nothing until both document
// and author identifiers are present.
func (a *Autosnapshot) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.active || a.documentID == "" || a.authorID == "" {
		return
	}
	a.active = true
	a.done = make(chan struct{})

	go a.loop(a.done)
}

// Stop cancels the snapshot loop.
func (a *Autosnapshot) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.active {
		return
	}
	close(a.done)
	a.active = false
}

// SaveNamedVersion takes an explicit, labeled snapshot right now. Unlike
// the background ticks this is a direct user action, so missing state
// and store failures are returned loudly.
func (a *Autosnapshot) SaveNamedVersion(label string) (*version.Version, error) {
	if a.documentID == "" || a.authorID == "" {
		return nil, apperr.NewValidation("document", "not fully loaded yet")
	}
	return a.versions.CreateSnapshot(a.documentID, a.getContent(), a.authorID, &label)
}

func (a *Autosnapshot) loop(done chan struct{}) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			// A failed autosnapshot must never interrupt editing.
			if _, err := a.versions.CreateSnapshot(a.documentID, a.getContent(), a.authorID, nil); err != nil {
				log.Printf("[Autosnapshot] tick failed for doc %s: %v", a.documentID, err)
			}
		}
	}
}
