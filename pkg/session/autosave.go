package session

import (
	"log"
	"sync"
	"time"

	"draftpad/pkg/apperr"
	"draftpad/pkg/store"
)

// SaveStatus is the user-visible persistence indicator.
type SaveStatus string

const (
	StatusSaved  SaveStatus = "saved"
	StatusSaving SaveStatus = "saving"
	StatusError  SaveStatus = "error"
)

// DefaultSaveDebounce is how long typing must pause before a durable save.
const DefaultSaveDebounce = 2000 * time.Millisecond

// Saver persists document content. Implemented by DocumentSaver over the
// document store.
type Saver interface {
	SaveContent(documentID, content string) error
}

// DocumentSaver adapts IDocumentStore to the Saver contract.
type DocumentSaver struct {
	Docs store.IDocumentStore
}

func (d DocumentSaver) SaveContent(documentID, content string) error {
	_, err := d.Docs.Update(documentID, &store.DocumentUpdate{Content: &content})
	return err
}

// Autosave debounces durable persistence of the live document. Only the
// owner's session ever writes; for everyone else the controller is inert
// and the status stays whatever it was initialized to.
type Autosave struct {
	mu         sync.Mutex
	saver      Saver
	documentID string
	isOwner    bool
	debounce   time.Duration

	status    SaveStatus
	lastSaved string // last content known to be durable
	current   string // latest content seen
	timer     *time.Timer
}

// NewAutosave creates a controller for one document. initialContent is
// the loaded document body; it counts as already saved.
func NewAutosave(saver Saver, documentID, initialContent string, isOwner bool) *Autosave {
	return NewAutosaveWithDebounce(saver, documentID, initialContent, isOwner, DefaultSaveDebounce)
}

// NewAutosaveWithDebounce allows tests to shrink the debounce window.
func NewAutosaveWithDebounce(saver Saver, documentID, initialContent string, isOwner bool, debounce time.Duration) *Autosave {
	return &Autosave{
		saver:      saver,
		documentID: documentID,
		isOwner:    isOwner,
		debounce:   debounce,
		status:     StatusSaved,
		lastSaved:  initialContent,
		current:    initialContent,
	}
}

// ContentChanged (re)arms the debounce timer for the new content. The
// eventual failure of a debounced save is reflected in Status but not
// delivered anywhere: there is no caller to deliver it to.
func (a *Autosave) ContentChanged(content string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.isOwner || a.documentID == "" {
		return
	}
	if content == a.lastSaved {
		return
	}
	// Never overwrite real content with an empty editor state. This is
	// a safety valve, not conflict detection.
	if content == "" && a.lastSaved != "" {
		return
	}

	a.current = content
	a.status = StatusSaving

	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.debounce, func() {
		if err := a.flush(); err != nil {
			log.Printf("[Autosave] background save failed for doc %s: %v", a.documentID, err)
		}
	})
}

// SaveNow cancels any pending debounce and persists immediately,
// propagating failure to the caller.
func (a *Autosave) SaveNow() error {
	a.mu.Lock()
	if !a.isOwner || a.documentID == "" {
		a.mu.Unlock()
		return nil
	}
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.mu.Unlock()

	return a.flush()
}

// Status returns the current save indicator.
func (a *Autosave) Status() SaveStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// Stop cancels any pending save. Used on document switch and teardown;
// a superseded save must not land on the previous document.
func (a *Autosave) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

func (a *Autosave) flush() error {
	a.mu.Lock()
	content := a.current
	documentID := a.documentID
	a.mu.Unlock()

	err := a.saver.SaveContent(documentID, content)

	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		a.status = StatusError
		return apperr.NewPersistence("autosave", err)
	}
	a.lastSaved = content
	if a.current == content {
		a.status = StatusSaved
	}
	return nil
}
