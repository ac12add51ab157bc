package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"draftpad/pkg/apperr"
	"draftpad/pkg/diff"
	"draftpad/pkg/session"
	"draftpad/pkg/share"
	"draftpad/pkg/store"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// storeStatus maps repository errors onto HTTP statuses.
func storeStatus(err error) int {
	switch {
	case errors.Is(err, apperr.ErrDocumentNotFound), errors.Is(err, apperr.ErrVersionNotFound):
		return http.StatusNotFound
	case apperr.IsValidation(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// CreateDocument creates a new document.
func (h *Handlers) CreateDocument(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OwnerID string `json:"ownerId"`
		Title   string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	doc, err := h.docs.Create(req.OwnerID, req.Title)
	if err != nil {
		writeError(w, storeStatus(err), "Failed to create document")
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

// ListDocuments lists an owner's documents: plain, searched, or paginated
// depending on the query parameters.
func (h *Handlers) ListDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ownerID := q.Get("ownerId")

	if search := q.Get("q"); search != "" {
		docs, err := h.docs.Search(ownerID, search)
		if err != nil {
			writeError(w, storeStatus(err), "Failed to search documents")
			return
		}
		writeJSON(w, http.StatusOK, docs)
		return
	}

	if pageStr := q.Get("page"); pageStr != "" {
		page, _ := strconv.Atoi(pageStr)
		pageSize, _ := strconv.Atoi(q.Get("pageSize"))
		result, err := h.docs.ListPaginated(ownerID, store.SortOption(q.Get("sort")), page, pageSize)
		if err != nil {
			writeError(w, storeStatus(err), "Failed to list documents")
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}

	docs, err := h.docs.ListByOwner(ownerID)
	if err != nil {
		writeError(w, storeStatus(err), "Failed to list documents")
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

// GetDocument retrieves a document by ID.
func (h *Handlers) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.docs.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, storeStatus(err), "Document not found")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// UpdateDocument applies a partial update and notifies any open room so
// connected editors pick the change up without a realtime edit event.
func (h *Handlers) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var updates store.DocumentUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	doc, err := h.docs.Update(id, &updates)
	if err != nil {
		writeError(w, storeStatus(err), "Failed to update document")
		return
	}

	if updates.Content != nil {
		h.notifyDocumentUpdated(id, *updates.Content)
	}
	writeJSON(w, http.StatusOK, doc)
}

// RenameDocument changes only the title.
func (h *Handlers) RenameDocument(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if err := h.docs.Rename(mux.Vars(r)["id"], req.Title); err != nil {
		writeError(w, storeStatus(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteDocument deletes a document. Versions and shares go with it via
// the schema's cascades.
func (h *Handlers) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.docs.Delete(id); err != nil {
		writeError(w, storeStatus(err), "Failed to delete document")
		return
	}
	h.roomManager.CloseRoom(id)
	w.WriteHeader(http.StatusNoContent)
}

// ListVersions returns one page of version summaries, newest first.
func (h *Handlers) ListVersions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("pageSize"))

	result, err := h.versions.ListVersions(mux.Vars(r)["id"], page, pageSize)
	if err != nil {
		writeError(w, storeStatus(err), "Failed to list versions")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// CreateVersion takes an explicit snapshot of the document's current
// stored content, optionally labeled.
func (h *Handlers) CreateVersion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AuthorID string  `json:"authorId"`
		Label    *string `json:"label"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	id := mux.Vars(r)["id"]
	doc, err := h.docs.Get(id)
	if err != nil {
		writeError(w, storeStatus(err), "Document not found")
		return
	}

	v, err := h.versions.CreateSnapshot(id, doc.Content, req.AuthorID, req.Label)
	if err != nil {
		writeError(w, storeStatus(err), "Failed to create version")
		return
	}
	if v == nil {
		// Content identical to the latest snapshot; nothing recorded.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

// GetVersion returns one version including its full content.
func (h *Handlers) GetVersion(w http.ResponseWriter, r *http.Request) {
	v, err := h.versions.GetVersionContent(mux.Vars(r)["versionId"])
	if err != nil {
		writeError(w, storeStatus(err), "Version not found")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// RestoreVersion copies an old version's content forward as a new
// snapshot, makes it the live document content, and notifies editors.
func (h *Handlers) RestoreVersion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ActorID string `json:"actorId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	vars := mux.Vars(r)
	documentID := vars["id"]

	restored, err := h.versions.RestoreVersion(documentID, vars["versionId"], req.ActorID)
	if err != nil {
		writeError(w, storeStatus(err), "Failed to restore version")
		return
	}

	if _, err := h.docs.Update(documentID, &store.DocumentUpdate{Content: &restored.Content}); err != nil {
		writeError(w, storeStatus(err), "Failed to apply restored content")
		return
	}
	h.notifyDocumentUpdated(documentID, restored.Content)

	writeJSON(w, http.StatusOK, restored)
}

// DiffVersions computes the line diff between two versions of a document.
func (h *Handlers) DiffVersions(w http.ResponseWriter, r *http.Request) {
	documentID := mux.Vars(r)["id"]
	q := r.URL.Query()

	from, err := h.versions.GetVersionContent(q.Get("from"))
	if err != nil {
		writeError(w, storeStatus(err), "Version not found")
		return
	}
	to, err := h.versions.GetVersionContent(q.Get("to"))
	if err != nil {
		writeError(w, storeStatus(err), "Version not found")
		return
	}
	if from.DocumentID != documentID || to.DocumentID != documentID {
		writeError(w, http.StatusBadRequest, "Version does not belong to this document")
		return
	}

	writeJSON(w, http.StatusOK, diff.Compute(from.Content, to.Content))
}

// CreateShare mints (or returns the existing) share link for a document.
func (h *Handlers) CreateShare(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OwnerID    string     `json:"ownerId"`
		Permission string     `json:"permission"`
		ExpiresAt  *time.Time `json:"expiresAt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	link, err := h.shares.Ensure(mux.Vars(r)["id"], req.OwnerID, share.Permission(req.Permission), req.ExpiresAt)
	if err != nil {
		writeError(w, storeStatus(err), "Failed to create share link")
		return
	}
	writeJSON(w, http.StatusCreated, link)
}

// ResolveShare resolves a share token. A token that never existed and a
// token past its expiry are different outcomes and render differently.
func (h *Handlers) ResolveShare(w http.ResponseWriter, r *http.Request) {
	res, err := h.shares.Resolve(mux.Vars(r)["token"])
	switch {
	case errors.Is(err, apperr.ErrShareNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"state": "not_found"})
		return
	case errors.Is(err, apperr.ErrShareExpired):
		writeJSON(w, http.StatusGone, map[string]string{"state": "expired"})
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Failed to resolve share link")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// RevokeShare deletes a share link.
func (h *Handlers) RevokeShare(w http.ResponseWriter, r *http.Request) {
	if err := h.shares.Revoke(mux.Vars(r)["token"]); err != nil {
		if errors.Is(err, apperr.ErrShareNotFound) {
			writeError(w, http.StatusNotFound, "Share link not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to revoke share link")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// notifyDocumentUpdated pushes new content into an already open room,
// if any, so connected editors see store-level changes (restores, REST
// updates) without polling. A document nobody has open needs no room.
func (h *Handlers) notifyDocumentUpdated(documentID, content string) {
	room, ok := h.roomManager.Lookup(documentID)
	if !ok {
		return
	}
	room.SetContent(content)
	room.BroadcastDocumentUpdated(content)

	h.sessionsMu.Lock()
	peers := make([]*session.Session, 0, len(h.sessions[documentID]))
	for _, sess := range h.sessions[documentID] {
		peers = append(peers, sess)
	}
	h.sessionsMu.Unlock()
	for _, sess := range peers {
		sess.ApplyStoreUpdate(content)
	}
}
