package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"draftpad/pkg/collab"
	"draftpad/pkg/handlers"
	"draftpad/pkg/share"
	"draftpad/pkg/store"
	"draftpad/pkg/version"
)

func newTestRouter(t *testing.T, docs store.IDocumentStore, versions *version.Store, shares *share.Repo) (*mux.Router, *collab.RoomManager) {
	t.Helper()
	rooms := collab.NewRoomManager(docs)
	h := handlers.NewHandlers(rooms, docs, versions, shares, nil)

	r := mux.NewRouter()
	r.HandleFunc("/api/documents", h.CreateDocument).Methods("POST")
	r.HandleFunc("/api/documents", h.ListDocuments).Methods("GET")
	r.HandleFunc("/api/documents/{id}", h.GetDocument).Methods("GET")
	r.HandleFunc("/api/documents/{id}", h.UpdateDocument).Methods("PATCH")
	r.HandleFunc("/api/documents/{id}", h.DeleteDocument).Methods("DELETE")
	r.HandleFunc("/api/documents/{id}/rename", h.RenameDocument).Methods("POST")
	r.HandleFunc("/api/documents/{id}/versions/{versionId}/restore", h.RestoreVersion).Methods("POST")
	r.HandleFunc("/api/share/{token}", h.ResolveShare).Methods("GET")
	return r, rooms
}

func doJSON(t *testing.T, router *mux.Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestDocumentLifecycle(t *testing.T) {
	router, _ := newTestRouter(t, store.NewMemoryStore(), nil, nil)

	rec := doJSON(t, router, "POST", "/api/documents", map[string]string{
		"ownerId": "u1",
		"title":   "Meeting notes",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var doc store.Document
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&doc))
	assert.Equal(t, "Meeting notes", doc.Title)
	assert.Equal(t, "u1", doc.OwnerID)

	rec = doJSON(t, router, "GET", "/api/documents/"+doc.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	content := "first draft"
	rec = doJSON(t, router, "PATCH", "/api/documents/"+doc.ID, store.DocumentUpdate{Content: &content})
	require.Equal(t, http.StatusOK, rec.Code)

	var updated store.Document
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&updated))
	assert.Equal(t, "first draft", updated.Content)

	rec = doJSON(t, router, "DELETE", "/api/documents/"+doc.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, "GET", "/api/documents/"+doc.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateDocumentRequiresOwner(t *testing.T) {
	router, _ := newTestRouter(t, store.NewMemoryStore(), nil, nil)

	rec := doJSON(t, router, "POST", "/api/documents", map[string]string{"title": "orphan"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRenameValidation(t *testing.T) {
	docs := store.NewMemoryStore()
	router, _ := newTestRouter(t, docs, nil, nil)

	doc, err := docs.Create("u1", "Before")
	require.NoError(t, err)

	rec := doJSON(t, router, "POST", "/api/documents/"+doc.ID+"/rename", map[string]string{"title": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, "POST", "/api/documents/"+doc.ID+"/rename", map[string]string{"title": "  After  "})
	require.Equal(t, http.StatusNoContent, rec.Code)

	got, err := docs.Get(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "After", got.Title)
}

func TestListDocumentsSearch(t *testing.T) {
	docs := store.NewMemoryStore()
	router, _ := newTestRouter(t, docs, nil, nil)

	_, err := docs.Create("u1", "Grocery list")
	require.NoError(t, err)
	_, err = docs.Create("u1", "Trip plan")
	require.NoError(t, err)

	rec := doJSON(t, router, "GET", "/api/documents?ownerId=u1&q=grocery", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var results []store.DocumentSummary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&results))
	require.Len(t, results, 1)
	assert.Equal(t, "Grocery list", results[0].Title)
}

func TestUpdateDocumentDoesNotOpenRoom(t *testing.T) {
	docs := store.NewMemoryStore()
	router, rooms := newTestRouter(t, docs, nil, nil)

	doc, err := docs.Create("u1", "Quiet doc")
	require.NoError(t, err)

	content := "edited over REST"
	rec := doJSON(t, router, "PATCH", "/api/documents/"+doc.ID, store.DocumentUpdate{Content: &content})
	require.Equal(t, http.StatusOK, rec.Code)

	// A document nobody has open must not gain a room (and its
	// goroutine) from a plain store update.
	_, ok := rooms.Lookup(doc.ID)
	assert.False(t, ok)
}

func TestRestoreVersionMatchingLatestContent(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()
	versions := version.NewStore(sqlx.NewDb(mockDB, "sqlmock"))

	docs := store.NewMemoryStore()
	router, _ := newTestRouter(t, docs, versions, nil)

	doc, err := docs.Create("u1", "Notes")
	require.NoError(t, err)
	body := "current body"
	_, err = docs.Update(doc.ID, &store.DocumentUpdate{Content: &body})
	require.NoError(t, err)

	columns := []string{"id", "document_id", "content", "version_number", "label", "created_by", "created_at"}
	getQuery := regexp.QuoteMeta(`
		SELECT id, document_id, content, version_number, label, created_by, created_at
		FROM document_versions
		WHERE id = $1
	`)
	mock.ExpectQuery(getQuery).WithArgs("v-3").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("v-3", doc.ID, "current body", 3, nil, "u1", time.Now()))
	mock.ExpectQuery("SELECT (.+) FROM document_versions").WithArgs(doc.ID).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("v-3", doc.ID, "current body", 3, nil, "u1", time.Now()))

	// Restoring the version that is already live dedups to a no-op
	// and must answer normally, not crash.
	rec := doJSON(t, router, "POST", "/api/documents/"+doc.ID+"/versions/v-3/restore",
		map[string]string{"actorId": "u1"})
	require.Equal(t, http.StatusOK, rec.Code)

	var restored version.Version
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&restored))
	assert.Equal(t, "v-3", restored.ID)
	assert.Equal(t, "current body", restored.Content)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveShareStates(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	shares := share.NewRepoWithClock(sqlx.NewDb(mockDB, "postgres"), func() time.Time { return now })
	router, _ := newTestRouter(t, store.NewMemoryStore(), nil, shares)

	// Unknown token and expired token are distinct outcomes.
	shareColumns := []string{"id", "document_id", "owner_id", "share_token", "permission", "expires_at", "created_at"}
	mock.ExpectQuery("SELECT (.+) FROM document_shares").
		WithArgs("missing-token").
		WillReturnRows(sqlmock.NewRows(shareColumns))

	rec := doJSON(t, router, "GET", "/api/share/missing-token", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "not_found")

	expired := now.Add(-time.Hour)
	mock.ExpectQuery("SELECT (.+) FROM document_shares").
		WithArgs("stale-token").
		WillReturnRows(sqlmock.NewRows(shareColumns).
			AddRow("s-1", "doc-1", "owner-1", "stale-token", "view", expired, now.Add(-2*time.Hour)))

	rec = doJSON(t, router, "GET", "/api/share/stale-token", nil)
	assert.Equal(t, http.StatusGone, rec.Code)
	assert.Contains(t, rec.Body.String(), "expired")

	assert.NoError(t, mock.ExpectationsWereMet())
}
