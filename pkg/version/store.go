package version

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"draftpad/pkg/apperr"
)

// RetentionCap bounds the number of versions kept per document. Oldest
// entries are evicted first. Documented lossy policy, not a bug.
const RetentionCap = 50

// DefaultPageSize is the page size for version listings.
const DefaultPageSize = 20

// Version is one immutable snapshot of a document's content.
type Version struct {
	ID            string    `db:"id" json:"id"`
	DocumentID    string    `db:"document_id" json:"documentId"`
	Content       string    `db:"content" json:"content"`
	VersionNumber int       `db:"version_number" json:"versionNumber"`
	Label         *string   `db:"label" json:"label"`
	CreatedBy     string    `db:"created_by" json:"createdBy"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

// Summary is a version without its content, to bound listing payloads.
type Summary struct {
	ID            string    `db:"id" json:"id"`
	DocumentID    string    `db:"document_id" json:"documentId"`
	VersionNumber int       `db:"version_number" json:"versionNumber"`
	Label         *string   `db:"label" json:"label"`
	CreatedBy     string    `db:"created_by" json:"createdBy"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

// Page is one page of version summaries, newest first.
type Page struct {
	Versions []Summary `json:"versions"`
	HasMore  bool      `json:"hasMore"`
}

// Store is the append-only version log, backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

// NewStore creates a version store on an injected connection pool.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// CreateSnapshot appends a new version for the document, assigning the
// next monotonic version number. Returns (nil, nil) when content is
// byte-identical to the current newest version, so idle autosnapshot
// ticks never bloat the log.
func (s *Store) CreateSnapshot(documentID, content, authorID string, label *string) (*Version, error) {
	if documentID == "" {
		return nil, apperr.NewValidation("documentId", "must not be empty")
	}
	if authorID == "" {
		return nil, apperr.NewValidation("authorId", "must not be empty")
	}

	latest, err := s.latest(documentID)
	if err != nil {
		return nil, err
	}

	nextNumber := 1
	if latest != nil {
		if latest.Content == content {
			return nil, nil
		}
		nextNumber = latest.VersionNumber + 1
	}

	v := &Version{
		ID:            uuid.New().String(),
		DocumentID:    documentID,
		Content:       content,
		VersionNumber: nextNumber,
		Label:         label,
		CreatedBy:     authorID,
		CreatedAt:     time.Now(),
	}
	query := `
		INSERT INTO document_versions (id, document_id, content, version_number, label, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := s.db.Exec(query, v.ID, v.DocumentID, v.Content, v.VersionNumber, v.Label, v.CreatedBy, v.CreatedAt); err != nil {
		return nil, apperr.NewPersistence("create snapshot", err)
	}

	if err := s.evictBeyondCap(documentID); err != nil {
		// Retention is best effort; the snapshot itself already landed.
		log.Printf("[Versions] retention eviction failed for doc %s: %v", documentID, err)
	}

	log.Printf("[Versions] saved v%d for doc %s", nextNumber, documentID)
	return v, nil
}

// ListVersions returns one page of summaries, newest first. It probes
// one row past the page to compute HasMore without a second count query.
func (s *Store) ListVersions(documentID string, page, pageSize int) (*Page, error) {
	if page < 0 {
		page = 0
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}

	query := `
		SELECT id, document_id, version_number, label, created_by, created_at
		FROM document_versions
		WHERE document_id = $1
		ORDER BY version_number DESC
		LIMIT $2 OFFSET $3
	`

	summaries := []Summary{}
	if err := s.db.Select(&summaries, query, documentID, pageSize+1, page*pageSize); err != nil {
		return nil, apperr.NewPersistence("list versions", err)
	}

	hasMore := len(summaries) > pageSize
	if hasMore {
		summaries = summaries[:pageSize]
	}

	return &Page{Versions: summaries, HasMore: hasMore}, nil
}

// GetVersionContent fetches a full version by id, across all documents.
func (s *Store) GetVersionContent(versionID string) (*Version, error) {
	query := `
		SELECT id, document_id, content, version_number, label, created_by, created_at
		FROM document_versions
		WHERE id = $1
	`

	v := &Version{}
	if err := s.db.Get(v, query, versionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrVersionNotFound
		}
		return nil, apperr.NewPersistence("get version", err)
	}

	return v, nil
}

// RestoreVersion appends a new snapshot carrying the target version's
// content, labelled "Restored from v<N>". History is never deleted or
// mutated; making the restored content live is the caller's job.
// Restoring a version whose content already matches the newest snapshot
// is a no-op: the target version itself is returned and nothing is
// appended.
func (s *Store) RestoreVersion(documentID, versionID, actorID string) (*Version, error) {
	target, err := s.GetVersionContent(versionID)
	if err != nil {
		return nil, err
	}

	label := fmt.Sprintf("Restored from v%d", target.VersionNumber)
	snap, err := s.CreateSnapshot(documentID, target.Content, actorID, &label)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return target, nil
	}
	return snap, nil
}

func (s *Store) latest(documentID string) (*Version, error) {
	query := `
		SELECT id, document_id, content, version_number, label, created_by, created_at
		FROM document_versions
		WHERE document_id = $1
		ORDER BY version_number DESC
		LIMIT 1
	`

	v := &Version{}
	if err := s.db.Get(v, query, documentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperr.NewPersistence("get latest version", err)
	}

	return v, nil
}

func (s *Store) evictBeyondCap(documentID string) error {
	query := `
		DELETE FROM document_versions
		WHERE document_id = $1
		  AND id NOT IN (
			SELECT id FROM document_versions
			WHERE document_id = $1
			ORDER BY version_number DESC
			LIMIT $2
		  )
	`
	_, err := s.db.Exec(query, documentID, RetentionCap)
	return err
}
