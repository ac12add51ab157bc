package share

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"draftpad/pkg/apperr"
)

// Permission is what a share link grants its holder.
type Permission string

const (
	PermissionView Permission = "view"
	PermissionEdit Permission = "edit"
)

// Link is a token-based grant of access to one document. A link is
// usable iff ExpiresAt is nil or in the future.
type Link struct {
	ID         string     `db:"id" json:"id"`
	DocumentID string     `db:"document_id" json:"documentId"`
	OwnerID    string     `db:"owner_id" json:"ownerId"`
	ShareToken string     `db:"share_token" json:"shareToken"`
	Permission Permission `db:"permission" json:"permission"`
	ExpiresAt  *time.Time `db:"expires_at" json:"expiresAt"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
}

// Resolution is the outcome of resolving a valid token.
type Resolution struct {
	DocumentID string     `json:"documentId"`
	Permission Permission `json:"permission"`
	ExpiresAt  *time.Time `json:"expiresAt"`
}

// Repo manages share links in PostgreSQL.
type Repo struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewRepo creates a share repository on an injected connection pool.
func NewRepo(db *sqlx.DB) *Repo {
	return &Repo{db: db, now: time.Now}
}

// NewRepoWithClock creates a repo with an injected clock, for tests.
func NewRepoWithClock(db *sqlx.DB, now func() time.Time) *Repo {
	return &Repo{db: db, now: now}
}

// Ensure returns an existing link for (document, permission) or creates
// a new one. Reusing tokens keeps previously distributed links working.
func (r *Repo) Ensure(documentID, ownerID string, permission Permission, expiresAt *time.Time) (*Link, error) {
	if documentID == "" {
		return nil, apperr.NewValidation("documentId", "must not be empty")
	}
	if ownerID == "" {
		return nil, apperr.NewValidation("ownerId", "must not be empty")
	}
	if permission != PermissionView && permission != PermissionEdit {
		return nil, apperr.NewValidation("permission", "must be view or edit")
	}

	existing := &Link{}
	query := `
		SELECT id, document_id, owner_id, share_token, permission, expires_at, created_at
		FROM document_shares
		WHERE document_id = $1 AND permission = $2
	`
	err := r.db.Get(existing, query, documentID, permission)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NewPersistence("lookup share", err)
	}

	link := &Link{
		ID:         uuid.New().String(),
		DocumentID: documentID,
		OwnerID:    ownerID,
		ShareToken: newToken(),
		Permission: permission,
		ExpiresAt:  expiresAt,
		CreatedAt:  r.now(),
	}

	insert := `
		INSERT INTO document_shares (id, document_id, owner_id, share_token, permission, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := r.db.Exec(insert, link.ID, link.DocumentID, link.OwnerID, link.ShareToken,
		link.Permission, link.ExpiresAt, link.CreatedAt); err != nil {
		return nil, apperr.NewPersistence("create share", err)
	}

	return link, nil
}

// Resolve looks up a token and checks expiry. Missing links yield
// ErrShareNotFound; expired links yield ErrShareExpired. The two are
// distinct user-facing states.
func (r *Repo) Resolve(token string) (*Resolution, error) {
	link := &Link{}
	query := `
		SELECT id, document_id, owner_id, share_token, permission, expires_at, created_at
		FROM document_shares
		WHERE share_token = $1
	`
	if err := r.db.Get(link, query, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrShareNotFound
		}
		return nil, apperr.NewPersistence("resolve share", err)
	}

	if link.ExpiresAt != nil && link.ExpiresAt.Before(r.now()) {
		return nil, apperr.ErrShareExpired
	}

	return &Resolution{
		DocumentID: link.DocumentID,
		Permission: link.Permission,
		ExpiresAt:  link.ExpiresAt,
	}, nil
}

// Revoke deletes a share link by token.
func (r *Repo) Revoke(token string) error {
	result, err := r.db.Exec(`DELETE FROM document_shares WHERE share_token = $1`, token)
	if err != nil {
		return apperr.NewPersistence("revoke share", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apperr.NewPersistence("revoke share", err)
	}
	if affected == 0 {
		return apperr.ErrShareNotFound
	}
	return nil
}

// newToken mints an unguessable URL-safe token.
func newToken() string {
	return strings.ReplaceAll(uuid.New().String()+uuid.New().String(), "-", "")
}
