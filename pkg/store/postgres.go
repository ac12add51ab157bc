package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"draftpad/pkg/apperr"
)

// PostgresDocumentStore implements IDocumentStore using PostgreSQL.
type PostgresDocumentStore struct {
	db *sqlx.DB
}

// NewPostgresDocumentStore opens a connection and bootstraps the schema.
func NewPostgresDocumentStore(connStr string) (*PostgresDocumentStore, error) {
	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgresDocumentStore{db: db}

	if err := store.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return store, nil
}

// NewPostgresDocumentStoreWithDB wraps an existing connection. Used by
// tests and by the other repositories sharing the pool.
func NewPostgresDocumentStoreWithDB(db *sqlx.DB) *PostgresDocumentStore {
	return &PostgresDocumentStore{db: db}
}

// DB exposes the underlying pool so version and share repositories can
// share one injected connection (no ambient singleton).
func (s *PostgresDocumentStore) DB() *sqlx.DB {
	return s.db
}

// Close closes the database connection.
func (s *PostgresDocumentStore) Close() error {
	return s.db.Close()
}

func (s *PostgresDocumentStore) Create(ownerID, title string) (*Document, error) {
	if ownerID == "" {
		return nil, apperr.NewValidation("ownerId", "must not be empty")
	}
	if title == "" {
		title = "Untitled"
	}

	id := uuid.New().String()
	now := time.Now()

	query := `
		INSERT INTO documents (id, title, content, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, title, content, owner_id, created_at, updated_at
	`

	doc := &Document{}
	if err := s.db.Get(doc, query, id, title, "", ownerID, now, now); err != nil {
		return nil, apperr.NewPersistence("create document", err)
	}

	return doc, nil
}

func (s *PostgresDocumentStore) Get(id string) (*Document, error) {
	query := `
		SELECT id, title, content, owner_id, created_at, updated_at
		FROM documents
		WHERE id = $1
	`

	doc := &Document{}
	if err := s.db.Get(doc, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrDocumentNotFound
		}
		return nil, apperr.NewPersistence("get document", err)
	}

	return doc, nil
}

func (s *PostgresDocumentStore) Update(id string, updates *DocumentUpdate) (*Document, error) {
	// Build dynamic SET clauses for provided fields.
	sets := []string{}
	args := []interface{}{}
	argPos := 1

	if updates.Title != nil {
		sets = append(sets, fmt.Sprintf("title = $%d", argPos))
		args = append(args, *updates.Title)
		argPos++
	}
	if updates.Content != nil {
		sets = append(sets, fmt.Sprintf("content = $%d", argPos))
		args = append(args, *updates.Content)
		argPos++
	}

	if len(sets) == 0 {
		return s.Get(id)
	}

	sets = append(sets, fmt.Sprintf("updated_at = $%d", argPos))
	args = append(args, time.Now())
	argPos++

	args = append(args, id)

	query := fmt.Sprintf(`
		UPDATE documents
		SET %s
		WHERE id = $%d
		RETURNING id, title, content, owner_id, created_at, updated_at
	`, strings.Join(sets, ", "), argPos)

	doc := &Document{}
	if err := s.db.Get(doc, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrDocumentNotFound
		}
		return nil, apperr.NewPersistence("update document", err)
	}

	return doc, nil
}

func (s *PostgresDocumentStore) Rename(id, newTitle string) error {
	trimmed := strings.TrimSpace(newTitle)
	if trimmed == "" {
		return apperr.NewValidation("title", "must not be empty")
	}

	_, err := s.Update(id, &DocumentUpdate{Title: &trimmed})
	return err
}

func (s *PostgresDocumentStore) Delete(id string) error {
	// Shares and versions cascade via foreign keys (see migration.go).
	result, err := s.db.Exec(`DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return apperr.NewPersistence("delete document", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperr.NewPersistence("delete document", err)
	}
	if rowsAffected == 0 {
		return apperr.ErrDocumentNotFound
	}

	return nil
}

func (s *PostgresDocumentStore) ListByOwner(ownerID string) ([]DocumentSummary, error) {
	query := `
		SELECT id, title, updated_at
		FROM documents
		WHERE owner_id = $1
		ORDER BY updated_at DESC
	`

	summaries := []DocumentSummary{}
	if err := s.db.Select(&summaries, query, ownerID); err != nil {
		return nil, apperr.NewPersistence("list documents", err)
	}

	return summaries, nil
}

func (s *PostgresDocumentStore) Search(ownerID, query string) ([]DocumentSummary, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return s.ListByOwner(ownerID)
	}

	pattern := "%" + trimmed + "%"
	sqlQuery := `
		SELECT id, title, updated_at
		FROM documents
		WHERE owner_id = $1 AND (title ILIKE $2 OR content ILIKE $2)
		ORDER BY updated_at DESC
		LIMIT 20
	`

	summaries := []DocumentSummary{}
	if err := s.db.Select(&summaries, sqlQuery, ownerID, pattern); err != nil {
		return nil, apperr.NewPersistence("search documents", err)
	}

	return summaries, nil
}

// sortColumns maps each SortOption to its ORDER BY clause. Values are
// fixed strings, never user input.
var sortColumns = map[SortOption]string{
	SortUpdatedDesc: "updated_at DESC",
	SortUpdatedAsc:  "updated_at ASC",
	SortTitleAsc:    "title ASC",
	SortTitleDesc:   "title DESC",
}

func (s *PostgresDocumentStore) ListPaginated(ownerID string, sort SortOption, page, pageSize int) (*PaginatedDocuments, error) {
	orderBy, ok := sortColumns[sort]
	if !ok {
		orderBy = sortColumns[SortUpdatedDesc]
	}
	if page < 0 {
		page = 0
	}
	if pageSize < 1 {
		pageSize = 10
	}

	var total int
	if err := s.db.Get(&total, `SELECT COUNT(*) FROM documents WHERE owner_id = $1`, ownerID); err != nil {
		return nil, apperr.NewPersistence("count documents", err)
	}

	query := fmt.Sprintf(`
		SELECT id, title, updated_at
		FROM documents
		WHERE owner_id = $1
		ORDER BY %s
		LIMIT $2 OFFSET $3
	`, orderBy)

	summaries := []DocumentSummary{}
	if err := s.db.Select(&summaries, query, ownerID, pageSize, page*pageSize); err != nil {
		return nil, apperr.NewPersistence("list documents", err)
	}

	totalPages := (total + pageSize - 1) / pageSize

	return &PaginatedDocuments{
		Documents:  summaries,
		Total:      total,
		Page:       page,
		TotalPages: totalPages,
	}, nil
}

// Compile-time check that PostgresDocumentStore implements IDocumentStore.
var _ IDocumentStore = (*PostgresDocumentStore)(nil)
