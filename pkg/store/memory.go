package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"draftpad/pkg/apperr"
)

// MemoryStore is an in-memory IDocumentStore for tests and local
// development. Semantics mirror the Postgres implementation.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]*Document
}

// NewMemoryStore creates an empty in-memory document store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]*Document)}
}

func (s *MemoryStore) Create(ownerID, title string) (*Document, error) {
	if ownerID == "" {
		return nil, apperr.NewValidation("ownerId", "must not be empty")
	}
	if title == "" {
		title = "Untitled"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	doc := &Document{
		ID:        uuid.New().String(),
		Title:     title,
		Content:   "",
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.docs[doc.ID] = doc

	copied := *doc
	return &copied, nil
}

func (s *MemoryStore) Get(id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, apperr.ErrDocumentNotFound
	}
	copied := *doc
	return &copied, nil
}

func (s *MemoryStore) Update(id string, updates *DocumentUpdate) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, apperr.ErrDocumentNotFound
	}

	if updates.Title != nil {
		doc.Title = *updates.Title
	}
	if updates.Content != nil {
		doc.Content = *updates.Content
	}
	if updates.Title != nil || updates.Content != nil {
		doc.UpdatedAt = time.Now()
	}

	copied := *doc
	return &copied, nil
}

func (s *MemoryStore) Rename(id, newTitle string) error {
	trimmed := strings.TrimSpace(newTitle)
	if trimmed == "" {
		return apperr.NewValidation("title", "must not be empty")
	}
	_, err := s.Update(id, &DocumentUpdate{Title: &trimmed})
	return err
}

func (s *MemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[id]; !ok {
		return apperr.ErrDocumentNotFound
	}
	delete(s.docs, id)
	return nil
}

func (s *MemoryStore) ListByOwner(ownerID string) ([]DocumentSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := s.ownedLocked(ownerID)
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}

func (s *MemoryStore) Search(ownerID, query string) ([]DocumentSummary, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return s.ListByOwner(ownerID)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(trimmed)
	summaries := []DocumentSummary{}
	for _, doc := range s.docs {
		if doc.OwnerID != ownerID {
			continue
		}
		if strings.Contains(strings.ToLower(doc.Title), needle) ||
			strings.Contains(strings.ToLower(doc.Content), needle) {
			summaries = append(summaries, DocumentSummary{ID: doc.ID, Title: doc.Title, UpdatedAt: doc.UpdatedAt})
		}
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	if len(summaries) > 20 {
		summaries = summaries[:20]
	}
	return summaries, nil
}

func (s *MemoryStore) ListPaginated(ownerID string, sortOpt SortOption, page, pageSize int) (*PaginatedDocuments, error) {
	if page < 0 {
		page = 0
	}
	if pageSize < 1 {
		pageSize = 10
	}

	s.mu.RLock()
	summaries := s.ownedLocked(ownerID)
	s.mu.RUnlock()

	switch sortOpt {
	case SortUpdatedAsc:
		sort.Slice(summaries, func(i, j int) bool { return summaries[i].UpdatedAt.Before(summaries[j].UpdatedAt) })
	case SortTitleAsc:
		sort.Slice(summaries, func(i, j int) bool { return summaries[i].Title < summaries[j].Title })
	case SortTitleDesc:
		sort.Slice(summaries, func(i, j int) bool { return summaries[i].Title > summaries[j].Title })
	default:
		sort.Slice(summaries, func(i, j int) bool { return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt) })
	}

	total := len(summaries)
	start := page * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	return &PaginatedDocuments{
		Documents:  summaries[start:end],
		Total:      total,
		Page:       page,
		TotalPages: (total + pageSize - 1) / pageSize,
	}, nil
}

func (s *MemoryStore) ownedLocked(ownerID string) []DocumentSummary {
	summaries := []DocumentSummary{}
	for _, doc := range s.docs {
		if doc.OwnerID == ownerID {
			summaries = append(summaries, DocumentSummary{ID: doc.ID, Title: doc.Title, UpdatedAt: doc.UpdatedAt})
		}
	}
	return summaries
}

var _ IDocumentStore = (*MemoryStore)(nil)
