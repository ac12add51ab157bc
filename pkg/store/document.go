package store

import "time"

// Document is the single mutable text blob the editor works on. The
// owner is the only principal allowed to trigger durable autosave.
type Document struct {
	ID        string    `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	Content   string    `db:"content" json:"content"`
	OwnerID   string    `db:"owner_id" json:"ownerId"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// DocumentSummary is the listing payload: metadata without content.
type DocumentSummary struct {
	ID        string    `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// SortOption orders paginated document listings.
type SortOption string

const (
	SortUpdatedDesc SortOption = "updated_desc"
	SortUpdatedAsc  SortOption = "updated_asc"
	SortTitleAsc    SortOption = "title_asc"
	SortTitleDesc   SortOption = "title_desc"
)

// PaginatedDocuments is one page of summaries plus paging totals.
type PaginatedDocuments struct {
	Documents  []DocumentSummary `json:"documents"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	TotalPages int               `json:"totalPages"`
}

// DocumentUpdate represents partial updates to a document. Pointer fields
// allow distinguishing between "not provided" (nil) and "set to empty".
type DocumentUpdate struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
}

// IDocumentStore is the minimal CRUD contract the core depends on.
type IDocumentStore interface {
	Create(ownerID, title string) (*Document, error)
	Get(id string) (*Document, error)
	// Update applies partial updates and bumps updated_at.
	Update(id string, updates *DocumentUpdate) (*Document, error)
	Rename(id, newTitle string) error
	Delete(id string) error
	ListByOwner(ownerID string) ([]DocumentSummary, error)
	Search(ownerID, query string) ([]DocumentSummary, error)
	ListPaginated(ownerID string, sort SortOption, page, pageSize int) (*PaginatedDocuments, error)
}
