package repository

import (
	"context"

	"docflow/internal/model"
)

// DocumentRepository owns the Document record lifecycle using SQL queries only.
// Persistence only; no business rules.
type DocumentRepository interface {
	// Create inserts a new document record. ID, Status and UploadedAt on doc are ignored:
	// the store assigns the id and timestamp, and every new record starts as pending.
	// Returns the stored document.
	Create(ctx context.Context, doc *model.Document) (*model.Document, error)

	// FindByID returns a document by its ID, or ErrNotFound.
	FindByID(ctx context.Context, id string) (*model.Document, error)

	// List returns the documents matching the filter, ordered by its sort key.
	List(ctx context.Context, f DocumentFilter) (*PageResult[model.Document], error)

	// UpdateStatus moves a document forward in its lifecycle.
	// Returns ErrNotFound for a missing id and ErrInvalidTransition for a backward or repeated move.
	UpdateStatus(ctx context.Context, id string, status model.Status) (*model.Document, error)

	// Delete removes a document row by ID. It returns ErrNotFound if no row existed.
	Delete(ctx context.Context, id string) error
}

// SortOrder names a recognized ordering for List.
type SortOrder string

const (
	SortUploadedDesc SortOrder = "uploaded_desc"
	SortUploadedAsc  SortOrder = "uploaded_asc"
	SortNameAsc      SortOrder = "name_asc"
	SortNameDesc     SortOrder = "name_desc"
)

// Valid reports whether s is a recognized sort order.
func (s SortOrder) Valid() bool {
	switch s {
	case SortUploadedDesc, SortUploadedAsc, SortNameAsc, SortNameDesc:
		return true
	}
	return false
}

// DocumentFilter configures List. Zero-valued fields are not applied.
// Ties on the sort key are broken by insertion order.
type DocumentFilter struct {
	OwnerID string
	Status  model.Status
	// Query is a case-insensitive substring match against the file name.
	Query string
	Sort  SortOrder
	Page  PageQuery
}

// PageQuery holds limit/offset pagination parameters. A zero Limit returns every match.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}
