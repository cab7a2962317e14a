package model

import "time"

// Document represents an ingested file and its processing state.
// This is a pure domain model with no database-specific dependencies or tags.
// It can be used across layers (HTTP, service, storage) without coupling to persistence.
type Document struct {
	ID          string     `json:"id"`
	FileName    string     `json:"file_name"`
	StoragePath string     `json:"storage_path"`
	OwnerID     string     `json:"owner_id"`
	Status      Status     `json:"status"`
	ContentType string     `json:"content_type"`
	Size        int64      `json:"size"`
	UploadedAt  time.Time  `json:"uploaded_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}
