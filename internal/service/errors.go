package service

import (
	"errors"
	"fmt"

	"docflow/internal/repository"
)

var (
	// ErrValidation marks caller input that is malformed, missing or oversized.
	ErrValidation = errors.New("validation failed")
	// ErrTooLarge is the ErrValidation raised for payloads above the size ceiling.
	ErrTooLarge = fmt.Errorf("%w: payload exceeds the upload size limit", ErrValidation)
	// ErrStorageWrite marks a rejected or failed blob write. Nothing was persisted.
	ErrStorageWrite = errors.New("storage write failed")
	// ErrPersistence marks a failed metadata read or write.
	ErrPersistence = errors.New("persistence failed")

	ErrIDRequired        = fmt.Errorf("%w: id is required", ErrValidation)
	ErrNotFound          = repository.ErrNotFound
	ErrInvalidTransition = repository.ErrInvalidTransition
)

// Stage names the ingestion step that failed.
type Stage string

const (
	StageValidate Stage = "validate"
	StageUpload   Stage = "upload"
	StagePersist  Stage = "persist"
)

// IngestError is returned by Ingest for any failed step.
// errors.Is matches both the stage sentinel (ErrValidation, ErrStorageWrite, ErrPersistence)
// and the underlying cause.
type IngestError struct {
	Stage    Stage
	FileName string
	// OrphanedKey is the storage key of a blob that was uploaded but never recorded.
	// It is only set for StagePersist.
	OrphanedKey string
	Err         error
}

func (e *IngestError) Error() string {
	msg := fmt.Sprintf("ingest %q: %s: %v", e.FileName, e.Stage, e.Err)
	if e.OrphanedKey != "" {
		msg += fmt.Sprintf(" (orphaned blob %s)", e.OrphanedKey)
	}
	return msg
}

func (e *IngestError) Unwrap() []error {
	return []error{e.sentinel(), e.Err}
}

func (e *IngestError) sentinel() error {
	switch e.Stage {
	case StageValidate:
		return ErrValidation
	case StageUpload:
		return ErrStorageWrite
	default:
		return ErrPersistence
	}
}
