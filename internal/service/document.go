package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"docflow/internal/metrics"
	"docflow/internal/model"
	"docflow/internal/notifier"
	"docflow/internal/repository"
	"docflow/internal/storage"
)

// ErrURLUnavailable means the store cannot derive a public address for the blob.
var ErrURLUnavailable = errors.New("public url unavailable")

// Upload is one user-submitted file.
type Upload struct {
	Content     io.Reader
	FileName    string
	ContentType string
	Size        int64
}

// IngestResult is the outcome of one file in a batch. Exactly one of Document and Err is set.
type IngestResult struct {
	FileName string
	Document *model.Document
	Err      error
}

// DocumentListResult is the service-level DTO for a filtered listing.
type DocumentListResult struct {
	Items []model.Document `json:"data"`
	Total int              `json:"total"`
}

// ListOptions is the caller-facing filter. Empty fields are not applied.
type ListOptions struct {
	OwnerID string
	Status  string
	Query   string
	Sort    string
	Limit   int
	Offset  int
}

// DocumentService defines the use cases for ingesting and managing documents.
type DocumentService interface {
	// Ingest uploads the blob, records its metadata as pending and notifies the
	// downstream worker without waiting for it. Failures are *IngestError.
	Ingest(ctx context.Context, ownerID string, f Upload) (*model.Document, error)

	// IngestMany ingests every file concurrently. Results are aligned to the input order
	// and one file's failure never affects another.
	IngestMany(ctx context.Context, ownerID string, files []Upload) []IngestResult

	// List returns documents matching opts. Sort defaults to newest first.
	List(ctx context.Context, opts ListOptions) (*DocumentListResult, error)

	// Get returns a single document by its ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*model.Document, error)

	// Delete removes the record and, best effort, its blob. Returns ErrNotFound if absent.
	Delete(ctx context.Context, id string) error

	// UpdateStatus moves a document forward in its lifecycle on behalf of the worker.
	UpdateStatus(ctx context.Context, id string, status model.Status) (*model.Document, error)

	// PublicURL returns a retrievable address for the blob, presigned when signed is true.
	PublicURL(ctx context.Context, id string, signed bool) (string, error)

	// Open streams the blob content. The caller closes the reader.
	Open(ctx context.Context, id string) (io.ReadCloser, *model.Document, error)
}

// documentService is a concrete implementation of DocumentService.
type documentService struct {
	store    storage.Storage
	repo     repository.DocumentRepository
	notifier notifier.Notifier

	logger         *slog.Logger
	metrics        *metrics.Metrics
	now            func() time.Time
	namespace      string
	maxUploadSize  int64
	uploadTimeout  time.Duration
	persistTimeout time.Duration
	presignExpiry  time.Duration
}

// Option configures the document service.
type Option func(*documentService)

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *documentService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records ingestion outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *documentService) { s.metrics = m }
}

// WithMaxUploadSize sets the per-file size ceiling in bytes. Default is 10 MiB.
func WithMaxUploadSize(n int64) Option {
	return func(s *documentService) {
		if n > 0 {
			s.maxUploadSize = n
		}
	}
}

// WithTimeouts bounds the blob upload and the metadata insert. Zero keeps the default.
func WithTimeouts(upload, persist time.Duration) Option {
	return func(s *documentService) {
		if upload > 0 {
			s.uploadTimeout = upload
		}
		if persist > 0 {
			s.persistTimeout = persist
		}
	}
}

// WithNamespace sets the storage key prefix. Default is "public/".
func WithNamespace(ns string) Option {
	return func(s *documentService) { s.namespace = ns }
}

// WithPresignExpiry sets the lifetime of signed URLs. Default is 15 minutes.
func WithPresignExpiry(d time.Duration) Option {
	return func(s *documentService) {
		if d > 0 {
			s.presignExpiry = d
		}
	}
}

// WithClock replaces time.Now, for deterministic storage keys in tests.
func WithClock(now func() time.Time) Option {
	return func(s *documentService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewDocumentService constructs a new DocumentService.
func NewDocumentService(store storage.Storage, repo repository.DocumentRepository, n notifier.Notifier, opts ...Option) DocumentService {
	s := &documentService{
		store:          store,
		repo:           repo,
		notifier:       n,
		logger:         slog.Default(),
		now:            time.Now,
		namespace:      "public/",
		maxUploadSize:  10 << 20,
		uploadTimeout:  30 * time.Second,
		persistTimeout: 10 * time.Second,
		presignExpiry:  15 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "document_service")
	return s
}

// Get returns a document by ID.
func (s *documentService) Get(ctx context.Context, id string) (*model.Document, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, persistenceErr(err)
	}
	return doc, nil
}

// Delete removes the blob best effort, then deletes the record. The record's absence is
// authoritative: a failed blob removal is logged and does not fail the call.
func (s *documentService) Delete(ctx context.Context, id string) error {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, doc.StoragePath); err != nil {
		s.logger.Warn("blob_delete_failed",
			"document_id", doc.ID,
			"storage_path", doc.StoragePath,
			"error", err.Error(),
		)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return persistenceErr(err)
	}
	s.logger.Info("document_deleted", "document_id", doc.ID, "owner_id", doc.OwnerID)
	return nil
}

// UpdateStatus applies a forward-only status change.
func (s *documentService) UpdateStatus(ctx context.Context, id string, status model.Status) (*model.Document, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	if status == model.StatusPending {
		return nil, fmt.Errorf("%w: cannot move back to %s", ErrInvalidTransition, status)
	}

	doc, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, persistenceErr(err)
	}
	s.logger.Info("document_status_changed", "document_id", doc.ID, "status", string(doc.Status))
	return doc, nil
}

// PublicURL resolves the public address of a document's blob, or a presigned one.
func (s *documentService) PublicURL(ctx context.Context, id string, signed bool) (string, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if signed {
		u, err := s.store.PresignGet(ctx, doc.StoragePath, s.presignExpiry)
		if err != nil {
			return "", fmt.Errorf("presign %s: %w", doc.StoragePath, err)
		}
		return u, nil
	}
	u, ok := s.store.PublicURL(doc.StoragePath)
	if !ok {
		return "", ErrURLUnavailable
	}
	return u, nil
}

// Open streams a document's blob.
func (s *documentService) Open(ctx context.Context, id string) (io.ReadCloser, *model.Document, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rc, _, err := s.store.Get(ctx, doc.StoragePath)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, nil, fmt.Errorf("%w: blob %s is missing", ErrNotFound, doc.StoragePath)
		}
		return nil, nil, fmt.Errorf("open %s: %w", doc.StoragePath, err)
	}
	return rc, doc, nil
}

// checkID short-circuits ids that cannot exist. The store only issues UUIDs, so any
// other non-empty id is reported as not found without a query.
func checkID(id string) error {
	if id == "" {
		return ErrIDRequired
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: no document with id %q", ErrNotFound, id)
	}
	return nil
}

// persistenceErr tags unexpected repository failures. Domain outcomes pass through.
func persistenceErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrInvalidTransition) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}
