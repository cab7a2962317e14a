package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"docflow/internal/metrics"
	"docflow/internal/model"
	"docflow/internal/notifier"
	"docflow/internal/sanitize"
	"docflow/internal/storage"
)

// Ingest runs the upload -> insert -> notify saga for one file.
//
// Only the upload and the insert are on the caller's path. A failed upload leaves nothing
// behind. A failed insert leaves the uploaded blob in place: it is reported through
// IngestError.OrphanedKey and the orphaned blob metric, and is not compensated.
func (s *documentService) Ingest(ctx context.Context, ownerID string, f Upload) (*model.Document, error) {
	start := time.Now()
	doc, err := s.ingest(ctx, ownerID, f)
	s.metrics.ObserveIngest(outcomeOf(err), time.Since(start).Seconds())
	return doc, err
}

func (s *documentService) ingest(ctx context.Context, ownerID string, f Upload) (*model.Document, error) {
	if err := s.validate(ownerID, f); err != nil {
		return nil, &IngestError{Stage: StageValidate, FileName: f.FileName, Err: err}
	}

	key := s.storageKey(f.FileName)
	log := s.logger.With("owner_id", ownerID, "storage_path", key)

	uploadCtx, cancel := context.WithTimeout(ctx, s.uploadTimeout)
	obj, err := s.store.Put(uploadCtx, key, f.Content, storage.PutObjectOptions{
		Size:        f.Size,
		ContentType: f.ContentType,
		Metadata: map[string]string{
			"original-filename": f.FileName,
			"owner-id":          ownerID,
		},
	})
	cancel()
	if err != nil {
		log.Error("ingest_upload_failed", "error", err.Error())
		return nil, &IngestError{Stage: StageUpload, FileName: f.FileName, Err: err}
	}
	if obj.Key != "" {
		key = obj.Key
	}

	persistCtx, cancel := context.WithTimeout(ctx, s.persistTimeout)
	doc, err := s.repo.Create(persistCtx, &model.Document{
		FileName:    displayName(f.FileName),
		StoragePath: key,
		OwnerID:     ownerID,
		ContentType: f.ContentType,
		Size:        f.Size,
	})
	cancel()
	if err != nil {
		s.metrics.OrphanedBlob()
		log.Error("ingest_persist_failed", "error", err.Error(), "orphaned_blob", key)
		return nil, &IngestError{Stage: StagePersist, FileName: f.FileName, OrphanedKey: key, Err: err}
	}

	s.notifier.Notify(ctx, s.payload(doc))

	log.Info("document_ingested", "document_id", doc.ID, "size", doc.Size)
	return doc, nil
}

// IngestMany fans out one goroutine per file and collects the outcomes in input order.
func (s *documentService) IngestMany(ctx context.Context, ownerID string, files []Upload) []IngestResult {
	results := make([]IngestResult, len(files))
	var wg sync.WaitGroup
	for i, f := range files {
		wg.Add(1)
		go func(i int, f Upload) {
			defer wg.Done()
			doc, err := s.Ingest(ctx, ownerID, f)
			results[i] = IngestResult{FileName: f.FileName, Document: doc, Err: err}
		}(i, f)
	}
	wg.Wait()
	return results
}

// validate runs before any I/O.
func (s *documentService) validate(ownerID string, f Upload) error {
	in := struct {
		OwnerID string    `json:"owner_id"`
		Content io.Reader `json:"file"`
		Size    int64     `json:"size"`
	}{ownerID, f.Content, f.Size}

	err := validation.ValidateStruct(&in,
		validation.Field(&in.OwnerID, validation.Required.Error("owner id is required")),
		validation.Field(&in.Content, validation.NotNil.Error("file payload is required")),
		validation.Field(&in.Size,
			validation.Required.Error("file payload is empty"),
			validation.Min(int64(1)).Error("file payload is empty"),
		),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if f.Size > s.maxUploadSize {
		return fmt.Errorf("%w: %d bytes, limit is %d", ErrTooLarge, f.Size, s.maxUploadSize)
	}
	return nil
}

// storageKey is "{namespace}{unix millis}-{sanitized name}". The timestamp keeps keys
// unique across uploads of the same name without coordination.
func (s *documentService) storageKey(name string) string {
	return fmt.Sprintf("%s%d-%s", s.namespace, s.now().UnixMilli(), sanitize.FileName(name))
}

func (s *documentService) payload(doc *model.Document) notifier.Payload {
	p := notifier.Payload{
		DocumentID:  doc.ID,
		StoragePath: doc.StoragePath,
		FileName:    doc.FileName,
		OwnerID:     doc.OwnerID,
	}
	if u, ok := s.store.PublicURL(doc.StoragePath); ok {
		p.PublicURL = &u
	}
	return p
}

func displayName(name string) string {
	if name == "" {
		return sanitize.Fallback
	}
	return name
}

func outcomeOf(err error) string {
	ie, ok := err.(*IngestError)
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case !ok:
		return metrics.OutcomePersistenceError
	case ie.Stage == StageValidate:
		return metrics.OutcomeValidationError
	case ie.Stage == StageUpload:
		return metrics.OutcomeStorageError
	default:
		return metrics.OutcomePersistenceError
	}
}
