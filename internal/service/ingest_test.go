package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"docflow/internal/config"
	"docflow/internal/logging"
	"docflow/internal/metrics"
	"docflow/internal/model"
	"docflow/internal/notifier"
	notifierMocks "docflow/internal/notifier/mocks"
	repoMocks "docflow/internal/repository/mocks"
	"docflow/internal/storage"
	storeMocks "docflow/internal/storage/mocks"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.UnixMilli(1700000000000).UTC()

func fixedClock() time.Time { return fixedNow }

// echoPut makes the storage mock report the key it was given.
func echoPut(_ context.Context, key string, _ io.Reader, opt storage.PutObjectOptions) storage.ObjectInfo {
	return storage.ObjectInfo{Key: key, Size: opt.Size, ContentType: opt.ContentType}
}

// storedDoc makes the repository mock assign an id and the pending status.
func storedDoc(doc *model.Document) *model.Document {
	out := *doc
	out.ID = docID
	out.Status = model.StatusPending
	out.UploadedAt = fixedNow
	return &out
}

func upload(name string, body string) Upload {
	return Upload{
		Content:     strings.NewReader(body),
		FileName:    name,
		ContentType: "application/pdf",
		Size:        int64(len(body)),
	}
}

func TestDocumentService_Ingest(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		ownerID    string
		file       Upload
		setupMocks func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository, mNotify *notifierMocks.MockNotifier)
		wantErr    error
		check      func(t *testing.T, doc *model.Document, err error)
	}{
		{
			name:    "happy path",
			ownerID: "user-1",
			file:    upload("café límite!!.pdf", "hello world"),
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository, mNotify *notifierMocks.MockNotifier) {
				mStore.On("Put", mock.Anything, "public/1700000000000-cafe-limite-.pdf", mock.Anything, storage.PutObjectOptions{
					Size:        11,
					ContentType: "application/pdf",
					Metadata: map[string]string{
						"original-filename": "café límite!!.pdf",
						"owner-id":          "user-1",
					},
				}).Return(echoPut, nil)
				mRepo.On("Create", mock.Anything, mock.MatchedBy(func(doc *model.Document) bool {
					return doc.FileName == "café límite!!.pdf" &&
						doc.StoragePath == "public/1700000000000-cafe-limite-.pdf" &&
						doc.OwnerID == "user-1" && doc.Size == 11
				})).Return(storedDoc, nil)
				mStore.On("PublicURL", "public/1700000000000-cafe-limite-.pdf").
					Return("http://minio.local/documents/public/1700000000000-cafe-limite-.pdf", true)
				mNotify.On("Notify", mock.Anything, mock.MatchedBy(func(p notifier.Payload) bool {
					return p.DocumentID == docID && p.OwnerID == "user-1" &&
						p.FileName == "café límite!!.pdf" &&
						p.StoragePath == "public/1700000000000-cafe-limite-.pdf" &&
						p.PublicURL != nil
				})).Return()
			},
			check: func(t *testing.T, doc *model.Document, err error) {
				require.NoError(t, err)
				assert.Equal(t, docID, doc.ID)
				assert.Equal(t, model.StatusPending, doc.Status)
				assert.Contains(t, doc.StoragePath, "cafe-limite-.pdf")
			},
		},
		{
			name:    "missing public url degrades to null",
			ownerID: "user-1",
			file:    upload("a.txt", "abc"),
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository, mNotify *notifierMocks.MockNotifier) {
				mStore.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(echoPut, nil)
				mRepo.On("Create", mock.Anything, mock.Anything).Return(storedDoc, nil)
				mStore.On("PublicURL", mock.Anything).Return("", false)
				mNotify.On("Notify", mock.Anything, mock.MatchedBy(func(p notifier.Payload) bool {
					return p.PublicURL == nil
				})).Return()
			},
			check: func(t *testing.T, doc *model.Document, err error) {
				require.NoError(t, err)
				assert.Equal(t, model.StatusPending, doc.Status)
			},
		},
		{
			name:    "empty file name falls back to placeholder",
			ownerID: "user-1",
			file:    upload("", "abc"),
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository, mNotify *notifierMocks.MockNotifier) {
				mStore.On("Put", mock.Anything, "public/1700000000000-file", mock.Anything, mock.Anything).Return(echoPut, nil)
				mRepo.On("Create", mock.Anything, mock.MatchedBy(func(doc *model.Document) bool {
					return doc.FileName == "file"
				})).Return(storedDoc, nil)
				mStore.On("PublicURL", mock.Anything).Return("", false)
				mNotify.On("Notify", mock.Anything, mock.Anything).Return()
			},
			check: func(t *testing.T, doc *model.Document, err error) {
				require.NoError(t, err)
				assert.Equal(t, "public/1700000000000-file", doc.StoragePath)
			},
		},
		{
			name:    "control characters in the name still ingest",
			ownerID: "user-1",
			file:    upload("a\nb.pdf", "abc"),
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository, mNotify *notifierMocks.MockNotifier) {
				mStore.On("Put", mock.Anything, "public/1700000000000-a-b.pdf", mock.Anything, mock.MatchedBy(func(opt storage.PutObjectOptions) bool {
					return opt.Metadata["original-filename"] == "a\nb.pdf"
				})).Return(echoPut, nil)
				mRepo.On("Create", mock.Anything, mock.MatchedBy(func(doc *model.Document) bool {
					return doc.FileName == "a\nb.pdf" && doc.StoragePath == "public/1700000000000-a-b.pdf"
				})).Return(storedDoc, nil)
				mStore.On("PublicURL", mock.Anything).Return("", false)
				mNotify.On("Notify", mock.Anything, mock.Anything).Return()
			},
			check: func(t *testing.T, doc *model.Document, err error) {
				require.NoError(t, err)
				assert.Equal(t, model.StatusPending, doc.Status)
				assert.Equal(t, "public/1700000000000-a-b.pdf", doc.StoragePath)
			},
		},
		{
			name:       "validation error - nil payload",
			ownerID:    "user-1",
			file:       Upload{FileName: "a.pdf", Size: 3},
			setupMocks: func(*storeMocks.MockStorage, *repoMocks.MockDocumentRepository, *notifierMocks.MockNotifier) {},
			wantErr:    ErrValidation,
		},
		{
			name:       "validation error - empty payload",
			ownerID:    "user-1",
			file:       upload("a.pdf", ""),
			setupMocks: func(*storeMocks.MockStorage, *repoMocks.MockDocumentRepository, *notifierMocks.MockNotifier) {},
			wantErr:    ErrValidation,
		},
		{
			name:       "validation error - missing owner",
			ownerID:    "",
			file:       upload("a.pdf", "abc"),
			setupMocks: func(*storeMocks.MockStorage, *repoMocks.MockDocumentRepository, *notifierMocks.MockNotifier) {},
			wantErr:    ErrValidation,
		},
		{
			name:    "storage error creates no row and sends nothing",
			ownerID: "user-1",
			file:    upload("a.pdf", "abc"),
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository, mNotify *notifierMocks.MockNotifier) {
				mStore.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
					Return(storage.ObjectInfo{}, errors.New("access denied"))
			},
			wantErr: ErrStorageWrite,
			check: func(t *testing.T, doc *model.Document, err error) {
				var ie *IngestError
				require.ErrorAs(t, err, &ie)
				assert.Equal(t, StageUpload, ie.Stage)
				assert.Empty(t, ie.OrphanedKey)
				assert.Contains(t, err.Error(), "access denied")
			},
		},
		{
			name:    "repository error leaves an orphaned blob",
			ownerID: "user-1",
			file:    upload("a.pdf", "abc"),
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockDocumentRepository, mNotify *notifierMocks.MockNotifier) {
				mStore.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(echoPut, nil)
				mRepo.On("Create", mock.Anything, mock.Anything).Return(nil, errors.New("db fail"))
			},
			wantErr: ErrPersistence,
			check: func(t *testing.T, doc *model.Document, err error) {
				var ie *IngestError
				require.ErrorAs(t, err, &ie)
				assert.Equal(t, StagePersist, ie.Stage)
				assert.Equal(t, "public/1700000000000-a.pdf", ie.OrphanedKey)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mStore := new(storeMocks.MockStorage)
			mRepo := new(repoMocks.MockDocumentRepository)
			mNotify := new(notifierMocks.MockNotifier)
			svc := NewDocumentService(mStore, mRepo, mNotify, WithLogger(logging.Discard()), WithClock(fixedClock))

			tt.setupMocks(mStore, mRepo, mNotify)

			doc, err := svc.Ingest(ctx, tt.ownerID, tt.file)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, doc)
			}
			if tt.check != nil {
				tt.check(t, doc, err)
			}
			if err != nil {
				mNotify.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
			}
			mStore.AssertExpectations(t)
			mRepo.AssertExpectations(t)
			mNotify.AssertExpectations(t)
		})
	}
}

func TestDocumentService_Ingest_SizeCeiling(t *testing.T) {
	ctx := context.Background()
	const limit = 10 << 20

	t.Run("one byte over is rejected before any I/O", func(t *testing.T) {
		mStore := new(storeMocks.MockStorage)
		mRepo := new(repoMocks.MockDocumentRepository)
		mNotify := new(notifierMocks.MockNotifier)
		svc := NewDocumentService(mStore, mRepo, mNotify, WithLogger(logging.Discard()), WithMaxUploadSize(limit))

		doc, err := svc.Ingest(ctx, "user-1", Upload{
			Content:  bytes.NewReader(make([]byte, limit+1)),
			FileName: "big.bin",
			Size:     limit + 1,
		})

		assert.Nil(t, doc)
		assert.ErrorIs(t, err, ErrTooLarge)
		assert.ErrorIs(t, err, ErrValidation)
		mStore.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		mRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		mNotify.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
	})

	t.Run("exactly at the limit is accepted", func(t *testing.T) {
		mStore := new(storeMocks.MockStorage)
		mRepo := new(repoMocks.MockDocumentRepository)
		mNotify := new(notifierMocks.MockNotifier)
		svc := NewDocumentService(mStore, mRepo, mNotify, WithLogger(logging.Discard()), WithMaxUploadSize(limit))

		mStore.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(echoPut, nil)
		mRepo.On("Create", mock.Anything, mock.Anything).Return(storedDoc, nil)
		mStore.On("PublicURL", mock.Anything).Return("", false)
		mNotify.On("Notify", mock.Anything, mock.Anything).Return()

		doc, err := svc.Ingest(ctx, "user-1", Upload{
			Content:  bytes.NewReader(make([]byte, limit)),
			FileName: "edge.bin",
			Size:     limit,
		})

		require.NoError(t, err)
		assert.Equal(t, int64(limit), doc.Size)
	})
}

func TestDocumentService_Ingest_Timeouts(t *testing.T) {
	mStore := new(storeMocks.MockStorage)
	mRepo := new(repoMocks.MockDocumentRepository)
	svc := NewDocumentService(mStore, mRepo, new(notifierMocks.MockNotifier),
		WithLogger(logging.Discard()),
		WithTimeouts(50*time.Millisecond, 50*time.Millisecond),
	)

	mStore.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(storage.ObjectInfo{}, context.DeadlineExceeded)

	_, err := svc.Ingest(context.Background(), "user-1", upload("slow.pdf", "abc"))

	assert.ErrorIs(t, err, ErrStorageWrite)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	mRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestDocumentService_Ingest_UnreachableNotifier(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	n, err := notifier.New(config.NotifierConfig{WebhookURL: endpoint, TimeoutSec: 1, PoolSize: 2}, logging.Discard(), m)
	require.NoError(t, err)

	mStore := new(storeMocks.MockStorage)
	mRepo := new(repoMocks.MockDocumentRepository)
	mStore.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(echoPut, nil)
	mRepo.On("Create", mock.Anything, mock.Anything).Return(storedDoc, nil)
	mStore.On("PublicURL", mock.Anything).Return("", false)

	svc := NewDocumentService(mStore, mRepo, n, WithLogger(logging.Discard()), WithMetrics(m))

	doc, err := svc.Ingest(context.Background(), "user-1", upload("a.pdf", "abc"))

	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, doc.Status)
	assert.NoError(t, n.Release(3*time.Second))
}

func TestDocumentService_IngestMany(t *testing.T) {
	ctx := context.Background()
	const limit = 1024

	mStore := new(storeMocks.MockStorage)
	mRepo := new(repoMocks.MockDocumentRepository)
	mNotify := new(notifierMocks.MockNotifier)
	svc := NewDocumentService(mStore, mRepo, mNotify, WithLogger(logging.Discard()), WithMaxUploadSize(limit))

	var mu sync.Mutex
	var created []string
	mStore.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(echoPut, nil)
	mRepo.On("Create", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			mu.Lock()
			defer mu.Unlock()
			created = append(created, args.Get(1).(*model.Document).FileName)
		}).
		Return(storedDoc, nil)
	mStore.On("PublicURL", mock.Anything).Return("", false)
	mNotify.On("Notify", mock.Anything, mock.Anything).Return()

	results := svc.IngestMany(ctx, "user-1", []Upload{
		upload("first.pdf", "one"),
		{Content: bytes.NewReader(make([]byte, limit+1)), FileName: "second.pdf", Size: limit + 1},
		upload("third.pdf", "three"),
	})

	require.Len(t, results, 3)

	assert.Equal(t, "first.pdf", results[0].FileName)
	assert.NoError(t, results[0].Err)
	require.NotNil(t, results[0].Document)
	assert.Equal(t, "first.pdf", results[0].Document.FileName)

	assert.Equal(t, "second.pdf", results[1].FileName)
	assert.Nil(t, results[1].Document)
	assert.ErrorIs(t, results[1].Err, ErrValidation)

	assert.Equal(t, "third.pdf", results[2].FileName)
	assert.NoError(t, results[2].Err)
	require.NotNil(t, results[2].Document)
	assert.Equal(t, "third.pdf", results[2].Document.FileName)

	assert.ElementsMatch(t, []string{"first.pdf", "third.pdf"}, created)
	mNotify.AssertNumberOfCalls(t, "Notify", 2)
}

func TestDocumentService_IngestMany_Empty(t *testing.T) {
	svc := NewDocumentService(nil, nil, nil, WithLogger(logging.Discard()))
	assert.Empty(t, svc.IngestMany(context.Background(), "user-1", nil))
}

func TestIngestError(t *testing.T) {
	cause := errors.New("db fail")
	err := error(&IngestError{Stage: StagePersist, FileName: "a.pdf", OrphanedKey: "public/1-a.pdf", Err: cause})

	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrStorageWrite)
	assert.Contains(t, err.Error(), "orphaned blob public/1-a.pdf")
}

func TestStorageKey_UniqueAcrossInstants(t *testing.T) {
	tick := fixedNow
	svc := NewDocumentService(nil, nil, nil, WithClock(func() time.Time {
		tick = tick.Add(time.Millisecond)
		return tick
	})).(*documentService)

	a := svc.storageKey("report.pdf")
	b := svc.storageKey("report.pdf")

	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "public/"))
	assert.True(t, strings.HasSuffix(a, "-report.pdf"))
}
