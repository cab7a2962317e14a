package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"docflow/internal/config"
)

// minioStorage implements the Storage interface using an S3-compatible backend (MinIO, AWS S3, etc.).
// It is safe for concurrent use by multiple goroutines.
type minioStorage struct {
	client     *minio.Client
	bucket     string
	publicBase *url.URL
	logger     *slog.Logger
}

// NewMinIO creates a new S3-compatible storage client backed by MinIO.
// It validates connectivity and ensures the bucket exists (creates it if missing).
func NewMinIO(cfg config.MinIOConfig, logger *slog.Logger) (Storage, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("minio credentials are required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio bucket is required")
	}

	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	ms, err := newMinIOStorage(cli, cfg.Bucket, cfg.PublicBaseURL, logger)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Ensure bucket exists.
	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
		ms.logger.Info("bucket_created", "component", "storage", "bucket", cfg.Bucket)
	}

	return ms, nil
}

func newMinIOStorage(cli *minio.Client, bucket, publicBaseURL string, logger *slog.Logger) (*minioStorage, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var base *url.URL
	if publicBaseURL != "" {
		u, err := url.Parse(publicBaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid public base url %q", publicBaseURL)
		}
		base = u
	} else {
		// Path-style addressing: {endpoint}/{bucket}/{key}.
		base = cli.EndpointURL().JoinPath(bucket)
	}

	return &minioStorage{client: cli, bucket: bucket, publicBase: base, logger: logger}, nil
}

// Put uploads an object using streaming I/O only (no local disk).
func (m *minioStorage) Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	putOpts := minio.PutObjectOptions{
		ContentType:  opt.ContentType,
		UserMetadata: encodeMetadata(opt.Metadata),
		CacheControl: "max-age=3600",
	}
	info, err := m.client.PutObject(ctx, m.bucket, key, r, opt.Size, putOpts)
	if err != nil {
		return ObjectInfo{}, err
	}
	return ObjectInfo{
		Key:          key,
		Size:         info.Size,
		ETag:         info.ETag,
		ContentType:  opt.ContentType,
		LastModified: time.Now(), // MinIO PutObjectInfo doesn't return LastModified
		Metadata:     opt.Metadata,
	}, nil
}

// Get downloads an object content as a ReadCloser along with basic info.
func (m *minioStorage) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	// Fetch stat to populate info; avoid reading content into memory.
	st, err := obj.Stat()
	if err != nil {
		obj.Close()
		if isNoSuchKey(err) {
			return nil, ObjectInfo{}, ErrObjectNotFound
		}
		return nil, ObjectInfo{}, err
	}
	info := ObjectInfo{
		Key:          key,
		Size:         st.Size,
		ETag:         st.ETag,
		ContentType:  st.ContentType,
		LastModified: st.LastModified,
		Metadata:     decodeMetadata(st.UserMetadata),
	}
	return obj, info, nil
}

// Delete removes an object by key. A missing object is logged and treated as removed.
func (m *minioStorage) Delete(ctx context.Context, key string) error {
	err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{})
	if err != nil && isNoSuchKey(err) {
		m.logger.Warn("object_already_absent",
			"component", "storage",
			"bucket", m.bucket,
			"key", key,
		)
		return nil
	}
	return err
}

// PublicURL builds the object URL from the configured base. No request is made, so the
// URL is only retrievable when the bucket (or the CDN behind PublicBaseURL) allows anonymous reads.
func (m *minioStorage) PublicURL(key string) (string, bool) {
	key = strings.TrimLeft(key, "/")
	if key == "" || m.publicBase == nil {
		return "", false
	}
	return m.publicBase.JoinPath(strings.Split(key, "/")...).String(), true
}

// PresignGet generates a pre-signed URL for GET with the specified expiry.
func (m *minioStorage) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := m.client.PresignedGetObject(ctx, m.bucket, key, expiry, url.Values{})
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// encodeMetadata turns values into valid x-amz-meta-* header values. S3 only carries
// printable US-ASCII there, so anything else travels as an RFC 2047 encoded-word.
func encodeMetadata(md map[string]string) map[string]string {
	if len(md) == 0 {
		return md
	}
	out := make(map[string]string, len(md))
	for k, v := range md {
		out[k] = mime.QEncoding.Encode("utf-8", v)
	}
	return out
}

// decodeMetadata reverses encodeMetadata. Values that do not decode are kept as stored.
func decodeMetadata(md map[string]string) map[string]string {
	if len(md) == 0 {
		return md
	}
	var dec mime.WordDecoder
	out := make(map[string]string, len(md))
	for k, v := range md {
		if s, err := dec.DecodeHeader(v); err == nil {
			v = s
		}
		out[k] = v
	}
	return out
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}
