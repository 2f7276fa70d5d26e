// Package minio stores analytics export snapshots in S3-compatible object
// storage.  Snapshots hold the risk-radar payload verbatim; rendering is
// left to downstream consumers.
package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/citescope/citescope/internal/config"
	"github.com/citescope/citescope/internal/infrastructure/monitoring/logging"
	"github.com/citescope/citescope/pkg/errors"
)

// SnapshotReceipt acknowledges one stored snapshot.
type SnapshotReceipt struct {
	ObjectKey string
	URL       string
	Size      int64
}

// SnapshotStore is the export-storage contract the analytics service uses.
type SnapshotStore interface {
	PutSnapshot(ctx context.Context, objectKey string, payload []byte) (*SnapshotReceipt, error)
	GetSnapshot(ctx context.Context, objectKey string) ([]byte, error)
	PresignedURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error)
}

// objectAPI abstracts the minio client surface the store needs, for tests.
type objectAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error)
}

type snapshotStore struct {
	client        objectAPI
	bucket        string
	presignExpiry time.Duration
	logger        logging.Logger
}

// NewSnapshotStore connects to object storage and ensures the snapshot
// bucket exists.
func NewSnapshotStore(ctx context.Context, cfg config.MinIOConfig, logger logging.Logger) (SnapshotStore, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExportStoreFailed, "object storage connection failed")
	}

	store := &snapshotStore{
		client:        client,
		bucket:        cfg.Bucket,
		presignExpiry: cfg.PresignExpiry,
		logger:        logger,
	}
	if err := store.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// newSnapshotStoreWithClient builds a store over a custom client, for tests.
func newSnapshotStoreWithClient(client objectAPI, bucket string, presignExpiry time.Duration, logger logging.Logger) *snapshotStore {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &snapshotStore{client: client, bucket: bucket, presignExpiry: presignExpiry, logger: logger}
}

func (s *snapshotStore) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExportStoreFailed, "bucket check failed")
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return errors.Wrap(err, errors.ErrCodeExportStoreFailed, fmt.Sprintf("failed to create bucket %q", s.bucket))
	}
	s.logger.Info("snapshot bucket created", logging.String("bucket", s.bucket))
	return nil
}

// PutSnapshot stores payload under objectKey and returns a receipt with a
// presigned download URL.
func (s *snapshotStore) PutSnapshot(ctx context.Context, objectKey string, payload []byte) (*SnapshotReceipt, error) {
	info, err := s.client.PutObject(ctx, s.bucket, objectKey, bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExportStoreFailed, "snapshot upload failed")
	}

	receipt := &SnapshotReceipt{ObjectKey: objectKey, Size: info.Size}
	if url, err := s.PresignedURL(ctx, objectKey, s.presignExpiry); err == nil {
		receipt.URL = url
	} else {
		s.logger.Warn("presign failed for stored snapshot", logging.String("key", objectKey), logging.Err(err))
	}
	return receipt, nil
}

// GetSnapshot reads a stored snapshot back.
func (s *snapshotStore) GetSnapshot(ctx context.Context, objectKey string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExportStoreFailed, "snapshot fetch failed")
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExportStoreFailed, "snapshot read failed")
	}
	return data, nil
}

// PresignedURL returns a time-limited download link for objectKey.
func (s *snapshotStore) PresignedURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error) {
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, objectKey, expiry, nil)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeExportStoreFailed, "presign failed")
	}
	return u.String(), nil
}
