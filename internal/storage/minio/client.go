package minio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"

	"github.com/dtroode/sqrl-server/internal/model"
)

// Internal adapter interface to enable mocking without a real MinIO server.
type minioAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

var _ model.AuditSink = (*AuditLog)(nil)

// AuditLog writes back-channel audit events as JSON objects, one per transaction.
type AuditLog struct {
	api    minioAPI
	bucket string
}

// NewAuditLog creates an audit log using a real *minio.Client instance.
func NewAuditLog(ctx context.Context, client *minio.Client, bucket string) (*AuditLog, error) {
	return NewAuditLogWithAPI(ctx, client, bucket)
}

// NewAuditLogWithAPI allows injecting a mockable API (used in tests).
func NewAuditLogWithAPI(ctx context.Context, api minioAPI, bucket string) (*AuditLog, error) {
	a := &AuditLog{
		api:    api,
		bucket: bucket,
	}

	if err := a.ensureBucketExists(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket exists: %w", err)
	}

	return a, nil
}

func (a *AuditLog) ensureBucketExists(ctx context.Context) error {
	exists, err := a.api.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = a.api.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// ObjectKey returns the object name for event: audit/<yyyy>/<mm>/<dd>/<correlator>/<id>.json.
func ObjectKey(event model.AuditEvent, id uuid.UUID) string {
	correlator := event.Correlator
	if correlator == "" {
		correlator = "unknown"
	}
	return path.Join("audit", event.Time.UTC().Format("2006/01/02"), correlator, id.String()+".json")
}

// Record uploads event.
func (a *AuditLog) Record(ctx context.Context, event model.AuditEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	_, err = a.api.PutObject(ctx, a.bucket, ObjectKey(event, uuid.New()), bytes.NewReader(body), int64(len(body)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("failed to upload audit event: %w", err)
	}
	return nil
}
