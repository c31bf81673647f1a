// Package attachments stores the files users attach to reports.
package attachments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/config"
)

var ErrNotFound = errors.New("attachment not found")

type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the object; a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// New builds the backend named by cfg.AttachmentStore.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Store, error) {
	switch cfg.AttachmentStore {
	case "", "disk":
		logger.Info("using disk attachment store", zap.String("path", cfg.UploadPath))
		return NewDiskStore(cfg.UploadPath)
	case "minio":
		logger.Info("using MinIO attachment store", zap.String("endpoint", cfg.MinioEndpoint), zap.String("bucket", cfg.MinioBucket))
		return NewMinioStore(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	case "s3":
		logger.Info("using S3 attachment store", zap.String("endpoint", cfg.S3Endpoint), zap.String("bucket", cfg.S3Bucket))
		return NewS3Store(cfg.S3Endpoint, cfg.S3Region, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket)
	default:
		return nil, fmt.Errorf("unsupported attachment store %q", cfg.AttachmentStore)
	}
}

// ObjectKey returns a fresh date-partitioned key keeping the upload's extension.
func ObjectKey(originalName string, now time.Time) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(originalName, "\\", "/"))))
	if len(ext) > 10 {
		ext = ""
	}
	return fmt.Sprintf("reports/%s/%s%s", now.UTC().Format("2006/01/02"), uuid.NewString(), ext)
}
