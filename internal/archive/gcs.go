// Package archive copies original uploads to a Cloud Storage bucket.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// writerFactory opens a create-only writer for one object.
type writerFactory func(ctx context.Context, object string) io.WriteCloser

// GCSArchiver writes each original once; an existing object is left untouched.
type GCSArchiver struct {
	client *storage.Client
	bucket string
	prefix string
	open   writerFactory
	logger *slog.Logger
}

// NewGCSArchiver uses application default credentials.
func NewGCSArchiver(ctx context.Context, bucket, prefix string, logger *slog.Logger) (*GCSArchiver, error) {
	if bucket == "" {
		return nil, errors.New("archive: bucket cannot be empty")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	a := newArchiver(bucket, prefix, nil, logger)
	a.client = client
	handle := client.Bucket(bucket)
	a.open = func(ctx context.Context, object string) io.WriteCloser {
		return handle.Object(object).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	}
	return a, nil
}

func newArchiver(bucket, prefix string, open writerFactory, logger *slog.Logger) *GCSArchiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &GCSArchiver{bucket: bucket, prefix: prefix, open: open, logger: logger}
}

// Archive stores data under prefix/name. An object that already exists counts as archived.
func (a *GCSArchiver) Archive(ctx context.Context, name string, data []byte) error {
	object := path.Join(a.prefix, name)
	w := a.open(ctx, object)

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		if alreadyExists(err) {
			a.logger.Info("archive.skip.exists", "bucket", a.bucket, "object", object)
			return nil
		}
		a.logger.Error("archive.write_failed", "bucket", a.bucket, "object", object, "error", err)
		return fmt.Errorf("failed to write to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		if alreadyExists(err) {
			a.logger.Info("archive.skip.exists", "bucket", a.bucket, "object", object)
			return nil
		}
		a.logger.Error("archive.close_failed", "bucket", a.bucket, "object", object, "error", err)
		return fmt.Errorf("failed to finalize GCS write: %w", err)
	}

	a.logger.Info("archive.ok", "bucket", a.bucket, "object", object, "bytes", len(data))
	return nil
}

func (a *GCSArchiver) Close() error {
	if a.client != nil {
		return a.client.Close()
	}
	return nil
}

func alreadyExists(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}
