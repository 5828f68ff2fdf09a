package gcsuploader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"cloud.google.com/go/storage"

	"github.com/dvloznov/trade-ledger/internal/gcs"
)

// StorageService is re-exported from the shared package.
type StorageService = gcs.StorageService

// uploadTimeout bounds a single object write.
const uploadTimeout = 2 * time.Minute

// GCSStorageService implements StorageService on Google Cloud Storage with
// one shared client. It relies on Application Default Credentials.
type GCSStorageService struct {
	client *storage.Client
}

var _ StorageService = (*GCSStorageService)(nil)

// NewGCSStorageService creates a service with its own storage client.
func NewGCSStorageService(ctx context.Context) (*GCSStorageService, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewGCSStorageService: create storage client: %w", err)
	}
	return &GCSStorageService{client: client}, nil
}

// Close closes the storage client.
func (s *GCSStorageService) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// UploadFile uploads a local file to bucketName/objectName.
func (s *GCSStorageService) UploadFile(ctx context.Context, bucketName, objectName, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open file %q: %w", filePath, err)
	}
	defer f.Close()

	if err := s.write(ctx, bucketName, objectName, "", f); err != nil {
		return fmt.Errorf("UploadFile: %w", err)
	}
	return nil
}

// UploadBytes writes data to bucketName/objectName and returns the gs:// URI.
func (s *GCSStorageService) UploadBytes(ctx context.Context, bucketName, objectName, contentType string, data []byte) (string, error) {
	if err := s.write(ctx, bucketName, objectName, contentType, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("UploadBytes: %w", err)
	}
	return gcs.URI(bucketName, objectName), nil
}

func (s *GCSStorageService) write(ctx context.Context, bucketName, objectName, contentType string, r io.Reader) error {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := s.client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("copy to GCS writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload: %w", err)
	}
	return nil
}

// FetchFromGCS downloads the object bytes at a gs:// URI.
func (s *GCSStorageService) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	bucketName, objectPath, err := gcs.ParseURI(gcsURI)
	if err != nil {
		return nil, err
	}

	rc, err := s.client.Bucket(bucketName).Object(objectPath).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("FetchFromGCS: reading object %s/%s: %w", bucketName, objectPath, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("FetchFromGCS: reading bytes: %w", err)
	}
	return data, nil
}

// ExtractFilenameFromGCSURI returns the object's base name.
func (s *GCSStorageService) ExtractFilenameFromGCSURI(uri string) string {
	return gcs.FilenameFromURI(uri)
}
