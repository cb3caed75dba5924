package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	maxLogoSize     = 2 * 1024 * 1024 // 2 MB
	presignedURLTTL = 15 * time.Minute
	logoPathPrefix  = "logos"
	sniffLen        = 512
)

var (
	ErrFileTooBig          = errors.New("file size exceeds 2MB limit")
	ErrInvalidFileType     = errors.New("invalid file type, only JPEG and PNG images are allowed")
	ErrBucketUnavailable   = errors.New("storage bucket unavailable")
	ErrUploadFailed        = errors.New("failed to upload file")
	ErrDeleteFailed        = errors.New("failed to delete file")
	ErrURLGenerationFailed = errors.New("failed to generate presigned URL")
	ErrUnauthorizedAccess  = errors.New("object key does not belong to this tenant")

	allowedContentTypes = map[string]struct{}{
		"image/jpeg": {},
		"image/png":  {},
	}
)

// StorageService stores tenant branding assets in object storage.
type StorageService interface {
	// UploadLogo uploads a tenant logo and returns the object key.
	UploadLogo(ctx context.Context, tenantID uint, file io.Reader, fileSize int64, contentType string) (string, error)

	// DeleteLogo deletes a tenant logo by object key. The key must live in
	// the tenant's own namespace.
	DeleteLogo(ctx context.Context, tenantID uint, objectKey string) error

	// GenerateLogoURL generates a presigned GET URL for logo access.
	GenerateLogoURL(ctx context.Context, objectKey string) (string, error)
}

// MinIOStorageService implements StorageService on MinIO/S3-compatible
// storage. The bucket check is deferred until first use so an unreachable
// storage backend does not block process startup.
type MinIOStorageService struct {
	client     *minio.Client
	bucketName string

	bucketOnce sync.Once
	bucketErr  error
}

func NewMinIOStorageService(endpoint, accessKey, secretKey, bucketName string, useSSL bool) (*MinIOStorageService, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinIOStorageService{client: client, bucketName: bucketName}, nil
}

func (s *MinIOStorageService) ensureBucket(ctx context.Context) error {
	s.bucketOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucketName)
		if err != nil {
			s.bucketErr = fmt.Errorf("%w: check bucket existence: %v", ErrBucketUnavailable, err)
			return
		}
		if !exists {
			if err := s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{}); err != nil {
				s.bucketErr = fmt.Errorf("%w: create bucket: %v", ErrBucketUnavailable, err)
			}
		}
	})
	return s.bucketErr
}

func (s *MinIOStorageService) UploadLogo(ctx context.Context, tenantID uint, file io.Reader, fileSize int64, contentType string) (string, error) {
	if fileSize > maxLogoSize {
		return "", ErrFileTooBig
	}

	// The declared content type is untrusted; sniff the leading bytes.
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	head = head[:n]
	detected := http.DetectContentType(head)
	if _, allowed := allowedContentTypes[detected]; !allowed {
		return "", ErrInvalidFileType
	}
	declared := strings.ToLower(strings.TrimSpace(contentType))
	if declared != "" && declared != detected {
		return "", ErrInvalidFileType
	}

	if err := s.ensureBucket(ctx); err != nil {
		return "", err
	}

	objectKey := fmt.Sprintf("%s/tenant-%d/%s%s", logoPathPrefix, tenantID, uuid.New().String(), contentTypeToExtension(detected))
	body := io.MultiReader(bytes.NewReader(head), file)
	_, err = s.client.PutObject(ctx, s.bucketName, objectKey, body, fileSize, minio.PutObjectOptions{
		ContentType: detected,
		UserMetadata: map[string]string{
			"Tenant-ID":   fmt.Sprintf("%d", tenantID),
			"Uploaded-At": time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return objectKey, nil
}

func (s *MinIOStorageService) DeleteLogo(ctx context.Context, tenantID uint, objectKey string) error {
	key := strings.TrimSpace(objectKey)
	if key == "" {
		return nil
	}
	if !ownsObjectKey(tenantID, key) {
		return ErrUnauthorizedAccess
	}
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucketName, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	return nil
}

func (s *MinIOStorageService) GenerateLogoURL(ctx context.Context, objectKey string) (string, error) {
	if strings.TrimSpace(objectKey) == "" {
		return "", fmt.Errorf("%w: empty object key", ErrURLGenerationFailed)
	}
	if err := s.ensureBucket(ctx); err != nil {
		return "", err
	}
	presignedURL, err := s.client.PresignedGetObject(ctx, s.bucketName, objectKey, presignedURLTTL, url.Values{})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrURLGenerationFailed, err)
	}
	return presignedURL.String(), nil
}

// ownsObjectKey checks the key sits directly under the tenant's namespace
// and carries no path traversal.
func ownsObjectKey(tenantID uint, objectKey string) bool {
	if strings.Contains(objectKey, "..") {
		return false
	}
	prefix := fmt.Sprintf("%s/tenant-%d/", logoPathPrefix, tenantID)
	return strings.HasPrefix(objectKey, prefix)
}

func contentTypeToExtension(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	default:
		return ""
	}
}
