package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Default expiry duration for presigned URLs
const DefaultPresignedURLExpiry = 15 * time.Minute

var ErrObjectNotFound = errors.New("object not found in storage")

// FileStorage defines the interface for object storage operations.
type FileStorage interface {
	// GeneratePresignedUploadURL creates a temporary URL that allows PUT requests
	// for uploading an object directly to the storage provider.
	GeneratePresignedUploadURL(ctx context.Context, objectKey string, contentType string, expires time.Duration) (string, error)

	// GeneratePresignedDownloadURL creates a temporary URL that allows GET requests
	// for downloading/viewing an object directly from the storage provider.
	GeneratePresignedDownloadURL(ctx context.Context, objectKey string, expires time.Duration) (string, error)

	// PutObject stores server-generated content such as rendered reports.
	PutObject(ctx context.Context, objectKey string, contentType string, body []byte) error

	// GetObject reads a whole object. Missing keys return ErrObjectNotFound.
	GetObject(ctx context.Context, objectKey string) ([]byte, error)

	// ObjectExists checks that a client-side upload actually landed.
	ObjectExists(ctx context.Context, objectKey string) (bool, error)

	// DeleteObject removes an object from the storage provider.
	DeleteObject(ctx context.Context, objectKey string) error
}

// PhotoKey builds a collision-free key for a student's progress photo,
// keeping the original file extension.
func PhotoKey(trainerID, studentID, fileName string) string {
	ext := strings.ToLower(path.Ext(fileName))
	return fmt.Sprintf("trainers/%s/students/%s/photos/%s%s", trainerID, studentID, uuid.NewString(), ext)
}

// ReportKey builds the key for a rendered report document.
func ReportKey(trainerID, studentID, reportID string) string {
	return fmt.Sprintf("trainers/%s/students/%s/reports/%s-%s.html", trainerID, studentID, reportID, uuid.NewString()[:8])
}

// OwnsKey reports whether objectKey lives under the trainer/student prefix.
// Upload confirmations use it so a client cannot attach someone else's object.
func OwnsKey(objectKey, trainerID, studentID string) bool {
	return strings.HasPrefix(objectKey, fmt.Sprintf("trainers/%s/students/%s/", trainerID, studentID))
}
