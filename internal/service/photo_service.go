package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"formafit/trainer-app/internal/domain"
	"formafit/trainer-app/internal/storage"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrPhotoNotFound  = newNotFound("photo")
	ErrUploadNotFound = errors.New("uploaded file not found; upload it before confirming")
)

const maxPhotoBytes = 15 << 20

// UploadURLResponse structure for returning URL and object key
type UploadURLResponse struct {
	UploadURL string `json:"uploadUrl"`
	ObjectKey string `json:"objectKey"` // the key the client reports back on confirm
}

// PhotoConfirmation describes a file already PUT to the presigned URL.
type PhotoConfirmation struct {
	ObjectKey   string
	FileName    string
	ContentType string
	Size        int64
	Date        time.Time
	Angle       domain.PhotoAngle
	Description string
}

// PhotoService runs the two-step upload: RequestUpload hands out a presigned
// PUT URL, the client uploads straight to storage, then Confirm records the
// metadata.
type PhotoService interface {
	RequestUpload(ctx context.Context, trainerID, studentID primitive.ObjectID, fileName, contentType string) (*UploadURLResponse, error)
	Confirm(ctx context.Context, trainerID, studentID primitive.ObjectID, in PhotoConfirmation) (*domain.ProgressPhoto, error)
	List(ctx context.Context, trainerID, studentID primitive.ObjectID) ([]domain.ProgressPhoto, error)
	DownloadURL(ctx context.Context, trainerID, id primitive.ObjectID) (string, error)
	Delete(ctx context.Context, trainerID, id primitive.ObjectID) error
}

type photoService struct {
	repos Repositories
	files storage.FileStorage
	clock Clock
}

func NewPhotoService(repos Repositories, files storage.FileStorage, clock Clock) PhotoService {
	return &photoService{repos: repos, files: files, clock: clock}
}

func validImageType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(contentType), "image/")
}

func (s *photoService) RequestUpload(ctx context.Context, trainerID, studentID primitive.ObjectID, fileName, contentType string) (*UploadURLResponse, error) {
	if !validImageType(contentType) {
		return nil, invalid("contentType", "must be an image type")
	}
	if strings.TrimSpace(fileName) == "" {
		return nil, invalid("fileName", "is required")
	}
	if _, err := getStudent(ctx, s.repos.Students, trainerID, studentID); err != nil {
		return nil, err
	}

	objectKey := storage.PhotoKey(trainerID.Hex(), studentID.Hex(), fileName)
	uploadURL, err := s.files.GeneratePresignedUploadURL(ctx, objectKey, contentType, storage.DefaultPresignedURLExpiry)
	if err != nil {
		return nil, ErrStorageFailure
	}
	return &UploadURLResponse{UploadURL: uploadURL, ObjectKey: objectKey}, nil
}

func (s *photoService) Confirm(ctx context.Context, trainerID, studentID primitive.ObjectID, in PhotoConfirmation) (*domain.ProgressPhoto, error) {
	if _, err := getStudent(ctx, s.repos.Students, trainerID, studentID); err != nil {
		return nil, err
	}
	if !storage.OwnsKey(in.ObjectKey, trainerID.Hex(), studentID.Hex()) {
		return nil, invalid("objectKey", "does not belong to this student")
	}
	if !validImageType(in.ContentType) {
		return nil, invalid("contentType", "must be an image type")
	}
	if in.Size <= 0 || in.Size > maxPhotoBytes {
		return nil, invalid("size", "must be between 1 byte and 15 MB")
	}
	if in.Angle == "" {
		in.Angle = domain.PhotoFront
	}
	if !in.Angle.Valid() {
		return nil, invalid("angle", "must be front, side, back or other")
	}
	if in.Date.IsZero() {
		in.Date = s.clock.Today()
	}

	exists, err := s.files.ObjectExists(ctx, in.ObjectKey)
	if err != nil {
		return nil, ErrStorageFailure
	}
	if !exists {
		return nil, ErrUploadNotFound
	}

	photo := &domain.ProgressPhoto{
		StudentID:   studentID,
		TrainerID:   trainerID,
		Date:        in.Date,
		Angle:       in.Angle,
		Description: strings.TrimSpace(in.Description),
		S3ObjectKey: in.ObjectKey,
		FileName:    in.FileName,
		ContentType: in.ContentType,
		Size:        in.Size,
	}
	id, err := s.repos.Photos.Create(ctx, photo)
	if err != nil {
		return nil, err
	}
	photo.ID = id
	return photo, nil
}

func (s *photoService) List(ctx context.Context, trainerID, studentID primitive.ObjectID) ([]domain.ProgressPhoto, error) {
	if _, err := getStudent(ctx, s.repos.Students, trainerID, studentID); err != nil {
		return nil, err
	}
	return s.repos.Photos.ListByStudent(ctx, trainerID, studentID, 0)
}

func (s *photoService) DownloadURL(ctx context.Context, trainerID, id primitive.ObjectID) (string, error) {
	photo, err := s.repos.Photos.GetByID(ctx, trainerID, id)
	if err != nil {
		return "", notFound(err, ErrPhotoNotFound)
	}
	url, err := s.files.GeneratePresignedDownloadURL(ctx, photo.S3ObjectKey, storage.DefaultPresignedURLExpiry)
	if err != nil {
		return "", ErrStorageFailure
	}
	return url, nil
}

// Delete removes the stored file first, then the metadata.
func (s *photoService) Delete(ctx context.Context, trainerID, id primitive.ObjectID) error {
	photo, err := s.repos.Photos.GetByID(ctx, trainerID, id)
	if err != nil {
		return notFound(err, ErrPhotoNotFound)
	}
	if err := s.files.DeleteObject(ctx, photo.S3ObjectKey); err != nil {
		log.Printf("ERROR: Failed to delete photo object %s: %v", photo.S3ObjectKey, err)
		return ErrStorageFailure
	}
	return notFound(s.repos.Photos.Delete(ctx, trainerID, id), ErrPhotoNotFound)
}
