package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"formafit/trainer-app/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestPhotoUploadFlow(t *testing.T) {
	f := newFixture()
	svc := NewPhotoService(f.repos, f.files, f.clock)
	ctx := context.Background()
	student := f.addStudent(f.trainer, "Ana Lima")

	upload, err := svc.RequestUpload(ctx, f.trainer, student.ID, "front.JPG", "image/jpeg")
	if err != nil {
		t.Fatalf("RequestUpload: %v", err)
	}
	if !strings.HasSuffix(upload.ObjectKey, ".jpg") || !strings.Contains(upload.ObjectKey, student.ID.Hex()) {
		t.Errorf("object key = %q", upload.ObjectKey)
	}

	confirm := PhotoConfirmation{ObjectKey: upload.ObjectKey, FileName: "front.JPG", ContentType: "image/jpeg", Size: 2048}
	if _, err := svc.Confirm(ctx, f.trainer, student.ID, confirm); !errors.Is(err, ErrUploadNotFound) {
		t.Fatalf("confirm before upload: %v", err)
	}

	f.files.PutObject(ctx, upload.ObjectKey, "image/jpeg", []byte("jpeg"))
	photo, err := svc.Confirm(ctx, f.trainer, student.ID, confirm)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if photo.Angle != domain.PhotoFront || !photo.Date.Equal(fixedToday) {
		t.Errorf("defaults not applied: %+v", photo)
	}

	if err := svc.Delete(ctx, f.trainer, photo.ID); err != nil {
		t.Fatal(err)
	}
	if ok, _ := f.files.ObjectExists(ctx, upload.ObjectKey); ok {
		t.Error("object not deleted")
	}
}

func TestPhotoConfirmRejectsForeignKey(t *testing.T) {
	f := newFixture()
	svc := NewPhotoService(f.repos, f.files, f.clock)
	ctx := context.Background()
	student := f.addStudent(f.trainer, "Ana Lima")

	foreign := "trainers/" + primitive.NewObjectID().Hex() + "/students/" + student.ID.Hex() + "/photos/x.jpg"
	f.files.PutObject(ctx, foreign, "image/jpeg", []byte("jpeg"))
	_, err := svc.Confirm(ctx, f.trainer, student.ID, PhotoConfirmation{ObjectKey: foreign, ContentType: "image/jpeg", Size: 10})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRequestUploadRejectsNonImages(t *testing.T) {
	f := newFixture()
	svc := NewPhotoService(f.repos, f.files, f.clock)
	student := f.addStudent(f.trainer, "Ana Lima")

	_, err := svc.RequestUpload(context.Background(), f.trainer, student.ID, "notes.pdf", "application/pdf")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
