package storage

import (
	"strings"
	"testing"
)

func TestPhotoKeyKeepsExtensionAndPrefix(t *testing.T) {
	key := PhotoKey("t1", "s1", "Front.JPG")
	if !strings.HasPrefix(key, "trainers/t1/students/s1/photos/") {
		t.Errorf("unexpected prefix: %s", key)
	}
	if !strings.HasSuffix(key, ".jpg") {
		t.Errorf("extension not preserved: %s", key)
	}
	if PhotoKey("t1", "s1", "a.jpg") == PhotoKey("t1", "s1", "a.jpg") {
		t.Error("keys for the same file name should differ")
	}
}

func TestOwnsKey(t *testing.T) {
	key := PhotoKey("t1", "s1", "a.png")
	if !OwnsKey(key, "t1", "s1") {
		t.Error("key should belong to t1/s1")
	}
	if OwnsKey(key, "t2", "s1") {
		t.Error("key should not belong to another trainer")
	}
	if OwnsKey(key, "t1", "s10") {
		t.Error("student prefix must not match a longer ID")
	}
}

func TestReportKey(t *testing.T) {
	key := ReportKey("t1", "s1", "r1")
	if !strings.HasPrefix(key, "trainers/t1/students/s1/reports/r1-") || !strings.HasSuffix(key, ".html") {
		t.Errorf("unexpected report key: %s", key)
	}
}
