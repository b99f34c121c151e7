package storage

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
)

func newTestStore(t *testing.T, baseURL string) (*Store, afero.Fs) {
	t.Helper()

	fs := afero.NewMemMapFs()
	store, err := NewStore(StoreConfig{
		Fs:            fs,
		Root:          "objects",
		PublicBaseURL: baseURL,
		Clock:         func() time.Time { return time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("failed to construct store: %v", err)
	}
	return store, fs
}

func readStored(t *testing.T, fs afero.Fs, fullPath string) string {
	t.Helper()
	file, err := fs.Open(fullPath)
	if err != nil {
		t.Fatalf("failed to open %s: %v", fullPath, err)
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		t.Fatalf("failed to read %s: %v", fullPath, err)
	}
	return string(content)
}

func TestSaveMessageAttachmentPathConvention(t *testing.T) {
	store, fs := newTestStore(t, "")

	objectPath, err := store.SaveMessageAttachment("sub-1", "mandate.pdf", strings.NewReader("content"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := "messages/sub-1/1775822400000_mandate.pdf"
	if objectPath != expected {
		t.Fatalf("expected %q, got %q", expected, objectPath)
	}
	if got := readStored(t, fs, "objects/"+expected); got != "content" {
		t.Fatalf("unexpected stored content %q", got)
	}
}

func TestSaveIntakeDocumentPathConvention(t *testing.T) {
	store, _ := newTestStore(t, "")

	objectPath, err := store.SaveIntakeDocument("sub-1", "act.pdf", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if objectPath != "sub-1/1775822400000_act.pdf" {
		t.Fatalf("unexpected object path %q", objectPath)
	}
}

func TestSaveSanitizesDirectoryTraversal(t *testing.T) {
	store, fs := newTestStore(t, "")

	objectPath, err := store.SaveMessageAttachment("sub-1", "../../etc/passwd", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if objectPath != "messages/sub-1/1775822400000_passwd" {
		t.Fatalf("expected sanitized path, got %q", objectPath)
	}
	if _, err := fs.Stat("etc/passwd"); err == nil {
		t.Fatalf("expected no file outside the object root")
	}

	backslashed, err := store.SaveMessageAttachment("sub-1", `..\..\secret.txt`, strings.NewReader("x"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if backslashed != "messages/sub-1/1775822400000_secret.txt" {
		t.Fatalf("expected sanitized path, got %q", backslashed)
	}
}

func TestSaveValidation(t *testing.T) {
	store, _ := newTestStore(t, "")

	if _, err := store.SaveMessageAttachment("", "a.pdf", strings.NewReader("x")); !errors.Is(err, ErrMissingSubmission) {
		t.Fatalf("expected missing submission error, got %v", err)
	}
	if _, err := store.SaveMessageAttachment("sub-1", "  ", strings.NewReader("x")); !errors.Is(err, ErrMissingFilename) {
		t.Fatalf("expected missing filename error, got %v", err)
	}
}

func TestPublicURL(t *testing.T) {
	withBase, _ := newTestStore(t, "https://files.example.com/")
	if got := withBase.PublicURL("messages/sub-1/f.pdf"); got != "https://files.example.com/messages/sub-1/f.pdf" {
		t.Fatalf("unexpected url %q", got)
	}

	withoutBase, _ := newTestStore(t, "")
	if got := withoutBase.PublicURL("/messages/sub-1/f.pdf"); got != "/messages/sub-1/f.pdf" {
		t.Fatalf("unexpected url %q", got)
	}
}
