// Package storage persists submission documents and chat attachments on an
// afero filesystem and resolves stored paths to public URLs.
package storage

import (
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/spf13/afero"
)

var (
	// ErrMissingFilename indicates an upload without a usable file name.
	ErrMissingFilename = errors.New("storage: filename required")
	// ErrMissingSubmission indicates an upload without a submission reference.
	ErrMissingSubmission = errors.New("storage: submission id required")
)

// StoreConfig describes the dependencies of the object store.
type StoreConfig struct {
	Fs            afero.Fs
	Root          string
	PublicBaseURL string
	Clock         func() time.Time
}

// Store writes objects under a root directory and resolves public URLs.
type Store struct {
	fs            afero.Fs
	root          string
	publicBaseURL string
	clock         func() time.Time
}

// NewStore constructs the object store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Fs == nil {
		return nil, fmt.Errorf("storage: filesystem required")
	}
	if strings.TrimSpace(cfg.Root) == "" {
		return nil, fmt.Errorf("storage: root directory required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Store{
		fs:            cfg.Fs,
		root:          strings.TrimRight(cfg.Root, "/"),
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		clock:         clock,
	}, nil
}

// SaveMessageAttachment stores a chat attachment under
// messages/{submissionID}/{timestamp}_{filename} and returns the object path.
func (s *Store) SaveMessageAttachment(submissionID, filename string, content io.Reader) (string, error) {
	objectPath, err := s.objectPath("messages", submissionID, filename)
	if err != nil {
		return "", err
	}
	if err := s.write(objectPath, content); err != nil {
		return "", err
	}
	return objectPath, nil
}

// SaveIntakeDocument stores an intake document under
// {submissionID}/{timestamp}_{filename} and returns the object path.
func (s *Store) SaveIntakeDocument(submissionID, filename string, content io.Reader) (string, error) {
	objectPath, err := s.objectPath("", submissionID, filename)
	if err != nil {
		return "", err
	}
	if err := s.write(objectPath, content); err != nil {
		return "", err
	}
	return objectPath, nil
}

// PublicURL resolves a stored object path against the public base URL.
func (s *Store) PublicURL(objectPath string) string {
	trimmed := strings.TrimLeft(objectPath, "/")
	if s.publicBaseURL == "" {
		return "/" + trimmed
	}
	return s.publicBaseURL + "/" + trimmed
}

func (s *Store) objectPath(prefix, submissionID, filename string) (string, error) {
	if strings.TrimSpace(submissionID) == "" {
		return "", ErrMissingSubmission
	}
	name := sanitizeFilename(filename)
	if name == "" {
		return "", ErrMissingFilename
	}
	stamped := fmt.Sprintf("%d_%s", s.clock().UTC().UnixMilli(), name)
	if prefix == "" {
		return path.Join(submissionID, stamped), nil
	}
	return path.Join(prefix, submissionID, stamped), nil
}

func (s *Store) write(objectPath string, content io.Reader) error {
	fullPath := path.Join(s.root, objectPath)
	if err := s.fs.MkdirAll(path.Dir(fullPath), 0o755); err != nil {
		return err
	}
	file, err := s.fs.Create(fullPath)
	if err != nil {
		return err
	}
	defer file.Close()
	if _, err := io.Copy(file, content); err != nil {
		return err
	}
	return nil
}

// sanitizeFilename strips directory components so client-supplied names cannot
// escape the object root.
func sanitizeFilename(filename string) string {
	name := strings.TrimSpace(filename)
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	if name == "." || name == "/" {
		return ""
	}
	return name
}
