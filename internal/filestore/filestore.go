// Package filestore keeps uploaded receipt files on local disk, isolating
// filesystem I/O from the expense workflow.
package filestore

import (
	"errors"
	"io"
	"io/fs"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	apperrors "expenseflow/internal/errors"
	"expenseflow/internal/logger"
)

// Store persists uploaded files under generated unique keys.
type Store interface {
	// Store copies r into storage and returns the generated storage key.
	Store(r io.Reader, originalName string) (string, error)
	// Open returns a reader for a previously stored file.
	Open(key string) (*os.File, error)
	// Delete removes the file behind key. Missing files and I/O failures are
	// logged, never returned.
	Delete(key string)
}

// Upload is a file received from a client, opened lazily.
type Upload struct {
	Filename string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

// Empty reports whether the upload carries no content.
func (u Upload) Empty() bool {
	return u.Size <= 0 || u.Open == nil
}

// FromFileHeader adapts a multipart file header to an Upload.
func FromFileHeader(fh *multipart.FileHeader) Upload {
	return Upload{
		Filename: fh.Filename,
		Size:     fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// LocalStore stores files in a single flat directory.
type LocalStore struct {
	root string
}

var _ Store = (*LocalStore)(nil)

// NewLocalStore creates the upload directory if needed and returns a store rooted there.
func NewLocalStore(dir string) (*LocalStore, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	root = filepath.Clean(root)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &LocalStore{root: root}, nil
}

// Root returns the absolute upload directory.
func (s *LocalStore) Root() string {
	return s.root
}

// Store writes r to a new file named "<uuid>_<originalName>".
func (s *LocalStore) Store(r io.Reader, originalName string) (string, error) {
	name, err := sanitizeName(originalName)
	if err != nil {
		return "", err
	}

	key := newKeyPrefix() + "_" + name
	path, err := s.resolve(key)
	if err != nil {
		return "", err
	}

	f, err := os.Create(path)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrFileStorage, err)
	}

	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", apperrors.Wrap(apperrors.ErrFileStorage, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", apperrors.Wrap(apperrors.ErrFileStorage, err)
	}

	return key, nil
}

// Open opens a stored file for reading.
func (s *LocalStore) Open(key string) (*os.File, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.Wrap(apperrors.ErrAttachmentNotFound, err)
		}
		return nil, apperrors.Wrap(apperrors.ErrFileStorage, err)
	}
	return f, nil
}

// Delete removes a stored file. It is idempotent.
func (s *LocalStore) Delete(key string) {
	if strings.TrimSpace(key) == "" {
		return
	}
	path, err := s.resolve(key)
	if err != nil {
		logger.Get().Warnw("refusing to delete file outside upload dir", "key", key, "error", err)
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Get().Errorw("failed to delete file", "key", key, "error", err)
	}
}

// resolve maps a key to a path and makes sure it stays inside the root.
func (s *LocalStore) resolve(key string) (string, error) {
	path := filepath.Join(s.root, key)
	rel, err := filepath.Rel(s.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") || strings.ContainsRune(rel, filepath.Separator) {
		return "", apperrors.WithMessage(apperrors.ErrInvalidFileName, "Invalid storage key "+key)
	}
	return path, nil
}

func sanitizeName(originalName string) (string, error) {
	name := strings.TrimSpace(originalName)
	if name == "" {
		return "", apperrors.ErrInvalidFileName
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return "", apperrors.WithMessage(apperrors.ErrInvalidFileName,
			"Filename contains invalid path sequence "+name)
	}
	return name, nil
}

// newKeyPrefix returns a time-ordered UUIDv7, falling back to a random v4.
func newKeyPrefix() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// OriginalName strips the generated prefix from a storage key. Keys that
// were not produced by Store are returned unchanged.
func OriginalName(key string) string {
	prefix, name, ok := strings.Cut(key, "_")
	if !ok || name == "" {
		return key
	}
	if _, err := uuid.Parse(prefix); err != nil {
		return key
	}
	return name
}
