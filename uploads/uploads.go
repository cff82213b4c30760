// Package uploads stores user-supplied images in a local directory. Files are
// referenced by their generated name only.
package uploads

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/user/socialapp/apperror"
	"github.com/user/socialapp/config"
)

var (
	ErrNotImage = errors.New("uploads: file is not a supported image")
	ErrTooLarge = errors.New("uploads: file is too large")
)

// allowedTypes excludes SVG, which can carry script and is served from our origin.
var allowedTypes = []string{"image/png", "image/jpeg", "image/gif", "image/webp"}

// Store writes uploads into one directory.
type Store struct {
	dir      string
	maxBytes int64
}

// New creates the upload directory if needed.
func New(cfg *config.UploadConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir %s: %w", cfg.Dir, err)
	}
	return &Store{dir: cfg.Dir, maxBytes: cfg.MaxBytes}, nil
}

// Dir is the directory files are written to.
func (s *Store) Dir() string { return s.dir }

// MaxBytes is the largest accepted file.
func (s *Store) MaxBytes() int64 { return s.maxBytes }

// Save sniffs the content of r and writes it under a new name with the matching
// extension. It returns the name.
func (s *Store) Save(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return "", ErrTooLarge
	}

	mt := mimetype.Detect(data)
	if !mimetype.EqualsAny(mt.String(), allowedTypes...) {
		return "", fmt.Errorf("%w: %s", ErrNotImage, mt.String())
	}

	name := uuid.NewString() + mt.Extension()
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	return name, nil
}

// SaveFormFile saves the multipart file in field. A request without that file
// is not an error: the returned name is empty.
func (s *Store) SaveFormFile(r *http.Request, field string) (string, error) {
	file, _, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return "", nil
	}
	if err != nil {
		return "", FormError(err)
	}
	defer file.Close()

	// Browsers send an empty part when no file was picked.
	var peek [1]byte
	n, err := file.Read(peek[:])
	if n == 0 && (err == nil || errors.Is(err, io.EOF)) {
		return "", nil
	}
	return s.Save(io.MultiReader(bytes.NewReader(peek[:n]), file))
}

// FormError classifies a failure to read a multipart form. A body cut off by
// http.MaxBytesReader becomes ErrTooLarge.
func FormError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return ErrTooLarge
	}
	return fmt.Errorf("failed to read form: %w", err)
}

// Remove deletes a previously saved file. Names that do not belong to the
// directory and files already gone are ignored.
func (s *Store) Remove(name string) error {
	if name == "" || name != filepath.Base(name) {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove upload %s: %w", name, err)
	}
	return nil
}

// AppError classifies a failed upload: rejected files are a validation error,
// anything else is a storage failure.
func AppError(err error) error {
	if errors.Is(err, ErrNotImage) || errors.Is(err, ErrTooLarge) {
		return apperror.NewValidationError("the uploaded file must be a PNG, JPEG, GIF or WebP image within the size limit", err)
	}
	return apperror.NewStorageError("failed to store upload", err)
}
