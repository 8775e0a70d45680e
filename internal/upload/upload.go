package upload

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrFileTooLarge = errors.New("uploaded file exceeds the size limit")
	ErrEmptyName    = errors.New("uploaded file has no usable name")

	unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
	dotRuns     = regexp.MustCompile(`\.{2,}`)
)

// Store writes receipt uploads under a single base directory.
type Store struct {
	Dir      string
	MaxBytes int64
}

func NewStore(dir string, maxBytes int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &Store{Dir: dir, MaxBytes: maxBytes}, nil
}

// SanitizeFilename strips any path components and collapses characters
// outside [A-Za-z0-9._-], so the result can never escape the upload
// directory. Returns "" when nothing survives.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = dotRuns.ReplaceAllString(name, ".")
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	return name
}

// Save stores the uploaded receipt and returns the stored filename.
// The name is uuid-prefixed so concurrent uploads with the same client
// filename cannot clobber each other.
func (s *Store) Save(file *multipart.FileHeader) (string, error) {
	if s.MaxBytes > 0 && file.Size > s.MaxBytes {
		return "", ErrFileTooLarge
	}

	clean := SanitizeFilename(file.Filename)
	if clean == "" {
		return "", ErrEmptyName
	}
	stored := uuid.NewString()[:8] + "_" + clean

	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(s.Dir, stored))
	if err != nil {
		return "", fmt.Errorf("failed to create receipt file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("failed to write receipt file: %w", err)
	}

	return stored, nil
}

// Path resolves a stored filename inside the upload directory. It
// re-sanitizes the name so a tampered database value still cannot
// reach outside the directory.
func (s *Store) Path(stored string) (string, error) {
	clean := SanitizeFilename(stored)
	if clean == "" || clean != stored {
		return "", ErrEmptyName
	}
	full := filepath.Join(s.Dir, clean)
	if _, err := os.Stat(full); err != nil {
		return "", err
	}
	return full, nil
}
