package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Storage holds uploaded media files. Paths are relative to the backend root.
type Storage interface {
	// WriteFrom streams r into a file path and returns the bytes written
	WriteFrom(path string, r io.Reader) (int64, error)

	// ReadSeeker opens a stored file for http.ServeContent
	ReadSeeker(path string) (io.ReadSeeker, error)

	// Delete removes a stored file; a missing file is not an error
	Delete(path string) error

	// Exists reports whether a stored file is present
	Exists(path string) (bool, error)

	// Locate returns a local path or URL that ffprobe can open
	Locate(path string) (string, error)
}

// LocalStorage keeps media on the local filesystem under baseDir
type LocalStorage struct {
	baseDir string
}

// NewLocalStorage creates baseDir if needed and returns a store rooted there
func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create media directory %s: %w", baseDir, err)
	}

	return &LocalStorage{
		baseDir: baseDir,
	}, nil
}

// WriteFrom streams r into a file. A partial file is removed on failure.
func (s *LocalStorage) WriteFrom(path string, r io.Reader) (int64, error) {
	fullPath := s.resolve(path)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return 0, fmt.Errorf("failed to create media directory: %w", err)
	}

	f, err := os.OpenFile(fullPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return 0, fmt.Errorf("failed to create media file: %w", err)
	}

	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(fullPath)
		return n, fmt.Errorf("failed to store media file: %w", err)
	}

	return n, nil
}

// ReadSeeker opens the stored file; the caller closes it via io.Closer
func (s *LocalStorage) ReadSeeker(path string) (io.ReadSeeker, error) {
	f, err := os.Open(s.resolve(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open media file: %w", err)
	}
	return f, nil
}

func (s *LocalStorage) Delete(path string) error {
	err := os.Remove(s.resolve(path))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete media file: %w", err)
	}
	return nil
}

// Exists stats the file. Directories do not count as stored media.
func (s *LocalStorage) Exists(path string) (bool, error) {
	info, err := os.Stat(s.resolve(path))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("failed to stat media file: %w", err)
	}
	return info.Mode().IsRegular(), nil
}

// Locate returns the absolute filesystem path, which ffprobe reads directly
func (s *LocalStorage) Locate(path string) (string, error) {
	fullPath, err := filepath.Abs(s.resolve(path))
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	if _, err := os.Stat(fullPath); err != nil {
		return "", fmt.Errorf("failed to locate file: %w", err)
	}

	return fullPath, nil
}

func (s *LocalStorage) resolve(path string) string {
	return filepath.Join(s.baseDir, path)
}

// ContentType guesses the MIME type of a media file from its extension
func ContentType(path string) string {
	switch filepath.Ext(path) {
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".mkv":
		return "video/x-matroska"
	case ".webm":
		return "video/webm"
	case ".ts", ".m2ts":
		return "video/mp2t"
	case ".json":
		return "application/json"
	}
	return "application/octet-stream"
}
