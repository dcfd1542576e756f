package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

const userAgent = "gopscope"

// GCSStorage implements Storage using Google Cloud Storage
type GCSStorage struct {
	client     *storage.Client
	bucketName string
	baseDir    string
	urlTTL     time.Duration // lifetime of URLs handed to ffprobe
	ctx        context.Context
}

// NewGCSStorage creates a GCS-backed store. Objects live under baseDir in
// bucketName; Locate hands out V4 signed URLs valid for urlTTL. projectID
// is only used in error messages, the client takes credentials from the
// environment.
func NewGCSStorage(ctx context.Context, projectID, bucketName, baseDir string, urlTTL time.Duration) (*GCSStorage, error) {
	client, err := storage.NewClient(ctx, option.WithUserAgent(userAgent))
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client for project %s: %w", projectID, err)
	}

	if _, err := client.Bucket(bucketName).Attrs(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to access bucket %s in project %s: %w", bucketName, projectID, err)
	}

	return &GCSStorage{
		client:     client,
		bucketName: bucketName,
		baseDir:    strings.Trim(baseDir, "/"),
		urlTTL:     urlTTL,
		ctx:        ctx,
	}, nil
}

// WriteFrom streams r into a GCS object. A failed copy aborts the upload
// so no partial object is left behind.
func (s *GCSStorage) WriteFrom(path string, r io.Reader) (int64, error) {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	w := s.object(path).NewWriter(ctx)
	w.ContentType = ContentType(path)
	w.CacheControl = "private, max-age=3600"

	n, err := io.Copy(w, r)
	if err != nil {
		cancel()
		_ = w.Close()
		return n, fmt.Errorf("failed to write to GCS: %w", err)
	}

	if err := w.Close(); err != nil {
		return n, fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return n, nil
}

// ReadSeeker returns a ReadSeeker over a GCS object backed by ranged reads
func (s *GCSStorage) ReadSeeker(path string) (io.ReadSeeker, error) {
	obj := s.object(path)

	attrs, err := obj.Attrs(s.ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to stat GCS object: %w", err)
	}

	open := func(offset, length int64) (io.ReadCloser, error) {
		return obj.NewRangeReader(s.ctx, offset, length)
	}
	return newRangeReadSeeker(attrs.Size, open), nil
}

// Delete deletes a file from GCS
func (s *GCSStorage) Delete(path string) error {
	if err := s.object(path).Delete(s.ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete from GCS: %w", err)
	}
	return nil
}

// Exists checks if a file exists in GCS
func (s *GCSStorage) Exists(path string) (bool, error) {
	_, err := s.object(path).Attrs(s.ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check GCS object: %w", err)
	}
	return true, nil
}

// Close closes the GCS client
func (s *GCSStorage) Close() error {
	return s.client.Close()
}

// Locate returns a signed URL so ffprobe can read the object over HTTPS
func (s *GCSStorage) Locate(path string) (string, error) {
	url, err := s.client.Bucket(s.bucketName).SignedURL(s.fullPath(path), &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(s.urlTTL),
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate signed URL: %w", err)
	}
	return url, nil
}

func (s *GCSStorage) object(path string) *storage.ObjectHandle {
	return s.client.Bucket(s.bucketName).Object(s.fullPath(path))
}

func (s *GCSStorage) fullPath(path string) string {
	path = strings.TrimPrefix(path, "/")
	if s.baseDir == "" {
		return path
	}
	return s.baseDir + "/" + path
}

// rangeReadSeeker reads a remote object of known size, reopening a ranged
// reader whenever a seek moves away from the current stream position
type rangeReadSeeker struct {
	size   int64
	pos    int64
	open   func(offset, length int64) (io.ReadCloser, error)
	body   io.ReadCloser
	bodyAt int64 // position body will read from next
}

func newRangeReadSeeker(size int64, open func(offset, length int64) (io.ReadCloser, error)) *rangeReadSeeker {
	return &rangeReadSeeker{size: size, open: open}
}

func (r *rangeReadSeeker) Read(p []byte) (int, error) {
	if r.pos >= r.size {
		return 0, io.EOF
	}
	if r.body == nil || r.bodyAt != r.pos {
		if r.body != nil {
			r.body.Close()
		}
		body, err := r.open(r.pos, -1)
		if err != nil {
			r.body = nil
			return 0, err
		}
		r.body = body
		r.bodyAt = r.pos
	}

	n, err := r.body.Read(p)
	r.pos += int64(n)
	r.bodyAt = r.pos
	if err == io.EOF && r.pos < r.size {
		err = io.ErrUnexpectedEOF
	}
	return n, err
}

func (r *rangeReadSeeker) Seek(offset int64, whence int) (int64, error) {
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = r.pos + offset
	case io.SeekEnd:
		newPos = r.size + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}

	if newPos < 0 {
		return 0, fmt.Errorf("negative position")
	}
	r.pos = newPos
	return newPos, nil
}

// Close releases the open ranged reader, if any
func (r *rangeReadSeeker) Close() error {
	if r.body == nil {
		return nil
	}
	err := r.body.Close()
	r.body = nil
	return err
}
