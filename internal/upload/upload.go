// Package upload stages file attachments through the backend upload
// endpoint. Batches tolerate per-file failure: a failed upload is
// skipped and the rest of the batch proceeds.
package upload

import (
	"context"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/taskdeck/taskdeck/internal/backend"
	"github.com/taskdeck/taskdeck/internal/task"
)

// defaultConcurrency bounds parallel uploads in a batch.
const defaultConcurrency = 4

// Backend is the slice of the upload API the uploader needs.
type Backend interface {
	UploadFile(ctx context.Context, filename string, content io.Reader) (*backend.UploadResult, error)
}

// File is one pending upload.
type File struct {
	Name    string
	Content io.Reader
}

// Failure records a file that did not make it.
type Failure struct {
	Name string
	Err  error
}

// Uploader uploads attachment batches.
type Uploader struct {
	api         Backend
	log         *slog.Logger
	concurrency int
}

// NewUploader creates an uploader with the default concurrency bound.
func NewUploader(api Backend, logger *slog.Logger) *Uploader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Uploader{api: api, log: logger, concurrency: defaultConcurrency}
}

// UploadAll uploads the batch and returns the successful attachments in
// input order plus the failures. Failures never abort the batch and
// never produce a non-nil error.
func (u *Uploader) UploadAll(ctx context.Context, files []File) ([]task.Attachment, []Failure) {
	results := make([]*task.Attachment, len(files))
	var (
		mu       sync.Mutex
		failures []Failure
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(u.concurrency)

	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			res, err := u.api.UploadFile(ctx, f.Name, f.Content)
			if err != nil {
				u.log.Warn("attachment upload failed", "file", f.Name, "error", err)
				mu.Lock()
				failures = append(failures, Failure{Name: f.Name, Err: err})
				mu.Unlock()
				return nil
			}
			results[i] = &task.Attachment{
				ID:         uuid.NewString(),
				Name:       res.Filename,
				URL:        res.URL,
				Type:       DetectContentType(res.Filename),
				Size:       res.Size,
				UploadedAt: time.Now(),
			}
			return nil
		})
	}
	// Workers only record failures, they never return errors.
	_ = g.Wait()

	attachments := make([]task.Attachment, 0, len(files))
	for _, r := range results {
		if r != nil {
			attachments = append(attachments, *r)
		}
	}
	return attachments, failures
}

// DetectContentType returns the MIME type for a filename based on
// extension.
func DetectContentType(filename string) string {
	ext := filepath.Ext(filename)
	if ext == "" {
		return "application/octet-stream"
	}

	if contentType := mime.TypeByExtension(ext); contentType != "" {
		return contentType
	}

	switch strings.ToLower(ext) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".pdf":
		return "application/pdf"
	case ".txt":
		return "text/plain"
	case ".md":
		return "text/markdown"
	default:
		return "application/octet-stream"
	}
}

// IsImageContentType returns true if the content type is an image.
func IsImageContentType(contentType string) bool {
	return strings.HasPrefix(contentType, "image/")
}
