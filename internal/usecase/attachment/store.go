package attachment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"cranesection/internal/bootstrap/logging"
	"cranesection/internal/errs"
	"cranesection/internal/ports"
)

const defaultTimeout = 60 * time.Second

var (
	ErrEmptyData     = errors.New("attachment is empty")
	ErrEmptyFilename = errors.New("attachment filename is required")
	ErrTooLarge      = errors.New("attachment exceeds size limit")
)

// UploadError reports a failed upload with the backend that rejected it.
type UploadError struct {
	Backend  string
	Filename string
	Err      error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %q to %s: %v", e.Filename, e.Backend, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

type Attachment struct {
	ID      string
	URL     string
	Backend string
}

type Options struct {
	Timeout  time.Duration
	MaxBytes int64
}

// Store uploads attachments to one backend. Each upload is attempted once.
type Store struct {
	backend ports.AttachmentBackend
	opts    Options
}

func New(backend ports.AttachmentBackend, opts Options) (*Store, error) {
	if backend == nil {
		return nil, errors.New("attachment backend is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Store{backend: backend, opts: opts}, nil
}

func (s *Store) Backend() string { return s.backend.Name() }

// Store persists data and returns a durable link to it. Backends that need an explicit
// visibility step are made public before returning.
func (s *Store) Store(ctx context.Context, data []byte, filename string, mimeType string) (Attachment, error) {
	if ctx == nil {
		return Attachment{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Attachment{}, errs.Wrap(err, "check context")
	}

	filename = strings.TrimSpace(filename)
	switch {
	case len(data) == 0:
		return Attachment{}, errs.E(errs.KindValidation, "store attachment", ErrEmptyData)
	case filename == "":
		return Attachment{}, errs.E(errs.KindValidation, "store attachment", ErrEmptyFilename)
	case s.opts.MaxBytes > 0 && int64(len(data)) > s.opts.MaxBytes:
		return Attachment{}, errs.E(errs.KindValidation, "store attachment",
			fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, len(data), s.opts.MaxBytes))
	}
	mimeType = DetectMIMEType(data, filename, mimeType)

	backend := s.backend.Name()
	ctx = logging.WithAttrs(ctx,
		slog.String("component", "usecase.attachment"),
		slog.String("backend", backend),
		slog.String("filename", filename),
	)
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	start := time.Now()
	uploaded, err := s.backend.Upload(ctx, ports.AttachmentUpload{Data: data, Filename: filename, MIMEType: mimeType})
	if err != nil {
		uploadErr := &UploadError{Backend: backend, Filename: filename, Err: err}
		logging.Warn(ctx, "attachment upload failed", slog.Any("err", errs.Loggable(err)))
		return Attachment{}, errs.E(errs.KindUpload, "store attachment", uploadErr)
	}

	if publisher, ok := s.backend.(ports.AttachmentPublisher); ok {
		if err := publisher.SetPublic(ctx, uploaded.ID); err != nil {
			uploadErr := &UploadError{Backend: backend, Filename: filename, Err: errs.Wrap(err, "set public")}
			logging.Warn(ctx, "attachment visibility failed", slog.String("id", uploaded.ID), slog.Any("err", errs.Loggable(err)))
			return Attachment{}, errs.E(errs.KindUpload, "store attachment", uploadErr)
		}
	}

	logging.Info(ctx, "attachment stored",
		slog.String("id", uploaded.ID),
		slog.Int("bytes", len(data)),
		slog.String("mime", mimeType),
		slog.Duration("elapsed", time.Since(start)),
	)
	return Attachment{ID: uploaded.ID, URL: uploaded.URL, Backend: backend}, nil
}

// DetectMIMEType keeps an explicit type, then tries the file extension, then sniffs
// the content.
func DetectMIMEType(data []byte, filename string, mimeType string) string {
	if mimeType = strings.TrimSpace(mimeType); mimeType != "" && mimeType != "application/octet-stream" {
		return mimeType
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); byExt != "" {
		return byExt
	}
	return http.DetectContentType(data)
}
