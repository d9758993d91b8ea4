package attachment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"cranesection/internal/errs"
	"cranesection/internal/ports"
)

var ErrInvalidName = errors.New("invalid attachment name")

// LocalBackend writes attachments under one directory. Stored names are prefixed with
// a uuid so two uploads of "photo.jpg" never overwrite each other.
type LocalBackend struct {
	dir     string
	baseURL string
}

var _ ports.AttachmentBackend = (*LocalBackend)(nil)

func NewLocalBackend(dir string, baseURL string) (*LocalBackend, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("attachment dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.Wrapf(err, "create attachment dir %s", dir)
	}
	return &LocalBackend{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (b *LocalBackend) Name() string { return "local" }

func (b *LocalBackend) Dir() string { return b.dir }

func (b *LocalBackend) Upload(ctx context.Context, input ports.AttachmentUpload) (ports.UploadedAttachment, error) {
	if ctx == nil {
		return ports.UploadedAttachment{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return ports.UploadedAttachment{}, errs.Wrap(err, "check context")
	}

	name := uuid.NewString() + "-" + SanitizeFilename(input.Filename)
	path := filepath.Join(b.dir, name)

	tmp, err := os.CreateTemp(b.dir, ".upload-*")
	if err != nil {
		return ports.UploadedAttachment{}, errs.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(input.Data); err != nil {
		_ = tmp.Close()
		return ports.UploadedAttachment{}, errs.Wrap(err, "write attachment")
	}
	if err := tmp.Close(); err != nil {
		return ports.UploadedAttachment{}, errs.Wrap(err, "close attachment")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return ports.UploadedAttachment{}, errs.Wrap(err, "move attachment into place")
	}

	return ports.UploadedAttachment{ID: name, URL: b.URL(name)}, nil
}

// URL is the link the dashboard serves name under.
func (b *LocalBackend) URL(name string) string {
	if b.baseURL == "" {
		return name
	}
	return b.baseURL + "/" + name
}

// Open reads a stored attachment back by the id Upload returned.
func (b *LocalBackend) Open(name string) ([]byte, error) {
	path, err := b.Path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrapf(err, "read attachment %s", name)
	}
	return data, nil
}

// Path resolves a stored name inside the attachment dir, refusing anything that
// would escape it.
func (b *LocalBackend) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(b.dir, name), nil
}

// SanitizeFilename keeps letters, digits, dot, dash and underscore from the base name.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	out := strings.TrimLeft(sb.String(), ".")
	if out == "" {
		return "file"
	}
	return out
}
