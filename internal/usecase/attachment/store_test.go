package attachment

import (
	"context"
	"errors"
	"testing"
	"time"

	"cranesection/internal/errs"
	"cranesection/internal/ports"
)

type fakeBackend struct {
	uploads   []ports.AttachmentUpload
	err       error
	block     bool
	published []string
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Upload(ctx context.Context, input ports.AttachmentUpload) (ports.UploadedAttachment, error) {
	if f.block {
		<-ctx.Done()
		return ports.UploadedAttachment{}, ctx.Err()
	}
	if f.err != nil {
		return ports.UploadedAttachment{}, f.err
	}
	f.uploads = append(f.uploads, input)
	return ports.UploadedAttachment{ID: "id-1", URL: "https://files.example/id-1"}, nil
}

type publishingBackend struct {
	fakeBackend
	publishErr error
}

func (p *publishingBackend) SetPublic(_ context.Context, id string) error {
	if p.publishErr != nil {
		return p.publishErr
	}
	p.published = append(p.published, id)
	return nil
}

func TestStoreUploads(t *testing.T) {
	backend := &fakeBackend{}
	store, err := New(backend, Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	got, err := store.Store(context.Background(), []byte{0xFF, 0xD8, 0xFF}, "a.jpg", "")
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if got.URL != "https://files.example/id-1" || got.Backend != "fake" {
		t.Fatalf("Store() = %+v", got)
	}
	if len(backend.uploads) != 1 || backend.uploads[0].MIMEType != "image/jpeg" {
		t.Fatalf("backend uploads = %+v", backend.uploads)
	}
}

func TestStoreValidation(t *testing.T) {
	backend := &fakeBackend{}
	store, err := New(backend, Options{MaxBytes: 4})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	cases := []struct {
		data     []byte
		filename string
		want     error
	}{
		{nil, "a.jpg", ErrEmptyData},
		{[]byte("x"), "  ", ErrEmptyFilename},
		{[]byte("too big"), "a.txt", ErrTooLarge},
	}
	for _, tc := range cases {
		_, err := store.Store(ctx, tc.data, tc.filename, "")
		if !errors.Is(err, tc.want) || !errs.IsKind(err, errs.KindValidation) {
			t.Fatalf("Store(%q) error = %v, want %v", tc.filename, err, tc.want)
		}
	}
	if len(backend.uploads) != 0 {
		t.Fatalf("invalid input reached the backend: %+v", backend.uploads)
	}
}

func TestStoreWrapsBackendFailure(t *testing.T) {
	cause := errors.New("401 unauthorized")
	store, err := New(&fakeBackend{err: cause}, Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = store.Store(context.Background(), []byte("x"), "a.png", "image/png")
	if !errs.IsKind(err, errs.KindUpload) || !errors.Is(err, cause) {
		t.Fatalf("Store() error = %v, want upload error", err)
	}
	var uploadErr *UploadError
	if !errors.As(err, &uploadErr) || uploadErr.Backend != "fake" || uploadErr.Filename != "a.png" {
		t.Fatalf("Store() error = %#v", err)
	}
}

func TestStoreTimeoutIsUploadError(t *testing.T) {
	store, err := New(&fakeBackend{block: true}, Options{Timeout: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = store.Store(context.Background(), []byte("x"), "a.png", "image/png")
	if !errs.IsKind(err, errs.KindUpload) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Store() error = %v, want upload timeout", err)
	}
}

func TestStorePublishesWhenBackendRequiresIt(t *testing.T) {
	backend := &publishingBackend{}
	store, err := New(backend, Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := store.Store(context.Background(), []byte("x"), "a.png", ""); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if len(backend.published) != 1 || backend.published[0] != "id-1" {
		t.Fatalf("published = %v", backend.published)
	}

	backend.publishErr = errors.New("permission denied")
	if _, err := store.Store(context.Background(), []byte("x"), "a.png", ""); !errs.IsKind(err, errs.KindUpload) {
		t.Fatalf("Store(publish failure) error = %v", err)
	}
}

func TestDetectMIMEType(t *testing.T) {
	if got := DetectMIMEType(nil, "x.bin", "audio/ogg"); got != "audio/ogg" {
		t.Fatalf("DetectMIMEType(explicit) = %q", got)
	}
	if got := DetectMIMEType([]byte("%PDF-1.4"), "report", ""); got != "application/pdf" {
		t.Fatalf("DetectMIMEType(sniff) = %q", got)
	}
}
