package attachment

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"cranesection/internal/ports"
)

var jpegBytes = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x01, 0x02, 0x00, 0xFF, 0xD9}

func TestLocalBackendRoundTrip(t *testing.T) {
	backend, err := NewLocalBackend(t.TempDir(), "/attachments/")
	if err != nil {
		t.Fatalf("NewLocalBackend() error = %v", err)
	}

	got, err := backend.Upload(context.Background(), ports.AttachmentUpload{Data: jpegBytes, Filename: "a.jpg", MIMEType: "image/jpeg"})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if !strings.HasSuffix(got.ID, "-a.jpg") {
		t.Fatalf("Upload() id = %q", got.ID)
	}
	if got.URL != "/attachments/"+got.ID {
		t.Fatalf("Upload() url = %q", got.URL)
	}

	data, err := backend.Open(got.ID)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if !bytes.Equal(data, jpegBytes) {
		t.Fatalf("Open() bytes differ: %x", data)
	}
}

func TestLocalBackendSameNameDoesNotCollide(t *testing.T) {
	backend, err := NewLocalBackend(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewLocalBackend() error = %v", err)
	}
	ctx := context.Background()

	first, err := backend.Upload(ctx, ports.AttachmentUpload{Data: []byte("one"), Filename: "photo.jpg"})
	if err != nil {
		t.Fatalf("Upload(first) error = %v", err)
	}
	second, err := backend.Upload(ctx, ports.AttachmentUpload{Data: []byte("two"), Filename: "photo.jpg"})
	if err != nil {
		t.Fatalf("Upload(second) error = %v", err)
	}
	if first.ID == second.ID {
		t.Fatalf("Upload() reused id %q", first.ID)
	}
	if data, _ := backend.Open(first.ID); string(data) != "one" {
		t.Fatalf("first attachment overwritten: %q", data)
	}
}

func TestLocalBackendRejectsTraversal(t *testing.T) {
	backend, err := NewLocalBackend(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewLocalBackend() error = %v", err)
	}
	for _, name := range []string{"../secret", "a/b", "", ".hidden"} {
		if _, err := backend.Open(name); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("Open(%q) error = %v, want ErrInvalidName", name, err)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := []struct{ in, want string }{
		{"a.jpg", "a.jpg"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\me\pic 1.png`, "pic_1.png"},
		{"صورة.jpg", "____.jpg"},
		{"...", "file"},
	}
	for _, tc := range cases {
		if got := SanitizeFilename(tc.in); got != tc.want {
			t.Fatalf("SanitizeFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
