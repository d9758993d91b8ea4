package ports

import "context"

type AttachmentUpload struct {
	Data     []byte
	Filename string
	MIMEType string
}

type UploadedAttachment struct {
	ID  string
	URL string
}

// AttachmentBackend persists a blob and returns a durable link to it.
type AttachmentBackend interface {
	Name() string
	Upload(ctx context.Context, input AttachmentUpload) (UploadedAttachment, error)
}

// AttachmentPublisher is implemented by backends that need an explicit visibility step.
type AttachmentPublisher interface {
	SetPublic(ctx context.Context, id string) error
}
