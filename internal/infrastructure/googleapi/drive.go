package googleapi

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"cranesection/internal/errs"
	"cranesection/internal/ports"
)

// DriveBackend stores attachments as Drive files in one folder.
type DriveBackend struct {
	clients  ClientProvider
	folderID string
	opts     []option.ClientOption
}

var (
	_ ports.AttachmentBackend   = (*DriveBackend)(nil)
	_ ports.AttachmentPublisher = (*DriveBackend)(nil)
)

func NewDriveBackend(clients ClientProvider, folderID string, opts ...option.ClientOption) *DriveBackend {
	return &DriveBackend{clients: clients, folderID: strings.TrimSpace(folderID), opts: opts}
}

func (b *DriveBackend) Name() string { return "drive" }

func (b *DriveBackend) service(ctx context.Context) (*drive.Service, error) {
	client, err := b.clients.HTTPClient(ctx)
	if err != nil {
		return nil, err
	}
	opts := append([]option.ClientOption{option.WithHTTPClient(client)}, b.opts...)
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, errs.Wrap(err, "create drive service")
	}
	return svc, nil
}

func (b *DriveBackend) Upload(ctx context.Context, input ports.AttachmentUpload) (ports.UploadedAttachment, error) {
	if ctx == nil {
		return ports.UploadedAttachment{}, errors.New("context is required")
	}
	svc, err := b.service(ctx)
	if err != nil {
		return ports.UploadedAttachment{}, err
	}

	meta := &drive.File{Name: input.Filename, MimeType: input.MIMEType}
	if b.folderID != "" {
		meta.Parents = []string{b.folderID}
	}
	file, err := svc.Files.Create(meta).
		Media(bytes.NewReader(input.Data), googleapi.ContentType(input.MIMEType)).
		Fields("id, webViewLink").
		Context(ctx).
		Do()
	if err != nil {
		return ports.UploadedAttachment{}, errs.Wrap(err, "create drive file")
	}

	return ports.UploadedAttachment{ID: file.Id, URL: DirectLink(file.Id)}, nil
}

// SetPublic lets anyone with the link view the file.
func (b *DriveBackend) SetPublic(ctx context.Context, id string) error {
	svc, err := b.service(ctx)
	if err != nil {
		return err
	}
	_, err = svc.Permissions.Create(id, &drive.Permission{Role: "reader", Type: "anyone"}).Context(ctx).Do()
	if err != nil {
		return errs.Wrapf(err, "share drive file %s", id)
	}
	return nil
}

// DirectLink is a URL that serves the file content instead of the Drive viewer.
func DirectLink(id string) string {
	return "https://drive.google.com/uc?export=view&id=" + url.QueryEscape(id)
}
