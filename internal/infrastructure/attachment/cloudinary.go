package attachment

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"

	"cranesection/internal/errs"
	"cranesection/internal/ports"
)

// CloudinaryUploader is the part of the Cloudinary upload API the backend uses.
type CloudinaryUploader interface {
	Upload(ctx context.Context, file interface{}, uploadParams uploader.UploadParams) (*uploader.UploadResult, error)
}

type CloudinaryBackend struct {
	uploader CloudinaryUploader
	folder   string
}

var _ ports.AttachmentBackend = (*CloudinaryBackend)(nil)

func NewCloudinaryBackend(cloudName, apiKey, apiSecret, folder string) (*CloudinaryBackend, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, errs.Wrap(err, "create cloudinary client")
	}
	return NewCloudinaryBackendWithUploader(&cld.Upload, folder), nil
}

func NewCloudinaryBackendWithUploader(up CloudinaryUploader, folder string) *CloudinaryBackend {
	return &CloudinaryBackend{uploader: up, folder: strings.Trim(folder, "/")}
}

func (b *CloudinaryBackend) Name() string { return "cloudinary" }

func (b *CloudinaryBackend) Upload(ctx context.Context, input ports.AttachmentUpload) (ports.UploadedAttachment, error) {
	if ctx == nil {
		return ports.UploadedAttachment{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return ports.UploadedAttachment{}, errs.Wrap(err, "check context")
	}

	stem := strings.TrimSuffix(SanitizeFilename(input.Filename), filepath.Ext(input.Filename))
	params := uploader.UploadParams{
		PublicID:     stem + "-" + uuid.NewString()[:8],
		Folder:       b.folder,
		ResourceType: ResourceType(input.MIMEType),
		Tags:         api.CldAPIArray{"followup"},
	}

	result, err := b.uploader.Upload(ctx, bytes.NewReader(input.Data), params)
	if err != nil {
		return ports.UploadedAttachment{}, errs.Wrap(err, "cloudinary upload")
	}
	if result == nil {
		return ports.UploadedAttachment{}, errors.New("cloudinary upload returned no result")
	}
	if result.Error.Message != "" {
		return ports.UploadedAttachment{}, errors.New("cloudinary: " + result.Error.Message)
	}

	url := result.SecureURL
	if url == "" {
		url = result.URL
	}
	return ports.UploadedAttachment{ID: result.PublicID, URL: url}, nil
}

// ResourceType maps a MIME type to Cloudinary's resource types. Audio is stored as
// video, which is how Cloudinary handles it.
func ResourceType(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return "image"
	case strings.HasPrefix(mimeType, "video/"), strings.HasPrefix(mimeType, "audio/"):
		return "video"
	default:
		return "raw"
	}
}
