package followup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"cranesection/internal/bootstrap/logging"
	domain "cranesection/internal/domain/followup"
	"cranesection/internal/errs"
	"cranesection/internal/infrastructure/export"
	"cranesection/internal/usecase/attachment"
	"cranesection/internal/usecase/recordstore"
)

// RecordStore is the part of recordstore.Store the service needs.
type RecordStore interface {
	EnsureSchema(ctx context.Context, header []string) error
	Append(ctx context.Context, rec recordstore.Record) error
	LoadAll(ctx context.Context) (recordstore.Table, error)
}

// AttachmentStore stores uploaded files. *attachment.Store satisfies it.
type AttachmentStore interface {
	Store(ctx context.Context, data []byte, filename string, mimeType string) (attachment.Attachment, error)
}

type Options struct {
	Header   []string
	Sections []string
	Now      func() time.Time
}

type Service struct {
	records     RecordStore
	attachments AttachmentStore
	header      []string
	sections    []string
	now         func() time.Time
}

// NewService wires the follow-up feature. attachments may be nil, in which case
// uploaded files are reported as not stored.
func NewService(records RecordStore, attachments AttachmentStore, opts Options) (*Service, error) {
	if records == nil {
		return nil, errors.New("record store is required")
	}
	header := opts.Header
	if len(header) == 0 {
		header = domain.DefaultHeader
	}
	if err := domain.ValidateHeader(header); err != nil {
		return nil, err
	}
	sections := opts.Sections
	if len(sections) == 0 {
		sections = domain.DefaultSections
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		records:     records,
		attachments: attachments,
		header:      append([]string(nil), header...),
		sections:    append([]string(nil), sections...),
		now:         now,
	}, nil
}

func (s *Service) Header() []string { return append([]string(nil), s.header...) }

func (s *Service) Sections() []string { return append([]string(nil), s.sections...) }

// File is an uploaded attachment waiting to be stored.
type File struct {
	Data     []byte
	Filename string
	MIMEType string
}

type SubmitInput struct {
	Followup domain.Followup
	Image    *File
	Audio    *File
}

// SubmitResult carries the saved follow-up and the attachments that did not persist.
type SubmitResult struct {
	Followup domain.Followup
	Warnings []string
}

func (s *Service) EnsureSchema(ctx context.Context) error {
	return s.records.EnsureSchema(ctx, s.header)
}

// Submit validates and saves one follow-up. A failed attachment upload does not
// stop the submission: the record is saved without its link and the failure is
// returned as a warning.
func (s *Service) Submit(ctx context.Context, input SubmitInput) (SubmitResult, error) {
	if ctx == nil {
		return SubmitResult{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return SubmitResult{}, errs.Wrap(err, "check context")
	}
	ctx = logging.WithAttrs(ctx, slog.String("component", "usecase.followup"))

	item, err := input.Followup.Normalize(s.now())
	if err != nil {
		return SubmitResult{}, errs.E(errs.KindValidation, "submit follow-up", err)
	}
	if err := item.Validate(s.sections); err != nil {
		return SubmitResult{}, errs.E(errs.KindValidation, "submit follow-up", err)
	}

	var warnings []string
	if input.Image != nil && len(input.Image.Data) > 0 {
		url, warning, err := s.storeAttachment(ctx, "image", input.Image)
		if err != nil {
			return SubmitResult{}, err
		}
		item.ImageURL = url
		warnings = appendWarning(warnings, warning)
	}
	if input.Audio != nil && len(input.Audio.Data) > 0 {
		url, warning, err := s.storeAttachment(ctx, "audio", input.Audio)
		if err != nil {
			return SubmitResult{}, err
		}
		item.AudioURL = url
		warnings = appendWarning(warnings, warning)
	}

	if err := s.records.EnsureSchema(ctx, s.header); err != nil {
		return SubmitResult{}, err
	}
	if err := s.records.Append(ctx, item.ToRecord(s.header)); err != nil {
		return SubmitResult{}, err
	}

	logging.Info(ctx, "follow-up submitted",
		slog.String("section", item.Section),
		slog.String("equipment", item.Equipment),
		slog.Int("warnings", len(warnings)),
	)
	return SubmitResult{Followup: item, Warnings: warnings}, nil
}

func (s *Service) storeAttachment(ctx context.Context, kind string, file *File) (string, string, error) {
	if s.attachments == nil {
		return "", fmt.Sprintf("%s %q was not saved: no attachment backend configured", kind, file.Filename), nil
	}
	stored, err := s.attachments.Store(ctx, file.Data, file.Filename, file.MIMEType)
	switch {
	case err == nil:
		return stored.URL, "", nil
	case errs.IsKind(err, errs.KindUpload):
		logging.Warn(ctx, "attachment not saved, submitting without it",
			slog.String("attachment", kind),
			slog.Any("err", errs.Loggable(err)),
		)
		return "", fmt.Sprintf("%s %q was not saved: %v", kind, file.Filename, err), nil
	default:
		return "", "", err
	}
}

func appendWarning(warnings []string, warning string) []string {
	if warning == "" {
		return warnings
	}
	return append(warnings, warning)
}

// List returns stored follow-ups in insertion order.
func (s *Service) List(ctx context.Context, filter domain.Filter) ([]domain.Followup, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}

	table, err := s.records.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]domain.Followup, 0, len(table.Records))
	for _, rec := range table.Records {
		item := domain.FromRecord(rec)
		if filter.Match(item) {
			items = append(items, item)
		}
	}
	return items, nil
}

func (s *Service) Report(ctx context.Context) (domain.Metrics, error) {
	items, err := s.List(ctx, domain.Filter{})
	if err != nil {
		return domain.Metrics{}, err
	}
	return domain.Summarize(items), nil
}

// Export writes every follow-up and the report metrics as an Excel workbook.
func (s *Service) Export(ctx context.Context, w io.Writer) error {
	items, err := s.List(ctx, domain.Filter{})
	if err != nil {
		return err
	}
	if err := export.WriteFollowups(w, s.header, items, domain.Summarize(items)); err != nil {
		return errs.Wrap(err, "export follow-ups")
	}
	logging.Info(logging.WithComponent(ctx, "usecase.followup"), "follow-ups exported", slog.Int("rows", len(items)))
	return nil
}
