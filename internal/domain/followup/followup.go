package followup

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// TimestampLayout is how follow-up timestamps are written to the store.
const TimestampLayout = "2006-01-02 15:04:05"

const (
	FieldTimestamp  = "timestamp"
	FieldSection    = "section"
	FieldEquipment  = "equipment"
	FieldProblem    = "problem"
	FieldNote       = "note"
	FieldItemCodes  = "item_codes"
	FieldImageURL   = "image_url"
	FieldAudioURL   = "audio_url"
	FieldReportedBy = "reported_by"
	FieldResolvedBy = "resolved_by"
	FieldStatus     = "status"
)

// DefaultHeader is the stored column order of the follow-up worksheet.
var DefaultHeader = []string{
	FieldTimestamp,
	FieldSection,
	FieldEquipment,
	FieldProblem,
	FieldNote,
	FieldItemCodes,
	FieldImageURL,
	FieldAudioURL,
	FieldReportedBy,
	FieldResolvedBy,
	FieldStatus,
}

// RequiredFields must be non-blank on every submission.
var RequiredFields = []string{FieldSection, FieldEquipment, FieldProblem, FieldReportedBy}

var DefaultSections = []string{"RTG", "ARTG", "STS", "Spreader"}

type Status string

const (
	StatusOpen    Status = "Open"
	StatusPending Status = "Pending"
	StatusClosed  Status = "Closed"
)

var Statuses = []Status{StatusOpen, StatusPending, StatusClosed}

// ParseStatus accepts any casing; blank means Open.
func ParseStatus(raw string) (Status, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return StatusOpen, nil
	}
	for _, status := range Statuses {
		if strings.EqualFold(trimmed, string(status)) {
			return status, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
}

// Followup is one equipment fault report.
type Followup struct {
	Timestamp  string
	Section    string
	Equipment  string
	Problem    string
	Note       string
	ItemCodes  string
	ImageURL   string
	AudioURL   string
	ReportedBy string
	ResolvedBy string
	Status     Status
}

// Normalize trims every field, fills the timestamp from now when blank and defaults
// the status.
func (f Followup) Normalize(now time.Time) (Followup, error) {
	f.Timestamp = strings.TrimSpace(f.Timestamp)
	f.Section = strings.TrimSpace(f.Section)
	f.Equipment = strings.TrimSpace(f.Equipment)
	f.Problem = strings.TrimSpace(f.Problem)
	f.Note = strings.TrimSpace(f.Note)
	f.ItemCodes = strings.TrimSpace(f.ItemCodes)
	f.ImageURL = strings.TrimSpace(f.ImageURL)
	f.AudioURL = strings.TrimSpace(f.AudioURL)
	f.ReportedBy = strings.TrimSpace(f.ReportedBy)
	f.ResolvedBy = strings.TrimSpace(f.ResolvedBy)

	if f.Timestamp == "" {
		f.Timestamp = now.Format(TimestampLayout)
	}
	status, err := ParseStatus(string(f.Status))
	if err != nil {
		return Followup{}, err
	}
	f.Status = status
	return f, nil
}

// Validate checks required fields and the section list. An empty sections list
// accepts any section.
func (f Followup) Validate(sections []string) error {
	var missing []string
	for _, field := range RequiredFields {
		if strings.TrimSpace(f.Field(field)) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingField, strings.Join(missing, ", "))
	}
	if len(sections) > 0 && !slices.Contains(sections, f.Section) {
		return fmt.Errorf("%w: %q", ErrUnknownSection, f.Section)
	}
	if _, err := ParseStatus(string(f.Status)); err != nil {
		return err
	}
	return nil
}

// Field returns the value stored under a header field name.
func (f Followup) Field(name string) string {
	switch name {
	case FieldTimestamp:
		return f.Timestamp
	case FieldSection:
		return f.Section
	case FieldEquipment:
		return f.Equipment
	case FieldProblem:
		return f.Problem
	case FieldNote:
		return f.Note
	case FieldItemCodes:
		return f.ItemCodes
	case FieldImageURL:
		return f.ImageURL
	case FieldAudioURL:
		return f.AudioURL
	case FieldReportedBy:
		return f.ReportedBy
	case FieldResolvedBy:
		return f.ResolvedBy
	case FieldStatus:
		return string(f.Status)
	default:
		return ""
	}
}

func (f *Followup) setField(name string, value string) {
	switch name {
	case FieldTimestamp:
		f.Timestamp = value
	case FieldSection:
		f.Section = value
	case FieldEquipment:
		f.Equipment = value
	case FieldProblem:
		f.Problem = value
	case FieldNote:
		f.Note = value
	case FieldItemCodes:
		f.ItemCodes = value
	case FieldImageURL:
		f.ImageURL = value
	case FieldAudioURL:
		f.AudioURL = value
	case FieldReportedBy:
		f.ReportedBy = value
	case FieldResolvedBy:
		f.ResolvedBy = value
	case FieldStatus:
		f.Status = Status(value)
	}
}

// ToRecord returns the values of f for every field in header.
func (f Followup) ToRecord(header []string) map[string]string {
	out := make(map[string]string, len(header))
	for _, field := range header {
		out[field] = f.Field(field)
	}
	return out
}

// FromRecord builds a follow-up from stored cells. Unknown columns are ignored.
// "issue", "picture_url" and "voice_url" are read as aliases written by older sheets;
// an alias only fills a field whose own column is absent or empty.
func FromRecord(rec map[string]string) Followup {
	var f Followup
	for _, field := range DefaultHeader {
		if value, ok := rec[field]; ok {
			f.setField(field, value)
		}
	}
	for _, alias := range legacyAliases {
		if f.Field(alias.field) != "" {
			continue
		}
		if value, ok := rec[alias.name]; ok {
			f.setField(alias.field, value)
		}
	}
	return f
}

var legacyAliases = []struct{ name, field string }{
	{name: "issue", field: FieldProblem},
	{name: "picture_url", field: FieldImageURL},
	{name: "voice_url", field: FieldAudioURL},
}

// ValidateHeader accepts a reordering or subset of DefaultHeader that keeps the
// required fields.
func ValidateHeader(header []string) error {
	if len(header) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidHeader)
	}
	seen := make(map[string]struct{}, len(header))
	for _, field := range header {
		if !slices.Contains(DefaultHeader, field) {
			return fmt.Errorf("%w: %q", ErrUnknownField, field)
		}
		if _, dup := seen[field]; dup {
			return fmt.Errorf("%w: duplicate %q", ErrInvalidHeader, field)
		}
		seen[field] = struct{}{}
	}
	for _, field := range RequiredFields {
		if _, ok := seen[field]; !ok {
			return fmt.Errorf("%w: required field %q missing", ErrInvalidHeader, field)
		}
	}
	return nil
}

// Filter selects follow-ups by section and status; blank values match everything.
type Filter struct {
	Section string
	Status  Status
}

func (flt Filter) Match(f Followup) bool {
	if flt.Section != "" && !strings.EqualFold(flt.Section, f.Section) {
		return false
	}
	if flt.Status != "" && !strings.EqualFold(string(flt.Status), string(f.Status)) {
		return false
	}
	return true
}
