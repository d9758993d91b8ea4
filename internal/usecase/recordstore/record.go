package recordstore

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"cranesection/internal/errs"
)

var (
	ErrInvalidHeader        = errors.New("invalid header")
	ErrMissingFields        = errors.New("record is missing header fields")
	ErrUnknownFields        = errors.New("record has fields outside the header")
	ErrSchemaMismatch       = errors.New("stored header does not match expected header")
	ErrSchemaNotInitialized = errors.New("worksheet has no header row")
	ErrVersionConflict      = errors.New("worksheet changed since it was loaded")
)

// Record maps header field names to cell values.
type Record map[string]string

// Table is the parsed content of a worksheet.
type Table struct {
	Header  []string
	Records []Record
}

// Values returns the cells of rec in header order. Every header field must be present
// and no other field may be set.
func (rec Record) Values(header []string) ([]string, error) {
	inHeader := make(map[string]struct{}, len(header))
	values := make([]string, len(header))
	var missing []string
	for i, field := range header {
		inHeader[field] = struct{}{}
		value, ok := rec[field]
		if !ok {
			missing = append(missing, field)
			continue
		}
		values[i] = value
	}

	var unknown []string
	for field := range rec {
		if _, ok := inHeader[field]; !ok {
			unknown = append(unknown, field)
		}
	}
	sort.Strings(unknown)

	switch {
	case len(missing) > 0:
		return nil, errs.E(errs.KindValidation, "map record", fmt.Errorf("%w: %s", ErrMissingFields, strings.Join(missing, ", ")))
	case len(unknown) > 0:
		return nil, errs.E(errs.KindValidation, "map record", fmt.Errorf("%w: %s", ErrUnknownFields, strings.Join(unknown, ", ")))
	}
	return values, nil
}

// Clone returns an independent copy.
func (rec Record) Clone() Record {
	out := make(Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}

func parseRow(header []string, row []string) Record {
	rec := make(Record, len(header))
	for i, field := range header {
		if i < len(row) {
			rec[field] = row[i]
		} else {
			rec[field] = ""
		}
	}
	return rec
}

func validateHeader(header []string) error {
	if len(header) == 0 {
		return errs.E(errs.KindValidation, "validate header", fmt.Errorf("%w: empty", ErrInvalidHeader))
	}
	seen := make(map[string]struct{}, len(header))
	for i, field := range header {
		if strings.TrimSpace(field) == "" {
			return errs.E(errs.KindValidation, "validate header", fmt.Errorf("%w: column %d is blank", ErrInvalidHeader, i+1))
		}
		if _, dup := seen[field]; dup {
			return errs.E(errs.KindValidation, "validate header", fmt.Errorf("%w: duplicate column %q", ErrInvalidHeader, field))
		}
		seen[field] = struct{}{}
	}
	return nil
}

func sameHeader(a, b []string) bool {
	a, b = trimTrailingBlank(a), trimTrailingBlank(b)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Fingerprint hashes the rows of a worksheet. Trailing blank cells are ignored since
// Sheets drops them on read.
func Fingerprint(rows [][]string) string {
	digest := xxhash.New()
	for _, row := range rows {
		for _, cell := range trimTrailingBlank(row) {
			_, _ = digest.WriteString(strconv.Itoa(len(cell)))
			_, _ = digest.WriteString(":")
			_, _ = digest.WriteString(cell)
		}
		_, _ = digest.WriteString("\n")
	}
	return fmt.Sprintf("%016x", digest.Sum64())
}

func trimTrailingBlank(row []string) []string {
	end := len(row)
	for end > 0 && row[end-1] == "" {
		end--
	}
	return row[:end]
}
