package recordstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"cranesection/internal/bootstrap/logging"
	"cranesection/internal/errs"
	"cranesection/internal/ports"
)

type SchemaPolicy string

const (
	// SchemaStrict refuses to touch a worksheet whose data rows sit under another header.
	SchemaStrict SchemaPolicy = "strict"
	// SchemaReset clears the worksheet and writes the expected header.
	SchemaReset SchemaPolicy = "reset"
)

const defaultTimeout = 30 * time.Second

type Options struct {
	Spreadsheet  string
	Worksheet    string
	SchemaPolicy SchemaPolicy
	Timeout      time.Duration
}

// Store is the tabular record store bound to one worksheet. Calls on the same Store
// run one at a time.
type Store struct {
	opener ports.SpreadsheetOpener
	opts   Options
	mu     sync.Mutex
}

func New(opener ports.SpreadsheetOpener, opts Options) (*Store, error) {
	if opener == nil {
		return nil, errors.New("spreadsheet opener is required")
	}
	opts.Spreadsheet = strings.TrimSpace(opts.Spreadsheet)
	opts.Worksheet = strings.TrimSpace(opts.Worksheet)
	if opts.Spreadsheet == "" {
		return nil, errors.New("spreadsheet is required")
	}
	if opts.Worksheet == "" {
		return nil, errors.New("worksheet is required")
	}
	switch opts.SchemaPolicy {
	case "":
		opts.SchemaPolicy = SchemaStrict
	case SchemaStrict, SchemaReset:
	default:
		return nil, fmt.Errorf("unknown schema policy %q", opts.SchemaPolicy)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	return &Store{opener: opener, opts: opts}, nil
}

func (s *Store) Worksheet() string { return s.opts.Worksheet }

// EnsureSchema makes header the first row of the worksheet, creating the worksheet
// when needed. Calling it again with the same header changes nothing.
func (s *Store) EnsureSchema(ctx context.Context, header []string) error {
	if err := validateHeader(header); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel, err := s.begin(ctx, "ensure_schema")
	if err != nil {
		return err
	}
	defer cancel()

	ws, created, err := s.resolveOrCreate(ctx, header)
	if err != nil {
		return err
	}
	if created {
		logging.Info(ctx, "worksheet created", slog.Int("columns", len(header)))
		return nil
	}

	current, err := ws.ReadHeader(ctx)
	if err != nil {
		return errs.E(errs.KindStore, "read header", err)
	}
	if sameHeader(current, header) {
		return nil
	}

	rows, err := ws.ReadAllRows(ctx)
	if err != nil {
		return errs.E(errs.KindStore, "read rows", err)
	}
	if len(rows) == 0 {
		if err := ws.AppendRow(ctx, header); err != nil {
			return errs.E(errs.KindStore, "write header", err)
		}
		logging.Info(ctx, "header written to empty worksheet")
		return nil
	}
	if len(rows) > 1 && s.opts.SchemaPolicy != SchemaReset {
		return errs.E(errs.KindSchema, "ensure schema", fmt.Errorf(
			"%w: worksheet %q has %d data rows under [%s], expected [%s]; run migrate or set store.schema_policy=reset",
			ErrSchemaMismatch, s.opts.Worksheet, len(rows)-1, strings.Join(current, ", "), strings.Join(header, ", "),
		))
	}

	if len(rows) > 1 {
		logging.Warn(ctx, "schema mismatch, resetting worksheet",
			slog.Int("discarded_rows", len(rows)-1),
			slog.Any("stored_header", current),
		)
	}
	if err := replaceRows(ctx, ws, [][]string{header}); err != nil {
		return errs.E(errs.KindStore, "rewrite header", err)
	}
	return nil
}

// Migrate moves every data row onto header, matching columns by name. Columns absent
// from the old header become empty; columns absent from the new header are dropped.
func (s *Store) Migrate(ctx context.Context, header []string) error {
	if err := validateHeader(header); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel, err := s.begin(ctx, "migrate")
	if err != nil {
		return err
	}
	defer cancel()

	ws, created, err := s.resolveOrCreate(ctx, header)
	if err != nil || created {
		return err
	}

	rows, err := ws.ReadAllRows(ctx)
	if err != nil {
		return errs.E(errs.KindStore, "read rows", err)
	}

	out := make([][]string, 0, max(len(rows), 1))
	out = append(out, header)
	if len(rows) > 0 {
		oldHeader := rows[0]
		for _, row := range rows[1:] {
			rec := parseRow(oldHeader, row)
			values := make([]string, len(header))
			for i, field := range header {
				values[i] = rec[field]
			}
			out = append(out, values)
		}
	}

	if err := replaceRows(ctx, ws, out); err != nil {
		return errs.E(errs.KindStore, "rewrite rows", err)
	}
	logging.Info(ctx, "worksheet migrated", slog.Int("rows", len(out)-1))
	return nil
}

// Append writes rec as a new row in the order of the stored header.
func (s *Store) Append(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel, err := s.begin(ctx, "append")
	if err != nil {
		return err
	}
	defer cancel()

	ws, found, err := s.lookup(ctx)
	if err != nil {
		return err
	}
	if !found {
		return errs.E(errs.KindSchema, "append", fmt.Errorf("%w: worksheet %q does not exist", ErrSchemaNotInitialized, s.opts.Worksheet))
	}

	header, err := ws.ReadHeader(ctx)
	if err != nil {
		return errs.E(errs.KindStore, "read header", err)
	}
	header = trimTrailingBlank(header)
	if len(header) == 0 {
		return errs.E(errs.KindSchema, "append", fmt.Errorf("%w: %q", ErrSchemaNotInitialized, s.opts.Worksheet))
	}

	values, err := rec.Values(header)
	if err != nil {
		return err
	}
	if err := ws.AppendRow(ctx, values); err != nil {
		return errs.E(errs.KindStore, "append row", err)
	}

	logging.Debug(ctx, "row appended")
	return nil
}

// LoadAll returns every row after the header, keyed by header field. A missing or
// header-only worksheet yields an empty table.
func (s *Store) LoadAll(ctx context.Context) (Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel, err := s.begin(ctx, "load_all")
	if err != nil {
		return Table{}, err
	}
	defer cancel()

	table, _, err := s.load(ctx)
	return table, err
}

// LoadAllWithVersion is LoadAll plus the version token of the content it returned.
func (s *Store) LoadAllWithVersion(ctx context.Context) (Table, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel, err := s.begin(ctx, "load_all")
	if err != nil {
		return Table{}, "", err
	}
	defer cancel()

	return s.load(ctx)
}

func (s *Store) load(ctx context.Context) (Table, string, error) {
	ws, found, err := s.lookup(ctx)
	if err != nil {
		return Table{}, "", err
	}
	if !found {
		return Table{}, Fingerprint(nil), nil
	}

	rows, err := ws.ReadAllRows(ctx)
	if err != nil {
		return Table{}, "", errs.E(errs.KindStore, "read rows", err)
	}
	version := Fingerprint(rows)
	if len(rows) == 0 {
		return Table{}, version, nil
	}

	header := trimTrailingBlank(rows[0])
	table := Table{
		Header:  append([]string(nil), header...),
		Records: make([]Record, 0, len(rows)-1),
	}
	for _, row := range rows[1:] {
		table.Records = append(table.Records, parseRow(header, row))
	}

	logging.Debug(ctx, "rows loaded", slog.Int("rows", len(table.Records)))
	return table, version, nil
}

// Version returns the token OverwriteAll compares against.
func (s *Store) Version(ctx context.Context) (string, error) {
	_, version, err := s.LoadAllWithVersion(ctx)
	return version, err
}

// OverwriteAll replaces the worksheet with header followed by rows, in order. When
// expectedVersion is set and the stored content no longer matches it, nothing is
// written and a conflict error is returned. The new version is returned.
func (s *Store) OverwriteAll(ctx context.Context, header []string, rows []Record, expectedVersion string) (string, error) {
	if err := validateHeader(header); err != nil {
		return "", err
	}
	out := make([][]string, 0, len(rows)+1)
	out = append(out, append([]string(nil), header...))
	for i, rec := range rows {
		values, err := rec.Values(header)
		if err != nil {
			return "", errs.Wrapf(err, "row %d", i+1)
		}
		out = append(out, values)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel, err := s.begin(ctx, "overwrite_all")
	if err != nil {
		return "", err
	}
	defer cancel()

	ws, _, err := s.resolveOrCreate(ctx, header)
	if err != nil {
		return "", err
	}

	if err := s.writeIfVersion(ctx, ws, out, expectedVersion); err != nil {
		if errs.IsKind(err, errs.KindConflict) {
			return "", err
		}
		return "", errs.E(errs.KindStore, "rewrite rows", err)
	}

	logging.Info(ctx, "worksheet overwritten", slog.Int("rows", len(rows)))
	return Fingerprint(out), nil
}

// writeIfVersion replaces the rows when the stored content still matches
// expectedVersion. Backends that support it compare and write in one transaction.
func (s *Store) writeIfVersion(ctx context.Context, ws ports.Worksheet, rows [][]string, expectedVersion string) error {
	if expectedVersion == "" {
		return replaceRows(ctx, ws, rows)
	}

	check := func(current [][]string) error {
		if got := Fingerprint(current); got != expectedVersion {
			logging.Warn(ctx, "overwrite rejected, version changed",
				slog.String("expected_version", expectedVersion),
				slog.String("current_version", got),
			)
			return errs.E(errs.KindConflict, "overwrite all", ErrVersionConflict)
		}
		return nil
	}

	if replacer, ok := ws.(ports.CheckedReplacer); ok {
		return replacer.ReplaceRowsIf(ctx, rows, check)
	}

	current, err := ws.ReadAllRows(ctx)
	if err != nil {
		return errs.Wrap(err, "read rows")
	}
	if err := check(current); err != nil {
		return err
	}
	return replaceRows(ctx, ws, rows)
}

func (s *Store) begin(ctx context.Context, op string) (context.Context, context.CancelFunc, error) {
	if ctx == nil {
		return nil, nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, errs.Wrap(err, "check context")
	}

	ctx = logging.WithAttrs(ctx,
		slog.String("component", "usecase.recordstore"),
		slog.String("worksheet", s.opts.Worksheet),
		slog.String("op", op),
	)
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	return ctx, cancel, nil
}

func (s *Store) open(ctx context.Context) (ports.Spreadsheet, error) {
	book, err := s.opener.Open(ctx, s.opts.Spreadsheet)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, errs.E(errs.KindStore, "open spreadsheet", err)
		}
		return nil, errs.E(errs.KindConnection, "open spreadsheet", err)
	}
	return book, nil
}

func (s *Store) lookup(ctx context.Context) (ports.Worksheet, bool, error) {
	book, err := s.open(ctx)
	if err != nil {
		return nil, false, err
	}
	ws, found, err := book.LookupWorksheet(ctx, s.opts.Worksheet)
	if err != nil {
		return nil, false, errs.E(errs.KindStore, "lookup worksheet", err)
	}
	return ws, found, nil
}

// resolveOrCreate returns the worksheet, creating it with header when missing. A
// concurrent creator winning the race is not an error.
func (s *Store) resolveOrCreate(ctx context.Context, header []string) (ports.Worksheet, bool, error) {
	book, err := s.open(ctx)
	if err != nil {
		return nil, false, err
	}

	ws, found, err := book.LookupWorksheet(ctx, s.opts.Worksheet)
	if err != nil {
		return nil, false, errs.E(errs.KindStore, "lookup worksheet", err)
	}
	if found {
		return ws, false, nil
	}

	ws, createErr := book.CreateWorksheet(ctx, s.opts.Worksheet, header)
	if createErr == nil {
		return ws, true, nil
	}

	ws, found, err = book.LookupWorksheet(ctx, s.opts.Worksheet)
	if err == nil && found {
		logging.Debug(ctx, "worksheet created concurrently", slog.Any("err", errs.Loggable(createErr)))
		return ws, false, nil
	}
	return nil, false, errs.E(errs.KindStore, "create worksheet", createErr)
}

func replaceRows(ctx context.Context, ws ports.Worksheet, rows [][]string) error {
	if replacer, ok := ws.(ports.RowReplacer); ok {
		return replacer.ReplaceRows(ctx, rows)
	}

	if err := ws.Clear(ctx); err != nil {
		return errs.Wrap(err, "clear worksheet")
	}
	for i, row := range rows {
		if err := ws.AppendRow(ctx, row); err != nil {
			return errs.Wrapf(err, "write row %d", i+1)
		}
	}
	return nil
}
