package googleapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"cranesection/internal/errs"
	"cranesection/internal/ports"
)

const valueInputRaw = "RAW"

// SheetsBackend opens spreadsheets by id through the Sheets v4 API.
type SheetsBackend struct {
	clients ClientProvider
	opts    []option.ClientOption
}

var _ ports.SpreadsheetOpener = (*SheetsBackend)(nil)

// NewSheetsBackend takes extra client options, used to point tests at a local server.
func NewSheetsBackend(clients ClientProvider, opts ...option.ClientOption) *SheetsBackend {
	return &SheetsBackend{clients: clients, opts: opts}
}

func (b *SheetsBackend) service(ctx context.Context) (*sheets.Service, error) {
	client, err := b.clients.HTTPClient(ctx)
	if err != nil {
		return nil, err
	}
	opts := append([]option.ClientOption{option.WithHTTPClient(client)}, b.opts...)
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, errs.Wrap(err, "create sheets service")
	}
	return svc, nil
}

func (b *SheetsBackend) Open(ctx context.Context, spreadsheetID string) (ports.Spreadsheet, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("spreadsheet id is required")
	}

	svc, err := b.service(ctx)
	if err != nil {
		return nil, err
	}
	book, err := svc.Spreadsheets.Get(spreadsheetID).Fields("properties.title").Context(ctx).Do()
	if err != nil {
		return nil, errs.Wrapf(err, "open spreadsheet %s", spreadsheetID)
	}

	title := spreadsheetID
	if book.Properties != nil && book.Properties.Title != "" {
		title = book.Properties.Title
	}
	return &sheetsSpreadsheet{svc: svc, id: spreadsheetID, title: title}, nil
}

type sheetsSpreadsheet struct {
	svc   *sheets.Service
	id    string
	title string
}

func (s *sheetsSpreadsheet) Title() string { return s.title }

func (s *sheetsSpreadsheet) LookupWorksheet(ctx context.Context, name string) (ports.Worksheet, bool, error) {
	book, err := s.svc.Spreadsheets.Get(s.id).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return nil, false, errs.Wrap(err, "list worksheets")
	}
	for _, sheet := range book.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == name {
			return &sheetsWorksheet{svc: s.svc, spreadsheetID: s.id, name: name}, true, nil
		}
	}
	return nil, false, nil
}

func (s *sheetsSpreadsheet) CreateWorksheet(ctx context.Context, name string, header []string) (ports.Worksheet, error) {
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: name}},
		}},
	}
	if _, err := s.svc.Spreadsheets.BatchUpdate(s.id, req).Context(ctx).Do(); err != nil {
		if isAlreadyExists(err) {
			return nil, ports.ErrWorksheetExists
		}
		return nil, errs.Wrapf(err, "add worksheet %s", name)
	}

	ws := &sheetsWorksheet{svc: s.svc, spreadsheetID: s.id, name: name}
	if len(header) > 0 {
		if err := ws.AppendRow(ctx, header); err != nil {
			return nil, errs.Wrap(err, "write header")
		}
	}
	return ws, nil
}

func isAlreadyExists(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == http.StatusBadRequest && strings.Contains(apiErr.Message, "already exists")
}

type sheetsWorksheet struct {
	svc           *sheets.Service
	spreadsheetID string
	name          string
}

var _ ports.RowReplacer = (*sheetsWorksheet)(nil)

func (w *sheetsWorksheet) Name() string { return w.name }

// a1 quotes the worksheet name for A1 notation, doubling embedded quotes.
func (w *sheetsWorksheet) a1(suffix string) string {
	quoted := "'" + strings.ReplaceAll(w.name, "'", "''") + "'"
	if suffix == "" {
		return quoted
	}
	return quoted + "!" + suffix
}

func (w *sheetsWorksheet) ReadHeader(ctx context.Context) ([]string, error) {
	resp, err := w.svc.Spreadsheets.Values.Get(w.spreadsheetID, w.a1("1:1")).Context(ctx).Do()
	if err != nil {
		return nil, errs.Wrap(err, "read header")
	}
	rows := toStrings(resp.Values)
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (w *sheetsWorksheet) ReadAllRows(ctx context.Context) ([][]string, error) {
	resp, err := w.svc.Spreadsheets.Values.Get(w.spreadsheetID, w.a1("")).Context(ctx).Do()
	if err != nil {
		return nil, errs.Wrap(err, "read rows")
	}
	return toStrings(resp.Values), nil
}

func (w *sheetsWorksheet) AppendRow(ctx context.Context, values []string) error {
	body := &sheets.ValueRange{Values: [][]interface{}{toCells(values)}}
	_, err := w.svc.Spreadsheets.Values.Append(w.spreadsheetID, w.a1("A1"), body).
		ValueInputOption(valueInputRaw).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return errs.Wrap(err, "append row")
	}
	return nil
}

func (w *sheetsWorksheet) Clear(ctx context.Context) error {
	if _, err := w.svc.Spreadsheets.Values.Clear(w.spreadsheetID, w.a1(""), &sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return errs.Wrap(err, "clear worksheet")
	}
	return nil
}

// ReplaceRows clears the worksheet and writes rows from A1 in one update call.
func (w *sheetsWorksheet) ReplaceRows(ctx context.Context, rows [][]string) error {
	if err := w.Clear(ctx); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	body := &sheets.ValueRange{Values: make([][]interface{}, 0, len(rows))}
	for _, row := range rows {
		body.Values = append(body.Values, toCells(row))
	}
	_, err := w.svc.Spreadsheets.Values.Update(w.spreadsheetID, w.a1("A1"), body).
		ValueInputOption(valueInputRaw).
		Context(ctx).
		Do()
	if err != nil {
		return errs.Wrap(err, "write rows")
	}
	return nil
}

func toCells(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func toStrings(values [][]interface{}) [][]string {
	out := make([][]string, 0, len(values))
	for _, row := range values {
		cells := make([]string, len(row))
		for i, cell := range row {
			if cell != nil {
				cells[i] = fmt.Sprint(cell)
			}
		}
		out = append(out, cells)
	}
	return out
}
