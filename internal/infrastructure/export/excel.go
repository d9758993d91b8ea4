package export

import (
	"errors"
	"io"

	"github.com/xuri/excelize/v2"

	"cranesection/internal/domain/followup"
	"cranesection/internal/errs"
)

const (
	FollowupsSheet = "Followups"
	SummarySheet   = "Summary"

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// WriteFollowups writes a workbook with every follow-up under header and a summary
// sheet with the report metrics.
func WriteFollowups(w io.Writer, header []string, items []followup.Followup, metrics followup.Metrics) (err error) {
	if w == nil {
		return errors.New("writer is required")
	}
	if len(header) == 0 {
		header = followup.DefaultHeader
	}

	f := excelize.NewFile()
	defer func() {
		if closeErr := f.Close(); err == nil && closeErr != nil {
			err = errs.Wrap(closeErr, "close workbook")
		}
	}()

	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), FollowupsSheet); err != nil {
		return errs.Wrap(err, "rename sheet")
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return errs.Wrap(err, "create header style")
	}

	rows := make([][]any, 0, len(items)+1)
	headerRow := make([]any, len(header))
	for i, field := range header {
		headerRow[i] = field
	}
	rows = append(rows, headerRow)
	for _, item := range items {
		row := make([]any, len(header))
		for i, field := range header {
			row[i] = item.Field(field)
		}
		rows = append(rows, row)
	}
	if err := writeRows(f, FollowupsSheet, rows); err != nil {
		return err
	}
	if err := styleHeader(f, FollowupsSheet, len(header), bold); err != nil {
		return err
	}
	if err := f.SetColWidth(FollowupsSheet, "A", lastColumn(len(header)), 18); err != nil {
		return errs.Wrap(err, "set column width")
	}

	if _, err := f.NewSheet(SummarySheet); err != nil {
		return errs.Wrap(err, "create summary sheet")
	}
	summary := [][]any{
		{"metric", "value"},
		{"Total Follow-ups", metrics.Total},
		{"Sections", metrics.UniqueSections},
		{"Reported By (Unique)", metrics.UniqueReporters},
	}
	for _, c := range metrics.ByStatus {
		summary = append(summary, []any{"Status: " + c.Key, c.Count})
	}
	for _, c := range metrics.BySection {
		summary = append(summary, []any{"Section: " + c.Key, c.Count})
	}
	if err := writeRows(f, SummarySheet, summary); err != nil {
		return err
	}
	if err := styleHeader(f, SummarySheet, 2, bold); err != nil {
		return err
	}
	if err := f.SetColWidth(SummarySheet, "A", "A", 26); err != nil {
		return errs.Wrap(err, "set column width")
	}

	if _, err := f.WriteTo(w); err != nil {
		return errs.Wrap(err, "write workbook")
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for r, row := range rows {
		for c, value := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return errs.Wrap(err, "cell name")
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return errs.Wrapf(err, "set %s!%s", sheet, cell)
			}
		}
	}
	return nil
}

func styleHeader(f *excelize.File, sheet string, columns int, style int) error {
	if columns == 0 {
		return nil
	}
	end, err := excelize.CoordinatesToCellName(columns, 1)
	if err != nil {
		return errs.Wrap(err, "cell name")
	}
	if err := f.SetCellStyle(sheet, "A1", end, style); err != nil {
		return errs.Wrap(err, "style header")
	}
	return nil
}

func lastColumn(n int) string {
	name, err := excelize.ColumnNumberToName(max(n, 1))
	if err != nil {
		return "A"
	}
	return name
}
