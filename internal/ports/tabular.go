package ports

import (
	"context"
	"errors"
)

// ErrWorksheetExists is returned by CreateWorksheet when the name is taken.
var ErrWorksheetExists = errors.New("worksheet already exists")

// SpreadsheetOpener resolves a spreadsheet by id (Sheets) or name (relational backend).
type SpreadsheetOpener interface {
	Open(ctx context.Context, idOrName string) (Spreadsheet, error)
}

// Spreadsheet is a named collection of worksheets.
type Spreadsheet interface {
	Title() string
	// LookupWorksheet reports found=false (and a nil error) when the worksheet does not exist.
	LookupWorksheet(ctx context.Context, name string) (ws Worksheet, found bool, err error)
	// CreateWorksheet adds an empty worksheet and writes header as its first row.
	CreateWorksheet(ctx context.Context, name string, header []string) (Worksheet, error)
}

// Worksheet is an ordered list of rows; the first row is the header.
type Worksheet interface {
	Name() string
	// ReadHeader returns the first row, or nil when the worksheet is empty.
	ReadHeader(ctx context.Context) ([]string, error)
	// ReadAllRows returns every row including the header, in storage order.
	ReadAllRows(ctx context.Context) ([][]string, error)
	AppendRow(ctx context.Context, values []string) error
	Clear(ctx context.Context) error
}

// RowReplacer is implemented by worksheets that can swap their whole content at once.
type RowReplacer interface {
	ReplaceRows(ctx context.Context, rows [][]string) error
}

// CheckedReplacer swaps the content only when check accepts the rows read in the same
// transaction as the write. An error from check is returned unchanged.
type CheckedReplacer interface {
	ReplaceRowsIf(ctx context.Context, rows [][]string, check func(current [][]string) error) error
}
