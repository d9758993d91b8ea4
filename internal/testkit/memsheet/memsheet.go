// Package memsheet is an in-memory ports.SpreadsheetOpener for tests. It behaves like
// a spreadsheet API without atomic replace: rewrites go through Clear + AppendRow.
package memsheet

import (
	"context"
	"errors"
	"sync"

	"cranesection/internal/ports"
)

var ErrUnavailable = errors.New("spreadsheet backend unavailable")

type Opener struct {
	mu          sync.Mutex
	books       map[string]*Book
	Unavailable bool
	// Hanging makes Open block until its context is done.
	Hanging bool
}

var _ ports.SpreadsheetOpener = (*Opener)(nil)

func New() *Opener {
	return &Opener{books: make(map[string]*Book)}
}

func (o *Opener) Open(ctx context.Context, name string) (ports.Spreadsheet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Hanging {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if o.Unavailable {
		return nil, ErrUnavailable
	}
	book, ok := o.books[name]
	if !ok {
		book = &Book{title: name, sheets: make(map[string]*Sheet)}
		o.books[name] = book
	}
	return book, nil
}

// Sheet returns the named worksheet of a spreadsheet, nil when absent.
func (o *Opener) Sheet(book string, name string) *Sheet {
	o.mu.Lock()
	b, ok := o.books[book]
	o.mu.Unlock()
	if !ok {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sheets[name]
}

type Book struct {
	mu     sync.Mutex
	title  string
	sheets map[string]*Sheet
}

func (b *Book) Title() string { return b.title }

func (b *Book) LookupWorksheet(ctx context.Context, name string) (ports.Worksheet, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	sheet, ok := b.sheets[name]
	if !ok {
		return nil, false, nil
	}
	return sheet, true, nil
}

func (b *Book) CreateWorksheet(ctx context.Context, name string, header []string) (ports.Worksheet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.sheets[name]; ok {
		return nil, ports.ErrWorksheetExists
	}
	sheet := &Sheet{name: name}
	if len(header) > 0 {
		sheet.rows = [][]string{append([]string(nil), header...)}
	}
	b.sheets[name] = sheet
	return sheet, nil
}

type Sheet struct {
	mu        sync.Mutex
	name      string
	rows      [][]string
	Mutations int
	// FailAppend makes AppendRow fail, for error path tests.
	FailAppend error
	hang       bool
}

func (s *Sheet) Name() string { return s.name }

// Hang makes every read and write block until its context is done, like a backend
// that stopped answering.
func (s *Sheet) Hang() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hang = true
}

func (s *Sheet) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	hang := s.hang
	s.mu.Unlock()
	if !hang {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *Sheet) ReadHeader(ctx context.Context) ([]string, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.rows) == 0 {
		return nil, nil
	}
	return append([]string(nil), s.rows[0]...), nil
}

func (s *Sheet) ReadAllRows(ctx context.Context) ([][]string, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return s.Rows(), nil
}

func (s *Sheet) AppendRow(ctx context.Context, values []string) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailAppend != nil {
		return s.FailAppend
	}
	s.rows = append(s.rows, append([]string(nil), values...))
	s.Mutations++
	return nil
}

func (s *Sheet) Clear(ctx context.Context) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = nil
	s.Mutations++
	return nil
}

// Rows returns a copy of every row, header included.
func (s *Sheet) Rows() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, 0, len(s.rows))
	for _, row := range s.rows {
		out = append(out, append([]string(nil), row...))
	}
	return out
}

// SetRows replaces the content without counting a mutation.
func (s *Sheet) SetRows(rows [][]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = nil
	for _, row := range rows {
		s.rows = append(s.rows, append([]string(nil), row...))
	}
}
