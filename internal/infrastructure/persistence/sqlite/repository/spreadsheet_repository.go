package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cranesection/internal/errs"
	"cranesection/internal/infrastructure/persistence/sqlite/model"
	"cranesection/internal/ports"
)

// SpreadsheetRepository stores worksheets as relational rows. A spreadsheet is only a
// namespace here: opening one never fails as long as the database answers.
type SpreadsheetRepository struct {
	db  *gorm.DB
	uow ports.UnitOfWork
}

var _ ports.SpreadsheetOpener = (*SpreadsheetRepository)(nil)

func NewSpreadsheetRepository(db *gorm.DB, uow ports.UnitOfWork) *SpreadsheetRepository {
	return &SpreadsheetRepository{db: db, uow: uow}
}

func (r *SpreadsheetRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return r.db.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

func (r *SpreadsheetRepository) Open(ctx context.Context, name string) (ports.Spreadsheet, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("spreadsheet name is required")
	}

	sqlDB, err := r.db.DB()
	if err != nil {
		return nil, errs.Wrap(err, "get sql db")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, errs.Wrap(err, "ping database")
	}

	return &relationalSpreadsheet{repo: r, name: name}, nil
}

type relationalSpreadsheet struct {
	repo *SpreadsheetRepository
	name string
}

func (s *relationalSpreadsheet) Title() string { return s.name }

func (s *relationalSpreadsheet) LookupWorksheet(ctx context.Context, name string) (ports.Worksheet, bool, error) {
	db, err := s.repo.dbFromContext(ctx)
	if err != nil {
		return nil, false, err
	}

	var row model.Worksheet
	if err := db.Where("spreadsheet = ? AND name = ?", s.name, name).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, errs.Wrap(err, "query worksheet")
	}

	return &relationalWorksheet{repo: s.repo, id: row.WorksheetID, name: row.Name}, true, nil
}

func (s *relationalSpreadsheet) CreateWorksheet(ctx context.Context, name string, header []string) (ports.Worksheet, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("worksheet name is required")
	}

	var created *relationalWorksheet
	if err := s.repo.uow.WithTx(ctx, func(txCtx context.Context) error {
		db, err := s.repo.dbFromContext(txCtx)
		if err != nil {
			return err
		}

		row := model.Worksheet{
			Spreadsheet: s.name,
			Name:        name,
			CreatedAt:   nowUTCString(),
		}
		result := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if result.Error != nil {
			return errs.Wrap(result.Error, "insert worksheet")
		}
		if result.RowsAffected == 0 {
			return ports.ErrWorksheetExists
		}

		created = &relationalWorksheet{repo: s.repo, id: row.WorksheetID, name: name}
		if len(header) == 0 {
			return nil
		}
		return created.AppendRow(txCtx, header)
	}); err != nil {
		return nil, err
	}

	return created, nil
}

type relationalWorksheet struct {
	repo *SpreadsheetRepository
	id   uint64
	name string
}

var (
	_ ports.RowReplacer     = (*relationalWorksheet)(nil)
	_ ports.CheckedReplacer = (*relationalWorksheet)(nil)
)

func (w *relationalWorksheet) Name() string { return w.name }

func (w *relationalWorksheet) ReadHeader(ctx context.Context) ([]string, error) {
	db, err := w.repo.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.WorksheetRow
	if err := db.Where("worksheet_id = ?", w.id).Order("row_id asc").Limit(1).Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query header row")
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return decodeCells(rows[0].Cells)
}

func (w *relationalWorksheet) ReadAllRows(ctx context.Context) ([][]string, error) {
	db, err := w.repo.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.WorksheetRow
	if err := db.Where("worksheet_id = ?", w.id).Order("row_id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query worksheet rows")
	}

	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		cells, err := decodeCells(row.Cells)
		if err != nil {
			return nil, errs.Wrapf(err, "decode row %d", row.RowID)
		}
		out = append(out, cells)
	}
	return out, nil
}

func (w *relationalWorksheet) AppendRow(ctx context.Context, values []string) error {
	db, err := w.repo.dbFromContext(ctx)
	if err != nil {
		return err
	}

	row, err := newRow(w.id, values)
	if err != nil {
		return err
	}
	if err := db.Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert worksheet row")
	}
	return nil
}

func (w *relationalWorksheet) Clear(ctx context.Context) error {
	db, err := w.repo.dbFromContext(ctx)
	if err != nil {
		return err
	}

	if err := db.Where("worksheet_id = ?", w.id).Delete(&model.WorksheetRow{}).Error; err != nil {
		return errs.Wrap(err, "delete worksheet rows")
	}
	return nil
}

// ReplaceRows deletes and re-inserts all rows in one transaction.
func (w *relationalWorksheet) ReplaceRows(ctx context.Context, rows [][]string) error {
	return w.repo.uow.WithTx(ctx, func(txCtx context.Context) error {
		if err := w.Clear(txCtx); err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		db, err := w.repo.dbFromContext(txCtx)
		if err != nil {
			return err
		}

		batch := make([]model.WorksheetRow, 0, len(rows))
		for _, values := range rows {
			row, err := newRow(w.id, values)
			if err != nil {
				return err
			}
			batch = append(batch, row)
		}
		if err := db.CreateInBatches(&batch, 200).Error; err != nil {
			return errs.Wrap(err, "insert worksheet rows")
		}
		return nil
	})
}

// ReplaceRowsIf reads the rows, runs check and replaces them, all in one transaction.
func (w *relationalWorksheet) ReplaceRowsIf(ctx context.Context, rows [][]string, check func(current [][]string) error) error {
	return w.repo.uow.WithTx(ctx, func(txCtx context.Context) error {
		current, err := w.ReadAllRows(txCtx)
		if err != nil {
			return err
		}
		if err := check(current); err != nil {
			return err
		}
		return w.ReplaceRows(txCtx, rows)
	})
}

func newRow(worksheetID uint64, values []string) (model.WorksheetRow, error) {
	if values == nil {
		values = []string{}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return model.WorksheetRow{}, errs.Wrap(err, "encode row cells")
	}
	return model.WorksheetRow{
		WorksheetID: worksheetID,
		Cells:       datatypes.JSON(raw),
		WrittenAt:   nowUTCString(),
	}, nil
}

func decodeCells(raw datatypes.JSON) ([]string, error) {
	var cells []string
	if len(raw) == 0 {
		return []string{}, nil
	}
	if err := json.Unmarshal(raw, &cells); err != nil {
		return nil, errs.Wrap(err, "decode row cells")
	}
	if cells == nil {
		cells = []string{}
	}
	return cells, nil
}

func nowUTCString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
