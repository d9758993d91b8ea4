package model

import "gorm.io/datatypes"

type Worksheet struct {
	WorksheetID uint64 `gorm:"column:worksheet_id;primaryKey;autoIncrement"`
	Spreadsheet string `gorm:"column:spreadsheet;type:text;not null;uniqueIndex:idx_worksheets_spreadsheet_name"`
	Name        string `gorm:"column:name;type:text;not null;uniqueIndex:idx_worksheets_spreadsheet_name"`
	CreatedAt   string `gorm:"column:created_at;type:text;not null"`
}

func (Worksheet) TableName() string {
	return "worksheets"
}

// WorksheetRow holds one spreadsheet row; Cells is a JSON array of strings.
// Row order is the row_id order.
type WorksheetRow struct {
	RowID       uint64         `gorm:"column:row_id;primaryKey;autoIncrement"`
	WorksheetID uint64         `gorm:"column:worksheet_id;not null;index"`
	Cells       datatypes.JSON `gorm:"column:cells;not null"`
	WrittenAt   string         `gorm:"column:written_at;type:text;not null"`
}

func (WorksheetRow) TableName() string {
	return "worksheet_rows"
}
