package reports

import (
	"context"
	"fmt"
	"io"

	"github.com/tartansystems/tartan_backend/models"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

const changeLogSheet = "ChangeLog"

var changeLogHeadings = []string{"Seq", "Table", "Action", "Record", "Column", "Date", "Operator", "Old Value", "New Value"}

type ChangeLogResponse struct {
	Seq      int    `json:"seq"`
	Table    string `json:"table"`
	Action   string `json:"action"`
	Record   string `json:"record"`
	Column   string `json:"column"`
	Date     string `json:"date"`
	Operator string `json:"operator"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
}

func (r ChangeLogResponse) GetCellValues() []interface{} {
	return []interface{}{r.Seq, r.Table, r.Action, r.Record, r.Column, r.Date, r.Operator, r.OldValue, r.NewValue}
}

func GetChangeLogReport(ctx context.Context, tx *gorm.DB, filter models.ChangeLogFilter) ([]*ChangeLogResponse, error) {
	rows, err := models.ListChangeLogs(ctx, tx, filter)
	if err != nil {
		return nil, err
	}
	records := make([]*ChangeLogResponse, 0, len(rows))
	for _, r := range rows {
		records = append(records, &ChangeLogResponse{
			Seq:      r.ChgSeq,
			Table:    r.ChgTab,
			Action:   r.ChgAct,
			Record:   r.ChgKey,
			Column:   r.ChgCol,
			Date:     r.ChgDte.Format("2006-01-02 15:04:05"),
			Operator: r.ChgUsr,
			OldValue: r.ChgOld,
			NewValue: r.ChgNew,
		})
	}
	return records, nil
}

// WriteChangeLogXlsx renders the report as a single sheet workbook.
func WriteChangeLogXlsx(w io.Writer, records []*ChangeLogResponse) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", changeLogSheet); err != nil {
		return err
	}
	for i, h := range changeLogHeadings {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(changeLogSheet, cell, h); err != nil {
			return err
		}
	}
	for rowNo, r := range records {
		for colNo, v := range r.GetCellValues() {
			cell, err := excelize.CoordinatesToCellName(colNo+1, rowNo+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(changeLogSheet, cell, v); err != nil {
				return fmt.Errorf("write %s: %w", cell, err)
			}
		}
	}
	return f.Write(w)
}
