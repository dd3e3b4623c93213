package models

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tartansystems/tartan_backend/utils"
	"gorm.io/gorm"
)

const (
	ChangeActionUpdate = "U"
	ChangeActionMerge  = "M"
)

// ChangeLog is one field level before/after record of a master change.
type ChangeLog struct {
	ChgSeq int       `gorm:"column:chg_seq;primaryKey;autoIncrement" json:"chg_seq"`
	ChgTab string    `gorm:"column:chg_tab;size:20;index;not null" json:"chg_tab"`
	ChgAct string    `gorm:"column:chg_act;size:1;not null" json:"chg_act"`
	ChgKey string    `gorm:"column:chg_key;size:255;index;not null" json:"chg_key"`
	ChgCol string    `gorm:"column:chg_col;size:40;not null" json:"chg_col"`
	ChgDte time.Time `gorm:"column:chg_dte;index;not null" json:"chg_dte"`
	ChgUsr string    `gorm:"column:chg_usr;size:20;not null" json:"chg_usr"`
	ChgOld string    `gorm:"column:chg_old;type:text" json:"chg_old"`
	ChgNew string    `gorm:"column:chg_new;type:text" json:"chg_new"`
}

func (ChangeLog) TableName() string { return "chglog" }

// chglog is append-only.

func (c *ChangeLog) BeforeUpdate(tx *gorm.DB) error {
	return errors.New("append-only audit log: chglog rows cannot be updated")
}

func (c *ChangeLog) BeforeDelete(tx *gorm.DB) error {
	return errors.New("append-only audit log: chglog rows cannot be deleted")
}

type ColumnChange struct {
	Column string
	Old    string
	New    string
}

// DiffColumns returns one entry per column whose rendered value differs, sorted by column.
// A column missing on one side renders as the empty string.
func DiffColumns(before, after map[string]interface{}) []ColumnChange {
	columns := make(map[string]bool, len(before)+len(after))
	for col := range before {
		columns[col] = true
	}
	for col := range after {
		columns[col] = true
	}
	names := make([]string, 0, len(columns))
	for col := range columns {
		names = append(names, col)
	}
	sort.Strings(names)

	var changes []ColumnChange
	for _, col := range names {
		oldValue := RenderValue(before[col])
		newValue := RenderValue(after[col])
		if oldValue == newValue {
			continue
		}
		changes = append(changes, ColumnChange{Column: col, Old: oldValue, New: newValue})
	}
	return changes
}

func RenderValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(val)
	case string:
		return val
	case time.Time:
		return val.Format("2006-01-02 15:04:05")
	case decimal.Decimal:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// SaveChangeLog appends one chglog row per differing column and returns the number written.
// The operator comes from the statement context.
func SaveChangeLog(tx *gorm.DB, table string, action string, recordKey string, before, after map[string]interface{}) (int, error) {
	ctx := tx.Statement.Context
	operatorId, ok := utils.GetOperatorIdFromContext(ctx)
	if !ok || operatorId == "" {
		return 0, errors.New("operator id is required")
	}

	changes := DiffColumns(before, after)
	if len(changes) == 0 {
		return 0, nil
	}

	now := time.Now()
	rows := make([]ChangeLog, 0, len(changes))
	for _, c := range changes {
		rows = append(rows, ChangeLog{
			ChgTab: table,
			ChgAct: action,
			ChgKey: recordKey,
			ChgCol: c.Column,
			ChgDte: now,
			ChgUsr: operatorId,
			ChgOld: c.Old,
			ChgNew: c.New,
		})
	}
	if err := tx.Create(&rows).Error; err != nil {
		return 0, err
	}
	return len(rows), nil
}

type ChangeLogFilter struct {
	Company int
	Table   string
	From    *time.Time
	To      *time.Time
}

// ListChangeLogs returns chglog rows for a company ordered by sequence.
func ListChangeLogs(ctx context.Context, tx *gorm.DB, filter ChangeLogFilter) ([]ChangeLog, error) {
	if filter.Company <= 0 {
		return nil, errors.New("company is required")
	}
	q := tx.WithContext(ctx).Model(&ChangeLog{}).Where("chg_key LIKE ?", fmt.Sprintf("%03d|%%", filter.Company))
	if filter.Table != "" {
		q = q.Where("chg_tab = ?", filter.Table)
	}
	if filter.From != nil {
		q = q.Where("chg_dte >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("chg_dte <= ?", *filter.To)
	}
	var rows []ChangeLog
	if err := q.Order("chg_seq").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
