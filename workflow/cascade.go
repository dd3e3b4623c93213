package workflow

import (
	"context"
	"sort"
	"strings"

	"github.com/tartansystems/tartan_backend/config"
	"github.com/tartansystems/tartan_backend/models"
	"github.com/tartansystems/tartan_backend/utils"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

// cascadeReference re-points every row of one reference table from oldKey to newKey.
func cascadeReference(ctx context.Context, tx *gorm.DB, ref models.ReferenceTable, oldKey, newKey models.EntityKey, mode models.KeyChangeMode) (TableChange, error) {
	if mode == models.ModeMerge && ref.IsBalance() {
		return mergeBalances(ctx, tx, ref, oldKey, newKey)
	}
	change := TableChange{Table: ref.Label()}
	res := tx.WithContext(ctx).Table(ref.Table).Where(ref.Where(oldKey)).Updates(ref.KeyValues(newKey))
	if res.Error != nil {
		return change, res.Error
	}
	change.Rows = res.RowsAffected
	return change, nil
}

// mergeBalances walks the old key's balance rows in period order. A period already held by
// newKey gets the old amounts added and the old row deleted; otherwise the row is re-pointed.
func mergeBalances(ctx context.Context, tx *gorm.DB, ref models.ReferenceTable, oldKey, newKey models.EntityKey) (TableChange, error) {
	change := TableChange{Table: ref.Label()}

	var rows []map[string]interface{}
	err := tx.WithContext(ctx).Table(ref.Table).
		Where(ref.Where(oldKey)).
		Order(strings.Join(ref.PeriodColumns, ", ")).
		Find(&rows).Error
	if err != nil {
		return change, err
	}

	for _, row := range rows {
		oldWhere := withPeriod(ref.Where(oldKey), ref, row)
		newWhere := withPeriod(ref.Where(newKey), ref, row)

		var targets []map[string]interface{}
		if err := tx.WithContext(ctx).Table(ref.Table).Where(newWhere).Limit(1).Find(&targets).Error; err != nil {
			return change, err
		}
		if len(targets) == 0 {
			res := tx.WithContext(ctx).Table(ref.Table).Where(oldWhere).Updates(ref.KeyValues(newKey))
			if res.Error != nil {
				return change, res.Error
			}
			change.Rows += res.RowsAffected
			continue
		}

		updates := make(map[string]interface{}, len(ref.AmountColumns))
		for _, col := range ref.AmountColumns {
			existing, err := utils.ToDecimal(targets[0][col])
			if err != nil {
				return change, err
			}
			moved, err := utils.ToDecimal(row[col])
			if err != nil {
				return change, err
			}
			updates[col] = existing.Add(moved)
		}
		if err := tx.WithContext(ctx).Table(ref.Table).Where(newWhere).Updates(updates).Error; err != nil {
			return change, err
		}
		n, err := deleteRows(ctx, tx, ref.Table, oldWhere)
		if err != nil {
			return change, err
		}
		change.Rows += n
		change.Merged++
	}
	return change, nil
}

// changeMaster renumbers the master record, or on a merge into an existing target deletes it.
func changeMaster(ctx context.Context, tx *gorm.DB, entity models.Entity, oldKey, newKey models.EntityKey, mode models.KeyChangeMode, targetExists bool) (TableChange, error) {
	change := TableChange{Table: entity.MasterTable}
	where := entity.MasterWhere(oldKey)
	if mode == models.ModeMerge && targetExists {
		n, err := deleteRows(ctx, tx, entity.MasterTable, where)
		change.Rows = n
		return change, err
	}
	res := tx.WithContext(ctx).Table(entity.MasterTable).Where(where).Updates(entity.MasterKeyValues(newKey))
	if res.Error != nil {
		return change, res.Error
	}
	change.Rows = res.RowsAffected
	return change, nil
}

func previewReference(ctx context.Context, tx *gorm.DB, ref models.ReferenceTable, oldKey, newKey models.EntityKey, mode models.KeyChangeMode) (TableChange, error) {
	change := TableChange{Table: ref.Label()}
	count, err := utils.TableCountWhere(ctx, tx, ref.Table, ref.Where(oldKey))
	if err != nil {
		return change, err
	}
	change.Rows = count
	if mode != models.ModeMerge || !ref.IsBalance() || count == 0 {
		return change, nil
	}

	var rows []map[string]interface{}
	if err := tx.WithContext(ctx).Table(ref.Table).Select(ref.PeriodColumns).Where(ref.Where(oldKey)).Find(&rows).Error; err != nil {
		return change, err
	}
	for _, row := range rows {
		n, err := utils.TableCountWhere(ctx, tx, ref.Table, withPeriod(ref.Where(newKey), ref, row))
		if err != nil {
			return change, err
		}
		if n > 0 {
			change.Merged++
		}
	}
	return change, nil
}

func withPeriod(where map[string]interface{}, ref models.ReferenceTable, row map[string]interface{}) map[string]interface{} {
	for _, col := range ref.PeriodColumns {
		where[col] = row[col]
	}
	return where
}

func takeRow(ctx context.Context, tx *gorm.DB, table string, where map[string]interface{}) (map[string]interface{}, error) {
	var rows []map[string]interface{}
	if err := tx.WithContext(ctx).Table(table).Where(where).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, utils.ErrorRecordNotFound
	}
	return rows[0], nil
}

// deleteRows deletes by column equality; table names come from the static registry.
func deleteRows(ctx context.Context, tx *gorm.DB, table string, where map[string]interface{}) (int64, error) {
	columns := make([]string, 0, len(where))
	for col := range where {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	conditions := make([]string, len(columns))
	args := make([]interface{}, len(columns))
	for i, col := range columns {
		conditions[i] = col + " = ?"
		args[i] = where[col]
	}
	res := tx.WithContext(ctx).Exec("DELETE FROM "+table+" WHERE "+strings.Join(conditions, " AND "), args...)
	return res.RowsAffected, res.Error
}

// cascadeFailure rolls the whole session back and wraps err with the failing table.
func cascadeFailure(ctx context.Context, s *Session, table string, entity models.Entity, newKey models.EntityKey, err error) error {
	logger := config.GetLogger()
	if utils.IsMySQLDuplicate(err) {
		err = &utils.DuplicateKeyError{Entity: entity.Code, Key: newKey.String()}
	}
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	config.LogError(logger, "cascade.go", "cascadeFailure", "cascade on "+table, map[string]interface{}{
		"entity":         entity.Code,
		"new_key":        newKey.String(),
		"correlation_id": s.CorrelationId(),
	}, err)
	if rbErr := s.Rollback(); rbErr != nil {
		config.LogError(logger, "cascade.go", "cascadeFailure", "Rollback", table, rbErr)
	}
	return &utils.CascadeError{Table: table, Err: err}
}
