package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/tartansystems/tartan_backend/config"
	"github.com/tartansystems/tartan_backend/models"
	"github.com/tartansystems/tartan_backend/utils"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

type KeyChangeRequest struct {
	Entity string `json:"entity" validate:"required,oneof=GL DR CR gl dr cr"`
	OldKey string `json:"old_key" validate:"required"`
	NewKey string `json:"new_key" validate:"required"`
	// SkipChangeLog suppresses master auditing for bulk and import driven changes.
	SkipChangeLog bool `json:"skip_change_log"`
}

type TableChange struct {
	Table  string `json:"table"`
	Rows   int64  `json:"rows"`
	Merged int64  `json:"merged,omitempty"`
}

type CascadeResult struct {
	Entity        string               `json:"entity"`
	Mode          models.KeyChangeMode `json:"mode"`
	OldKey        string               `json:"old_key"`
	NewKey        string               `json:"new_key"`
	NoOp          bool                 `json:"no_op"`
	TargetExisted bool                 `json:"target_existed"`
	Tables        []TableChange        `json:"tables"`
	ChangeLogRows int                  `json:"change_log_rows"`
	CorrelationId string               `json:"correlation_id,omitempty"`
}

// RenumberEntity moves a master record and every reference to it onto a new, unused key.
func RenumberEntity(ctx context.Context, s *Session, req KeyChangeRequest) (*CascadeResult, error) {
	return changeEntityKey(ctx, s, req, models.ModeRenumber)
}

// MergeEntity folds the old key into the new one. Period balances under both keys are summed.
func MergeEntity(ctx context.Context, s *Session, req KeyChangeRequest) (*CascadeResult, error) {
	return changeEntityKey(ctx, s, req, models.ModeMerge)
}

func parseKeyChange(company int, req KeyChangeRequest) (models.Entity, models.EntityKey, models.EntityKey, error) {
	var oldKey, newKey models.EntityKey
	if err := utils.ValidateStruct(req); err != nil {
		return models.Entity{}, oldKey, newKey, err
	}
	entity, ok := models.LookupEntity(req.Entity)
	if !ok {
		return entity, oldKey, newKey, fmt.Errorf("unknown entity %q", req.Entity)
	}
	oldKey, err := entity.ParseKey(company, req.OldKey)
	if err != nil {
		return entity, oldKey, newKey, err
	}
	newKey, err = entity.ParseKey(company, req.NewKey)
	if err != nil {
		return entity, oldKey, newKey, err
	}
	return entity, oldKey, newKey, nil
}

func changeEntityKey(ctx context.Context, s *Session, req KeyChangeRequest, mode models.KeyChangeMode) (*CascadeResult, error) {
	logger := config.GetLogger()
	if s == nil || s.Closed() {
		return nil, utils.ErrSessionClosed
	}

	entity, oldKey, newKey, err := parseKeyChange(s.Company(), req)
	if err != nil {
		return nil, err
	}
	result := &CascadeResult{
		Entity:        entity.Code,
		Mode:          mode,
		OldKey:        oldKey.String(),
		NewKey:        newKey.String(),
		CorrelationId: s.CorrelationId(),
	}
	// Same key: nothing to validate, nothing to write.
	if oldKey.Equal(newKey) {
		result.NoOp = true
		return result, nil
	}

	ctx, span := tracer.Start(ctx, "KeyChange."+string(mode), trace.WithAttributes(
		attribute.String("entity", entity.Code),
		attribute.Int("company", s.Company()),
		attribute.String("old_key", oldKey.String()),
		attribute.String("new_key", newKey.String()),
	))
	defer span.End()

	tx := s.Tx().WithContext(ctx)

	if err := models.ValidateOldKey(ctx, tx, entity, oldKey); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if err := models.ValidateNewKey(ctx, tx, entity, newKey, mode); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if mode == models.ModeMerge {
		result.TargetExisted, err = models.MasterExists(ctx, tx, entity, newKey)
		if err != nil {
			return nil, cascadeFailure(ctx, s, entity.MasterTable, entity, newKey, err)
		}
	}

	before, err := takeRow(ctx, tx, entity.MasterTable, entity.MasterWhere(oldKey))
	if err != nil {
		return nil, cascadeFailure(ctx, s, entity.MasterTable, entity, newKey, err)
	}

	refs, err := models.ActiveReferences(ctx, tx, entity)
	if err != nil {
		return nil, cascadeFailure(ctx, s, "ftable", entity, newKey, err)
	}

	operatorId, _ := utils.GetOperatorIdFromContext(ctx)
	operatorName, _ := utils.GetOperatorNameFromContext(ctx)
	for _, ref := range refs {
		change, err := cascadeReference(ctx, tx, ref, oldKey, newKey, mode)
		if err != nil {
			return nil, cascadeFailure(ctx, s, ref.Table, entity, newKey, err)
		}
		result.Tables = append(result.Tables, change)
		s.record(ref.Table, change.Rows)
		logger.WithFields(logrus.Fields{
			"field":          "changeEntityKey",
			"mode":           mode,
			"entity":         entity.Code,
			"table":          change.Table,
			"rows":           change.Rows,
			"merged":         change.Merged,
			"operator":       operatorId,
			"operator_name":  operatorName,
			"correlation_id": s.CorrelationId(),
		}).Info("cascaded key change")
	}

	masterChange, err := changeMaster(ctx, tx, entity, oldKey, newKey, mode, result.TargetExisted)
	if err != nil {
		return nil, cascadeFailure(ctx, s, entity.MasterTable, entity, newKey, err)
	}
	result.Tables = append(result.Tables, masterChange)
	s.record(entity.MasterTable, masterChange.Rows)

	if !req.SkipChangeLog {
		n, err := auditMaster(ctx, tx, entity, oldKey, newKey, mode, before)
		if err != nil {
			return nil, cascadeFailure(ctx, s, "chglog", entity, newKey, err)
		}
		result.ChangeLogRows = n
		s.record("chglog", int64(n))
	}
	return result, nil
}

// auditMaster writes the master record's field changes. A renumber compares the row before
// and after; a merge records the key columns that differ between the two keys.
func auditMaster(ctx context.Context, tx *gorm.DB, entity models.Entity, oldKey, newKey models.EntityKey, mode models.KeyChangeMode, before map[string]interface{}) (int, error) {
	if mode == models.ModeMerge {
		return models.SaveChangeLog(tx, entity.MasterTable, models.ChangeActionMerge, oldKey.RecordKey(),
			entity.MasterKeyValues(oldKey), entity.MasterKeyValues(newKey))
	}
	after, err := takeRow(ctx, tx, entity.MasterTable, entity.MasterWhere(newKey))
	if err != nil {
		return 0, err
	}
	return models.SaveChangeLog(tx, entity.MasterTable, models.ChangeActionUpdate, oldKey.RecordKey(), before, after)
}

// PreviewKeyChange counts the rows a renumber or merge would touch without writing.
func PreviewKeyChange(ctx context.Context, tx *gorm.DB, req KeyChangeRequest, mode models.KeyChangeMode) (*CascadeResult, error) {
	company, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || company <= 0 {
		return nil, errors.New("company is required")
	}
	entity, oldKey, newKey, err := parseKeyChange(company, req)
	if err != nil {
		return nil, err
	}
	result := &CascadeResult{Entity: entity.Code, Mode: mode, OldKey: oldKey.String(), NewKey: newKey.String()}
	if oldKey.Equal(newKey) {
		result.NoOp = true
		return result, nil
	}
	if err := models.ValidateOldKey(ctx, tx, entity, oldKey); err != nil {
		return nil, err
	}
	if err := models.ValidateNewKey(ctx, tx, entity, newKey, mode); err != nil {
		return nil, err
	}
	if mode == models.ModeMerge {
		if result.TargetExisted, err = models.MasterExists(ctx, tx, entity, newKey); err != nil {
			return nil, err
		}
	}

	refs, err := models.ActiveReferences(ctx, tx, entity)
	if err != nil {
		return nil, err
	}
	for _, ref := range refs {
		change, err := previewReference(ctx, tx, ref, oldKey, newKey, mode)
		if err != nil {
			return nil, err
		}
		result.Tables = append(result.Tables, change)
	}
	result.Tables = append(result.Tables, TableChange{Table: entity.MasterTable, Rows: 1})
	return result, nil
}
