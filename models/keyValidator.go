package models

import (
	"context"
	"fmt"

	"github.com/tartansystems/tartan_backend/utils"
	"gorm.io/gorm"
)

// ValidateKeyShape checks a key built outside ParseKey against the entity's key columns.
func ValidateKeyShape(entity Entity, key EntityKey) error {
	if key.Company <= 0 {
		return &utils.InvalidKeyError{Entity: entity.Code, Key: key.String(), Reason: "company is required"}
	}
	if len(key.Parts) != len(entity.KeyColumns) {
		return &utils.InvalidKeyError{
			Entity: entity.Code,
			Key:    key.String(),
			Reason: fmt.Sprintf("expected %d key part(s), got %d", len(entity.KeyColumns), len(key.Parts)),
		}
	}
	for i, part := range key.Parts {
		if part == nil || fmt.Sprint(part) == "" {
			return &utils.InvalidKeyError{Entity: entity.Code, Key: key.String(), Reason: entity.KeyColumns[i].Name + " is empty"}
		}
	}
	return nil
}

func MasterExists(ctx context.Context, tx *gorm.DB, entity Entity, key EntityKey) (bool, error) {
	count, err := utils.TableCountWhere(ctx, tx, entity.MasterTable, entity.MasterWhere(key))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ValidateOldKey fails with InvalidKeyError when no master record exists for key.
func ValidateOldKey(ctx context.Context, tx *gorm.DB, entity Entity, key EntityKey) error {
	if err := ValidateKeyShape(entity, key); err != nil {
		return err
	}
	exists, err := MasterExists(ctx, tx, entity, key)
	if err != nil {
		return err
	}
	if !exists {
		return &utils.InvalidKeyError{Entity: entity.Code, Key: key.String()}
	}
	return nil
}

// ValidateNewKey fails with DuplicateKeyError when renumbering onto an existing master.
// Merge targets may already exist.
func ValidateNewKey(ctx context.Context, tx *gorm.DB, entity Entity, key EntityKey, mode KeyChangeMode) error {
	if err := ValidateKeyShape(entity, key); err != nil {
		return err
	}
	if mode == ModeMerge {
		return nil
	}
	exists, err := MasterExists(ctx, tx, entity, key)
	if err != nil {
		return err
	}
	if exists {
		return &utils.DuplicateKeyError{Entity: entity.Code, Key: key.String()}
	}
	return nil
}
