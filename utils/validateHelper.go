package utils

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

var validate = validator.New()

// ValidateStruct runs `validate:"..."` tags; failures come back as *InvalidInputError.
func ValidateStruct(input interface{}) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}
	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return err
	}
	return &InvalidInputError{Fields: ProcessValidationErrors(err)}
}

func ProcessValidationErrors(err error) map[string]string {
	errorResponse := make(map[string]string)

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return errorResponse
	}
	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}
	return errorResponse
}

// TableCountWhere counts rows of a table matching every column/value pair in where.
func TableCountWhere(ctx context.Context, tx *gorm.DB, table string, where map[string]interface{}) (int64, error) {
	var count int64
	if err := tx.WithContext(ctx).Table(table).Where(where).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ValidateRowExists returns ErrorRecordNotFound when no row matches.
func ValidateRowExists(ctx context.Context, tx *gorm.DB, table string, where map[string]interface{}) error {
	count, err := TableCountWhere(ctx, tx, table, where)
	if err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}
	return nil
}
