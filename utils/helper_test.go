package utils

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDecimal(t *testing.T) {
	cases := []struct {
		in   interface{}
		want string
	}{
		{nil, "0"},
		{int64(500), "500"},
		{int(7), "7"},
		{float64(120.5), "120.5"},
		{[]byte("300.25"), "300.25"},
		{"1,234.50", "1234.5"},
		{decimal.RequireFromString("9.99"), "9.99"},
	}
	for _, c := range cases {
		got, err := ToDecimal(c.in)
		require.NoError(t, err, "%T", c.in)
		assert.Equal(t, c.want, got.String(), "%T", c.in)
	}

	_, err := ToDecimal(struct{}{})
	assert.Error(t, err)
	_, err = ParseDecimal("  ")
	assert.Error(t, err)
}

func TestUniqueSliceAndDereference(t *testing.T) {
	assert.Equal(t, []string{"genbal", "gentrn"}, UniqueSlice([]string{"genbal", "gentrn", "genbal"}))
	assert.Equal(t, 3, DereferencePtr[int](nil, 3))
	assert.True(t, DereferencePtr(NewTrue()))
	assert.False(t, DereferencePtr(NewFalse(), true))
}

func TestValidationErrorClassification(t *testing.T) {
	assert.True(t, IsValidationError(&InvalidKeyError{Entity: "GL", Key: "1"}))
	assert.True(t, IsValidationError(fmt.Errorf("wrapped: %w", &DuplicateKeyError{Entity: "GL", Key: "1"})))
	assert.True(t, IsValidationError(&UnbalancedBatchError{BatchNo: "B1", Difference: "1.00"}))
	assert.False(t, IsValidationError(&CascadeError{Table: "genbal", Err: errors.New("disk full")}))
	assert.False(t, IsValidationError(ErrorRecordNotFound))

	dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
	assert.True(t, IsMySQLDuplicate(&CascadeError{Table: "genbud", Err: dup}))
	assert.False(t, IsMySQLDuplicate(&mysql.MySQLError{Number: 1213}))
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "invalid GL key 2999: record does not exist", (&InvalidKeyError{Entity: "GL", Key: "2999"}).Error())
	assert.Equal(t, "DR key 3,ACME02 already exists", (&DuplicateKeyError{Entity: "DR", Key: "3,ACME02"}).Error())
	assert.Equal(t, "invalid input: Entity required, OldKey required",
		(&InvalidInputError{Fields: map[string]string{"OldKey": "required", "Entity": "required"}}).Error())
}

type sampleInput struct {
	Entity string `validate:"required,oneof=GL DR CR"`
	Level  int    `validate:"lte=9"`
}

func TestValidateStruct(t *testing.T) {
	require.NoError(t, ValidateStruct(sampleInput{Entity: "GL", Level: 9}))

	err := ValidateStruct(sampleInput{Entity: "ST", Level: 10})
	var invalid *InvalidInputError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, map[string]string{"Entity": "oneof", "Level": "lte"}, invalid.Fields)
}
