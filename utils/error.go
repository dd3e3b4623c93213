package utils

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-sql-driver/mysql"
)

var ErrorRecordNotFound = errors.New("record not found")

var ErrSessionClosed = errors.New("session already committed or rolled back")

// InvalidKeyError is returned when a key does not name an existing master record
// or is malformed for its entity.
type InvalidKeyError struct {
	Entity string
	Key    string
	Reason string
}

func (e *InvalidKeyError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid %s key %s: %s", e.Entity, e.Key, e.Reason)
	}
	return fmt.Sprintf("invalid %s key %s: record does not exist", e.Entity, e.Key)
}

// DuplicateKeyError is returned when a renumber target already exists.
type DuplicateKeyError struct {
	Entity string
	Key    string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("%s key %s already exists", e.Entity, e.Key)
}

// CascadeError wraps a failure while re-pointing a dependent table.
type CascadeError struct {
	Table string
	Err   error
}

func (e *CascadeError) Error() string {
	return fmt.Sprintf("cascade on %s failed: %v", e.Table, e.Err)
}

func (e *CascadeError) Unwrap() error { return e.Err }

// UnbalancedBatchError is returned when a journal batch does not net to zero.
type UnbalancedBatchError struct {
	BatchNo    string
	Difference string
}

func (e *UnbalancedBatchError) Error() string {
	return fmt.Sprintf("batch %s is out of balance by %s", e.BatchNo, e.Difference)
}

// InvalidInputError lists the struct fields that failed validation and the failing tag.
type InvalidInputError struct {
	Fields map[string]string
}

func (e *InvalidInputError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, tag := range e.Fields {
		parts = append(parts, field+" "+tag)
	}
	sort.Strings(parts)
	return "invalid input: " + strings.Join(parts, ", ")
}

// IsMySQLDuplicate reports a MySQL ER_DUP_ENTRY (1062).
func IsMySQLDuplicate(err error) bool {
	var mErr *mysql.MySQLError
	return errors.As(err, &mErr) && mErr.Number == 1062
}

// IsValidationError reports errors caused by operator input rather than the database.
func IsValidationError(err error) bool {
	var invalid *InvalidKeyError
	var dup *DuplicateKeyError
	var unbalanced *UnbalancedBatchError
	var input *InvalidInputError
	return errors.As(err, &invalid) || errors.As(err, &dup) || errors.As(err, &unbalanced) || errors.As(err, &input)
}
