package utils

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/shopspring/decimal"
	"github.com/tartansystems/tartan_backend/config"
)

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

func UniqueSlice[T comparable](slice []T) []T {
	seen := make(map[T]struct{}, len(slice))
	out := make([]T, 0, len(slice))
	for _, v := range slice {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func DereferencePtr[T any](ptr *T, defaults ...T) T {
	if ptr != nil {
		return *ptr
	}
	var zero T
	if len(defaults) > 0 {
		return defaults[0]
	}
	return zero
}

// ToDecimal converts a column value read into a map (driver dependent type) to a decimal.
func ToDecimal(v interface{}) (decimal.Decimal, error) {
	switch val := v.(type) {
	case nil:
		return decimal.Zero, nil
	case decimal.Decimal:
		return val, nil
	case *decimal.Decimal:
		if val == nil {
			return decimal.Zero, nil
		}
		return *val, nil
	case float64:
		return decimal.NewFromFloat(val), nil
	case float32:
		return decimal.NewFromFloat32(val), nil
	case int64:
		return decimal.NewFromInt(val), nil
	case int:
		return decimal.NewFromInt(int64(val)), nil
	case int32:
		return decimal.NewFromInt32(val), nil
	case []byte:
		return ParseDecimal(string(val))
	case string:
		return ParseDecimal(val)
	default:
		return decimal.Zero, fmt.Errorf("cannot convert %T to decimal", v)
	}
}

func ParseDecimal(value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(strings.ReplaceAll(value, ",", ""))
	if value == "" {
		return decimal.Zero, errors.New("empty decimal string")
	}
	return decimal.NewFromString(value)
}

// CompanyLock obtains the redis lock guarding a company's posting session.
// Returns (nil, nil) when Redis is not connected; the database lock still applies.
func CompanyLock(ctx context.Context, company int, lockType string, ttl time.Duration) (*redislock.Lock, error) {
	logger := config.GetLogger()
	locker := config.GetRedisLock()
	if locker == nil {
		return nil, nil
	}
	lockKey := fmt.Sprintf("%s:%d", lockType, company)
	lock, err := locker.Obtain(ctx, lockKey, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		config.LogError(logger, "helper.go", "CompanyLock", "Could not obtain lock for company", company, err)
		return nil, fmt.Errorf("company %d is locked by another session", company)
	} else if err != nil {
		config.LogError(logger, "helper.go", "CompanyLock", "Error obtaining lock for company", company, err)
		return nil, err
	}
	return lock, nil
}
