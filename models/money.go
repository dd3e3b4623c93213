package models

import (
	"reflect"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Money is a ledger amount column. MySQL stores it as decimal(20,2); SQLite stores the
// decimal text, since its numeric affinity keeps large amounts as 64-bit floats.
type Money struct {
	decimal.Decimal
}

var moneyType = reflect.TypeOf(Money{})

func NewMoney(d decimal.Decimal) Money {
	return Money{Decimal: d}
}

func (Money) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	if db.Dialector.Name() == "sqlite" {
		return "text"
	}
	return "decimal(20,2)"
}
