// Package modeltest opens throwaway SQLite ledgers for package tests.
package modeltest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/tartansystems/tartan_backend/config"
	"github.com/tartansystems/tartan_backend/models"
	"github.com/tartansystems/tartan_backend/utils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	Company  = 1
	Operator = "tester"
)

// Open returns a migrated database with every module installed.
func Open(t *testing.T) *gorm.DB {
	t.Helper()
	return OpenModules(t)
}

// OpenModules returns a migrated database with only the named modules (plus ctl) installed.
func OpenModules(t *testing.T, modules ...string) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tartan.db")
	db, err := gorm.Open(sqlite.Open(path), config.GormConfig())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	config.InstallPlugins(db)

	require.NoError(t, models.MigrateModules(context.Background(), db, modules))
	return db
}

// Context carries the test company and operator.
func Context() context.Context {
	ctx := context.Background()
	ctx = utils.SetCompanyIdInContext(ctx, Company)
	ctx = utils.SetOperatorIdInContext(ctx, Operator)
	return ctx
}

func Amount(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func Money(v string) models.Money {
	return models.NewMoney(Amount(v))
}

func SeedGLAccount(t *testing.T, db *gorm.DB, acno int, desc string) {
	t.Helper()
	require.NoError(t, db.Create(&models.Genmst{GlmCono: Company, GlmAcno: acno, GlmDesc: desc, GlmType: "B", GlmInd: "D"}).Error)
}

func SeedBalance(t *testing.T, db *gorm.DB, acno int, period int, amount string) {
	t.Helper()
	require.NoError(t, db.Create(&models.Genbal{GloCono: Company, GloAcno: acno, GloTrdt: period, GloCyr: Money(amount)}).Error)
}

func SeedBudget(t *testing.T, db *gorm.DB, acno int, period int, amount string) {
	t.Helper()
	require.NoError(t, db.Create(&models.Genbud{GlbCono: Company, GlbAcno: acno, GlbCurdt: period, GlbTramt: Money(amount)}).Error)
}

func SeedGLTransaction(t *testing.T, db *gorm.DB, acno int, period int, amount string) {
	t.Helper()
	require.NoError(t, db.Create(&models.Gentrn{
		GltCono:  Company,
		GltAcno:  acno,
		GltCurdt: period,
		GltTrdt:  period*100 + 1,
		GltType:  models.GlTypeJournal,
		GltBatch: "SEED",
		GltTramt: Money(amount),
	}).Error)
}

func SeedControl(t *testing.T, db *gorm.DB, code string, acno int) {
	t.Helper()
	require.NoError(t, db.Create(&models.Ctlctl{CtlCono: Company, CtlCode: code, CtlDesc: code, CtlConacc: acno}).Error)
}

func SeedDebtor(t *testing.T, db *gorm.DB, chain int, acno string, name string) {
	t.Helper()
	require.NoError(t, db.Create(&models.Drsmst{DrmCono: Company, DrmChain: chain, DrmAcno: acno, DrmName: name}).Error)
}

func SeedDebtorTransaction(t *testing.T, db *gorm.DB, chain int, acno string, period int, amount string) {
	t.Helper()
	require.NoError(t, db.Create(&models.Drstrn{
		DrtCono:  Company,
		DrtChain: chain,
		DrtAcno:  acno,
		DrtType:  1,
		DrtRef1:  "INV1",
		DrtTrdt:  period*100 + 1,
		DrtCurdt: period,
		DrtTramt: Money(amount),
	}).Error)
}

func SeedCreditor(t *testing.T, db *gorm.DB, acno string, name string) {
	t.Helper()
	require.NoError(t, db.Create(&models.Crsmst{CrmCono: Company, CrmAcno: acno, CrmName: name}).Error)
}

// Snapshot reads every row of the tables in insertion order.
func Snapshot(t *testing.T, db *gorm.DB, tables ...string) map[string][]map[string]interface{} {
	t.Helper()
	out := make(map[string][]map[string]interface{}, len(tables))
	for _, table := range tables {
		var rows []map[string]interface{}
		require.NoError(t, db.Table(table).Order("rowid").Find(&rows).Error)
		out[table] = rows
	}
	return out
}

// Count returns the number of rows in table matching where.
func Count(t *testing.T, db *gorm.DB, table string, where map[string]interface{}) int64 {
	t.Helper()
	var n int64
	q := db.Table(table)
	if len(where) > 0 {
		q = q.Where(where)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}
