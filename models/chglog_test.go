package models_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartansystems/tartan_backend/models"
	"github.com/tartansystems/tartan_backend/models/modeltest"
)

func TestDiffColumns(t *testing.T) {
	before := map[string]interface{}{"glm_acno": int64(2000), "glm_desc": "Bank", "glm_ind": nil}
	after := map[string]interface{}{"glm_acno": int64(3000), "glm_desc": []byte("Bank"), "glm_type": "B"}

	assert.Equal(t, []models.ColumnChange{
		{Column: "glm_acno", Old: "2000", New: "3000"},
		{Column: "glm_type", Old: "", New: "B"},
	}, models.DiffColumns(before, after))
	assert.Empty(t, models.DiffColumns(before, before))
}

func TestRenderValue(t *testing.T) {
	assert.Equal(t, "", models.RenderValue(nil))
	assert.Equal(t, "12.5", models.RenderValue(modeltest.Amount("12.50")))
	assert.Equal(t, "2024-03-01 09:30:00", models.RenderValue(time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)))
	assert.Equal(t, "7", models.RenderValue(7))
}

func TestSaveChangeLog_RequiresOperator(t *testing.T) {
	db := modeltest.OpenModules(t, "ctl")

	_, err := models.SaveChangeLog(db.WithContext(context.Background()), "genmst", models.ChangeActionUpdate, "001|2000",
		map[string]interface{}{"glm_acno": 2000}, map[string]interface{}{"glm_acno": 3000})
	require.Error(t, err)
	assert.EqualValues(t, 0, modeltest.Count(t, db, "chglog", nil))
}

func TestSaveChangeLog_WritesOneRowPerChangedColumn(t *testing.T) {
	db := modeltest.OpenModules(t, "ctl")
	tx := db.WithContext(modeltest.Context())

	n, err := models.SaveChangeLog(tx, "genmst", models.ChangeActionUpdate, "001|2000",
		map[string]interface{}{"glm_acno": 2000, "glm_desc": "Bank"},
		map[string]interface{}{"glm_acno": 3000, "glm_desc": "Bank"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rows, err := models.ListChangeLogs(context.Background(), db, models.ChangeLogFilter{Company: modeltest.Company})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "genmst", rows[0].ChgTab)
	assert.Equal(t, "U", rows[0].ChgAct)
	assert.Equal(t, "glm_acno", rows[0].ChgCol)
	assert.Equal(t, "2000", rows[0].ChgOld)
	assert.Equal(t, "3000", rows[0].ChgNew)
	assert.Equal(t, modeltest.Operator, rows[0].ChgUsr)

	n, err = models.SaveChangeLog(tx, "genmst", models.ChangeActionUpdate, "001|2000",
		map[string]interface{}{"glm_desc": "Bank"}, map[string]interface{}{"glm_desc": "Bank"})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestChangeLog_IsAppendOnly(t *testing.T) {
	db := modeltest.OpenModules(t, "ctl")
	_, err := models.SaveChangeLog(db.WithContext(modeltest.Context()), "crsmst", models.ChangeActionMerge, "001|OLD",
		map[string]interface{}{"crm_acno": "OLD"}, map[string]interface{}{"crm_acno": "NEW"})
	require.NoError(t, err)

	var row models.ChangeLog
	require.NoError(t, db.Take(&row).Error)

	assert.Error(t, db.Model(&row).Update("chg_new", "TAMPERED").Error)
	assert.Error(t, db.Delete(&row).Error)

	var reread models.ChangeLog
	require.NoError(t, db.Take(&reread).Error)
	assert.Equal(t, "NEW", reread.ChgNew)
}

func TestListChangeLogs_ScopedToCompany(t *testing.T) {
	db := modeltest.OpenModules(t, "ctl")
	tx := db.WithContext(modeltest.Context())
	_, err := models.SaveChangeLog(tx, "genmst", models.ChangeActionUpdate, "001|2000",
		map[string]interface{}{"glm_acno": 2000}, map[string]interface{}{"glm_acno": 3000})
	require.NoError(t, err)
	_, err = models.SaveChangeLog(tx, "genmst", models.ChangeActionUpdate, "002|2000",
		map[string]interface{}{"glm_acno": 2000}, map[string]interface{}{"glm_acno": 4000})
	require.NoError(t, err)

	rows, err := models.ListChangeLogs(context.Background(), db, models.ChangeLogFilter{Company: 2, Table: "genmst"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "4000", rows[0].ChgNew)

	future := time.Now().Add(time.Hour)
	rows, err = models.ListChangeLogs(context.Background(), db, models.ChangeLogFilter{Company: 1, From: &future})
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = models.ListChangeLogs(context.Background(), db, models.ChangeLogFilter{})
	assert.Error(t, err)
}
