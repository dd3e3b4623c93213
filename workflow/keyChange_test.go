package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartansystems/tartan_backend/models"
	"github.com/tartansystems/tartan_backend/models/modeltest"
	"github.com/tartansystems/tartan_backend/utils"
	"gorm.io/gorm"
)

var glTables = []string{"genmst", "genbal", "genbud", "gentrn", "ctlvtf", "ctlctl", "chglog"}

func beginSession(t *testing.T, db *gorm.DB) (context.Context, *Session) {
	t.Helper()
	ctx := modeltest.Context()
	s, err := BeginSession(ctx, db)
	require.NoError(t, err)
	return ctx, s
}

func seedVat(t *testing.T, db *gorm.DB, styp string, chain int, acno string) {
	t.Helper()
	require.NoError(t, db.Create(&models.Ctlvtf{
		VttCono:  modeltest.Company,
		VttCode:  "S",
		VttVtyp:  "I",
		VttStyp:  styp,
		VttChain: chain,
		VttAcno:  acno,
		VttCurdt: 202401,
		VttExc:   models.NewMoney(modeltest.Amount("100")),
		VttTax:   models.NewMoney(modeltest.Amount("15")),
	}).Error)
}

func tableChange(t *testing.T, result *CascadeResult, label string) TableChange {
	t.Helper()
	for _, tc := range result.Tables {
		if tc.Table == label {
			return tc
		}
	}
	t.Fatalf("no change recorded for %s in %+v", label, result.Tables)
	return TableChange{}
}

func balanceOf(t *testing.T, db *gorm.DB, acno int, period int) string {
	t.Helper()
	var bal models.Genbal
	require.NoError(t, db.Where("glo_cono = ? AND glo_acno = ? AND glo_trdt = ?", modeltest.Company, acno, period).Take(&bal).Error)
	return bal.GloCyr.StringFixed(2)
}

func TestRenumberEntity_MovesEveryReference(t *testing.T) {
	db := modeltest.Open(t)
	modeltest.SeedGLAccount(t, db, 2000, "Bank current")
	modeltest.SeedBalance(t, db, 2000, 202401, "500")
	modeltest.SeedBudget(t, db, 2000, 202401, "450")
	modeltest.SeedGLTransaction(t, db, 2000, 202401, "500")
	modeltest.SeedControl(t, db, models.ControlDebtors, 2000)
	seedVat(t, db, models.VatSourceGeneral, 0, "2000")
	// A debtor account that happens to be called 2000 is not a GL reference.
	seedVat(t, db, models.VatSourceDebtors, 0, "2000")

	ctx, s := beginSession(t, db)
	result, err := RenumberEntity(ctx, s, KeyChangeRequest{Entity: "gl", OldKey: "2000", NewKey: "3000"})
	require.NoError(t, err)
	require.NoError(t, s.Commit())

	assert.Equal(t, "GL", result.Entity)
	assert.Equal(t, models.ModeRenumber, result.Mode)
	assert.False(t, result.NoOp)
	assert.EqualValues(t, 1, tableChange(t, result, "genbal(glo_acno)").Rows)
	assert.EqualValues(t, 1, tableChange(t, result, "ctlvtf(vtt_acno)").Rows)
	assert.EqualValues(t, 1, tableChange(t, result, "genmst").Rows)

	assert.EqualValues(t, 0, modeltest.Count(t, db, "genmst", map[string]interface{}{"glm_acno": 2000}))
	var master models.Genmst
	require.NoError(t, db.Where("glm_cono = ? AND glm_acno = ?", 1, 3000).Take(&master).Error)
	assert.Equal(t, "Bank current", master.GlmDesc)

	assert.Equal(t, "500.00", balanceOf(t, db, 3000, 202401))
	assert.EqualValues(t, 1, modeltest.Count(t, db, "genbud", map[string]interface{}{"glb_acno": 3000}))
	assert.EqualValues(t, 1, modeltest.Count(t, db, "gentrn", map[string]interface{}{"glt_acno": 3000}))
	assert.EqualValues(t, 1, modeltest.Count(t, db, "ctlctl", map[string]interface{}{"ctl_conacc": 3000}))
	assert.EqualValues(t, 1, modeltest.Count(t, db, "ctlvtf", map[string]interface{}{"vtt_styp": "G", "vtt_acno": "3000"}))
	assert.EqualValues(t, 1, modeltest.Count(t, db, "ctlvtf", map[string]interface{}{"vtt_styp": "D", "vtt_acno": "2000"}))

	var logs []models.ChangeLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, 1, result.ChangeLogRows)
	assert.Equal(t, "genmst", logs[0].ChgTab)
	assert.Equal(t, models.ChangeActionUpdate, logs[0].ChgAct)
	assert.Equal(t, "001|2000", logs[0].ChgKey)
	assert.Equal(t, "glm_acno", logs[0].ChgCol)
	assert.Equal(t, "2000", logs[0].ChgOld)
	assert.Equal(t, "3000", logs[0].ChgNew)
	assert.Equal(t, modeltest.Operator, logs[0].ChgUsr)
}

func TestRenumberEntity_RejectsExistingTarget(t *testing.T) {
	db := modeltest.Open(t)
	modeltest.SeedGLAccount(t, db, 1000, "Cash")
	modeltest.SeedGLAccount(t, db, 2000, "Bank")

	ctx, s := beginSession(t, db)
	_, err := RenumberEntity(ctx, s, KeyChangeRequest{Entity: "GL", OldKey: "2000", NewKey: "1000"})
	var dup *utils.DuplicateKeyError
	require.True(t, errors.As(err, &dup), "got %v", err)
	assert.True(t, utils.IsValidationError(err))
	assert.False(t, s.Closed())
	assert.False(t, s.Pending())
	require.NoError(t, s.Rollback())

	assert.EqualValues(t, 2, modeltest.Count(t, db, "genmst", nil))
}

func TestRenumberEntity_RejectsUnknownOrMalformedKeys(t *testing.T) {
	db := modeltest.Open(t)
	modeltest.SeedGLAccount(t, db, 2000, "Bank")

	ctx, s := beginSession(t, db)
	defer func() { _ = s.Rollback() }()

	var invalid *utils.InvalidKeyError
	_, err := RenumberEntity(ctx, s, KeyChangeRequest{Entity: "GL", OldKey: "2999", NewKey: "3000"})
	assert.True(t, errors.As(err, &invalid), "got %v", err)

	_, err = RenumberEntity(ctx, s, KeyChangeRequest{Entity: "GL", OldKey: "2000", NewKey: "ABC"})
	assert.True(t, errors.As(err, &invalid), "got %v", err)

	_, err = RenumberEntity(ctx, s, KeyChangeRequest{Entity: "ST", OldKey: "2000", NewKey: "3000"})
	var input *utils.InvalidInputError
	assert.True(t, errors.As(err, &input), "got %v", err)
	assert.False(t, s.Closed())
}

func TestMergeEntity_SumsPeriodBalances(t *testing.T) {
	db := modeltest.Open(t)
	modeltest.SeedGLAccount(t, db, 1000, "Bank")
	modeltest.SeedGLAccount(t, db, 2000, "Bank duplicate")
	modeltest.SeedBalance(t, db, 1000, 202401, "300")
	modeltest.SeedBalance(t, db, 2000, 202401, "500")
	modeltest.SeedBalance(t, db, 2000, 202402, "100")
	modeltest.SeedGLTransaction(t, db, 2000, 202401, "500")
	modeltest.SeedGLTransaction(t, db, 2000, 202402, "100")

	ctx, s := beginSession(t, db)
	result, err := MergeEntity(ctx, s, KeyChangeRequest{Entity: "GL", OldKey: "2000", NewKey: "1000"})
	require.NoError(t, err)
	require.NoError(t, s.Commit())

	assert.True(t, result.TargetExisted)
	bal := tableChange(t, result, "genbal(glo_acno)")
	assert.EqualValues(t, 2, bal.Rows)
	assert.EqualValues(t, 1, bal.Merged)

	assert.Equal(t, "800.00", balanceOf(t, db, 1000, 202401))
	assert.Equal(t, "100.00", balanceOf(t, db, 1000, 202402))
	assert.EqualValues(t, 0, modeltest.Count(t, db, "genbal", map[string]interface{}{"glo_acno": 2000}))
	assert.EqualValues(t, 2, modeltest.Count(t, db, "gentrn", map[string]interface{}{"glt_acno": 1000}))

	assert.EqualValues(t, 0, modeltest.Count(t, db, "genmst", map[string]interface{}{"glm_acno": 2000}))
	var master models.Genmst
	require.NoError(t, db.Where("glm_cono = ? AND glm_acno = ?", 1, 1000).Take(&master).Error)
	assert.Equal(t, "Bank", master.GlmDesc)

	var logs []models.ChangeLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, models.ChangeActionMerge, logs[0].ChgAct)
	assert.Equal(t, "001|2000", logs[0].ChgKey)
	assert.Equal(t, "2000", logs[0].ChgOld)
	assert.Equal(t, "1000", logs[0].ChgNew)
}

func TestMergeEntity_DebtorIntoExistingAccount(t *testing.T) {
	db := modeltest.Open(t)
	modeltest.SeedDebtor(t, db, 3, "ACME01", "Acme Stores")
	modeltest.SeedDebtor(t, db, 3, "ACME02", "Acme Stores Ltd")
	modeltest.SeedDebtorTransaction(t, db, 3, "ACME01", 202401, "100")
	modeltest.SeedDebtorTransaction(t, db, 3, "ACME01", 202402, "-40")
	modeltest.SeedDebtorTransaction(t, db, 3, "ACME02", 202401, "25")
	require.NoError(t, db.Create(&models.Drsage{DraCono: 1, DraChn: 3, DraAcno: "ACME01", DraType: 1, DraRef1: "INV1", DraAmt: modeltest.Money("60")}).Error)
	seedVat(t, db, models.VatSourceDebtors, 3, "ACME01")

	ctx, s := beginSession(t, db)
	result, err := MergeEntity(ctx, s, KeyChangeRequest{Entity: "DR", OldKey: "3,ACME01", NewKey: "3,acme02"})
	require.NoError(t, err)
	require.NoError(t, s.Commit())

	assert.True(t, result.TargetExisted)
	assert.EqualValues(t, 0, modeltest.Count(t, db, "drsmst", map[string]interface{}{"drm_chain": 3, "drm_acno": "ACME01"}))
	var master models.Drsmst
	require.NoError(t, db.Where("drm_cono = ? AND drm_chain = ? AND drm_acno = ?", 1, 3, "ACME02").Take(&master).Error)
	assert.Equal(t, "Acme Stores Ltd", master.DrmName)

	assert.EqualValues(t, 0, modeltest.Count(t, db, "drstrn", map[string]interface{}{"drt_acno": "ACME01"}))
	assert.EqualValues(t, 3, modeltest.Count(t, db, "drstrn", map[string]interface{}{"drt_chain": 3, "drt_acno": "ACME02"}))
	assert.EqualValues(t, 1, modeltest.Count(t, db, "drsage", map[string]interface{}{"dra_chn": 3, "dra_acno": "ACME02"}))
	assert.EqualValues(t, 1, modeltest.Count(t, db, "ctlvtf", map[string]interface{}{"vtt_chain": 3, "vtt_acno": "ACME02"}))

	var logs []models.ChangeLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, models.ChangeActionMerge, logs[0].ChgAct)
	assert.Equal(t, "drsmst", logs[0].ChgTab)
	assert.Equal(t, "001|3|ACME01", logs[0].ChgKey)
	assert.Equal(t, "drm_acno", logs[0].ChgCol)
	assert.Equal(t, "ACME01", logs[0].ChgOld)
	assert.Equal(t, "ACME02", logs[0].ChgNew)
}

func TestMergeEntity_MissingTargetBehavesLikeRenumber(t *testing.T) {
	db := modeltest.Open(t)
	modeltest.SeedGLAccount(t, db, 2000, "Bank")
	modeltest.SeedBalance(t, db, 2000, 202401, "500")

	ctx, s := beginSession(t, db)
	result, err := MergeEntity(ctx, s, KeyChangeRequest{Entity: "GL", OldKey: "2000", NewKey: "4000"})
	require.NoError(t, err)
	require.NoError(t, s.Commit())

	assert.False(t, result.TargetExisted)
	assert.EqualValues(t, 0, tableChange(t, result, "genbal(glo_acno)").Merged)
	assert.Equal(t, "500.00", balanceOf(t, db, 4000, 202401))
	var master models.Genmst
	require.NoError(t, db.Where("glm_cono = ? AND glm_acno = ?", 1, 4000).Take(&master).Error)
	assert.Equal(t, "Bank", master.GlmDesc)
}

func TestKeyChange_SameKeyIsNoOp(t *testing.T) {
	db := modeltest.Open(t)
	modeltest.SeedGLAccount(t, db, 2000, "Bank")
	modeltest.SeedBalance(t, db, 2000, 202401, "500")
	before := modeltest.Snapshot(t, db, glTables...)

	ctx, s := beginSession(t, db)
	for _, fn := range []func(context.Context, *Session, KeyChangeRequest) (*CascadeResult, error){RenumberEntity, MergeEntity} {
		result, err := fn(ctx, s, KeyChangeRequest{Entity: "GL", OldKey: "2000", NewKey: " 2000"})
		require.NoError(t, err)
		assert.True(t, result.NoOp)
		assert.Empty(t, result.Tables)
	}
	assert.False(t, s.Pending())
	kept, err := s.CommitWithConfirm(ctx, ConfirmFunc(func(context.Context, string) (bool, error) {
		t.Fatal("nothing pending; confirmation must not be requested")
		return false, nil
	}))
	require.NoError(t, err)
	assert.True(t, kept)

	assert.Equal(t, before, modeltest.Snapshot(t, db, glTables...))
}

func TestRenumberEntity_RollsBackOnCascadeFailure(t *testing.T) {
	db := modeltest.Open(t)
	modeltest.SeedGLAccount(t, db, 2000, "Bank")
	modeltest.SeedBalance(t, db, 2000, 202401, "500")
	modeltest.SeedBudget(t, db, 2000, 202401, "10")
	// Orphan budget already holding the target key and period.
	modeltest.SeedBudget(t, db, 3000, 202401, "5")
	modeltest.SeedGLTransaction(t, db, 2000, 202401, "500")
	before := modeltest.Snapshot(t, db, glTables...)

	ctx, s := beginSession(t, db)
	_, err := RenumberEntity(ctx, s, KeyChangeRequest{Entity: "GL", OldKey: "2000", NewKey: "3000"})
	var cascadeErr *utils.CascadeError
	require.True(t, errors.As(err, &cascadeErr), "got %v", err)
	assert.Equal(t, "genbud", cascadeErr.Table)
	assert.False(t, utils.IsValidationError(err))
	assert.True(t, s.Closed())
	assert.ErrorIs(t, s.Commit(), utils.ErrSessionClosed)

	// genbal was already re-pointed when genbud failed; nothing may survive.
	assert.Equal(t, before, modeltest.Snapshot(t, db, glTables...))
}

func TestRenumberEntity_DebtorCompoundKey(t *testing.T) {
	db := modeltest.Open(t)
	modeltest.SeedDebtor(t, db, 3, "ACME01", "Acme Stores")
	modeltest.SeedDebtor(t, db, 4, "ACME01", "Acme other chain")
	modeltest.SeedDebtorTransaction(t, db, 3, "ACME01", 202401, "100")
	modeltest.SeedDebtorTransaction(t, db, 3, "ACME01", 202402, "-40")
	modeltest.SeedDebtorTransaction(t, db, 4, "ACME01", 202401, "70")
	require.NoError(t, db.Create(&models.Drsage{DraCono: 1, DraChn: 3, DraAcno: "ACME01", DraType: 1, DraRef1: "INV1", DraAmt: modeltest.Money("40")}).Error)
	seedVat(t, db, models.VatSourceDebtors, 3, "ACME01")

	ctx, s := beginSession(t, db)
	result, err := RenumberEntity(ctx, s, KeyChangeRequest{Entity: "DR", OldKey: "3,acme01", NewKey: "3,ACME02"})
	require.NoError(t, err)
	require.NoError(t, s.Commit())

	assert.Equal(t, "3,ACME01", result.OldKey)
	assert.Equal(t, "3,ACME02", result.NewKey)
	for _, tc := range result.Tables {
		assert.NotContains(t, tc.Table, "drsdel")
	}

	assert.EqualValues(t, 2, modeltest.Count(t, db, "drstrn", map[string]interface{}{"drt_chain": 3, "drt_acno": "ACME02"}))
	assert.EqualValues(t, 1, modeltest.Count(t, db, "drstrn", map[string]interface{}{"drt_chain": 4, "drt_acno": "ACME01"}))
	assert.EqualValues(t, 1, modeltest.Count(t, db, "drsage", map[string]interface{}{"dra_chn": 3, "dra_acno": "ACME02"}))
	assert.EqualValues(t, 1, modeltest.Count(t, db, "ctlvtf", map[string]interface{}{"vtt_chain": 3, "vtt_acno": "ACME02"}))
	assert.EqualValues(t, 1, modeltest.Count(t, db, "drsmst", map[string]interface{}{"drm_chain": 4, "drm_acno": "ACME01"}))

	var logs []models.ChangeLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, "001|3|ACME01", logs[0].ChgKey)
	assert.Equal(t, "drm_acno", logs[0].ChgCol)
}

func TestRenumberEntity_SkipChangeLog(t *testing.T) {
	db := modeltest.Open(t)
	modeltest.SeedCreditor(t, db, "SUPP1", "Supplier")

	ctx, s := beginSession(t, db)
	result, err := RenumberEntity(ctx, s, KeyChangeRequest{Entity: "CR", OldKey: "supp1", NewKey: "SUPP9", SkipChangeLog: true})
	require.NoError(t, err)
	require.NoError(t, s.Commit())

	assert.Zero(t, result.ChangeLogRows)
	assert.EqualValues(t, 0, modeltest.Count(t, db, "chglog", nil))
	assert.EqualValues(t, 1, modeltest.Count(t, db, "crsmst", map[string]interface{}{"crm_acno": "SUPP9"}))
}

func TestCommitWithConfirm_DeclineDiscardsChanges(t *testing.T) {
	db := modeltest.Open(t)
	modeltest.SeedGLAccount(t, db, 2000, "Bank")
	modeltest.SeedBalance(t, db, 2000, 202401, "500")
	before := modeltest.Snapshot(t, db, glTables...)

	ctx, s := beginSession(t, db)
	_, err := RenumberEntity(ctx, s, KeyChangeRequest{Entity: "GL", OldKey: "2000", NewKey: "3000"})
	require.NoError(t, err)
	assert.True(t, s.Pending())
	assert.Equal(t, map[string]int64{"genbal": 1, "genmst": 1, "chglog": 1}, s.Changes())

	var summary string
	kept, err := s.CommitWithConfirm(ctx, ConfirmFunc(func(_ context.Context, sum string) (bool, error) {
		summary = sum
		return false, nil
	}))
	require.NoError(t, err)
	assert.False(t, kept)
	assert.Equal(t, "chglog: 1 row(s)\ngenbal: 1 row(s)\ngenmst: 1 row(s)", summary)
	assert.True(t, s.Closed())

	assert.Equal(t, before, modeltest.Snapshot(t, db, glTables...))
}

func TestCommitWithConfirm_ConfirmErrorRollsBack(t *testing.T) {
	db := modeltest.Open(t)
	modeltest.SeedGLAccount(t, db, 2000, "Bank")

	ctx, s := beginSession(t, db)
	_, err := RenumberEntity(ctx, s, KeyChangeRequest{Entity: "GL", OldKey: "2000", NewKey: "3000"})
	require.NoError(t, err)

	boom := errors.New("terminal closed")
	kept, err := s.CommitWithConfirm(ctx, ConfirmFunc(func(context.Context, string) (bool, error) { return false, boom }))
	assert.ErrorIs(t, err, boom)
	assert.False(t, kept)
	assert.EqualValues(t, 1, modeltest.Count(t, db, "genmst", map[string]interface{}{"glm_acno": 2000}))
}

func TestSession_RequiresCompanyAndRejectsReuse(t *testing.T) {
	db := modeltest.Open(t)

	_, err := BeginSession(context.Background(), db)
	assert.Error(t, err)

	ctx, s := beginSession(t, db)
	assert.NotEmpty(t, s.CorrelationId())
	assert.Equal(t, modeltest.Company, s.Company())
	require.NoError(t, s.Commit())
	assert.ErrorIs(t, s.Rollback(), utils.ErrSessionClosed)

	_, err = RenumberEntity(ctx, s, KeyChangeRequest{Entity: "GL", OldKey: "1", NewKey: "2"})
	assert.ErrorIs(t, err, utils.ErrSessionClosed)
}

func TestPreviewKeyChange_CountsWithoutWriting(t *testing.T) {
	db := modeltest.Open(t)
	modeltest.SeedGLAccount(t, db, 1000, "Bank")
	modeltest.SeedGLAccount(t, db, 2000, "Bank duplicate")
	modeltest.SeedBalance(t, db, 1000, 202401, "300")
	modeltest.SeedBalance(t, db, 2000, 202401, "500")
	modeltest.SeedBalance(t, db, 2000, 202402, "100")
	modeltest.SeedGLTransaction(t, db, 2000, 202401, "500")
	before := modeltest.Snapshot(t, db, glTables...)
	ctx := modeltest.Context()

	result, err := PreviewKeyChange(ctx, db, KeyChangeRequest{Entity: "GL", OldKey: "2000", NewKey: "1000"}, models.ModeMerge)
	require.NoError(t, err)
	assert.True(t, result.TargetExisted)
	bal := tableChange(t, result, "genbal(glo_acno)")
	assert.EqualValues(t, 2, bal.Rows)
	assert.EqualValues(t, 1, bal.Merged)
	assert.EqualValues(t, 1, tableChange(t, result, "gentrn(glt_acno)").Rows)
	assert.Equal(t, TableChange{Table: "genmst", Rows: 1}, result.Tables[len(result.Tables)-1])

	_, err = PreviewKeyChange(ctx, db, KeyChangeRequest{Entity: "GL", OldKey: "2000", NewKey: "1000"}, models.ModeRenumber)
	var dup *utils.DuplicateKeyError
	assert.True(t, errors.As(err, &dup))

	assert.Equal(t, before, modeltest.Snapshot(t, db, glTables...))
}
