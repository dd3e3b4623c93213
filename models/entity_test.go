package models_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartansystems/tartan_backend/models"
	"github.com/tartansystems/tartan_backend/utils"
)

func TestParseKey_GLAccount(t *testing.T) {
	gl, ok := models.LookupEntity("gl")
	require.True(t, ok)

	key, err := gl.ParseKey(1, " 2000 ")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{2000}, key.Parts)
	assert.Equal(t, "2000", key.String())
	assert.Equal(t, "001|2000", key.RecordKey())

	for _, raw := range []string{"", "abc", "0", "-5", "1,2"} {
		_, err := gl.ParseKey(1, raw)
		var invalid *utils.InvalidKeyError
		assert.Truef(t, errors.As(err, &invalid), "key %q should be rejected", raw)
	}
}

func TestParseKey_DebtorCompoundKey(t *testing.T) {
	dr, ok := models.LookupEntity("DR")
	require.True(t, ok)

	key, err := dr.ParseKey(12, "3, acme01")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{3, "ACME01"}, key.Parts)
	assert.Equal(t, "012|3|ACME01", key.RecordKey())

	_, err = dr.ParseKey(12, "ACME01")
	assert.Error(t, err)
	_, err = dr.ParseKey(0, "3,ACME01")
	assert.Error(t, err)
}

func TestEntityKey_Equal(t *testing.T) {
	a := models.EntityKey{Company: 1, Parts: []interface{}{3, "ACME01"}}
	assert.True(t, a.Equal(models.EntityKey{Company: 1, Parts: []interface{}{3, "ACME01"}}))
	assert.False(t, a.Equal(models.EntityKey{Company: 2, Parts: []interface{}{3, "ACME01"}}))
	assert.False(t, a.Equal(models.EntityKey{Company: 1, Parts: []interface{}{3, "ACME02"}}))
	assert.False(t, a.Equal(models.EntityKey{Company: 1, Parts: []interface{}{3}}))
}

func TestReferenceTable_WhereAppliesFilterAndTextKeys(t *testing.T) {
	gl, _ := models.LookupEntity("GL")
	key := models.EntityKey{Company: 1, Parts: []interface{}{2000}}

	var vat models.ReferenceTable
	for _, ref := range gl.References {
		if ref.Table == "ctlvtf" {
			vat = ref
		}
	}
	require.Equal(t, "ctlvtf", vat.Table)
	assert.Equal(t, map[string]interface{}{
		"vtt_cono": 1,
		"vtt_acno": "2000",
		"vtt_styp": "G",
	}, vat.Where(key))
	assert.Equal(t, "ctlvtf(vtt_acno)", vat.Label())
}

func TestEntity_MasterWhere(t *testing.T) {
	dr, _ := models.LookupEntity("DR")
	key := models.EntityKey{Company: 4, Parts: []interface{}{0, "SMITH"}}
	assert.Equal(t, map[string]interface{}{
		"drm_cono":  4,
		"drm_chain": 0,
		"drm_acno":  "SMITH",
	}, dr.MasterWhere(key))
	assert.Equal(t, []string{"drm_chain", "drm_acno"}, dr.MasterKeyColumns())
}

func TestLookupEntity(t *testing.T) {
	_, ok := models.LookupEntity("XX")
	assert.False(t, ok)
	assert.Equal(t, []string{"GL", "DR", "CR"}, models.EntityCodes())
}
