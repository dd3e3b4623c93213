package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartansystems/tartan_backend/models"
	"github.com/tartansystems/tartan_backend/models/modeltest"
)

func labels(refs []models.ReferenceTable) []string {
	out := make([]string, len(refs))
	for i, ref := range refs {
		out[i] = ref.Label()
	}
	return out
}

func TestFilterReferences_DropsMissingTablesAndColumns(t *testing.T) {
	gl, _ := models.LookupEntity("GL")
	installed := map[string]map[string]bool{
		"genbal": {"glo_cono": true, "glo_acno": true, "glo_trdt": true, "glo_cyr": true},
		// gentrn without the account column cannot be cascaded.
		"gentrn": {"glt_cono": true},
		"ctlctl": {"ctl_cono": true, "ctl_conacc": true},
	}

	active, dropped := models.FilterReferences(gl.References, installed)
	assert.Equal(t, []string{"genbal(glo_acno)", "ctlctl(ctl_conacc)"}, labels(active))
	assert.Contains(t, labels(dropped), "gentrn(glt_acno)")
	assert.Contains(t, labels(dropped), "assgrp(asg_expacc)")
	assert.Len(t, dropped, len(gl.References)-2)
}

func TestActiveReferences_GeneralLedgerOnly(t *testing.T) {
	db := modeltest.OpenModules(t, "gen")
	gl, _ := models.LookupEntity("GL")

	active, err := models.ActiveReferences(modeltest.Context(), db, gl)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"genbal(glo_acno)",
		"genbud(glb_acno)",
		"gentrn(glt_acno)",
		"ctlvtf(vtt_acno)",
		"ctlctl(ctl_conacc)",
	}, labels(active))
}

func TestActiveReferences_ControlOnlyInstall(t *testing.T) {
	db := modeltest.OpenModules(t, "ctl")
	dr, _ := models.LookupEntity("DR")

	active, err := models.ActiveReferences(modeltest.Context(), db, dr)
	require.NoError(t, err)
	assert.Equal(t, []string{"ctlvtf(vtt_chain,vtt_acno)"}, labels(active))
}

func TestActiveReferences_Creditors(t *testing.T) {
	db := modeltest.Open(t)
	cr, _ := models.LookupEntity("CR")

	active, err := models.ActiveReferences(modeltest.Context(), db, cr)
	require.NoError(t, err)
	assert.Equal(t, []string{"crstrn(crt_acno)", "crsage(cra_acno)", "ctlvtf(vtt_acno)"}, labels(active))
}
