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

func TestRevokeToken(t *testing.T) {
	db := modeltest.OpenModules(t, "ctl")
	ctx := context.Background()

	revoked, err := models.IsTokenRevoked(ctx, db, "token-a")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, models.RevokeToken(ctx, db, "token-a", "clerk", time.Now().Add(time.Hour)))
	require.NoError(t, models.RevokeToken(ctx, db, "token-a", "clerk", time.Now().Add(time.Hour)))

	revoked, err = models.IsTokenRevoked(ctx, db, "token-a")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = models.IsTokenRevoked(ctx, db, "token-b")
	require.NoError(t, err)
	assert.False(t, revoked)
	assert.EqualValues(t, 1, modeltest.Count(t, db, "ctlrvk", nil))
}

func TestRevokeToken_ExpiredRowsArePurged(t *testing.T) {
	db := modeltest.OpenModules(t, "ctl")
	ctx := context.Background()

	require.NoError(t, models.RevokeToken(ctx, db, "old", "clerk", time.Now().Add(-time.Minute)))
	revoked, err := models.IsTokenRevoked(ctx, db, "old")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, models.RevokeToken(ctx, db, "new", "clerk", time.Now().Add(time.Hour)))
	assert.EqualValues(t, 1, modeltest.Count(t, db, "ctlrvk", nil))
}
