package controllers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tradevouch/internal/communities"
	"github.com/angelmondragon/tradevouch/pkg/enums"
)

func TestSettingsDefaultsAndUpdates(t *testing.T) {
	f := newFixture(t)

	resp := call(GetSettings(f.settings, f.logg), http.MethodGet, "mod", "", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var settings communities.Settings
	decodeData(t, resp, &settings)
	assert.Equal(t, 1, settings.Thresholds.New)
	assert.Equal(t, 15, settings.Thresholds.Trusted)
	assert.Equal(t, int64(10800), settings.TradeTTLSecs)
	assert.False(t, settings.TTLOverridden)

	resp = call(UpdateThresholds(f.settings, f.logg), http.MethodPut, "mod", `{"new":5,"verified":2,"trusted":9}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = call(UpdateThresholds(f.settings, f.logg), http.MethodPut, "mod", `{"new":0,"verified":3,"trusted":9}`, nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	decodeData(t, resp, &settings)
	assert.Equal(t, 0, settings.Thresholds.New)
	assert.Equal(t, 3, settings.Thresholds.Verified)

	resp = call(UpdateRoles(f.settings, f.logg), http.MethodPut, "mod", `{"verified":"role-2"}`, nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	decodeData(t, resp, &settings)
	assert.Equal(t, "role-2", settings.Roles[enums.TierVerified])

	resp = call(UpdateVouchChannel(f.settings, f.logg), http.MethodPut, "mod", `{"channel_id":"chan-7"}`, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	decodeData(t, resp, &settings)
	require.NotNil(t, settings.VouchChannelID)
	assert.Equal(t, "chan-7", *settings.VouchChannelID)

	ttl := UpdateTradeTTL(f.settings, f.logg)
	resp = call(ttl, http.MethodPut, "mod", `{"ttl_seconds":30}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = call(ttl, http.MethodPut, "mod", `{"ttl_seconds":7200}`, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	decodeData(t, resp, &settings)
	assert.Equal(t, int64(7200), settings.TradeTTLSecs)
	assert.True(t, settings.TTLOverridden)

	resp = call(ttl, http.MethodPut, "mod", `{"ttl_seconds":null}`, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	decodeData(t, resp, &settings)
	assert.Equal(t, int64(10800), settings.TradeTTLSecs)
	assert.False(t, settings.TTLOverridden)
}
