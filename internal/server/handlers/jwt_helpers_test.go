package handlers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceToken_RoundTrip(t *testing.T) {
	cfg := JWTConfig{
		Secret:         []byte("test-secret"),
		AccessTokenTTL: time.Hour,
	}

	token, err := GenerateDeviceToken(cfg, "scanner-3", []string{"inventory", "tickets"})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ValidateDeviceToken(cfg, token)
	require.NoError(t, err)

	assert.Equal(t, "scanner-3", claims.DeviceID)
	assert.Equal(t, []string{"inventory", "tickets"}, claims.Scopes)
	assert.Equal(t, "stagesync", claims.Issuer)
}

func TestValidateDeviceToken_WrongSecret(t *testing.T) {
	cfg := JWTConfig{Secret: []byte("test-secret"), AccessTokenTTL: time.Hour}

	token, err := GenerateDeviceToken(cfg, "scanner-3", []string{"inventory"})
	require.NoError(t, err)

	_, err = ValidateDeviceToken(JWTConfig{Secret: []byte("other-secret")}, token)
	assert.Error(t, err)
}

func TestValidateDeviceToken_Expired(t *testing.T) {
	cfg := JWTConfig{Secret: []byte("test-secret"), AccessTokenTTL: -time.Minute}

	token, err := GenerateDeviceToken(cfg, "scanner-3", []string{"inventory"})
	require.NoError(t, err)

	_, err = ValidateDeviceToken(cfg, token)
	assert.Error(t, err)
}

func TestDeviceClaims_AllowsScope(t *testing.T) {
	claims := &DeviceClaims{Scopes: []string{"inventory"}}

	assert.True(t, claims.AllowsScope("inventory"))
	assert.False(t, claims.AllowsScope("tickets"))
	assert.False(t, claims.AllowsScope(""))
}
