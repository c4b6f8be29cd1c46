package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func TestDefaults(t *testing.T) {
	cfg, err := FromViper(newViper())
	require.NoError(t, err)

	assert.Equal(t, 60*time.Second, cfg.Presence.DefaultWindow)
	assert.Equal(t, 10*time.Second, cfg.Presence.MinWindow)
	assert.Equal(t, 30*time.Second, cfg.Presence.FreshnessWindow)
	assert.Equal(t, 20*time.Second, cfg.Presence.HeartbeatInterval)
	assert.Equal(t, 2*time.Second, cfg.Stream.DefaultInterval)
	assert.Equal(t, time.Second, cfg.Stream.MinInterval)
	assert.Equal(t, 10*time.Second, cfg.Stream.MaxInterval)
	assert.Equal(t, time.Hour, cfg.Token.TTL)
	assert.Equal(t, 10*time.Second, cfg.Token.NotBeforeSkew)
	assert.Equal(t, PresenceDriverDatabase, cfg.Presence.Driver)
	assert.Equal(t, 3, cfg.Storage.RetryAttempts)
}

func TestOverrides(t *testing.T) {
	v := newViper()
	v.Set("presence.default_window", "90s")
	v.Set("presence.freshness_window", "45s")
	v.Set("presence.driver", PresenceDriverRedis)
	v.Set("token.api_key", "key")

	cfg, err := FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.Presence.DefaultWindow)
	assert.Equal(t, 45*time.Second, cfg.Presence.FreshnessWindow)
	assert.Equal(t, PresenceDriverRedis, cfg.Presence.Driver)
	assert.Equal(t, "key", cfg.Token.APIKey)
}

func TestValidateRejectsInvertedWindows(t *testing.T) {
	v := newViper()
	v.Set("presence.default_window", "5s")
	_, err := FromViper(v)
	assert.Error(t, err)

	v = newViper()
	v.Set("stream.min_interval", "20s")
	_, err = FromViper(v)
	assert.Error(t, err)

	v = newViper()
	v.Set("presence.retention", "10m")
	_, err = FromViper(v)
	assert.Error(t, err)

	v = newViper()
	v.Set("presence.driver", "memcached")
	_, err = FromViper(v)
	assert.Error(t, err)
}
