package cmd

import (
	"testing"

	coreconfig "github.com/postpilot/postpilot/core/config"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestApplyEnvOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("app_port", "9090")
	viper.Set("app_debug", true)
	viper.Set("app_basic_auth", "admin:secret,ops:hunter2")
	viper.Set("app_base_path", "/postpilot")
	viper.Set("db_driver", "postgres")
	viper.Set("db_name", "postpilot")
	viper.Set("facebook_page_id", "424242")
	viper.Set("facebook_access_token", "EAAB-token")

	cfg := &coreconfig.Config{}
	cfg.App.Port = "8000"
	applyEnvOverrides(cfg)

	assert.Equal(t, "9090", cfg.App.Port)
	assert.True(t, cfg.App.Debug)
	assert.Equal(t, []string{"admin:secret", "ops:hunter2"}, cfg.App.BasicAuth)
	assert.Equal(t, "/postpilot", cfg.App.BasePath)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postpilot", cfg.Database.Name)
	assert.Equal(t, "424242", cfg.Facebook.PageID)
	assert.Equal(t, "EAAB-token", cfg.Facebook.AccessToken)
}

func TestApplyEnvOverridesLeavesUnsetFields(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg := &coreconfig.Config{}
	cfg.App.Port = "8000"
	cfg.Database.Driver = "sqlite"
	applyEnvOverrides(cfg)

	assert.Equal(t, "8000", cfg.App.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.False(t, cfg.App.Debug)
}
