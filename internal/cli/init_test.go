package cli

import (
	"testing"

	"depositos/internal/config"
	applog "depositos/internal/log"
)

func TestValidateConfigChecksGivenValue(t *testing.T) {
	t.Setenv("PORT", "9999")
	cfg := &config.Config{Port: "4000"}

	var seen *config.Config
	ValidateConfig(applog.Discard(), cfg, func(c *config.Config) error {
		seen = c
		return nil
	})
	if seen != cfg {
		t.Fatal("validate must receive the loaded config, not a fresh load")
	}
	if cfg.Port != "4000" {
		t.Errorf("config was reloaded from the environment, port %q", cfg.Port)
	}
}
