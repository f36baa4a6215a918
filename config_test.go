package authcore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/veridian/authcore"
)

func TestConfigValidate(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		assert.NoError(t, testConfig().Validate())
	})

	tests := []struct {
		name   string
		mutate func(*authcore.Config)
	}{
		{"missing access secret", func(c *authcore.Config) { c.AccessTokenSecret = "" }},
		{"missing refresh secret", func(c *authcore.Config) { c.RefreshTokenSecret = "" }},
		{"identical secrets", func(c *authcore.Config) { c.RefreshTokenSecret = c.AccessTokenSecret }},
		{"missing encryption key", func(c *authcore.Config) { c.EncryptionKey = "" }},
		{"non hex encryption key", func(c *authcore.Config) { c.EncryptionKey = "zz" }},
		{"short encryption key", func(c *authcore.Config) { c.EncryptionKey = "deadbeef" }},
		{"missing hash salt", func(c *authcore.Config) { c.HashSalt = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
