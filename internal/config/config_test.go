package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Env:                  "development",
		Port:                 "8080",
		JWTSecret:            "secure-secret-at-least-32-chars-long",
		DBPassword:           "secure-password",
		DBSSLMode:            "require",
		DBConnectRetries:     5,
		MediaMaxUploadMB:     10,
		MediaMaxFilesPerPost: 4,
		TracingExporter:      "stdout",
	}
}

func TestConfig_ValidateProductionRules(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		expectError bool
	}{
		{"development defaults", func(c *Config) {}, false},
		{"production with strong settings", func(c *Config) { c.Env = "production" }, false},
		{"production with default secret", func(c *Config) {
			c.Env = "production"
			c.JWTSecret = defaultJWTSecret
		}, true},
		{"prod with short secret", func(c *Config) {
			c.Env = "prod"
			c.JWTSecret = "short"
		}, true},
		{"production with default db password", func(c *Config) {
			c.Env = "production"
			c.DBPassword = "password"
		}, true},
		{"production with ssl disabled", func(c *Config) {
			c.Env = "production"
			c.DBSSLMode = "disable"
		}, true},
		{"development with ssl disabled", func(c *Config) { c.DBSSLMode = "disable" }, false},
		{"missing port", func(c *Config) { c.Port = "" }, true},
		{"zero upload limit", func(c *Config) { c.MediaMaxUploadMB = 0 }, true},
		{"unknown exporter", func(c *Config) { c.TracingExporter = "jaeger" }, true},
		{"no connect attempts", func(c *Config) { c.DBConnectRetries = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfig_EnvironmentOverridesAndNormalization(t *testing.T) {
	defer viper.Reset()

	t.Setenv("APP_ENV", "development")
	t.Setenv("DB_SSLMODE", "  DISABLE  ")
	t.Setenv("MEDIA_BASE_URL", "http://cdn.local/media/")
	t.Setenv("DB_CONNECT_RETRIES", "2")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "disable", c.DBSSLMode)
	assert.Equal(t, "http://cdn.local/media", c.MediaBaseURL)
	assert.Equal(t, 2, c.DBConnectRetries)
	assert.Equal(t, 5, c.DBConnectRetryDelaySeconds)
	assert.Equal(t, int64(10<<20), c.MaxUploadBytes())
}

func TestConfig_DSN(t *testing.T) {
	c := &Config{DBHost: "db", DBUser: "agora", DBPassword: "pw", DBName: "agora", DBPort: "5432", DBSSLMode: "disable"}
	assert.Equal(t, "host=db user=agora password=pw dbname=agora port=5432 sslmode=disable TimeZone=UTC", c.DSN())
}
