// AngelaMos | 2026
// config_test.go

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	c, err := load("")
	require.NoError(t, err)

	assert.Equal(t, StorageMemory, c.Storage.Driver)
	assert.Equal(t, "HONEY-", c.Ledger.CodePrefix)
	assert.Equal(t, 10, c.Ledger.CodeAttempts)
	assert.Equal(t, "Nail service", c.Ledger.UsageDescription)
	assert.Equal(t, "Balance top-up", c.Ledger.RechargeDescription)
	assert.Equal(t, 3, c.Ledger.HistoryPreview)
	assert.Equal(t, "999999999999.99", c.Ledger.MaxAmount)
	assert.Equal(t, 15*time.Minute, c.JWT.AccessTokenExpire)
	assert.Equal(t, 256, c.QRCode.Size)
	assert.True(t, c.IsDevelopment())
	assert.False(t, c.UsesPostgres())
	assert.Equal(t, "0.0.0.0:8080", c.Server.Address())
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
app:
  name: salon
ledger:
  code_prefix: "GIFT-"
  history_preview: 5
server:
  port: 9000
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("PORT", "9100")
	t.Setenv("LOG_LEVEL", "debug")

	c, err := load(path)
	require.NoError(t, err)

	assert.Equal(t, "salon", c.App.Name)
	assert.Equal(t, "GIFT-", c.Ledger.CodePrefix)
	assert.Equal(t, 5, c.Ledger.HistoryPreview)
	assert.Equal(t, 9100, c.Server.Port)
	assert.Equal(t, "debug", c.Log.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "postgres requires database url",
			mutate:  func(c *Config) { c.Storage.Driver = StoragePostgres },
			wantErr: "DATABASE_URL",
		},
		{
			name: "postgres with url",
			mutate: func(c *Config) {
				c.Storage.Driver = StoragePostgres
				c.Database.URL = "postgres://localhost/honeydae"
			},
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Storage.Driver = "sqlite" },
			wantErr: "unknown storage driver",
		},
		{
			name:    "empty code prefix",
			mutate:  func(c *Config) { c.Ledger.CodePrefix = "  " },
			wantErr: "code_prefix",
		},
		{
			name:    "no code attempts",
			mutate:  func(c *Config) { c.Ledger.CodeAttempts = 0 },
			wantErr: "code_attempts",
		},
		{
			name:    "max amount not a number",
			mutate:  func(c *Config) { c.Ledger.MaxAmount = "lots" },
			wantErr: "ledger.max_amount must be a positive number",
		},
		{
			name:    "max amount above column precision",
			mutate:  func(c *Config) { c.Ledger.MaxAmount = "1e15" },
			wantErr: "must not exceed",
		},
		{
			name:   "lower max amount",
			mutate: func(c *Config) { c.Ledger.MaxAmount = "5000" },
		},
		{
			name: "short bootstrap password",
			mutate: func(c *Config) {
				c.Bootstrap.AdminEmail = "admin@honeydae.com"
				c.Bootstrap.AdminPassword = "short"
			},
			wantErr: "ADMIN_PASSWORD",
		},
		{
			name: "wildcard origin with credentials",
			mutate: func(c *Config) {
				c.CORS.AllowedOrigins = []string{"*"}
				c.CORS.AllowCredentials = true
			},
			wantErr: "CORS wildcard",
		},
		{
			name: "generated keys in production",
			mutate: func(c *Config) {
				c.App.Environment = "production"
				c.JWT.GenerateKeys = true
			},
			wantErr: "JWT_GENERATE_KEYS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := load("")
			require.NoError(t, err)

			tt.mutate(c)
			err = validate(c)

			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEnvKeyReplacer_IgnoresUnknownKeys(t *testing.T) {
	assert.Equal(t, "database.url", envKeyReplacer("DATABASE_URL"))
	assert.Equal(t, "ledger.code_prefix", envKeyReplacer("CARD_CODE_PREFIX"))
	assert.Equal(t, "", envKeyReplacer("HOME"))
}
