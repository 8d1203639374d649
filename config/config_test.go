package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile(t *testing.T) {
	t.Setenv("GOOGLE_CLOUD_PROJECT", "")
	t.Setenv("FIREBASE_STORAGE_BUCKET", "")
	t.Setenv("PORT", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("CLOUD_LOGGING", "")
	path := filepath.Join(t.TempDir(), "dapper.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
project_id: dapper-dev
api_key: web-key
dap_image_path: daps/heart.png
log_level: debug
cloud_logging: true
`), 0o600))

	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "dapper-dev", cfg.ProjectID)
	assert.Equal(t, "web-key", cfg.APIKey)
	assert.Equal(t, "daps/heart.png", cfg.DapImagePath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.CloudLogging)
	assert.Equal(t, DefaultProfileImagePath, cfg.ProfileImagePath)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, "dapper-dev.appspot.com", cfg.Bucket())
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("GOOGLE_CLOUD_PROJECT", "from-env")
	cfg, err := Load(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.ProjectID)
	assert.Equal(t, DefaultIdentityToolkitURL, cfg.IdentityToolkitURL)
}

func TestLoadInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dapper.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [1, 2"), 0o600))
	_, err := Load(context.Background(), path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		check   func(t *testing.T, c *Config)
		wantErr bool
	}{
		{
			name: "overrides",
			env: map[string]string{
				"FIREBASE_API_KEY":        "key",
				"FIREBASE_STORAGE_BUCKET": "bucket",
				"DATABASE_URL":            "postgres://localhost/dapper",
				"PORT":                    "9000",
				"CLOUD_LOGGING":           "true",
			},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, "key", c.APIKey)
				assert.Equal(t, "bucket", c.Bucket())
				assert.Equal(t, "postgres://localhost/dapper", c.DatabaseURL)
				assert.Equal(t, "9000", c.Port)
				assert.True(t, c.CloudLogging)
			},
		},
		{
			name: "empty values are ignored",
			env:  map[string]string{"PORT": ""},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, DefaultPort, c.Port)
			},
		},
		{
			name:    "bad bool",
			env:     map[string]string{"CLOUD_LOGGING": "maybe"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			err := c.applyEnv(func(k string) (string, bool) {
				v, ok := tt.env[k]
				return v, ok
			})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, c)
		})
	}
}

func TestBucket(t *testing.T) {
	assert.Empty(t, (&Config{}).Bucket())
	assert.Equal(t, "p.appspot.com", (&Config{ProjectID: "p"}).Bucket())
	assert.Equal(t, "custom", (&Config{ProjectID: "p", StorageBucket: "custom"}).Bucket())
}
