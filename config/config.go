// Package config loads settings from an optional YAML file, then the
// environment, then the GCE metadata server.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"cloud.google.com/go/compute/metadata"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPort               = "8082"
	DefaultProfileImagePath   = "blank-profile-picture.png"
	DefaultDapImagePath       = "dapImage.PNG"
	DefaultIdentityToolkitURL = "https://identitytoolkit.googleapis.com/v1"
	DefaultFallbackProfileURL = "https://www.gravatar.com/avatar/?d=mp"
	DefaultLogName            = "dapper"
)

type Config struct {
	ProjectID     string `yaml:"project_id"`
	APIKey        string `yaml:"api_key"`
	StorageBucket string `yaml:"storage_bucket"`
	// CredentialsFile is a service account key; empty uses application default credentials.
	CredentialsFile    string `yaml:"credentials_file"`
	IdentityToolkitURL string `yaml:"identity_toolkit_url"`

	ProfileImagePath   string `yaml:"profile_image_path"`
	FallbackProfileURL string `yaml:"fallback_profile_url"`
	DapImagePath       string `yaml:"dap_image_path"`

	DatabaseURL string `yaml:"database_url"`
	Port        string `yaml:"port"`

	LogLevel     string `yaml:"log_level"`
	CloudLogging bool   `yaml:"cloud_logging"`
	LogName      string `yaml:"log_name"`
}

var envVars = map[string]func(c *Config, v string) error{
	"GOOGLE_CLOUD_PROJECT":           func(c *Config, v string) error { c.ProjectID = v; return nil },
	"FIREBASE_API_KEY":               func(c *Config, v string) error { c.APIKey = v; return nil },
	"FIREBASE_STORAGE_BUCKET":        func(c *Config, v string) error { c.StorageBucket = v; return nil },
	"GOOGLE_APPLICATION_CREDENTIALS": func(c *Config, v string) error { c.CredentialsFile = v; return nil },
	"IDENTITY_TOOLKIT_URL":           func(c *Config, v string) error { c.IdentityToolkitURL = v; return nil },
	"DATABASE_URL":                   func(c *Config, v string) error { c.DatabaseURL = v; return nil },
	"PORT":                           func(c *Config, v string) error { c.Port = v; return nil },
	"LOG_LEVEL":                      func(c *Config, v string) error { c.LogLevel = v; return nil },
	"CLOUD_LOGGING": func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("CLOUD_LOGGING: %w", err)
		}
		c.CloudLogging = b
		return nil
	},
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		IdentityToolkitURL: DefaultIdentityToolkitURL,
		ProfileImagePath:   DefaultProfileImagePath,
		FallbackProfileURL: DefaultFallbackProfileURL,
		DapImagePath:       DefaultDapImagePath,
		Port:               DefaultPort,
		LogLevel:           "info",
		LogName:            DefaultLogName,
	}
}

// Load reads path (skipped when empty or missing), applies environment
// overrides and fills the project id from the metadata server when running
// on GCE.
func Load(ctx context.Context, path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if cfg.ProjectID == "" && metadata.OnGCE() {
		projectID, err := metadata.ProjectIDWithContext(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get project ID: %w", err)
		}
		cfg.ProjectID = projectID
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	for name, set := range envVars {
		v, ok := lookup(name)
		if !ok || v == "" {
			continue
		}
		if err := set(c, v); err != nil {
			return err
		}
	}
	return nil
}

// Bucket returns the storage bucket, defaulting to the Firebase project bucket.
func (c *Config) Bucket() string {
	if c.StorageBucket != "" || c.ProjectID == "" {
		return c.StorageBucket
	}
	return c.ProjectID + ".appspot.com"
}
