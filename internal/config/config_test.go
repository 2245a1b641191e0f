package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
			} else {
				require.NoError(t, err)
				require.NotNil(t, cfg)

				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, "portalsync_db", cfg.Database.Database)
				assert.Equal(t, "sync_exchange", cfg.RabbitMQ.Exchange)
				assert.Equal(t, "sync_jobs", cfg.RabbitMQ.Queue)
				assert.Equal(t, "portal-sync", cfg.App.Name)
				assert.Equal(t, 4, cfg.Worker.MinWorkers)
				assert.Equal(t, 16, cfg.Worker.MaxWorkers)
				assert.Equal(t, time.Minute, cfg.Sweeper.Interval)
				assert.Equal(t, 5*time.Minute, cfg.Sweeper.StaleAfter)
				assert.Equal(t, 10*time.Minute, cfg.Redis.CredentialTTL)
			}
		})
	}
}

func TestValidateAPIConfig(t *testing.T) {
	valid := func(t *testing.T) *Config {
		t.Helper()
		cfg, err := Load("testdata/valid_config.yaml")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name      string
		mutate    func(*Config)
		errString string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:      "bad server port",
			mutate:    func(c *Config) { c.Server.Port = 0 },
			errString: "invalid server port",
		},
		{
			name:      "missing database host",
			mutate:    func(c *Config) { c.Database.Host = "" },
			errString: "database host is required",
		},
		{
			name:      "missing redis host",
			mutate:    func(c *Config) { c.Redis.Host = "" },
			errString: "redis host is required",
		},
		{
			name:      "missing credential ttl",
			mutate:    func(c *Config) { c.Redis.CredentialTTL = 0 },
			errString: "credential_ttl",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid(t)
			tt.mutate(cfg)

			err := cfg.ValidateAPIConfig()
			if tt.errString == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			}
		})
	}
}

func TestValidateWorkerConfig(t *testing.T) {
	valid := func(t *testing.T) *Config {
		t.Helper()
		cfg, err := Load("testdata/valid_config.yaml")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name      string
		mutate    func(*Config)
		errString string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:      "zero min workers",
			mutate:    func(c *Config) { c.Worker.MinWorkers = 0 },
			errString: "min_workers",
		},
		{
			name:      "max below min",
			mutate:    func(c *Config) { c.Worker.MaxWorkers = 1; c.Worker.MinWorkers = 4 },
			errString: "max_workers",
		},
		{
			name:      "zero backlog",
			mutate:    func(c *Config) { c.Worker.Backlog = 0 },
			errString: "backlog",
		},
		{
			name:      "zero sweeper interval",
			mutate:    func(c *Config) { c.Sweeper.Interval = 0 },
			errString: "sweeper interval",
		},
		{
			name:      "missing portal base url",
			mutate:    func(c *Config) { c.Portal.BaseURL = "" },
			errString: "portal base_url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid(t)
			tt.mutate(cfg)

			err := cfg.ValidateWorkerConfig()
			if tt.errString == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			}
		})
	}
}
