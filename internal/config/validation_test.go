package config_test

import (
	"errors"
	"testing"

	"github.com/LatVAlY/specWise/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Validate(t *testing.T) {
	valid := func() config.Config {
		return config.Config{
			DBHost:              "localhost",
			DBUser:              "user",
			DBName:              "db",
			CompletionProvider:  config.ProviderGemini,
			WindowSize:          2,
			ExtractMaxRetries:   3,
			ConfidenceThreshold: 0.5,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr bool
		errIs   error
	}{
		{
			name:    "Valid Config",
			mutate:  func(c *config.Config) {},
			wantErr: false,
		},
		{
			name:    "Missing DBHost",
			mutate:  func(c *config.Config) { c.DBHost = "" },
			wantErr: true,
			errIs:   config.ErrMissingRequired,
		},
		{
			name:    "Missing DBUser",
			mutate:  func(c *config.Config) { c.DBUser = "" },
			wantErr: true,
			errIs:   config.ErrMissingRequired,
		},
		{
			name:    "Missing DBName",
			mutate:  func(c *config.Config) { c.DBName = "" },
			wantErr: true,
			errIs:   config.ErrMissingRequired,
		},
		{
			name:    "Unknown Provider",
			mutate:  func(c *config.Config) { c.CompletionProvider = "other" },
			wantErr: true,
			errIs:   config.ErrInvalid,
		},
		{
			name:    "Threshold Out Of Range",
			mutate:  func(c *config.Config) { c.ConfidenceThreshold = 1.5 },
			wantErr: true,
			errIs:   config.ErrInvalid,
		},
		{
			name:    "Search Alpha Out Of Range",
			mutate:  func(c *config.Config) { c.SearchAlpha = -0.1 },
			wantErr: true,
			errIs:   config.ErrInvalid,
		},
		{
			name:    "Negative Retries",
			mutate:  func(c *config.Config) { c.ExtractMaxRetries = -1 },
			wantErr: true,
			errIs:   config.ErrInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				if tt.errIs != nil {
					assert.True(t, errors.Is(err, tt.errIs))
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
