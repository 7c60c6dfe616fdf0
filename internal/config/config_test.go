package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "default values",
			env:  map[string]string{},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Port != "8080" {
					t.Errorf("expected port 8080, got %s", cfg.Port)
				}
				if cfg.LogLevel != "info" {
					t.Errorf("expected log level info, got %s", cfg.LogLevel)
				}
				if cfg.WSReadTimeout != 60*time.Second {
					t.Errorf("expected WSReadTimeout 60s, got %v", cfg.WSReadTimeout)
				}
				if cfg.HourRolloverInterval != 30*time.Second {
					t.Errorf("expected HourRolloverInterval 30s, got %v", cfg.HourRolloverInterval)
				}
				if cfg.HourIdleTimeout != 30*time.Minute {
					t.Errorf("expected HourIdleTimeout 30m, got %v", cfg.HourIdleTimeout)
				}
				if cfg.HourCacheTTL != 24*time.Hour {
					t.Errorf("expected HourCacheTTL 24h, got %v", cfg.HourCacheTTL)
				}
				if cfg.DBMaxConns != 10 {
					t.Errorf("expected DBMaxConns 10, got %d", cfg.DBMaxConns)
				}
				if cfg.RedisAddr != "" {
					t.Errorf("expected empty RedisAddr, got %s", cfg.RedisAddr)
				}
				if cfg.VerifySignature {
					t.Error("expected signature verification off in development")
				}
				if cfg.RealtimeChannel != "dailywin_changes" {
					t.Errorf("expected channel dailywin_changes, got %s", cfg.RealtimeChannel)
				}
			},
		},
		{
			name: "custom values",
			env: map[string]string{
				"PORT":                   "9000",
				"LOG_LEVEL":              "debug",
				"WS_READ_TIMEOUT":        "30",
				"WS_WRITE_TIMEOUT":       "5",
				"ALLOWED_ORIGINS":        "http://example.com, http://test.com",
				"TIMEZONE":               "America/Chicago",
				"HOUR_ROLLOVER_INTERVAL": "10s",
				"REDIS_ADDR":             "localhost:6379",
				"REDIS_DB":               "2",
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Port != "9000" {
					t.Errorf("expected port 9000, got %s", cfg.Port)
				}
				if cfg.WSWriteTimeout != 5*time.Second {
					t.Errorf("expected WSWriteTimeout 5s, got %v", cfg.WSWriteTimeout)
				}
				if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "http://test.com" {
					t.Errorf("expected 2 trimmed allowed origins, got %v", cfg.AllowedOrigins)
				}
				if cfg.Location.String() != "America/Chicago" {
					t.Errorf("expected America/Chicago, got %s", cfg.Location)
				}
				if cfg.HourRolloverInterval != 10*time.Second {
					t.Errorf("expected 10s rollover, got %v", cfg.HourRolloverInterval)
				}
				if cfg.RedisDB != 2 {
					t.Errorf("expected redis db 2, got %d", cfg.RedisDB)
				}
			},
		},
		{
			name: "production requires jwks url",
			env: map[string]string{
				"ENV": "production",
			},
			wantErr: true,
		},
		{
			name: "production with jwks url",
			env: map[string]string{
				"ENV":           "production",
				"AUTH_JWKS_URL": "https://auth.example.com/.well-known/jwks.json",
			},
			check: func(t *testing.T, cfg *Config) {
				if !cfg.VerifySignature {
					t.Error("expected signature verification in production")
				}
			},
		},
		{
			name:    "invalid WS_READ_TIMEOUT",
			env:     map[string]string{"WS_READ_TIMEOUT": "invalid"},
			wantErr: true,
		},
		{
			name:    "invalid WS_WRITE_TIMEOUT",
			env:     map[string]string{"WS_WRITE_TIMEOUT": "invalid"},
			wantErr: true,
		},
		{
			name:    "invalid HOUR_ROLLOVER_INTERVAL",
			env:     map[string]string{"HOUR_ROLLOVER_INTERVAL": "often"},
			wantErr: true,
		},
		{
			name:    "invalid TIMEZONE",
			env:     map[string]string{"TIMEZONE": "Mars/Olympus"},
			wantErr: true,
		},
		{
			name:    "invalid DB_MAX_CONNS",
			env:     map[string]string{"DB_MAX_CONNS": "lots"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear environment
			os.Clearenv()

			// Set test environment variables
			for k, v := range tt.env {
				os.Setenv(k, v)
			}

			cfg, err := Load()

			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestWebSocketConstants(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.PongWait != cfg.WSReadTimeout {
		t.Errorf("PongWait (%v) should equal WSReadTimeout (%v)", cfg.PongWait, cfg.WSReadTimeout)
	}

	if cfg.PingPeriod >= cfg.PongWait {
		t.Errorf("PingPeriod (%v) should be less than PongWait (%v)", cfg.PingPeriod, cfg.PongWait)
	}

	if cfg.WriteWait != cfg.WSWriteTimeout {
		t.Errorf("WriteWait (%v) should equal WSWriteTimeout (%v)", cfg.WriteWait, cfg.WSWriteTimeout)
	}

	if cfg.MaxMessageSize <= 0 {
		t.Errorf("MaxMessageSize should be positive, got %d", cfg.MaxMessageSize)
	}
}
