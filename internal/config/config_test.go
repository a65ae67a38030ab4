package config

import (
	"strings"
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("RECOLOR_STRATEGY", "")
	t.Setenv("RECOLOR_POLL_INTERVAL", "")
	t.Setenv("RECOLOR_MAX_ATTEMPTS", "")
	t.Setenv("DEFAULT_ADMIN_USER", "")
	t.Setenv("DEFAULT_ADMIN_PASSWORD", "")

	cfg := FromEnv()
	if cfg.Recolor.Strategy != StrategyLocal {
		t.Fatalf("strategy mismatch: got %q", cfg.Recolor.Strategy)
	}
	if cfg.Recolor.PollInterval != 2*time.Second {
		t.Fatalf("poll interval mismatch: got %s", cfg.Recolor.PollInterval)
	}
	if cfg.Recolor.MaxAttempts != 30 {
		t.Fatalf("max attempts mismatch: got %d", cfg.Recolor.MaxAttempts)
	}
	if cfg.Accounts.DefaultAdminUser != "admin" || cfg.Accounts.DefaultAdminPassword != "13142538" {
		t.Fatalf("default admin mismatch: %+v", cfg.Accounts)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("development defaults should validate: %v", err)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("RECOLOR_STRATEGY", "Remote")
	t.Setenv("RECOLOR_REMOTE_BACKEND", "replicate")
	t.Setenv("RECOLOR_POLL_INTERVAL", "250ms")
	t.Setenv("RECOLOR_MAX_ATTEMPTS", "5")
	t.Setenv("S3_KEY_PREFIX", "/textures/")

	cfg := FromEnv()
	if cfg.Recolor.Strategy != StrategyRemote || cfg.Recolor.RemoteBackend != BackendReplicate {
		t.Fatalf("recolor mismatch: %+v", cfg.Recolor)
	}
	if cfg.Recolor.PollInterval != 250*time.Millisecond || cfg.Recolor.MaxAttempts != 5 {
		t.Fatalf("polling mismatch: %+v", cfg.Recolor)
	}
	if cfg.Media.KeyPrefix != "textures" {
		t.Fatalf("key prefix mismatch: %q", cfg.Media.KeyPrefix)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "production requires session secret",
			mutate:  func(c *Config) { c.AppEnv = "production"; c.Session.Secret = "" },
			wantErr: "SESSION_SECRET",
		},
		{
			name:    "unknown strategy",
			mutate:  func(c *Config) { c.Recolor.Strategy = "magic" },
			wantErr: "RECOLOR_STRATEGY",
		},
		{
			name:    "unknown remote backend",
			mutate:  func(c *Config) { c.Recolor.Strategy = StrategyRemote; c.Recolor.RemoteBackend = "x" },
			wantErr: "RECOLOR_REMOTE_BACKEND",
		},
		{
			name:    "half configured supabase",
			mutate:  func(c *Config) { c.Supabase.URL = "https://x.supabase.co"; c.Supabase.Key = "" },
			wantErr: "SUPABASE_URL",
		},
		{
			name:    "zero attempts",
			mutate:  func(c *Config) { c.Recolor.MaxAttempts = 0 },
			wantErr: "RECOLOR_MAX_ATTEMPTS",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := FromEnv()
			cfg.AppEnv = "development"
			cfg.Supabase = SupabaseConfig{}
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected error containing %q", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}
