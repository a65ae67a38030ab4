package app

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"furnicolor/internal/account"
	"furnicolor/internal/catalog"
	"furnicolor/internal/config"
	"furnicolor/internal/storage"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		AppEnv: "development",
		Port:   "0",
		Media:  config.MediaConfig{LocalDir: t.TempDir()},
		Recolor: config.RecolorConfig{
			Strategy:      config.StrategyLocal,
			RemoteBackend: config.BackendDashScope,
		},
	}
}

func TestNewFallsBackToMemory(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if _, ok := a.Catalog.(*catalog.MemoryStore); !ok {
		t.Fatalf("catalog store = %T", a.Catalog)
	}
	if _, ok := a.Accounts.(*account.MemoryStore); !ok {
		t.Fatalf("account store = %T", a.Accounts)
	}
	if _, ok := a.History.(*storage.InMemoryStore); !ok {
		t.Fatalf("history store = %T", a.History)
	}
	if a.LocalMedia == nil || a.Uploader == nil {
		t.Fatal("local uploader expected without S3 or Supabase")
	}
	if a.Analyzer != nil {
		t.Fatal("analyzer must stay nil without an API key")
	}
}

func TestStrategies(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		want    []string
		wantErr string
	}{
		{name: "local only", mutate: func(*config.Config) {}, want: []string{"local"}},
		{
			name: "remote through proxy",
			mutate: func(c *config.Config) {
				c.Recolor.Strategy = config.StrategyRemote
				c.Recolor.RemoteBackend = config.BackendProxy
				c.Recolor.ProxyURL = "http://localhost:8080/api/jobs"
			},
			want: []string{"local", "remote"},
		},
		{
			name: "remote through replicate",
			mutate: func(c *config.Config) {
				c.Recolor.Strategy = config.StrategyRemote
				c.Recolor.RemoteBackend = config.BackendReplicate
				c.Recolor.ReplicateToken = "r8_test"
			},
			want: []string{"local", "remote"},
		},
		{
			name:    "remote without credentials",
			mutate:  func(c *config.Config) { c.Recolor.Strategy = config.StrategyRemote },
			wantErr: "not configured",
		},
		{
			name:    "direct without model",
			mutate:  func(c *config.Config) { c.Recolor.Strategy = config.StrategyDirect },
			wantErr: "not configured",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig(t)
			tc.mutate(&cfg)
			a, err := New(context.Background(), cfg, zerolog.Nop())
			if err != nil {
				t.Fatal(err)
			}
			defer a.Close()

			got, err := a.Strategies(context.Background())
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Strategies: %v", err)
			}
			if strings.Join(names(got), ",") != strings.Join(tc.want, ",") {
				t.Fatalf("strategies = %v, want %v", names(got), tc.want)
			}
		})
	}
}

func TestRemoteLabel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Recolor.Strategy = config.StrategyRemote
	cfg.Recolor.DashScopeAPIKey = "test-key"
	a, err := New(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	got, err := a.Strategies(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if name := got[config.StrategyRemote].Name(); name != "remote:dashscope" {
		t.Fatalf("remote name = %q", name)
	}
}
