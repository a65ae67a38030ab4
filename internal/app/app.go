// Package app builds the service components from configuration. The HTTP
// service and the command-line tools share it.
package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/supabase-community/supabase-go"

	"furnicolor/internal/account"
	"furnicolor/internal/catalog"
	"furnicolor/internal/config"
	"furnicolor/internal/dashscope"
	"furnicolor/internal/media"
	"furnicolor/internal/proxy"
	"furnicolor/internal/recolor"
	"furnicolor/internal/replicate"
	"furnicolor/internal/storage"
	"furnicolor/internal/vision"
)

// App holds the data layer and the external clients.
type App struct {
	Config config.Config
	Logger zerolog.Logger

	Pool     *pgxpool.Pool
	Supabase *supabase.Client

	Accounts account.Store
	Catalog  catalog.Store
	History  storage.Store
	Uploader media.Uploader
	// LocalMedia is set when uploads go to the local filesystem.
	LocalMedia *media.LocalUploader

	Analyzer *vision.GeminiAnalyzer
}

// New connects the stores and clients selected by cfg.
func New(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}
	if err := a.openStores(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openUploader(ctx); err != nil {
		a.Close()
		return nil, err
	}

	if cfg.Gemini.APIKey != "" {
		analyzer, err := vision.NewGeminiAnalyzer(ctx, cfg.Gemini.APIKey, cfg.Gemini.AnalysisModel, cfg.Gemini.Timeout)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Analyzer = analyzer
	} else {
		logger.Warn().Msg("GEMINI_API_KEY missing, furniture analysis returns the placeholder")
	}
	return a, nil
}

func (a *App) openStores(ctx context.Context) error {
	cfg := a.Config
	switch {
	case cfg.DatabaseURL != "":
		pool, err := storage.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		a.Pool = pool
		if a.Catalog, err = catalog.NewPostgresStore(ctx, pool); err != nil {
			return err
		}
		if a.Accounts, err = account.NewPostgresStore(ctx, pool); err != nil {
			return err
		}
		if a.History, err = storage.NewStore(ctx, pool); err != nil {
			return err
		}
		a.Logger.Info().Msg("store ready: postgres")
	case cfg.Supabase.URL != "":
		client, err := a.supabaseClient()
		if err != nil {
			return err
		}
		a.Catalog = catalog.NewSupabaseStore(client)
		a.Accounts = account.NewSupabaseStore(client)
		a.History = storage.NewInMemoryStore()
		a.Logger.Info().Str("url", cfg.Supabase.URL).Msg("store ready: supabase")
	default:
		a.Catalog = catalog.NewMemoryStore()
		a.Accounts = account.NewMemoryStore()
		a.History = storage.NewInMemoryStore()
		a.Logger.Warn().Msg("store ready: in-memory (DATABASE_URL and SUPABASE_URL missing)")
	}
	return nil
}

func (a *App) openUploader(ctx context.Context) error {
	m := a.Config.Media
	switch {
	case m.Bucket != "" && m.Region != "":
		uploader, err := media.NewUploader(ctx, media.Config{
			Bucket:          m.Bucket,
			Region:          m.Region,
			Endpoint:        m.Endpoint,
			PublicURL:       m.PublicURL,
			KeyPrefix:       m.KeyPrefix,
			ForcePathStyle:  m.ForcePathStyle,
			AccessKeyID:     m.AccessKeyID,
			SecretAccessKey: m.SecretAccessKey,
		})
		if err != nil {
			return fmt.Errorf("init media uploader: %w", err)
		}
		a.Uploader = uploader
		a.Logger.Info().Str("bucket", m.Bucket).Msg("media uploader: s3")
	case a.Config.Supabase.URL != "":
		client, err := a.supabaseClient()
		if err != nil {
			return err
		}
		uploader, err := media.NewSupabaseUploader(client.Storage, a.Config.Supabase.StorageBucket, m.KeyPrefix)
		if err != nil {
			return err
		}
		a.Uploader = uploader
		a.Logger.Info().Str("bucket", a.Config.Supabase.StorageBucket).Msg("media uploader: supabase storage")
	default:
		local, err := media.NewLocalUploader(m.LocalDir, m.LocalBaseURL)
		if err != nil {
			return fmt.Errorf("init local media storage: %w", err)
		}
		a.Uploader = local
		a.LocalMedia = local
		a.Logger.Info().Str("dir", local.BaseDir).Msg("media uploader: local storage (S3 config missing)")
	}
	return nil
}

// supabaseClient returns the shared Supabase client, creating it on first use.
func (a *App) supabaseClient() (*supabase.Client, error) {
	if a.Supabase != nil {
		return a.Supabase, nil
	}
	client, err := supabase.NewClient(a.Config.Supabase.URL, a.Config.Supabase.Key, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	a.Supabase = client
	return client, nil
}

// Poller returns the polling budget shared by the remote backends.
func (a *App) Poller() recolor.Poller {
	return recolor.Poller{Interval: a.Config.Recolor.PollInterval, MaxAttempts: a.Config.Recolor.MaxAttempts}
}

// DashScope returns the provider client when an API key is configured.
func (a *App) DashScope() *dashscope.Client {
	if a.Config.Recolor.DashScopeAPIKey == "" {
		return nil
	}
	return dashscope.NewClient(dashscope.Options{
		BaseURL: a.Config.Recolor.DashScopeBaseURL,
		APIKey:  a.Config.Recolor.DashScopeAPIKey,
		Model:   a.Config.Recolor.DashScopeModel,
	})
}

// Replicate returns the prediction client when a token is configured.
func (a *App) Replicate() *replicate.Client {
	if a.Config.Recolor.ReplicateToken == "" {
		return nil
	}
	c, err := replicate.NewClient(replicate.Options{
		BaseURL: a.Config.Recolor.ReplicateBaseURL,
		Token:   a.Config.Recolor.ReplicateToken,
		Version: a.Config.Recolor.ReplicateVersion,
	})
	if err != nil {
		a.Logger.Error().Err(err).Msg("replicate client unavailable")
		return nil
	}
	return c
}

// Strategies builds every recolor strategy the configuration allows. The
// configured default is always present or an error is returned.
func (a *App) Strategies(ctx context.Context) (map[string]recolor.Strategy, error) {
	cfg := a.Config.Recolor
	out := make(map[string]recolor.Strategy)

	local, err := recolor.NewLocalCompositing(recolor.DefaultOpacities)
	if err != nil {
		return nil, err
	}
	out[config.StrategyLocal] = local

	if backend := a.remoteBackend(); backend != nil {
		out[config.StrategyRemote] = &recolor.RemoteJob{
			Backend:  backend,
			Uploader: a.Uploader,
			Poller:   a.Poller(),
			Logger:   a.Logger,
			Label:    "remote:" + cfg.RemoteBackend,
		}
	}

	editor, err := a.editor(ctx)
	if err != nil {
		return nil, err
	}
	if editor != nil {
		out[config.StrategyDirect] = &recolor.DirectEdit{Editor: editor}
	}

	if _, ok := out[cfg.Strategy]; !ok {
		return nil, fmt.Errorf("recolor strategy %q is not configured (available: %v)", cfg.Strategy, names(out))
	}
	a.Logger.Info().Str("default", cfg.Strategy).Strs("available", names(out)).Msg("recolor strategies ready")
	return out, nil
}

func (a *App) remoteBackend() recolor.JobBackend {
	cfg := a.Config.Recolor
	switch cfg.RemoteBackend {
	case config.BackendDashScope:
		if c := a.DashScope(); c != nil {
			return c
		}
	case config.BackendProxy:
		if cfg.ProxyURL != "" {
			return proxy.NewClient(cfg.ProxyURL, cfg.ProxyToken, 30*time.Second)
		}
	case config.BackendReplicate:
		if c := a.Replicate(); c != nil {
			return c
		}
	}
	return nil
}

func (a *App) editor(ctx context.Context) (recolor.Editor, error) {
	if a.Config.Recolor.DirectEditBackend == "imagen" {
		if a.Config.Imagen.ProjectID == "" {
			return nil, nil
		}
		return vision.NewVertexImagen(vision.VertexImagenConfig{
			ProjectID:          a.Config.Imagen.ProjectID,
			Location:           a.Config.Imagen.Location,
			Model:              a.Config.Imagen.Model,
			APIKey:             a.Config.Imagen.APIKey,
			ServiceAccount:     a.Config.Imagen.ServiceAccount,
			ServiceAccountJSON: a.Config.Imagen.ServiceAccountJSON,
		}), nil
	}
	if a.Config.Gemini.APIKey == "" {
		return nil, nil
	}
	return vision.NewGeminiEditor(ctx, a.Config.Gemini.APIKey, a.Config.Gemini.EditModel, a.Config.Gemini.Timeout)
}

// Close releases the database pool.
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
}

func names(m map[string]recolor.Strategy) []string {
	out := make([]string, 0, len(m))
	for name := range m {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
