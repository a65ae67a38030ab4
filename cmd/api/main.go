package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"furnicolor/internal/account"
	"furnicolor/internal/app"
	"furnicolor/internal/auth"
	"furnicolor/internal/catalog"
	"furnicolor/internal/config"
	"furnicolor/internal/events"
	"furnicolor/internal/logging"
	"furnicolor/internal/proxy"
	"furnicolor/internal/recolor"
	"furnicolor/internal/server"
	"furnicolor/internal/studio"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := logging.New("production", "")
		l.Fatal().Err(err).Msg("failed to load config")
	}
	logger := logging.New(cfg.AppEnv, cfg.LogLevel)

	ctx := context.Background()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init stores")
	}
	defer a.Close()

	accounts := account.NewService(a.Accounts)
	if _, created, err := accounts.EnsureAdmin(ctx, cfg.Accounts.DefaultAdminUser, cfg.Accounts.DefaultAdminPassword, cfg.Accounts.DefaultCredits); err != nil {
		logger.Fatal().Err(err).Msg("failed to seed admin account")
	} else if created {
		logger.Warn().Str("username", cfg.Accounts.DefaultAdminUser).Msg("default admin account created, change its password")
	}

	strategies, err := a.Strategies(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init recolor strategies")
	}

	sessions := auth.SessionManager{
		Secret:       sessionSecret(cfg.Session.Secret, logger),
		Duration:     cfg.Session.Duration,
		CookieName:   cfg.Session.CookieName,
		SecureCookie: cfg.Session.Secure,
	}

	maxUpload := cfg.MaxUploadMB << 20
	broker := events.NewBroker()
	catalogSvc := catalog.NewService(a.Catalog, a.Uploader, logger)

	studioSvc := &studio.Service{
		Strategies: strategies,
		Default:    cfg.Recolor.Strategy,
		Catalog:    catalogSvc,
		Accounts:   a.Accounts,
		History:    a.History,
		Events:     broker,
		Tasks:      recolor.NewTasks(),
		Logger:     logger,
	}
	studioHandler := studio.Handler{Service: studioSvc, MaxUploadBytes: maxUpload, Logger: logger}
	if a.Analyzer != nil {
		studioSvc.Analyzer = a.Analyzer
		studioHandler.Models = a.Analyzer
	}

	proxyHandler := proxy.Handler{Poller: a.Poller(), Logger: logger}
	if c := a.DashScope(); c != nil {
		proxyHandler.Jobs = c
	}
	if c := a.Replicate(); c != nil {
		proxyHandler.Styles = c
	}

	handlers := server.Handlers{
		Auth:    auth.Handler{Accounts: accounts, Sessions: sessions, Logger: logger},
		Session: auth.Middleware{Accounts: a.Accounts, Sessions: sessions, Logger: logger},
		Catalog: catalog.Handler{Service: catalogSvc, MaxUploadBytes: maxUpload},
		Studio:  studioHandler,
		Proxy:   proxyHandler,
		Events:  broker,

		ProxyToken: cfg.Recolor.ProxyToken,
	}
	if a.LocalMedia != nil {
		handlers.Media = http.FileServer(http.Dir(a.LocalMedia.BaseDir))
	}

	srv := server.New(cfg.Port, cfg.HTTP, logger, handlers)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)
	<-shutdownChan

	logger.Info().Msg("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
	}
}

// sessionSecret falls back to a fixed secret; config.Load already refuses an
// empty one outside development.
func sessionSecret(configured string, logger zerolog.Logger) []byte {
	if configured != "" {
		return []byte(configured)
	}
	logger.Warn().Msg("SESSION_SECRET missing, using a development secret")
	return []byte("furnicolor-dev-session")
}
