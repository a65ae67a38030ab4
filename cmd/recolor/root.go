package main

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"furnicolor/internal/config"
	"furnicolor/internal/logging"
)

// settings merges flags with RECOLOR_* environment variables.
type settings struct {
	v *viper.Viper
}

func newSettings() *settings {
	v := viper.New()
	v.SetEnvPrefix("RECOLOR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return &settings{v: v}
}

// config builds the service configuration with flag overrides applied.
func (s *settings) config() config.Config {
	cfg := config.FromEnv()
	if v := s.v.GetString("strategy"); v != "" {
		cfg.Recolor.Strategy = strings.ToLower(v)
	}
	if v := s.v.GetString("remote-backend"); v != "" {
		cfg.Recolor.RemoteBackend = strings.ToLower(v)
	}
	if d := s.v.GetDuration("poll-interval"); d > 0 {
		cfg.Recolor.PollInterval = d
	}
	if n := s.v.GetInt("max-attempts"); n > 0 {
		cfg.Recolor.MaxAttempts = n
	}
	return cfg
}

func (s *settings) logger(cmd *cobra.Command, cfg config.Config) zerolog.Logger {
	level := cfg.LogLevel
	if s.v.GetBool("verbose") {
		level = "debug"
	}
	return logging.NewWithWriter(cmd.ErrOrStderr(), "development", level)
}

func newRootCmd() *cobra.Command {
	s := newSettings()
	cmd := &cobra.Command{
		Use:   "recolor",
		Short: "Recolor furniture photos with a catalog swatch",
		Long: `recolor runs the furnicolor pipeline on local files.

It identifies the furniture in a photo and renders it in a swatch color using
the local compositing, remote job or direct edit strategy.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			for _, name := range []string{".env.local", ".env"} {
				if _, err := os.Stat(name); err == nil {
					_ = godotenv.Load(name)
				}
			}
		},
	}

	cmd.PersistentFlags().Bool("verbose", false, "Log debug output to stderr")
	_ = s.v.BindPFlag("verbose", cmd.PersistentFlags().Lookup("verbose"))

	cmd.AddCommand(newRunCmd(s))
	cmd.AddCommand(newAnalyzeCmd(s))
	cmd.AddCommand(newSwatchesCmd(s))

	return cmd
}
