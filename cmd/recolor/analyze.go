package main

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"furnicolor/internal/app"
	"furnicolor/internal/imaging"
)

func newAnalyzeCmd(s *settings) *cobra.Command {
	var in string
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Identify the furniture in a photo",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := s.config()
			logger := s.logger(cmd, cfg)

			a, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.Analyzer == nil {
				return errors.New("GEMINI_API_KEY is required for analyze")
			}

			src, err := imaging.ReadFile(in, cfg.MaxUploadMB<<20)
			if err != nil {
				return err
			}
			analysis, err := a.Analyzer.Analyze(ctx, src)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			return enc.Encode(analysis)
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "Furniture photo")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}
