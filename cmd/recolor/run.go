package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"furnicolor/internal/app"
	"furnicolor/internal/catalog"
	"furnicolor/internal/imaging"
	"furnicolor/internal/recolor"
	"furnicolor/internal/studio"
	"furnicolor/internal/vision"
)

func newRunCmd(s *settings) *cobra.Command {
	var (
		in, out, swatchID, hex, name, category, furniture string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Recolor a photo",
		Example: `  recolor run --in sofa.jpg --hex '#3B2F2F' --out sofa-walnut.png
  recolor run --in chair.png --swatch w1 --strategy remote`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := s.config()
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger := s.logger(cmd, cfg)

			a, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			src, err := imaging.ReadFile(in, cfg.MaxUploadMB<<20)
			if err != nil {
				return err
			}
			sw, err := resolveSwatch(ctx, catalog.NewService(a.Catalog, a.Uploader, logger), swatchID, hex, name, category)
			if err != nil {
				return err
			}
			if furniture == "" {
				analysis, _ := vision.Degrading{Analyzer: analyzerOf(a), Logger: logger}.Analyze(ctx, src)
				furniture = analysis.Type
				fmt.Fprintf(cmd.ErrOrStderr(), "detected: %s (%s)\n", analysis.Type, analysis.Material)
			}

			strategies, err := a.Strategies(ctx)
			if err != nil {
				return err
			}
			strategy := strategies[cfg.Recolor.Strategy]

			ctx = recolor.WithProgress(ctx, func(p recolor.Progress) {
				if p.Attempt > 0 {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s #%d %s\n", p.Stage, p.Attempt, p.Status)
					return
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", p.Stage, p.TaskID)
			})
			res, err := strategy.Recolor(ctx, recolor.Request{
				Source:           src,
				FurnitureType:    furniture,
				ColorDescription: studio.ColorDescription(sw),
				Hex:              sw.Hex,
			})
			if err != nil {
				return fmt.Errorf("%s: %w", strategy.Name(), err)
			}
			if err := writeResult(ctx, http.DefaultClient, res, out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", out)
			return nil
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "Furniture photo (JPEG, PNG, GIF or WebP)")
	cmd.Flags().StringVar(&out, "out", "recolored.png", "Where to write the result")
	cmd.Flags().StringVar(&swatchID, "swatch", "", "Catalog swatch id")
	cmd.Flags().StringVar(&hex, "hex", "", "Target color as #RRGGBB (instead of --swatch)")
	cmd.Flags().StringVar(&name, "name", "", "Color name used in prompts with --hex")
	cmd.Flags().StringVar(&category, "category", "", "Color category used in prompts with --hex")
	cmd.Flags().StringVar(&furniture, "type", "", "Furniture type; detected from the photo when empty")
	cmd.Flags().String("strategy", "", "remote, local or direct (env RECOLOR_STRATEGY)")
	cmd.Flags().String("remote-backend", "", "dashscope, proxy or replicate (env RECOLOR_REMOTE_BACKEND)")
	cmd.Flags().Duration("poll-interval", 0, "Remote job poll interval (env RECOLOR_POLL_INTERVAL)")
	cmd.Flags().Int("max-attempts", 0, "Remote job poll budget (env RECOLOR_MAX_ATTEMPTS)")
	_ = cmd.MarkFlagRequired("in")
	for _, key := range []string{"strategy", "remote-backend", "poll-interval", "max-attempts"} {
		_ = s.v.BindPFlag(key, cmd.Flags().Lookup(key))
	}

	return cmd
}

func analyzerOf(a *app.App) vision.Analyzer {
	if a.Analyzer == nil {
		return nil
	}
	return a.Analyzer
}

func resolveSwatch(ctx context.Context, svc *catalog.Service, id, hex, name, category string) (catalog.Swatch, error) {
	if id != "" {
		sw, err := svc.Swatch(ctx, id)
		if err != nil {
			return catalog.Swatch{}, fmt.Errorf("swatch %q: %w", id, err)
		}
		return sw, nil
	}
	if hex == "" {
		return catalog.Swatch{}, errors.New("either --swatch or --hex is required")
	}
	normalized, err := catalog.NormalizeHex(hex)
	if err != nil {
		return catalog.Swatch{}, err
	}
	if name == "" {
		name = normalized
	}
	return catalog.Swatch{Name: name, Hex: normalized, Category: category}, nil
}

// writeResult stores inline image data or downloads a hosted result.
func writeResult(ctx context.Context, client *http.Client, res recolor.Result, path string) error {
	if len(res.Data) > 0 {
		return os.WriteFile(path, res.Data, 0o644)
	}
	if strings.TrimSpace(res.ImageURL) == "" {
		return recolor.ErrNoResult
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, res.ImageURL, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download result: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download result: status %d", resp.StatusCode)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return fmt.Errorf("write result: %w", err)
	}
	return f.Close()
}
