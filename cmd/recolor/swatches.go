package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"furnicolor/internal/app"
	"furnicolor/internal/catalog"
)

func newSwatchesCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "swatches",
		Short: "List the swatch catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := s.config()
			logger := s.logger(cmd, cfg)

			a, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			c := catalog.NewService(a.Catalog, a.Uploader, logger).List(ctx)
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tHEX\tCATEGORY\tFINISH")
			for _, sw := range c.Swatches {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", sw.ID, sw.Name, sw.Hex, sw.Category, sw.Finish)
			}
			if c.Defaults {
				fmt.Fprintln(tw, "(built-in defaults)")
			}
			return tw.Flush()
		},
	}
}
