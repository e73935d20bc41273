package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/dggs-stac-export/internal/core/router"
	"github.com/mohammed-shakir/dggs-stac-export/internal/extent"
)

var (
	covBBox   string
	covSystem string
	covZone   string
	covLevel  int
	covOut    string
)

var coverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Summarize DGGS coverage for a bounding box, or save its features",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		ext, err := queryExtent(covBBox)
		if err != nil {
			return err
		}
		system := pick(covSystem, cfg.DGGS.System)

		p, err := newPipeline(ctx, cfg, appLog)
		if err != nil {
			return err
		}
		defer p.Close()

		agg := p.agg
		if cmd.Flags().Changed("level") {
			agg = agg.AtLevel(covLevel)
		}
		if covOut != "" {
			if err := agg.FetchAndPersist(ctx, ext, system, covZone, covOut); err != nil {
				return err
			}
			fmt.Printf("Coverage saved to %s\n", covOut)
			return nil
		}

		s := agg.SummarizeZone(ctx, ext, system, covZone)
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(s); err != nil {
			return err
		}
		if !s.Success {
			return fmt.Errorf("coverage failed: %s", s.Error)
		}
		return nil
	},
}

func init() {
	f := coverageCmd.Flags()
	f.StringVar(&covBBox, "bbox", "", "minLon,minLat,maxLon,maxLat in EPSG:4326")
	f.StringVar(&covSystem, "dggs", "", "DGGS identifier (default from config)")
	f.StringVar(&covZone, "zone", "", "Query a single zone instead of resolving the bbox")
	f.IntVar(&covLevel, "level", 0, "Zone refinement level used for resolution")
	f.StringVar(&covOut, "out", "", "Write the merged features as GeoJSON to this path")
	_ = coverageCmd.MarkFlagRequired("bbox")
	rootCmd.AddCommand(coverageCmd)
}

// queryExtent parses and clamps a bbox flag and applies the configured size limits.
func queryExtent(raw string) (extent.GeoExtent, error) {
	ext, err := router.ParseBBox(raw)
	if err != nil {
		return extent.GeoExtent{}, fmt.Errorf("invalid --bbox: %w", err)
	}
	ext = extent.ClampToDGGSBounds(ext)
	if err := extent.ValidateSize(ext, cfg.Export.MaxWidth, cfg.Export.MaxHeight); err != nil {
		return extent.GeoExtent{}, err
	}
	return ext, nil
}

func pick(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
