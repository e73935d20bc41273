package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	h3mapper "github.com/mohammed-shakir/dggs-stac-export/internal/mapper/h3"
)

var (
	zonesBBox   string
	zonesSystem string
	zonesLevel  int
	zonesLocal  bool
	zonesCached bool
)

var zonesCmd = &cobra.Command{
	Use:   "zones",
	Short: "List the DGGS zones intersecting a bounding box",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		ext, err := queryExtent(zonesBBox)
		if err != nil {
			return err
		}
		level := cfg.DGGS.ZoneLevel
		if cmd.Flags().Changed("level") {
			level = zonesLevel
		}

		// H3 cells can be computed without the service
		if zonesLocal {
			cells, err := h3mapper.New().CellsForExtent(ext, level)
			if err != nil {
				return err
			}
			for _, c := range cells {
				fmt.Println(c)
			}
			return nil
		}

		system := pick(zonesSystem, cfg.DGGS.System)
		p, err := newPipeline(ctx, cfg, appLog)
		if err != nil {
			return err
		}
		defer p.Close()

		ids, err := p.resolver.ListZonesForExtent(ctx, ext, system, level)
		if err != nil {
			return err
		}
		var cached map[string]bool
		if zonesCached {
			if cached, err = p.client.CachedZones(ctx, system, ids); err != nil {
				return err
			}
		}
		for _, id := range ids {
			if cached != nil && cached[id] {
				fmt.Printf("%s\tcached\n", id)
				continue
			}
			fmt.Println(id)
		}
		appLog.Debug("zones listed", "system", system, "level", level, "count", len(ids))
		return nil
	},
}

func init() {
	f := zonesCmd.Flags()
	f.StringVar(&zonesBBox, "bbox", "", "minLon,minLat,maxLon,maxLat in EPSG:4326")
	f.StringVar(&zonesSystem, "dggs", "", "DGGS identifier (default from config)")
	f.IntVar(&zonesLevel, "level", 0, "Zone refinement level (H3 resolution with --local)")
	f.BoolVar(&zonesLocal, "local", false, "Compute H3 cells locally instead of asking the service")
	f.BoolVar(&zonesCached, "cached", false, "Mark zones whose data is in the response cache")
	_ = zonesCmd.MarkFlagRequired("bbox")
	rootCmd.AddCommand(zonesCmd)
}
