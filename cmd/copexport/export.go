package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/dggs-stac-export/internal/export"
	"github.com/mohammed-shakir/dggs-stac-export/internal/stac"
)

var (
	manifestPath   string
	layerCRS       string
	collectionID   string
	collTitle      string
	collDesc       string
	withCoverage   bool
	coverageSystem string
	coverageZone   string
	createZip      bool
	copFlags       stac.COPMetadata
)

var exportCmd = &cobra.Command{
	Use:   "export [layer.geojson ...]",
	Short: "Export layers to a STAC COP package",
	Long: `Export GeoJSON layers, or the layers listed in a TOML manifest, as STAC Items with
COP metadata, build a collection and optionally a zip archive with a SHA-256 digest.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if manifestPath == "" && len(args) == 0 {
			return errors.New("give at least one layer file or --manifest")
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		req, err := buildRequest(cmd, args)
		if err != nil {
			return err
		}
		return runExport(ctx, req)
	},
}

func init() {
	f := exportCmd.Flags()
	f.StringVar(&manifestPath, "manifest", "", "TOML manifest listing layers and metadata")
	f.StringVar(&layerCRS, "crs", "", "Source CRS of positional layers (default: from file, else EPSG:4326)")
	f.StringVar(&collectionID, "collection-id", "", "STAC collection id")
	f.StringVar(&collTitle, "title", "", "STAC collection title")
	f.StringVar(&collDesc, "description", "", "STAC collection description")
	f.BoolVar(&withCoverage, "coverage", false, "Add a DGGS coverage layer for the exported extent")
	f.StringVar(&coverageSystem, "dggs", "", "DGGS used for the coverage layer (default from config)")
	f.StringVar(&coverageZone, "zone", "", "Restrict coverage to one zone id")
	f.BoolVar(&createZip, "zip", true, "Create a zip archive and digest")

	def := stac.DefaultCOP()
	f.StringVar(&copFlags.Mission, "mission", "", "COP mission name")
	f.StringVar(&copFlags.Classification, "classification", def.Classification, "COP classification")
	f.StringVar(&copFlags.Releasability, "releasability", def.Releasability, "COP releasability")
	f.StringVar(&copFlags.DGGSCRS, "dggs-crs", def.DGGSCRS, "COP DGGS CRS")
	f.StringVar(&copFlags.DGGSZoneID, "dggs-zone-id", "", "COP DGGS zone id")
	f.StringVar(&copFlags.ServiceProvider, "service-provider", "", "COP service provider")
	rootCmd.AddCommand(exportCmd)
}

func buildRequest(cmd *cobra.Command, args []string) (export.Request, error) {
	var req export.Request
	if manifestPath != "" {
		m, err := export.LoadManifest(manifestPath)
		if err != nil {
			return req, err
		}
		req, err = m.Request(filepath.Dir(manifestPath))
		if err != nil {
			return req, err
		}
	} else {
		req = export.Request{COP: stac.DefaultCOP(), CreateZip: true}
	}

	for _, p := range args {
		name := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		l, err := export.LoadVectorFile(p, name, layerCRS)
		if err != nil {
			return req, err
		}
		req.Layers = append(req.Layers, l)
	}

	// explicit flags override the manifest
	fl := cmd.Flags()
	overrideStr(fl.Changed("collection-id"), &req.CollectionID, collectionID)
	overrideStr(fl.Changed("title"), &req.CollectionTitle, collTitle)
	overrideStr(fl.Changed("description"), &req.CollectionDescription, collDesc)
	overrideStr(fl.Changed("dggs"), &req.DGGSSystem, coverageSystem)
	overrideStr(fl.Changed("zone"), &req.ZoneID, coverageZone)
	overrideStr(fl.Changed("mission"), &req.COP.Mission, copFlags.Mission)
	overrideStr(fl.Changed("classification"), &req.COP.Classification, copFlags.Classification)
	overrideStr(fl.Changed("releasability"), &req.COP.Releasability, copFlags.Releasability)
	overrideStr(fl.Changed("dggs-crs"), &req.COP.DGGSCRS, copFlags.DGGSCRS)
	overrideStr(fl.Changed("dggs-zone-id"), &req.COP.DGGSZoneID, copFlags.DGGSZoneID)
	overrideStr(fl.Changed("service-provider"), &req.COP.ServiceProvider, copFlags.ServiceProvider)
	if fl.Changed("coverage") {
		req.Coverage = withCoverage
	}
	if fl.Changed("zip") {
		req.CreateZip = createZip
	}
	if req.DGGSSystem == "" {
		req.DGGSSystem = cfg.DGGS.System
	}
	return req, nil
}

func overrideStr(changed bool, dst *string, v string) {
	if changed {
		*dst = v
	}
}

func runExport(ctx context.Context, req export.Request) error {
	opts := []export.Option{
		export.WithLogger(appLog),
		export.WithFlatGeobuf(cfg.Export.FlatGeobuf),
		export.WithImageryCopy(cfg.Export.CopyImagery),
		export.WithExtentLimits(cfg.Export.MaxWidth, cfg.Export.MaxHeight),
	}
	if req.Coverage {
		p, err := newPipeline(ctx, cfg, appLog)
		if err != nil {
			return err
		}
		defer p.Close()
		opts = append(opts, export.WithCoverage(p.agg))
	}
	if pub := newPublisher(cfg, appLog); pub != nil {
		defer func() { _ = pub.Close() }()
		opts = append(opts, export.WithPublisher(pub))
	}

	s, err := export.NewSession(cfg.Export.OutputDir, opts...)
	if err != nil {
		return err
	}
	rep, runErr := s.Run(ctx, req)

	out := os.Stdout
	fmt.Fprintf(out, "Export %s\n", rep.ExportID)
	fmt.Fprintf(out, "Layers exported: %d\n", rep.Batch.Succeeded())
	for _, e := range rep.Batch.Errors {
		fmt.Fprintf(out, "  failed: %v\n", e)
	}
	if rep.CollectionPath != "" {
		fmt.Fprintf(out, "Collection: %s\n", rep.CollectionPath)
	}
	if rep.ArchivePath != "" {
		fmt.Fprintf(out, "Archive: %s\nSHA-256: %s\n", rep.ArchivePath, rep.SHA256)
	}
	return runErr
}
