package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/dggs-stac-export/internal/core/health"
	"github.com/mohammed-shakir/dggs-stac-export/internal/core/router"
	"github.com/mohammed-shakir/dggs-stac-export/internal/core/server"
	"github.com/mohammed-shakir/dggs-stac-export/internal/invalidation/kafkaconsumer"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve coverage summaries over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("addr") {
			cfg.Addr = serveAddr
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		p, err := newPipeline(ctx, cfg, appLog)
		if err != nil {
			return err
		}
		defer p.Close()

		ready := map[string]health.Pinger{}
		if p.cache != nil {
			ready["redis"] = p.cache
			startInvalidation(ctx, p)
		}

		appLog.Info("starting coverage service",
			"addr", cfg.Addr,
			"version", Version,
			"dggs", cfg.DGGS.BaseURL,
			"collection", cfg.DGGS.Collection)
		return server.Run(ctx, cfg, appLog, server.Deps{
			Service: router.Backend{Aggregator: p.agg, Resolver: p.resolver},
			Metrics: metricP.Handler(),
			Ready:   ready,
		})
	},
}

// startInvalidation purges cached zones on upstream update events when enabled.
func startInvalidation(ctx context.Context, p *pipeline) {
	if !cfg.Invalidation.Enabled {
		return
	}
	kc := kafkaconsumer.NewConfig(cfg.Events.BrokerList(), cfg.Invalidation.Topic, cfg.Invalidation.GroupID)
	c := kafkaconsumer.New(kc, appLog, p.client, p.resolver, cfg.DGGS.ZoneLevel)
	go func() {
		if err := c.Start(ctx); err != nil {
			appLog.Error("zone invalidation consumer stopped", "err", err)
		}
	}()
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8090", "Listen address")
	rootCmd.AddCommand(serveCmd)
}
