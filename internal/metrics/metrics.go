// Package metrics exposes Prometheus metrics for the service.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammed-shakir/dggs-stac-export/internal/core/observability"
)

type Config struct {
	Enabled bool
	Version string
}

type Provider struct {
	reg     *prometheus.Registry
	enabled bool
}

// Init builds a private registry carrying the runtime collectors and the pipeline metrics.
func Init(cfg Config) (*Provider, error) {
	reg := prometheus.NewRegistry()
	if cfg.Enabled {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	if err := observability.Init(reg, cfg.Enabled); err != nil {
		return nil, fmt.Errorf("register pipeline metrics: %w", err)
	}
	observability.ExposeBuildInfo(cfg.Version)
	return &Provider{reg: reg, enabled: cfg.Enabled}, nil
}

func (p *Provider) Handler() http.Handler {
	if !p.enabled {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{})
}

func (p *Provider) Register(cs ...prometheus.Collector) {
	for _, c := range cs {
		p.reg.MustRegister(c)
	}
}

func (p *Provider) Registerer() prometheus.Registerer { return p.reg }
