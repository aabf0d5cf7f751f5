// Package metrics holds zen-agentd's process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "zen_agentd_build_info",
			Help: "Build information of the zen-agentd MCP server",
		},
		[]string{"version", "commit", "date"},
	)

	ScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "zen_agentd_scan_duration_seconds",
			Help:    "Duration of environment package scans",
			Buckets: prometheus.DefBuckets,
		},
	)
)
