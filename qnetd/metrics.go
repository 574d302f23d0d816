package qnetd

import (
	"time"

	"github.com/armon/go-metrics"
	"github.com/armon/go-metrics/circonus"
	"github.com/armon/go-metrics/datadog"
	prommetrics "github.com/armon/go-metrics/prometheus"
)

// newMetricsSink builds the configured metrics.MetricSink, the same
// sink-selection-by-name pattern hashicorp's agent telemetry wiring uses:
// one active sink chosen from a config string, backed by go-metrics'
// pluggable MetricSink interface rather than a hand-rolled one (spec §6,
// SPEC_FULL domain stack).
func newMetricsSink(s Settings, nodeName string) (metrics.MetricSink, error) {
	switch s.MetricsSink {
	case "datadog":
		return datadog.NewDogStatsdSink(s.MetricsSinkAddr, nodeName)
	case "circonus":
		cfg := &circonus.Config{}
		cfg.CheckManager.Check.DisplayName = "qnetd-" + nodeName
		return circonus.NewCirconusSink(cfg)
	case "prometheus":
		return prommetrics.NewPrometheusSink()
	default:
		return &metrics.BlackholeSink{}, nil
	}
}

// metricsInterval is how often instance-level gauges (connected clients,
// registered clusters) are refreshed.
const metricsInterval = 10 * time.Second

// reportGauges pushes point-in-time instance gauges, called from the
// instance's periodic metrics timer.
func (inst *Instance) reportGauges() {
	metrics.SetGauge([]string{"qnetd", "clients"}, float32(len(inst.clients)))
	metrics.SetGauge([]string{"qnetd", "clusters"}, float32(inst.Clusters.Len()))
}
