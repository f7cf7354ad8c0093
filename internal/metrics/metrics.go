// Package metrics exposes pipeline and registry counters on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	RunsTotal       *prometheus.CounterVec
	StepErrorsTotal *prometheus.CounterVec
	CallbacksTotal  prometheus.Counter
	SynthesizedCaps prometheus.Gauge
	DeployedAutos   prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voxloop_pipeline_runs_total",
			Help: "Improvement pipeline runs by terminal state.",
		}, []string{"state"}),
		StepErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voxloop_pipeline_step_errors_total",
			Help: "Best-effort pipeline step errors by step name.",
		}, []string{"step"}),
		CallbacksTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxloop_callbacks_total",
			Help: "Outbound callback interactions issued.",
		}),
		SynthesizedCaps: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voxloop_synthesized_capabilities",
			Help: "Currently registered synthesized capabilities.",
		}),
		DeployedAutos: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxloop_automations_deployed_total",
			Help: "Automations deployed on the workflow platform.",
		}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
