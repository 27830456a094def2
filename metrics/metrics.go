package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 目标提取与引导回合的指标，注册在独立的 registry 上
type Metrics struct {
	ImagesProcessed  prometheus.Counter
	StageFailures    *prometheus.CounterVec
	TargetsFound     prometheus.Counter
	PipelineDuration prometheus.Histogram
	Episodes         *prometheus.CounterVec
	EpisodeIters     prometheus.Histogram
	CacheLookups     *prometheus.CounterVec

	registry *prometheus.Registry
}

// New 创建并注册全部指标
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ImagesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tipguide_images_processed_total",
			Help: "Plate images that went through target extraction",
		}),
		StageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tipguide_stage_failures_total",
			Help: "Target extraction failures by stage",
		}, []string{"stage"}),
		TargetsFound: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tipguide_targets_found_total",
			Help: "Root tips converted to goal positions",
		}),
		PipelineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tipguide_pipeline_duration_seconds",
			Help:    "Wall time of one target extraction",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		Episodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tipguide_episodes_total",
			Help: "Guidance episodes by outcome",
		}, []string{"outcome"}),
		EpisodeIters: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tipguide_episode_iterations",
			Help:    "Policy iterations needed per episode",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tipguide_cache_lookups_total",
			Help: "Target cache lookups by result",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		m.ImagesProcessed,
		m.StageFailures,
		m.TargetsFound,
		m.PipelineDuration,
		m.Episodes,
		m.EpisodeIters,
		m.CacheLookups,
	)
	return m
}

// Registry 返回底层 registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler /metrics 的 HTTP 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
