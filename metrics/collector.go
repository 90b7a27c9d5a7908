// Package metrics 提供调度器的 Prometheus 指标收集与暴露.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector 调度器指标收集器，实现 scheduler.MetricsRecorder.
type Collector struct {
	config *Config

	pollOutcomes  *prometheus.CounterVec
	jobExecutions *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
	leader        *prometheus.GaugeVec

	registry *prometheus.Registry
}

// New 创建指标收集器.
//
// 使用独立的注册表，避免与默认注册表冲突.
func New(cfg *Config) (*Collector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()

	registry := prometheus.NewRegistry()
	c := &Collector{
		config:   cfg,
		registry: registry,
	}

	c.pollOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "poll_outcomes_total",
			Help:      "Total number of poll outcomes by category",
		},
		[]string{"key", "category"},
	)

	c.jobExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "job_executions_total",
			Help:      "Total number of job executions by result",
		},
		[]string{"key", "job", "result"},
	)

	c.jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "job_duration_seconds",
			Help:      "Job execution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"key", "job"},
	)

	c.leader = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "leader",
			Help:      "Whether this instance currently holds leadership (1) or not (0)",
		},
		[]string{"key"},
	)

	for _, collector := range []prometheus.Collector{
		c.pollOutcomes,
		c.jobExecutions,
		c.jobDuration,
		c.leader,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := registry.Register(collector); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRegisterMetric, err)
		}
	}

	return c, nil
}

// MustNew 创建指标收集器，失败时 panic.
func MustNew(cfg *Config) *Collector {
	c, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return c
}

// IncOutcome 记录一次轮询结果.
func (c *Collector) IncOutcome(key, category string) {
	c.pollOutcomes.WithLabelValues(key, category).Inc()
}

// ObserveExecution 记录一次任务执行结果与耗时.
func (c *Collector) ObserveExecution(key, job string, ok bool, d time.Duration) {
	result := "success"
	if !ok {
		result = "failure"
	}
	c.jobExecutions.WithLabelValues(key, job, result).Inc()
	c.jobDuration.WithLabelValues(key, job).Observe(d.Seconds())
}

// SetLeader 记录领导状态.
func (c *Collector) SetLeader(key string, leader bool) {
	v := 0.0
	if leader {
		v = 1
	}
	c.leader.WithLabelValues(key).Set(v)
}

// Registry 返回指标注册表.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler 返回 metrics 的 HTTP 处理器.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Path 返回 metrics 路径.
func (c *Collector) Path() string {
	return c.config.Path
}
