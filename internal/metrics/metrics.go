package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 自动化运行指标集合
//
// 所有指标注册在独立的 registry 上，通过 Handler() 暴露，
// 避免污染全局默认 registry。
type Metrics struct {
	registry *prometheus.Registry

	errorsTotal     *prometheus.CounterVec
	recoveriesTotal *prometheus.CounterVec
	actionsTotal    *prometheus.CounterVec
	actionDuration  *prometheus.HistogramVec
	energyCurrent   *prometheus.GaugeVec
	energyMax       *prometheus.GaugeVec
	battlesTotal    *prometheus.CounterVec
	battleStars     prometheus.Histogram
	aiRequestsTotal *prometheus.CounterVec
	aiConfidence    prometheus.Histogram
}

// New 创建并注册全部指标
func New() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swgoh_errors_total",
			Help: "Errors handled by the recovery manager",
		}, []string{"category", "severity"}),
		recoveriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swgoh_recoveries_total",
			Help: "Recovery attempts by final outcome",
		}, []string{"category", "outcome"}),
		actionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swgoh_actions_total",
			Help: "Automation actions by result",
		}, []string{"action", "status"}),
		actionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "swgoh_action_duration_seconds",
			Help:    "Automation action durations",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 180, 600},
		}, []string{"action"}),
		energyCurrent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "swgoh_energy_current",
			Help: "Last observed energy level per pool",
		}, []string{"type"}),
		energyMax: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "swgoh_energy_max",
			Help: "Last observed energy capacity per pool",
		}, []string{"type"}),
		battlesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swgoh_battles_total",
			Help: "Completed battles by mode and result",
		}, []string{"mode", "result"}),
		battleStars: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "swgoh_battle_stars",
			Help:    "Stars earned per completed battle",
			Buckets: []float64{0, 1, 2, 3},
		}),
		aiRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swgoh_ai_requests_total",
			Help: "Vision model requests by status",
		}, []string{"status"}),
		aiConfidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "swgoh_ai_confidence",
			Help:    "Confidence of executed AI recommendations",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
	}

	for _, c := range []prometheus.Collector{
		m.errorsTotal,
		m.recoveriesTotal,
		m.actionsTotal,
		m.actionDuration,
		m.energyCurrent,
		m.energyMax,
		m.battlesTotal,
		m.battleStars,
		m.aiRequestsTotal,
		m.aiConfidence,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}

	return m, nil
}

// Handler 返回 /metrics 的 HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordError 记录一次被处理的错误
func (m *Metrics) RecordError(category, severity string) {
	m.errorsTotal.WithLabelValues(category, severity).Inc()
}

// RecordRecovery 记录一次恢复结果
func (m *Metrics) RecordRecovery(category string, resolved bool) {
	outcome := "failed"
	if resolved {
		outcome = "resolved"
	}
	m.recoveriesTotal.WithLabelValues(category, outcome).Inc()
}

// ObserveAction 记录一次自动化动作及其耗时
func (m *Metrics) ObserveAction(action string, success bool, duration time.Duration) {
	status := "failure"
	if success {
		status = "success"
	}
	m.actionsTotal.WithLabelValues(action, status).Inc()
	m.actionDuration.WithLabelValues(action).Observe(duration.Seconds())
}

// SetEnergy 记录一次体力读数
func (m *Metrics) SetEnergy(kind string, current, max int) {
	m.energyCurrent.WithLabelValues(kind).Set(float64(current))
	m.energyMax.WithLabelValues(kind).Set(float64(max))
}

// RecordBattle 记录一场战斗结果
func (m *Metrics) RecordBattle(mode string, victory bool, stars int) {
	result := "defeat"
	if victory {
		result = "victory"
	}
	m.battlesTotal.WithLabelValues(mode, result).Inc()
	m.battleStars.Observe(float64(stars))
}

// RecordAIRequest 记录一次模型调用
func (m *Metrics) RecordAIRequest(ok bool) {
	status := "error"
	if ok {
		status = "ok"
	}
	m.aiRequestsTotal.WithLabelValues(status).Inc()
}

// ObserveAIConfidence 记录被执行建议的置信度
func (m *Metrics) ObserveAIConfidence(confidence float64) {
	m.aiConfidence.Observe(confidence)
}
