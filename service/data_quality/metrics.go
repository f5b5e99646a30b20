/*
 * @module service/data_quality/metrics
 * @description 数据质量 Prometheus 指标：检查次数、检查耗时、最新违规比例、批次执行结果
 * @architecture 观测层
 * @documentReference ai_docs/data_quality_monitor.md
 * @stateFlow 引擎产出结果 -> 更新指标 -> /metrics 暴露
 * @rules 指标注册到调用方提供的 Registerer，避免重复注册
 * @dependencies github.com/prometheus/client_golang
 * @refs service/data_quality/engine.go, main.go
 */

package data_quality

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 数据质量指标
type Metrics struct {
	checksTotal   *prometheus.CounterVec
	checkDuration *prometheus.HistogramVec
	metricValue   *prometheus.GaugeVec
	runsTotal     *prometheus.CounterVec
}

// NewMetrics 创建并注册指标
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		checksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "data_quality",
			Name:      "checks_total",
			Help:      "质量检查执行次数",
		}, []string{"rule_type", "status"}),
		checkDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "data_quality",
			Name:      "check_duration_seconds",
			Help:      "单条规则检查耗时",
			Buckets:   prometheus.DefBuckets,
		}, []string{"rule_type"}),
		metricValue: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "data_quality",
			Name:      "rule_metric_value",
			Help:      "规则最近一次的违规比例",
		}, []string{"rule_id", "table_name", "column_name"}),
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "data_quality",
			Name:      "runs_total",
			Help:      "批量检查执行次数",
		}, []string{"outcome"}),
	}
}

// ObserveResult 记录单条结果
func (m *Metrics) ObserveResult(r *Result) {
	if m == nil || r == nil {
		return
	}
	m.checksTotal.WithLabelValues(string(r.Kind), string(r.Status)).Inc()
	m.checkDuration.WithLabelValues(string(r.Kind)).Observe(r.Duration.Seconds())
	m.metricValue.WithLabelValues(strconv.FormatInt(r.RuleID, 10), r.Table, r.Column).Set(r.MetricValue)
}

// ObserveRun 记录批次结果 (completed/failed)
func (m *Metrics) ObserveRun(outcome string) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(outcome).Inc()
}
