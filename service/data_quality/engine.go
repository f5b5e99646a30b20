/*
 * @module service/data_quality/engine
 * @description 数据质量规则引擎，负责加载规则、分派检查器、隔离单条规则故障并按规则ID顺序输出结果
 * @architecture 分层架构 - 数据质量服务层，有界工作池并发执行
 * @documentReference ai_docs/data_quality_monitor.md
 * @stateFlow 加载启用规则 -> 数据源连通检查 -> 并发检查(单条超时) -> 按规则ID排序 -> 追加写入结果
 * @rules 单条规则失败只产生ERROR结果；配置错误的规则被跳过；致命错误中止本次执行且不写入任何结果
 * @dependencies golang.org/x/sync/errgroup, github.com/google/uuid, log/slog
 * @refs service/data_quality/checkers.go, service/data_quality/rule_store.go, service/data_quality/result_sink.go
 */

package data_quality

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// RuleSet 规则存储返回的启用规则，配置无效的规则单独列出
type RuleSet struct {
	Rules   []*Rule
	Invalid []*ConfigurationError
}

// RuleStore 规则存储
type RuleStore interface {
	ActiveRules(ctx context.Context) (*RuleSet, error)
}

// ResultSink 结果追加写入
type ResultSink interface {
	Append(ctx context.Context, result *Result) error
}

// RunReport 一次批量执行的汇总
type RunReport struct {
	RunID        string    `json:"run_id"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	DurationMs   int64     `json:"duration_ms"`
	TotalRules   int       `json:"total_rules"`
	Passed       int       `json:"passed"`
	Failed       int       `json:"failed"`
	Errored      int       `json:"errored"`
	SkippedRules []int64   `json:"skipped_rules"`
	Results      []*Result `json:"results"`
}

const (
	defaultWorkers      = 4
	defaultCheckTimeout = 30 * time.Second
)

// Engine 规则引擎
type Engine struct {
	store        RuleStore
	source       DataSource
	sink         ResultSink
	checkers     map[RuleKind]Checker
	workers      int
	checkTimeout time.Duration
	metrics      *Metrics
	now          func() time.Time
}

// EngineOption 引擎选项
type EngineOption func(*Engine)

// WithWorkers 设置并发检查数
func WithWorkers(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithCheckTimeout 设置单条规则超时时间
func WithCheckTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.checkTimeout = d
		}
	}
}

// WithMetrics 设置指标
func WithMetrics(m *Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithChecker 替换或注册某类规则的检查器
func WithChecker(kind RuleKind, checker Checker) EngineOption {
	return func(e *Engine) {
		e.checkers[kind] = checker
	}
}

// WithClock 设置时钟
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine 创建规则引擎
func NewEngine(store RuleStore, source DataSource, sink ResultSink, opts ...EngineOption) *Engine {
	e := &Engine{
		store:        store,
		source:       source,
		sink:         sink,
		checkers:     DefaultCheckers(),
		workers:      defaultWorkers,
		checkTimeout: defaultCheckTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// LoadActiveRules 加载启用规则，按规则ID升序
func (e *Engine) LoadActiveRules(ctx context.Context) ([]*Rule, error) {
	set, err := e.loadRuleSet(ctx)
	if err != nil {
		return nil, err
	}
	return set.Rules, nil
}

func (e *Engine) loadRuleSet(ctx context.Context) (*RuleSet, error) {
	set, err := e.store.ActiveRules(ctx)
	if err != nil {
		if IsFatal(err) {
			return nil, err
		}
		return nil, &FatalError{Op: "加载质量规则", Err: err}
	}
	for _, invalid := range set.Invalid {
		slog.Warn("跳过配置无效的质量规则", "rule_id", invalid.RuleID, "reason", invalid.Reason)
	}
	sortRules(set.Rules)
	return set, nil
}

// Evaluate 执行单条规则，不写入结果
// 未知规则类型或缺少配置时返回 ConfigurationError，调用方应跳过该规则
func (e *Engine) Evaluate(ctx context.Context, rule *Rule) (*Result, error) {
	return e.evaluate(ctx, "", rule)
}

func (e *Engine) evaluate(ctx context.Context, runID string, rule *Rule) (*Result, error) {
	checker, ok := e.checkers[rule.Kind]
	if !ok {
		return nil, &ConfigurationError{RuleID: rule.ID, Reason: fmt.Sprintf("不支持的规则类型: %s", rule.Kind)}
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	result := &Result{
		RunID:     runID,
		RuleID:    rule.ID,
		Table:     rule.Table,
		Column:    rule.Column,
		Kind:      rule.Kind,
		CheckedAt: e.now(),
		Threshold: rule.Threshold,
	}

	start := time.Now()
	m, err := e.runChecker(ctx, checker, rule)
	result.Duration = time.Since(start)

	if err != nil {
		var cfgErr *ConfigurationError
		switch {
		case errors.As(err, &cfgErr):
			return nil, err
		case IsFatal(err):
			return nil, err
		case ctx.Err() != nil:
			return nil, &FatalError{Op: "执行质量检查", Err: ctx.Err()}
		}
		result.Status = StatusError
		result.MetricValue = 0
		result.Details = err.Error()
		slog.Error("质量规则执行失败", "rule_id", rule.ID, "rule_type", rule.Kind, "error", err)
		return result, nil
	}

	result.MetricValue = m.MetricValue
	result.Status = m.Status
	result.Details = m.Details
	return result, nil
}

// runChecker 在独立超时内执行检查器，检查器不响应取消时也不会阻塞调用方
func (e *Engine) runChecker(ctx context.Context, checker Checker, rule *Rule) (*Measurement, error) {
	checkCtx, cancel := context.WithTimeout(ctx, e.checkTimeout)
	defer cancel()

	type outcome struct {
		m   *Measurement
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		m, err := checker.Check(checkCtx, e.source, rule)
		done <- outcome{m: m, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			if ctx.Err() == nil && errors.Is(checkCtx.Err(), context.DeadlineExceeded) {
				return nil, e.timeoutError(rule)
			}
			return nil, o.err
		}
		if o.m == nil {
			return nil, &ExecutionError{RuleID: rule.ID, Err: fmt.Errorf("检查器未返回结果")}
		}
		return o.m, nil
	case <-checkCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, e.timeoutError(rule)
	}
}

func (e *Engine) timeoutError(rule *Rule) error {
	return &ExecutionError{RuleID: rule.ID, Err: fmt.Errorf("check timed out after %s", e.checkTimeout)}
}

// RunAll 并发执行规则，结果按规则ID升序写入并返回
func (e *Engine) RunAll(ctx context.Context, rules []*Rule) ([]*Result, error) {
	results, _, err := e.runAll(ctx, uuid.New().String(), rules)
	return results, err
}

func (e *Engine) runAll(ctx context.Context, runID string, rules []*Rule) ([]*Result, []int64, error) {
	if err := e.source.Ping(ctx); err != nil {
		if IsFatal(err) {
			return nil, nil, err
		}
		return nil, nil, &FatalError{Op: "检查数据源连接", Err: fmt.Errorf("%w: %v", ErrSourceUnavailable, err)}
	}

	active := make([]*Rule, 0, len(rules))
	for _, rule := range rules {
		if rule != nil && rule.Active {
			active = append(active, rule)
		}
	}
	sortRules(active)

	slots := make([]*Result, len(active))
	skipped := make([]bool, len(active))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, rule := range active {
		g.Go(func() error {
			result, err := e.evaluate(gctx, runID, rule)
			if err != nil {
				var cfgErr *ConfigurationError
				if errors.As(err, &cfgErr) {
					slog.Warn("跳过配置无效的质量规则", "rule_id", rule.ID, "reason", cfgErr.Reason)
					skipped[i] = true
					return nil
				}
				return err
			}
			slots[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, &FatalError{Op: "执行质量检查", Err: err}
	}

	results := make([]*Result, 0, len(slots))
	skippedIDs := make([]int64, 0)
	for i, r := range slots {
		if skipped[i] {
			skippedIDs = append(skippedIDs, active[i].ID)
			continue
		}
		if r != nil {
			results = append(results, r)
		}
	}

	for i, r := range results {
		r.Sequence = i + 1
		if err := e.sink.Append(ctx, r); err != nil {
			return nil, nil, &FatalError{Op: "保存质量检查结果", Err: err}
		}
		e.metrics.ObserveResult(r)
	}
	return results, skippedIDs, nil
}

// Run 加载启用规则并执行，返回本次执行汇总
func (e *Engine) Run(ctx context.Context) (*RunReport, error) {
	report := &RunReport{
		RunID:        uuid.New().String(),
		StartedAt:    e.now(),
		SkippedRules: make([]int64, 0),
	}

	set, err := e.loadRuleSet(ctx)
	if err != nil {
		e.metrics.ObserveRun("failed")
		return nil, err
	}

	results, skipped, err := e.runAll(ctx, report.RunID, set.Rules)
	if err != nil {
		e.metrics.ObserveRun("failed")
		slog.Error("质量检查批次中止", "run_id", report.RunID, "error", err)
		return nil, err
	}

	for _, invalid := range set.Invalid {
		report.SkippedRules = append(report.SkippedRules, invalid.RuleID)
	}
	report.SkippedRules = append(report.SkippedRules, skipped...)
	sort.Slice(report.SkippedRules, func(i, j int) bool { return report.SkippedRules[i] < report.SkippedRules[j] })

	report.Results = results
	report.TotalRules = len(set.Rules) + len(set.Invalid)
	for _, r := range results {
		switch r.Status {
		case StatusPass:
			report.Passed++
		case StatusFail:
			report.Failed++
		case StatusError:
			report.Errored++
		}
	}
	report.FinishedAt = e.now()
	report.DurationMs = report.FinishedAt.Sub(report.StartedAt).Milliseconds()

	e.metrics.ObserveRun("completed")
	slog.Info("质量检查批次完成",
		"run_id", report.RunID,
		"passed", report.Passed,
		"failed", report.Failed,
		"errored", report.Errored,
		"skipped", len(report.SkippedRules),
		"duration_ms", report.DurationMs)
	return report, nil
}

func sortRules(rules []*Rule) {
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
}
