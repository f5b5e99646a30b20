/*
 * @module service/scheduler/quality_scheduler
 * @description 数据质量检查调度器，按cron表达式周期性执行全部启用规则
 * @architecture 分层架构 - 服务层
 * @documentReference ai_docs/data_quality_monitor.md
 * @stateFlow 启动调度器 -> 注册cron任务 -> 定时触发 -> 获取分布式锁 -> 执行检查批次 -> 记录结果
 * @rules 同一实例上的批次不重叠；配置分布式锁时只有持锁实例执行；cron表达式含秒字段
 * @dependencies github.com/robfig/cron/v3, service/distributed_lock, service/data_quality
 * @refs service/init.go, service/data_quality/engine.go
 */

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"dataquality-service/service/data_quality"

	"github.com/robfig/cron/v3"
)

// RunLockKey 定时检查使用的分布式锁键
const RunLockKey = "quality:run"

// ErrRunInProgress 本实例已有检查批次在执行
var ErrRunInProgress = errors.New("质量检查批次正在执行")

// Runner 执行一次完整检查批次
type Runner interface {
	Run(ctx context.Context) (*data_quality.RunReport, error)
}

// Locker 在分布式锁保护下执行函数，未获取到锁时 executed=false
type Locker interface {
	Execute(ctx context.Context, key string, fn func(ctx context.Context) error) (executed bool, err error)
}

// QualityScheduler 质量检查调度器
type QualityScheduler struct {
	runner   Runner
	schedule string
	cron     *cron.Cron
	locker   Locker

	ctx     context.Context
	cancel  context.CancelFunc
	running atomic.Bool

	mu         sync.Mutex
	started    bool
	lastReport *data_quality.RunReport
	lastErr    error
}

// NewQualityScheduler 创建质量检查调度器
func NewQualityScheduler(runner Runner, schedule string) (*QualityScheduler, error) {
	// 提前校验表达式，避免启动后才发现配置错误
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(schedule); err != nil {
		return nil, fmt.Errorf("cron表达式无效 %q (需要6个字段: 秒 分 时 日 月 周): %w", schedule, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &QualityScheduler{
		runner:   runner,
		schedule: schedule,
		cron:     cron.New(cron.WithSeconds()),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// SetLocker 设置分布式锁
func (qs *QualityScheduler) SetLocker(locker Locker) {
	qs.locker = locker
	if locker != nil {
		slog.Info("质量检查调度器已启用分布式锁")
	}
}

// Start 启动调度器
func (qs *QualityScheduler) Start() error {
	qs.mu.Lock()
	defer qs.mu.Unlock()

	if qs.started {
		return fmt.Errorf("调度器已经启动")
	}

	if _, err := qs.cron.AddFunc(qs.schedule, qs.trigger); err != nil {
		return fmt.Errorf("添加Cron任务失败: %w", err)
	}
	qs.cron.Start()
	qs.started = true

	slog.Info("数据质量检查调度器启动完成", "schedule", qs.schedule)
	return nil
}

// Stop 停止调度器，等待正在执行的批次结束或 ctx 超时
func (qs *QualityScheduler) Stop(ctx context.Context) {
	qs.mu.Lock()
	if !qs.started {
		qs.mu.Unlock()
		return
	}
	qs.started = false
	qs.mu.Unlock()

	slog.Info("停止数据质量检查调度器")
	stopped := qs.cron.Stop()

	select {
	case <-stopped.Done():
	case <-ctx.Done():
		// 超时后取消仍在执行的批次
		qs.cancel()
		<-stopped.Done()
	}
	qs.cancel()
	slog.Info("数据质量检查调度器已停止")
}

func (qs *QualityScheduler) trigger() {
	report, err := qs.RunOnce(qs.ctx)
	switch {
	case errors.Is(err, ErrRunInProgress):
		slog.Warn("上一批次尚未结束，跳过本次定时检查")
	case err != nil:
		slog.Error("定时质量检查失败", "error", err)
	case report == nil:
		slog.Info("其他实例正在执行定时检查，本实例跳过")
	}
}

// RunOnce 立即执行一次检查批次
// 配置了分布式锁且锁被其他实例持有时返回 nil 报告和 nil 错误
func (qs *QualityScheduler) RunOnce(ctx context.Context) (*data_quality.RunReport, error) {
	if !qs.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer qs.running.Store(false)

	var report *data_quality.RunReport
	run := func(ctx context.Context) error {
		started := time.Now()
		r, err := qs.runner.Run(ctx)
		qs.record(r, err)
		if err != nil {
			return err
		}
		report = r
		slog.Info("质量检查批次完成",
			"run_id", r.RunID,
			"total", r.TotalRules,
			"passed", r.Passed,
			"failed", r.Failed,
			"errored", r.Errored,
			"elapsed", time.Since(started))
		return nil
	}

	if qs.locker == nil {
		return report, run(ctx)
	}
	if _, err := qs.locker.Execute(ctx, RunLockKey, run); err != nil {
		return nil, err
	}
	return report, nil
}

func (qs *QualityScheduler) record(report *data_quality.RunReport, err error) {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	qs.lastReport = report
	qs.lastErr = err
}

// LastRun 最近一次在本实例执行的批次结果
func (qs *QualityScheduler) LastRun() (*data_quality.RunReport, error) {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	return qs.lastReport, qs.lastErr
}

// Running 是否有批次正在执行
func (qs *QualityScheduler) Running() bool {
	return qs.running.Load()
}
