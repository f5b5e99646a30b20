/*
 * @module service/init
 * @description 服务初始化模块，按配置构建数据库连接、检查引擎、画像器、报表、调度器等组件
 * @architecture 分层架构 - 服务层
 * @documentReference ai_docs/data_quality_monitor.md
 * @stateFlow 打开数据库 -> 执行迁移 -> 构建存储/数据源 -> 构建引擎 -> 初始化默认规则 -> 构建调度器
 * @rules 不使用全局变量，所有组件通过 Container 显式注入；任一必需组件失败则启动失败
 * @dependencies gorm.io/gorm, github.com/prometheus/client_golang, service/data_quality
 * @refs main.go, service/config/config_manager.go
 */

package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"time"

	"dataquality-service/service/config"
	"dataquality-service/service/data_quality"
	"dataquality-service/service/database"
	"dataquality-service/service/distributed_lock"
	"dataquality-service/service/notification"
	"dataquality-service/service/scheduler"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/gorm"
)

// Container 服务组件容器
type Container struct {
	Config    *config.Config
	DB        *gorm.DB
	Source    *data_quality.SQLDataSource
	Rules     *data_quality.GormRuleStore
	Results   *data_quality.GormResultSink
	Engine    *data_quality.Engine
	Profiler  *data_quality.Profiler
	Reports   *data_quality.ReportService
	Scheduler *scheduler.QualityScheduler // 未启用定时检查时为 nil
	Registry  *prometheus.Registry

	publisher *notification.KafkaPublisher
	redisLock *distributed_lock.RedisLock
}

// Bootstrap 初始化所有服务组件
func Bootstrap(ctx context.Context, cfg *config.Config) (*Container, error) {
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	c := &Container{Config: cfg, DB: db}

	if err := c.init(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Container) init(ctx context.Context) error {
	cfg := c.Config

	if err := database.AutoMigrate(c.DB); err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}

	c.Source = data_quality.NewSQLDataSource(c.DB)
	c.Rules = data_quality.NewGormRuleStore(c.DB)
	c.Results = data_quality.NewGormResultSink(c.DB)
	c.Profiler = data_quality.NewProfiler(c.Source)
	c.Reports = data_quality.NewReportService(c.DB)

	c.Registry = prometheus.NewRegistry()
	c.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := data_quality.NewMetrics(c.Registry)

	var sink data_quality.ResultSink = c.Results
	if cfg.Kafka.Enabled {
		writer := notification.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		c.publisher = notification.NewKafkaPublisher(c.Results, writer)
		sink = c.publisher
		slog.Info("已启用检查结果Kafka通知", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	c.Engine = data_quality.NewEngine(c.Rules, c.Source, sink,
		data_quality.WithWorkers(cfg.Quality.Workers),
		data_quality.WithCheckTimeout(cfg.Quality.CheckTimeout),
		data_quality.WithMetrics(metrics),
	)

	if err := c.seedRules(ctx); err != nil {
		return err
	}

	if cfg.Quality.SchedulerEnabled {
		qs, err := scheduler.NewQualityScheduler(c.Engine, cfg.Quality.Schedule)
		if err != nil {
			return err
		}
		if cfg.Redis.Enabled {
			lock, err := distributed_lock.NewRedisLock(cfg.Redis)
			if err != nil {
				return err
			}
			c.redisLock = lock
			qs.SetLocker(distributed_lock.NewLockExecutor(lock, cfg.Redis.LockTTL))
		}
		c.Scheduler = qs
	}

	return nil
}

// seedRules 初始化默认规则，规则文件不存在时跳过
func (c *Container) seedRules(ctx context.Context) error {
	path := c.Config.Quality.RulesFile
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		slog.Warn("默认规则文件不存在，跳过规则初始化", "path", path)
		return nil
	}

	inserted, err := data_quality.SeedRulesFromFile(ctx, c.Rules, path)
	if err != nil {
		return fmt.Errorf("初始化默认规则失败: %w", err)
	}
	log.Printf("默认规则初始化完成，新增 %d 条", inserted)
	return nil
}

// Close 释放所有组件资源
func (c *Container) Close() {
	if c.Scheduler != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		c.Scheduler.Stop(ctx)
		cancel()
	}
	if c.publisher != nil {
		if err := c.publisher.Close(); err != nil {
			slog.Error("关闭Kafka生产者失败", "error", err)
		}
	}
	if c.redisLock != nil {
		if err := c.redisLock.Close(); err != nil {
			slog.Error("关闭Redis客户端失败", "error", err)
		}
	}
	if c.DB != nil {
		if sqlDB, err := c.DB.DB(); err == nil {
			sqlDB.Close()
		}
	}
}
