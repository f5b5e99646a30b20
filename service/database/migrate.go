/*
 * @module service/database/migrate
 * @description 数据库连接与迁移模块，负责打开数据库连接、创建和更新规则表与结果表
 * @architecture 数据访问层 - 迁移管理
 * @documentReference ai_docs/data_quality_monitor.md
 * @stateFlow 应用启动 -> 打开连接 -> 执行数据库迁移 -> 创建索引
 * @rules 确保数据库结构与模型定义保持一致；被检查的业务表不由本服务迁移
 * @dependencies dataquality-service/service/models, gorm.io/gorm, gorm.io/driver/postgres, gorm.io/driver/sqlite
 * @refs service/init.go, service/models/quality_models.go
 */

package database

import (
	"fmt"
	"log"
	"strings"
	"time"

	"dataquality-service/service/config"
	"dataquality-service/service/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open 按配置的驱动打开数据库连接
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.PostgresDSN())
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.SQLiteDSN())
	default:
		return nil, fmt.Errorf("不支持的数据库驱动: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormLogLevel(cfg.LogLevel)),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("数据库连接失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取数据库连接池失败: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Printf("数据库连接成功: driver=%s", cfg.Driver)
	return db, nil
}

func gormLogLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

// AutoMigrate 自动迁移数据库表结构
func AutoMigrate(db *gorm.DB) error {
	log.Println("开始数据库迁移...")

	// 规则表与检查结果表
	err := db.AutoMigrate(
		&models.QualityRule{},
		&models.QualityResult{},
	)
	if err != nil {
		return err
	}

	if err := createQualityIndexes(db); err != nil {
		return err
	}

	log.Println("数据库迁移完成")
	return nil
}

// createQualityIndexes 创建报表查询使用的组合索引
func createQualityIndexes(db *gorm.DB) error {
	indexQueries := []string{
		"CREATE INDEX IF NOT EXISTS idx_quality_results_table_date ON quality_results(table_name, check_date)",
		"CREATE INDEX IF NOT EXISTS idx_quality_results_status_date ON quality_results(status, check_date)",
		"CREATE INDEX IF NOT EXISTS idx_quality_rules_target ON quality_rules(table_name, column_name, rule_type)",
	}

	for _, query := range indexQueries {
		if err := db.Exec(query).Error; err != nil {
			log.Printf("创建质量相关表索引失败: %v", err)
			return err
		}
	}

	return nil
}
