/*
 * @module service/data_quality/result_sink
 * @description 质量检查结果的追加写入与查询
 * @architecture 仓储模式 - 追加写日志
 * @documentReference ai_docs/data_quality_monitor.md
 * @stateFlow 引擎按规则ID顺序追加 -> quality_results 表 -> 报表/接口查询
 * @rules 结果只追加不修改；写入经互斥锁串行化
 * @dependencies gorm.io/gorm
 * @refs service/models/quality_models.go, service/data_quality/report.go
 */

package data_quality

import (
	"context"
	"fmt"
	"sync"

	"dataquality-service/service/models"

	"gorm.io/gorm"
)

// GormResultSink 基于GORM的结果日志
type GormResultSink struct {
	db *gorm.DB
	mu sync.Mutex
}

// NewGormResultSink 创建结果日志
func NewGormResultSink(db *gorm.DB) *GormResultSink {
	return &GormResultSink{db: db}
}

// Append 追加一条结果
func (s *GormResultSink) Append(ctx context.Context, result *Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.WithContext(ctx).Create(result.ToModel()).Error; err != nil {
		return fmt.Errorf("保存质量检查结果失败: %w", err)
	}
	return nil
}

// ResultFilter 结果查询条件
type ResultFilter struct {
	RuleID int64
	RunID  string
	Status Status
	Limit  int
}

const defaultResultLimit = 100

// ListResults 查询结果；指定批次时按写入顺序，否则最新的在前
func (s *GormResultSink) ListResults(ctx context.Context, filter ResultFilter) ([]*Result, error) {
	query := s.db.WithContext(ctx).Model(&models.QualityResult{})
	if filter.RuleID > 0 {
		query = query.Where("rule_id = ?", filter.RuleID)
	}
	if filter.RunID != "" {
		query = query.Where("run_id = ?", filter.RunID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultResultLimit
	}

	if filter.RunID != "" {
		query = query.Order("sequence ASC")
	} else {
		query = query.Order("check_date DESC").Order("rule_id ASC")
	}

	var rows []models.QualityResult
	if err := query.Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("查询质量检查结果失败: %w", err)
	}

	results := make([]*Result, 0, len(rows))
	for i := range rows {
		results = append(results, ResultFromModel(&rows[i]))
	}
	return results, nil
}
