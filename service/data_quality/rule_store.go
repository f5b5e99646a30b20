/*
 * @module service/data_quality/rule_store
 * @description 质量规则存储，基于GORM读取启用规则并提供规则的增删改查
 * @architecture 仓储模式
 * @documentReference ai_docs/data_quality_monitor.md
 * @stateFlow quality_rules 表 -> 解析配置 -> 可执行规则 / 配置错误列表
 * @rules 写入前校验规则配置；启用规则按规则ID升序返回
 * @dependencies gorm.io/gorm
 * @refs service/models/quality_models.go, service/data_quality/engine.go
 */

package data_quality

import (
	"context"
	"errors"
	"fmt"

	"dataquality-service/service/models"

	"gorm.io/gorm"
)

// GormRuleStore 基于GORM的规则存储
type GormRuleStore struct {
	db *gorm.DB
}

// NewGormRuleStore 创建规则存储
func NewGormRuleStore(db *gorm.DB) *GormRuleStore {
	return &GormRuleStore{db: db}
}

// ActiveRules 读取启用规则，配置无效的规则放入 Invalid
func (s *GormRuleStore) ActiveRules(ctx context.Context) (*RuleSet, error) {
	var rows []models.QualityRule
	if err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("rule_id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("查询启用质量规则失败: %w", err)
	}

	set := &RuleSet{Rules: make([]*Rule, 0, len(rows))}
	for i := range rows {
		rule, err := RuleFromModel(&rows[i])
		if err != nil {
			var cfgErr *ConfigurationError
			if errors.As(err, &cfgErr) {
				set.Invalid = append(set.Invalid, cfgErr)
				continue
			}
			return nil, err
		}
		set.Rules = append(set.Rules, rule)
	}
	return set, nil
}

// RuleFilter 规则列表过滤条件
type RuleFilter struct {
	Table      string
	ActiveOnly bool
}

// ListRules 查询规则
func (s *GormRuleStore) ListRules(ctx context.Context, filter RuleFilter) ([]models.QualityRule, error) {
	query := s.db.WithContext(ctx).Model(&models.QualityRule{})
	if filter.Table != "" {
		query = query.Where("table_name = ?", filter.Table)
	}
	if filter.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}

	var rules []models.QualityRule
	if err := query.Order("rule_id ASC").Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("查询质量规则失败: %w", err)
	}
	return rules, nil
}

// GetRule 按ID查询规则
func (s *GormRuleStore) GetRule(ctx context.Context, id int64) (*models.QualityRule, error) {
	var rule models.QualityRule
	if err := s.db.WithContext(ctx).First(&rule, "rule_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRuleNotFound
		}
		return nil, fmt.Errorf("查询质量规则失败: %w", err)
	}
	return &rule, nil
}

// CreateRule 校验并创建规则
func (s *GormRuleStore) CreateRule(ctx context.Context, rule *Rule, description, operator string) (*models.QualityRule, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	m := rule.ToModel()
	m.RuleID = 0
	m.Description = description
	m.CreatedBy = operator
	m.UpdatedBy = operator
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, fmt.Errorf("创建质量规则失败: %w", err)
	}
	rule.ID = m.RuleID
	return m, nil
}

// UpdateRule 校验并更新规则
func (s *GormRuleStore) UpdateRule(ctx context.Context, rule *Rule, description, operator string) (*models.QualityRule, error) {
	existing, err := s.GetRule(ctx, rule.ID)
	if err != nil {
		return nil, err
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	m := rule.ToModel()
	updates := map[string]interface{}{
		"table_name":      m.TargetTable,
		"column_name":     m.TargetColumn,
		"rule_type":       m.RuleType,
		"rule_config":     m.RuleConfig,
		"threshold_value": m.ThresholdValue,
		"is_active":       m.IsActive,
		"description":     description,
		"updated_by":      operator,
	}
	if err := s.db.WithContext(ctx).Model(existing).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("更新质量规则失败: %w", err)
	}
	return s.GetRule(ctx, rule.ID)
}

// DeleteRule 删除规则，历史结果保留
func (s *GormRuleStore) DeleteRule(ctx context.Context, id int64) error {
	result := s.db.WithContext(ctx).Delete(&models.QualityRule{}, "rule_id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("删除质量规则失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// HasRule 是否已存在相同表、列、类型的规则
func (s *GormRuleStore) HasRule(ctx context.Context, table, column string, kind RuleKind) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.QualityRule{}).
		Where("table_name = ? AND column_name = ? AND rule_type = ?", table, column, string(kind)).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("查询质量规则失败: %w", err)
	}
	return count > 0, nil
}
