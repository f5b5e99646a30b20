/*
 * @module service/models/quality_models
 * @description 数据质量模型，包含质量规则与质量检查结果两张表
 * @architecture 数据模型层
 * @documentReference ai_docs/data_quality_monitor.md
 * @stateFlow 规则配置 -> 规则执行 -> 结果追加写入
 * @rules 质量结果只追加不修改；规则在一次执行过程中只读
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs service/data_quality/
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 质量检查状态
const (
	QualityStatusPass  = "PASS"
	QualityStatusFail  = "FAIL"
	QualityStatusError = "ERROR"
)

// QualityRule 数据质量规则模型
type QualityRule struct {
	RuleID         int64     `gorm:"column:rule_id;primaryKey;autoIncrement" json:"rule_id"`
	TargetTable    string    `gorm:"column:table_name;type:varchar(128);not null;index" json:"table_name"`
	TargetColumn   string    `gorm:"column:column_name;type:varchar(128);not null" json:"column_name"`
	RuleType       string    `gorm:"column:rule_type;type:varchar(40);not null" json:"rule_type"` // null_check/format_check/range_check/uniqueness_check/foreign_key_check
	RuleConfig     JSONB     `gorm:"column:rule_config;type:text" json:"rule_config"`
	ThresholdValue float64   `gorm:"column:threshold_value;not null" json:"threshold_value"` // 最大容忍违规比例 (0-100)
	IsActive       bool      `gorm:"column:is_active;not null;index" json:"is_active"`
	Description    string    `gorm:"type:text" json:"description"`
	CreatedBy      string    `gorm:"type:varchar(100)" json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedBy      string    `gorm:"type:varchar(100)" json:"updated_by"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName 指定表名
func (QualityRule) TableName() string {
	return "quality_rules"
}

// BeforeCreate 创建前钩子
func (q *QualityRule) BeforeCreate(tx *gorm.DB) error {
	if q.CreatedBy == "" {
		q.CreatedBy = "system"
	}
	if q.UpdatedBy == "" {
		q.UpdatedBy = "system"
	}
	if q.RuleConfig == nil {
		q.RuleConfig = JSONB{}
	}
	return nil
}

// QualityResult 数据质量检查结果模型（追加写入）
type QualityResult struct {
	ResultID       string    `gorm:"column:result_id;type:varchar(50);primaryKey" json:"result_id"`
	RunID          string    `gorm:"column:run_id;type:varchar(50);not null;index" json:"run_id"`
	RuleID         int64     `gorm:"column:rule_id;not null;index" json:"rule_id"`
	TargetTable    string    `gorm:"column:table_name;type:varchar(128);not null;index" json:"table_name"`
	TargetColumn   string    `gorm:"column:column_name;type:varchar(128);not null" json:"column_name"`
	RuleType       string    `gorm:"column:rule_type;type:varchar(40);not null" json:"rule_type"`
	CheckDate      time.Time `gorm:"column:check_date;not null;index" json:"check_date"`
	MetricValue    float64   `gorm:"column:metric_value" json:"metric_value"`
	ThresholdValue float64   `gorm:"column:threshold_value" json:"threshold_value"`
	Status         string    `gorm:"column:status;type:varchar(10);not null;index" json:"status"` // PASS/FAIL/ERROR
	Details        string    `gorm:"column:details;type:text" json:"details"`
	DurationMs     int64     `gorm:"column:duration_ms" json:"duration_ms"`
	Sequence       int       `gorm:"column:sequence" json:"sequence"` // 同一批次内按规则ID升序的写入序号
}

// TableName 指定表名
func (QualityResult) TableName() string {
	return "quality_results"
}

// BeforeCreate 创建前钩子
func (q *QualityResult) BeforeCreate(tx *gorm.DB) error {
	if q.ResultID == "" {
		q.ResultID = uuid.New().String()
	}
	return nil
}
