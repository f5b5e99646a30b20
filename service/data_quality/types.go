/*
 * @module service/data_quality/types
 * @description 数据质量核心类型定义，包含规则类型、按类型区分的规则配置、检查结果与列画像
 * @architecture 领域模型层 - 与持久化模型解耦
 * @documentReference ai_docs/data_quality_monitor.md
 * @stateFlow 持久化规则 -> 解析并校验配置 -> 可执行规则 -> 检查结果
 * @rules 规则配置在加载时完成一次校验，执行期不再解析原始配置
 * @dependencies github.com/spf13/cast
 * @refs service/models/quality_models.go
 */

package data_quality

import (
	"fmt"
	"math"
	"time"

	"dataquality-service/service/models"

	"github.com/spf13/cast"
)

// RuleKind 规则类型
type RuleKind string

const (
	KindNullCheck       RuleKind = "null_check"
	KindFormatCheck     RuleKind = "format_check"
	KindRangeCheck      RuleKind = "range_check"
	KindUniquenessCheck RuleKind = "uniqueness_check"
	KindForeignKeyCheck RuleKind = "foreign_key_check"
)

// Kinds 返回全部支持的规则类型
func Kinds() []RuleKind {
	return []RuleKind{KindNullCheck, KindFormatCheck, KindRangeCheck, KindUniquenessCheck, KindForeignKeyCheck}
}

// Status 检查状态
type Status string

const (
	StatusPass  Status = models.QualityStatusPass
	StatusFail  Status = models.QualityStatusFail
	StatusError Status = models.QualityStatusError
)

// RuleConfig 规则配置，每种规则类型对应一种具体配置
type RuleConfig interface {
	Kind() RuleKind
	Validate() error
	// Encode 转换为持久化使用的键值形式
	Encode() map[string]interface{}
}

// NullConfig 空值检查无额外配置
type NullConfig struct{}

func (NullConfig) Kind() RuleKind                 { return KindNullCheck }
func (NullConfig) Validate() error                { return nil }
func (NullConfig) Encode() map[string]interface{} { return map[string]interface{}{} }

// FormatConfig 格式检查配置
type FormatConfig struct {
	Pattern string `json:"pattern" yaml:"pattern"`
}

func (FormatConfig) Kind() RuleKind { return KindFormatCheck }

// Validate 正则本身的合法性在执行时检查，这里只要求非空
func (c FormatConfig) Validate() error {
	if c.Pattern == "" {
		return fmt.Errorf("格式检查缺少 pattern 配置")
	}
	return nil
}

func (c FormatConfig) Encode() map[string]interface{} {
	return map[string]interface{}{"pattern": c.Pattern}
}

// RangeConfig 范围检查配置，上下界均可省略
type RangeConfig struct {
	Min *float64 `json:"min,omitempty" yaml:"min"`
	Max *float64 `json:"max,omitempty" yaml:"max"`
}

func (RangeConfig) Kind() RuleKind { return KindRangeCheck }

func (c RangeConfig) Validate() error {
	for _, bound := range []*float64{c.Min, c.Max} {
		if bound != nil && (math.IsNaN(*bound) || math.IsInf(*bound, 0)) {
			return fmt.Errorf("范围检查边界必须是有限数值")
		}
	}
	return nil
}

func (c RangeConfig) Encode() map[string]interface{} {
	out := map[string]interface{}{}
	if c.Min != nil {
		out["min"] = *c.Min
	}
	if c.Max != nil {
		out["max"] = *c.Max
	}
	return out
}

// UniquenessConfig 唯一性检查无额外配置
type UniquenessConfig struct{}

func (UniquenessConfig) Kind() RuleKind                 { return KindUniquenessCheck }
func (UniquenessConfig) Validate() error                { return nil }
func (UniquenessConfig) Encode() map[string]interface{} { return map[string]interface{}{} }

// ForeignKeyConfig 外键检查配置
type ForeignKeyConfig struct {
	ReferenceTable  string `json:"reference_table" yaml:"reference_table"`
	ReferenceColumn string `json:"reference_column" yaml:"reference_column"`
}

func (ForeignKeyConfig) Kind() RuleKind { return KindForeignKeyCheck }

func (c ForeignKeyConfig) Validate() error {
	if c.ReferenceTable == "" || c.ReferenceColumn == "" {
		return fmt.Errorf("外键检查缺少 reference_table 或 reference_column 配置")
	}
	return nil
}

func (c ForeignKeyConfig) Encode() map[string]interface{} {
	return map[string]interface{}{
		"reference_table":  c.ReferenceTable,
		"reference_column": c.ReferenceColumn,
	}
}

// DecodeRuleConfig 根据规则类型解析原始配置并校验
func DecodeRuleConfig(kind RuleKind, raw map[string]interface{}) (RuleConfig, error) {
	var cfg RuleConfig
	switch kind {
	case KindNullCheck:
		cfg = NullConfig{}
	case KindUniquenessCheck:
		cfg = UniquenessConfig{}
	case KindFormatCheck:
		pattern, err := optionalString(raw, "pattern")
		if err != nil {
			return nil, err
		}
		cfg = FormatConfig{Pattern: pattern}
	case KindRangeCheck:
		lower, err := optionalFloat(raw, "min")
		if err != nil {
			return nil, err
		}
		upper, err := optionalFloat(raw, "max")
		if err != nil {
			return nil, err
		}
		cfg = RangeConfig{Min: lower, Max: upper}
	case KindForeignKeyCheck:
		table, err := optionalString(raw, "reference_table")
		if err != nil {
			return nil, err
		}
		column, err := optionalString(raw, "reference_column")
		if err != nil {
			return nil, err
		}
		cfg = ForeignKeyConfig{ReferenceTable: table, ReferenceColumn: column}
	default:
		return nil, fmt.Errorf("不支持的规则类型: %s", kind)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func optionalString(raw map[string]interface{}, key string) (string, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return "", nil
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", fmt.Errorf("配置项 %s 不是字符串: %w", key, err)
	}
	return s, nil
}

func optionalFloat(raw map[string]interface{}, key string) (*float64, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return nil, nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return nil, fmt.Errorf("配置项 %s 不是数值: %w", key, err)
	}
	return &f, nil
}

// Rule 可执行的质量规则
type Rule struct {
	ID        int64      `json:"rule_id"`
	Table     string     `json:"table_name"`
	Column    string     `json:"column_name"`
	Kind      RuleKind   `json:"rule_type"`
	Config    RuleConfig `json:"rule_config"`
	Threshold float64    `json:"threshold_value"`
	Active    bool       `json:"is_active"`
}

// Validate 校验规则自身的完整性
func (r *Rule) Validate() error {
	if r.Table == "" || r.Column == "" {
		return &ConfigurationError{RuleID: r.ID, Reason: "表名和列名不能为空"}
	}
	if r.Threshold < 0 || r.Threshold > 100 || math.IsNaN(r.Threshold) {
		return &ConfigurationError{RuleID: r.ID, Reason: fmt.Sprintf("阈值 %v 不在 0-100 范围内", r.Threshold)}
	}
	if r.Config == nil {
		return &ConfigurationError{RuleID: r.ID, Reason: fmt.Sprintf("规则类型 %s 缺少配置", r.Kind)}
	}
	if r.Config.Kind() != r.Kind {
		return &ConfigurationError{RuleID: r.ID, Reason: fmt.Sprintf("配置类型 %s 与规则类型 %s 不一致", r.Config.Kind(), r.Kind)}
	}
	if err := r.Config.Validate(); err != nil {
		return &ConfigurationError{RuleID: r.ID, Reason: err.Error()}
	}
	return nil
}

// RuleFromModel 将持久化规则转换为可执行规则，配置不合法时返回 ConfigurationError
func RuleFromModel(m *models.QualityRule) (*Rule, error) {
	kind := RuleKind(m.RuleType)
	cfg, err := DecodeRuleConfig(kind, m.RuleConfig)
	if err != nil {
		return nil, &ConfigurationError{RuleID: m.RuleID, Reason: err.Error()}
	}
	rule := &Rule{
		ID:        m.RuleID,
		Table:     m.TargetTable,
		Column:    m.TargetColumn,
		Kind:      kind,
		Config:    cfg,
		Threshold: m.ThresholdValue,
		Active:    m.IsActive,
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return rule, nil
}

// ToModel 转换为持久化模型
func (r *Rule) ToModel() *models.QualityRule {
	m := &models.QualityRule{
		RuleID:         r.ID,
		TargetTable:    r.Table,
		TargetColumn:   r.Column,
		RuleType:       string(r.Kind),
		ThresholdValue: r.Threshold,
		IsActive:       r.Active,
		RuleConfig:     models.JSONB{},
	}
	if r.Config != nil {
		m.RuleConfig = models.JSONB(r.Config.Encode())
	}
	return m
}

// Measurement 检查器的计算结果
type Measurement struct {
	Violations  int64
	Total       int64
	MetricValue float64
	Status      Status
	Details     string
}

// Result 单条规则的检查结果
type Result struct {
	RunID       string        `json:"run_id"`
	RuleID      int64         `json:"rule_id"`
	Table       string        `json:"table_name"`
	Column      string        `json:"column_name"`
	Kind        RuleKind      `json:"rule_type"`
	CheckedAt   time.Time     `json:"check_date"`
	MetricValue float64       `json:"metric_value"`
	Threshold   float64       `json:"threshold_value"`
	Status      Status        `json:"status"`
	Details     string        `json:"details"`
	Duration    time.Duration `json:"duration"`
	Sequence    int           `json:"sequence"`
}

// ToModel 转换为持久化模型
func (r *Result) ToModel() *models.QualityResult {
	return &models.QualityResult{
		RunID:          r.RunID,
		RuleID:         r.RuleID,
		TargetTable:    r.Table,
		TargetColumn:   r.Column,
		RuleType:       string(r.Kind),
		CheckDate:      r.CheckedAt.UTC(),
		MetricValue:    r.MetricValue,
		ThresholdValue: r.Threshold,
		Status:         string(r.Status),
		Details:        r.Details,
		DurationMs:     r.Duration.Milliseconds(),
		Sequence:       r.Sequence,
	}
}

// ResultFromModel 由持久化模型还原检查结果
func ResultFromModel(m *models.QualityResult) *Result {
	return &Result{
		RunID:       m.RunID,
		RuleID:      m.RuleID,
		Table:       m.TargetTable,
		Column:      m.TargetColumn,
		Kind:        RuleKind(m.RuleType),
		CheckedAt:   m.CheckDate,
		MetricValue: m.MetricValue,
		Threshold:   m.ThresholdValue,
		Status:      Status(m.Status),
		Details:     m.Details,
		Duration:    time.Duration(m.DurationMs) * time.Millisecond,
		Sequence:    m.Sequence,
	}
}

// ColumnProfile 列画像，不适用的统计量为 nil
type ColumnProfile struct {
	Table              string    `json:"table_name"`
	Column             string    `json:"column_name"`
	DataType           string    `json:"data_type"`
	TypeClass          TypeClass `json:"type_class"`
	TotalCount         int64     `json:"total_count"`
	NullCount          int64     `json:"null_count"`
	DistinctCount      int64     `json:"distinct_count"`
	NullPercentage     float64   `json:"null_percentage"`
	DistinctPercentage float64   `json:"distinct_percentage"`
	MinValue           *float64  `json:"min_value"`
	MaxValue           *float64  `json:"max_value"`
	AvgValue           *float64  `json:"avg_value"`
	StdDev             *float64  `json:"std_dev"`
}
